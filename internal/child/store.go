package child

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"kidshive/internal/apierr"
)

// Store is the gorm-backed child directory.
type Store struct {
	db *gorm.DB
}

// NewStore wraps the shared gorm handle.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Get loads a child with its parent links.
func (s *Store) Get(ctx context.Context, id string) (Child, error) {
	var c Child
	err := s.db.WithContext(ctx).Preload("Parents").First(&c, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Child{}, apierr.NotFound("child %s not found", id)
	}
	if err != nil {
		return Child{}, fmt.Errorf("get child: %w", err)
	}
	return c, nil
}

// List returns every child ordered by name.
func (s *Store) List(ctx context.Context) ([]Child, error) {
	out := []Child{}
	if err := s.db.WithContext(ctx).Preload("Parents").Order("name, id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	return out, nil
}

// ChildrenOfParent lists the children linked to parentID.
func (s *Store) ChildrenOfParent(ctx context.Context, parentID string) ([]Child, error) {
	out := []Child{}
	linked := s.db.Model(&ParentLink{}).Select("child_id").Where("parent_id = ?", parentID)
	if err := s.db.WithContext(ctx).
		Preload("Parents").
		Where("id IN (?)", linked).
		Order("name, id").
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("children of parent: %w", err)
	}
	return out, nil
}

// IsGuardian reports whether parentID is linked to childID.
func (s *Store) IsGuardian(ctx context.Context, childID, parentID string) (bool, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&ParentLink{}).
		Where("child_id = ? AND parent_id = ?", childID, parentID).
		Count(&n).Error; err != nil {
		return false, fmt.Errorf("guardian lookup: %w", err)
	}
	return n > 0, nil
}

// Create inserts the child and its parent links together.
func (s *Store) Create(ctx context.Context, c *Child) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Parents").Create(c).Error; err != nil {
			return fmt.Errorf("insert child: %w", err)
		}
		for i := range c.Parents {
			c.Parents[i].ChildID = c.ID
		}
		if len(c.Parents) > 0 {
			if err := tx.Create(&c.Parents).Error; err != nil {
				return fmt.Errorf("insert parent links: %w", err)
			}
		}
		return nil
	})
}

// Update replaces the child's name, dob and free-text fields. Parent links are left alone.
func (s *Store) Update(ctx context.Context, c Child) error {
	res := s.db.WithContext(ctx).Model(&Child{}).Where("id = ?", c.ID).Updates(map[string]any{
		"name":              c.Name,
		"dob":               c.DOB,
		"allergies":         c.Allergies,
		"health_info":       c.HealthInfo,
		"medications":       c.Medications,
		"emergency_contact": c.EmergencyContact,
		"updated_at":        time.Now().UTC(),
	})
	if res.Error != nil {
		return fmt.Errorf("update child: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apierr.NotFound("child %s not found", c.ID)
	}
	return nil
}

// Delete removes the child with its attendance history and parent links in one transaction.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, table := range []string{"meals", "naps", "nappy_changes"} {
			if err := tx.Exec(`DELETE FROM `+table+` WHERE attendance_id IN (SELECT id FROM attendance_records WHERE child_id = ?)`, id).Error; err != nil {
				return fmt.Errorf("delete %s: %w", table, err)
			}
		}
		if err := tx.Exec(`DELETE FROM attendance_records WHERE child_id = ?`, id).Error; err != nil {
			return fmt.Errorf("delete attendance: %w", err)
		}
		if err := tx.Where("child_id = ?", id).Delete(&ParentLink{}).Error; err != nil {
			return fmt.Errorf("delete parent links: %w", err)
		}
		res := tx.Delete(&Child{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("delete child: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apierr.NotFound("child %s not found", id)
		}
		return nil
	})
}
