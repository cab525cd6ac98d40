package child

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"kidshive/internal/apierr"
)

// Service is the child directory API used by the handlers and by attendance role checks.
type Service struct {
	store    *Store
	validate *validator.Validate
}

// NewService creates the child directory service.
func NewService(store *Store) *Service {
	return &Service{store: store, validate: apierr.NewValidator()}
}

// GetChild returns the child or NOT_FOUND.
func (s *Service) GetChild(ctx context.Context, id string) (Child, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) ListChildren(ctx context.Context) ([]Child, error) {
	return s.store.List(ctx)
}

// CreateChild requires a name and at least one linked parent.
func (s *Service) CreateChild(ctx context.Context, in Input) (Child, error) {
	c, err := s.fromInput(in)
	if err != nil {
		return Child{}, err
	}
	c.Parents = parentLinks(in)
	if len(c.Parents) == 0 {
		return Child{}, apierr.Invalid("at least one parent is required")
	}
	c.ID = uuid.NewString()
	if err := s.store.Create(ctx, &c); err != nil {
		return Child{}, err
	}
	return s.store.Get(ctx, c.ID)
}

// UpdateChild replaces the child's details. Parent links are left as they are.
func (s *Service) UpdateChild(ctx context.Context, id string, in Input) (Child, error) {
	c, err := s.fromInput(in)
	if err != nil {
		return Child{}, err
	}
	c.ID = id
	if err := s.store.Update(ctx, c); err != nil {
		return Child{}, err
	}
	return s.store.Get(ctx, id)
}

// DeleteChild removes the child together with its attendance history and links.
func (s *Service) DeleteChild(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

// ChildrenOfParent lists the children linked to parentID.
func (s *Service) ChildrenOfParent(ctx context.Context, parentID string) ([]Child, error) {
	if parentID == "" {
		return nil, apierr.Invalid("parent id is required")
	}
	return s.store.ChildrenOfParent(ctx, parentID)
}

// IsGuardian implements auth.Guardians.
func (s *Service) IsGuardian(ctx context.Context, childID, parentID string) (bool, error) {
	if childID == "" || parentID == "" {
		return false, nil
	}
	return s.store.IsGuardian(ctx, childID, parentID)
}

func (s *Service) fromInput(in Input) (Child, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validate.Struct(in); err != nil {
		return Child{}, apierr.FromValidation(err)
	}
	c := Child{
		Name:             in.Name,
		Allergies:        blankToNil(in.Allergies),
		HealthInfo:       blankToNil(in.HealthInfo),
		Medications:      blankToNil(in.Medications),
		EmergencyContact: blankToNil(in.EmergencyContact),
	}
	if in.DOB != "" {
		dob, err := time.Parse("2006-01-02", in.DOB)
		if err != nil {
			return Child{}, apierr.Invalid("dob: %v", err)
		}
		c.DOB = &dob
	}
	return c, nil
}

// parentLinks merges parentIds and parents, dropping duplicates. A bare id is a GUARDIAN link.
func parentLinks(in Input) []ParentLink {
	seen := map[string]int{}
	var out []ParentLink
	add := func(id, rel string) {
		id = strings.TrimSpace(id)
		if id == "" {
			return
		}
		if i, ok := seen[id]; ok {
			if rel != "" {
				out[i].Relationship = rel
			}
			return
		}
		if rel == "" {
			rel = RelationshipGuardian
		}
		seen[id] = len(out)
		out = append(out, ParentLink{ParentID: id, Relationship: rel})
	}
	for _, id := range in.ParentIDs {
		add(id, "")
	}
	for _, p := range in.Parents {
		add(p.ParentID, p.Relationship)
	}
	return out
}

func blankToNil(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
