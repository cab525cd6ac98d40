package attendance

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"kidshive/internal/metrics"
	"kidshive/internal/queue"
)

// DiscardedDailyLog is the audit row behind a DiscardedLog.
type DiscardedDailyLog struct {
	ID             string `gorm:"primaryKey"`
	AttendanceID   string
	ChildID        string
	Day            time.Time `gorm:"type:date"`
	PreviousStatus string
	NewStatus      string
	Payload        datatypes.JSON
	DiscardedAt    time.Time
	NotifiedAt     *time.Time
}

func (DiscardedDailyLog) TableName() string { return "discarded_daily_logs" }

// AuditLog reads the discarded daily logs and acknowledges their queue notifications.
type AuditLog struct {
	db  *gorm.DB
	now func() time.Time
}

// NewAuditLog creates an audit log over the shared gorm handle.
func NewAuditLog(db *gorm.DB) *AuditLog {
	return &AuditLog{db: db, now: time.Now}
}

// Record persists d, assigning an id when it has none. The upsert transaction normally
// writes the row itself; Record covers messages whose row is missing.
func (a *AuditLog) Record(ctx context.Context, d DiscardedLog) (string, error) {
	day, err := time.Parse(dayLayout, d.Date)
	if err != nil {
		return "", fmt.Errorf("discarded log date: %w", err)
	}
	if d.ID == "" {
		d.ID = ulid.Make().String()
	}
	notified := d.NotifiedAt
	d.NotifiedAt = nil
	payload, err := json.Marshal(d)
	if err != nil {
		return "", err
	}
	row := DiscardedDailyLog{
		ID:             d.ID,
		AttendanceID:   d.AttendanceID,
		ChildID:        d.ChildID,
		Day:            day,
		PreviousStatus: string(d.PreviousStatus),
		NewStatus:      string(d.NewStatus),
		Payload:        datatypes.JSON(payload),
		DiscardedAt:    d.DiscardedAt.UTC(),
		NotifiedAt:     notified,
	}
	if err := a.db.WithContext(ctx).Create(&row).Error; err != nil {
		return "", fmt.Errorf("insert discarded log: %w", err)
	}
	return row.ID, nil
}

// ListForChild returns the child's discarded logs, newest first.
func (a *AuditLog) ListForChild(ctx context.Context, childID string) ([]DiscardedLog, error) {
	var rows []DiscardedDailyLog
	if err := a.db.WithContext(ctx).
		Where("child_id = ?", childID).
		Order("id DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list discarded logs: %w", err)
	}
	out := make([]DiscardedLog, 0, len(rows))
	for _, row := range rows {
		var d DiscardedLog
		if err := json.Unmarshal(row.Payload, &d); err != nil {
			return nil, fmt.Errorf("decode discarded log %s: %w", row.ID, err)
		}
		d.ID = row.ID
		if row.NotifiedAt != nil {
			at := row.NotifiedAt.UTC()
			d.NotifiedAt = &at
		}
		out = append(out, d)
	}
	return out, nil
}

// Handle acknowledges a daily_log.discarded message by stamping notified_at, writing the
// row first if it is missing. Other message types are ignored.
func (a *AuditLog) Handle(ctx context.Context, msg queue.Message) error {
	if msg.Type != MessageDiscarded {
		return nil
	}
	var d DiscardedLog
	if err := json.Unmarshal(msg.Body, &d); err != nil {
		return fmt.Errorf("decode %s: %w", msg.Type, err)
	}
	now := a.now().UTC()

	if d.ID != "" {
		res := a.db.WithContext(ctx).
			Model(&DiscardedDailyLog{}).
			Where("id = ? AND notified_at IS NULL", d.ID).
			Update("notified_at", now)
		if res.Error != nil {
			return fmt.Errorf("acknowledge discarded log %s: %w", d.ID, res.Error)
		}
		if res.RowsAffected > 0 {
			log.Printf("[INFO] audit %s delivered: child=%s day=%s %s->%s", d.ID, d.ChildID, d.Date, d.PreviousStatus, d.NewStatus)
			return nil
		}
		var n int64
		if err := a.db.WithContext(ctx).Model(&DiscardedDailyLog{}).Where("id = ?", d.ID).Count(&n).Error; err != nil {
			return fmt.Errorf("lookup discarded log %s: %w", d.ID, err)
		}
		if n > 0 {
			// redelivery
			return nil
		}
	}

	d.NotifiedAt = &now
	id, err := a.Record(ctx, d)
	if err != nil {
		return err
	}
	log.Printf("[WARN] audit %s was missing and has been written from the queue: child=%s day=%s", id, d.ChildID, d.Date)
	return nil
}

// Run consumes q until ctx is done. Failed messages are logged and dropped.
func (a *AuditLog) Run(ctx context.Context, q queue.Queue) error {
	messages, err := q.Consume(ctx)
	if err != nil {
		return err
	}
	for msg := range messages {
		if err := a.Handle(ctx, msg); err != nil {
			metrics.DiscardLogsPersisted.WithLabelValues(metrics.ResultError).Inc()
			log.Printf("[ERROR] %v", err)
			continue
		}
		if msg.Type == MessageDiscarded {
			metrics.DiscardLogsPersisted.WithLabelValues(metrics.ResultOK).Inc()
		}
	}
	return ctx.Err()
}
