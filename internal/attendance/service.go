package attendance

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/go-playground/validator/v10"

	"kidshive/internal/apierr"
	"kidshive/internal/metrics"
	"kidshive/internal/queue"
)

// MessageDiscarded is the queue message type announcing a stored DiscardedLog.
const MessageDiscarded = "daily_log.discarded"

const publishTimeout = 5 * time.Second

// Store is the persistence the service needs. *Repository is the production implementation.
type Store interface {
	Upsert(ctx context.Context, u Upsert) (Record, *DiscardedLog, error)
	Range(ctx context.Context, childID, start, end string) ([]Record, error)
}

// Service validates attendance reads and writes before they reach the store.
type Service struct {
	store    Store
	events   queue.Queue
	loc      *time.Location
	validate *validator.Validate
}

// NewService creates a service. Clock times in payloads are interpreted in loc; a nil
// queue drops discard events.
func NewService(st Store, events queue.Queue, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if events == nil {
		events = queue.Discard{}
	}
	return &Service{store: st, events: events, loc: loc, validate: apierr.NewValidator()}
}

// GetAttendanceRange returns the child's records between startDate and endDate inclusive.
func (s *Service) GetAttendanceRange(ctx context.Context, childID, startDate, endDate string) ([]Record, error) {
	start, end, err := parseRange(startDate, endDate, s.loc)
	if err != nil {
		return nil, err
	}
	recs, err := s.store.Range(ctx, childID, start, end)
	if err != nil {
		metrics.AttendanceRangeQueries.WithLabelValues(metrics.ResultError).Inc()
		return nil, err
	}
	metrics.AttendanceRangeQueries.WithLabelValues(metrics.ResultOK).Inc()
	return recs, nil
}

// UpsertAttendance creates or replaces the child's record for the payload's day.
func (s *Service) UpsertAttendance(ctx context.Context, childID string, p Payload) (Record, error) {
	u, err := p.toUpsert(s.validate, childID, s.loc)
	if err != nil {
		return Record{}, err
	}

	started := time.Now()
	rec, discarded, err := s.store.Upsert(ctx, u)
	metrics.AttendanceUpsertDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		metrics.AttendanceUpserts.WithLabelValues(string(u.Status), metrics.ResultError).Inc()
		return Record{}, err
	}
	metrics.AttendanceUpserts.WithLabelValues(string(u.Status), metrics.ResultOK).Inc()

	if discarded != nil {
		metrics.DailyLogsDiscarded.Inc()
		s.publishDiscarded(ctx, discarded)
	}
	return rec, nil
}

// publishDiscarded runs after commit. The log is already stored, so a failed publish is only logged.
func (s *Service) publishDiscarded(ctx context.Context, d *DiscardedLog) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	body, err := json.Marshal(d)
	if err != nil {
		log.Printf("[ERROR] encode discarded log %s: %v", d.ID, err)
		return
	}
	if err := s.events.Publish(ctx, queue.Message{Type: MessageDiscarded, Body: body}); err != nil {
		log.Printf("[WARN] publish discarded log %s: %v", d.ID, err)
	}
}
