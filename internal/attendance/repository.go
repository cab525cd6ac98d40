package attendance

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"kidshive/internal/apierr"
	"kidshive/internal/store"
)

// Repository persists attendance records and their sub-records with plain SQL.
// Queries are written for both Postgres and SQLite.
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// Upsert writes the day for (u.ChildID, u.Day) and replaces its sub-records in one transaction.
// When the write drops existing sub-records the snapshot is stored in discarded_daily_logs
// and returned alongside the record.
func (r *Repository) Upsert(ctx context.Context, u Upsert) (Record, *DiscardedLog, error) {
	var (
		rec       Record
		discarded *DiscardedLog
	)
	err := store.RunInTx(ctx, r.db, nil, func(ctx context.Context, tx store.DBTX) error {
		var one int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM children WHERE id = $1`, u.ChildID).Scan(&one); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apierr.NotFound("child %s not found", u.ChildID)
			}
			return fmt.Errorf("lookup child: %w", err)
		}

		var prevStatus Status
		err := tx.QueryRowContext(ctx, `
			SELECT status FROM attendance_records WHERE child_id = $1 AND day = $2
		`, u.ChildID, u.Day).Scan(&prevStatus)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("lookup record: %w", err)
		}

		now := r.now().UTC()
		var id string
		if err := tx.QueryRowContext(ctx, `
			INSERT INTO attendance_records (id, child_id, day, status, check_in, check_out, notes, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
			ON CONFLICT (child_id, day) DO UPDATE SET
				status = excluded.status,
				check_in = excluded.check_in,
				check_out = excluded.check_out,
				notes = excluded.notes,
				updated_at = excluded.updated_at
			RETURNING id
		`, uuid.NewString(), u.ChildID, u.Day, string(u.Status), u.CheckIn, u.CheckOut, u.Notes, now).Scan(&id); err != nil {
			return fmt.Errorf("upsert record: %w", err)
		}

		if u.Status != StatusPresent && prevStatus != "" {
			subs, err := loadSubRecords(ctx, tx, []string{id})
			if err != nil {
				return err
			}
			snap := &DiscardedLog{
				ID:             ulid.Make().String(),
				AttendanceID:   id,
				ChildID:        u.ChildID,
				Date:           u.Day,
				PreviousStatus: prevStatus,
				NewStatus:      u.Status,
				Meals:          subs.meals[id],
				Naps:           subs.naps[id],
				NappyChanges:   subs.nappies[id],
				DiscardedAt:    now,
			}
			if !snap.empty() {
				payload, err := json.Marshal(snap)
				if err != nil {
					return fmt.Errorf("encode discarded log: %w", err)
				}
				log.Printf("[WARN] discarding daily log child=%s day=%s %s->%s audit=%s payload=%s",
					snap.ChildID, snap.Date, snap.PreviousStatus, snap.NewStatus, snap.ID, payload)
				if err := insertDiscarded(ctx, tx, snap, payload); err != nil {
					return err
				}
				discarded = snap
			}
		}

		for _, table := range []string{"meals", "naps", "nappy_changes"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE attendance_id = $1`, id); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}

		if u.Status == StatusPresent {
			if err := insertSubRecords(ctx, tx, id, u); err != nil {
				return err
			}
		}

		recs, err := queryRecords(ctx, tx, `WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if len(recs) != 1 {
			return fmt.Errorf("reload record %s: found %d rows", id, len(recs))
		}
		rec = recs[0]
		return nil
	})
	if err != nil {
		return Record{}, nil, err
	}
	return rec, discarded, nil
}

// Range returns the child's records with day in [start, end], oldest first.
func (r *Repository) Range(ctx context.Context, childID, start, end string) ([]Record, error) {
	return queryRecords(ctx, r.db, `WHERE child_id = $1 AND day >= $2 AND day <= $3`, childID, start, end)
}

// insertDiscarded writes the audit row so the snapshot commits or rolls back with the status change.
func insertDiscarded(ctx context.Context, tx store.DBTX, d *DiscardedLog, payload []byte) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO discarded_daily_logs (id, attendance_id, child_id, day, previous_status, new_status, payload, discarded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, d.ID, d.AttendanceID, d.ChildID, d.Date, string(d.PreviousStatus), string(d.NewStatus), string(payload), d.DiscardedAt); err != nil {
		return fmt.Errorf("insert discarded log: %w", err)
	}
	return nil
}

func insertSubRecords(ctx context.Context, tx store.DBTX, attendanceID string, u Upsert) error {
	for _, m := range u.Meals {
		var qty *string
		if m.Quantity != nil {
			s := string(*m.Quantity)
			qty = &s
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO meals (id, attendance_id, meal_type, food, quantity)
			VALUES ($1, $2, $3, $4, $5)
		`, uuid.NewString(), attendanceID, string(m.Type), m.Food, qty); err != nil {
			return fmt.Errorf("insert meal %s: %w", m.Type, err)
		}
	}
	if u.Nap != nil {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO naps (id, attendance_id, start_time, finish_time)
			VALUES ($1, $2, $3, $4)
		`, uuid.NewString(), attendanceID, u.Nap.StartTime.UTC(), u.Nap.FinishTime.UTC()); err != nil {
			return fmt.Errorf("insert nap: %w", err)
		}
	}
	for _, n := range u.NappyChanges {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO nappy_changes (id, attendance_id, changed_at, notes)
			VALUES ($1, $2, $3, $4)
		`, uuid.NewString(), attendanceID, n.Time.UTC(), n.Notes); err != nil {
			return fmt.Errorf("insert nappy change: %w", err)
		}
	}
	return nil
}

// queryRecords loads attendance rows matching where, ordered by day, and attaches their sub-records.
func queryRecords(ctx context.Context, q store.DBTX, where string, args ...any) ([]Record, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, child_id, day, status, check_in, check_out, notes, created_at, updated_at
		FROM attendance_records `+where+`
		ORDER BY day ASC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		var (
			rec               Record
			day               time.Time
			checkIn, checkOut sql.NullTime
		)
		if err := rows.Scan(&rec.ID, &rec.ChildID, &day, &rec.Status, &checkIn, &checkOut, &rec.Notes, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.Date = day.Format(dayLayout)
		rec.CheckIn = nullTime(checkIn)
		rec.CheckOut = nullTime(checkOut)
		rec.CreatedAt = rec.CreatedAt.UTC()
		rec.UpdatedAt = rec.UpdatedAt.UTC()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()
	if len(out) == 0 {
		return out, nil
	}

	ids := make([]string, len(out))
	for i, rec := range out {
		ids[i] = rec.ID
	}
	subs, err := loadSubRecords(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		id := out[i].ID
		out[i].Meals = nonNil(subs.meals[id])
		out[i].Naps = nonNil(subs.naps[id])
		out[i].NappyChanges = nonNil(subs.nappies[id])
	}
	return out, nil
}

type subRecords struct {
	meals   map[string][]Meal
	naps    map[string][]Nap
	nappies map[string][]NappyChange
}

func loadSubRecords(ctx context.Context, q store.DBTX, ids []string) (subRecords, error) {
	subs := subRecords{
		meals:   map[string][]Meal{},
		naps:    map[string][]Nap{},
		nappies: map[string][]NappyChange{},
	}
	in, args := inClause(ids)

	rows, err := q.QueryContext(ctx, `SELECT id, attendance_id, meal_type, food, quantity FROM meals WHERE attendance_id IN (`+in+`)`, args...)
	if err != nil {
		return subs, fmt.Errorf("query meals: %w", err)
	}
	for rows.Next() {
		var (
			m     Meal
			owner string
			qty   sql.NullString
		)
		if err := rows.Scan(&m.ID, &owner, &m.Type, &m.Food, &qty); err != nil {
			rows.Close()
			return subs, fmt.Errorf("scan meal: %w", err)
		}
		if qty.Valid {
			v := Quantity(qty.String)
			m.Quantity = &v
		}
		subs.meals[owner] = append(subs.meals[owner], m)
	}
	if err := closeRows(rows); err != nil {
		return subs, err
	}
	for _, meals := range subs.meals {
		slices.SortFunc(meals, func(a, b Meal) int { return a.Type.rank() - b.Type.rank() })
	}

	rows, err = q.QueryContext(ctx, `SELECT id, attendance_id, start_time, finish_time FROM naps WHERE attendance_id IN (`+in+`)`, args...)
	if err != nil {
		return subs, fmt.Errorf("query naps: %w", err)
	}
	for rows.Next() {
		var (
			n     Nap
			owner string
		)
		if err := rows.Scan(&n.ID, &owner, &n.StartTime, &n.FinishTime); err != nil {
			rows.Close()
			return subs, fmt.Errorf("scan nap: %w", err)
		}
		n.StartTime, n.FinishTime = n.StartTime.UTC(), n.FinishTime.UTC()
		subs.naps[owner] = append(subs.naps[owner], n)
	}
	if err := closeRows(rows); err != nil {
		return subs, err
	}

	rows, err = q.QueryContext(ctx, `
		SELECT id, attendance_id, changed_at, notes FROM nappy_changes
		WHERE attendance_id IN (`+in+`)
		ORDER BY changed_at ASC
	`, args...)
	if err != nil {
		return subs, fmt.Errorf("query nappy changes: %w", err)
	}
	for rows.Next() {
		var (
			n     NappyChange
			owner string
		)
		if err := rows.Scan(&n.ID, &owner, &n.Time, &n.Notes); err != nil {
			rows.Close()
			return subs, fmt.Errorf("scan nappy change: %w", err)
		}
		n.Time = n.Time.UTC()
		subs.nappies[owner] = append(subs.nappies[owner], n)
	}
	return subs, closeRows(rows)
}

// inClause renders "$1, $2, ..." for ids.
func inClause(ids []string) (string, []any) {
	marks := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		marks[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	return strings.Join(marks, ", "), args
}

func closeRows(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	return rows.Close()
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
