package attendance

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"kidshive/internal/apierr"
)

const (
	dayLayout    = "2006-01-02"
	maxRangeDays = 366
)

// Payload is the JSON body of an attendance write.
type Payload struct {
	Date         string               `json:"date" validate:"required"`
	Status       Status               `json:"status" validate:"omitempty,oneof=PRESENT ABSENT HOLIDAY"`
	CheckIn      string               `json:"checkIn"`
	CheckOut     string               `json:"checkOut"`
	Notes        string               `json:"notes" validate:"max=4000"`
	Meals        map[string]MealInput `json:"meals"`
	Nap          *NapInput            `json:"nap"`
	NappyChanges []NappyChangeInput   `json:"nappyChanges" validate:"max=50,dive"`
}

// MealInput is one entry of the meals map, keyed by meal type.
type MealInput struct {
	Food     string   `json:"food" validate:"max=200"`
	Quantity Quantity `json:"quantity" validate:"omitempty,oneof=GOOD AVERAGE BELOW_AVERAGE"`
}

// NapInput is dropped unless both times are set.
type NapInput struct {
	StartTime  string `json:"startTime"`
	FinishTime string `json:"finishTime"`
}

// NappyChangeInput is dropped when Time is empty.
type NappyChangeInput struct {
	Time  string `json:"time"`
	Notes string `json:"notes" validate:"max=1000"`
}

// toUpsert validates p and resolves every clock time against the day in loc.
func (p Payload) toUpsert(v *validator.Validate, childID string, loc *time.Location) (Upsert, error) {
	if strings.TrimSpace(childID) == "" {
		return Upsert{}, apierr.Invalid("childId is required")
	}
	if err := v.Struct(p); err != nil {
		return Upsert{}, apierr.FromValidation(err)
	}
	day, err := parseDay(p.Date, loc)
	if err != nil {
		return Upsert{}, apierr.Invalid("date: %v", err)
	}

	u := Upsert{
		ChildID: childID,
		Day:     day.Format(dayLayout),
		Status:  p.Status,
		Notes:   p.Notes,
	}
	if u.Status == "" {
		u.Status = StatusPresent
	}
	if u.CheckIn, err = parseClock(day, p.CheckIn, loc); err != nil {
		return Upsert{}, apierr.Invalid("checkIn: %v", err)
	}
	if u.CheckOut, err = parseClock(day, p.CheckOut, loc); err != nil {
		return Upsert{}, apierr.Invalid("checkOut: %v", err)
	}
	if u.CheckIn != nil && u.CheckOut != nil && u.CheckOut.Before(*u.CheckIn) {
		return Upsert{}, apierr.Invalid("checkOut is before checkIn")
	}

	for key, in := range p.Meals {
		mt := MealType(key)
		if err := v.Var(key, "oneof=SNACKS LUNCH TEA"); err != nil {
			return Upsert{}, apierr.Invalid("meals: unknown meal type %q", key)
		}
		if err := v.Struct(in); err != nil {
			return Upsert{}, apierr.FromValidation(err)
		}
		if strings.TrimSpace(in.Food) == "" && in.Quantity == "" {
			continue
		}
		meal := Meal{Type: mt, Food: in.Food}
		if in.Quantity != "" {
			q := in.Quantity
			meal.Quantity = &q
		}
		u.Meals = append(u.Meals, meal)
	}

	if p.Nap != nil && p.Nap.StartTime != "" && p.Nap.FinishTime != "" {
		start, err := parseClock(day, p.Nap.StartTime, loc)
		if err != nil {
			return Upsert{}, apierr.Invalid("nap.startTime: %v", err)
		}
		finish, err := parseClock(day, p.Nap.FinishTime, loc)
		if err != nil {
			return Upsert{}, apierr.Invalid("nap.finishTime: %v", err)
		}
		if finish.Before(*start) {
			return Upsert{}, apierr.Invalid("nap finishTime is before startTime")
		}
		u.Nap = &Nap{StartTime: *start, FinishTime: *finish}
	}

	for i, in := range p.NappyChanges {
		if strings.TrimSpace(in.Time) == "" {
			continue
		}
		at, err := parseClock(day, in.Time, loc)
		if err != nil {
			return Upsert{}, apierr.Invalid("nappyChanges[%d].time: %v", i, err)
		}
		u.NappyChanges = append(u.NappyChanges, NappyChange{Time: *at, Notes: in.Notes})
	}
	return u, nil
}

// parseRange checks an inclusive day range and returns both bounds as YYYY-MM-DD.
func parseRange(start, end string, loc *time.Location) (string, string, error) {
	if start == "" || end == "" {
		return "", "", apierr.Invalid("Missing date range")
	}
	s, err := parseDay(start, loc)
	if err != nil {
		return "", "", apierr.Invalid("startDate: %v", err)
	}
	e, err := parseDay(end, loc)
	if err != nil {
		return "", "", apierr.Invalid("endDate: %v", err)
	}
	if s.After(e) {
		return "", "", apierr.Invalid("startDate is after endDate")
	}
	if days := int(e.Sub(s).Hours()/24) + 1; days > maxRangeDays {
		return "", "", apierr.Invalid("date range spans %d days, maximum is %d", days, maxRangeDays)
	}
	return s.Format(dayLayout), e.Format(dayLayout), nil
}

// parseDay accepts YYYY-MM-DD or an RFC3339 timestamp, which is truncated to its calendar day in loc.
// The result is midnight UTC of that day.
func parseDay(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if d, err := time.Parse(dayLayout, s); err == nil {
		return d, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is not a date", s)
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

// parseClock combines an HH:MM or HH:MM:SS clock time with day in loc. A full RFC3339 timestamp
// must fall on day in loc. Empty input means no time.
func parseClock(day time.Time, s string, loc *time.Location) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		local := t.In(loc)
		if local.Year() != day.Year() || local.Month() != day.Month() || local.Day() != day.Day() {
			return nil, fmt.Errorf("%q is not on %s", s, day.Format(dayLayout))
		}
		t = t.UTC()
		return &t, nil
	}
	for _, layout := range []string{"15:04", "15:04:05"} {
		c, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		t := time.Date(day.Year(), day.Month(), day.Day(), c.Hour(), c.Minute(), c.Second(), 0, loc).UTC()
		return &t, nil
	}
	return nil, fmt.Errorf("%q is not a time", s)
}
