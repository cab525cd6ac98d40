package attendance

import "time"

// Status is the presence state of a child on a given day.
type Status string

const (
	StatusPresent Status = "PRESENT"
	StatusAbsent  Status = "ABSENT"
	StatusHoliday Status = "HOLIDAY"
)

// MealType names one of the three meal slots of the day.
type MealType string

const (
	MealSnacks MealType = "SNACKS"
	MealLunch  MealType = "LUNCH"
	MealTea    MealType = "TEA"
)

// rank orders meals the way the day runs.
func (m MealType) rank() int {
	switch m {
	case MealSnacks:
		return 0
	case MealLunch:
		return 1
	case MealTea:
		return 2
	default:
		return 3
	}
}

// Quantity is how much of a meal the child ate.
type Quantity string

const (
	QuantityGood         Quantity = "GOOD"
	QuantityAverage      Quantity = "AVERAGE"
	QuantityBelowAverage Quantity = "BELOW_AVERAGE"
)

// Record is one child's attendance for one calendar day, with its sub-records.
type Record struct {
	ID           string        `json:"id"`
	ChildID      string        `json:"childId"`
	Date         string        `json:"date"`
	Status       Status        `json:"status"`
	CheckIn      *time.Time    `json:"checkIn"`
	CheckOut     *time.Time    `json:"checkOut"`
	Notes        string        `json:"notes"`
	Meals        []Meal        `json:"meals"`
	Naps         []Nap         `json:"naps"`
	NappyChanges []NappyChange `json:"nappyChanges"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// Meal is what the child ate in one slot.
type Meal struct {
	ID       string    `json:"id"`
	Type     MealType  `json:"type"`
	Food     string    `json:"food"`
	Quantity *Quantity `json:"quantity"`
}

// Nap is one sleep period.
type Nap struct {
	ID         string    `json:"id"`
	StartTime  time.Time `json:"startTime"`
	FinishTime time.Time `json:"finishTime"`
}

// NappyChange is one nappy change with optional notes.
type NappyChange struct {
	ID    string    `json:"id"`
	Time  time.Time `json:"time"`
	Notes string    `json:"notes"`
}

// Upsert is a validated write for one (child, day). Sub-records are ignored unless Status is PRESENT.
type Upsert struct {
	ChildID      string
	Day          string
	Status       Status
	CheckIn      *time.Time
	CheckOut     *time.Time
	Notes        string
	Meals        []Meal
	Nap          *Nap
	NappyChanges []NappyChange
}

// DiscardedLog captures the sub-records removed when a day moves away from PRESENT.
// It is stored in the same transaction as the status change; NotifiedAt is set once
// the queue consumer has seen it.
type DiscardedLog struct {
	ID             string        `json:"id"`
	AttendanceID   string        `json:"attendanceId"`
	ChildID        string        `json:"childId"`
	Date           string        `json:"date"`
	PreviousStatus Status        `json:"previousStatus"`
	NewStatus      Status        `json:"newStatus"`
	Meals          []Meal        `json:"meals"`
	Naps           []Nap         `json:"naps"`
	NappyChanges   []NappyChange `json:"nappyChanges"`
	DiscardedAt    time.Time     `json:"discardedAt"`
	NotifiedAt     *time.Time    `json:"notifiedAt,omitempty"`
}

func (d *DiscardedLog) empty() bool {
	return len(d.Meals) == 0 && len(d.Naps) == 0 && len(d.NappyChanges) == 0
}
