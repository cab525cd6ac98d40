package child

import "time"

// Relationship of a parent account to a child.
const (
	RelationshipMother   = "MOTHER"
	RelationshipFather   = "FATHER"
	RelationshipGuardian = "GUARDIAN"
)

// Child is the directory entry for one child. Medical and contact fields are free text.
type Child struct {
	ID               string       `gorm:"primaryKey" json:"id"`
	Name             string       `gorm:"not null" json:"name"`
	DOB              *time.Time   `gorm:"column:dob;type:date" json:"dob"`
	Allergies        *string      `json:"allergies"`
	HealthInfo       *string      `json:"healthInfo"`
	Medications      *string      `json:"medications"`
	EmergencyContact *string      `json:"emergencyContact"`
	Parents          []ParentLink `gorm:"foreignKey:ChildID;constraint:OnDelete:CASCADE" json:"parents"`
	CreatedAt        time.Time    `json:"createdAt"`
	UpdatedAt        time.Time    `json:"updatedAt"`
}

func (Child) TableName() string { return "children" }

// ParentLink ties a parent account (identity provider subject) to a child.
type ParentLink struct {
	ChildID      string `gorm:"primaryKey" json:"-"`
	ParentID     string `gorm:"primaryKey" json:"parentId"`
	Relationship string `json:"relationship"`
}

func (ParentLink) TableName() string { return "child_parents" }

// Input is the body of create and update requests. Parents may be given as plain ids, as
// links with a relationship, or both. They are ignored on update.
type Input struct {
	Name             string        `json:"name" validate:"required,max=200"`
	DOB              string        `json:"dob" validate:"omitempty,datetime=2006-01-02"`
	Allergies        *string       `json:"allergies" validate:"omitempty,max=2000"`
	HealthInfo       *string       `json:"healthInfo" validate:"omitempty,max=2000"`
	Medications      *string       `json:"medications" validate:"omitempty,max=2000"`
	EmergencyContact *string       `json:"emergencyContact" validate:"omitempty,max=500"`
	ParentIDs        []string      `json:"parentIds" validate:"dive,required"`
	Parents          []ParentInput `json:"parents" validate:"dive"`
}

// ParentInput links a parent with an explicit relationship.
type ParentInput struct {
	ParentID     string `json:"parentId" validate:"required"`
	Relationship string `json:"relationship" validate:"omitempty,oneof=MOTHER FATHER GUARDIAN"`
}
