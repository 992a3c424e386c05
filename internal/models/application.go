package models

import "time"

type ApplicationStatus string

// Application status constants
const (
	StatusApplied    ApplicationStatus = "APPLIED"
	StatusAssessment ApplicationStatus = "ASSESSMENT"
	StatusInterview  ApplicationStatus = "INTERVIEW"
	StatusRejected   ApplicationStatus = "REJECTED"
	StatusOffered    ApplicationStatus = "OFFERED"
	StatusAccepted   ApplicationStatus = "ACCEPTED"
	StatusWithdrawn  ApplicationStatus = "WITHDRAWN"
)

// statusRank orders statuses along the usual application lifecycle.
// Used only to detect (and log) backwards transitions, never to reject them.
var statusRank = map[ApplicationStatus]int{
	StatusApplied:    1,
	StatusAssessment: 2,
	StatusInterview:  3,
	StatusRejected:   4,
	StatusOffered:    4,
	StatusAccepted:   5,
	StatusWithdrawn:  5,
}

// IsValid reports whether s is one of the defined application statuses.
func (s ApplicationStatus) IsValid() bool {
	_, ok := statusRank[s]
	return ok
}

// IsBackwardsFrom reports whether moving from prev to s walks the lifecycle
// backwards (e.g. OFFERED -> APPLIED).
func (s ApplicationStatus) IsBackwardsFrom(prev ApplicationStatus) bool {
	a, okA := statusRank[prev]
	b, okB := statusRank[s]
	return okA && okB && b < a
}

// Application represents a tracked job application owned by a single user.
type Application struct {
	ID                  string            `gorm:"column:application_id;primaryKey"`
	UserID              string            `gorm:"column:user_id;index"`
	Company             string            `gorm:"column:company;index"`
	Role                string            `gorm:"column:role"`
	Status              ApplicationStatus `gorm:"column:status;index"`
	Location            *string           `gorm:"column:location"`
	SalaryRange         *string           `gorm:"column:salary_range"`
	JobPostingURL       *string           `gorm:"column:job_posting_url"`
	Notes               *string           `gorm:"column:notes"`
	AppliedDate         time.Time         `gorm:"column:applied_date"`
	CreatedAt           time.Time         `gorm:"column:created_at;autoCreateTime"`
	LastUpdatedAt       time.Time         `gorm:"column:last_updated_at"`
	LastEmailReceivedAt *time.Time        `gorm:"column:last_email_received_at"`
}

// TableName specifies the table name for GORM
func (Application) TableName() string {
	return "job_applications"
}
