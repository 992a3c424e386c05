package models

import "time"

type EmailIntent string

// Email intent constants, the classifier's top-level categorization.
const (
	IntentNewApplication   EmailIntent = "NEW_APPLICATION"
	IntentApplicationEvent EmailIntent = "APPLICATION_EVENT"
	IntentGeneral          EmailIntent = "GENERAL"
)

// IsValid reports whether i is one of the defined intents.
func (i EmailIntent) IsValid() bool {
	switch i {
	case IntentNewApplication, IntentApplicationEvent, IntentGeneral:
		return true
	}
	return false
}

// Email is the audit record for one inbound message. ExternalEmailID is the
// source mail system's message id and is unique per user; a second insert
// with the same pair is a duplicate, not a new row.
type Email struct {
	ID              string     `gorm:"column:email_id;primaryKey"`
	UserID          string     `gorm:"column:user_id;index:idx_emails_user_external,unique"`
	ExternalEmailID string     `gorm:"column:external_email_id;index:idx_emails_user_external,unique"`
	ApplicationID   *string    `gorm:"column:application_id;index"`
	Sender          string     `gorm:"column:sender"`
	Recipient       string     `gorm:"column:recipient"`
	Subject         string     `gorm:"column:subject"`
	BodyText        string     `gorm:"column:body_text"`
	BodyHTML        *string    `gorm:"column:body_html"`
	ReceivedAt      time.Time  `gorm:"column:received_at"`
	ParsedAt        *time.Time `gorm:"column:parsed_at"`
	ConfidenceScore *float64   `gorm:"column:confidence_score"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime"`
}

// TableName specifies the table name for GORM
func (Email) TableName() string {
	return "emails"
}
