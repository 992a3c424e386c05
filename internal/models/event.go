package models

import "time"

type ApplicationEventType string

// Application event type constants
const (
	EventApplicationSubmitted ApplicationEventType = "APPLICATION_SUBMITTED"
	EventApplicationReceived  ApplicationEventType = "APPLICATION_RECEIVED"
	EventApplicationViewed    ApplicationEventType = "APPLICATION_VIEWED"
	EventApplicationReviewed  ApplicationEventType = "APPLICATION_REVIEWED"
	EventAssessmentReceived   ApplicationEventType = "ASSESSMENT_RECEIVED"
	EventAssessmentCompleted  ApplicationEventType = "ASSESSMENT_COMPLETED"
	EventInterviewScheduled   ApplicationEventType = "INTERVIEW_SCHEDULED"
	EventInterviewCompleted   ApplicationEventType = "INTERVIEW_COMPLETED"
	EventReferenceRequested   ApplicationEventType = "REFERENCE_REQUESTED"
	EventOfferReceived        ApplicationEventType = "OFFER_RECEIVED"
	EventOfferAccepted        ApplicationEventType = "OFFER_ACCEPTED"
	EventOfferDeclined        ApplicationEventType = "OFFER_DECLINED"
	EventApplicationRejected  ApplicationEventType = "APPLICATION_REJECTED"
	EventApplicationWithdrawn ApplicationEventType = "APPLICATION_WITHDRAWN"
)

var validEventTypes = map[ApplicationEventType]struct{}{
	EventApplicationSubmitted: {},
	EventApplicationReceived:  {},
	EventApplicationViewed:    {},
	EventApplicationReviewed:  {},
	EventAssessmentReceived:   {},
	EventAssessmentCompleted:  {},
	EventInterviewScheduled:   {},
	EventInterviewCompleted:   {},
	EventReferenceRequested:   {},
	EventOfferReceived:        {},
	EventOfferAccepted:        {},
	EventOfferDeclined:        {},
	EventApplicationRejected:  {},
	EventApplicationWithdrawn: {},
}

// IsValid reports whether t is one of the defined event types.
func (t ApplicationEventType) IsValid() bool {
	_, ok := validEventTypes[t]
	return ok
}

// ApplicationEvent is a single timeline entry on an application. Events are
// immutable once created and are removed only by cascade when their
// application is deleted.
type ApplicationEvent struct {
	ID            string               `gorm:"column:event_id;primaryKey"`
	ApplicationID string               `gorm:"column:application_id;index"`
	EventType     ApplicationEventType `gorm:"column:event_type"`
	EventDate     time.Time            `gorm:"column:event_date"`
	Description   *string              `gorm:"column:description"`
	Location      *string              `gorm:"column:location"`
	ContactPerson *string              `gorm:"column:contact_person"`
	Notes         *string              `gorm:"column:notes"`
	EmailID       *string              `gorm:"column:email_id"`
	CreatedAt     time.Time            `gorm:"column:created_at;autoCreateTime"`
}

// TableName specifies the table name for GORM
func (ApplicationEvent) TableName() string {
	return "application_events"
}
