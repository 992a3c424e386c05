package models

import "time"

// Account holds the Gmail link state for a user: OAuth tokens and the
// history cursor the push ingester resumes from.
type Account struct {
	ID                   string     `gorm:"column:id;primaryKey"`
	UserID               string     `gorm:"column:user_id;index"`
	GmailAddress         string     `gorm:"column:gmail_address;uniqueIndex"`
	AccessToken          *string    `gorm:"column:access_token"`
	RefreshToken         *string    `gorm:"column:refresh_token"`
	AccessTokenExpiresAt *time.Time `gorm:"column:access_token_expires_at"`
	LastHistoryID        uint64     `gorm:"column:last_history_id"`
	CreatedAt            time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (Account) TableName() string {
	return "accounts"
}
