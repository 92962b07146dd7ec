package model

import "time"

// ActivityLog is one append-only audit entry.
type ActivityLog struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
	Description  string    `gorm:"type:text;not null" json:"description"`
	SubAccountID *string   `gorm:"index" json:"subaccount_id"`
	AgencyID     *string   `gorm:"index" json:"agency_id"`
}
