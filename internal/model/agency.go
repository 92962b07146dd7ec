package model

import "time"

// Agency is the top-level tenant.
type Agency struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Name      string    `gorm:"not null" json:"name"`

	SubAccounts []SubAccount `gorm:"foreignKey:AgencyID" json:"sub_accounts,omitempty"`
}

// SubAccount is a workspace under an agency.
type SubAccount struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Name      string    `gorm:"not null" json:"name"`
	AgencyID  string    `gorm:"not null;index" json:"agency_id"`
}
