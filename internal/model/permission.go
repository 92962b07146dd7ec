package model

import (
	"time"
)

// Permission grants or revokes one user's access to one sub-account.
// (UserEmail, SubAccountID) is unique; Access is the only field that
// changes after creation.
type Permission struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserEmail    string `gorm:"not null;uniqueIndex:idx_permission_user_subaccount" json:"user_email"`
	SubAccountID string `gorm:"not null;uniqueIndex:idx_permission_user_subaccount" json:"sub_account_id"`
	Access       bool   `gorm:"not null;default:false" json:"access"`

	SubAccount SubAccount `gorm:"foreignKey:SubAccountID" json:"sub_account"`
}

// FindPermission returns the permission for subAccountID in perms, or nil.
func FindPermission(perms []Permission, subAccountID string) *Permission {
	for i := range perms {
		if perms[i].SubAccountID == subAccountID {
			return &perms[i]
		}
	}
	return nil
}
