package model

import (
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type User struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastLogin    *time.Time `json:"last_login"`
	Email        string     `gorm:"uniqueIndex;not null" json:"email"`
	Name         string     `gorm:"not null" json:"name"`
	AvatarURL    string     `json:"avatar_url"`
	Password     string     `gorm:"not null" json:"-"`
	TokenVersion int64      `gorm:"default:1" json:"-"`
	TelegramID   int64      `gorm:"index" json:"telegram_id"`
	Role         Role       `gorm:"type:varchar(32);not null" json:"role"`
	AgencyID     string     `gorm:"index" json:"agency_id"`

	Permissions []Permission `gorm:"foreignKey:UserEmail;references:Email" json:"permissions,omitempty"`
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.Password != "" {
		u.Password, err = HashPassword(u.Password)
	}
	return
}

// CheckPassword compares password with the stored hash.
func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) == nil
}
