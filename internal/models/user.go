package models

import "time"

// User represents an account in the marketplace. Accounts are created
// inactive and become active once the email is verified.
type User struct {
	ID             uint   `json:"id" gorm:"primaryKey"`
	Email          string `json:"email" gorm:"uniqueIndex;type:varchar(255)" validate:"required,email"`
	Password       string `json:"-" gorm:"type:varchar(255)"` // bcrypt hash, never serialized
	EmailConfirmed bool   `json:"email_confirmed"`
	IsActive       bool   `json:"is_active"`
	IsAdmin        bool   `json:"is_admin"`

	FirstName  string `json:"first_name" gorm:"type:varchar(30)" validate:"required,max=30"`
	LastName   string `json:"last_name" gorm:"type:varchar(30)" validate:"required,max=30"`
	Patronymic string `json:"patronymic" gorm:"type:varchar(30)" validate:"max=30"`
	Company    string `json:"company" gorm:"type:varchar(50)" validate:"max=50"`
	Position   string `json:"position" gorm:"type:varchar(50)" validate:"max=50"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ConfirmationCodeLength is the number of digits in a one-time code.
const ConfirmationCodeLength = 10

// ConfirmationCode is a one-time numeric code sent to a user's email.
// A user has at most one live code: generating a new one supersedes
// the previous, and successful verification deletes it.
type ConfirmationCode struct {
	ID        uint       `json:"id" gorm:"primaryKey"`
	UserID    uint       `json:"user_id" gorm:"uniqueIndex"`
	Value     string     `json:"-" gorm:"type:varchar(10)"`
	CreatedAt time.Time  `json:"created_at"`
	SentAt    *time.Time `json:"sent_at"`
}
