package repositories

import (
	"time"

	"gorm.io/gorm"

	"lavka/internal/models"
)

// UserRepository defines the interface for user and confirmation-code
// data access.
type UserRepository interface {
	WithTx(tx *gorm.DB) UserRepository
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	Update(user *models.User) error

	// ReplaceConfirmationCode deletes any live code for the user and
	// stores the given one.
	ReplaceConfirmationCode(code *models.ConfirmationCode) error
	GetConfirmationCode(userID uint) (*models.ConfirmationCode, error)
	DeleteConfirmationCode(userID uint) error
	MarkConfirmationCodeSent(codeID uint, at time.Time) error
}
