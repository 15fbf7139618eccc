package repositories

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"lavka/internal/apperrors"
	"lavka/internal/models"
)

// GORMUserRepository is a GORM implementation of UserRepository.
type GORMUserRepository struct {
	db *gorm.DB
}

// NewGORMUserRepository creates a new instance of GORMUserRepository.
func NewGORMUserRepository(db *gorm.DB) *GORMUserRepository {
	return &GORMUserRepository{db: db}
}

// WithTx returns a repository bound to the given transaction handle.
func (r *GORMUserRepository) WithTx(tx *gorm.DB) UserRepository {
	return &GORMUserRepository{db: tx}
}

// Create stores a new user.
func (r *GORMUserRepository) Create(user *models.User) error {
	if err := r.db.Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			return &apperrors.ConflictError{Message: fmt.Sprintf("user with email %s already exists", user.Email)}
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by primary key.
func (r *GORMUserRepository) GetByID(id uint) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("user")
		}
		return nil, fmt.Errorf("failed to get user by ID %d: %w", id, err)
	}
	return &user, nil
}

// GetByEmail retrieves a user by email.
func (r *GORMUserRepository) GetByEmail(email string) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("user")
		}
		return nil, fmt.Errorf("failed to get user by email %s: %w", email, err)
	}
	return &user, nil
}

// Update persists all fields of an existing user.
func (r *GORMUserRepository) Update(user *models.User) error {
	res := r.db.Save(user)
	if res.Error != nil {
		return fmt.Errorf("failed to update user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("user")
	}
	return nil
}

// ReplaceConfirmationCode deletes any live code for the user and
// stores the given one, keeping at most one code per user.
func (r *GORMUserRepository) ReplaceConfirmationCode(code *models.ConfirmationCode) error {
	if err := r.db.Where("user_id = ?", code.UserID).Delete(&models.ConfirmationCode{}).Error; err != nil {
		return fmt.Errorf("failed to delete previous confirmation code: %w", err)
	}
	if err := r.db.Create(code).Error; err != nil {
		return fmt.Errorf("failed to create confirmation code: %w", err)
	}
	return nil
}

// GetConfirmationCode returns the live code for a user.
func (r *GORMUserRepository) GetConfirmationCode(userID uint) (*models.ConfirmationCode, error) {
	var code models.ConfirmationCode
	if err := r.db.First(&code, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("confirmation code")
		}
		return nil, fmt.Errorf("failed to get confirmation code for user %d: %w", userID, err)
	}
	return &code, nil
}

// DeleteConfirmationCode removes the live code for a user.
func (r *GORMUserRepository) DeleteConfirmationCode(userID uint) error {
	if err := r.db.Where("user_id = ?", userID).Delete(&models.ConfirmationCode{}).Error; err != nil {
		return fmt.Errorf("failed to delete confirmation code for user %d: %w", userID, err)
	}
	return nil
}

// MarkConfirmationCodeSent stamps the code with its delivery time.
func (r *GORMUserRepository) MarkConfirmationCodeSent(codeID uint, at time.Time) error {
	if err := r.db.Model(&models.ConfirmationCode{}).Where("id = ?", codeID).
		Update("sent_at", at).Error; err != nil {
		return fmt.Errorf("failed to mark confirmation code %d sent: %w", codeID, err)
	}
	return nil
}

// isUniqueViolation detects duplicate-key failures from both the
// postgres and sqlite drivers.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "constraint failed")
}
