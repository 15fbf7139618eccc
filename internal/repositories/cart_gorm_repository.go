package repositories

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"lavka/internal/apperrors"
	"lavka/internal/models"
)

// GORMCartRepository is a GORM implementation of CartRepository.
type GORMCartRepository struct {
	db *gorm.DB
}

// NewGORMCartRepository creates a new instance of GORMCartRepository.
func NewGORMCartRepository(db *gorm.DB) *GORMCartRepository {
	return &GORMCartRepository{db: db}
}

// WithTx returns a repository bound to the given transaction handle.
func (r *GORMCartRepository) WithTx(tx *gorm.DB) CartRepository {
	return &GORMCartRepository{db: tx}
}

// ListByUser returns the user's cart lines in ascending id order.
func (r *GORMCartRepository) ListByUser(userID uint) ([]models.CartLine, error) {
	var lines []models.CartLine
	err := r.db.
		Where("user_id = ?", userID).
		Preload("StockPosition").
		Preload("StockPosition.Shop").
		Preload("StockPosition.Product").
		Preload("StockPosition.Product.Category").
		Preload("StockPosition.Product.Parameters").
		Order("id asc").
		Find(&lines).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list cart lines for user %d: %w", userID, err)
	}
	return lines, nil
}

// GetForUser retrieves one of the user's cart lines.
func (r *GORMCartRepository) GetForUser(userID, lineID uint) (*models.CartLine, error) {
	var line models.CartLine
	if err := r.db.First(&line, "id = ? AND user_id = ?", lineID, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("cart line")
		}
		return nil, fmt.Errorf("failed to get cart line %d: %w", lineID, err)
	}
	return &line, nil
}

// GetByUserAndPosition retrieves the user's line for a position, used
// by the upsert path.
func (r *GORMCartRepository) GetByUserAndPosition(userID, positionID uint) (*models.CartLine, error) {
	var line models.CartLine
	err := r.db.First(&line, "user_id = ? AND stock_position_id = ?", userID, positionID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("cart line")
		}
		return nil, fmt.Errorf("failed to get cart line for position %d: %w", positionID, err)
	}
	return &line, nil
}

// Save creates or updates a cart line.
func (r *GORMCartRepository) Save(line *models.CartLine) error {
	if err := r.db.Save(line).Error; err != nil {
		if isUniqueViolation(err) {
			return &apperrors.ConflictError{Message: "cart already has a line for this stock position"}
		}
		return fmt.Errorf("failed to save cart line: %w", err)
	}
	return nil
}

// Delete removes one cart line.
func (r *GORMCartRepository) Delete(lineID uint) error {
	res := r.db.Delete(&models.CartLine{}, lineID)
	if res.Error != nil {
		return fmt.Errorf("failed to delete cart line %d: %w", lineID, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("cart line")
	}
	return nil
}

// DeleteByIDs bulk-deletes cart lines, used once after a successful
// placement consumes them.
func (r *GORMCartRepository) DeleteByIDs(lineIDs []uint) error {
	if len(lineIDs) == 0 {
		return nil
	}
	if err := r.db.Delete(&models.CartLine{}, lineIDs).Error; err != nil {
		return fmt.Errorf("failed to delete cart lines %v: %w", lineIDs, err)
	}
	return nil
}
