package repositories

import (
	"gorm.io/gorm"

	"lavka/internal/models"
)

// CartRepository defines the interface for cart-line data access.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository

	// ListByUser returns the user's cart lines in ascending id order
	// with position, shop and product data preloaded. The placement
	// engine relies on this ordering for deterministic iteration.
	ListByUser(userID uint) ([]models.CartLine, error)
	GetForUser(userID, lineID uint) (*models.CartLine, error)
	GetByUserAndPosition(userID, positionID uint) (*models.CartLine, error)
	Save(line *models.CartLine) error
	Delete(lineID uint) error
	DeleteByIDs(lineIDs []uint) error
}
