package repositories

import (
	"time"

	"gorm.io/gorm"

	"lavka/internal/models"
)

// OrderRepository defines the interface for order data access.
// Orders are created only by the placement engine; status updates
// follow the lifecycle state machine.
type OrderRepository interface {
	WithTx(tx *gorm.DB) OrderRepository

	Create(order *models.Order) error
	CreateLine(line *models.OrderLine) error
	GetForUser(userID, orderID uint) (*models.Order, error)
	GetByID(orderID uint) (*models.Order, error)
	// ListForUser returns the user's placed orders, newest first,
	// excluding orders still in formation.
	ListForUser(userID uint) ([]models.Order, error)
	// ListForShops returns orders containing at least one line backed
	// by a position of one of the given shops.
	ListForShops(shopIDs []uint) ([]models.Order, error)
	UpdateStatus(orderID uint, status models.OrderStatus, deliveredAt *time.Time) error
}
