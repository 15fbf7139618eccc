package repositories

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"lavka/internal/apperrors"
	"lavka/internal/models"
)

// GORMOrderRepository is a GORM implementation of OrderRepository.
type GORMOrderRepository struct {
	db *gorm.DB
}

// NewGORMOrderRepository creates a new instance of GORMOrderRepository.
func NewGORMOrderRepository(db *gorm.DB) *GORMOrderRepository {
	return &GORMOrderRepository{db: db}
}

// WithTx returns a repository bound to the given transaction handle.
func (r *GORMOrderRepository) WithTx(tx *gorm.DB) OrderRepository {
	return &GORMOrderRepository{db: tx}
}

// Create stores an order together with any associated recipient and
// address rows.
func (r *GORMOrderRepository) Create(order *models.Order) error {
	if err := r.db.Create(order).Error; err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

// CreateLine stores one order line.
func (r *GORMOrderRepository) CreateLine(line *models.OrderLine) error {
	if err := r.db.Create(line).Error; err != nil {
		if isUniqueViolation(err) {
			return &apperrors.ConflictError{Message: fmt.Sprintf("order already has a line for stock position %d", line.StockPositionID)}
		}
		return fmt.Errorf("failed to create order line: %w", err)
	}
	return nil
}

func (r *GORMOrderRepository) preloaded() *gorm.DB {
	return r.db.
		Preload("Lines").
		Preload("Lines.StockPosition").
		Preload("Lines.StockPosition.Shop").
		Preload("Lines.StockPosition.Product").
		Preload("Lines.StockPosition.Product.Category").
		Preload("Recipient").
		Preload("Recipient.Address")
}

// GetForUser retrieves one of the user's orders with all nested data.
func (r *GORMOrderRepository) GetForUser(userID, orderID uint) (*models.Order, error) {
	var order models.Order
	err := r.preloaded().First(&order, "id = ? AND user_id = ?", orderID, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("order")
		}
		return nil, fmt.Errorf("failed to get order %d: %w", orderID, err)
	}
	return &order, nil
}

// GetByID retrieves an order regardless of owner, used by shop-side
// status transitions.
func (r *GORMOrderRepository) GetByID(orderID uint) (*models.Order, error) {
	var order models.Order
	err := r.preloaded().First(&order, orderID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("order")
		}
		return nil, fmt.Errorf("failed to get order %d: %w", orderID, err)
	}
	return &order, nil
}

// ListForUser returns the user's placed orders, newest first.
func (r *GORMOrderRepository) ListForUser(userID uint) ([]models.Order, error) {
	var orders []models.Order
	err := r.preloaded().
		Where("user_id = ? AND status <> ?", userID, models.OrderStatusFormation).
		Order("created_at desc").
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list orders for user %d: %w", userID, err)
	}
	return orders, nil
}

// ListForShops returns orders with at least one line backed by one of
// the given shops' positions.
func (r *GORMOrderRepository) ListForShops(shopIDs []uint) ([]models.Order, error) {
	if len(shopIDs) == 0 {
		return nil, nil
	}
	var orders []models.Order
	err := r.preloaded().
		Where("orders.status <> ?", models.OrderStatusFormation).
		Where("orders.id IN (?)",
			r.db.Model(&models.OrderLine{}).
				Select("order_lines.order_id").
				Joins("JOIN stock_positions ON stock_positions.id = order_lines.stock_position_id").
				Where("stock_positions.shop_id IN ?", shopIDs)).
		Order("orders.created_at desc").
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list orders for shops %v: %w", shopIDs, err)
	}
	return orders, nil
}

// UpdateStatus transitions an order to a new status, stamping the
// delivery time when provided.
func (r *GORMOrderRepository) UpdateStatus(orderID uint, status models.OrderStatus, deliveredAt *time.Time) error {
	updates := map[string]interface{}{"status": status}
	if deliveredAt != nil {
		updates["delivered_at"] = deliveredAt
	}
	res := r.db.Model(&models.Order{}).Where("id = ?", orderID).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to update status of order %d: %w", orderID, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("order")
	}
	return nil
}
