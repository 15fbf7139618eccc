package models

import "time"

// CartLine is a user's intent to order a quantity of a stock
// position. Unique per (user, stock position); the quantity is
// validated against the position's live quantity when the line is
// written, and re-validated at placement time.
type CartLine struct {
	ID              uint           `json:"id" gorm:"primaryKey"`
	UserID          uint           `json:"-" gorm:"uniqueIndex:idx_user_stock_position"`
	StockPositionID uint           `json:"stock_position_id" gorm:"uniqueIndex:idx_user_stock_position"`
	StockPosition   *StockPosition `json:"stock_position,omitempty"`
	Quantity        int            `json:"quantity" gorm:"check:quantity > 0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
