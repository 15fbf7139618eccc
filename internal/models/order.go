package models

import "time"

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusFormation OrderStatus = "FORMATION"
	OrderStatusNew       OrderStatus = "NEW"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusAssembled OrderStatus = "ASSEMBLED"
	OrderStatusSent      OrderStatus = "SENT"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCanceled  OrderStatus = "CANCELED"
)

// orderTransitions lists the forward edges of the status machine.
// CANCELED is additionally reachable from every pre-DELIVERED state.
var orderTransitions = map[OrderStatus]OrderStatus{
	OrderStatusFormation: OrderStatusNew,
	OrderStatusNew:       OrderStatusConfirmed,
	OrderStatusConfirmed: OrderStatusAssembled,
	OrderStatusAssembled: OrderStatusSent,
	OrderStatusSent:      OrderStatusDelivered,
}

// CanTransition reports whether an order may move from one status to
// another.
func CanTransition(from, to OrderStatus) bool {
	if to == OrderStatusCanceled {
		return from != OrderStatusDelivered && from != OrderStatusCanceled
	}
	return orderTransitions[from] == to
}

// Order is a placed (or in-placement) order. It exclusively owns its
// lines and recipient: deleting the order cascades to them.
type Order struct {
	ID          uint        `json:"id" gorm:"primaryKey"`
	Number      string      `json:"number" gorm:"uniqueIndex;type:varchar(36)"`
	UserID      uint        `json:"user_id" gorm:"index"`
	Status      OrderStatus `json:"status" gorm:"type:varchar(20)"`
	CreatedAt   time.Time   `json:"created_at"`
	DeliveredAt *time.Time  `json:"delivered_at"`

	Lines     []OrderLine `json:"lines,omitempty" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Recipient *Recipient  `json:"recipient,omitempty" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

// OrderLine records a reserved quantity of a stock position. Created
// atomically with the stock decrement and never updated afterwards.
type OrderLine struct {
	ID              uint           `json:"id" gorm:"primaryKey"`
	OrderID         uint           `json:"-" gorm:"uniqueIndex:idx_order_stock_position"`
	StockPositionID uint           `json:"stock_position_id" gorm:"uniqueIndex:idx_order_stock_position"`
	StockPosition   *StockPosition `json:"stock_position,omitempty"`
	Quantity        int            `json:"quantity" gorm:"check:quantity > 0"`
}

// Recipient holds the shipping contact for an order, one per order.
type Recipient struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	OrderID    uint   `json:"-" gorm:"uniqueIndex"`
	FirstName  string `json:"first_name" gorm:"type:varchar(30)"`
	LastName   string `json:"last_name" gorm:"type:varchar(30)"`
	Patronymic string `json:"patronymic" gorm:"type:varchar(30)"`
	Email      string `json:"email" gorm:"type:varchar(50)"`
	Phone      string `json:"phone" gorm:"type:varchar(20)"`

	Address *Address `json:"address,omitempty" gorm:"foreignKey:RecipientID;constraint:OnDelete:CASCADE"`
}

// Address is the shipping address of a recipient, one per recipient.
type Address struct {
	ID            uint   `json:"id" gorm:"primaryKey"`
	RecipientID   uint   `json:"-" gorm:"uniqueIndex"`
	City          string `json:"city" gorm:"type:varchar(50)"`
	Street        string `json:"street" gorm:"type:varchar(50)"`
	HouseNumber   string `json:"house_number" gorm:"type:varchar(10)"`
	HouseBlock    string `json:"house_block" gorm:"type:varchar(10)"`
	HouseBuilding string `json:"house_building" gorm:"type:varchar(10)"`
	Apartment     string `json:"apartment" gorm:"type:varchar(10)"`
}
