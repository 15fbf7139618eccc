package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Shop is a vendor whose catalog is imported from price lists.
// Orders against its positions are accepted only while Open is true.
type Shop struct {
	ID              uint   `json:"id" gorm:"primaryKey"`
	Name            string `json:"name" gorm:"uniqueIndex;type:varchar(40)"`
	Open            bool   `json:"open"`
	Representatives []User `json:"-" gorm:"many2many:shop_representatives;"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Category groups products across shops.
type Category struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"uniqueIndex;type:varchar(40)"`
}

// Product is the abstract good; the priced, quantified listing of a
// product in a particular shop is a StockPosition.
type Product struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Name        string    `json:"name" gorm:"type:varchar(80)"`
	Model       string    `json:"model" gorm:"type:varchar(40)"`
	Description string    `json:"description" gorm:"type:varchar(255)"`
	CategoryID  uint      `json:"category_id" gorm:"index"`
	Category    *Category `json:"category,omitempty"`

	Parameters []ProductParameter `json:"parameters,omitempty" gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
}

// ProductParameter is a named characteristic of a product, unique per
// (product, name).
type ProductParameter struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	ProductID uint   `json:"-" gorm:"uniqueIndex:idx_product_parameter"`
	Name      string `json:"name" gorm:"uniqueIndex:idx_product_parameter;type:varchar(40)"`
	Value     string `json:"value" gorm:"type:varchar(50)"`
}

// StockPosition is a shop's priced, quantified listing of a product.
// Once a position has been referenced by a cart or order line it is
// archived instead of deleted, so historical orders keep their data;
// the uniqueness constraint includes archived_at to allow archived
// duplicates of the same (shop, product, external_id).
type StockPosition struct {
	ID         uint             `json:"id" gorm:"primaryKey"`
	ShopID     uint             `json:"shop_id" gorm:"uniqueIndex:idx_shop_product_external"`
	Shop       *Shop            `json:"shop,omitempty"`
	ProductID  uint             `json:"product_id" gorm:"uniqueIndex:idx_shop_product_external"`
	Product    *Product         `json:"product,omitempty"`
	ExternalID uint             `json:"external_id" gorm:"uniqueIndex:idx_shop_product_external"`
	Price      decimal.Decimal  `json:"price" gorm:"type:numeric(18,2)"`
	PriceRRC   *decimal.Decimal `json:"price_rrc" gorm:"type:numeric(18,2)"`
	Quantity   int              `json:"quantity" gorm:"check:quantity >= 0"`
	ArchivedAt *time.Time       `json:"archived_at" gorm:"uniqueIndex:idx_shop_product_external"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Archived reports whether the position has been soft-deleted.
func (p *StockPosition) Archived() bool {
	return p.ArchivedAt != nil
}

// Orderable reports whether the position may back a new cart or order
// line. The Shop association must be loaded.
func (p *StockPosition) Orderable() bool {
	return !p.Archived() && p.Quantity > 0 && p.Shop != nil && p.Shop.Open
}
