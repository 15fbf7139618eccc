package repositories

import (
	"time"

	"gorm.io/gorm"

	"lavka/internal/models"
)

// PositionFilter narrows product listings.
type PositionFilter struct {
	ShopID     uint
	CategoryID uint
	ProductID  uint
}

// CatalogRepository defines the interface for shop, product and
// stock-position data access. Reads used by the placement engine are
// GetStockPosition and ReserveQuantity; the rest serve listing and
// the price-list import.
type CatalogRepository interface {
	WithTx(tx *gorm.DB) CatalogRepository

	GetShopByID(id uint) (*models.Shop, error)
	GetShopByName(name string) (*models.Shop, error)
	SaveShop(shop *models.Shop) error
	ListShopsForUser(userID uint) ([]models.Shop, error)
	IsRepresentative(shopID, userID uint) (bool, error)

	// ListOrderablePositions returns non-archived positions with
	// quantity > 0 in open shops, with product, category, parameters
	// and shop preloaded.
	ListOrderablePositions(filter PositionFilter) ([]models.StockPosition, error)
	GetStockPosition(id uint) (*models.StockPosition, error)

	// ReserveQuantity atomically decrements a position's quantity.
	// It reports false when the position is archived or has fewer
	// units than requested; the conditional update is the
	// authoritative stock check under concurrency.
	ReserveQuantity(positionID uint, quantity int) (bool, error)

	// Import support.
	ListActivePositions(shopID uint) ([]models.StockPosition, error)
	PositionHasHistory(positionID uint) (bool, error)
	ArchivePosition(positionID uint, at time.Time) error
	DeletePosition(positionID uint) error
	CountPositionsForProduct(productID uint) (int64, error)
	DeleteProduct(productID uint) error
	GetOrCreateCategory(name string) (*models.Category, error)
	CreateProduct(product *models.Product) error
	CreatePosition(position *models.StockPosition) error
}
