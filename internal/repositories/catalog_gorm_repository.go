package repositories

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"lavka/internal/apperrors"
	"lavka/internal/models"
)

// GORMCatalogRepository is a GORM implementation of CatalogRepository.
type GORMCatalogRepository struct {
	db *gorm.DB
}

// NewGORMCatalogRepository creates a new instance of GORMCatalogRepository.
func NewGORMCatalogRepository(db *gorm.DB) *GORMCatalogRepository {
	return &GORMCatalogRepository{db: db}
}

// WithTx returns a repository bound to the given transaction handle.
func (r *GORMCatalogRepository) WithTx(tx *gorm.DB) CatalogRepository {
	return &GORMCatalogRepository{db: tx}
}

// GetShopByID retrieves a shop by primary key.
func (r *GORMCatalogRepository) GetShopByID(id uint) (*models.Shop, error) {
	var shop models.Shop
	if err := r.db.First(&shop, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("shop")
		}
		return nil, fmt.Errorf("failed to get shop by ID %d: %w", id, err)
	}
	return &shop, nil
}

// GetShopByName retrieves a shop by its unique name.
func (r *GORMCatalogRepository) GetShopByName(name string) (*models.Shop, error) {
	var shop models.Shop
	if err := r.db.First(&shop, "name = ?", name).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("shop")
		}
		return nil, fmt.Errorf("failed to get shop by name %q: %w", name, err)
	}
	return &shop, nil
}

// SaveShop persists all fields of an existing shop.
func (r *GORMCatalogRepository) SaveShop(shop *models.Shop) error {
	if err := r.db.Save(shop).Error; err != nil {
		return fmt.Errorf("failed to save shop: %w", err)
	}
	return nil
}

// ListShopsForUser returns the shops the user represents.
func (r *GORMCatalogRepository) ListShopsForUser(userID uint) ([]models.Shop, error) {
	var shops []models.Shop
	err := r.db.
		Joins("JOIN shop_representatives sr ON sr.shop_id = shops.id").
		Where("sr.user_id = ?", userID).
		Find(&shops).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list shops for user %d: %w", userID, err)
	}
	return shops, nil
}

// IsRepresentative reports whether the user represents the shop.
func (r *GORMCatalogRepository) IsRepresentative(shopID, userID uint) (bool, error) {
	var count int64
	err := r.db.Table("shop_representatives").
		Where("shop_id = ? AND user_id = ?", shopID, userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check shop representative: %w", err)
	}
	return count > 0, nil
}

// ListOrderablePositions returns positions visible in the public
// catalog: not archived, in stock, and belonging to an open shop.
func (r *GORMCatalogRepository) ListOrderablePositions(filter PositionFilter) ([]models.StockPosition, error) {
	query := r.db.
		Joins("JOIN shops ON shops.id = stock_positions.shop_id").
		Where("stock_positions.archived_at IS NULL").
		Where("stock_positions.quantity > 0").
		Where("shops.open = ?", true)

	if filter.ShopID != 0 {
		query = query.Where("stock_positions.shop_id = ?", filter.ShopID)
	}
	if filter.ProductID != 0 {
		query = query.Where("stock_positions.product_id = ?", filter.ProductID)
	}
	if filter.CategoryID != 0 {
		query = query.
			Joins("JOIN products ON products.id = stock_positions.product_id").
			Where("products.category_id = ?", filter.CategoryID)
	}

	var positions []models.StockPosition
	err := query.
		Preload("Shop").
		Preload("Product").
		Preload("Product.Category").
		Preload("Product.Parameters").
		Order("stock_positions.id asc").
		Find(&positions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list orderable positions: %w", err)
	}
	return positions, nil
}

// GetStockPosition retrieves one position with shop and product data.
func (r *GORMCatalogRepository) GetStockPosition(id uint) (*models.StockPosition, error) {
	var position models.StockPosition
	err := r.db.
		Preload("Shop").
		Preload("Product").
		Preload("Product.Category").
		Preload("Product.Parameters").
		First(&position, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("stock position")
		}
		return nil, fmt.Errorf("failed to get stock position %d: %w", id, err)
	}
	return &position, nil
}

// ReserveQuantity decrements a position's quantity in a single
// conditional UPDATE. The quantity guard in the WHERE clause, not a
// prior read, decides whether the reservation succeeds, so two
// concurrent reservations of the same position serialize on the row
// and cannot jointly overdraw it.
func (r *GORMCatalogRepository) ReserveQuantity(positionID uint, quantity int) (bool, error) {
	res := r.db.Model(&models.StockPosition{}).
		Where("id = ? AND archived_at IS NULL AND quantity >= ?", positionID, quantity).
		Update("quantity", gorm.Expr("quantity - ?", quantity))
	if res.Error != nil {
		return false, fmt.Errorf("failed to reserve %d units of position %d: %w", quantity, positionID, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ListActivePositions returns a shop's non-archived positions.
func (r *GORMCatalogRepository) ListActivePositions(shopID uint) ([]models.StockPosition, error) {
	var positions []models.StockPosition
	err := r.db.
		Where("shop_id = ? AND archived_at IS NULL", shopID).
		Order("id asc").
		Find(&positions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active positions for shop %d: %w", shopID, err)
	}
	return positions, nil
}

// PositionHasHistory reports whether any cart or order line
// references the position. Positions with history are archived by the
// import instead of deleted, preserving past orders.
func (r *GORMCatalogRepository) PositionHasHistory(positionID uint) (bool, error) {
	var count int64
	if err := r.db.Model(&models.OrderLine{}).
		Where("stock_position_id = ?", positionID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to count order lines for position %d: %w", positionID, err)
	}
	if count > 0 {
		return true, nil
	}
	if err := r.db.Model(&models.CartLine{}).
		Where("stock_position_id = ?", positionID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to count cart lines for position %d: %w", positionID, err)
	}
	return count > 0, nil
}

// ArchivePosition soft-deletes a position, forcing its quantity to 0.
func (r *GORMCatalogRepository) ArchivePosition(positionID uint, at time.Time) error {
	err := r.db.Model(&models.StockPosition{}).
		Where("id = ?", positionID).
		Updates(map[string]interface{}{"quantity": 0, "archived_at": at}).Error
	if err != nil {
		return fmt.Errorf("failed to archive position %d: %w", positionID, err)
	}
	return nil
}

// DeletePosition hard-deletes a position without history.
func (r *GORMCatalogRepository) DeletePosition(positionID uint) error {
	if err := r.db.Delete(&models.StockPosition{}, positionID).Error; err != nil {
		return fmt.Errorf("failed to delete position %d: %w", positionID, err)
	}
	return nil
}

// CountPositionsForProduct counts all positions, archived included,
// referencing the product.
func (r *GORMCatalogRepository) CountPositionsForProduct(productID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.StockPosition{}).
		Where("product_id = ?", productID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count positions for product %d: %w", productID, err)
	}
	return count, nil
}

// DeleteProduct removes a product and, by cascade, its parameters.
func (r *GORMCatalogRepository) DeleteProduct(productID uint) error {
	if err := r.db.Where("product_id = ?", productID).Delete(&models.ProductParameter{}).Error; err != nil {
		return fmt.Errorf("failed to delete parameters of product %d: %w", productID, err)
	}
	if err := r.db.Delete(&models.Product{}, productID).Error; err != nil {
		return fmt.Errorf("failed to delete product %d: %w", productID, err)
	}
	return nil
}

// GetOrCreateCategory returns the category with the given name,
// creating it if absent.
func (r *GORMCatalogRepository) GetOrCreateCategory(name string) (*models.Category, error) {
	var category models.Category
	err := r.db.Where(models.Category{Name: name}).FirstOrCreate(&category).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get or create category %q: %w", name, err)
	}
	return &category, nil
}

// CreateProduct stores a new product together with its parameters.
func (r *GORMCatalogRepository) CreateProduct(product *models.Product) error {
	if err := r.db.Create(product).Error; err != nil {
		if isUniqueViolation(err) {
			return &apperrors.ConflictError{Message: fmt.Sprintf("product %q violates a uniqueness constraint", product.Name)}
		}
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

// CreatePosition stores a new stock position.
func (r *GORMCatalogRepository) CreatePosition(position *models.StockPosition) error {
	if err := r.db.Create(position).Error; err != nil {
		if isUniqueViolation(err) {
			return &apperrors.ConflictError{Message: fmt.Sprintf("position with external id %d already exists for this shop", position.ExternalID)}
		}
		return fmt.Errorf("failed to create stock position: %w", err)
	}
	return nil
}
