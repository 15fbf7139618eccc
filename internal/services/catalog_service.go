package services

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"lavka/internal/apperrors"
	"lavka/internal/models"
	"lavka/internal/repositories"
)

// CatalogService handles product listing and price-list imports.
type CatalogService struct {
	db          *gorm.DB
	catalogRepo repositories.CatalogRepository
	validate    *validator.Validate
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(db *gorm.DB, catalogRepo repositories.CatalogRepository) *CatalogService {
	return &CatalogService{
		db:          db,
		catalogRepo: catalogRepo,
		validate:    validator.New(),
	}
}

// PositionView is a stock position as shown in the public catalog.
type PositionView struct {
	ID         uint             `json:"id"`
	ExternalID uint             `json:"external_id"`
	Price      decimal.Decimal  `json:"price"`
	PriceRRC   *decimal.Decimal `json:"price_rrc"`
	Quantity   int              `json:"quantity"`
	Shop       *models.Shop     `json:"shop"`
}

// ProductView is a product with its orderable positions grouped.
type ProductView struct {
	ID          uint                      `json:"id"`
	Name        string                    `json:"name"`
	Model       string                    `json:"model"`
	Description string                    `json:"description"`
	Category    *models.Category          `json:"category"`
	Parameters  []models.ProductParameter `json:"parameters"`
	Positions   []PositionView            `json:"positions"`
}

// ListProducts returns products that have at least one orderable
// position, optionally filtered by shop or category.
func (s *CatalogService) ListProducts(filter repositories.PositionFilter) ([]ProductView, error) {
	positions, err := s.catalogRepo.ListOrderablePositions(filter)
	if err != nil {
		return nil, err
	}
	return groupPositionsByProduct(positions), nil
}

// GetProduct returns one product with its orderable positions, or a
// not-found error when the product is not orderable anywhere.
func (s *CatalogService) GetProduct(productID uint) (*ProductView, error) {
	views, err := s.ListProducts(repositories.PositionFilter{ProductID: productID})
	if err != nil {
		return nil, err
	}
	if len(views) == 0 {
		return nil, apperrors.NotFound("product")
	}
	return &views[0], nil
}

func groupPositionsByProduct(positions []models.StockPosition) []ProductView {
	views := make([]ProductView, 0)
	indexByProduct := make(map[uint]int)

	for _, position := range positions {
		if position.Product == nil {
			continue
		}
		idx, ok := indexByProduct[position.ProductID]
		if !ok {
			views = append(views, ProductView{
				ID:          position.Product.ID,
				Name:        position.Product.Name,
				Model:       position.Product.Model,
				Description: position.Product.Description,
				Category:    position.Product.Category,
				Parameters:  position.Product.Parameters,
			})
			idx = len(views) - 1
			indexByProduct[position.ProductID] = idx
		}
		views[idx].Positions = append(views[idx].Positions, PositionView{
			ID:         position.ID,
			ExternalID: position.ExternalID,
			Price:      position.Price,
			PriceRRC:   position.PriceRRC,
			Quantity:   position.Quantity,
			Shop:       position.Shop,
		})
	}
	return views
}

// ListUserShops returns the shops the user represents.
func (s *CatalogService) ListUserShops(userID uint) ([]models.Shop, error) {
	return s.catalogRepo.ListShopsForUser(userID)
}

// SetShopOpen toggles whether a shop accepts orders. Only a
// representative of the shop may do so.
func (s *CatalogService) SetShopOpen(userID, shopID uint, open bool) (*models.Shop, error) {
	shop, err := s.catalogRepo.GetShopByID(shopID)
	if err != nil {
		return nil, err
	}
	isRep, err := s.catalogRepo.IsRepresentative(shop.ID, userID)
	if err != nil {
		return nil, err
	}
	if !isRep {
		return nil, &apperrors.ForbiddenError{Message: fmt.Sprintf("you are not a %q shop representative", shop.Name)}
	}

	shop.Open = open
	if err := s.catalogRepo.SaveShop(shop); err != nil {
		return nil, err
	}
	return shop, nil
}

// ImportCategory is one categories[] entry of a price-list document.
type ImportCategory struct {
	ID   uint   `yaml:"id" validate:"required"`
	Name string `yaml:"name" validate:"required,max=40"`
}

// ImportGood is one goods[] entry of a price-list document.
type ImportGood struct {
	ID          uint              `yaml:"id" validate:"required"`
	Name        string            `yaml:"name" validate:"required,max=80"`
	Category    uint              `yaml:"category" validate:"required"`
	Model       string            `yaml:"model" validate:"max=40"`
	Description string            `yaml:"description" validate:"max=255"`
	Price       float64           `yaml:"price" validate:"required,gt=0"`
	PriceRRC    *float64          `yaml:"price_rrc" validate:"omitempty,gt=0"`
	Quantity    int               `yaml:"quantity" validate:"gte=0"`
	Parameters  map[string]string `yaml:"parameters"`
}

// ImportFile is a shop's full price-list document.
type ImportFile struct {
	Shop       string           `yaml:"shop" validate:"required,max=40"`
	Categories []ImportCategory `yaml:"categories" validate:"required,dive"`
	Goods      []ImportGood     `yaml:"goods" validate:"required,dive"`
}

// ImportPriceList replaces a shop's catalog from a YAML price list.
// The caller must represent the named shop. The whole replacement is
// one transaction: existing active positions are archived when they
// have cart/order history and deleted otherwise (orphaned products
// are removed too), then the file's goods are inserted. Any failure
// rejects the file with no partial writes.
func (s *CatalogService) ImportPriceList(userID uint, data []byte) error {
	var file ImportFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return apperrors.NewValidation("file", fmt.Sprintf("file parsing error: %v", err))
	}
	if err := s.validate.Struct(file); err != nil {
		return importValidationError(err)
	}

	shop, err := s.catalogRepo.GetShopByName(file.Shop)
	if err != nil {
		return err
	}
	isRep, err := s.catalogRepo.IsRepresentative(shop.ID, userID)
	if err != nil {
		return err
	}
	if !isRep {
		return &apperrors.ForbiddenError{Message: fmt.Sprintf("you are not a %q shop representative", shop.Name)}
	}

	// Every good must reference a category declared in the file.
	categoryNames := make(map[uint]string, len(file.Categories))
	for _, category := range file.Categories {
		categoryNames[category.ID] = category.Name
	}
	for _, good := range file.Goods {
		if _, ok := categoryNames[good.Category]; !ok {
			return apperrors.NewValidation("goods",
				fmt.Sprintf("category with id=%d for product with id=%d was not found in the file", good.Category, good.ID))
		}
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		repo := s.catalogRepo.WithTx(tx)

		if err := retireActivePositions(repo, shop.ID); err != nil {
			return err
		}

		for _, good := range file.Goods {
			category, err := repo.GetOrCreateCategory(categoryNames[good.Category])
			if err != nil {
				return err
			}

			product := &models.Product{
				Name:        good.Name,
				Model:       good.Model,
				Description: good.Description,
				CategoryID:  category.ID,
			}
			for name, value := range good.Parameters {
				product.Parameters = append(product.Parameters, models.ProductParameter{
					Name:  name,
					Value: value,
				})
			}
			if err := repo.CreateProduct(product); err != nil {
				return err
			}

			position := &models.StockPosition{
				ShopID:     shop.ID,
				ProductID:  product.ID,
				ExternalID: good.ID,
				Price:      decimal.NewFromFloat(good.Price),
				Quantity:   good.Quantity,
			}
			if good.PriceRRC != nil {
				rrc := decimal.NewFromFloat(*good.PriceRRC)
				position.PriceRRC = &rrc
			}
			if err := repo.CreatePosition(position); err != nil {
				return err
			}
		}
		return nil
	})
}

// retireActivePositions archives or deletes a shop's current
// positions ahead of an import. A position referenced by any cart or
// order line is archived to preserve history; otherwise it is
// deleted, along with its product if no other position references it.
func retireActivePositions(repo repositories.CatalogRepository, shopID uint) error {
	positions, err := repo.ListActivePositions(shopID)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, position := range positions {
		hasHistory, err := repo.PositionHasHistory(position.ID)
		if err != nil {
			return err
		}
		if hasHistory {
			if err := repo.ArchivePosition(position.ID, now); err != nil {
				return err
			}
			continue
		}

		if err := repo.DeletePosition(position.ID); err != nil {
			return err
		}
		remaining, err := repo.CountPositionsForProduct(position.ProductID)
		if err != nil {
			return err
		}
		if remaining == 0 {
			if err := repo.DeleteProduct(position.ProductID); err != nil {
				return err
			}
		}
	}
	return nil
}

// importValidationError converts validator output into the field-level
// error shape.
func importValidationError(err error) error {
	verr := &apperrors.ValidationError{}
	if fieldErrs, ok := err.(validator.ValidationErrors); ok {
		for _, fieldErr := range fieldErrs {
			verr.Add(fieldErr.Namespace(), fmt.Sprintf("failed %q validation", fieldErr.Tag()))
		}
		return verr
	}
	verr.Add("file", err.Error())
	return verr
}
