package services

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"lavka/internal/apperrors"
	"lavka/internal/models"
	"lavka/internal/repositories"
)

// CartService handles business logic related to shopping carts.
type CartService struct {
	cartRepo    repositories.CartRepository
	catalogRepo repositories.CatalogRepository
}

// NewCartService creates a new CartService.
func NewCartService(cartRepo repositories.CartRepository, catalogRepo repositories.CatalogRepository) *CartService {
	return &CartService{
		cartRepo:    cartRepo,
		catalogRepo: catalogRepo,
	}
}

// CartLineView is a cart line with its derived sum.
type CartLineView struct {
	models.CartLine
	Sum decimal.Decimal `json:"sum"`
}

// CartView is a user's cart with derived totals. The totals use
// price * quantity for every line, matching the order totals.
type CartView struct {
	Lines         []CartLineView  `json:"lines"`
	TotalQuantity int             `json:"total_quantity"`
	TotalSum      decimal.Decimal `json:"total_sum"`
}

// ListCart returns the user's cart with per-line sums and totals.
func (s *CartService) ListCart(userID uint) (*CartView, error) {
	lines, err := s.cartRepo.ListByUser(userID)
	if err != nil {
		return nil, err
	}

	view := &CartView{
		Lines:    make([]CartLineView, 0, len(lines)),
		TotalSum: decimal.Zero,
	}
	for _, line := range lines {
		sum := decimal.Zero
		if line.StockPosition != nil {
			sum = line.StockPosition.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		}
		view.Lines = append(view.Lines, CartLineView{CartLine: line, Sum: sum})
		view.TotalQuantity += line.Quantity
		view.TotalSum = view.TotalSum.Add(sum)
	}
	return view, nil
}

// UpsertLine creates or updates the user's cart line for a stock
// position. The requested quantity must not exceed the position's
// live quantity; placement re-validates regardless, since stock may
// change between cart edit and checkout.
func (s *CartService) UpsertLine(userID, positionID uint, quantity int) (*models.CartLine, error) {
	if quantity < 1 {
		return nil, apperrors.NewValidation("quantity", "must be at least 1")
	}

	position, err := s.catalogRepo.GetStockPosition(positionID)
	if err != nil {
		return nil, err
	}
	if !position.Orderable() {
		return nil, apperrors.NewValidation("stock_position_id", "this stock position is not available for ordering")
	}
	if quantity > position.Quantity {
		return nil, apperrors.NewValidation("quantity",
			fmt.Sprintf("requested %d units but only %d available", quantity, position.Quantity))
	}

	line, err := s.cartRepo.GetByUserAndPosition(userID, positionID)
	if err != nil {
		var notFound *apperrors.NotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		line = &models.CartLine{UserID: userID, StockPositionID: positionID}
	}
	line.Quantity = quantity

	if err := s.cartRepo.Save(line); err != nil {
		return nil, err
	}
	return line, nil
}

// RemoveLine deletes one of the user's cart lines.
func (s *CartService) RemoveLine(userID, lineID uint) error {
	line, err := s.cartRepo.GetForUser(userID, lineID)
	if err != nil {
		return err
	}
	return s.cartRepo.Delete(line.ID)
}
