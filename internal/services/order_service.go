package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"lavka/internal/apperrors"
	"lavka/internal/models"
	"lavka/internal/repositories"
	"lavka/pkg/rabbitmq"
)

// OrderService is the order placement engine. It converts a user's
// cart into an order while reserving stock, and guarantees the whole
// conversion is atomic: either every line is reserved and the order
// becomes NEW, or nothing persists.
type OrderService struct {
	db          *gorm.DB
	orderRepo   repositories.OrderRepository
	cartRepo    repositories.CartRepository
	catalogRepo repositories.CatalogRepository
	mqClient    *rabbitmq.Client
}

// NewOrderService creates a new OrderService. mqClient may be nil, in
// which case order-placed events are not published.
func NewOrderService(
	db *gorm.DB,
	orderRepo repositories.OrderRepository,
	cartRepo repositories.CartRepository,
	catalogRepo repositories.CatalogRepository,
	mqClient *rabbitmq.Client,
) *OrderService {
	return &OrderService{
		db:          db,
		orderRepo:   orderRepo,
		cartRepo:    cartRepo,
		catalogRepo: catalogRepo,
		mqClient:    mqClient,
	}
}

// AddressInput is the shipping address of a placement request.
type AddressInput struct {
	City          string `json:"city" validate:"required,max=50"`
	Street        string `json:"street" validate:"required,max=50"`
	HouseNumber   string `json:"house_number" validate:"required,max=10"`
	HouseBlock    string `json:"house_block" validate:"max=10"`
	HouseBuilding string `json:"house_building" validate:"max=10"`
	Apartment     string `json:"apartment" validate:"max=10"`
}

// RecipientInput is the shipping contact of a placement request.
type RecipientInput struct {
	FirstName  string       `json:"first_name" validate:"required,max=30"`
	LastName   string       `json:"last_name" validate:"required,max=30"`
	Patronymic string       `json:"patronymic" validate:"max=30"`
	Email      string       `json:"email" validate:"required,email,max=50"`
	Phone      string       `json:"phone" validate:"required,max=20"`
	Address    AddressInput `json:"address" validate:"required"`
}

// OrderLineView is an order line with its derived sum.
type OrderLineView struct {
	ID            uint                  `json:"id"`
	StockPosition *models.StockPosition `json:"stock_position"`
	Quantity      int                   `json:"quantity"`
	Sum           decimal.Decimal       `json:"sum"`
}

// OrderView is an order with its derived totals. The sums are pure
// functions of the stored line data, recomputed on every read and
// never persisted.
type OrderView struct {
	ID            uint               `json:"id"`
	Number        string             `json:"number"`
	Status        models.OrderStatus `json:"status"`
	CreatedAt     time.Time          `json:"created_at"`
	DeliveredAt   *time.Time         `json:"delivered_at"`
	Recipient     *models.Recipient  `json:"recipient"`
	Lines         []OrderLineView    `json:"lines"`
	TotalQuantity int                `json:"total_quantity"`
	TotalSum      decimal.Decimal    `json:"total_sum"`
}

// PlaceOrder converts the user's cart into an order. The entire
// sequence runs inside one database transaction: order + recipient +
// address creation, cart iteration in ascending line id order, stock
// reservation, line creation, cart cleanup and the FORMATION -> NEW
// status advance. Processing stops at the first failing cart line and
// the transaction rollback unwinds every side effect, so a failed
// placement leaves no rows and no decremented stock behind.
func (s *OrderService) PlaceOrder(userID uint, recipient RecipientInput) (*OrderView, error) {
	var view *OrderView

	txErr := s.db.Transaction(func(tx *gorm.DB) error {
		orderRepo := s.orderRepo.WithTx(tx)
		cartRepo := s.cartRepo.WithTx(tx)
		catalogRepo := s.catalogRepo.WithTx(tx)

		order := &models.Order{
			Number: uuid.New().String(),
			UserID: userID,
			Status: models.OrderStatusFormation,
			Recipient: &models.Recipient{
				FirstName:  recipient.FirstName,
				LastName:   recipient.LastName,
				Patronymic: recipient.Patronymic,
				Email:      recipient.Email,
				Phone:      recipient.Phone,
				Address: &models.Address{
					City:          recipient.Address.City,
					Street:        recipient.Address.Street,
					HouseNumber:   recipient.Address.HouseNumber,
					HouseBlock:    recipient.Address.HouseBlock,
					HouseBuilding: recipient.Address.HouseBuilding,
					Apartment:     recipient.Address.Apartment,
				},
			},
		}
		if err := orderRepo.Create(order); err != nil {
			return err
		}

		lines, err := cartRepo.ListByUser(userID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return &apperrors.NotFoundError{Resource: "cart", Message: "cart is empty"}
		}

		consumed := make([]uint, 0, len(lines))
		for i := range lines {
			line := &lines[i]
			if err := s.reserveLine(orderRepo, catalogRepo, order.ID, line); err != nil {
				return err
			}
			consumed = append(consumed, line.ID)
		}

		if err := cartRepo.DeleteByIDs(consumed); err != nil {
			return err
		}
		if err := orderRepo.UpdateStatus(order.ID, models.OrderStatusNew, nil); err != nil {
			return err
		}

		placed, err := orderRepo.GetForUser(userID, order.ID)
		if err != nil {
			return err
		}
		view = buildOrderView(placed)
		return nil
	})
	if txErr != nil {
		return nil, classifyPlacementFailure(txErr)
	}

	s.publishOrderPlaced(view)
	return view, nil
}

// reserveLine validates one cart line against the current catalog
// state and reserves its quantity. The conditional decrement in
// ReserveQuantity is the authoritative stock check: the preceding
// reads only classify the failure for reporting.
func (s *OrderService) reserveLine(
	orderRepo repositories.OrderRepository,
	catalogRepo repositories.CatalogRepository,
	orderID uint,
	line *models.CartLine,
) error {
	position := line.StockPosition
	if position == nil {
		return &apperrors.NotFoundError{
			Resource: "stock position",
			Message:  fmt.Sprintf("stock position of cart line %d no longer exists", line.ID),
		}
	}

	if position.Archived() {
		return &apperrors.PlacementError{
			CartLineID:      line.ID,
			StockPositionID: position.ID,
			Rule:            apperrors.RuleArchived,
			Message:         "this stock position is archived",
		}
	}
	if position.Shop == nil || !position.Shop.Open {
		return &apperrors.PlacementError{
			CartLineID:      line.ID,
			StockPositionID: position.ID,
			Rule:            apperrors.RuleShopClosed,
			Message:         "this shop is not accepting orders",
		}
	}
	if line.Quantity > position.Quantity {
		return insufficientStock(line, position.Quantity)
	}

	reserved, err := catalogRepo.ReserveQuantity(position.ID, line.Quantity)
	if err != nil {
		return err
	}
	if !reserved {
		// The preloaded quantity was stale; a concurrent reservation
		// got there first.
		return insufficientStock(line, position.Quantity)
	}

	return orderRepo.CreateLine(&models.OrderLine{
		OrderID:         orderID,
		StockPositionID: position.ID,
		Quantity:        line.Quantity,
	})
}

func insufficientStock(line *models.CartLine, available int) error {
	return &apperrors.PlacementError{
		CartLineID:      line.ID,
		StockPositionID: line.StockPositionID,
		Rule:            apperrors.RuleInsufficientStock,
		Message:         fmt.Sprintf("requested %d units but only %d available", line.Quantity, available),
	}
}

// classifyPlacementFailure passes business-rule failures through and
// wraps everything else, including transaction commit or rollback
// errors, as fatal: those may have left inconsistent state and need
// operator attention rather than a retry.
func classifyPlacementFailure(err error) error {
	var (
		placement  *apperrors.PlacementError
		notFound   *apperrors.NotFoundError
		validation *apperrors.ValidationError
		conflict   *apperrors.ConflictError
	)
	switch {
	case errors.As(err, &placement),
		errors.As(err, &notFound),
		errors.As(err, &validation),
		errors.As(err, &conflict):
		return err
	default:
		return &apperrors.FatalError{Err: err}
	}
}

func (s *OrderService) publishOrderPlaced(view *OrderView) {
	if s.mqClient == nil || view == nil {
		return
	}
	event := map[string]interface{}{
		"order_id":       view.ID,
		"number":         view.Number,
		"status":         view.Status,
		"total_quantity": view.TotalQuantity,
		"total_sum":      view.TotalSum.String(),
	}
	if err := s.mqClient.PublishOrderPlaced(event); err != nil {
		log.Printf("Warning: failed to publish order placed event for order %d: %v", view.ID, err)
	}
}

// GetOrder returns one of the user's orders with derived totals.
func (s *OrderService) GetOrder(userID, orderID uint) (*OrderView, error) {
	order, err := s.orderRepo.GetForUser(userID, orderID)
	if err != nil {
		return nil, err
	}
	return buildOrderView(order), nil
}

// ListOrders returns the user's placed orders with derived totals.
func (s *OrderService) ListOrders(userID uint) ([]OrderView, error) {
	orders, err := s.orderRepo.ListForUser(userID)
	if err != nil {
		return nil, err
	}
	return buildOrderViews(orders), nil
}

// ListShopOrders returns orders containing lines backed by positions
// of the shops the user represents.
func (s *OrderService) ListShopOrders(userID uint) ([]OrderView, error) {
	shops, err := s.catalogRepo.ListShopsForUser(userID)
	if err != nil {
		return nil, err
	}
	shopIDs := make([]uint, 0, len(shops))
	for _, shop := range shops {
		shopIDs = append(shopIDs, shop.ID)
	}

	orders, err := s.orderRepo.ListForShops(shopIDs)
	if err != nil {
		return nil, err
	}
	return buildOrderViews(orders), nil
}

// UpdateStatus transitions an order along the lifecycle state
// machine. The order's owner may cancel it before delivery; a
// representative of any shop with a line in the order may apply any
// legal transition. DELIVERED stamps the delivery time.
func (s *OrderService) UpdateStatus(userID, orderID uint, status models.OrderStatus) (*OrderView, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}

	allowed := order.UserID == userID && status == models.OrderStatusCanceled
	if !allowed {
		allowed, err = s.representsOrderShop(userID, order)
		if err != nil {
			return nil, err
		}
	}
	if !allowed {
		return nil, &apperrors.ForbiddenError{Message: "you may not change this order's status"}
	}

	if !models.CanTransition(order.Status, status) {
		return nil, apperrors.NewValidation("status",
			fmt.Sprintf("cannot transition order from %s to %s", order.Status, status))
	}

	var deliveredAt *time.Time
	if status == models.OrderStatusDelivered {
		now := time.Now()
		deliveredAt = &now
	}
	if err := s.orderRepo.UpdateStatus(order.ID, status, deliveredAt); err != nil {
		return nil, err
	}

	updated, err := s.orderRepo.GetByID(order.ID)
	if err != nil {
		return nil, err
	}
	return buildOrderView(updated), nil
}

func (s *OrderService) representsOrderShop(userID uint, order *models.Order) (bool, error) {
	for _, line := range order.Lines {
		if line.StockPosition == nil {
			continue
		}
		isRep, err := s.catalogRepo.IsRepresentative(line.StockPosition.ShopID, userID)
		if err != nil {
			return false, err
		}
		if isRep {
			return true, nil
		}
	}
	return false, nil
}

// buildOrderView computes the derived read view of an order:
// line.sum = quantity * position price, and the order totals.
func buildOrderView(order *models.Order) *OrderView {
	view := &OrderView{
		ID:          order.ID,
		Number:      order.Number,
		Status:      order.Status,
		CreatedAt:   order.CreatedAt,
		DeliveredAt: order.DeliveredAt,
		Recipient:   order.Recipient,
		Lines:       make([]OrderLineView, 0, len(order.Lines)),
		TotalSum:    decimal.Zero,
	}
	for _, line := range order.Lines {
		sum := decimal.Zero
		if line.StockPosition != nil {
			sum = line.StockPosition.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		}
		view.Lines = append(view.Lines, OrderLineView{
			ID:            line.ID,
			StockPosition: line.StockPosition,
			Quantity:      line.Quantity,
			Sum:           sum,
		})
		view.TotalQuantity += line.Quantity
		view.TotalSum = view.TotalSum.Add(sum)
	}
	return view
}

func buildOrderViews(orders []models.Order) []OrderView {
	views := make([]OrderView, 0, len(orders))
	for i := range orders {
		views = append(views, *buildOrderView(&orders[i]))
	}
	return views
}
