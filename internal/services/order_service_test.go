package services_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"lavka/internal/apperrors"
	"lavka/internal/models"
	"lavka/internal/repositories"
	"lavka/internal/services"
)

func newOrderService(db *gorm.DB) *services.OrderService {
	return services.NewOrderService(
		db,
		repositories.NewGORMOrderRepository(db),
		repositories.NewGORMCartRepository(db),
		repositories.NewGORMCatalogRepository(db),
		nil,
	)
}

func TestOrderService_PlaceOrder_Success(t *testing.T) {
	db := newTestDB(t)
	buyer := seedUser(t, db, "buyer@example.com")
	shop := seedShop(t, db, "Connect", true)
	position := seedPosition(t, db, shop, "Mi Mix", "1200.00", 5)
	seedCartLine(t, db, buyer, position, 5)

	service := newOrderService(db)
	view, err := service.PlaceOrder(buyer.ID, recipientFixture())
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusNew, view.Status)
	assert.NotEmpty(t, view.Number)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, 5, view.TotalQuantity)
	assert.True(t, view.TotalSum.Equal(decimal.RequireFromString("6000.00")),
		"expected total 6000.00, got %s", view.TotalSum)

	require.NotNil(t, view.Recipient)
	assert.Equal(t, "Ivan", view.Recipient.FirstName)
	require.NotNil(t, view.Recipient.Address)
	assert.Equal(t, "Moscow", view.Recipient.Address.City)

	// Stock is reserved and the cart consumed.
	assert.Equal(t, 0, positionQuantity(t, db, position.ID))
	assert.EqualValues(t, 0, countRows(t, db, &models.CartLine{}))
	assert.EqualValues(t, 1, countRows(t, db, &models.OrderLine{}))
}

func TestOrderService_PlaceOrder_InsufficientStock(t *testing.T) {
	db := newTestDB(t)
	buyer := seedUser(t, db, "buyer@example.com")
	shop := seedShop(t, db, "Connect", true)
	position := seedPosition(t, db, shop, "Mi Mix", "1200.00", 3)
	line := seedCartLine(t, db, buyer, position, 5)

	service := newOrderService(db)
	_, err := service.PlaceOrder(buyer.ID, recipientFixture())
	require.Error(t, err)

	var placement *apperrors.PlacementError
	require.ErrorAs(t, err, &placement)
	assert.Equal(t, line.ID, placement.CartLineID)
	assert.Equal(t, position.ID, placement.StockPositionID)
	assert.Equal(t, apperrors.RuleInsufficientStock, placement.Rule)

	// Nothing persists: no order, no lines, stock and cart untouched.
	assert.EqualValues(t, 0, countRows(t, db, &models.Order{}))
	assert.EqualValues(t, 0, countRows(t, db, &models.OrderLine{}))
	assert.EqualValues(t, 0, countRows(t, db, &models.Recipient{}))
	assert.Equal(t, 3, positionQuantity(t, db, position.ID))
	assert.EqualValues(t, 1, countRows(t, db, &models.CartLine{}))
}

func TestOrderService_PlaceOrder_RollsBackEarlierReservations(t *testing.T) {
	db := newTestDB(t)
	buyer := seedUser(t, db, "buyer@example.com")
	shop := seedShop(t, db, "Connect", true)

	first := seedPosition(t, db, shop, "Mi Mix", "1200.00", 10)
	second := seedPosition(t, db, shop, "Redmi Note", "500.00", 10)
	archivedAt := time.Now()
	require.NoError(t, db.Model(&models.StockPosition{}).
		Where("id = ?", second.ID).
		Update("archived_at", archivedAt).Error)

	seedCartLine(t, db, buyer, first, 4)
	line2 := seedCartLine(t, db, buyer, second, 1)

	service := newOrderService(db)
	_, err := service.PlaceOrder(buyer.ID, recipientFixture())
	require.Error(t, err)

	var placement *apperrors.PlacementError
	require.ErrorAs(t, err, &placement)
	assert.Equal(t, line2.ID, placement.CartLineID)
	assert.Equal(t, apperrors.RuleArchived, placement.Rule)

	// The first line's reservation was already applied inside the
	// transaction; the rollback must restore it.
	assert.Equal(t, 10, positionQuantity(t, db, first.ID))
	assert.EqualValues(t, 0, countRows(t, db, &models.Order{}))
	assert.EqualValues(t, 0, countRows(t, db, &models.OrderLine{}))
	assert.EqualValues(t, 2, countRows(t, db, &models.CartLine{}))
}

func TestOrderService_PlaceOrder_ClosedShop(t *testing.T) {
	db := newTestDB(t)
	buyer := seedUser(t, db, "buyer@example.com")
	shop := seedShop(t, db, "Connect", false)
	position := seedPosition(t, db, shop, "Mi Mix", "1200.00", 5)
	seedCartLine(t, db, buyer, position, 1)

	service := newOrderService(db)
	_, err := service.PlaceOrder(buyer.ID, recipientFixture())

	var placement *apperrors.PlacementError
	require.ErrorAs(t, err, &placement)
	assert.Equal(t, apperrors.RuleShopClosed, placement.Rule)
	assert.Equal(t, 5, positionQuantity(t, db, position.ID))
}

func TestOrderService_PlaceOrder_EmptyCart(t *testing.T) {
	db := newTestDB(t)
	buyer := seedUser(t, db, "buyer@example.com")

	service := newOrderService(db)
	_, err := service.PlaceOrder(buyer.ID, recipientFixture())

	var notFound *apperrors.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "cart", notFound.Resource)
	assert.EqualValues(t, 0, countRows(t, db, &models.Order{}))
}

func TestOrderService_PlaceOrder_StockNeverGoesNegative(t *testing.T) {
	db := newTestDB(t)
	shop := seedShop(t, db, "Connect", true)
	position := seedPosition(t, db, shop, "Mi Mix", "1200.00", 5)

	first := seedUser(t, db, "first@example.com")
	second := seedUser(t, db, "second@example.com")
	seedCartLine(t, db, first, position, 5)
	seedCartLine(t, db, second, position, 5)

	service := newOrderService(db)

	_, err := service.PlaceOrder(first.ID, recipientFixture())
	require.NoError(t, err)
	assert.Equal(t, 0, positionQuantity(t, db, position.ID))

	_, err = service.PlaceOrder(second.ID, recipientFixture())
	var placement *apperrors.PlacementError
	require.ErrorAs(t, err, &placement)
	assert.Equal(t, apperrors.RuleInsufficientStock, placement.Rule)
	assert.Equal(t, 0, positionQuantity(t, db, position.ID))
}

func TestOrderService_GetOrder_TotalsAreStable(t *testing.T) {
	db := newTestDB(t)
	buyer := seedUser(t, db, "buyer@example.com")
	shop := seedShop(t, db, "Connect", true)
	position := seedPosition(t, db, shop, "Mi Mix", "1790.50", 4)
	seedCartLine(t, db, buyer, position, 3)

	service := newOrderService(db)
	placed, err := service.PlaceOrder(buyer.ID, recipientFixture())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		view, err := service.GetOrder(buyer.ID, placed.ID)
		require.NoError(t, err)
		assert.True(t, view.TotalSum.Equal(placed.TotalSum))
		assert.Equal(t, placed.TotalQuantity, view.TotalQuantity)
	}
}

func TestOrderService_GetOrder_OtherUsersOrderHidden(t *testing.T) {
	db := newTestDB(t)
	buyer := seedUser(t, db, "buyer@example.com")
	other := seedUser(t, db, "other@example.com")
	shop := seedShop(t, db, "Connect", true)
	position := seedPosition(t, db, shop, "Mi Mix", "1200.00", 5)
	seedCartLine(t, db, buyer, position, 1)

	service := newOrderService(db)
	placed, err := service.PlaceOrder(buyer.ID, recipientFixture())
	require.NoError(t, err)

	_, err = service.GetOrder(other.ID, placed.ID)
	var notFound *apperrors.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestOrderService_UpdateStatus(t *testing.T) {
	db := newTestDB(t)
	buyer := seedUser(t, db, "buyer@example.com")
	rep := seedUser(t, db, "rep@example.com")
	stranger := seedUser(t, db, "stranger@example.com")
	shop := seedShop(t, db, "Connect", true, rep)
	position := seedPosition(t, db, shop, "Mi Mix", "1200.00", 10)
	seedCartLine(t, db, buyer, position, 2)

	service := newOrderService(db)
	placed, err := service.PlaceOrder(buyer.ID, recipientFixture())
	require.NoError(t, err)

	// A stranger may not touch the order at all.
	_, err = service.UpdateStatus(stranger.ID, placed.ID, models.OrderStatusConfirmed)
	var forbidden *apperrors.ForbiddenError
	require.ErrorAs(t, err, &forbidden)

	// The buyer may only cancel, not advance.
	_, err = service.UpdateStatus(buyer.ID, placed.ID, models.OrderStatusConfirmed)
	require.ErrorAs(t, err, &forbidden)

	// Skipping states is rejected even for a representative.
	_, err = service.UpdateStatus(rep.ID, placed.ID, models.OrderStatusDelivered)
	var validation *apperrors.ValidationError
	require.ErrorAs(t, err, &validation)

	for _, status := range []models.OrderStatus{
		models.OrderStatusConfirmed,
		models.OrderStatusAssembled,
		models.OrderStatusSent,
	} {
		view, err := service.UpdateStatus(rep.ID, placed.ID, status)
		require.NoError(t, err)
		assert.Equal(t, status, view.Status)
		assert.Nil(t, view.DeliveredAt)
	}

	view, err := service.UpdateStatus(rep.ID, placed.ID, models.OrderStatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusDelivered, view.Status)
	require.NotNil(t, view.DeliveredAt)

	// Delivered orders are final.
	_, err = service.UpdateStatus(rep.ID, placed.ID, models.OrderStatusCanceled)
	require.ErrorAs(t, err, &validation)
}

func TestOrderService_UpdateStatus_OwnerCancels(t *testing.T) {
	db := newTestDB(t)
	buyer := seedUser(t, db, "buyer@example.com")
	shop := seedShop(t, db, "Connect", true)
	position := seedPosition(t, db, shop, "Mi Mix", "1200.00", 10)
	seedCartLine(t, db, buyer, position, 2)

	service := newOrderService(db)
	placed, err := service.PlaceOrder(buyer.ID, recipientFixture())
	require.NoError(t, err)

	view, err := service.UpdateStatus(buyer.ID, placed.ID, models.OrderStatusCanceled)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCanceled, view.Status)
}

func TestOrderService_ListOrders_ExcludesUnplaced(t *testing.T) {
	db := newTestDB(t)
	buyer := seedUser(t, db, "buyer@example.com")
	shop := seedShop(t, db, "Connect", true)
	position := seedPosition(t, db, shop, "Mi Mix", "1200.00", 10)
	seedCartLine(t, db, buyer, position, 2)

	service := newOrderService(db)
	_, err := service.PlaceOrder(buyer.ID, recipientFixture())
	require.NoError(t, err)

	// A stuck FORMATION order must never surface in listings.
	require.NoError(t, db.Create(&models.Order{
		Number: "stuck",
		UserID: buyer.ID,
		Status: models.OrderStatusFormation,
	}).Error)

	orders, err := service.ListOrders(buyer.ID)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, models.OrderStatusNew, orders[0].Status)
}

func TestOrderService_ListShopOrders(t *testing.T) {
	db := newTestDB(t)
	buyer := seedUser(t, db, "buyer@example.com")
	rep := seedUser(t, db, "rep@example.com")
	otherRep := seedUser(t, db, "other-rep@example.com")

	shop := seedShop(t, db, "Connect", true, rep)
	otherShop := seedShop(t, db, "Svyaznoy", true, otherRep)

	position := seedPosition(t, db, shop, "Mi Mix", "1200.00", 10)
	otherPosition := seedPosition(t, db, otherShop, "Redmi Note", "500.00", 10)

	service := newOrderService(db)

	seedCartLine(t, db, buyer, position, 1)
	_, err := service.PlaceOrder(buyer.ID, recipientFixture())
	require.NoError(t, err)

	seedCartLine(t, db, buyer, otherPosition, 1)
	_, err = service.PlaceOrder(buyer.ID, recipientFixture())
	require.NoError(t, err)

	orders, err := service.ListShopOrders(rep.ID)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.Len(t, orders[0].Lines, 1)
	assert.Equal(t, position.ID, orders[0].Lines[0].StockPosition.ID)

	orders, err = service.ListShopOrders(otherRep.ID)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, otherPosition.ID, orders[0].Lines[0].StockPosition.ID)
}
