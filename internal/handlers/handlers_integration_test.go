package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"lavka/internal/handlers"
	"lavka/internal/middleware"
	"lavka/internal/models"
	"lavka/internal/repositories"
	"lavka/internal/services"
)

// newTestApp wires the full HTTP surface against an in-memory SQLite
// database, mirroring the production route layout.
func newTestApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.ConfirmationCode{},
		&models.Shop{},
		&models.Category{},
		&models.Product{},
		&models.ProductParameter{},
		&models.StockPosition{},
		&models.CartLine{},
		&models.Order{},
		&models.OrderLine{},
		&models.Recipient{},
		&models.Address{},
	))

	userRepo := repositories.NewGORMUserRepository(db)
	catalogRepo := repositories.NewGORMCatalogRepository(db)
	cartRepo := repositories.NewGORMCartRepository(db)
	orderRepo := repositories.NewGORMOrderRepository(db)

	authService := services.NewAuthService(userRepo, nil, "integration_test_secret")
	catalogService := services.NewCatalogService(db, catalogRepo)
	cartService := services.NewCartService(cartRepo, catalogRepo)
	orderService := services.NewOrderService(db, orderRepo, cartRepo, catalogRepo, nil)

	app := fiber.New()
	apiV1 := app.Group("/api/v1")

	handlers.NewAuthHandler(authService).RegisterRoutes(apiV1)
	handlers.NewProductHandler(catalogService).RegisterRoutes(apiV1)

	protected := apiV1.Group("", middleware.AuthRequired(authService))
	handlers.NewAuthHandler(authService).RegisterProtectedRoutes(protected)
	handlers.NewShopHandler(catalogService).RegisterRoutes(protected)
	handlers.NewCartHandler(cartService).RegisterRoutes(protected)
	handlers.NewOrderHandler(orderService).RegisterRoutes(protected)

	return app, db
}

// request performs a JSON request against the test app and decodes the
// response body into a generic map.
func request(t *testing.T, app *fiber.App, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var payload map[string]interface{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &payload))
	}
	return resp.StatusCode, payload
}

func seedTestCatalog(t *testing.T, db *gorm.DB) *models.StockPosition {
	t.Helper()

	shop := &models.Shop{Name: "Connect", Open: true}
	require.NoError(t, db.Create(shop).Error)

	category := &models.Category{Name: "Smartphones"}
	require.NoError(t, db.Create(category).Error)

	product := &models.Product{Name: "Mi Mix 3", CategoryID: category.ID}
	require.NoError(t, db.Create(product).Error)

	position := &models.StockPosition{
		ShopID:     shop.ID,
		ProductID:  product.ID,
		ExternalID: 4216292,
		Price:      decimal.RequireFromString("1790.50"),
		Quantity:   14,
	}
	require.NoError(t, db.Create(position).Error)
	return position
}

func recipientPayload() map[string]interface{} {
	return map[string]interface{}{
		"first_name": "Ivan",
		"last_name":  "Petrov",
		"email":      "ivan.petrov@example.com",
		"phone":      "+79990001122",
		"address": map[string]interface{}{
			"city":         "Moscow",
			"street":       "Tverskaya",
			"house_number": "1",
			"apartment":    "25",
		},
	}
}

func TestAPI_FullPurchaseFlow(t *testing.T) {
	app, db := newTestApp(t)
	position := seedTestCatalog(t, db)

	// Sign up.
	status, _ := request(t, app, http.MethodPost, "/api/v1/signup", "", map[string]interface{}{
		"email":      "buyer@example.com",
		"password":   "password123",
		"first_name": "Test",
		"last_name":  "Buyer",
	})
	require.Equal(t, http.StatusCreated, status)

	// Signing in before verification is rejected.
	status, _ = request(t, app, http.MethodPost, "/api/v1/signin", "", map[string]interface{}{
		"email":    "buyer@example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusUnauthorized, status)

	// Verify with the code that would have been emailed.
	var user models.User
	require.NoError(t, db.First(&user, "email = ?", "buyer@example.com").Error)
	var code models.ConfirmationCode
	require.NoError(t, db.First(&code, "user_id = ?", user.ID).Error)

	status, _ = request(t, app, http.MethodPost, "/api/v1/verify_email", "", map[string]interface{}{
		"email":             "buyer@example.com",
		"confirmation_code": code.Value,
	})
	require.Equal(t, http.StatusOK, status)

	// Sign in.
	status, payload := request(t, app, http.MethodPost, "/api/v1/signin", "", map[string]interface{}{
		"email":    "buyer@example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusOK, status)
	token, _ := payload["token"].(string)
	require.NotEmpty(t, token)

	// The catalog is publicly browsable.
	status, _ = request(t, app, http.MethodGet, "/api/v1/products", "", nil)
	require.Equal(t, http.StatusOK, status)

	// Protected surfaces reject anonymous callers.
	status, _ = request(t, app, http.MethodGet, "/api/v1/cart", "", nil)
	require.Equal(t, http.StatusUnauthorized, status)

	// Fill the cart.
	status, _ = request(t, app, http.MethodPost, "/api/v1/cart", token, map[string]interface{}{
		"stock_position_id": position.ID,
		"quantity":          2,
	})
	require.Equal(t, http.StatusCreated, status)

	status, payload = request(t, app, http.MethodGet, "/api/v1/cart", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 2, payload["total_quantity"])

	// Place the order.
	status, payload = request(t, app, http.MethodPost, "/api/v1/orders", token, map[string]interface{}{
		"recipient": recipientPayload(),
	})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, string(models.OrderStatusNew), payload["status"])
	orderID, ok := payload["id"].(float64)
	require.True(t, ok)

	// Stock was reserved and the cart emptied.
	var stored models.StockPosition
	require.NoError(t, db.First(&stored, position.ID).Error)
	assert.Equal(t, 12, stored.Quantity)
	status, payload = request(t, app, http.MethodGet, "/api/v1/cart", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 0, payload["total_quantity"])

	// The order is readable with its derived totals.
	status, payload = request(t, app, http.MethodGet, fmt.Sprintf("/api/v1/orders/%.0f", orderID), token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 2, payload["total_quantity"])
}

func TestAPI_PlaceOrder_InsufficientStockPayload(t *testing.T) {
	app, db := newTestApp(t)
	position := seedTestCatalog(t, db)

	user := &models.User{
		Email:          "buyer@example.com",
		EmailConfirmed: true,
		IsActive:       true,
		FirstName:      "Test",
		LastName:       "Buyer",
	}
	require.NoError(t, db.Create(user).Error)
	line := &models.CartLine{UserID: user.ID, StockPositionID: position.ID, Quantity: 10}
	require.NoError(t, db.Create(line).Error)

	// Shrink the stock behind the cart's back.
	require.NoError(t, db.Model(&models.StockPosition{}).
		Where("id = ?", position.ID).
		Update("quantity", 4).Error)

	authService := services.NewAuthService(repositories.NewGORMUserRepository(db), nil, "integration_test_secret")
	require.NoError(t, db.Model(user).Update("password", mustHash(t)).Error)
	token, err := authService.Login(user.Email, "password123")
	require.NoError(t, err)

	status, payload := request(t, app, http.MethodPost, "/api/v1/orders", token, map[string]interface{}{
		"recipient": recipientPayload(),
	})
	require.Equal(t, http.StatusBadRequest, status)

	// The payload is keyed by cart line and stock position ids so the
	// client can point at the exact failing item.
	errs, ok := payload["errors"].(map[string]interface{})
	require.True(t, ok)
	byLine, ok := errs[fmt.Sprint(line.ID)].(map[string]interface{})
	require.True(t, ok)
	byPosition, ok := byLine[fmt.Sprint(position.ID)].(map[string]interface{})
	require.True(t, ok)
	_, ok = byPosition["insufficient_stock"]
	assert.True(t, ok)
}

func TestAPI_ShopImportAndToggle(t *testing.T) {
	app, db := newTestApp(t)

	rep := &models.User{
		Email:          "rep@example.com",
		EmailConfirmed: true,
		IsActive:       true,
		FirstName:      "Shop",
		LastName:       "Rep",
		Password:       mustHash(t),
	}
	require.NoError(t, db.Create(rep).Error)
	shop := &models.Shop{Name: "Connect", Open: true}
	require.NoError(t, db.Create(shop).Error)
	require.NoError(t, db.Model(shop).Association("Representatives").Append(rep))

	authService := services.NewAuthService(repositories.NewGORMUserRepository(db), nil, "integration_test_secret")
	token, err := authService.Login(rep.Email, "password123")
	require.NoError(t, err)

	priceList := `
shop: Connect
categories:
  - id: 1
    name: Smartphones
goods:
  - id: 100
    category: 1
    name: Mi Mix 3
    price: 1790.50
    quantity: 14
`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/shops/import", strings.NewReader(priceList))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/x-yaml")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	assert.EqualValues(t, 1, rowCount(t, db, &models.StockPosition{}))

	// Toggle the shop closed and check the catalog empties.
	status, payload := request(t, app, http.MethodPatch, fmt.Sprintf("/api/v1/shops/%d", shop.ID), token, map[string]interface{}{
		"open": false,
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, payload["open"])

	req = httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, "[]", strings.TrimSpace(string(raw)))
}

func rowCount(t *testing.T, db *gorm.DB, model interface{}) int64 {
	t.Helper()

	var count int64
	require.NoError(t, db.Model(model).Count(&count).Error)
	return count
}

func mustHash(t *testing.T) string {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}
