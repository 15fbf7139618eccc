package services_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"lavka/internal/models"
	"lavka/internal/services"
)

// newTestDB opens a per-test in-memory SQLite database with the full
// schema migrated. The pool is capped at one connection so the shared
// in-memory database survives for the whole test.
func newTestDB(t *testing.T) *gorm.DB {
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
	return db
}

// seedUser creates an active, verified user.
func seedUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	hashed, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)

	user := &models.User{
		Email:          email,
		Password:       string(hashed),
		EmailConfirmed: true,
		IsActive:       true,
		FirstName:      "Test",
		LastName:       "User",
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// seedShop creates a shop and links its representatives.
func seedShop(t *testing.T, db *gorm.DB, name string, open bool, representatives ...*models.User) *models.Shop {
	t.Helper()

	shop := &models.Shop{Name: name, Open: open}
	require.NoError(t, db.Create(shop).Error)
	for _, rep := range representatives {
		require.NoError(t, db.Model(shop).Association("Representatives").Append(rep))
	}
	return shop
}

// seedPosition creates a category, product and stock position in one go.
func seedPosition(t *testing.T, db *gorm.DB, shop *models.Shop, productName, price string, quantity int) *models.StockPosition {
	t.Helper()

	category := models.Category{Name: "Electronics"}
	require.NoError(t, db.FirstOrCreate(&category, models.Category{Name: category.Name}).Error)

	product := models.Product{Name: productName, CategoryID: category.ID}
	require.NoError(t, db.Create(&product).Error)

	position := &models.StockPosition{
		ShopID:     shop.ID,
		ProductID:  product.ID,
		ExternalID: product.ID,
		Price:      decimal.RequireFromString(price),
		Quantity:   quantity,
	}
	require.NoError(t, db.Create(position).Error)
	return position
}

// seedCartLine puts a quantity of a position into a user's cart.
func seedCartLine(t *testing.T, db *gorm.DB, user *models.User, position *models.StockPosition, quantity int) *models.CartLine {
	t.Helper()

	line := &models.CartLine{
		UserID:          user.ID,
		StockPositionID: position.ID,
		Quantity:        quantity,
	}
	require.NoError(t, db.Create(line).Error)
	return line
}

func recipientFixture() services.RecipientInput {
	return services.RecipientInput{
		FirstName: "Ivan",
		LastName:  "Petrov",
		Email:     "ivan.petrov@example.com",
		Phone:     "+79990001122",
		Address: services.AddressInput{
			City:        "Moscow",
			Street:      "Tverskaya",
			HouseNumber: "1",
			Apartment:   "25",
		},
	}
}

func positionQuantity(t *testing.T, db *gorm.DB, positionID uint) int {
	t.Helper()

	var position models.StockPosition
	require.NoError(t, db.First(&position, positionID).Error)
	return position.Quantity
}

func countRows(t *testing.T, db *gorm.DB, model interface{}) int64 {
	t.Helper()

	var count int64
	require.NoError(t, db.Model(model).Count(&count).Error)
	return count
}
