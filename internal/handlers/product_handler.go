package handlers

import (
	"github.com/gofiber/fiber/v2"

	"lavka/internal/repositories"
	"lavka/internal/services"
)

// ProductHandler handles read-only catalog endpoints.
type ProductHandler struct {
	service *services.CatalogService
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(service *services.CatalogService) *ProductHandler {
	return &ProductHandler{service: service}
}

// RegisterRoutes registers the product routes with the Fiber app.
func (h *ProductHandler) RegisterRoutes(router fiber.Router) {
	productRoutes := router.Group("/products")
	productRoutes.Get("/", h.HandleListProducts)
	productRoutes.Get("/:id", h.HandleGetProduct)
}

// HandleListProducts lists products with orderable positions,
// optionally filtered by shop_id and category_id.
func (h *ProductHandler) HandleListProducts(c *fiber.Ctx) error {
	filter := repositories.PositionFilter{
		ShopID:     uint(c.QueryInt("shop_id")),
		CategoryID: uint(c.QueryInt("category_id")),
	}

	products, err := h.service.ListProducts(filter)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(products)
}

// HandleGetProduct returns one orderable product.
func (h *ProductHandler) HandleGetProduct(c *fiber.Ctx) error {
	productID, err := c.ParamsInt("id")
	if err != nil || productID < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid product id",
		})
	}

	product, err := h.service.GetProduct(uint(productID))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(product)
}
