package handlers

import (
	"io"
	"log"

	"github.com/gofiber/fiber/v2"

	"lavka/internal/middleware"
	"lavka/internal/services"
)

// ShopHandler handles shop management and price-list imports.
type ShopHandler struct {
	service *services.CatalogService
}

// NewShopHandler creates a new ShopHandler.
func NewShopHandler(service *services.CatalogService) *ShopHandler {
	return &ShopHandler{service: service}
}

// RegisterRoutes registers the shop routes with the Fiber app.
func (h *ShopHandler) RegisterRoutes(router fiber.Router) {
	shopRoutes := router.Group("/shops")
	shopRoutes.Get("/", h.HandleListShops)
	shopRoutes.Post("/import", h.HandleImport)
	shopRoutes.Patch("/:id", h.HandleUpdateShop)
}

// HandleListShops returns the shops the caller represents.
func (h *ShopHandler) HandleListShops(c *fiber.Ctx) error {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	shops, err := h.service.ListUserShops(userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(shops)
}

type updateShopRequest struct {
	Open bool `json:"open"`
}

// HandleUpdateShop toggles whether a shop accepts orders.
func (h *ShopHandler) HandleUpdateShop(c *fiber.Ctx) error {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	shopID, err := c.ParamsInt("id")
	if err != nil || shopID < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid shop id",
		})
	}

	var req updateShopRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
		})
	}

	shop, err := h.service.SetShopOpen(userID, uint(shopID), req.Open)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(shop)
}

// HandleImport replaces the named shop's catalog from a YAML price
// list. The document may arrive as a multipart file named "yaml" or
// as the raw request body.
func (h *ShopHandler) HandleImport(c *fiber.Ctx) error {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	data, err := importBody(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"errors": fiber.Map{"yaml": []string{"file \"yaml\" was not found in the request"}},
		})
	}

	if err := h.service.ImportPriceList(userID, data); err != nil {
		log.Printf("Error importing price list for user %d: %v", userID, err)
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"status": "Data import was successful.",
	})
}

func importBody(c *fiber.Ctx) ([]byte, error) {
	fileHeader, err := c.FormFile("yaml")
	if err == nil {
		file, err := fileHeader.Open()
		if err != nil {
			return nil, err
		}
		defer file.Close()
		return io.ReadAll(file)
	}

	body := c.Body()
	if len(body) == 0 {
		return nil, fiber.ErrBadRequest
	}
	return body, nil
}
