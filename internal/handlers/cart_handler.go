package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"lavka/internal/middleware"
	"lavka/internal/services"
)

// CartHandler handles HTTP requests for the user's cart.
type CartHandler struct {
	service  *services.CartService
	validate *validator.Validate
}

// NewCartHandler creates a new CartHandler.
func NewCartHandler(service *services.CartService) *CartHandler {
	return &CartHandler{
		service:  service,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the cart routes with the Fiber app.
func (h *CartHandler) RegisterRoutes(router fiber.Router) {
	cartRoutes := router.Group("/cart")
	cartRoutes.Get("/", h.HandleListCart)
	cartRoutes.Post("/", h.HandleUpsertLine)
	cartRoutes.Delete("/:id", h.HandleRemoveLine)
}

// HandleListCart returns the cart with derived totals.
func (h *CartHandler) HandleListCart(c *fiber.Ctx) error {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	cart, err := h.service.ListCart(userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(cart)
}

type upsertCartLineRequest struct {
	StockPositionID uint `json:"stock_position_id" validate:"required"`
	Quantity        int  `json:"quantity" validate:"required,gte=1"`
}

// HandleUpsertLine creates or updates the caller's cart line for a
// stock position.
func (h *CartHandler) HandleUpsertLine(c *fiber.Ctx) error {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	var req upsertCartLineRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return writeValidationErrors(c, err)
	}

	line, err := h.service.UpsertLine(userID, req.StockPositionID, req.Quantity)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(line)
}

// HandleRemoveLine deletes one of the caller's cart lines.
func (h *CartHandler) HandleRemoveLine(c *fiber.Ctx) error {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	lineID, err := c.ParamsInt("id")
	if err != nil || lineID < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid cart line id",
		})
	}

	if err := h.service.RemoveLine(userID, uint(lineID)); err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"result": "Cart line removed."})
}
