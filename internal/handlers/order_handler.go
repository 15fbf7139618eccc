package handlers

import (
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"lavka/internal/middleware"
	"lavka/internal/models"
	"lavka/internal/services"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	service  *services.OrderService
	validate *validator.Validate
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.OrderService) *OrderHandler {
	return &OrderHandler{
		service:  service,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the order routes with the Fiber app.
func (h *OrderHandler) RegisterRoutes(router fiber.Router) {
	orderRoutes := router.Group("/orders")
	orderRoutes.Get("/", h.HandleListOrders)
	orderRoutes.Post("/", h.HandlePlaceOrder)
	orderRoutes.Get("/:id", h.HandleGetOrder)
	orderRoutes.Patch("/:id/status", h.HandleUpdateStatus)

	// Shop-side view of orders containing the caller's positions.
	router.Get("/shops/orders", h.HandleListShopOrders)
}

type placeOrderRequest struct {
	Recipient services.RecipientInput `json:"recipient" validate:"required"`
}

// HandlePlaceOrder converts the caller's cart into an order. The
// request carries the recipient and shipping address; everything else
// comes from the cart.
func (h *OrderHandler) HandlePlaceOrder(c *fiber.Ctx) error {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	var req placeOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return writeValidationErrors(c, err)
	}

	order, err := h.service.PlaceOrder(userID, req.Recipient)
	if err != nil {
		log.Printf("Error placing order for user %d: %v", userID, err)
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(order)
}

// HandleListOrders returns the caller's placed orders.
func (h *OrderHandler) HandleListOrders(c *fiber.Ctx) error {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	orders, err := h.service.ListOrders(userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(orders)
}

// HandleGetOrder returns one of the caller's orders with derived
// totals.
func (h *OrderHandler) HandleGetOrder(c *fiber.Ctx) error {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	orderID, err := c.ParamsInt("id")
	if err != nil || orderID < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid order id",
		})
	}

	order, err := h.service.GetOrder(userID, uint(orderID))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(order)
}

type updateOrderStatusRequest struct {
	Status models.OrderStatus `json:"status" validate:"required"`
}

// HandleUpdateStatus transitions an order along the lifecycle state
// machine.
func (h *OrderHandler) HandleUpdateStatus(c *fiber.Ctx) error {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	orderID, err := c.ParamsInt("id")
	if err != nil || orderID < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid order id",
		})
	}

	var req updateOrderStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return writeValidationErrors(c, err)
	}

	order, err := h.service.UpdateStatus(userID, uint(orderID), req.Status)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(order)
}

// HandleListShopOrders returns orders containing positions of shops
// the caller represents.
func (h *OrderHandler) HandleListShopOrders(c *fiber.Ctx) error {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	orders, err := h.service.ListShopOrders(userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(orders)
}
