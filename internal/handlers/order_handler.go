package handlers

import (
	"log"

	"cuahang/internal/models"
	"cuahang/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// OrderHandler handles HTTP requests for checkout and orders.
type OrderHandler struct {
	service  *services.CheckoutService
	validate *validator.Validate
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.CheckoutService) *OrderHandler {
	return &OrderHandler{
		service:  service,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the order routes with the Fiber app.
func (h *OrderHandler) RegisterRoutes(router fiber.Router) {
	orderRoutes := router.Group("/orders")
	orderRoutes.Get("/", h.HandleGetOrders)
	orderRoutes.Get("/:id", h.HandleGetOrderByID)
	orderRoutes.Post("/checkout", h.HandleCheckout)
	orderRoutes.Post("/buy-now", h.HandleBuyNow)
	orderRoutes.Post("/:id/cancel", h.HandleCancelOrder)
	orderRoutes.Patch("/:id/status", h.HandleUpdateOrderStatus)
}

type checkoutRequest struct {
	services.ShippingInfo
	VoucherCodes []string `json:"voucher_codes" validate:"omitempty,max=2"`
}

type buyNowRequest struct {
	checkoutRequest
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gte=1"`
}

// HandleGetOrders lists the authenticated user's orders.
func (h *OrderHandler) HandleGetOrders(c *fiber.Ctx) error {
	orders, err := h.service.GetOrdersByUser(userID(c))
	if err != nil {
		log.Printf("Error getting orders: %v", err)
		return respondError(c, err)
	}
	return c.JSON(orders)
}

// HandleGetOrderByID retrieves one of the user's orders.
func (h *OrderHandler) HandleGetOrderByID(c *fiber.Ctx) error {
	order, err := h.service.GetOrder(userID(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(order)
}

// HandleCheckout places an order from the user's cart.
func (h *OrderHandler) HandleCheckout(c *fiber.Ctx) error {
	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return validationErrorResponse(c, err)
	}
	order, err := h.service.CreateFromCart(userID(c), req.ShippingInfo, req.VoucherCodes)
	if err != nil {
		log.Printf("Error creating order from cart: %v", err)
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(order)
}

// HandleBuyNow places a single-product order, bypassing the cart.
func (h *OrderHandler) HandleBuyNow(c *fiber.Ctx) error {
	var req buyNowRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return validationErrorResponse(c, err)
	}
	order, err := h.service.BuyNow(userID(c), req.ProductID, req.Quantity, req.ShippingInfo, req.VoucherCodes)
	if err != nil {
		log.Printf("Error creating buy-now order: %v", err)
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(order)
}

// HandleCancelOrder cancels the user's own order.
func (h *OrderHandler) HandleCancelOrder(c *fiber.Ctx) error {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if req.Reason == "" {
		req.Reason = "cancelled by customer"
	}
	order, err := h.service.Cancel(userID(c), c.Params("id"), req.Reason)
	if err != nil {
		log.Printf("Error cancelling order %s: %v", c.Params("id"), err)
		return respondError(c, err)
	}
	return c.JSON(order)
}

// HandleUpdateOrderStatus applies an admin status transition.
func (h *OrderHandler) HandleUpdateOrderStatus(c *fiber.Ctx) error {
	var req struct {
		Status string `json:"status" validate:"required,oneof=pending processing confirmed shipping delivered cancelled"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return validationErrorResponse(c, err)
	}
	order, err := h.service.UpdateStatus(c.Params("id"), models.OrderStatus(req.Status))
	if err != nil {
		log.Printf("Error updating order status: %v", err)
		return respondError(c, err)
	}
	return c.JSON(order)
}
