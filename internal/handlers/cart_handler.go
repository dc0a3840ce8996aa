package handlers

import (
	"log"

	"cuahang/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// CartHandler handles HTTP requests for the shopping cart.
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
	cartRoutes.Get("/", h.HandleGetCart)
	cartRoutes.Post("/items", h.HandleAddItem)
	cartRoutes.Patch("/items/:productId", h.HandleUpdateQuantity)
	cartRoutes.Delete("/items/:productId", h.HandleRemoveItem)
	cartRoutes.Delete("/", h.HandleClearCart)
}

type addItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gte=1"`
}

// HandleGetCart returns the authenticated user's cart.
func (h *CartHandler) HandleGetCart(c *fiber.Ctx) error {
	items, err := h.service.GetCart(userID(c))
	if err != nil {
		log.Printf("Error getting cart: %v", err)
		return respondError(c, err)
	}
	return c.JSON(items)
}

// HandleAddItem adds a product to the cart.
func (h *CartHandler) HandleAddItem(c *fiber.Ctx) error {
	var req addItemRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return validationErrorResponse(c, err)
	}
	item, err := h.service.AddItem(userID(c), req.ProductID, req.Quantity)
	if err != nil {
		log.Printf("Error adding item to cart: %v", err)
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(item)
}

// HandleUpdateQuantity sets the quantity of a cart line.
func (h *CartHandler) HandleUpdateQuantity(c *fiber.Ctx) error {
	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if err := h.service.UpdateQuantity(userID(c), c.Params("productId"), req.Quantity); err != nil {
		log.Printf("Error updating cart quantity: %v", err)
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Cart updated"})
}

// HandleRemoveItem removes a product line from the cart.
func (h *CartHandler) HandleRemoveItem(c *fiber.Ctx) error {
	if err := h.service.RemoveItem(userID(c), c.Params("productId")); err != nil {
		log.Printf("Error removing cart item: %v", err)
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Item removed"})
}

// HandleClearCart empties the cart.
func (h *CartHandler) HandleClearCart(c *fiber.Ctx) error {
	if err := h.service.ClearCart(userID(c)); err != nil {
		log.Printf("Error clearing cart: %v", err)
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Cart cleared"})
}
