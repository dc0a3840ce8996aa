package handlers

import (
	"log"
	"time"

	"cuahang/internal/models"
	"cuahang/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// VoucherHandler handles HTTP requests for vouchers.
type VoucherHandler struct {
	service  *services.VoucherService
	validate *validator.Validate
}

// NewVoucherHandler creates a new VoucherHandler.
func NewVoucherHandler(service *services.VoucherService) *VoucherHandler {
	return &VoucherHandler{
		service:  service,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the voucher routes with the Fiber app.
func (h *VoucherHandler) RegisterRoutes(router fiber.Router) {
	voucherRoutes := router.Group("/vouchers")
	voucherRoutes.Get("/", h.HandleGetVouchers)
	voucherRoutes.Post("/", h.HandleCreateVoucher)
	voucherRoutes.Put("/:id", h.HandleUpdateVoucher)
	voucherRoutes.Post("/validate", h.HandleValidateVoucher)
}

type validateVoucherRequest struct {
	Code        string  `json:"code" validate:"required"`
	OrderAmount float64 `json:"order_amount" validate:"required,gt=0"`
}

// HandleGetVouchers lists all vouchers (admin).
func (h *VoucherHandler) HandleGetVouchers(c *fiber.Ctx) error {
	vouchers, err := h.service.GetAllVouchers()
	if err != nil {
		log.Printf("Error getting vouchers: %v", err)
		return respondError(c, err)
	}
	return c.JSON(vouchers)
}

// HandleCreateVoucher creates a voucher (admin).
func (h *VoucherHandler) HandleCreateVoucher(c *fiber.Ctx) error {
	var voucher models.Voucher
	if err := c.BodyParser(&voucher); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if err := h.validate.Struct(voucher); err != nil {
		return validationErrorResponse(c, err)
	}
	if err := h.service.CreateVoucher(&voucher); err != nil {
		log.Printf("Error creating voucher: %v", err)
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(voucher)
}

// HandleUpdateVoucher updates a voucher definition (admin).
func (h *VoucherHandler) HandleUpdateVoucher(c *fiber.Ctx) error {
	var voucher models.Voucher
	if err := c.BodyParser(&voucher); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	voucher.ID = c.Params("id")
	if err := h.validate.Struct(voucher); err != nil {
		return validationErrorResponse(c, err)
	}
	if err := h.service.UpdateVoucher(&voucher); err != nil {
		log.Printf("Error updating voucher %s: %v", voucher.ID, err)
		return respondError(c, err)
	}
	return c.JSON(voucher)
}

// HandleValidateVoucher checks whether a voucher code is usable by the
// authenticated user for a given order amount. Read-only preview; checkout
// re-validates.
func (h *VoucherHandler) HandleValidateVoucher(c *fiber.Ctx) error {
	var req validateVoucherRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return validationErrorResponse(c, err)
	}
	voucher, err := h.service.Validate(req.Code, userID(c), req.OrderAmount, time.Now())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(voucher)
}
