package handlers

import (
	"log"

	"cuahang/internal/payment"
	"cuahang/internal/services"

	"github.com/gofiber/fiber/v2"
)

// PaymentHandler handles HTTP requests for payment creation and the inbound
// gateway callbacks.
type PaymentHandler struct {
	service *services.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(service *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		service: service,
	}
}

// RegisterRoutes registers the authenticated payment routes.
func (h *PaymentHandler) RegisterRoutes(router fiber.Router) {
	paymentRoutes := router.Group("/payments")
	paymentRoutes.Post("/vnpay/:orderId", h.HandleCreateVNPayURL)
	paymentRoutes.Post("/zalopay/:orderId", h.HandleCreateZaloPayOrder)
}

// RegisterCallbackRoutes registers the gateway-facing routes. These carry
// their own signature verification instead of JWT auth.
func (h *PaymentHandler) RegisterCallbackRoutes(router fiber.Router) {
	paymentRoutes := router.Group("/payments")
	paymentRoutes.Get("/vnpay/return", h.HandleVNPayReturn)
	paymentRoutes.Get("/vnpay/ipn", h.HandleVNPayIPN)
	paymentRoutes.Post("/zalopay/callback", h.HandleZaloPayCallback)
}

// HandleCreateVNPayURL builds the signed redirect URL for a pending order.
func (h *PaymentHandler) HandleCreateVNPayURL(c *fiber.Ctx) error {
	paymentURL, err := h.service.CreateVNPayURL(userID(c), c.Params("orderId"), c.IP())
	if err != nil {
		log.Printf("Error creating VNPay URL: %v", err)
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"payment_url": paymentURL})
}

// HandleCreateZaloPayOrder registers a pending order with ZaloPay.
func (h *PaymentHandler) HandleCreateZaloPayOrder(c *fiber.Ctx) error {
	result, err := h.service.CreateZaloPayOrder(userID(c), c.Params("orderId"))
	if err != nil {
		log.Printf("Error creating ZaloPay order: %v", err)
		return respondError(c, err)
	}
	return c.JSON(result)
}

// HandleVNPayReturn processes the browser redirect back from VNPay. The
// response is for the user's success/failure page; the IPN remains the
// authoritative settlement path.
func (h *PaymentHandler) HandleVNPayReturn(c *fiber.Ctx) error {
	result, err := h.service.HandleVNPayReturn(queryParams(c))
	if err != nil {
		log.Printf("Error handling VNPay return: %v", err)
		return respondError(c, err)
	}
	return c.JSON(result)
}

// HandleVNPayIPN processes the asynchronous VNPay notification. It always
// answers HTTP 200 with a gateway acknowledgement code; any panic below is
// converted to the generic system-error code so the response stays
// well-formed.
func (h *PaymentHandler) HandleVNPayIPN(c *fiber.Ctx) error {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Panic in VNPay IPN handler: %v", r)
			_ = c.JSON(services.IPNResponse{RspCode: payment.VNPayIPNSystemError, Message: "System error"})
		}
	}()
	return c.JSON(h.service.HandleVNPayIPN(queryParams(c)))
}

// HandleZaloPayCallback processes the ZaloPay payment callback with the same
// always-acknowledge contract.
func (h *PaymentHandler) HandleZaloPayCallback(c *fiber.Ctx) error {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Panic in ZaloPay callback handler: %v", r)
			_ = c.JSON(services.ZaloPayCallbackResponse{ReturnCode: payment.ZaloPayCallbackRetry, ReturnMessage: "system error"})
		}
	}()
	return c.JSON(h.service.HandleZaloPayCallback(c.Body()))
}

func queryParams(c *fiber.Ctx) payment.Params {
	params := payment.Params{}
	for k, v := range c.Queries() {
		params[k] = v
	}
	return params
}
