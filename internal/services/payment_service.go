package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"cuahang/internal/apperrors"
	"cuahang/internal/models"
	"cuahang/internal/payment"
	"cuahang/internal/repositories"
)

// PaymentService reconciles orders against gateway callbacks. Both the
// browser return redirect and the asynchronous notification run through the
// same verify -> resolve -> compare-and-set path, so receiving either (or
// both, repeatedly) leaves the order in the same state.
type PaymentService struct {
	orderRepo repositories.OrderRepository
	cartRepo  repositories.CartRepository
	vnpay     *payment.VNPay
	zalopay   *payment.ZaloPay
	notifier  Notifier
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(
	orderRepo repositories.OrderRepository,
	cartRepo repositories.CartRepository,
	vnpay *payment.VNPay,
	zalopay *payment.ZaloPay,
	notifier Notifier,
) *PaymentService {
	return &PaymentService{
		orderRepo: orderRepo,
		cartRepo:  cartRepo,
		vnpay:     vnpay,
		zalopay:   zalopay,
		notifier:  notifier,
	}
}

// PaymentResult is what the return-redirect page renders from.
type PaymentResult struct {
	OrderNumber  string `json:"order_number"`
	Success      bool   `json:"success"`
	AlreadyPaid  bool   `json:"already_paid"`
	ResponseCode string `json:"response_code"`
}

// IPNResponse is the acknowledgement body for the VNPay async notification.
type IPNResponse struct {
	RspCode string `json:"RspCode"`
	Message string `json:"Message"`
}

// ZaloPayCallbackResponse is the acknowledgement body for the ZaloPay
// callback endpoint.
type ZaloPayCallbackResponse struct {
	ReturnCode    int    `json:"return_code"`
	ReturnMessage string `json:"return_message"`
}

// CreateVNPayURL builds the signed redirect URL for a pending order.
func (s *PaymentService) CreateVNPayURL(userID, orderID, ipAddr string) (string, error) {
	order, err := s.pendingOrder(userID, orderID, models.PaymentMethodVNPay)
	if err != nil {
		return "", err
	}
	return s.vnpay.BuildPaymentURL(order.OrderNumber, order.Total, ipAddr, time.Now()), nil
}

// CreateZaloPayOrder registers a pending order with ZaloPay and returns the
// gateway's payment URL response.
func (s *PaymentService) CreateZaloPayOrder(userID, orderID string) (*payment.ZaloPayCreateResponse, error) {
	order, err := s.pendingOrder(userID, orderID, models.PaymentMethodZaloPay)
	if err != nil {
		return nil, err
	}
	return s.zalopay.CreateOrder(order.OrderNumber, userID, order.Total, time.Now())
}

func (s *PaymentService) pendingOrder(userID, orderID, method string) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, apperrors.ErrNotOrderOwner
	}
	if order.PaymentMethod != method {
		return nil, apperrors.Newf(apperrors.KindBusinessRule, "wrong_payment_method", "order %s was placed with payment method %s", order.OrderNumber, order.PaymentMethod)
	}
	if order.PaymentStatus != models.PaymentStatusPending {
		return nil, apperrors.ErrAlreadyProcessed
	}
	return order, nil
}

// HandleVNPayReturn processes the browser return redirect. It is best-effort
// and may arrive before, after, or instead of the IPN; the compare-and-set
// settlement makes the ordering irrelevant.
func (s *PaymentService) HandleVNPayReturn(params payment.Params) (*PaymentResult, error) {
	if !s.vnpay.VerifyCallback(params) {
		return nil, apperrors.ErrInvalidSignature
	}
	orderNumber := params["vnp_TxnRef"]
	order, err := s.orderRepo.GetByOrderNumber(orderNumber)
	if err != nil {
		return nil, err
	}
	code := params["vnp_ResponseCode"]
	result := &PaymentResult{OrderNumber: orderNumber, ResponseCode: code}
	if order.PaymentStatus == models.PaymentStatusPaid {
		result.Success = true
		result.AlreadyPaid = true
		return result, nil
	}
	if code == payment.VNPayResponseSuccess {
		if err := s.settleSuccess(order, params["vnp_TransactionNo"]); err != nil {
			return nil, err
		}
		result.Success = true
	} else {
		if err := s.settleFailure(order); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// HandleVNPayIPN processes the authoritative async notification. It always
// returns a well-formed acknowledgement; errors are mapped to the gateway's
// codes and never propagate, because an unacknowledged IPN is retried
// forever.
func (s *PaymentService) HandleVNPayIPN(params payment.Params) IPNResponse {
	if !s.vnpay.VerifyCallback(params) {
		return IPNResponse{RspCode: payment.VNPayIPNInvalidSignature, Message: "Invalid signature"}
	}
	orderNumber := params["vnp_TxnRef"]
	order, err := s.orderRepo.GetByOrderNumber(orderNumber)
	if err != nil {
		if errors.Is(err, apperrors.ErrOrderNotFound) {
			return IPNResponse{RspCode: payment.VNPayIPNOrderNotFound, Message: "Order not found"}
		}
		log.Printf("vnpay ipn: failed to load order %s: %v", orderNumber, err)
		return IPNResponse{RspCode: payment.VNPayIPNSystemError, Message: "System error"}
	}
	amount, err := strconv.ParseInt(params["vnp_Amount"], 10, 64)
	if err != nil || amount != int64(order.Total*100) {
		return IPNResponse{RspCode: payment.VNPayIPNInvalidAmount, Message: "Invalid amount"}
	}
	if order.PaymentStatus != models.PaymentStatusPending {
		// Idempotency guard: the order already settled, this is a replay.
		return IPNResponse{RspCode: payment.VNPayIPNAlreadyConfirmed, Message: "Order already confirmed"}
	}
	if params["vnp_ResponseCode"] == payment.VNPayResponseSuccess {
		if err := s.settleSuccess(order, params["vnp_TransactionNo"]); err != nil {
			log.Printf("vnpay ipn: failed to settle order %s: %v", orderNumber, err)
			return IPNResponse{RspCode: payment.VNPayIPNSystemError, Message: "System error"}
		}
	} else {
		if err := s.settleFailure(order); err != nil {
			log.Printf("vnpay ipn: failed to fail order %s: %v", orderNumber, err)
			return IPNResponse{RspCode: payment.VNPayIPNSystemError, Message: "System error"}
		}
	}
	return IPNResponse{RspCode: payment.VNPayIPNConfirmed, Message: "Confirm success"}
}

// zaloPayCallbackBody is the outer callback envelope: a JSON-encoded data
// string plus its MAC.
type zaloPayCallbackBody struct {
	Data string `json:"data"`
	MAC  string `json:"mac"`
}

// HandleZaloPayCallback processes the ZaloPay payment callback. ZaloPay only
// calls back for successful payments. Return code 1 or -1 stops the
// gateway's retries; 0 signals a transient error and the gateway retries.
func (s *PaymentService) HandleZaloPayCallback(body []byte) ZaloPayCallbackResponse {
	var envelope zaloPayCallbackBody
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ZaloPayCallbackResponse{ReturnCode: payment.ZaloPayCallbackInvalidMAC, ReturnMessage: "malformed callback body"}
	}
	if !s.zalopay.VerifyCallbackMAC(envelope.Data, envelope.MAC) {
		return ZaloPayCallbackResponse{ReturnCode: payment.ZaloPayCallbackInvalidMAC, ReturnMessage: "mac not equal"}
	}
	var data payment.ZaloPayCallbackData
	if err := json.Unmarshal([]byte(envelope.Data), &data); err != nil {
		return ZaloPayCallbackResponse{ReturnCode: payment.ZaloPayCallbackInvalidMAC, ReturnMessage: "malformed callback data"}
	}

	orderNumber := payment.OrderNumberFromAppTransID(data.AppTransID)
	order, err := s.orderRepo.GetByOrderNumber(orderNumber)
	if err != nil {
		if errors.Is(err, apperrors.ErrOrderNotFound) {
			// Acknowledge so the gateway does not retry a payment this
			// system can never match.
			return ZaloPayCallbackResponse{ReturnCode: payment.ZaloPayCallbackSuccess, ReturnMessage: "order not found, ignored"}
		}
		log.Printf("zalopay callback: failed to load order %s: %v", orderNumber, err)
		return ZaloPayCallbackResponse{ReturnCode: payment.ZaloPayCallbackRetry, ReturnMessage: "system error"}
	}
	if order.PaymentStatus == models.PaymentStatusPaid {
		return ZaloPayCallbackResponse{ReturnCode: payment.ZaloPayCallbackSuccess, ReturnMessage: "already processed"}
	}
	if err := s.settleSuccess(order, strconv.FormatInt(data.ZPTransID, 10)); err != nil {
		log.Printf("zalopay callback: failed to settle order %s: %v", orderNumber, err)
		return ZaloPayCallbackResponse{ReturnCode: payment.ZaloPayCallbackRetry, ReturnMessage: "system error"}
	}
	return ZaloPayCallbackResponse{ReturnCode: payment.ZaloPayCallbackSuccess, ReturnMessage: "success"}
}

// settleSuccess marks the order paid via compare-and-set. When another
// delivery already won the race the call is a no-op. The cart clear is
// defensive: checkout already cleared it on the cart path, but a buy-now
// order leaves the cart untouched.
func (s *PaymentService) settleSuccess(order *models.Order, gatewayTxnID string) error {
	changed, err := s.orderRepo.MarkPaid(order.ID, gatewayTxnID, time.Now())
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	if err := s.cartRepo.Clear(order.UserID); err != nil {
		log.Printf("Warning: failed to clear cart for user %s after payment: %v", order.UserID, err)
	}
	notify(s.notifier, models.NotificationEvent{
		UserID:  order.UserID,
		Type:    models.NotificationPaymentPaid,
		Title:   "Payment received",
		Message: fmt.Sprintf("Order %s was paid (%.0f)", order.OrderNumber, order.Total),
		OrderID: order.ID,
	})
	return nil
}

// settleFailure marks the order failed and cancelled; the repository
// restores the reserved stock in the same transaction as the status change.
func (s *PaymentService) settleFailure(order *models.Order) error {
	changed, err := s.orderRepo.MarkFailed(order.ID)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	notify(s.notifier, models.NotificationEvent{
		UserID:  order.UserID,
		Type:    models.NotificationPaymentFailed,
		Title:   "Payment failed",
		Message: fmt.Sprintf("Payment for order %s failed, the order was cancelled", order.OrderNumber),
		OrderID: order.ID,
	})
	return nil
}
