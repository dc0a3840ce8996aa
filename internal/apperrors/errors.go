package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error so handlers can pick an HTTP status and the
// payment callback path can pick a gateway acknowledgement code.
type Kind int

const (
	KindValidation Kind = iota // bad input shape, rejected before side effects
	KindBusinessRule           // out of stock, voucher ineligible, empty cart
	KindAuthorization          // acting user does not own the resource
	KindNotFound
	KindSignature // gateway callback signature mismatch
	KindConflict  // idempotency collision: already paid, duplicate order number
	KindSystem
)

// Error is a classified application error with a stable machine code.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches two apperrors by code, so sentinel errors below work with
// errors.Is even after wrapping.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func Newf(kind Kind, code, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause to a copy of err, preserving its kind and code.
func Wrap(err *Error, cause error) *Error {
	return &Error{Kind: err.Kind, Code: err.Code, Message: err.Message, Err: cause}
}

// KindOf returns the kind of err, or KindSystem if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindSystem
}

// CodeOf returns the machine code of err, or "system_error" otherwise.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "system_error"
}

// Sentinel errors shared across services. Use Newf for errors that must name
// the offending entity in the message; errors.Is still matches by code.
var (
	ErrEmptyCart            = New(KindBusinessRule, "empty_cart", "cart is empty")
	ErrOutOfStock           = New(KindBusinessRule, "out_of_stock", "insufficient stock")
	ErrProductUnavailable   = New(KindBusinessRule, "product_unavailable", "product is not available")
	ErrVoucherNotFound      = New(KindNotFound, "voucher_not_found", "voucher code not found")
	ErrVoucherInactive      = New(KindBusinessRule, "voucher_inactive", "voucher is not active")
	ErrVoucherNotYetValid   = New(KindBusinessRule, "voucher_not_yet_valid", "voucher is not yet valid")
	ErrVoucherExpired       = New(KindBusinessRule, "voucher_expired", "voucher has expired")
	ErrVoucherLimitReached  = New(KindBusinessRule, "voucher_limit_reached", "voucher usage limit reached")
	ErrVoucherNotEligible   = New(KindBusinessRule, "voucher_not_eligible", "voucher is restricted to another user")
	ErrVoucherMinAmount     = New(KindBusinessRule, "voucher_min_amount", "order amount below voucher minimum")
	ErrVoucherAlreadyUsed   = New(KindBusinessRule, "voucher_already_used", "voucher already used by this user")
	ErrDuplicateVoucherType = New(KindBusinessRule, "duplicate_voucher_type", "only one voucher of each type may be applied")
	ErrOrderNotFound        = New(KindNotFound, "order_not_found", "order not found")
	ErrProductNotFound      = New(KindNotFound, "product_not_found", "product not found")
	ErrAlreadyProcessed     = New(KindConflict, "already_processed", "payment already processed")
	ErrInvalidSignature     = New(KindSignature, "invalid_signature", "gateway signature verification failed")
	ErrNotOrderOwner        = New(KindAuthorization, "not_order_owner", "order belongs to another user")
	ErrInvalidTransition    = New(KindBusinessRule, "invalid_transition", "order status transition not allowed")
	ErrNotCancellable       = New(KindBusinessRule, "not_cancellable", "order can no longer be cancelled")
)
