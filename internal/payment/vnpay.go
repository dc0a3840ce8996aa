package payment

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// VNPay response codes. "00" means the payment succeeded; anything else is a
// decline or error reported by the gateway.
const VNPayResponseSuccess = "00"

// IPN acknowledgement codes required by the VNPay contract. The IPN endpoint
// must answer with one of these regardless of outcome, or the gateway keeps
// retrying.
const (
	VNPayIPNConfirmed        = "00"
	VNPayIPNOrderNotFound    = "01"
	VNPayIPNAlreadyConfirmed = "02"
	VNPayIPNInvalidAmount    = "04"
	VNPayIPNInvalidSignature = "97"
	VNPayIPNSystemError      = "99"
)

// vnpayLocation is the fixed UTC+7 offset VNPay timestamps use.
var vnpayLocation = time.FixedZone("ICT", 7*60*60)

// VNPayConfig holds the merchant credentials and endpoints for one VNPay
// integration. Passed explicitly at construction, never read from globals.
type VNPayConfig struct {
	TmnCode    string
	HashSecret string
	PayURL     string
	ReturnURL  string
}

// VNPay builds signed payment URLs and verifies inbound callback signatures.
type VNPay struct {
	cfg VNPayConfig
}

// NewVNPay creates a VNPay adapter.
func NewVNPay(cfg VNPayConfig) *VNPay {
	return &VNPay{cfg: cfg}
}

// BuildPaymentURL constructs the redirect URL for a payment. The amount is
// converted to minor units (x100). The signature covers the canonical raw
// parameter string; the transport query string is encoded separately.
func (v *VNPay) BuildPaymentURL(orderNumber string, amount float64, ipAddr string, now time.Time) string {
	params := Params{
		"vnp_Version":    "2.1.0",
		"vnp_Command":    "pay",
		"vnp_TmnCode":    v.cfg.TmnCode,
		"vnp_Amount":     strconv.FormatInt(int64(amount*100), 10),
		"vnp_CurrCode":   "VND",
		"vnp_TxnRef":     orderNumber,
		"vnp_OrderInfo":  "Thanh toan don hang " + orderNumber,
		"vnp_OrderType":  "other",
		"vnp_Locale":     "vn",
		"vnp_ReturnUrl":  v.cfg.ReturnURL,
		"vnp_IpAddr":     ipAddr,
		"vnp_CreateDate": now.In(vnpayLocation).Format("20060102150405"),
	}
	signature := v.sign(params.Canonicalize())
	return fmt.Sprintf("%s?%s&vnp_SecureHash=%s", v.cfg.PayURL, params.Encode(), signature)
}

// VerifyCallback checks the signature on an inbound parameter map (return
// redirect or IPN). The signature fields are stripped before the parameters
// are re-canonicalized and re-signed. Comparison is constant time.
func (v *VNPay) VerifyCallback(params Params) bool {
	received := params["vnp_SecureHash"]
	if received == "" {
		return false
	}
	stripped := params.Clone()
	delete(stripped, "vnp_SecureHash")
	delete(stripped, "vnp_SecureHashType")
	expected := v.sign(stripped.Canonicalize())
	return hmac.Equal([]byte(strings.ToLower(received)), []byte(expected))
}

func (v *VNPay) sign(data string) string {
	mac := hmac.New(sha512.New, []byte(v.cfg.HashSecret))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}
