package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ZaloPay callback acknowledgement codes. Anything other than success or
// invalid-mac makes the gateway retry the callback.
const (
	ZaloPayCallbackSuccess    = 1
	ZaloPayCallbackInvalidMAC = -1
	ZaloPayCallbackRetry      = 0
)

// ZaloPayConfig holds the app credentials for one ZaloPay integration.
// Key1 signs outbound create-order requests; Key2 verifies inbound
// callbacks. The two keys are distinct and must never be interchanged.
type ZaloPayConfig struct {
	AppID       string
	Key1        string
	Key2        string
	Endpoint    string
	CallbackURL string
}

// ZaloPay builds signed create-order requests and verifies callback MACs.
type ZaloPay struct {
	cfg    ZaloPayConfig
	client *http.Client
}

// NewZaloPay creates a ZaloPay adapter. A nil client falls back to
// http.DefaultClient.
func NewZaloPay(cfg ZaloPayConfig, client *http.Client) *ZaloPay {
	if client == nil {
		client = http.DefaultClient
	}
	return &ZaloPay{cfg: cfg, client: client}
}

// ZaloPayCreateResponse is the gateway's answer to a create-order request.
type ZaloPayCreateResponse struct {
	ReturnCode    int    `json:"return_code"`
	ReturnMessage string `json:"return_message"`
	OrderURL      string `json:"order_url"`
	ZPTransToken  string `json:"zp_trans_token"`
}

// ZaloPayCallbackData is the payload inside a callback's data field.
type ZaloPayCallbackData struct {
	AppTransID string `json:"app_trans_id"`
	ZPTransID  int64  `json:"zp_trans_id"`
	Amount     int64  `json:"amount"`
	AppUser    string `json:"app_user"`
}

// AppTransID builds the gateway order reference: yymmdd_orderNumber. ZaloPay
// requires the date prefix to match the create date.
func AppTransID(orderNumber string, now time.Time) string {
	return fmt.Sprintf("%s_%s", now.Format("060102"), orderNumber)
}

// OrderNumberFromAppTransID strips the date prefix back off.
func OrderNumberFromAppTransID(appTransID string) string {
	if i := strings.Index(appTransID, "_"); i >= 0 {
		return appTransID[i+1:]
	}
	return appTransID
}

// BuildCreateOrderForm assembles the signed form for a create-order request.
// The MAC covers appid|app_trans_id|app_user|amount|app_time|embed_data|item
// with Key1.
func (z *ZaloPay) BuildCreateOrderForm(orderNumber, userID string, amount float64, now time.Time) url.Values {
	appTransID := AppTransID(orderNumber, now)
	appTime := strconv.FormatInt(now.UnixMilli(), 10)
	amountStr := strconv.FormatInt(int64(amount), 10)
	embedData := fmt.Sprintf(`{"redirecturl":%q}`, z.cfg.CallbackURL)
	item := "[]"

	macData := strings.Join([]string{
		z.cfg.AppID, appTransID, userID, amountStr, appTime, embedData, item,
	}, "|")

	form := url.Values{}
	form.Set("app_id", z.cfg.AppID)
	form.Set("app_trans_id", appTransID)
	form.Set("app_user", userID)
	form.Set("app_time", appTime)
	form.Set("amount", amountStr)
	form.Set("embed_data", embedData)
	form.Set("item", item)
	form.Set("description", "Thanh toan don hang "+orderNumber)
	form.Set("callback_url", z.cfg.CallbackURL)
	form.Set("mac", signSHA256(z.cfg.Key1, macData))
	return form
}

// CreateOrder posts the create-order request to the gateway.
func (z *ZaloPay) CreateOrder(orderNumber, userID string, amount float64, now time.Time) (*ZaloPayCreateResponse, error) {
	form := z.BuildCreateOrderForm(orderNumber, userID, amount, now)
	resp, err := z.client.PostForm(z.cfg.Endpoint, form)
	if err != nil {
		return nil, fmt.Errorf("zalopay create order request failed: %w", err)
	}
	defer resp.Body.Close()

	var result ZaloPayCreateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode zalopay response: %w", err)
	}
	return &result, nil
}

// VerifyCallbackMAC checks the callback MAC over the raw data string with
// Key2. Comparison is constant time.
func (z *ZaloPay) VerifyCallbackMAC(data, mac string) bool {
	expected := signSHA256(z.cfg.Key2, data)
	return hmac.Equal([]byte(strings.ToLower(mac)), []byte(expected))
}

func signSHA256(key, data string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}
