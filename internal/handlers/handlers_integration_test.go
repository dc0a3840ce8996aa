package handlers_test

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"testing"
	"time"

	"cuahang/internal/handlers"
	"cuahang/internal/middleware"
	"cuahang/internal/models"
	"cuahang/internal/payment"
	"cuahang/internal/repositories"
	"cuahang/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testVNPSecret = "integration-vnp-secret"

// setupApp builds a Fiber app on an in-memory SQLite database with the full
// handler/service/repository stack wired the same way main.go wires it.
func setupApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	viper.SetDefault("JWT_SECRET", "test_jwt_secret")
	viper.AutomaticEnv()
	jwtSecret := viper.GetString("JWT_SECRET")

	// A named in-memory database per test keeps state isolated.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.CartItem{},
		&models.Voucher{},
		&models.Order{},
		&models.OrderItem{},
	)
	require.NoError(t, err)

	userRepo := repositories.NewGORMUserRepository(db)
	productRepo := repositories.NewGORMProductRepository(db)
	cartRepo := repositories.NewGORMCartRepository(db)
	voucherRepo := repositories.NewGORMVoucherRepository(db)
	orderRepo := repositories.NewGORMOrderRepository(db)

	vnpay := payment.NewVNPay(payment.VNPayConfig{
		TmnCode:    "TESTCODE",
		HashSecret: testVNPSecret,
		PayURL:     "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
		ReturnURL:  "https://shop.example.com/payment/return",
	})
	zalopay := payment.NewZaloPay(payment.ZaloPayConfig{
		AppID: "2553", Key1: "k1", Key2: "k2",
	}, nil)

	authService := services.NewAuthService(userRepo, jwtSecret)
	productService := services.NewProductService(productRepo)
	cartService := services.NewCartService(cartRepo, productRepo)
	voucherService := services.NewVoucherService(voucherRepo, orderRepo)
	checkoutService := services.NewCheckoutService(orderRepo, productRepo, cartRepo, voucherService, nil)
	paymentService := services.NewPaymentService(orderRepo, cartRepo, vnpay, zalopay, nil)

	authHandler := handlers.NewAuthHandler(authService)
	productHandler := handlers.NewProductHandler(productService)
	cartHandler := handlers.NewCartHandler(cartService)
	voucherHandler := handlers.NewVoucherHandler(voucherService)
	orderHandler := handlers.NewOrderHandler(checkoutService)
	paymentHandler := handlers.NewPaymentHandler(paymentService)

	app := fiber.New()
	apiV1 := app.Group("/api/v1")

	authHandler.RegisterRoutes(apiV1)
	paymentHandler.RegisterCallbackRoutes(apiV1)

	protectedRoutes := apiV1.Group("", middleware.AuthRequired(authService))
	productHandler.RegisterRoutes(protectedRoutes)
	cartHandler.RegisterRoutes(protectedRoutes)
	voucherHandler.RegisterRoutes(protectedRoutes)
	orderHandler.RegisterRoutes(protectedRoutes)
	paymentHandler.RegisterRoutes(protectedRoutes)

	return app, db
}

// TestMain runs setup and teardown for all tests
func TestMain(m *testing.M) {
	// Suppress logging during tests for cleaner output
	log.SetOutput(io.Discard)
	code := m.Run()
	os.Exit(code)
}

func doJSON(t *testing.T, app *fiber.App, method, path, token string, body interface{}) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(jsonBody)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

// registerAndLogin creates a user and returns a bearer token.
func registerAndLogin(t *testing.T, app *fiber.App, username string) string {
	t.Helper()
	resp := doJSON(t, app, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": username,
		"password": "password123",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var loginResp map[string]string
	decodeBody(t, resp, &loginResp)
	require.NotEmpty(t, loginResp["token"])
	return loginResp["token"]
}

func seedProduct(t *testing.T, app *fiber.App, token string, price float64, stock int) models.Product {
	t.Helper()
	resp := doJSON(t, app, http.MethodPost, "/api/v1/products", token, map[string]interface{}{
		"name":        "Integration Widget",
		"description": "For testing purposes",
		"price":       price,
		"stock":       stock,
		"is_active":   true,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var product models.Product
	decodeBody(t, resp, &product)
	require.NotEmpty(t, product.ID)
	return product
}

func TestAuthRegisterAndLogin(t *testing.T) {
	app, _ := setupApp(t)

	token := registerAndLogin(t, app, "testuser")
	assert.NotEmpty(t, token)

	// Duplicate registration is rejected.
	resp := doJSON(t, app, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": "testuser",
		"email":    "testuser@example.com",
		"password": "password123",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	app, _ := setupApp(t)

	for _, path := range []string{"/api/v1/products", "/api/v1/cart", "/api/v1/orders"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
		resp.Body.Close()
	}
}

func TestCartCheckoutFlow(t *testing.T) {
	app, _ := setupApp(t)
	token := registerAndLogin(t, app, "shopper")
	product := seedProduct(t, app, token, 100000, 5)

	// Add to cart.
	resp := doJSON(t, app, http.MethodPost, "/api/v1/cart/items", token, map[string]interface{}{
		"product_id": product.ID,
		"quantity":   2,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	// Checkout.
	resp = doJSON(t, app, http.MethodPost, "/api/v1/orders/checkout", token, map[string]interface{}{
		"customer_name":    "Nguyen Van A",
		"customer_phone":   "0901234567",
		"shipping_address": "123 Le Loi, Q1, TP HCM",
		"payment_method":   "vnpay",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var order models.Order
	decodeBody(t, resp, &order)

	assert.Equal(t, 200000.0, order.Subtotal)
	assert.Equal(t, 230000.0, order.Total)
	assert.Len(t, order.Items, 1)
	assert.Equal(t, models.PaymentStatusPending, order.PaymentStatus)

	// Stock was reserved and the cart cleared.
	resp = doJSON(t, app, http.MethodGet, "/api/v1/products/"+product.ID, token, nil)
	var after models.Product
	decodeBody(t, resp, &after)
	assert.Equal(t, 3, after.Stock)

	resp = doJSON(t, app, http.MethodGet, "/api/v1/cart", token, nil)
	var items []models.CartItem
	decodeBody(t, resp, &items)
	assert.Empty(t, items)

	// Checkout again with the empty cart fails.
	resp = doJSON(t, app, http.MethodPost, "/api/v1/orders/checkout", token, map[string]interface{}{
		"customer_name":    "Nguyen Van A",
		"customer_phone":   "0901234567",
		"shipping_address": "123 Le Loi, Q1, TP HCM",
		"payment_method":   "vnpay",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func signedIPNQuery(orderNumber string, amountMinor int64, responseCode string) string {
	params := payment.Params{
		"vnp_TxnRef":        orderNumber,
		"vnp_Amount":        fmt.Sprintf("%d", amountMinor),
		"vnp_ResponseCode":  responseCode,
		"vnp_TransactionNo": "14421001",
	}
	mac := hmac.New(sha512.New, []byte(testVNPSecret))
	mac.Write([]byte(params.Canonicalize()))
	params["vnp_SecureHash"] = hex.EncodeToString(mac.Sum(nil))

	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}
	return values.Encode()
}

func TestVNPayIPNEndToEnd(t *testing.T) {
	app, _ := setupApp(t)
	token := registerAndLogin(t, app, "payer")
	product := seedProduct(t, app, token, 100000, 5)

	// Buy-now order.
	resp := doJSON(t, app, http.MethodPost, "/api/v1/orders/buy-now", token, map[string]interface{}{
		"product_id":       product.ID,
		"quantity":         2,
		"customer_name":    "Nguyen Van A",
		"customer_phone":   "0901234567",
		"shipping_address": "123 Le Loi, Q1, TP HCM",
		"payment_method":   "vnpay",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var order models.Order
	decodeBody(t, resp, &order)

	// Payment URL for the order.
	resp = doJSON(t, app, http.MethodPost, "/api/v1/payments/vnpay/"+order.ID, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var urlResp map[string]string
	decodeBody(t, resp, &urlResp)
	assert.Contains(t, urlResp["payment_url"], "vnp_SecureHash=")

	// Authoritative IPN settles the order.
	ipnPath := "/api/v1/payments/vnpay/ipn?" + signedIPNQuery(order.OrderNumber, int64(order.Total*100), "00")
	req := httptest.NewRequest(http.MethodGet, ipnPath, nil)
	ipnResp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, ipnResp.StatusCode)
	var ack map[string]string
	decodeBody(t, ipnResp, &ack)
	assert.Equal(t, "00", ack["RspCode"])

	// A duplicate IPN is acknowledged as already confirmed.
	req = httptest.NewRequest(http.MethodGet, ipnPath, nil)
	ipnResp, err = app.Test(req, -1)
	require.NoError(t, err)
	decodeBody(t, ipnResp, &ack)
	assert.Equal(t, "02", ack["RspCode"])

	// The order is paid and processing.
	resp = doJSON(t, app, http.MethodGet, "/api/v1/orders/"+order.ID, token, nil)
	var settled models.Order
	decodeBody(t, resp, &settled)
	assert.Equal(t, models.PaymentStatusPaid, settled.PaymentStatus)
	assert.Equal(t, models.OrderStatusProcessing, settled.OrderStatus)
	assert.NotNil(t, settled.PaidAt)
}

func TestVNPayIPNUnknownOrderOverHTTP(t *testing.T) {
	app, _ := setupApp(t)

	ipnPath := "/api/v1/payments/vnpay/ipn?" + signedIPNQuery("ORD9912310000", 100, "00")
	req := httptest.NewRequest(http.MethodGet, ipnPath, nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	// The gateway always gets HTTP 200 with a domain code.
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ack map[string]string
	decodeBody(t, resp, &ack)
	assert.Equal(t, "01", ack["RspCode"])
}

func TestCheckoutWithVoucherOverHTTP(t *testing.T) {
	app, db := setupApp(t)
	token := registerAndLogin(t, app, "voucheruser")
	product := seedProduct(t, app, token, 100000, 5)

	// Seed the voucher directly; creation is an admin concern.
	voucherRepo := repositories.NewGORMVoucherRepository(db)
	voucher := models.Voucher{
		Code: "SALE10", Type: models.VoucherTypeDiscount, DiscountPercent: 10, IsActive: true,
		StartDate: time.Now().Add(-time.Hour), EndDate: time.Now().Add(time.Hour),
	}
	require.NoError(t, voucherRepo.Create(&voucher))

	resp := doJSON(t, app, http.MethodPost, "/api/v1/orders/buy-now", token, map[string]interface{}{
		"product_id":       product.ID,
		"quantity":         2,
		"customer_name":    "Nguyen Van A",
		"customer_phone":   "0901234567",
		"shipping_address": "123 Le Loi, Q1, TP HCM",
		"payment_method":   "cod",
		"voucher_codes":    []string{"sale10"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var order models.Order
	decodeBody(t, resp, &order)
	assert.Equal(t, 20000.0, order.Discount)
	assert.Equal(t, 210000.0, order.Total)

	// Using the same voucher again fails with a named error.
	resp = doJSON(t, app, http.MethodPost, "/api/v1/orders/buy-now", token, map[string]interface{}{
		"product_id":       product.ID,
		"quantity":         1,
		"customer_name":    "Nguyen Van A",
		"customer_phone":   "0901234567",
		"shipping_address": "123 Le Loi, Q1, TP HCM",
		"payment_method":   "cod",
		"voucher_codes":    []string{"SALE10"},
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var errResp map[string]string
	decodeBody(t, resp, &errResp)
	assert.Equal(t, "voucher_already_used", errResp["code"])
}
