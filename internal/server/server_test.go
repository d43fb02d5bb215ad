package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"bakery-backend/internal/config"
	"bakery-backend/internal/infrastructure/payos"
	"bakery-backend/internal/infrastructure/repo"
	"bakery-backend/internal/infrastructure/vnpay"
	"bakery-backend/internal/usecase"
)

type stubPayOS struct {
	webhook    payos.WebhookData
	webhookErr error
}

func (s *stubPayOS) CreatePaymentLink(_ context.Context, req payos.LinkRequest) (payos.LinkResult, error) {
	return payos.LinkResult{CheckoutURL: "https://pay.example/x"}, nil
}
func (s *stubPayOS) GetPaymentInfo(_ context.Context, _ int64) (payos.PaymentInfo, error) {
	return payos.PaymentInfo{Status: payos.StatusPending}, nil
}
func (s *stubPayOS) CancelPayment(_ context.Context, _ int64) error { return nil }
func (s *stubPayOS) VerifyWebhook(_ []byte) (payos.WebhookData, error) {
	return s.webhook, s.webhookErr
}

type stubVNPay struct {
	res       vnpay.Result
	verifyErr error
}

func (s *stubVNPay) CreatePaymentURL(orderID string, amount float64, orderInfo, clientIP string) string {
	return "https://gateway.example/pay?vnp_TxnRef=" + orderID
}
func (s *stubVNPay) VerifyPayment(_ map[string]string) (vnpay.Result, error) {
	return s.res, s.verifyErr
}

type testStack struct {
	srv    *Server
	orders *usecase.OrderService
	payos  *stubPayOS
	vnpay  *stubVNPay
}

const testSecret = "test-secret"

func newTestStack(t *testing.T) *testStack {
	t.Helper()
	orderRepo := repo.NewMemoryOrderRepo()
	inv := &usecase.InventoryService{Repo: repo.NewMemoryIngredientRepo()}
	recipes := &usecase.RecipeService{Recipes: repo.NewMemoryRecipeRepo(), Inventory: inv}
	po := &stubPayOS{}
	vp := &stubVNPay{}
	orders := &usecase.OrderService{Repo: orderRepo}
	payments := &usecase.PaymentService{
		Repo:        orderRepo,
		Recipes:     recipes,
		PayOS:       po,
		VNPay:       vp,
		FrontendURL: "https://shop.example",
	}
	cfg := config.Default()
	cfg.Env = "test"
	cfg.JWTSecret = testSecret
	srv := New(cfg, &usecase.AuthService{JWTSecret: testSecret}, orders, inv, recipes, payments)
	return &testStack{srv: srv, orders: orders, payos: po, vnpay: vp}
}

func token(t *testing.T, userID, role string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"email":   userID + "@example.com",
		"role":    role,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

func (ts *testStack) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(w, req)
	return w
}

func orderBody() map[string]any {
	return map[string]any{
		"items": []map[string]any{
			{"product_id": "p1", "name": "Banh mi", "price": 100000, "quantity": 2},
		},
		"shipping_address": "12 Le Loi, Da Nang",
		"phone":            "0905123456",
		"payment_method":   "payos",
	}
}

func TestHealth(t *testing.T) {
	ts := newTestStack(t)
	w := ts.do(t, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d", w.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	ts := newTestStack(t)

	if w := ts.do(t, http.MethodPost, "/api/orders", "", orderBody()); w.Code != http.StatusUnauthorized {
		t.Fatalf("no token: %d", w.Code)
	}
	if w := ts.do(t, http.MethodPost, "/api/orders", "garbage", orderBody()); w.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: %d", w.Code)
	}
	// admin-only surface rejects plain customers
	if w := ts.do(t, http.MethodGet, "/api/ingredients", token(t, "u1", "customer"), nil); w.Code != http.StatusForbidden {
		t.Fatalf("customer on admin route: %d", w.Code)
	}
	if w := ts.do(t, http.MethodGet, "/api/orders", token(t, "u1", "customer"), nil); w.Code != http.StatusForbidden {
		t.Fatalf("customer listing all orders: %d", w.Code)
	}
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	ts := newTestStack(t)
	cust := token(t, "u1", "customer")
	admin := token(t, "root", "admin")

	w := ts.do(t, http.MethodPost, "/api/orders", cust, orderBody())
	if w.Code != http.StatusCreated {
		t.Fatalf("create order: %d %s", w.Code, w.Body.String())
	}
	var created struct {
		ID          string  `json:"id"`
		TotalAmount float64 `json:"total_amount"`
		Status      string  `json:"status"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.TotalAmount != 200000 || created.Status != "pending" {
		t.Fatalf("created order: %+v", created)
	}

	if w := ts.do(t, http.MethodGet, "/api/orders/"+created.ID, cust, nil); w.Code != http.StatusOK {
		t.Fatalf("owner get: %d", w.Code)
	}
	if w := ts.do(t, http.MethodGet, "/api/orders/"+created.ID, token(t, "u2", "customer"), nil); w.Code != http.StatusForbidden {
		t.Fatalf("stranger get: %d", w.Code)
	}
	if w := ts.do(t, http.MethodGet, "/api/orders/nope", cust, nil); w.Code != http.StatusNotFound {
		t.Fatalf("missing get: %d", w.Code)
	}

	w = ts.do(t, http.MethodPut, "/api/orders/"+created.ID+"/status", admin, map[string]string{"status": "confirmed"})
	if w.Code != http.StatusOK {
		t.Fatalf("status update: %d %s", w.Code, w.Body.String())
	}
	w = ts.do(t, http.MethodPut, "/api/orders/"+created.ID+"/status", admin, map[string]string{"status": "paid"})
	if w.Code != http.StatusConflict {
		t.Fatalf("direct paid transition: %d", w.Code)
	}

	if w := ts.do(t, http.MethodGet, "/api/orders/stats/count", admin, nil); w.Code != http.StatusOK {
		t.Fatalf("stats: %d", w.Code)
	}
	if w := ts.do(t, http.MethodGet, "/api/delivery/"+created.ID+"/slip", admin, nil); w.Code != http.StatusOK {
		t.Fatalf("slip: %d", w.Code)
	}

	if w := ts.do(t, http.MethodPost, "/api/orders/"+created.ID+"/cancel", cust, nil); w.Code != http.StatusOK {
		t.Fatalf("cancel: %d %s", w.Code, w.Body.String())
	}
}

func TestPayOSWebhookStatusMapping(t *testing.T) {
	ts := newTestStack(t)
	cust := token(t, "u1", "customer")

	w := ts.do(t, http.MethodPost, "/api/orders", cust, orderBody())
	var created struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &created)
	w = ts.do(t, http.MethodPost, "/api/payments/payos/"+created.ID, cust, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("create payment: %d %s", w.Code, w.Body.String())
	}
	var payment struct {
		OrderCode int64 `json:"order_code"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &payment)

	// bad signature
	ts.payos.webhookErr = payos.ErrBadSignature
	if w := ts.do(t, http.MethodPost, "/api/payments/payos/webhook", "", map[string]any{}); w.Code != http.StatusUnauthorized {
		t.Fatalf("bad signature webhook: %d", w.Code)
	}
	ts.payos.webhookErr = nil

	// authentic but unknown order code: 2xx so the gateway stops retrying
	ts.payos.webhook = payos.WebhookData{OrderCode: payment.OrderCode + 1, Paid: true}
	w = ts.do(t, http.MethodPost, "/api/payments/payos/webhook", "", map[string]any{})
	if w.Code != http.StatusOK {
		t.Fatalf("unknown order webhook: %d", w.Code)
	}
	var ack struct {
		Success bool `json:"success"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &ack)
	if ack.Success {
		t.Fatalf("unknown order reported success")
	}

	// the real one
	ts.payos.webhook = payos.WebhookData{OrderCode: payment.OrderCode, Paid: true, TransactionID: "FT1"}
	w = ts.do(t, http.MethodPost, "/api/payments/payos/webhook", "", map[string]any{})
	if w.Code != http.StatusOK {
		t.Fatalf("webhook: %d %s", w.Code, w.Body.String())
	}
	_ = json.Unmarshal(w.Body.Bytes(), &ack)
	if !ack.Success {
		t.Fatalf("webhook not acknowledged: %s", w.Body.String())
	}

	w = ts.do(t, http.MethodGet, "/api/payments/check/"+created.ID, cust, nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"payment_status":"paid"`) {
		t.Fatalf("local check after webhook: %d %s", w.Code, w.Body.String())
	}
}

func TestVNPayEndpoints(t *testing.T) {
	ts := newTestStack(t)
	cust := token(t, "u1", "customer")

	w := ts.do(t, http.MethodPost, "/api/orders", cust, orderBody())
	var created struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &created)

	w = ts.do(t, http.MethodPost, "/api/payments/vnpay/"+created.ID, cust, nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "payment_url") {
		t.Fatalf("create vnpay payment: %d %s", w.Code, w.Body.String())
	}

	// browser return redirects to the storefront
	ts.vnpay.res = vnpay.Result{Success: true, Message: "Payment successful", OrderID: created.ID}
	w = ts.do(t, http.MethodGet, "/api/payments/vnpay/callback?vnp_TxnRef="+created.ID, "", nil)
	if w.Code != http.StatusFound {
		t.Fatalf("callback status: %d", w.Code)
	}
	if loc := w.Header().Get("Location"); !strings.HasPrefix(loc, "https://shop.example/payment/success") {
		t.Fatalf("callback redirect: %s", loc)
	}

	// IPN answers 200 with a gateway response code, for any outcome
	ts.vnpay.res = vnpay.Result{Success: true, OrderID: created.ID, Amount: 200000, TransactionNo: "123"}
	w = ts.do(t, http.MethodGet, "/api/payments/vnpay/ipn", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"RspCode":"00"`) {
		t.Fatalf("ipn confirm: %d %s", w.Code, w.Body.String())
	}
	w = ts.do(t, http.MethodGet, "/api/payments/vnpay/ipn", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"RspCode":"02"`) {
		t.Fatalf("duplicate ipn: %d %s", w.Code, w.Body.String())
	}
	ts.vnpay.verifyErr = vnpay.ErrBadSignature
	w = ts.do(t, http.MethodGet, "/api/payments/vnpay/ipn", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"RspCode":"97"`) {
		t.Fatalf("bad signature ipn: %d %s", w.Code, w.Body.String())
	}
}

func TestIngredientEndpoints(t *testing.T) {
	ts := newTestStack(t)
	admin := token(t, "root", "admin")

	w := ts.do(t, http.MethodPost, "/api/ingredients", admin, map[string]any{
		"name": "flour", "unit": "kg", "price_per_unit": 25000, "quantity": 10, "min_quantity": 2,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create ingredient: %d %s", w.Code, w.Body.String())
	}
	var ing struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &ing)

	w = ts.do(t, http.MethodPost, "/api/ingredients/"+ing.ID+"/reduce-stock", admin, map[string]any{"quantity": 11})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("reduce past zero: %d %s", w.Code, w.Body.String())
	}
	w = ts.do(t, http.MethodPost, "/api/ingredients/"+ing.ID+"/reduce-stock", admin, map[string]any{"quantity": 9})
	if w.Code != http.StatusOK {
		t.Fatalf("reduce: %d %s", w.Code, w.Body.String())
	}
	if w := ts.do(t, http.MethodGet, "/api/ingredients/low-stock", admin, nil); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), ing.ID) {
		t.Fatalf("low stock: %d %s", w.Code, w.Body.String())
	}
	if w := ts.do(t, http.MethodGet, "/api/ingredients/"+ing.ID+"/history", admin, nil); w.Code != http.StatusOK {
		t.Fatalf("history: %d", w.Code)
	}
}
