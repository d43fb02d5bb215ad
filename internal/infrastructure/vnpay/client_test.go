package vnpay

import (
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"
)

func testClient() *Client {
	c := New(Config{
		TmnCode:    "BAKERY01",
		HashSecret: "vnp-secret",
		PayURL:     "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
		ReturnURL:  "https://shop.example/api/payments/vnpay/callback",
	})
	c.now = func() time.Time { return time.Date(2024, 6, 12, 15, 4, 5, 0, time.UTC) }
	return c
}

func TestCreatePaymentURL(t *testing.T) {
	c := testClient()
	raw := c.CreatePaymentURL("order-123", 250000, "Thanh toan don hang order-123", "203.0.113.7")

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse payment url: %v", err)
	}
	if !strings.HasPrefix(raw, "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html?") {
		t.Fatalf("unexpected base url: %s", raw)
	}
	q := u.Query()
	if got := q.Get("vnp_Amount"); got != "25000000" {
		t.Fatalf("vnp_Amount = %q, want amount x100", got)
	}
	if q.Get("vnp_TxnRef") != "order-123" {
		t.Fatalf("vnp_TxnRef = %q", q.Get("vnp_TxnRef"))
	}
	if q.Get("vnp_CreateDate") != "20240612150405" {
		t.Fatalf("vnp_CreateDate = %q", q.Get("vnp_CreateDate"))
	}
	if q.Get("vnp_SecureHash") == "" {
		t.Fatalf("missing vnp_SecureHash")
	}

	// the URL the client builds must verify with the same secret
	params := map[string]string{}
	for k, vs := range q {
		params[k] = vs[0]
	}
	res, err := c.VerifyPayment(params)
	if err != nil {
		t.Fatalf("round-trip verify failed: %v", err)
	}
	if res.OrderID != "order-123" || res.Amount != 250000 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func signedParams(c *Client, overrides map[string]string) map[string]string {
	params := map[string]string{
		"vnp_Amount":        "25000000",
		"vnp_TxnRef":        "order-123",
		"vnp_ResponseCode":  "00",
		"vnp_TransactionNo": "14226112",
		"vnp_TmnCode":       "BAKERY01",
	}
	for k, v := range overrides {
		params[k] = v
	}
	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}
	params["vnp_SecureHash"] = c.hmacSHA512(values.Encode())
	return params
}

func TestVerifyPayment(t *testing.T) {
	c := testClient()

	res, err := c.VerifyPayment(signedParams(c, nil))
	if err != nil {
		t.Fatalf("VerifyPayment error: %v", err)
	}
	if !res.Success || res.ResponseCode != "00" {
		t.Fatalf("expected success: %+v", res)
	}
	if res.TransactionNo != "14226112" || res.Amount != 250000 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestVerifyPaymentFailedCode(t *testing.T) {
	c := testClient()
	res, err := c.VerifyPayment(signedParams(c, map[string]string{"vnp_ResponseCode": "24"}))
	if err != nil {
		t.Fatalf("VerifyPayment error: %v", err)
	}
	if res.Success {
		t.Fatalf("code 24 should not be success")
	}
	if !strings.Contains(res.Message, "24") {
		t.Fatalf("message should carry the code: %q", res.Message)
	}
}

func TestVerifyPaymentRejectsTampering(t *testing.T) {
	c := testClient()

	params := signedParams(c, nil)
	params["vnp_Amount"] = "100"
	if _, err := c.VerifyPayment(params); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("tampered amount: got %v, want ErrBadSignature", err)
	}

	params = signedParams(c, nil)
	delete(params, "vnp_SecureHash")
	if _, err := c.VerifyPayment(params); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("missing hash: got %v, want ErrBadSignature", err)
	}

	other := New(Config{HashSecret: "different"})
	if _, err := c.VerifyPayment(signedParams(other, nil)); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("wrong secret: got %v, want ErrBadSignature", err)
	}
}

func TestVerifyPaymentIgnoresHashTypeParam(t *testing.T) {
	c := testClient()
	params := signedParams(c, nil)
	// gateways append this alongside the hash; it is excluded from signing
	params["vnp_SecureHashType"] = "HMACSHA512"
	if _, err := c.VerifyPayment(params); err != nil {
		t.Fatalf("vnp_SecureHashType should not break verification: %v", err)
	}
}
