// Package payos implements the PayOS merchant API: signed
// payment-link creation, webhook signature verification, status
// polling and link cancellation.
package payos

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
)

const defaultAPIURL = "https://api-merchant.payos.vn"

// descriptions longer than 25 chars are rejected by the gateway
const maxDescriptionLen = 25

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusPaid      Status = "PAID"
	StatusCancelled Status = "CANCELLED"
	StatusUnknown   Status = "UNKNOWN"
)

type Config struct {
	ClientID    string
	APIKey      string
	ChecksumKey string
	APIURL      string
	ReturnURL   string
	CancelURL   string
	HTTP        *http.Client
}

type Client struct {
	clientID    string
	apiKey      string
	checksumKey string
	apiURL      string
	returnURL   string
	cancelURL   string
	http        *http.Client
}

func New(cfg Config) *Client {
	c := &Client{
		clientID:    cfg.ClientID,
		apiKey:      cfg.APIKey,
		checksumKey: cfg.ChecksumKey,
		apiURL:      strings.TrimRight(cfg.APIURL, "/"),
		returnURL:   cfg.ReturnURL,
		cancelURL:   cfg.CancelURL,
		http:        cfg.HTTP,
	}
	if c.apiURL == "" {
		c.apiURL = defaultAPIURL
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 10 * time.Second}
	}
	return c
}

// GatewayError is a failure the gateway itself reported, as opposed
// to a transport failure reaching it.
type GatewayError struct {
	Code string
	Desc string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payos: %s (code %s)", e.Desc, e.Code)
}

type Item struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Price    int64  `json:"price"`
}

type LinkRequest struct {
	OrderCode   int64
	Amount      int64
	Description string
	BuyerName   string
	BuyerEmail  string
	BuyerPhone  string
	Items       []Item
}

type LinkResult struct {
	CheckoutURL   string
	QRCode        string
	PaymentLinkID string
}

type PaymentInfo struct {
	OrderCode     int64
	Amount        int64
	Status        Status
	TransactionID string
	PaidAt        string
}

// WebhookData is the verified content of a webhook payload. Nothing
// in it may be trusted before Verify succeeds.
type WebhookData struct {
	OrderCode     int64
	Amount        int64
	Paid          bool
	TransactionID string
	Description   string
}

// Sign canonicalizes fields per the PayOS contract: sort keys
// lexicographically, join as key=value pairs with '&' (no URL
// encoding), HMAC-SHA256 with the checksum key, hex encode.
func (c *Client) Sign(fields map[string]any) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(fieldValue(fields[k]))
	}
	mac := hmac.New(sha256.New, []byte(c.checksumKey))
	mac.Write([]byte(b.String()))
	return hex.EncodeToString(mac.Sum(nil))
}

func fieldValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

type apiEnvelope struct {
	Code string          `json:"code"`
	Desc string          `json:"desc"`
	Data json.RawMessage `json:"data"`
}

// CreatePaymentLink signs and posts a payment-request to the gateway
// and returns the checkout URL and QR payload. A non-"00" gateway
// response comes back as *GatewayError.
func (c *Client) CreatePaymentLink(ctx context.Context, req LinkRequest) (LinkResult, error) {
	desc := req.Description
	if len(desc) > maxDescriptionLen {
		desc = desc[:maxDescriptionLen]
	}
	// only these five fields participate in the signature
	signature := c.Sign(map[string]any{
		"amount":      req.Amount,
		"cancelUrl":   c.cancelURL,
		"description": desc,
		"orderCode":   req.OrderCode,
		"returnUrl":   c.returnURL,
	})

	payload := map[string]any{
		"orderCode":   req.OrderCode,
		"amount":      req.Amount,
		"description": desc,
		"cancelUrl":   c.cancelURL,
		"returnUrl":   c.returnURL,
		"signature":   signature,
	}
	if req.BuyerName != "" {
		payload["buyerName"] = req.BuyerName
	}
	if req.BuyerEmail != "" {
		payload["buyerEmail"] = req.BuyerEmail
	}
	if req.BuyerPhone != "" {
		payload["buyerPhone"] = req.BuyerPhone
	}
	if len(req.Items) > 0 {
		items := make([]Item, 0, len(req.Items))
		for _, it := range req.Items {
			name := it.Name
			if len(name) > 50 {
				name = name[:50]
			}
			items = append(items, Item{Name: name, Quantity: it.Quantity, Price: it.Price})
		}
		payload["items"] = items
	}

	var env apiEnvelope
	if err := c.do(ctx, http.MethodPost, "/v2/payment-requests", payload, &env); err != nil {
		return LinkResult{}, err
	}
	if env.Code != "00" {
		return LinkResult{}, &GatewayError{Code: env.Code, Desc: orDefault(env.Desc, "payment creation failed")}
	}
	var data struct {
		CheckoutURL   string `json:"checkoutUrl"`
		QRCode        string `json:"qrCode"`
		PaymentLinkID string `json:"paymentLinkId"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return LinkResult{}, fmt.Errorf("payos: decode payment link: %w", err)
	}
	return LinkResult{CheckoutURL: data.CheckoutURL, QRCode: data.QRCode, PaymentLinkID: data.PaymentLinkID}, nil
}

// GetPaymentInfo polls the gateway for the current payment status.
// Fallback for delayed or missed webhooks.
func (c *Client) GetPaymentInfo(ctx context.Context, orderCode int64) (PaymentInfo, error) {
	var env apiEnvelope
	path := "/v2/payment-requests/" + strconv.FormatInt(orderCode, 10)
	if err := c.do(ctx, http.MethodGet, path, nil, &env); err != nil {
		return PaymentInfo{}, err
	}
	if env.Code != "00" {
		return PaymentInfo{}, &GatewayError{Code: env.Code, Desc: orDefault(env.Desc, "failed to get payment info")}
	}
	var data struct {
		OrderCode int64  `json:"orderCode"`
		Amount    int64  `json:"amount"`
		Status    string `json:"status"`
		ID        string `json:"id"`
		CreatedAt string `json:"createdAt"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return PaymentInfo{}, fmt.Errorf("payos: decode payment info: %w", err)
	}
	return PaymentInfo{
		OrderCode:     data.OrderCode,
		Amount:        data.Amount,
		Status:        mapStatus(data.Status),
		TransactionID: data.ID,
		PaidAt:        data.CreatedAt,
	}, nil
}

// CancelPayment cancels an unpaid payment link. Best effort.
func (c *Client) CancelPayment(ctx context.Context, orderCode int64) error {
	var env apiEnvelope
	path := "/v2/payment-requests/" + strconv.FormatInt(orderCode, 10) + "/cancel"
	if err := c.do(ctx, http.MethodPost, path, nil, &env); err != nil {
		return err
	}
	if env.Code != "00" {
		return &GatewayError{Code: env.Code, Desc: orDefault(env.Desc, "cancel failed")}
	}
	return nil
}

// VerifyWebhook recomputes the HMAC over the payload's data fields
// and compares it to the carried signature in constant time. It must
// run before any order lookup or mutation: it is the sole trust
// boundary between the gateway and local order state.
func (c *Client) VerifyWebhook(body []byte) (WebhookData, error) {
	var payload struct {
		Data      map[string]json.RawMessage `json:"data"`
		Signature string                     `json:"signature"`
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		return WebhookData{}, fmt.Errorf("payos: malformed webhook body: %w", err)
	}
	if payload.Signature == "" || len(payload.Data) == 0 {
		return WebhookData{}, ErrBadSignature
	}
	fields := make(map[string]any, len(payload.Data))
	for k, raw := range payload.Data {
		fields[k] = decodeScalar(raw)
	}
	expected := c.Sign(fields)
	if !hmac.Equal([]byte(expected), []byte(payload.Signature)) {
		return WebhookData{}, ErrBadSignature
	}

	var data struct {
		OrderCode   int64  `json:"orderCode"`
		Amount      int64  `json:"amount"`
		Code        string `json:"code"`
		Reference   string `json:"reference"`
		Description string `json:"description"`
	}
	raw, _ := json.Marshal(payload.Data)
	if err := json.Unmarshal(raw, &data); err != nil {
		return WebhookData{}, fmt.Errorf("payos: decode webhook data: %w", err)
	}
	return WebhookData{
		OrderCode:     data.OrderCode,
		Amount:        data.Amount,
		Paid:          data.Code == "00",
		TransactionID: data.Reference,
		Description:   data.Description,
	}, nil
}

// ErrBadSignature covers both a missing and a mismatching webhook
// signature. Callers must not leak which one it was.
var ErrBadSignature = fmt.Errorf("payos: invalid webhook signature")

func decodeScalar(raw json.RawMessage) any {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return string(raw)
	}
	return v
}

func (c *Client) do(ctx context.Context, method, path string, body any, out *apiEnvelope) error {
	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("x-client-id", c.clientID)
	req.Header.Set("x-api-key", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("payos: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("payos: decode response: %w", err)
	}
	return nil
}

func mapStatus(s string) Status {
	switch s {
	case "PENDING":
		return StatusPending
	case "PAID":
		return StatusPaid
	case "CANCELLED":
		return StatusCancelled
	default:
		return StatusUnknown
	}
}

func orDefault(s, d string) string {
	if strings.TrimSpace(s) == "" {
		return d
	}
	return s
}
