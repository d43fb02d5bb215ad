package usecase

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"math/big"
	"net/url"
	"strconv"
	"time"

	"bakery-backend/internal/domain"
	"bakery-backend/internal/infrastructure/payos"
	"bakery-backend/internal/infrastructure/vnpay"
	"bakery-backend/internal/logger"
	"bakery-backend/internal/metrics"
)

type PayOSGateway interface {
	CreatePaymentLink(ctx context.Context, req payos.LinkRequest) (payos.LinkResult, error)
	GetPaymentInfo(ctx context.Context, orderCode int64) (payos.PaymentInfo, error)
	CancelPayment(ctx context.Context, orderCode int64) error
	VerifyWebhook(body []byte) (payos.WebhookData, error)
}

type VNPayGateway interface {
	CreatePaymentURL(orderID string, amount float64, orderInfo, clientIP string) string
	VerifyPayment(params map[string]string) (vnpay.Result, error)
}

// PaymentService orchestrates order/gateway reconciliation: it
// allocates the correlation code, persists it before calling the
// gateway, and owns every inbound webhook/IPN/poll path that can
// transition an order to paid.
type PaymentService struct {
	Repo        OrderRepo
	Recipes     *RecipeService
	PayOS       PayOSGateway
	VNPay       VNPayGateway
	FrontendURL string
}

type PayOSPayment struct {
	OrderID    string  `json:"order_id"`
	OrderCode  int64   `json:"order_code"`
	PaymentURL string  `json:"payment_url"`
	QRCode     string  `json:"qr_code,omitempty"`
	Amount     float64 `json:"amount"`
}

// CreatePayOSPayment allocates a unique gateway order code, persists
// it on the order before the gateway call (a webhook racing the HTTP
// response can still resolve), then requests a checkout link.
func (s *PaymentService) CreatePayOSPayment(ctx context.Context, orderID string, requester *domain.User) (*PayOSPayment, error) {
	o, err := s.ownedOrder(orderID, requester.ID, false)
	if err != nil {
		return nil, err
	}
	if o.PaymentStatus == domain.PaymentPaid {
		return nil, ErrConflict("order already paid")
	}

	code, err := s.newOrderCode()
	if err != nil {
		return nil, err
	}
	// a retried create may overwrite a previous code for this order;
	// uniqueness across orders is enforced by the store
	if err := s.Repo.SetGatewayOrderCode(o.ID, code); err != nil {
		return nil, fmt.Errorf("set gateway order code: %w", err)
	}

	req := payos.LinkRequest{
		OrderCode:   code,
		Amount:      int64(o.TotalAmount),
		Description: paymentDescription(code),
		BuyerPhone:  o.Phone,
	}
	req.BuyerEmail = requester.Email
	for _, it := range o.Items {
		req.Items = append(req.Items, payos.Item{
			Name:     it.Name,
			Quantity: it.Quantity,
			Price:    int64(it.Price),
		})
	}

	link, err := s.PayOS.CreatePaymentLink(ctx, req)
	if err != nil {
		metrics.PaymentRequestsTotal.WithLabelValues("payos", "failure").Inc()
		var ge *payos.GatewayError
		if errors.As(err, &ge) {
			return nil, ErrGatewayUnavailable(ge.Desc)
		}
		logger.Error("payos create payment link failed", map[string]any{
			"order_id":   o.ID,
			"order_code": code,
			"error":      err.Error(),
		})
		return nil, ErrGatewayUnavailable("payment gateway unreachable")
	}
	metrics.PaymentRequestsTotal.WithLabelValues("payos", "success").Inc()
	return &PayOSPayment{
		OrderID:    o.ID,
		OrderCode:  code,
		PaymentURL: link.CheckoutURL,
		QRCode:     link.QRCode,
		Amount:     o.TotalAmount,
	}, nil
}

// HandlePayOSWebhook verifies the signature before anything else is
// looked up or mutated, resolves the order by correlation code (fail
// closed on a miss) and applies the idempotent paid transition.
func (s *PaymentService) HandlePayOSWebhook(ctx context.Context, body []byte) error {
	data, err := s.PayOS.VerifyWebhook(body)
	if err != nil {
		if errors.Is(err, payos.ErrBadSignature) {
			metrics.WebhookEventsTotal.WithLabelValues("payos", "bad_signature").Inc()
			logger.Warn("payos webhook rejected: bad signature", nil)
			return ErrSignatureInvalid("invalid signature")
		}
		metrics.WebhookEventsTotal.WithLabelValues("payos", "malformed").Inc()
		return ErrValidation("invalid JSON")
	}
	if !data.Paid {
		metrics.WebhookEventsTotal.WithLabelValues("payos", "not_paid").Inc()
		logger.Info("payos webhook for unpaid transaction", map[string]any{
			"order_code": data.OrderCode,
		})
		return nil
	}

	o, ok, err := s.Repo.GetByGatewayOrderCode(data.OrderCode)
	if err != nil {
		return fmt.Errorf("lookup order by gateway code: %w", err)
	}
	if !ok {
		metrics.WebhookEventsTotal.WithLabelValues("payos", "unknown_order").Inc()
		logger.Error("payos webhook for unknown order code", map[string]any{
			"order_code": data.OrderCode,
		})
		return ErrNotFound("order")
	}

	txn := data.TransactionID
	if txn == "" {
		txn = strconv.FormatInt(data.OrderCode, 10)
	}
	s.confirmPaid(o, txn, "payos")
	metrics.WebhookEventsTotal.WithLabelValues("payos", "success").Inc()
	return nil
}

type PaymentCheck struct {
	OrderID       string  `json:"order_id"`
	OrderCode     int64   `json:"order_code,omitempty"`
	PaymentStatus string  `json:"payment_status"`
	GatewayStatus string  `json:"gateway_status,omitempty"`
	Amount        float64 `json:"amount,omitempty"`
	Message       string  `json:"message,omitempty"`
}

// CheckPayOSPayment is the polling fallback for delayed or missed
// webhooks: it asks the gateway for the latest status and reconciles
// the local order when the gateway reports paid.
func (s *PaymentService) CheckPayOSPayment(ctx context.Context, orderID, requesterID string, admin bool) (*PaymentCheck, error) {
	o, err := s.ownedOrder(orderID, requesterID, admin)
	if err != nil {
		return nil, err
	}
	if o.GatewayOrderCode == 0 {
		return &PaymentCheck{
			OrderID:       o.ID,
			PaymentStatus: string(o.PaymentStatus),
			Message:       "no PayOS payment created for this order",
		}, nil
	}
	info, err := s.PayOS.GetPaymentInfo(ctx, o.GatewayOrderCode)
	if err != nil {
		logger.Warn("payos status check failed", map[string]any{
			"order_id":   o.ID,
			"order_code": o.GatewayOrderCode,
			"error":      err.Error(),
		})
		return &PaymentCheck{
			OrderID:       o.ID,
			OrderCode:     o.GatewayOrderCode,
			PaymentStatus: string(o.PaymentStatus),
			GatewayStatus: string(payos.StatusUnknown),
			Message:       "payment gateway unreachable",
		}, nil
	}
	if info.Status == payos.StatusPaid && o.PaymentStatus != domain.PaymentPaid {
		txn := info.TransactionID
		if txn == "" {
			txn = strconv.FormatInt(o.GatewayOrderCode, 10)
		}
		if updated := s.confirmPaid(o, txn, "payos"); updated != nil {
			o = updated
		}
	}
	return &PaymentCheck{
		OrderID:       o.ID,
		OrderCode:     o.GatewayOrderCode,
		PaymentStatus: string(o.PaymentStatus),
		GatewayStatus: string(info.Status),
		Amount:        float64(info.Amount),
	}, nil
}

// CancelPayOSPayment cancels the unpaid payment link at the gateway,
// then cancels the order locally.
func (s *PaymentService) CancelPayOSPayment(ctx context.Context, orderID, requesterID string) error {
	o, err := s.ownedOrder(orderID, requesterID, false)
	if err != nil {
		return err
	}
	if o.GatewayOrderCode == 0 {
		return ErrValidation("no PayOS payment to cancel")
	}
	if err := s.PayOS.CancelPayment(ctx, o.GatewayOrderCode); err != nil {
		var ge *payos.GatewayError
		if errors.As(err, &ge) {
			return ErrGatewayUnavailable(ge.Desc)
		}
		return ErrGatewayUnavailable("payment gateway unreachable")
	}
	if _, applied, err := s.Repo.Cancel(o.ID); err != nil {
		return fmt.Errorf("cancel order: %w", err)
	} else if !applied {
		return ErrConflict("cannot cancel order (already shipped or delivered)")
	}
	return nil
}

// CheckLocalPayment reports the locally stored payment status without
// a gateway call.
func (s *PaymentService) CheckLocalPayment(orderID, requesterID string, admin bool) (*domain.Order, error) {
	return s.ownedOrder(orderID, requesterID, admin)
}

// CreateVNPayPayment builds the signed redirect URL. VNPay correlates
// on the order id itself (vnp_TxnRef), so no separate code is stored.
func (s *PaymentService) CreateVNPayPayment(orderID, requesterID, clientIP string) (string, error) {
	o, err := s.ownedOrder(orderID, requesterID, false)
	if err != nil {
		return "", err
	}
	if o.PaymentStatus == domain.PaymentPaid {
		return "", ErrConflict("order already paid")
	}
	u := s.VNPay.CreatePaymentURL(o.ID, o.TotalAmount, "Payment for order "+o.ID, clientIP)
	metrics.PaymentRequestsTotal.WithLabelValues("vnpay", "success").Inc()
	return u, nil
}

// HandleVNPayReturn verifies the browser-redirect params and produces
// the front-end URL to bounce the user to. The return path never
// mutates order state; the IPN is authoritative.
func (s *PaymentService) HandleVNPayReturn(params map[string]string) (string, error) {
	res, err := s.VNPay.VerifyPayment(params)
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues("vnpay", "bad_signature").Inc()
		logger.Warn("vnpay return rejected: bad signature", map[string]any{
			"txn_ref": params["vnp_TxnRef"],
		})
		return "", ErrSignatureInvalid("invalid signature")
	}
	q := url.Values{}
	q.Set("order_id", res.OrderID)
	q.Set("message", res.Message)
	page := "/payment/cancel"
	if res.Success {
		page = "/payment/success"
	}
	return s.FrontendURL + page + "?" + q.Encode(), nil
}

// VNPay IPN response codes, parsed by the gateway itself.
const (
	IPNConfirmed        = "00"
	IPNOrderNotFound    = "01"
	IPNAlreadyConfirmed = "02"
	IPNBadSignature     = "97"
	IPNUnknownError     = "99"
)

type IPNResponse struct {
	RspCode string `json:"RspCode"`
	Message string `json:"Message"`
}

// HandleVNPayIPN processes the server-to-server callback. It always
// answers with a gateway status code; duplicate deliveries of a paid
// notification get "already confirmed" instead of re-applied side
// effects.
func (s *PaymentService) HandleVNPayIPN(params map[string]string) IPNResponse {
	res, err := s.VNPay.VerifyPayment(params)
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues("vnpay", "bad_signature").Inc()
		logger.Warn("vnpay ipn rejected: bad signature", map[string]any{
			"txn_ref": params["vnp_TxnRef"],
		})
		return IPNResponse{RspCode: IPNBadSignature, Message: "Invalid signature"}
	}

	o, ok, err := s.Repo.Get(res.OrderID)
	if err != nil {
		logger.Error("vnpay ipn order lookup failed", map[string]any{
			"order_id": res.OrderID,
			"error":    err.Error(),
		})
		return IPNResponse{RspCode: IPNUnknownError, Message: "Internal error"}
	}
	if !ok {
		metrics.WebhookEventsTotal.WithLabelValues("vnpay", "unknown_order").Inc()
		logger.Error("vnpay ipn for unknown order", map[string]any{
			"order_id": res.OrderID,
		})
		return IPNResponse{RspCode: IPNOrderNotFound, Message: "Order not found"}
	}
	if res.Amount != o.TotalAmount {
		logger.Error("vnpay ipn amount mismatch", map[string]any{
			"order_id": o.ID,
			"expected": o.TotalAmount,
			"got":      res.Amount,
		})
		return IPNResponse{RspCode: IPNUnknownError, Message: "Invalid amount"}
	}
	if !res.Success {
		// payment failed at the gateway; acknowledge receipt
		metrics.WebhookEventsTotal.WithLabelValues("vnpay", "not_paid").Inc()
		logger.Info("vnpay ipn reports failed payment", map[string]any{
			"order_id":      o.ID,
			"response_code": res.ResponseCode,
		})
		return IPNResponse{RspCode: IPNConfirmed, Message: "Confirmed"}
	}
	if o.PaymentStatus == domain.PaymentPaid {
		metrics.WebhookEventsTotal.WithLabelValues("vnpay", "duplicate").Inc()
		return IPNResponse{RspCode: IPNAlreadyConfirmed, Message: "Order already confirmed"}
	}
	s.confirmPaid(o, res.TransactionNo, "vnpay")
	metrics.WebhookEventsTotal.WithLabelValues("vnpay", "success").Inc()
	return IPNResponse{RspCode: IPNConfirmed, Message: "Confirm success"}
}

// confirmPaid applies the at-most-once paid transition and, only when
// it actually applied, deducts the sold ingredients. A deduction
// failure after a real payment is an operational alert, never a
// payment reversal.
func (s *PaymentService) confirmPaid(o *domain.Order, transactionID, gateway string) *domain.Order {
	updated, applied, err := s.Repo.MarkPaid(o.ID, transactionID, time.Now().UTC())
	if err != nil {
		logger.Error("mark paid failed", map[string]any{
			"order_id": o.ID,
			"gateway":  gateway,
			"error":    err.Error(),
		})
		return nil
	}
	if updated == nil {
		logger.Error("mark paid: order vanished", map[string]any{
			"order_id": o.ID,
			"gateway":  gateway,
		})
		return nil
	}
	if !applied {
		// duplicate delivery; first confirmation already won
		return updated
	}
	metrics.OrdersMarkedPaidTotal.Inc()
	logger.Info("order marked paid", map[string]any{
		"order_id":       o.ID,
		"gateway":        gateway,
		"transaction_id": transactionID,
	})
	s.deductForOrder(updated)
	return updated
}

func (s *PaymentService) deductForOrder(o *domain.Order) {
	if s.Recipes == nil {
		return
	}
	for _, it := range o.Items {
		if err := s.Recipes.DeductIngredients(it.ProductID, it.Quantity); err != nil {
			metrics.PostPaymentDeductionFailures.Inc()
			logger.Error("post-payment ingredient deduction failed", map[string]any{
				"order_id":   o.ID,
				"product_id": it.ProductID,
				"quantity":   it.Quantity,
				"error":      err.Error(),
			})
		}
	}
}

func (s *PaymentService) ownedOrder(orderID, requesterID string, admin bool) (*domain.Order, error) {
	o, ok, err := s.Repo.Get(orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if !ok {
		return nil, ErrNotFound("order")
	}
	if !admin && o.UserID != requesterID {
		return nil, ErrForbidden("not authorized")
	}
	return o, nil
}

// gateway order codes must be positive and fit the gateway's int32
// range; uniqueness is checked against the store before use
func (s *PaymentService) newOrderCode() (int64, error) {
	for attempt := 0; attempt < 5; attempt++ {
		n, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt32-1))
		if err != nil {
			return 0, fmt.Errorf("generate order code: %w", err)
		}
		code := n.Int64() + 1
		_, taken, err := s.Repo.GetByGatewayOrderCode(code)
		if err != nil {
			return 0, fmt.Errorf("check order code: %w", err)
		}
		if !taken {
			return code, nil
		}
	}
	return 0, ErrConflict("could not allocate a unique payment order code")
}

func paymentDescription(code int64) string {
	s := strconv.FormatInt(code, 10)
	if len(s) > 8 {
		s = s[len(s)-8:]
	}
	return "DH" + s
}
