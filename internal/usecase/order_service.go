package usecase

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"bakery-backend/internal/domain"
)

// OrderRepo is the durable order store. Conditional methods
// (UpdateStatusFrom, MarkPaid, Cancel) must be atomic at the store:
// the returned applied flag reports whether the guard matched.
type OrderRepo interface {
	Insert(*domain.Order) error
	Get(id string) (*domain.Order, bool, error)
	GetByGatewayOrderCode(code int64) (*domain.Order, bool, error)
	ListByUser(userID string, skip, limit int) ([]domain.Order, error)
	List(status domain.OrderStatus, skip, limit int) ([]domain.Order, error)
	Count(status domain.OrderStatus) (int, error)
	UpdateStatusFrom(id string, from, to domain.OrderStatus) (*domain.Order, bool, error)
	SetGatewayOrderCode(id string, code int64) error
	MarkPaid(id, transactionID string, paidAt time.Time) (*domain.Order, bool, error)
	Cancel(id string) (*domain.Order, bool, error)
	Delete(id string) error
}

type OrderService struct {
	Repo OrderRepo
}

type OrderCreate struct {
	Items           []domain.OrderItem
	ShippingAddress string
	Phone           string
	Note            string
	PaymentMethod   domain.PaymentMethod
}

// Create persists a new pending, unpaid order. Item prices and names
// are snapshotted as given; the total is computed here and never
// recomputed from the catalog.
func (s *OrderService) Create(userID string, in OrderCreate) (*domain.Order, error) {
	if len(in.Items) == 0 {
		return nil, ErrValidation("order must contain at least one item")
	}
	for _, it := range in.Items {
		if it.Quantity < 1 {
			return nil, ErrValidation("item quantity must be at least 1")
		}
	}
	if !in.PaymentMethod.Valid() {
		return nil, ErrValidation("invalid payment method, use 'cod', 'payos' or 'vnpay'")
	}
	if in.ShippingAddress == "" {
		return nil, ErrValidation("shipping address required")
	}
	if in.Phone == "" {
		return nil, ErrValidation("phone required")
	}

	now := time.Now().UTC()
	o := &domain.Order{
		ID:              uuid.NewString(),
		UserID:          userID,
		Items:           in.Items,
		ShippingAddress: in.ShippingAddress,
		Phone:           in.Phone,
		Note:            in.Note,
		PaymentMethod:   in.PaymentMethod,
		PaymentStatus:   domain.PaymentUnpaid,
		Status:          domain.OrderPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	o.TotalAmount = o.Total()
	if o.TotalAmount <= 0 {
		return nil, ErrValidation("order total must be greater than 0")
	}
	if err := s.Repo.Insert(o); err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}
	return o, nil
}

func (s *OrderService) Get(id string) (*domain.Order, error) {
	o, ok, err := s.Repo.Get(id)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if !ok {
		return nil, ErrNotFound("order")
	}
	return o, nil
}

// GetFor fetches an order enforcing ownership: non-admin requesters
// may only see their own orders.
func (s *OrderService) GetFor(id, requesterID string, admin bool) (*domain.Order, error) {
	o, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if !admin && o.UserID != requesterID {
		return nil, ErrForbidden("not authorized to view this order")
	}
	return o, nil
}

func (s *OrderService) ListByUser(userID string, skip, limit int) ([]domain.Order, error) {
	skip, limit = clampPage(skip, limit, 20)
	return s.Repo.ListByUser(userID, skip, limit)
}

func (s *OrderService) List(status domain.OrderStatus, skip, limit int) ([]domain.Order, error) {
	if status != "" && !status.Valid() {
		return nil, ErrValidation("invalid status filter")
	}
	skip, limit = clampPage(skip, limit, 50)
	return s.Repo.List(status, skip, limit)
}

// clampPage applies the listing page size: callers that do not ask
// for a limit get the default, and no caller gets more than 100 rows.
func clampPage(skip, limit, def int) (int, int) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = def
	}
	if limit > 100 {
		limit = 100
	}
	return skip, limit
}

// Stats returns order counts per status plus the grand total.
func (s *OrderService) Stats() (map[string]int, error) {
	out := map[string]int{}
	total, err := s.Repo.Count("")
	if err != nil {
		return nil, fmt.Errorf("count orders: %w", err)
	}
	out["total"] = total
	for _, st := range []domain.OrderStatus{
		domain.OrderPending, domain.OrderPaid, domain.OrderConfirmed,
		domain.OrderShipping, domain.OrderDelivered, domain.OrderCancelled,
	} {
		n, err := s.Repo.Count(st)
		if err != nil {
			return nil, fmt.Errorf("count orders: %w", err)
		}
		out[string(st)] = n
	}
	return out, nil
}

// UpdateStatus performs an admin-driven transition, guarded by the
// order transition table. Setting "paid" this way is rejected: the
// only path that marks an order paid is MarkPaid.
func (s *OrderService) UpdateStatus(id string, next domain.OrderStatus) (*domain.Order, error) {
	if !next.Valid() {
		return nil, ErrValidation("invalid status: " + string(next))
	}
	if next == domain.OrderPaid {
		return nil, ErrConflict("orders are marked paid through payment confirmation only")
	}
	o, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if !o.Status.CanTransition(next) {
		return nil, ErrConflict(fmt.Sprintf("cannot move order from %s to %s", o.Status, next))
	}
	updated, applied, err := s.Repo.UpdateStatusFrom(id, o.Status, next)
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}
	if !applied {
		return nil, ErrConflict("order status changed concurrently, retry")
	}
	return updated, nil
}

// MarkPaid transitions the order to paid and records the gateway
// transaction exactly once. A second call on an already-paid order is
// a no-op reported through the applied flag; paid_at and the
// transaction id keep their first values.
func (s *OrderService) MarkPaid(id, transactionID string) (*domain.Order, bool, error) {
	o, applied, err := s.Repo.MarkPaid(id, transactionID, time.Now().UTC())
	if err != nil {
		return nil, false, fmt.Errorf("mark paid: %w", err)
	}
	if o == nil {
		return nil, false, ErrNotFound("order")
	}
	return o, applied, nil
}

// Cancel rejects orders already shipping or delivered; goods in
// transit cannot be recalled.
func (s *OrderService) Cancel(id, requesterID string, admin bool) (*domain.Order, error) {
	o, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if !admin && o.UserID != requesterID {
		return nil, ErrForbidden("not authorized to cancel this order")
	}
	cancelled, applied, err := s.Repo.Cancel(id)
	if err != nil {
		return nil, fmt.Errorf("cancel order: %w", err)
	}
	if !applied {
		return nil, ErrConflict("cannot cancel order (already shipped or delivered)")
	}
	return cancelled, nil
}

// Delete removes an order. Users may only delete their own cancelled
// orders; admins may delete any.
func (s *OrderService) Delete(id, requesterID string, admin bool) error {
	o, err := s.Get(id)
	if err != nil {
		return err
	}
	if !admin {
		if o.UserID != requesterID {
			return ErrForbidden("not authorized to delete this order")
		}
		if o.Status != domain.OrderCancelled {
			return ErrConflict("only cancelled orders can be deleted")
		}
	}
	if err := s.Repo.Delete(id); err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	return nil
}

type SlipItem struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
	Subtotal float64 `json:"subtotal"`
}

type DeliverySlip struct {
	SlipNumber    string     `json:"slip_number"`
	OrderID       string     `json:"order_id"`
	OrderDate     time.Time  `json:"order_date"`
	Receiver      string     `json:"receiver"`
	Address       string     `json:"address"`
	Phone         string     `json:"phone"`
	Items         []SlipItem `json:"items"`
	TotalAmount   float64    `json:"total_amount"`
	PaymentMethod string     `json:"payment_method"`
	PaymentStatus string     `json:"payment_status"`
	Note          string     `json:"note,omitempty"`
	Status        string     `json:"status"`
}

// Slip assembles delivery-slip data for printing.
func (s *OrderService) Slip(id string) (*DeliverySlip, error) {
	o, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	slip := &DeliverySlip{
		SlipNumber:    "PGH-" + slipSuffix(o.ID),
		OrderID:       o.ID,
		OrderDate:     o.CreatedAt,
		Address:       o.ShippingAddress,
		Phone:         o.Phone,
		TotalAmount:   o.TotalAmount,
		PaymentMethod: string(o.PaymentMethod),
		PaymentStatus: string(o.PaymentStatus),
		Note:          o.Note,
		Status:        string(o.Status),
	}
	for _, it := range o.Items {
		slip.Items = append(slip.Items, SlipItem{
			Name:     it.Name,
			Quantity: it.Quantity,
			Price:    it.Price,
			Subtotal: it.Price * float64(it.Quantity),
		})
	}
	return slip, nil
}

func slipSuffix(id string) string {
	if len(id) > 8 {
		id = id[len(id)-8:]
	}
	return id
}
