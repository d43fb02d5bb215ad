package domain

import "time"

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPaid      OrderStatus = "paid"
	OrderConfirmed OrderStatus = "confirmed"
	OrderShipping  OrderStatus = "shipping"
	OrderDelivered OrderStatus = "delivered"
	OrderCancelled OrderStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

type PaymentMethod string

const (
	PaymentCOD   PaymentMethod = "cod"
	PaymentPayOS PaymentMethod = "payos"
	PaymentVNPay PaymentMethod = "vnpay"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCOD, PaymentPayOS, PaymentVNPay:
		return true
	}
	return false
}

// OrderItem is a snapshot taken at order creation; catalog price
// changes must not alter historical orders.
type OrderItem struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	Image     string  `json:"image,omitempty"`
}

type Order struct {
	ID                   string        `json:"id"`
	UserID               string        `json:"user_id"`
	Items                []OrderItem   `json:"items"`
	TotalAmount          float64       `json:"total_amount"`
	ShippingAddress      string        `json:"shipping_address"`
	Phone                string        `json:"phone"`
	Note                 string        `json:"note,omitempty"`
	PaymentMethod        PaymentMethod `json:"payment_method"`
	PaymentStatus        PaymentStatus `json:"payment_status"`
	Status               OrderStatus   `json:"status"`
	GatewayOrderCode     int64         `json:"gateway_order_code,omitempty"`
	GatewayTransactionID string        `json:"gateway_transaction_id,omitempty"`
	PaidAt               *time.Time    `json:"paid_at,omitempty"`
	CreatedAt            time.Time     `json:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at"`
}

// Total sums price*quantity over the item snapshots.
func (o *Order) Total() float64 {
	var sum float64
	for _, it := range o.Items {
		sum += it.Price * float64(it.Quantity)
	}
	return sum
}

// Cancellable reports whether the order may still be cancelled.
// Once goods are shipping or delivered, cancellation is rejected.
func (s OrderStatus) Cancellable() bool {
	switch s {
	case OrderPending, OrderPaid, OrderConfirmed:
		return true
	}
	return false
}

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:   {OrderPaid, OrderConfirmed, OrderCancelled},
	OrderPaid:      {OrderConfirmed, OrderCancelled},
	OrderConfirmed: {OrderShipping, OrderCancelled},
	OrderShipping:  {OrderDelivered},
}

// CanTransition reports whether moving from s to next is allowed:
// forward moves only, plus cancellation from the cancellable states.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	for _, t := range orderTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderPaid, OrderConfirmed, OrderShipping, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}
