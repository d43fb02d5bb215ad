package usecase

import (
	"testing"

	"bakery-backend/internal/domain"
	"bakery-backend/internal/infrastructure/repo"
)

func newOrderService() *OrderService {
	return &OrderService{Repo: repo.NewMemoryOrderRepo()}
}

func validOrderCreate() OrderCreate {
	return OrderCreate{
		Items: []domain.OrderItem{
			{ProductID: "p1", Name: "Banh mi", Price: 100000, Quantity: 2},
			{ProductID: "p2", Name: "Croissant", Price: 50000, Quantity: 1},
		},
		ShippingAddress: "12 Le Loi, Da Nang",
		Phone:           "0905123456",
		PaymentMethod:   domain.PaymentPayOS,
	}
}

func TestOrderCreate(t *testing.T) {
	svc := newOrderService()
	o, err := svc.Create("u1", validOrderCreate())
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if o.TotalAmount != 250000 {
		t.Fatalf("total = %v, want 250000", o.TotalAmount)
	}
	if o.Status != domain.OrderPending || o.PaymentStatus != domain.PaymentUnpaid {
		t.Fatalf("new order state: status=%s payment=%s", o.Status, o.PaymentStatus)
	}
	if o.ID == "" {
		t.Fatalf("order id not assigned")
	}

	got, err := svc.Get(o.ID)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.TotalAmount != o.TotalAmount || len(got.Items) != 2 {
		t.Fatalf("stored order differs: %+v", got)
	}
}

func TestOrderCreateValidation(t *testing.T) {
	svc := newOrderService()
	cases := []struct {
		name   string
		mutate func(*OrderCreate)
	}{
		{"no items", func(in *OrderCreate) { in.Items = nil }},
		{"zero quantity", func(in *OrderCreate) { in.Items[0].Quantity = 0 }},
		{"bad method", func(in *OrderCreate) { in.PaymentMethod = "paypal" }},
		{"no address", func(in *OrderCreate) { in.ShippingAddress = "" }},
		{"no phone", func(in *OrderCreate) { in.Phone = "" }},
		{"zero total", func(in *OrderCreate) {
			in.Items = []domain.OrderItem{{ProductID: "p1", Name: "free", Price: 0, Quantity: 1}}
		}},
	}
	for _, tc := range cases {
		in := validOrderCreate()
		tc.mutate(&in)
		if _, err := svc.Create("u1", in); !IsValidation(err) {
			t.Fatalf("%s: got %v, want validation error", tc.name, err)
		}
	}
}

func TestOrderGetForOwnership(t *testing.T) {
	svc := newOrderService()
	o, _ := svc.Create("u1", validOrderCreate())

	if _, err := svc.GetFor(o.ID, "u1", false); err != nil {
		t.Fatalf("owner read failed: %v", err)
	}
	if _, err := svc.GetFor(o.ID, "u2", false); !IsForbidden(err) {
		t.Fatalf("stranger read: got %v, want forbidden", err)
	}
	if _, err := svc.GetFor(o.ID, "u2", true); err != nil {
		t.Fatalf("admin read failed: %v", err)
	}
	if _, err := svc.GetFor("missing", "u1", false); !IsNotFound(err) {
		t.Fatalf("missing order: got %v, want not found", err)
	}
}

func TestOrderUpdateStatusTransitions(t *testing.T) {
	svc := newOrderService()
	o, _ := svc.Create("u1", validOrderCreate())

	if _, err := svc.UpdateStatus(o.ID, domain.OrderDelivered); !IsConflict(err) {
		t.Fatalf("pending->delivered: got %v, want conflict", err)
	}
	if _, err := svc.UpdateStatus(o.ID, domain.OrderPaid); !IsConflict(err) {
		t.Fatalf("direct paid: got %v, want conflict", err)
	}
	if _, err := svc.UpdateStatus(o.ID, "unknown"); !IsValidation(err) {
		t.Fatalf("bad status: got %v, want validation error", err)
	}

	upd, err := svc.UpdateStatus(o.ID, domain.OrderConfirmed)
	if err != nil {
		t.Fatalf("pending->confirmed failed: %v", err)
	}
	if upd.Status != domain.OrderConfirmed {
		t.Fatalf("status = %s", upd.Status)
	}
	if _, err := svc.UpdateStatus(o.ID, domain.OrderShipping); err != nil {
		t.Fatalf("confirmed->shipping failed: %v", err)
	}
	if _, err := svc.UpdateStatus(o.ID, domain.OrderDelivered); err != nil {
		t.Fatalf("shipping->delivered failed: %v", err)
	}
	if _, err := svc.UpdateStatus(o.ID, domain.OrderCancelled); !IsConflict(err) {
		t.Fatalf("delivered->cancelled: got %v, want conflict", err)
	}
}

func TestOrderMarkPaidIdempotent(t *testing.T) {
	svc := newOrderService()
	o, _ := svc.Create("u1", validOrderCreate())

	paid, applied, err := svc.MarkPaid(o.ID, "txn-1")
	if err != nil || !applied {
		t.Fatalf("first MarkPaid: applied=%v err=%v", applied, err)
	}
	if paid.PaymentStatus != domain.PaymentPaid || paid.Status != domain.OrderPaid {
		t.Fatalf("paid order state: %+v", paid)
	}
	if paid.PaidAt == nil || paid.GatewayTransactionID != "txn-1" {
		t.Fatalf("payment details missing: %+v", paid)
	}
	firstPaidAt := *paid.PaidAt

	again, applied, err := svc.MarkPaid(o.ID, "txn-2")
	if err != nil {
		t.Fatalf("second MarkPaid error: %v", err)
	}
	if applied {
		t.Fatalf("second MarkPaid should not apply")
	}
	if again.GatewayTransactionID != "txn-1" || !again.PaidAt.Equal(firstPaidAt) {
		t.Fatalf("duplicate confirmation overwrote payment details: %+v", again)
	}

	if _, _, err := svc.MarkPaid("missing", "txn-3"); !IsNotFound(err) {
		t.Fatalf("missing order: got %v, want not found", err)
	}
}

func TestOrderCancel(t *testing.T) {
	svc := newOrderService()
	o, _ := svc.Create("u1", validOrderCreate())

	if _, err := svc.Cancel(o.ID, "u2", false); !IsForbidden(err) {
		t.Fatalf("stranger cancel: got %v, want forbidden", err)
	}
	cancelled, err := svc.Cancel(o.ID, "u1", false)
	if err != nil {
		t.Fatalf("owner cancel failed: %v", err)
	}
	if cancelled.Status != domain.OrderCancelled {
		t.Fatalf("status = %s", cancelled.Status)
	}

	// orders already in transit stay as they are
	shipped, _ := svc.Create("u1", validOrderCreate())
	mustTransition(t, svc, shipped.ID, domain.OrderConfirmed, domain.OrderShipping)
	if _, err := svc.Cancel(shipped.ID, "u1", true); !IsConflict(err) {
		t.Fatalf("cancel shipping order: got %v, want conflict", err)
	}
	got, _ := svc.Get(shipped.ID)
	if got.Status != domain.OrderShipping {
		t.Fatalf("shipping order mutated to %s", got.Status)
	}
}

func mustTransition(t *testing.T, svc *OrderService, id string, steps ...domain.OrderStatus) {
	t.Helper()
	for _, st := range steps {
		if _, err := svc.UpdateStatus(id, st); err != nil {
			t.Fatalf("transition to %s failed: %v", st, err)
		}
	}
}

func TestOrderDelete(t *testing.T) {
	svc := newOrderService()
	o, _ := svc.Create("u1", validOrderCreate())

	if err := svc.Delete(o.ID, "u1", false); !IsConflict(err) {
		t.Fatalf("delete pending order: got %v, want conflict", err)
	}
	if _, err := svc.Cancel(o.ID, "u1", false); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if err := svc.Delete(o.ID, "u2", false); !IsForbidden(err) {
		t.Fatalf("stranger delete: got %v, want forbidden", err)
	}
	if err := svc.Delete(o.ID, "u1", false); err != nil {
		t.Fatalf("owner delete of cancelled order failed: %v", err)
	}
	if _, err := svc.Get(o.ID); !IsNotFound(err) {
		t.Fatalf("deleted order still present: %v", err)
	}

	admin, _ := svc.Create("u1", validOrderCreate())
	if err := svc.Delete(admin.ID, "admin", true); err != nil {
		t.Fatalf("admin delete failed: %v", err)
	}
}

func TestOrderStats(t *testing.T) {
	svc := newOrderService()
	a, _ := svc.Create("u1", validOrderCreate())
	b, _ := svc.Create("u1", validOrderCreate())
	_, _ = svc.Create("u2", validOrderCreate())
	mustTransition(t, svc, a.ID, domain.OrderConfirmed)
	if _, err := svc.Cancel(b.ID, "u1", false); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	stats, err := svc.Stats()
	if err != nil {
		t.Fatalf("Stats error: %v", err)
	}
	if stats["total"] != 3 || stats["pending"] != 1 || stats["confirmed"] != 1 || stats["cancelled"] != 1 {
		t.Fatalf("unexpected stats: %v", stats)
	}
}

func TestOrderSlip(t *testing.T) {
	svc := newOrderService()
	o, _ := svc.Create("u1", validOrderCreate())

	slip, err := svc.Slip(o.ID)
	if err != nil {
		t.Fatalf("Slip error: %v", err)
	}
	if slip.SlipNumber != "PGH-"+o.ID[len(o.ID)-8:] {
		t.Fatalf("slip number = %q", slip.SlipNumber)
	}
	if len(slip.Items) != 2 || slip.Items[0].Subtotal != 200000 {
		t.Fatalf("slip items: %+v", slip.Items)
	}
	if slip.TotalAmount != o.TotalAmount {
		t.Fatalf("slip total = %v", slip.TotalAmount)
	}
}

type pagingOrderRepo struct {
	*repo.MemoryOrderRepo
	limits []int
}

func (p *pagingOrderRepo) List(status domain.OrderStatus, skip, limit int) ([]domain.Order, error) {
	p.limits = append(p.limits, limit)
	return p.MemoryOrderRepo.List(status, skip, limit)
}

func (p *pagingOrderRepo) ListByUser(userID string, skip, limit int) ([]domain.Order, error) {
	p.limits = append(p.limits, limit)
	return p.MemoryOrderRepo.ListByUser(userID, skip, limit)
}

func TestOrderListLimitDefaults(t *testing.T) {
	pr := &pagingOrderRepo{MemoryOrderRepo: repo.NewMemoryOrderRepo()}
	svc := &OrderService{Repo: pr}

	if _, err := svc.ListByUser("u1", 0, 0); err != nil {
		t.Fatalf("ListByUser error: %v", err)
	}
	if _, err := svc.List("", -2, -1); err != nil {
		t.Fatalf("List error: %v", err)
	}
	if _, err := svc.List("", 0, 500); err != nil {
		t.Fatalf("List error: %v", err)
	}
	if _, err := svc.List("", 0, 7); err != nil {
		t.Fatalf("List error: %v", err)
	}

	want := []int{20, 50, 100, 7}
	if len(pr.limits) != len(want) {
		t.Fatalf("repo saw %d listings, want %d", len(pr.limits), len(want))
	}
	for i, w := range want {
		if pr.limits[i] != w {
			t.Fatalf("listing %d passed limit %d, want %d", i, pr.limits[i], w)
		}
	}
}
