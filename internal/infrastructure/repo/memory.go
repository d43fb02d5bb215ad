package repo

import (
	"sort"
	"sync"
	"time"

	"bakery-backend/internal/domain"
)

// In-memory repositories used by tests and dev mode. The conditional
// methods honor the same atomicity contract as the Postgres store:
// guards are evaluated under the lock.

type MemoryOrderRepo struct {
	mu    sync.RWMutex
	m     map[string]*domain.Order
	codes map[int64]string
}

func NewMemoryOrderRepo() *MemoryOrderRepo {
	return &MemoryOrderRepo{m: make(map[string]*domain.Order), codes: make(map[int64]string)}
}

func (r *MemoryOrderRepo) Insert(o *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *o
	r.m[o.ID] = &cp
	return nil
}

func (r *MemoryOrderRepo) Get(id string) (*domain.Order, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.m[id]
	if !ok {
		return nil, false, nil
	}
	cp := *o
	return &cp, true, nil
}

func (r *MemoryOrderRepo) GetByGatewayOrderCode(code int64) (*domain.Order, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.codes[code]
	if !ok {
		return nil, false, nil
	}
	o, ok := r.m[id]
	if !ok {
		return nil, false, nil
	}
	cp := *o
	return &cp, true, nil
}

func (r *MemoryOrderRepo) ListByUser(userID string, skip, limit int) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var all []domain.Order
	for _, o := range r.m {
		if o.UserID == userID {
			all = append(all, *o)
		}
	}
	return window(sortByCreated(all), skip, limit), nil
}

func (r *MemoryOrderRepo) List(status domain.OrderStatus, skip, limit int) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var all []domain.Order
	for _, o := range r.m {
		if status == "" || o.Status == status {
			all = append(all, *o)
		}
	}
	return window(sortByCreated(all), skip, limit), nil
}

func (r *MemoryOrderRepo) Count(status domain.OrderStatus) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, o := range r.m {
		if status == "" || o.Status == status {
			n++
		}
	}
	return n, nil
}

func (r *MemoryOrderRepo) UpdateStatusFrom(id string, from, to domain.OrderStatus) (*domain.Order, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.m[id]
	if !ok || o.Status != from {
		return nil, false, nil
	}
	o.Status = to
	o.UpdatedAt = time.Now().UTC()
	cp := *o
	return &cp, true, nil
}

func (r *MemoryOrderRepo) SetGatewayOrderCode(id string, code int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.m[id]
	if !ok {
		return errNotFound
	}
	if owner, taken := r.codes[code]; taken && owner != id {
		return errCodeTaken
	}
	if o.GatewayOrderCode != 0 {
		delete(r.codes, o.GatewayOrderCode)
	}
	o.GatewayOrderCode = code
	o.UpdatedAt = time.Now().UTC()
	r.codes[code] = id
	return nil
}

func (r *MemoryOrderRepo) MarkPaid(id, transactionID string, paidAt time.Time) (*domain.Order, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.m[id]
	if !ok {
		return nil, false, nil
	}
	if o.PaymentStatus == domain.PaymentPaid {
		cp := *o
		return &cp, false, nil
	}
	o.PaymentStatus = domain.PaymentPaid
	o.Status = domain.OrderPaid
	o.GatewayTransactionID = transactionID
	o.PaidAt = &paidAt
	o.UpdatedAt = time.Now().UTC()
	cp := *o
	return &cp, true, nil
}

func (r *MemoryOrderRepo) Cancel(id string) (*domain.Order, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.m[id]
	if !ok {
		return nil, false, nil
	}
	if o.Status == domain.OrderShipping || o.Status == domain.OrderDelivered {
		cp := *o
		return &cp, false, nil
	}
	o.Status = domain.OrderCancelled
	o.UpdatedAt = time.Now().UTC()
	cp := *o
	return &cp, true, nil
}

func (r *MemoryOrderRepo) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.m[id]; ok && o.GatewayOrderCode != 0 {
		delete(r.codes, o.GatewayOrderCode)
	}
	delete(r.m, id)
	return nil
}

type MemoryIngredientRepo struct {
	mu        sync.RWMutex
	m         map[string]*domain.Ingredient
	movements []domain.StockMovement
}

func NewMemoryIngredientRepo() *MemoryIngredientRepo {
	return &MemoryIngredientRepo{m: make(map[string]*domain.Ingredient)}
}

func (r *MemoryIngredientRepo) Insert(i *domain.Ingredient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *i
	r.m[i.ID] = &cp
	return nil
}

func (r *MemoryIngredientRepo) Get(id string) (*domain.Ingredient, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.m[id]
	if !ok {
		return nil, false, nil
	}
	cp := *i
	return &cp, true, nil
}

func (r *MemoryIngredientRepo) List(includeInactive bool) ([]domain.Ingredient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Ingredient
	for _, i := range r.m {
		if includeInactive || i.IsActive {
			out = append(out, *i)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out, nil
}

func (r *MemoryIngredientRepo) UpdateDetails(i *domain.Ingredient) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.m[i.ID]
	if !ok {
		return false, nil
	}
	// quantity stays owned by the CAS path
	qty := cur.Quantity
	cp := *i
	cp.Quantity = qty
	r.m[i.ID] = &cp
	return true, nil
}

func (r *MemoryIngredientRepo) Deactivate(id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.m[id]
	if !ok {
		return false, nil
	}
	i.IsActive = false
	i.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *MemoryIngredientRepo) CompareAndSwapQuantity(id string, old, new float64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.m[id]
	if !ok || i.Quantity != old {
		return false, nil
	}
	i.Quantity = new
	i.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *MemoryIngredientRepo) LowStock() ([]domain.Ingredient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Ingredient
	for _, i := range r.m {
		if i.IsActive && i.Quantity <= i.MinQuantity {
			out = append(out, *i)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out, nil
}

func (r *MemoryIngredientRepo) AppendMovement(m *domain.StockMovement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.movements = append(r.movements, *m)
	return nil
}

func (r *MemoryIngredientRepo) Movements(ingredientID string, limit int) ([]domain.StockMovement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.StockMovement
	for i := len(r.movements) - 1; i >= 0 && len(out) < limit; i-- {
		if r.movements[i].IngredientID == ingredientID {
			out = append(out, r.movements[i])
		}
	}
	return out, nil
}

type MemoryRecipeRepo struct {
	mu        sync.RWMutex
	m         map[string]*domain.Recipe
	byProduct map[string]string
}

func NewMemoryRecipeRepo() *MemoryRecipeRepo {
	return &MemoryRecipeRepo{m: make(map[string]*domain.Recipe), byProduct: make(map[string]string)}
}

func (r *MemoryRecipeRepo) Insert(rc *domain.Recipe) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.byProduct[rc.ProductID]; taken {
		return errProductTaken
	}
	cp := *rc
	r.m[rc.ID] = &cp
	r.byProduct[rc.ProductID] = rc.ID
	return nil
}

func (r *MemoryRecipeRepo) Get(id string) (*domain.Recipe, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rc, ok := r.m[id]
	if !ok {
		return nil, false, nil
	}
	cp := *rc
	return &cp, true, nil
}

func (r *MemoryRecipeRepo) GetByProduct(productID string) (*domain.Recipe, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byProduct[productID]
	if !ok {
		return nil, false, nil
	}
	rc, ok := r.m[id]
	if !ok {
		return nil, false, nil
	}
	cp := *rc
	return &cp, true, nil
}

func (r *MemoryRecipeRepo) Update(rc *domain.Recipe) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.m[rc.ID]; !ok {
		return false, nil
	}
	cp := *rc
	r.m[rc.ID] = &cp
	return true, nil
}

func (r *MemoryRecipeRepo) Delete(id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rc, ok := r.m[id]
	if !ok {
		return false, nil
	}
	delete(r.byProduct, rc.ProductID)
	delete(r.m, id)
	return true, nil
}

func sortByCreated(orders []domain.Order) []domain.Order {
	sort.Slice(orders, func(a, b int) bool {
		return orders[a].CreatedAt.After(orders[b].CreatedAt)
	})
	return orders
}

func window(all []domain.Order, skip, limit int) []domain.Order {
	if skip > len(all) {
		skip = len(all)
	}
	end := skip + limit
	if limit <= 0 || end > len(all) {
		end = len(all)
	}
	return all[skip:end]
}
