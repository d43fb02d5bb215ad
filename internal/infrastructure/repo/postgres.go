package repo

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"bakery-backend/internal/domain"
)

// PostgresRepo implements the order, ingredient and recipe stores on
// a single database. Every conditional transition is a single
// UPDATE ... WHERE guard ... RETURNING statement, so the guard and
// the write are atomic per row.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(dsn string) (*PostgresRepo, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	r := &PostgresRepo{db: db}
	if err := r.init(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *PostgresRepo) Close() error { return r.db.Close() }

func (r *PostgresRepo) init() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS orders (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			items TEXT NOT NULL,
			total_amount DOUBLE PRECISION NOT NULL,
			shipping_address TEXT,
			phone TEXT,
			note TEXT,
			payment_method TEXT NOT NULL,
			payment_status TEXT NOT NULL,
			status TEXT NOT NULL,
			gateway_order_code BIGINT,
			gateway_transaction_id TEXT,
			paid_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS orders_gateway_order_code
			ON orders (gateway_order_code) WHERE gateway_order_code IS NOT NULL;`,
		`CREATE TABLE IF NOT EXISTS ingredients (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			unit TEXT NOT NULL,
			price_per_unit DOUBLE PRECISION NOT NULL,
			quantity DOUBLE PRECISION NOT NULL CHECK (quantity >= 0),
			min_quantity DOUBLE PRECISION NOT NULL,
			supplier TEXT,
			description TEXT,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS stock_movements (
			id TEXT PRIMARY KEY,
			ingredient_id TEXT NOT NULL,
			type TEXT NOT NULL,
			quantity DOUBLE PRECISION NOT NULL,
			before_qty DOUBLE PRECISION NOT NULL,
			after_qty DOUBLE PRECISION NOT NULL,
			note TEXT,
			created_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS recipes (
			id TEXT PRIMARY KEY,
			product_id TEXT NOT NULL UNIQUE,
			ingredients TEXT NOT NULL,
			instructions TEXT,
			prep_time INT,
			cook_time INT,
			servings INT,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

const orderColumns = `id,user_id,items,total_amount,shipping_address,phone,note,payment_method,payment_status,status,gateway_order_code,gateway_transaction_id,paid_at,created_at,updated_at`

func (r *PostgresRepo) Insert(o *domain.Order) error {
	items, _ := json.Marshal(o.Items)
	_, err := r.db.Exec(`INSERT INTO orders (`+orderColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		o.ID, o.UserID, string(items), o.TotalAmount, o.ShippingAddress, o.Phone, o.Note,
		string(o.PaymentMethod), string(o.PaymentStatus), string(o.Status),
		nullCode(o.GatewayOrderCode), nullStr(o.GatewayTransactionID), o.PaidAt,
		o.CreatedAt, o.UpdatedAt)
	return err
}

func (r *PostgresRepo) Get(id string) (*domain.Order, bool, error) {
	return r.scanOrder(r.db.QueryRow(`SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
}

func (r *PostgresRepo) GetByGatewayOrderCode(code int64) (*domain.Order, bool, error) {
	return r.scanOrder(r.db.QueryRow(`SELECT `+orderColumns+` FROM orders WHERE gateway_order_code=$1`, code))
}

func (r *PostgresRepo) ListByUser(userID string, skip, limit int) ([]domain.Order, error) {
	rows, err := r.db.Query(`SELECT `+orderColumns+` FROM orders WHERE user_id=$1
		ORDER BY created_at DESC OFFSET $2 LIMIT $3`, userID, max(skip, 0), sqlLimit(limit))
	if err != nil {
		return nil, err
	}
	return r.collectOrders(rows)
}

func (r *PostgresRepo) List(status domain.OrderStatus, skip, limit int) ([]domain.Order, error) {
	rows, err := r.db.Query(`SELECT `+orderColumns+` FROM orders
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC OFFSET $2 LIMIT $3`, string(status), max(skip, 0), sqlLimit(limit))
	if err != nil {
		return nil, err
	}
	return r.collectOrders(rows)
}

// sqlLimit maps limit <= 0 to LIMIT NULL, the same "no limit"
// reading the in-memory store gives it.
func sqlLimit(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}

func (r *PostgresRepo) Count(status domain.OrderStatus) (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(1) FROM orders WHERE ($1 = '' OR status = $1)`, string(status)).Scan(&n)
	return n, err
}

func (r *PostgresRepo) UpdateStatusFrom(id string, from, to domain.OrderStatus) (*domain.Order, bool, error) {
	return r.scanOrder(r.db.QueryRow(`UPDATE orders SET status=$3, updated_at=$4
		WHERE id=$1 AND status=$2 RETURNING `+orderColumns,
		id, string(from), string(to), time.Now().UTC()))
}

func (r *PostgresRepo) SetGatewayOrderCode(id string, code int64) error {
	res, err := r.db.Exec(`UPDATE orders SET gateway_order_code=$2, updated_at=$3 WHERE id=$1`,
		id, code, time.Now().UTC())
	if err != nil {
		if pqe, ok := err.(*pq.Error); ok && pqe.Code == "23505" {
			return errCodeTaken
		}
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return errNotFound
	}
	return nil
}

func (r *PostgresRepo) MarkPaid(id, transactionID string, paidAt time.Time) (*domain.Order, bool, error) {
	o, applied, err := r.scanOrder(r.db.QueryRow(`UPDATE orders
		SET payment_status=$2, status=$3, gateway_transaction_id=$4, paid_at=$5, updated_at=$6
		WHERE id=$1 AND payment_status <> $2 RETURNING `+orderColumns,
		id, string(domain.PaymentPaid), string(domain.OrderPaid), transactionID, paidAt, time.Now().UTC()))
	if err != nil || applied {
		return o, applied, err
	}
	// guard did not match: distinguish already-paid from missing
	cur, ok, err := r.Get(id)
	if err != nil || !ok {
		return nil, false, err
	}
	return cur, false, nil
}

func (r *PostgresRepo) Cancel(id string) (*domain.Order, bool, error) {
	o, applied, err := r.scanOrder(r.db.QueryRow(`UPDATE orders SET status=$2, updated_at=$3
		WHERE id=$1 AND status NOT IN ($4,$5) RETURNING `+orderColumns,
		id, string(domain.OrderCancelled), time.Now().UTC(),
		string(domain.OrderShipping), string(domain.OrderDelivered)))
	if err != nil || applied {
		return o, applied, err
	}
	cur, ok, err := r.Get(id)
	if err != nil || !ok {
		return nil, false, err
	}
	return cur, false, nil
}

func (r *PostgresRepo) Delete(id string) error {
	_, err := r.db.Exec(`DELETE FROM orders WHERE id=$1`, id)
	return err
}

func (r *PostgresRepo) scanOrder(row *sql.Row) (*domain.Order, bool, error) {
	var o domain.Order
	var items string
	var code sql.NullInt64
	var txn sql.NullString
	var paidAt sql.NullTime
	err := row.Scan(&o.ID, &o.UserID, &items, &o.TotalAmount, &o.ShippingAddress, &o.Phone, &o.Note,
		(*string)(&o.PaymentMethod), (*string)(&o.PaymentStatus), (*string)(&o.Status),
		&code, &txn, &paidAt, &o.CreatedAt, &o.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if err := json.Unmarshal([]byte(items), &o.Items); err != nil {
		return nil, false, fmt.Errorf("decode items for order %s: %w", o.ID, err)
	}
	if code.Valid {
		o.GatewayOrderCode = code.Int64
	}
	if txn.Valid {
		o.GatewayTransactionID = txn.String
	}
	if paidAt.Valid {
		t := paidAt.Time
		o.PaidAt = &t
	}
	return &o, true, nil
}

func (r *PostgresRepo) collectOrders(rows *sql.Rows) ([]domain.Order, error) {
	defer rows.Close()
	var out []domain.Order
	for rows.Next() {
		var o domain.Order
		var items string
		var code sql.NullInt64
		var txn sql.NullString
		var paidAt sql.NullTime
		if err := rows.Scan(&o.ID, &o.UserID, &items, &o.TotalAmount, &o.ShippingAddress, &o.Phone, &o.Note,
			(*string)(&o.PaymentMethod), (*string)(&o.PaymentStatus), (*string)(&o.Status),
			&code, &txn, &paidAt, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(items), &o.Items); err != nil {
			return nil, fmt.Errorf("decode items for order %s: %w", o.ID, err)
		}
		if code.Valid {
			o.GatewayOrderCode = code.Int64
		}
		if txn.Valid {
			o.GatewayTransactionID = txn.String
		}
		if paidAt.Valid {
			t := paidAt.Time
			o.PaidAt = &t
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

const ingredientColumns = `id,name,unit,price_per_unit,quantity,min_quantity,supplier,description,is_active,created_at,updated_at`

func (r *PostgresRepo) InsertIngredient(i *domain.Ingredient) error {
	_, err := r.db.Exec(`INSERT INTO ingredients (`+ingredientColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		i.ID, i.Name, i.Unit, i.PricePerUnit, i.Quantity, i.MinQuantity,
		i.Supplier, i.Description, i.IsActive, i.CreatedAt, i.UpdatedAt)
	return err
}

func (r *PostgresRepo) GetIngredient(id string) (*domain.Ingredient, bool, error) {
	var i domain.Ingredient
	err := r.db.QueryRow(`SELECT `+ingredientColumns+` FROM ingredients WHERE id=$1`, id).
		Scan(&i.ID, &i.Name, &i.Unit, &i.PricePerUnit, &i.Quantity, &i.MinQuantity,
			&i.Supplier, &i.Description, &i.IsActive, &i.CreatedAt, &i.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &i, true, nil
}

func (r *PostgresRepo) ListIngredients(includeInactive bool) ([]domain.Ingredient, error) {
	rows, err := r.db.Query(`SELECT `+ingredientColumns+` FROM ingredients
		WHERE ($1 OR is_active) ORDER BY name ASC`, includeInactive)
	if err != nil {
		return nil, err
	}
	return collectIngredients(rows)
}

func (r *PostgresRepo) UpdateIngredientDetails(i *domain.Ingredient) (bool, error) {
	res, err := r.db.Exec(`UPDATE ingredients SET name=$2, unit=$3, price_per_unit=$4,
		min_quantity=$5, supplier=$6, description=$7, updated_at=$8 WHERE id=$1`,
		i.ID, i.Name, i.Unit, i.PricePerUnit, i.MinQuantity, i.Supplier, i.Description, i.UpdatedAt)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *PostgresRepo) DeactivateIngredient(id string) (bool, error) {
	res, err := r.db.Exec(`UPDATE ingredients SET is_active=FALSE, updated_at=$2 WHERE id=$1`,
		id, time.Now().UTC())
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// CompareAndSwapIngredientQuantity swaps the stock level only when it
// still holds the value the caller read.
func (r *PostgresRepo) CompareAndSwapIngredientQuantity(id string, old, new float64) (bool, error) {
	res, err := r.db.Exec(`UPDATE ingredients SET quantity=$3, updated_at=$4
		WHERE id=$1 AND quantity=$2`, id, old, new, time.Now().UTC())
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *PostgresRepo) LowStockIngredients() ([]domain.Ingredient, error) {
	rows, err := r.db.Query(`SELECT ` + ingredientColumns + ` FROM ingredients
		WHERE is_active AND quantity <= min_quantity ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	return collectIngredients(rows)
}

func (r *PostgresRepo) AppendStockMovement(m *domain.StockMovement) error {
	_, err := r.db.Exec(`INSERT INTO stock_movements (id,ingredient_id,type,quantity,before_qty,after_qty,note,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		m.ID, m.IngredientID, string(m.Type), m.Quantity, m.Before, m.After, m.Note, m.CreatedAt)
	return err
}

func (r *PostgresRepo) StockMovements(ingredientID string, limit int) ([]domain.StockMovement, error) {
	rows, err := r.db.Query(`SELECT id,ingredient_id,type,quantity,before_qty,after_qty,note,created_at
		FROM stock_movements WHERE ingredient_id=$1 ORDER BY created_at DESC LIMIT $2`,
		ingredientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.StockMovement
	for rows.Next() {
		var m domain.StockMovement
		if err := rows.Scan(&m.ID, &m.IngredientID, (*string)(&m.Type), &m.Quantity,
			&m.Before, &m.After, &m.Note, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func collectIngredients(rows *sql.Rows) ([]domain.Ingredient, error) {
	defer rows.Close()
	var out []domain.Ingredient
	for rows.Next() {
		var i domain.Ingredient
		if err := rows.Scan(&i.ID, &i.Name, &i.Unit, &i.PricePerUnit, &i.Quantity, &i.MinQuantity,
			&i.Supplier, &i.Description, &i.IsActive, &i.CreatedAt, &i.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

const recipeColumns = `id,product_id,ingredients,instructions,prep_time,cook_time,servings,created_at,updated_at`

func (r *PostgresRepo) InsertRecipe(rc *domain.Recipe) error {
	lines, _ := json.Marshal(rc.Ingredients)
	_, err := r.db.Exec(`INSERT INTO recipes (`+recipeColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		rc.ID, rc.ProductID, string(lines), rc.Instructions,
		rc.PrepTime, rc.CookTime, rc.Servings, rc.CreatedAt, rc.UpdatedAt)
	if pqe, ok := err.(*pq.Error); ok && pqe.Code == "23505" {
		return errProductTaken
	}
	return err
}

func (r *PostgresRepo) GetRecipe(id string) (*domain.Recipe, bool, error) {
	return r.scanRecipe(r.db.QueryRow(`SELECT `+recipeColumns+` FROM recipes WHERE id=$1`, id))
}

func (r *PostgresRepo) GetRecipeByProduct(productID string) (*domain.Recipe, bool, error) {
	return r.scanRecipe(r.db.QueryRow(`SELECT `+recipeColumns+` FROM recipes WHERE product_id=$1`, productID))
}

func (r *PostgresRepo) UpdateRecipe(rc *domain.Recipe) (bool, error) {
	lines, _ := json.Marshal(rc.Ingredients)
	res, err := r.db.Exec(`UPDATE recipes SET ingredients=$2, instructions=$3,
		prep_time=$4, cook_time=$5, servings=$6, updated_at=$7 WHERE id=$1`,
		rc.ID, string(lines), rc.Instructions, rc.PrepTime, rc.CookTime, rc.Servings, rc.UpdatedAt)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *PostgresRepo) DeleteRecipe(id string) (bool, error) {
	res, err := r.db.Exec(`DELETE FROM recipes WHERE id=$1`, id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *PostgresRepo) scanRecipe(row *sql.Row) (*domain.Recipe, bool, error) {
	var rc domain.Recipe
	var lines string
	err := row.Scan(&rc.ID, &rc.ProductID, &lines, &rc.Instructions,
		&rc.PrepTime, &rc.CookTime, &rc.Servings, &rc.CreatedAt, &rc.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	_ = json.Unmarshal([]byte(lines), &rc.Ingredients)
	return &rc, true, nil
}

// PostgresIngredientRepo and PostgresRecipeRepo are per-entity views
// over the shared connection, matching the consumer-side interfaces.
type PostgresIngredientRepo struct{ r *PostgresRepo }

func (r *PostgresRepo) IngredientRepo() *PostgresIngredientRepo { return &PostgresIngredientRepo{r} }

func (p *PostgresIngredientRepo) Insert(i *domain.Ingredient) error { return p.r.InsertIngredient(i) }
func (p *PostgresIngredientRepo) Get(id string) (*domain.Ingredient, bool, error) {
	return p.r.GetIngredient(id)
}
func (p *PostgresIngredientRepo) List(includeInactive bool) ([]domain.Ingredient, error) {
	return p.r.ListIngredients(includeInactive)
}
func (p *PostgresIngredientRepo) UpdateDetails(i *domain.Ingredient) (bool, error) {
	return p.r.UpdateIngredientDetails(i)
}
func (p *PostgresIngredientRepo) Deactivate(id string) (bool, error) {
	return p.r.DeactivateIngredient(id)
}
func (p *PostgresIngredientRepo) CompareAndSwapQuantity(id string, old, new float64) (bool, error) {
	return p.r.CompareAndSwapIngredientQuantity(id, old, new)
}
func (p *PostgresIngredientRepo) LowStock() ([]domain.Ingredient, error) {
	return p.r.LowStockIngredients()
}
func (p *PostgresIngredientRepo) AppendMovement(m *domain.StockMovement) error {
	return p.r.AppendStockMovement(m)
}
func (p *PostgresIngredientRepo) Movements(ingredientID string, limit int) ([]domain.StockMovement, error) {
	return p.r.StockMovements(ingredientID, limit)
}

type PostgresRecipeRepo struct{ r *PostgresRepo }

func (r *PostgresRepo) RecipeRepo() *PostgresRecipeRepo { return &PostgresRecipeRepo{r} }

func (p *PostgresRecipeRepo) Insert(rc *domain.Recipe) error { return p.r.InsertRecipe(rc) }
func (p *PostgresRecipeRepo) Get(id string) (*domain.Recipe, bool, error) {
	return p.r.GetRecipe(id)
}
func (p *PostgresRecipeRepo) GetByProduct(productID string) (*domain.Recipe, bool, error) {
	return p.r.GetRecipeByProduct(productID)
}
func (p *PostgresRecipeRepo) Update(rc *domain.Recipe) (bool, error) { return p.r.UpdateRecipe(rc) }
func (p *PostgresRecipeRepo) Delete(id string) (bool, error)         { return p.r.DeleteRecipe(id) }

func nullCode(code int64) any {
	if code == 0 {
		return nil
	}
	return code
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
