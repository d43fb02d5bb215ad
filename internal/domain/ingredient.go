package domain

import "time"

type MovementType string

const (
	MovementImport MovementType = "import"
	MovementExport MovementType = "export"
)

type Ingredient struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Unit         string    `json:"unit"`
	PricePerUnit float64   `json:"price_per_unit"`
	Quantity     float64   `json:"quantity"`
	MinQuantity  float64   `json:"min_quantity"`
	Supplier     string    `json:"supplier,omitempty"`
	Description  string    `json:"description,omitempty"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (i *Ingredient) LowStock() bool {
	return i.Quantity <= i.MinQuantity
}

// StockMovement is an append-only ledger entry. After equals
// Before±Quantity exactly and is never mutated post-creation.
type StockMovement struct {
	ID           string       `json:"id"`
	IngredientID string       `json:"ingredient_id"`
	Type         MovementType `json:"type"`
	Quantity     float64      `json:"quantity"`
	Before       float64      `json:"before"`
	After        float64      `json:"after"`
	Note         string       `json:"note,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}
