package domain

import "time"

type RecipeLine struct {
	IngredientID string  `json:"ingredient_id"`
	Quantity     float64 `json:"quantity"`
	Unit         string  `json:"unit"`
}

// Recipe maps a product to the ingredients it consumes. One recipe
// per product.
type Recipe struct {
	ID           string       `json:"id"`
	ProductID    string       `json:"product_id"`
	Ingredients  []RecipeLine `json:"ingredients"`
	Instructions string       `json:"instructions,omitempty"`
	PrepTime     int          `json:"prep_time,omitempty"`
	CookTime     int          `json:"cook_time,omitempty"`
	Servings     int          `json:"servings,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

type CostLine struct {
	IngredientID string  `json:"ingredient_id"`
	Name         string  `json:"name"`
	Quantity     float64 `json:"quantity"`
	Unit         string  `json:"unit"`
	PricePerUnit float64 `json:"price_per_unit"`
	Cost         float64 `json:"cost"`
}

type RecipeCost struct {
	TotalCost float64    `json:"total_cost"`
	Details   []CostLine `json:"details"`
}

type ShortageLine struct {
	IngredientID string  `json:"ingredient_id"`
	Name         string  `json:"name"`
	Needed       float64 `json:"needed"`
	Available    float64 `json:"available"`
	Shortage     float64 `json:"shortage"`
	Unit         string  `json:"unit"`
}

type Availability struct {
	Available bool           `json:"available"`
	Missing   []ShortageLine `json:"missing,omitempty"`
}
