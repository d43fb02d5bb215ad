package usecase

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"bakery-backend/internal/domain"
	"bakery-backend/internal/logger"
	"bakery-backend/internal/metrics"
)

// IngredientRepo is the stock side of the ledger store.
// CompareAndSwapQuantity must be atomic per ingredient: it swaps the
// quantity only when the current value equals old.
type IngredientRepo interface {
	Insert(*domain.Ingredient) error
	Get(id string) (*domain.Ingredient, bool, error)
	List(includeInactive bool) ([]domain.Ingredient, error)
	UpdateDetails(*domain.Ingredient) (bool, error)
	Deactivate(id string) (bool, error)
	CompareAndSwapQuantity(id string, old, new float64) (bool, error)
	LowStock() ([]domain.Ingredient, error)
	AppendMovement(*domain.StockMovement) error
	Movements(ingredientID string, limit int) ([]domain.StockMovement, error)
}

// retries for the CAS loop before giving up under contention
const casRetries = 5

type InventoryService struct {
	Repo IngredientRepo
}

type IngredientCreate struct {
	Name         string
	Unit         string
	PricePerUnit float64
	Quantity     float64
	MinQuantity  float64
	Supplier     string
	Description  string
}

func (s *InventoryService) Create(in IngredientCreate) (*domain.Ingredient, error) {
	if in.Name == "" || in.Unit == "" {
		return nil, ErrValidation("name and unit required")
	}
	if in.Quantity < 0 {
		return nil, ErrValidation("quantity cannot be negative")
	}
	now := time.Now().UTC()
	ing := &domain.Ingredient{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Unit:         in.Unit,
		PricePerUnit: in.PricePerUnit,
		Quantity:     in.Quantity,
		MinQuantity:  in.MinQuantity,
		Supplier:     in.Supplier,
		Description:  in.Description,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Repo.Insert(ing); err != nil {
		return nil, fmt.Errorf("insert ingredient: %w", err)
	}
	return ing, nil
}

func (s *InventoryService) Get(id string) (*domain.Ingredient, error) {
	ing, ok, err := s.Repo.Get(id)
	if err != nil {
		return nil, fmt.Errorf("get ingredient: %w", err)
	}
	if !ok {
		return nil, ErrNotFound("ingredient")
	}
	return ing, nil
}

func (s *InventoryService) List(includeInactive bool) ([]domain.Ingredient, error) {
	return s.Repo.List(includeInactive)
}

// UpdateDetails changes descriptive fields only; quantity is owned by
// AddStock/ReduceStock.
func (s *InventoryService) UpdateDetails(id string, in IngredientCreate) (*domain.Ingredient, error) {
	ing, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if in.Name != "" {
		ing.Name = in.Name
	}
	if in.Unit != "" {
		ing.Unit = in.Unit
	}
	if in.PricePerUnit > 0 {
		ing.PricePerUnit = in.PricePerUnit
	}
	if in.MinQuantity >= 0 {
		ing.MinQuantity = in.MinQuantity
	}
	if in.Supplier != "" {
		ing.Supplier = in.Supplier
	}
	if in.Description != "" {
		ing.Description = in.Description
	}
	ing.UpdatedAt = time.Now().UTC()
	ok, err := s.Repo.UpdateDetails(ing)
	if err != nil {
		return nil, fmt.Errorf("update ingredient: %w", err)
	}
	if !ok {
		return nil, ErrNotFound("ingredient")
	}
	return ing, nil
}

// Deactivate soft deletes: the ingredient drops out of default
// listings but keeps its movement history.
func (s *InventoryService) Deactivate(id string) error {
	ok, err := s.Repo.Deactivate(id)
	if err != nil {
		return fmt.Errorf("deactivate ingredient: %w", err)
	}
	if !ok {
		return ErrNotFound("ingredient")
	}
	return nil
}

// AddStock records an import. The quantity swap is a CAS against the
// value just read, so two concurrent adjustments can never base their
// result on the same stale stock.
func (s *InventoryService) AddStock(id string, quantity float64, note string) (*domain.Ingredient, error) {
	return s.adjust(id, quantity, domain.MovementImport, note)
}

// ReduceStock records an export. A reduction past zero fails whole
// with the shortage detail; stock is never left partially deducted
// and never observed negative.
func (s *InventoryService) ReduceStock(id string, quantity float64, note string) (*domain.Ingredient, error) {
	return s.adjust(id, -quantity, domain.MovementExport, note)
}

func (s *InventoryService) adjust(id string, delta float64, typ domain.MovementType, note string) (*domain.Ingredient, error) {
	if delta == 0 {
		return nil, ErrValidation("quantity must be greater than 0")
	}
	if (typ == domain.MovementImport && delta < 0) || (typ == domain.MovementExport && delta > 0) {
		return nil, ErrValidation("quantity must be greater than 0")
	}
	for attempt := 0; attempt < casRetries; attempt++ {
		ing, ok, err := s.Repo.Get(id)
		if err != nil {
			return nil, fmt.Errorf("get ingredient: %w", err)
		}
		if !ok {
			return nil, ErrNotFound("ingredient")
		}
		before := ing.Quantity
		after := before + delta
		if after < 0 {
			return nil, ErrInsufficientStock{
				Name:      ing.Name,
				Needed:    -delta,
				Available: before,
				Unit:      ing.Unit,
			}
		}
		swapped, err := s.Repo.CompareAndSwapQuantity(id, before, after)
		if err != nil {
			return nil, fmt.Errorf("swap quantity: %w", err)
		}
		if !swapped {
			continue
		}
		mv := &domain.StockMovement{
			ID:           uuid.NewString(),
			IngredientID: id,
			Type:         typ,
			Quantity:     delta,
			Before:       before,
			After:        after,
			Note:         note,
			CreatedAt:    time.Now().UTC(),
		}
		if typ == domain.MovementExport {
			mv.Quantity = -delta
		}
		if err := s.Repo.AppendMovement(mv); err != nil {
			// quantity already moved; the missing audit row is an
			// operational alert, not a rollback
			logger.Error("stock movement append failed", map[string]any{
				"ingredient_id": id,
				"type":          string(typ),
				"error":         err.Error(),
			})
		}
		metrics.StockMovements.WithLabelValues(string(typ)).Inc()
		ing.Quantity = after
		return ing, nil
	}
	return nil, ErrConflict("stock adjustment contended, retry")
}

// LowStock lists active ingredients at or below their reorder
// threshold.
func (s *InventoryService) LowStock() ([]domain.Ingredient, error) {
	return s.Repo.LowStock()
}

func (s *InventoryService) History(id string, limit int) ([]domain.StockMovement, error) {
	if _, err := s.Get(id); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.Repo.Movements(id, limit)
}
