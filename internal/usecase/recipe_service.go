package usecase

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"bakery-backend/internal/domain"
)

// RecipeRepo enforces one recipe per product (unique product id);
// Insert on a duplicate product must fail.
type RecipeRepo interface {
	Insert(*domain.Recipe) error
	Get(id string) (*domain.Recipe, bool, error)
	GetByProduct(productID string) (*domain.Recipe, bool, error)
	Update(*domain.Recipe) (bool, error)
	Delete(id string) (bool, error)
}

type RecipeService struct {
	Recipes   RecipeRepo
	Inventory *InventoryService
}

type RecipeCreate struct {
	ProductID    string
	Ingredients  []domain.RecipeLine
	Instructions string
	PrepTime     int
	CookTime     int
	Servings     int
}

func (s *RecipeService) Create(in RecipeCreate) (*domain.Recipe, error) {
	if in.ProductID == "" {
		return nil, ErrValidation("product_id required")
	}
	if len(in.Ingredients) == 0 {
		return nil, ErrValidation("recipe must contain at least one ingredient")
	}
	for _, line := range in.Ingredients {
		if line.Quantity <= 0 {
			return nil, ErrValidation("ingredient quantity must be greater than 0")
		}
		if _, err := s.Inventory.Get(line.IngredientID); err != nil {
			return nil, err
		}
	}
	if _, ok, err := s.Recipes.GetByProduct(in.ProductID); err != nil {
		return nil, fmt.Errorf("get recipe: %w", err)
	} else if ok {
		return nil, ErrConflict("product already has a recipe")
	}
	now := time.Now().UTC()
	r := &domain.Recipe{
		ID:           uuid.NewString(),
		ProductID:    in.ProductID,
		Ingredients:  in.Ingredients,
		Instructions: in.Instructions,
		PrepTime:     in.PrepTime,
		CookTime:     in.CookTime,
		Servings:     in.Servings,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Recipes.Insert(r); err != nil {
		return nil, fmt.Errorf("insert recipe: %w", err)
	}
	return r, nil
}

func (s *RecipeService) Get(id string) (*domain.Recipe, error) {
	r, ok, err := s.Recipes.Get(id)
	if err != nil {
		return nil, fmt.Errorf("get recipe: %w", err)
	}
	if !ok {
		return nil, ErrNotFound("recipe")
	}
	return r, nil
}

func (s *RecipeService) GetByProduct(productID string) (*domain.Recipe, error) {
	r, ok, err := s.Recipes.GetByProduct(productID)
	if err != nil {
		return nil, fmt.Errorf("get recipe: %w", err)
	}
	if !ok {
		return nil, ErrNotFound("recipe")
	}
	return r, nil
}

func (s *RecipeService) Update(id string, in RecipeCreate) (*domain.Recipe, error) {
	r, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if len(in.Ingredients) > 0 {
		r.Ingredients = in.Ingredients
	}
	if in.Instructions != "" {
		r.Instructions = in.Instructions
	}
	if in.PrepTime > 0 {
		r.PrepTime = in.PrepTime
	}
	if in.CookTime > 0 {
		r.CookTime = in.CookTime
	}
	if in.Servings > 0 {
		r.Servings = in.Servings
	}
	r.UpdatedAt = time.Now().UTC()
	ok, err := s.Recipes.Update(r)
	if err != nil {
		return nil, fmt.Errorf("update recipe: %w", err)
	}
	if !ok {
		return nil, ErrNotFound("recipe")
	}
	return r, nil
}

func (s *RecipeService) Delete(id string) error {
	ok, err := s.Recipes.Delete(id)
	if err != nil {
		return fmt.Errorf("delete recipe: %w", err)
	}
	if !ok {
		return ErrNotFound("recipe")
	}
	return nil
}

// CalculateCost prices the recipe from current ingredient unit
// prices. Pure read.
func (s *RecipeService) CalculateCost(recipeID string) (*domain.RecipeCost, error) {
	r, err := s.Get(recipeID)
	if err != nil {
		return nil, err
	}
	cost := &domain.RecipeCost{Details: []domain.CostLine{}}
	for _, line := range r.Ingredients {
		ing, err := s.Inventory.Get(line.IngredientID)
		if err != nil {
			if IsNotFound(err) {
				continue
			}
			return nil, err
		}
		lineCost := ing.PricePerUnit * line.Quantity
		cost.TotalCost += lineCost
		cost.Details = append(cost.Details, domain.CostLine{
			IngredientID: ing.ID,
			Name:         ing.Name,
			Quantity:     line.Quantity,
			Unit:         line.Unit,
			PricePerUnit: ing.PricePerUnit,
			Cost:         lineCost,
		})
	}
	return cost, nil
}

// CheckAvailability is advisory only: it compares needed quantities
// against current stock without mutating anything.
func (s *RecipeService) CheckAvailability(productID string, desired int) (*domain.Availability, error) {
	if desired < 1 {
		return nil, ErrValidation("desired quantity must be at least 1")
	}
	r, err := s.GetByProduct(productID)
	if err != nil {
		return nil, err
	}
	avail := &domain.Availability{Available: true}
	for _, line := range r.Ingredients {
		needed := line.Quantity * float64(desired)
		ing, err := s.Inventory.Get(line.IngredientID)
		if err != nil {
			if IsNotFound(err) {
				avail.Available = false
				avail.Missing = append(avail.Missing, domain.ShortageLine{
					IngredientID: line.IngredientID,
					Needed:       needed,
					Shortage:     needed,
					Unit:         line.Unit,
				})
				continue
			}
			return nil, err
		}
		if ing.Quantity < needed {
			avail.Available = false
			avail.Missing = append(avail.Missing, domain.ShortageLine{
				IngredientID: ing.ID,
				Name:         ing.Name,
				Needed:       needed,
				Available:    ing.Quantity,
				Shortage:     needed - ing.Quantity,
				Unit:         line.Unit,
			})
		}
	}
	return avail, nil
}

// DeductIngredients consumes stock for sold product units. Two
// phases: a dry run over every line first, aborting on the first
// shortage with nothing deducted, then the per-line reductions, each
// individually audited.
func (s *RecipeService) DeductIngredients(productID string, sold int) error {
	if sold < 1 {
		return ErrValidation("sold quantity must be at least 1")
	}
	r, err := s.GetByProduct(productID)
	if err != nil {
		return err
	}
	for _, line := range r.Ingredients {
		needed := line.Quantity * float64(sold)
		ing, err := s.Inventory.Get(line.IngredientID)
		if err != nil {
			return err
		}
		if ing.Quantity < needed {
			return ErrInsufficientStock{
				Name:      ing.Name,
				Needed:    needed,
				Available: ing.Quantity,
				Unit:      line.Unit,
			}
		}
	}
	note := fmt.Sprintf("sold product %s (x%d)", productID, sold)
	for _, line := range r.Ingredients {
		needed := line.Quantity * float64(sold)
		if _, err := s.Inventory.ReduceStock(line.IngredientID, needed, note); err != nil {
			return fmt.Errorf("deduct %s: %w", line.IngredientID, err)
		}
	}
	return nil
}
