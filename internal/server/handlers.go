package server

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"bakery-backend/internal/domain"
	"bakery-backend/internal/usecase"
)

// ---- orders ----

type orderItemBody struct {
	ProductID string  `json:"product_id" binding:"required"`
	Name      string  `json:"name" binding:"required"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	Image     string  `json:"image"`
}

type createOrderBody struct {
	Items           []orderItemBody `json:"items" binding:"required"`
	ShippingAddress string          `json:"shipping_address"`
	Phone           string          `json:"phone"`
	Note            string          `json:"note"`
	PaymentMethod   string          `json:"payment_method"`
}

func (s *Server) handleCreateOrder(c *gin.Context) {
	var body createOrderBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request body"})
		return
	}
	items := make([]domain.OrderItem, 0, len(body.Items))
	for _, it := range body.Items {
		items = append(items, domain.OrderItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			Price:     it.Price,
			Quantity:  it.Quantity,
			Image:     it.Image,
		})
	}
	o, err := s.orders.Create(currentUser(c).ID, usecase.OrderCreate{
		Items:           items,
		ShippingAddress: body.ShippingAddress,
		Phone:           body.Phone,
		Note:            body.Note,
		PaymentMethod:   domain.PaymentMethod(body.PaymentMethod),
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

func (s *Server) handleListOrders(c *gin.Context) {
	skip, limit := pagination(c)
	list, err := s.orders.List(domain.OrderStatus(c.Query("status")), skip, limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) handleMyOrders(c *gin.Context) {
	skip, limit := pagination(c)
	list, err := s.orders.ListByUser(currentUser(c).ID, skip, limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) handleGetOrder(c *gin.Context) {
	u := currentUser(c)
	o, err := s.orders.GetFor(c.Param("id"), u.ID, isAdmin(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (s *Server) handleOrderStats(c *gin.Context) {
	stats, err := s.orders.Stats()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

type updateStatusBody struct {
	Status string `json:"status" binding:"required"`
}

func (s *Server) handleUpdateOrderStatus(c *gin.Context) {
	var body updateStatusBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request body"})
		return
	}
	o, err := s.orders.UpdateStatus(c.Param("id"), domain.OrderStatus(body.Status))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (s *Server) handleCancelOrder(c *gin.Context) {
	u := currentUser(c)
	o, err := s.orders.Cancel(c.Param("id"), u.ID, isAdmin(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (s *Server) handleDeleteOrder(c *gin.Context) {
	u := currentUser(c)
	if err := s.orders.Delete(c.Param("id"), u.ID, isAdmin(c)); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "order deleted"})
}

func (s *Server) handleDeliverySlip(c *gin.Context) {
	slip, err := s.orders.Slip(c.Param("order_id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, slip)
}

// ---- payments ----

func (s *Server) handleCreatePayOSPayment(c *gin.Context) {
	p, err := s.payments.CreatePayOSPayment(c.Request.Context(), c.Param("order_id"), currentUser(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// handlePayOSWebhook acknowledges every well-formed, authentic
// delivery with 2xx so the gateway stops retrying. Unknown order
// codes are reported in the body, not the status.
func (s *Server) handlePayOSWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "unreadable body"})
		return
	}
	err = s.payments.HandlePayOSWebhook(c.Request.Context(), body)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"success": true})
	case usecase.IsSignatureInvalid(err):
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "invalid signature"})
	case usecase.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
	case usecase.IsNotFound(err):
		c.JSON(http.StatusOK, gin.H{"success": false, "message": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "internal error"})
	}
}

func (s *Server) handleCheckPayOSPayment(c *gin.Context) {
	u := currentUser(c)
	res, err := s.payments.CheckPayOSPayment(c.Request.Context(), c.Param("order_id"), u.ID, isAdmin(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleCancelPayOSPayment(c *gin.Context) {
	if err := s.payments.CancelPayOSPayment(c.Request.Context(), c.Param("order_id"), currentUser(c).ID); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "payment cancelled"})
}

func (s *Server) handleCreateVNPayPayment(c *gin.Context) {
	url, err := s.payments.CreateVNPayPayment(c.Param("order_id"), currentUser(c).ID, c.ClientIP())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment_url": url})
}

func (s *Server) handleVNPayCallback(c *gin.Context) {
	target, err := s.payments.HandleVNPayReturn(queryParams(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Redirect(http.StatusFound, target)
}

func (s *Server) handleVNPayIPN(c *gin.Context) {
	c.JSON(http.StatusOK, s.payments.HandleVNPayIPN(queryParams(c)))
}

func (s *Server) handleCheckLocalPayment(c *gin.Context) {
	u := currentUser(c)
	o, err := s.payments.CheckLocalPayment(c.Param("order_id"), u.ID, isAdmin(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"order_id":       o.ID,
		"payment_status": o.PaymentStatus,
		"status":         o.Status,
		"paid_at":        o.PaidAt,
	})
}

// ---- ingredients ----

type ingredientBody struct {
	Name         string  `json:"name"`
	Unit         string  `json:"unit"`
	PricePerUnit float64 `json:"price_per_unit"`
	Quantity     float64 `json:"quantity"`
	MinQuantity  float64 `json:"min_quantity"`
	Supplier     string  `json:"supplier"`
	Description  string  `json:"description"`
}

func (b ingredientBody) toCreate() usecase.IngredientCreate {
	return usecase.IngredientCreate{
		Name:         b.Name,
		Unit:         b.Unit,
		PricePerUnit: b.PricePerUnit,
		Quantity:     b.Quantity,
		MinQuantity:  b.MinQuantity,
		Supplier:     b.Supplier,
		Description:  b.Description,
	}
}

func (s *Server) handleCreateIngredient(c *gin.Context) {
	var body ingredientBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request body"})
		return
	}
	ing, err := s.inventory.Create(body.toCreate())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, ing)
}

func (s *Server) handleListIngredients(c *gin.Context) {
	list, err := s.inventory.List(c.Query("include_inactive") == "true")
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) handleGetIngredient(c *gin.Context) {
	ing, err := s.inventory.Get(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ing)
}

func (s *Server) handleUpdateIngredient(c *gin.Context) {
	var body ingredientBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request body"})
		return
	}
	ing, err := s.inventory.UpdateDetails(c.Param("id"), body.toCreate())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ing)
}

func (s *Server) handleDeleteIngredient(c *gin.Context) {
	if err := s.inventory.Deactivate(c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "ingredient deactivated"})
}

type stockBody struct {
	Quantity float64 `json:"quantity"`
	Note     string  `json:"note"`
}

func (s *Server) handleAddStock(c *gin.Context) {
	var body stockBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request body"})
		return
	}
	ing, err := s.inventory.AddStock(c.Param("id"), body.Quantity, body.Note)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ing)
}

func (s *Server) handleReduceStock(c *gin.Context) {
	var body stockBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request body"})
		return
	}
	ing, err := s.inventory.ReduceStock(c.Param("id"), body.Quantity, body.Note)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ing)
}

func (s *Server) handleLowStock(c *gin.Context) {
	list, err := s.inventory.LowStock()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) handleStockHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	list, err := s.inventory.History(c.Param("id"), limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// ---- recipes ----

type recipeLineBody struct {
	IngredientID string  `json:"ingredient_id" binding:"required"`
	Quantity     float64 `json:"quantity"`
	Unit         string  `json:"unit"`
}

type recipeBody struct {
	ProductID    string           `json:"product_id"`
	Ingredients  []recipeLineBody `json:"ingredients"`
	Instructions string           `json:"instructions"`
	PrepTime     int              `json:"prep_time"`
	CookTime     int              `json:"cook_time"`
	Servings     int              `json:"servings"`
}

func (b recipeBody) toCreate() usecase.RecipeCreate {
	lines := make([]domain.RecipeLine, 0, len(b.Ingredients))
	for _, l := range b.Ingredients {
		lines = append(lines, domain.RecipeLine{
			IngredientID: l.IngredientID,
			Quantity:     l.Quantity,
			Unit:         l.Unit,
		})
	}
	return usecase.RecipeCreate{
		ProductID:    b.ProductID,
		Ingredients:  lines,
		Instructions: b.Instructions,
		PrepTime:     b.PrepTime,
		CookTime:     b.CookTime,
		Servings:     b.Servings,
	}
}

func (s *Server) handleCreateRecipe(c *gin.Context) {
	var body recipeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request body"})
		return
	}
	r, err := s.recipes.Create(body.toCreate())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (s *Server) handleGetRecipe(c *gin.Context) {
	r, err := s.recipes.Get(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (s *Server) handleGetRecipeByProduct(c *gin.Context) {
	r, err := s.recipes.GetByProduct(c.Param("product_id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (s *Server) handleUpdateRecipe(c *gin.Context) {
	var body recipeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request body"})
		return
	}
	r, err := s.recipes.Update(c.Param("id"), body.toCreate())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (s *Server) handleDeleteRecipe(c *gin.Context) {
	if err := s.recipes.Delete(c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "recipe deleted"})
}

func (s *Server) handleRecipeCost(c *gin.Context) {
	cost, err := s.recipes.CalculateCost(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cost)
}

func (s *Server) handleCheckAvailability(c *gin.Context) {
	desired, err := strconv.Atoi(c.DefaultQuery("quantity", "1"))
	if err != nil || desired < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "quantity must be a positive integer"})
		return
	}
	av, err := s.recipes.CheckAvailability(c.Param("product_id"), desired)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, av)
}

type deductBody struct {
	Quantity int `json:"quantity"`
}

func (s *Server) handleDeductIngredients(c *gin.Context) {
	body := deductBody{Quantity: 1}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request body"})
			return
		}
	}
	if err := s.recipes.DeductIngredients(c.Param("product_id"), body.Quantity); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "ingredients deducted"})
}

// ---- helpers ----

func pagination(c *gin.Context) (skip, limit int) {
	skip, _ = strconv.Atoi(c.Query("skip"))
	limit, _ = strconv.Atoi(c.Query("limit"))
	if skip < 0 {
		skip = 0
	}
	return skip, limit
}

func queryParams(c *gin.Context) map[string]string {
	out := make(map[string]string)
	for k, vs := range c.Request.URL.Query() {
		if len(vs) > 0 {
			out[k] = vs[0]
		}
	}
	return out
}
