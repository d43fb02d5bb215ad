package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bakery-backend/internal/config"
	"bakery-backend/internal/domain"
	"bakery-backend/internal/logger"
	"bakery-backend/internal/metrics"
	"bakery-backend/internal/usecase"
)

type Server struct {
	cfg       config.Config
	auth      *usecase.AuthService
	orders    *usecase.OrderService
	inventory *usecase.InventoryService
	recipes   *usecase.RecipeService
	payments  *usecase.PaymentService
	router    *gin.Engine
}

func New(cfg config.Config, auth *usecase.AuthService, orders *usecase.OrderService,
	inventory *usecase.InventoryService, recipes *usecase.RecipeService,
	payments *usecase.PaymentService) *Server {

	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	s := &Server{
		cfg:       cfg,
		auth:      auth,
		orders:    orders,
		inventory: inventory,
		recipes:   recipes,
		payments:  payments,
		router:    gin.New(),
	}
	s.router.Use(gin.Recovery(), s.observe())
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.router.Group("/api")

	orders := api.Group("/orders", s.requireUser())
	{
		orders.POST("", s.handleCreateOrder)
		orders.GET("", s.requireAdmin(), s.handleListOrders)
		orders.GET("/me", s.handleMyOrders)
		orders.GET("/stats/count", s.requireAdmin(), s.handleOrderStats)
		orders.GET("/:id", s.handleGetOrder)
		orders.POST("/:id/cancel", s.handleCancelOrder)
		orders.DELETE("/:id", s.handleDeleteOrder)
		orders.PUT("/:id/status", s.requireAdmin(), s.handleUpdateOrderStatus)
	}

	payments := api.Group("/payments")
	{
		// gateway-facing endpoints authenticate by signature, not token
		payments.POST("/payos/webhook", s.handlePayOSWebhook)
		payments.GET("/vnpay/callback", s.handleVNPayCallback)
		payments.GET("/vnpay/ipn", s.handleVNPayIPN)

		authed := payments.Group("", s.requireUser())
		authed.POST("/payos/:order_id", s.handleCreatePayOSPayment)
		authed.GET("/payos/check/:order_id", s.handleCheckPayOSPayment)
		authed.POST("/payos/cancel/:order_id", s.handleCancelPayOSPayment)
		authed.POST("/vnpay/:order_id", s.handleCreateVNPayPayment)
		authed.GET("/check/:order_id", s.handleCheckLocalPayment)
	}

	ingredients := api.Group("/ingredients", s.requireUser(), s.requireAdmin())
	{
		ingredients.POST("", s.handleCreateIngredient)
		ingredients.GET("", s.handleListIngredients)
		ingredients.GET("/low-stock", s.handleLowStock)
		ingredients.GET("/:id", s.handleGetIngredient)
		ingredients.PUT("/:id", s.handleUpdateIngredient)
		ingredients.DELETE("/:id", s.handleDeleteIngredient)
		ingredients.POST("/:id/add-stock", s.handleAddStock)
		ingredients.POST("/:id/reduce-stock", s.handleReduceStock)
		ingredients.GET("/:id/history", s.handleStockHistory)
	}

	recipes := api.Group("/recipes", s.requireUser(), s.requireAdmin())
	{
		recipes.POST("", s.handleCreateRecipe)
		recipes.GET("/product/:product_id", s.handleGetRecipeByProduct)
		recipes.GET("/product/:product_id/availability", s.handleCheckAvailability)
		recipes.POST("/product/:product_id/deduct", s.handleDeductIngredients)
		recipes.GET("/:id", s.handleGetRecipe)
		recipes.GET("/:id/cost", s.handleRecipeCost)
		recipes.PUT("/:id", s.handleUpdateRecipe)
		recipes.DELETE("/:id", s.handleDeleteRecipe)
	}

	delivery := api.Group("/delivery", s.requireUser(), s.requireAdmin())
	{
		delivery.GET("/:order_id/slip", s.handleDeliverySlip)
	}
}

func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		handler := c.FullPath()
		if handler == "" {
			handler = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(handler, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(handler).Observe(time.Since(start).Seconds())
	}
}

const userKey = "user"

func (s *Server) requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "missing bearer token"})
			return
		}
		u, err := s.auth.Verify(strings.TrimPrefix(h, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "invalid token"})
			return
		}
		c.Set(userKey, u)
		c.Next()
	}
}

func (s *Server) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if currentUser(c).Role != domain.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"detail": "admin only"})
			return
		}
		c.Next()
	}
}

func currentUser(c *gin.Context) *domain.User {
	if v, ok := c.Get(userKey); ok {
		if u, ok := v.(*domain.User); ok {
			return u
		}
	}
	return &domain.User{}
}

func isAdmin(c *gin.Context) bool { return currentUser(c).Role == domain.RoleAdmin }

// fail maps usecase errors onto HTTP status codes. Signature failures
// get a generic body on purpose.
func (s *Server) fail(c *gin.Context, err error) {
	switch {
	case usecase.IsValidation(err) || usecase.IsInsufficientStock(err) || usecase.IsGatewayUnavailable(err):
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
	case usecase.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"detail": err.Error()})
	case usecase.IsForbidden(err):
		c.JSON(http.StatusForbidden, gin.H{"detail": err.Error()})
	case usecase.IsConflict(err):
		c.JSON(http.StatusConflict, gin.H{"detail": err.Error()})
	case usecase.IsSignatureInvalid(err):
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "invalid signature"})
	default:
		logger.Error("request failed", map[string]any{
			"path":  c.FullPath(),
			"error": err.Error(),
		})
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "internal error"})
	}
}
