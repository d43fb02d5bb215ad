package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bakery-backend/internal/config"
	"bakery-backend/internal/env"
	"bakery-backend/internal/infrastructure/payos"
	"bakery-backend/internal/infrastructure/repo"
	"bakery-backend/internal/infrastructure/vnpay"
	"bakery-backend/internal/logger"
	"bakery-backend/internal/metrics"
	"bakery-backend/internal/server"
	"bakery-backend/internal/usecase"
)

func main() {
	env.Load(".env", ".env.local")
	envDefaults := config.EnvDefaults()

	appEnv := flag.String("env", envDefaults.Env, "")
	port := flag.Int("port", envDefaults.Port, "")
	databaseURL := flag.String("database-url", envDefaults.DatabaseURL, "")
	jwtSecret := flag.String("jwt-secret", envDefaults.JWTSecret, "")
	frontendURL := flag.String("frontend-url", envDefaults.FrontendURL, "")

	flag.Parse()

	cfg := envDefaults
	cfg.Env = *appEnv
	cfg.Port = *port
	cfg.DatabaseURL = *databaseURL
	cfg.JWTSecret = *jwtSecret
	cfg.FrontendURL = *frontendURL

	var (
		orderRepo      usecase.OrderRepo
		ingredientRepo usecase.IngredientRepo
		recipeRepo     usecase.RecipeRepo
	)
	if cfg.DatabaseURL != "" {
		pg, err := repo.NewPostgresRepo(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("database connection failed", map[string]any{"error": err.Error()})
		}
		defer pg.Close()
		orderRepo = pg
		ingredientRepo = pg.IngredientRepo()
		recipeRepo = pg.RecipeRepo()
	} else {
		logger.Warn("no database configured, using in-memory store", nil)
		orderRepo = repo.NewMemoryOrderRepo()
		ingredientRepo = repo.NewMemoryIngredientRepo()
		recipeRepo = repo.NewMemoryRecipeRepo()
	}

	metrics.Register()

	auth := &usecase.AuthService{JWTSecret: cfg.JWTSecret}
	orders := &usecase.OrderService{Repo: orderRepo}
	inventory := &usecase.InventoryService{Repo: ingredientRepo}
	recipes := &usecase.RecipeService{Recipes: recipeRepo, Inventory: inventory}
	payments := &usecase.PaymentService{
		Repo:    orderRepo,
		Recipes: recipes,
		PayOS: payos.New(payos.Config{
			ClientID:    cfg.PayOSClientID,
			APIKey:      cfg.PayOSAPIKey,
			ChecksumKey: cfg.PayOSChecksumKey,
			APIURL:      cfg.PayOSAPIURL,
			ReturnURL:   cfg.PayOSReturnURL,
			CancelURL:   cfg.PayOSCancelURL,
		}),
		VNPay: vnpay.New(vnpay.Config{
			TmnCode:    cfg.VNPayTmnCode,
			HashSecret: cfg.VNPayHashSecret,
			PayURL:     cfg.VNPayURL,
			ReturnURL:  cfg.VNPayReturnURL,
		}),
		FrontendURL: cfg.FrontendURL,
	}

	srv := server.New(cfg, auth, orders, inventory, recipes, payments)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server listening", map[string]any{"addr": httpSrv.Addr, "env": cfg.Env})
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server stopped", map[string]any{"error": err.Error()})
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		logger.Error("shutdown incomplete", map[string]any{"error": err.Error()})
	}
}
