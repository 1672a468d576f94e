package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/tabsplit/backend/docs"
	"github.com/tabsplit/backend/internal/config"
	"github.com/tabsplit/backend/internal/database"
	"github.com/tabsplit/backend/internal/handlers"
	mW "github.com/tabsplit/backend/internal/middleware"
	"github.com/tabsplit/backend/internal/services"
	"github.com/tabsplit/backend/internal/store"
)

// @title Debt Sync Backend API
// @version 1.0
// @description API for reconciling shared debts between connected accounts
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env
	config.BindEnv()

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}
	viper.SetDefault("server.port", "8080")

	// Initialize Swagger docs
	docs.SwaggerInfo.Title = "Debt Sync Backend API"
	docs.SwaggerInfo.Description = "API for reconciling shared debts between connected accounts"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	db, dbConfig := database.InitDatabase()
	defer db.Close()

	if dbConfig.Migrate {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		err := database.RunMigrations(ctx, db)
		cancel()
		if err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}
	}

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	syncConfig := config.LoadSyncConfig()
	ledgerStore := store.NewPostgresStore(db)

	syncEvents := services.NewSyncEvents(redisClient, syncConfig)
	debtSyncService := services.NewDebtSyncService(ledgerStore, ledgerStore, syncEvents, syncConfig)
	summaryService := services.NewLedgerSummaryService(ledgerStore, services.NewReadCoalescer(syncConfig.CoalesceReads))

	debtSyncHandler := handlers.NewDebtSyncHandler(debtSyncService)
	summaryHandler := handlers.NewLedgerSummaryHandler(summaryService)

	// Initialize auth middleware with Redis
	mW.InitAuthMiddleware(redisClient)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status := "healthy"
		if err := db.PingContext(r.Context()); err != nil {
			status = "degraded"
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": status})
	})

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mW.AuthMiddleware)

		r.Post("/debts/accept-all", debtSyncHandler.AcceptAllIntentions)
		r.Get("/debts/intentions", debtSyncHandler.GetIntentions)
		r.Post("/debts/{debtId}/accept", debtSyncHandler.AcceptIntention)
		r.Post("/debts/{debtId}/propose", debtSyncHandler.ProposeIntention)

		r.Get("/ledger/summary", summaryHandler.GetLedgerSummary)
		r.Get("/ledger/summary/contacts", summaryHandler.GetLedgerSummaryByContacts)
		r.Get("/ledger/summary/contacts/{contactId}", summaryHandler.GetLedgerSummaryByContact)
	})

	port := viper.GetString("server.port")

	// Start server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
