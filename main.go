package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	gorilllaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DeusGroup/Leadr/handlers"
	"github.com/DeusGroup/Leadr/internal/notification"
	"github.com/DeusGroup/Leadr/middleware"
	"github.com/DeusGroup/Leadr/services"
)

var (
	dbPool             *pgxpool.Pool
	activityRelay      *services.ActivityRelay
	achievementService *services.AchievementService
	metricService      *services.MetricService
	leaderboardService *services.LeaderboardService
	userService        *services.UserService
	salesService       *services.SalesService
	fcmService         *notification.FCMService
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		log.Fatal("Failed to parse database URL:", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	dbPool, err = pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		log.Fatal("Failed to create connection pool:", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		log.Fatal("Failed to ping database:", err)
	}

	log.Println("Successfully connected to Postgres")

	activityRelay = services.NewActivityRelay(dbPool)
	achievementService = services.NewAchievementService(dbPool, activityRelay)
	metricService = services.NewMetricService(dbPool, achievementService, activityRelay)
	leaderboardService = services.NewLeaderboardService(dbPool)
	metricService.SetLeaderboardService(leaderboardService)
	userService = services.NewUserService(dbPool)
	salesService = services.NewSalesService(dbPool)

	fcmService, err = notification.NewFCMService("./serviceAccountKey.json")
	if err != nil {
		log.Printf("Warning: Could not initialize FCM: %v", err)
	} else {
		activityRelay.SetPushProvider(fcmService)
		log.Println("FCM Push Provider initialized successfully")
	}

	middleware.InitPrometheus()
}

func main() {
	defer func() {
		log.Println("Closing database connection pool...")
		dbPool.Close()
	}()

	metricHandler := handlers.NewMetricHandler(metricService)
	leaderboardHandler := handlers.NewLeaderboardHandler(leaderboardService)
	achievementHandler := handlers.NewAchievementHandler(achievementService)
	userHandler := handlers.NewUserHandler(userService)
	salesHandler := handlers.NewSalesHandler(salesService)
	activityHandler := handlers.NewActivityHandler(activityRelay)

	r := mux.NewRouter()

	// Websocket route skips the standard middleware stack: rate limiting a
	// long-lived connection by request makes no sense.
	r.HandleFunc("/api/v1/activity/ws", activityHandler.Subscribe)

	standardRouter := r.PathPrefix("/").Subrouter()

	go middleware.CleanupVisitors()

	standardRouter.Use(middleware.RateLimitMiddleware)
	standardRouter.Use(middleware.MonitorMiddleware)

	standardRouter.Handle("/metrics", middleware.BasicAuthMiddleware(promhttp.Handler()))

	standardRouter.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := dbPool.Ping(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status": "unhealthy", "error": "database connection failed"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy", "service": "leadr-api"}`))
	}).Methods("GET")

	api := standardRouter.PathPrefix("/api/v1").Subrouter()

	// Read surface
	api.HandleFunc("/users", userHandler.List).Methods("GET")
	api.HandleFunc("/users/{id}", userHandler.Get).Methods("GET")
	api.HandleFunc("/users/{userId}/achievements", achievementHandler.UserAchievements).Methods("GET")
	api.HandleFunc("/users/{userId}/goals", salesHandler.GetGoals).Methods("GET")

	api.HandleFunc("/performance-metrics", metricHandler.Query).Methods("GET")

	api.HandleFunc("/leaderboards", leaderboardHandler.List).Methods("GET")
	api.HandleFunc("/leaderboards/{id}", leaderboardHandler.Get).Methods("GET")
	api.HandleFunc("/leaderboards/{id}/rankings", leaderboardHandler.Rankings).Methods("GET")
	api.HandleFunc("/leaderboards/{id}/rankings/{userId}", leaderboardHandler.UserRanking).Methods("GET")

	api.HandleFunc("/achievements", achievementHandler.List).Methods("GET")
	api.HandleFunc("/achievements/{id}", achievementHandler.Get).Methods("GET")

	api.HandleFunc("/sales/performance", salesHandler.GetPerformance).Methods("GET")
	api.HandleFunc("/sales/performance/{userId}", salesHandler.GetUserPerformance).Methods("GET")
	api.HandleFunc("/sales/analytics", salesHandler.GetAnalytics).Methods("GET")
	api.HandleFunc("/sales/analytics/territories", salesHandler.GetTerritoryAnalytics).Methods("GET")

	api.HandleFunc("/activity/recent", activityHandler.GetRecent).Methods("GET")

	// Write surface, guarded by the shared API key
	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.APIKeyMiddleware)

	protected.HandleFunc("/users", userHandler.Create).Methods("POST")
	protected.HandleFunc("/users/{id}", userHandler.Update).Methods("PUT")
	protected.HandleFunc("/users/{id}", userHandler.Delete).Methods("DELETE")

	protected.HandleFunc("/performance-metrics", metricHandler.Record).Methods("POST")
	protected.HandleFunc("/performance-metrics/bulk", metricHandler.BulkRecord).Methods("POST")
	protected.HandleFunc("/performance-metrics/{id}", metricHandler.Update).Methods("PUT")
	protected.HandleFunc("/performance-metrics/{id}", metricHandler.Delete).Methods("DELETE")

	protected.HandleFunc("/leaderboards", leaderboardHandler.Create).Methods("POST")
	protected.HandleFunc("/leaderboards/{id}", leaderboardHandler.Update).Methods("PUT")
	protected.HandleFunc("/leaderboards/{id}", leaderboardHandler.Delete).Methods("DELETE")
	protected.HandleFunc("/leaderboards/{id}/recalculate", leaderboardHandler.Recalculate).Methods("POST")

	protected.HandleFunc("/achievements", achievementHandler.Create).Methods("POST")
	protected.HandleFunc("/achievements/{id}", achievementHandler.Update).Methods("PUT")
	protected.HandleFunc("/achievements/{id}", achievementHandler.Delete).Methods("DELETE")
	protected.HandleFunc("/achievements/{id}/award", achievementHandler.Award).Methods("POST")

	protected.HandleFunc("/sales/goals", salesHandler.CreateGoal).Methods("POST")
	protected.HandleFunc("/sales/goals/{id}", salesHandler.UpdateGoal).Methods("PUT")
	protected.HandleFunc("/sales/goals/{id}", salesHandler.DeleteGoal).Methods("DELETE")

	corsHandler := gorilllaHandlers.CORS(
		gorilllaHandlers.AllowedOrigins([]string{"*"}),
		gorilllaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorilllaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-API-Key"}),
		gorilllaHandlers.ExposedHeaders([]string{"Content-Length"}),
		gorilllaHandlers.AllowCredentials(),
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = "3333"
	}
	port = ":" + port

	server := http.Server{
		Addr:         port,
		Handler:      corsHandler(r),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Error starting server:", err)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)

	sig := <-sigChan
	log.Println("Got signal:", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	activityRelay.Stop()

	log.Println("Server shutdown complete")
}
