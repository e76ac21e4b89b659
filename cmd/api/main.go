package main

import (
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"netbill.id/panel/internal/handlers"
	"netbill.id/panel/internal/middleware"
	"netbill.id/panel/internal/store"
	"netbill.id/panel/internal/sync"
	"netbill.id/panel/pkg/database"
	"netbill.id/panel/pkg/logger"
	"netbill.id/panel/pkg/redis"
)

// redisSnapshots adapts the redis client to the engine's snapshot store.
type redisSnapshots struct {
	client *redis.RedisClient
}

func (s redisSnapshots) Load(key string) (map[string]interface{}, time.Time, bool) {
	return s.client.LoadSnapshot(key)
}

func (s redisSnapshots) Save(key string, data map[string]interface{}, at time.Time) {
	s.client.SaveSnapshot(key, data, at)
}

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger
	log := logger.New()
	log.Info("Starting NetBill Panel API v1.0.0...")

	// Connect to database
	db, err := database.Connect()
	if err != nil {
		log.Fatal("Failed to connect to database", "error", err)
	}
	defer db.Close()
	log.Info("Database connected successfully")

	// Run migrations
	if err := db.RunMigrations("./migrations"); err != nil {
		log.Fatal("Failed to run migrations", "error", err)
	}
	log.Info("Migrations completed")

	// Redis is optional: without it, rate limiting is disabled and the
	// status cache falls back to in-process memory.
	var snapshots sync.SnapshotStore = sync.NewMemorySnapshots()
	redisClient, err := redis.Connect()
	if err != nil {
		log.Warn("Redis unavailable, using in-memory status cache", "error", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
		snapshots = redisSnapshots{client: redisClient}
		log.Info("Redis connected successfully")
	}

	// Stores and sync engine
	profiles := store.NewProfileStore(db)
	accounts := store.NewAccountStore(db)
	customers := store.NewCustomerStore(db)
	usage := store.NewUsageStore(db)
	settings := store.NewSettingsStore(db)

	engine := sync.NewEngine(profiles, accounts, customers, usage, settings, snapshots, log)

	// Initialize handlers
	h := handlers.New(db, log, engine, accounts, profiles)

	// Rate limit router-facing endpoints
	routerLimiter := middleware.NewRateLimiter(redisClient, 30, time.Minute)

	// Create router
	r := mux.NewRouter()

	// ============== PUBLIC ROUTES (No Auth) ==============
	r.HandleFunc("/api/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/api/auth/login", h.Login).Methods("POST")
	r.HandleFunc("/api/auth/register", h.Register).Methods("POST")

	// ============== PROTECTED ROUTES (JWT Auth) ==============
	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.AuthMiddleware)

	// Auth
	api.HandleFunc("/auth/refresh", h.RefreshToken).Methods("POST")

	// Dashboard
	api.HandleFunc("/dashboard/stats", h.GetDashboardStats).Methods("GET")

	// Users
	api.HandleFunc("/users", h.GetUsers).Methods("GET")
	api.HandleFunc("/users/{id}", h.GetUser).Methods("GET")
	api.HandleFunc("/users/{id}", h.UpdateUser).Methods("PUT")
	api.HandleFunc("/users/{id}", h.DeleteUser).Methods("DELETE")

	// Customers
	api.HandleFunc("/customers", h.GetCustomers).Methods("GET")
	api.HandleFunc("/customers", h.CreateCustomer).Methods("POST")
	api.HandleFunc("/customers/{id}", h.GetCustomer).Methods("GET")
	api.HandleFunc("/customers/{id}", h.UpdateCustomer).Methods("PUT")
	api.HandleFunc("/customers/{id}", h.DeleteCustomer).Methods("DELETE")

	// Router endpoints
	api.HandleFunc("/routers", h.GetRouters).Methods("GET")
	api.HandleFunc("/routers", h.CreateRouter).Methods("POST")
	api.HandleFunc("/routers/{id}", h.GetRouter).Methods("GET")
	api.HandleFunc("/routers/{id}", h.UpdateRouter).Methods("PUT")
	api.HandleFunc("/routers/{id}", h.DeleteRouter).Methods("DELETE")
	api.HandleFunc("/routers/{id}/activate", h.ActivateRouter).Methods("POST")
	api.HandleFunc("/routers/{id}/test", h.TestRouterConnection).Methods("POST")
	api.HandleFunc("/routers/{id}/diagnostics", h.RouterDiagnostics).Methods("GET")

	// Router status (cached)
	api.HandleFunc("/router/status", h.GetRouterStatus).Methods("GET")
	api.HandleFunc("/router/health", h.GetRouterHealth).Methods("GET")

	// Service profiles
	api.HandleFunc("/profiles", h.GetProfiles).Methods("GET")
	api.HandleFunc("/profiles", h.CreateProfile).Methods("POST")
	api.HandleFunc("/profiles/{id}", h.GetProfile).Methods("GET")
	api.HandleFunc("/profiles/{id}", h.UpdateProfile).Methods("PUT")
	api.HandleFunc("/profiles/{id}", h.DeleteProfile).Methods("DELETE")

	// Subscriber accounts
	api.HandleFunc("/accounts", h.GetAccounts).Methods("GET")
	api.HandleFunc("/accounts", h.CreateAccount).Methods("POST")
	api.HandleFunc("/accounts/{id}", h.GetAccount).Methods("GET")
	api.HandleFunc("/accounts/{id}", h.UpdateAccount).Methods("PUT")
	api.HandleFunc("/accounts/{id}", h.DeleteAccount).Methods("DELETE")
	api.HandleFunc("/accounts/{id}/usage", h.GetAccountUsage).Methods("GET")

	// Usage history
	api.HandleFunc("/usage", h.GetUsageLogs).Methods("GET")

	// Sync operations hit the router and are rate limited
	rsync := api.PathPrefix("/sync").Subrouter()
	rsync.Use(routerLimiter.Middleware)
	rsync.HandleFunc("/stats", h.GetSyncStats).Methods("GET")
	rsync.HandleFunc("/profiles/import", h.ImportProfiles).Methods("POST")
	rsync.HandleFunc("/profiles/push", h.PushProfiles).Methods("POST")
	rsync.HandleFunc("/profiles/{id}/push", h.PushProfile).Methods("POST")
	rsync.HandleFunc("/accounts/import", h.ImportAccounts).Methods("POST")
	rsync.HandleFunc("/accounts/push", h.PushAccounts).Methods("POST")
	rsync.HandleFunc("/accounts/{id}/push", h.PushAccount).Methods("POST")
	rsync.HandleFunc("/accounts/{id}/enable", h.EnableAccount).Methods("POST")
	rsync.HandleFunc("/accounts/{id}/disable", h.DisableAccount).Methods("POST")
	rsync.HandleFunc("/sessions", h.GetSessions).Methods("GET")
	rsync.HandleFunc("/sessions/reconcile", h.ReconcileSessions).Methods("POST")
	rsync.HandleFunc("/sessions/{username}/disconnect", h.DisconnectSession).Methods("POST")

	// System Logs
	api.HandleFunc("/logs", h.GetSystemLogs).Methods("GET")
	api.HandleFunc("/logs/stats", h.GetLogStats).Methods("GET")
	api.HandleFunc("/logs/cleanup", h.DeleteOldLogs).Methods("DELETE")

	// Settings
	api.HandleFunc("/settings", h.GetSettings).Methods("GET")
	api.HandleFunc("/settings/get", h.GetSetting).Methods("GET")
	api.HandleFunc("/settings/update", h.UpdateSetting).Methods("PUT")

	// CORS configuration
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	// Get port from environment
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Create server
	srv := &http.Server{
		Handler:      c.Handler(r),
		Addr:         ":" + port,
		WriteTimeout: 60 * time.Second,
		ReadTimeout:  15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info("Server starting", "port", port)

	if err := srv.ListenAndServe(); err != nil {
		log.Fatal("Server failed", "error", err)
	}
}
