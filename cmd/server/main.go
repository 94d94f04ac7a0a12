package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/masteryquest/backend/internal/cache"
	"github.com/masteryquest/backend/internal/config"
	"github.com/masteryquest/backend/internal/database"
	"github.com/masteryquest/backend/internal/generator"
	"github.com/masteryquest/backend/internal/importer"
	"github.com/masteryquest/backend/internal/middleware"
	"github.com/masteryquest/backend/internal/progress"
	"github.com/masteryquest/backend/internal/scheduler"
	"github.com/masteryquest/backend/internal/ws"
	"github.com/rs/cors"
)

const (
	maxSocketsPerUser = 5
	shutdownTimeout   = 15 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("Invalid timezone: %v", err)
	}

	// Initialize database
	db, err := database.Connect(cfg.Database.DSN())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	localCache, err := cache.Open(cfg.CachePath)
	if err != nil {
		log.Fatalf("Failed to open local cache: %v", err)
	}
	defer localCache.Close()

	catalog := progress.DefaultCatalog()
	if cfg.StagesFile != "" {
		catalog, err = progress.LoadCatalog(cfg.StagesFile)
		if err != nil {
			log.Fatalf("Failed to load stage catalog: %v", err)
		}
	}

	// Initialize services
	hub := ws.NewHub(maxSocketsPerUser)
	service := progress.NewService(
		progress.NewLedger(catalog),
		progress.NewStore(db),
		localCache,
		progress.WithLocation(loc),
		progress.WithRemoteTimeout(cfg.RemoteWriteTimeout),
		progress.WithChangeObserver(hub.Publish),
	)

	gen := generator.NewGenerator(generator.Options{
		UseCLI:  cfg.Generator.UseCLI,
		CLIPath: cfg.Generator.CLIPath,
		Mock:    cfg.Generator.Mock,
		Model:   cfg.Generator.Model,
		APIKey:  cfg.Generator.APIKey,
	})
	log.Printf("Content generator: %s", gen.ModelName())

	imp := importer.New(service, gen, importer.DefaultConfig())
	progressHandler := progress.NewHandler(service, gen, imp)
	auth := middleware.NewAuth(cfg.JWTSecret)

	// Setup router
	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(auth.Middleware)
	progressHandler.Routes(api)

	r.Handle("/ws", ws.NewHandler(hub, service, auth, cfg.AllowedOrigins))

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	rollover := scheduler.New(service, loc)
	if err := rollover.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           c.Handler(r),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}
	rollover.Stop()
	hub.Close()
	if err := service.Drain(ctx); err != nil {
		log.Printf("Pending remote writes abandoned: %v", err)
	}
}
