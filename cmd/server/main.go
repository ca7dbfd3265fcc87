package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"companion-chat/internal/api"
	"companion-chat/internal/config"
	"companion-chat/internal/db"
	"companion-chat/internal/logic"
	"companion-chat/internal/orchestrator"
	"companion-chat/internal/quota"
	"companion-chat/internal/readstate"
	"companion-chat/internal/responder"
)

func main() {
	// .env is optional; real environments set variables directly
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Ensure data directory exists
	dbDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	// Initialize database
	database, err := db.NewDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	// Run migrations
	if err := database.Migrate(); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	log.Println("Database migrated successfully")

	// Initialize the persona responder (optional)
	var generator responder.Generator
	if cfg.Responder.APIKey != "" {
		var opts []responder.ClientOption
		if cfg.Responder.BaseURL != "" {
			opts = append(opts, responder.WithBaseURL(cfg.Responder.BaseURL))
		}
		if cfg.Responder.Model != "" {
			opts = append(opts, responder.WithModel(cfg.Responder.Model))
		}
		generator = responder.NewClient(cfg.Responder.APIKey, opts...)
		log.Println("Responder client initialized")
	} else {
		log.Println("Warning: responder API key not configured, persona replies disabled")
	}

	gate := quota.NewGate(database, cfg.Quota.Limit, time.Duration(cfg.Quota.Window))
	tracker := readstate.NewTracker(database)

	rng := logic.NewLockedRand(time.Now().UnixNano())
	engine := orchestrator.NewEngine(database, generator, gate, rng, orchestrator.Config{
		PacingInterval:      time.Duration(cfg.Orchestrator.PacingInterval),
		ResponderTimeout:    time.Duration(cfg.Orchestrator.ResponderTimeout),
		ReactionProbability: cfg.ReactionProbabilityOrDefault(),
		ReactionDelayMin:    time.Duration(cfg.Orchestrator.ReactionDelayMin),
		ReactionDelayMax:    time.Duration(cfg.Orchestrator.ReactionDelayMax),
		HistoryWindow:       cfg.Orchestrator.HistoryWindow,
	})

	router := api.NewRouter(database, engine, gate, tracker)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Handle graceful shutdown
	done := make(chan bool, 1)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Server is shutting down...")

		// Cancel pending persona deliveries and wait for their
		// goroutines to stop before closing the listener
		engine.Shutdown()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Fatalf("Server forced to shutdown: %v", err)
		}

		close(done)
	}()

	log.Printf("Server starting on port %s", cfg.Port)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server failed to start: %v", err)
	}

	<-done
	log.Println("Server stopped gracefully")
}
