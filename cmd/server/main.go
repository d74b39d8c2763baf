package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/tworooms/internal/ability"
	"github.com/freeeve/tworooms/internal/auth"
	"github.com/freeeve/tworooms/internal/catalog"
	"github.com/freeeve/tworooms/internal/config"
	"github.com/freeeve/tworooms/internal/controller"
	"github.com/freeeve/tworooms/internal/handler"
	"github.com/freeeve/tworooms/internal/logger"
	"github.com/freeeve/tworooms/internal/middleware"
	"github.com/freeeve/tworooms/internal/repository"
	"github.com/freeeve/tworooms/internal/repository/postgres"
	redisrepo "github.com/freeeve/tworooms/internal/repository/redis"
	"github.com/freeeve/tworooms/internal/round"
	"github.com/freeeve/tworooms/internal/store"
	"github.com/freeeve/tworooms/internal/validate"
)

func main() {
	logger.Init()
	cfg := config.Load()

	// Character catalogue
	cat, err := catalog.New(catalog.Builtin())
	if err != nil {
		log.Fatal().Err(err).Msg("Character catalogue failed validation")
	}

	// Live game store
	gameStore := store.New(cfg.GameRetention)

	// Postgres archive (optional)
	var archive *postgres.ArchiveRepo
	if cfg.DatabaseURL != "" {
		db, err := postgres.Connect(cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Database connection failed")
		}
		defer db.Close()
		if err := postgres.EnsureSchema(db); err != nil {
			log.Fatal().Err(err).Msg("Database schema setup failed")
		}
		archive = postgres.NewArchiveRepo(db)
		gameStore.SetArchiver(archive)
		log.Info().Msg("Finished-game archive enabled")
	}

	// Redis snapshot write-through (optional)
	var snapshots repository.SnapshotStore
	if cfg.RedisURL != "" {
		redisClient, err := redisrepo.NewClient(cfg.RedisURL, cfg.GameRetention)
		if err != nil {
			log.Fatal().Err(err).Msg("Redis connection failed")
		}
		defer redisClient.Close()
		snapshots = redisClient
		log.Info().Msg("Snapshot write-through enabled")
	}

	// Core engines
	abilities := ability.NewDefault(cat)
	rounds := round.NewEngine(abilities)
	validator := validate.New(cat)
	ctrl := controller.New(gameStore, cat, validator, rounds, abilities, snapshots)

	// Auth
	jwtMgr := auth.NewJWTManager(cfg.JWTSecret)

	// Handlers
	wsHub := handler.NewHub()
	gameHandler := handler.NewGameHandler(ctrl, cat, jwtMgr, archive)
	wsHandler := handler.NewWSHandler(wsHub, ctrl, jwtMgr)

	// Router
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	mux.HandleFunc("POST /api/v1/games", gameHandler.CreateGame)
	mux.HandleFunc("POST /api/v1/games/join", gameHandler.JoinGame)
	mux.HandleFunc("GET /api/v1/games/{id}", gameHandler.GetGame)
	mux.HandleFunc("GET /api/v1/games/code/{code}", gameHandler.GetGameByCode)
	mux.HandleFunc("GET /api/v1/characters", gameHandler.ListCharacters)
	mux.HandleFunc("GET /api/v1/archive", gameHandler.ListArchive)

	// Authenticated private view (Bearer session token)
	authMw := auth.Middleware(jwtMgr)
	mux.Handle("GET /api/v1/me", authMw(http.HandlerFunc(gameHandler.GetMe)))

	// WebSocket (auth via query param, not middleware)
	mux.HandleFunc("GET /api/v1/ws", wsHandler.ServeWS)

	// Apply global middleware
	root := middleware.Chain(mux, middleware.Logger, middleware.CORS(cfg.AllowedOrigins), middleware.JSON)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Reaper for finished games
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go gameStore.StartReaper(ctx, cfg.ReapInterval)

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server shutdown error")
	}
	log.Info().Msg("Server stopped")
}
