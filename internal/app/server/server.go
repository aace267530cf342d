package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"evalportal/internal/platform/config"
	"evalportal/internal/platform/db"
	"evalportal/internal/store"
	authhandler "evalportal/internal/transport/http/handlers/auth"
	directoryhandler "evalportal/internal/transport/http/handlers/directory"
	evaluationhandler "evalportal/internal/transport/http/handlers/evaluation"
	"evalportal/internal/transport/http/middleware"
)

type App struct {
	Config config.Config
	DB     *pgxpool.Pool
	Router http.Handler
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, "migrations"); err != nil {
			pool.Close()
			return nil, err
		}
	}

	if cfg.RunSeed {
		if err := db.Seed(ctx, pool, cfg); err != nil {
			pool.Close()
			return nil, err
		}
	}

	st := store.New(pool)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.SecureHeaders(cfg.Environment == "production"))
	// Auth runs before Logger so access entries carry the employee id.
	router.Use(middleware.Auth(cfg.JWTSecret))
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.RateLimit(cfg.RateLimitPerMin, time.Minute))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	router.Route("/api/v1", func(r chi.Router) {
		authHandler := authhandler.NewHandler(st, cfg.JWTSecret)
		r.With(middleware.LoginRateLimit(cfg.LoginRatePerMin, time.Minute)).
			Post("/auth/login", authHandler.HandleLogin)

		evaluationHandler := evaluationhandler.NewHandler(st)
		evaluationHandler.RegisterRoutes(r)

		directoryHandler := directoryhandler.NewHandler(st)
		directoryHandler.RegisterRoutes(r)
	})

	// Generated documents are plain files served from the artifact dir.
	router.Mount("/artifacts", http.StripPrefix("/artifacts", http.FileServer(http.Dir(cfg.ArtifactDir))))

	return &App{Config: cfg, DB: pool, Router: router}, nil
}

func (a *App) Close() {
	a.DB.Close()
}

func Run() {
	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	app, err := New(context.Background(), cfg)
	if err != nil {
		log.Fatalf("server init failed: %v", err)
	}
	defer app.Close()

	log.Printf("evaluation portal listening on %s", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, app.Router); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
