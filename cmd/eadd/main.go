package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	api "github.com/mind-engage/mindengage-ead/internal/api/http"
	"github.com/mind-engage/mindengage-ead/internal/assessment"
	auth "github.com/mind-engage/mindengage-ead/internal/auth/middleware"
	"github.com/mind-engage/mindengage-ead/internal/config"
	"github.com/mind-engage/mindengage-ead/internal/db"
	"github.com/mind-engage/mindengage-ead/internal/exam"
	"github.com/mind-engage/mindengage-ead/internal/grading"
	"github.com/mind-engage/mindengage-ead/internal/seed"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Stores ---
	var (
		store interface {
			assessment.Store
			seed.EnrollmentWriter
		}
		bank exam.Bank
	)
	if cfg.DBDriver == "memory" {
		mem := assessment.NewMemoryStore()
		store, bank = mem, exam.NewInMemoryBank(mem)
	} else {
		openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		dbh, err := db.Open(openCtx, db.Driver(cfg.DBDriver), cfg.DBDSN)
		cancel()
		if err != nil {
			logger.Error("db open failed", "driver", cfg.DBDriver, "err", err)
			os.Exit(1)
		}
		defer dbh.Close()
		store, bank = assessment.NewSQLStore(dbh), exam.NewSQLStore(dbh)
	}
	if path := os.Getenv("EAD_SEED_FILE"); path != "" {
		f, err := seed.LoadFile(ctx, path, bank, store)
		if err != nil {
			logger.Error("seed failed", "file", path, "err", err)
			os.Exit(1)
		}
		logger.Info("seed loaded", "file", path,
			"questions", len(f.Questions), "exams", len(f.Exams), "enrollments", len(f.Enrollments))
	}

	svc := assessment.New(store, bank, grading.NewEngine(), cfg.Policies, assessment.Options{
		AutoSubmitOnTimeout: cfg.AutoSubmitOnTimeout,
		Retention:           cfg.SessionRetention,
		Logger:              logger,
	})
	janitor, err := svc.StartJanitor(cfg.JanitorSchedule)
	if err != nil {
		logger.Error("janitor schedule", "schedule", cfg.JanitorSchedule, "err", err)
		os.Exit(1)
	}
	defer janitor.Stop()

	verifier := auth.NewVerifier(cfg.AuthHMACSecret)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	api.MountHealth(r, svc)

	// Protected API (JWT → role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(verifier))
		api.Mount(pr, svc)
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
	}()

	logger.Info("listening", "addr", cfg.HTTPAddr, "db", cfg.DBDriver,
		"auto_submit", cfg.AutoSubmitOnTimeout, "installations", len(cfg.Policies.Installations))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server", "err", err)
		os.Exit(1)
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	var level slog.Level
	_ = level.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel)))
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
