package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"rawatib/internal/db"
	"rawatib/internal/domain/audit"
	"rawatib/internal/domain/auth"
	"rawatib/internal/domain/documents"
	"rawatib/internal/domain/loans"
	"rawatib/internal/domain/payroll"
	"rawatib/internal/domain/roster"
	"rawatib/internal/platform/config"
	"rawatib/internal/platform/metrics"
	audithandler "rawatib/internal/transport/http/handlers/audit"
	authhandler "rawatib/internal/transport/http/handlers/auth"
	documentshandler "rawatib/internal/transport/http/handlers/documents"
	loanshandler "rawatib/internal/transport/http/handlers/loans"
	payrollhandler "rawatib/internal/transport/http/handlers/payroll"
	"rawatib/internal/transport/http/middleware"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		slog.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, "migrations"); err != nil {
			slog.Error("migrations failed", "err", err)
			os.Exit(1)
		}
	}
	if cfg.RunSeed {
		if err := db.Seed(ctx, pool, cfg); err != nil {
			slog.Error("seed failed", "err", err)
			os.Exit(1)
		}
	}

	authStore := auth.NewStore(pool)
	authService := auth.NewService(authStore, cfg.JWTSecret, 8*time.Hour)
	auditor := audit.New(pool)
	collector := metrics.New()

	payrollService := payroll.NewService(
		payroll.NewStore(pool),
		roster.NewStore(pool),
		payroll.GOSIRates{
			EmployeeSaudi:    cfg.GOSI.EmployeeSaudi,
			EmployerSaudi:    cfg.GOSI.EmployerSaudi,
			EmployerNonSaudi: cfg.GOSI.EmployerNonSaudi,
		},
		payroll.Thresholds{
			DeductionRatioWarnPct: cfg.Findings.DeductionRatioWarnPct,
			DeductionRatioCritPct: cfg.Findings.DeductionRatioCritPct,
			OvertimeWarnHours:     cfg.Findings.OvertimeWarnHours,
			OvertimeCritHours:     cfg.Findings.OvertimeCritHours,
			NetDeviationWarnPct:   cfg.Findings.NetDeviationWarnPct,
			NetDeviationCritPct:   cfg.Findings.NetDeviationCritPct,
			OvertimeSpikePct:      cfg.Findings.OvertimeSpikePct,
			OvertimeSpikeMinHours: cfg.Findings.OvertimeSpikeMinHours,
			NewHighOvertimeHours:  cfg.Findings.NewHighOvertimeHours,
		},
	)
	loansService := loans.NewService(loans.NewStore(pool))
	documentsService := documents.New(pool)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(chimiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-Total-Count"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	if cfg.MetricsEnabled {
		router.Use(middleware.Metrics(collector))
	}
	router.Use(middleware.Auth(cfg.JWTSecret))

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

	if cfg.MetricsEnabled {
		router.With(middleware.RequirePermission(auth.PermSystemAdmin, authService)).
			Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_ = writeJSON(w, collector.Snapshot())
			})
	}

	router.Route("/api/v1", func(r chi.Router) {
		authhandler.NewHandler(authService).RegisterRoutes(r)
		payrollhandler.NewHandler(payrollService, authService, auditor, collector).RegisterRoutes(r)
		loanshandler.NewHandler(loansService, authService, auditor, collector).RegisterRoutes(r)
		documentshandler.NewHandler(documentsService, authService, auditor, collector).RegisterRoutes(r)
		audithandler.NewHandler(auditor, authService).RegisterRoutes(r)
	})

	slog.Info("payroll server listening", "addr", cfg.Addr, "env", cfg.Environment)
	if err := http.ListenAndServe(cfg.Addr, router); err != nil {
		slog.Error("server failed", "err", err)
		os.Exit(1)
	}
}

func writeJSON(w http.ResponseWriter, payload any) error {
	return json.NewEncoder(w).Encode(payload)
}
