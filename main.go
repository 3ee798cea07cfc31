package main

import (
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	"fede-claims/internal/audit"
	"fede-claims/internal/auth"
	claimapp "fede-claims/internal/claims/application"
	claimrepo "fede-claims/internal/claims/infrastructure/postgres"
	claiminterfaces "fede-claims/internal/claims/interfaces"
	claimnotify "fede-claims/internal/claims/notify"
	"fede-claims/internal/observability/metrics"
	ratesapp "fede-claims/internal/reimbursement/application"
	ratesrepo "fede-claims/internal/reimbursement/infrastructure/postgres"
	ratesinterfaces "fede-claims/internal/reimbursement/interfaces"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db, logger)
	associationChecker := auth.NewAssociationChecker(db)
	auditRepo := audit.NewRepository(db)

	ratesCfg, err := ratesapp.LoadConfig()
	if err != nil {
		logger.Fatalf("rates config error: %v", err)
	}
	rateRepo := ratesrepo.NewRateRepository(db, ratesrepo.WithTenantID(cfg.TenantID))
	claimRepo := claimrepo.NewClaimRepository(db)

	serviceOpts := []claimapp.ServiceOption{
		claimapp.WithFallbackTrainBands(ratesCfg.Bands()),
	}
	if cfg.ClaimsWebhookURL != "" {
		notifier, err := claimnotify.NewWebhookNotifier(cfg.ClaimsWebhookURL, logger)
		if err != nil {
			logger.Fatalf("claims webhook error: %v", err)
		}
		serviceOpts = append(serviceOpts, claimapp.WithNotifier(notifier))
	}
	claimService, err := claimapp.NewClaimService(claimRepo, rateRepo, systemClock{}, cfg.TenantID, serviceOpts...)
	if err != nil {
		logger.Fatalf("claim service error: %v", err)
	}

	claimHandler, err := claiminterfaces.NewClaimHandler(claimService, associationChecker, auditRepo)
	if err != nil {
		logger.Fatalf("claim handler error: %v", err)
	}
	exportHandler, err := claiminterfaces.NewExportHandler(claimService, associationChecker, auditRepo)
	if err != nil {
		logger.Fatalf("export handler error: %v", err)
	}
	rateHandler, err := ratesinterfaces.NewRateHandler(rateRepo, auditRepo)
	if err != nil {
		logger.Fatalf("rate handler error: %v", err)
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/claims", claimHandler)
	mux.Handle("/api/v1/claims/", claimHandler)
	mux.Handle("/api/v1/exports/claims.xlsx", exportHandler)
	mux.Handle("/api/v1/rates/", rateHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	DatabaseURL      string
	HTTPAddr         string
	TenantID         string
	JWTSecret        string
	ClaimsWebhookURL string
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:      getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:         getenvDefault("HTTP_ADDR", ":8080"),
		TenantID:         getenvDefault("TENANT_ID", "tenant-fede"),
		JWTSecret:        getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		ClaimsWebhookURL: getenvDefault("CLAIMS_WEBHOOK_URL", ""),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
