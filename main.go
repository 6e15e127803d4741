package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	"oee-platform/internal/auth"
	collectorapp "oee-platform/internal/collector/application"
	collectorhttp "oee-platform/internal/collector/interfaces/http"
	"oee-platform/internal/eventing"
	history "oee-platform/internal/history/domain"
	historymemory "oee-platform/internal/history/infrastructure/memory"
	historypostgres "oee-platform/internal/history/infrastructure/postgres"
	lossapp "oee-platform/internal/loss/application"
	losshttp "oee-platform/internal/loss/interfaces/http"
	masterdataapp "oee-platform/internal/masterdata/application"
	masterdatapostgres "oee-platform/internal/masterdata/infrastructure/postgres"
	"oee-platform/internal/observability/metrics"
	"oee-platform/internal/plant"
	resolutionapp "oee-platform/internal/resolution/application"
	resolution "oee-platform/internal/resolution/domain"
	"oee-platform/internal/resolution/scripting"
	"oee-platform/internal/uom"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	units := uom.DefaultRegistry()
	catalog, err := masterdataapp.LoadPlantFile(cfg.PlantConfigPath, units)
	if err != nil {
		logger.Fatalf("plant config error: %v", err)
	}

	// The equipment hierarchy always comes from the plant definition.
	// Materials, reasons and resolver state move to Postgres when a
	// database is configured.
	var (
		db        *sql.DB
		materials plant.MaterialRepository    = catalog
		reasons   plant.ReasonRepository      = catalog
		configs   resolution.ConfigRepository = catalog
		records   history.RecordRepository    = historymemory.NewRecordRepository()
	)
	if cfg.DatabaseURL != "" {
		db, err = sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("db open error: %v", err)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			logger.Fatalf("db ping error: %v", err)
		}

		pgCatalog, err := masterdatapostgres.NewCatalog(db, catalog)
		if err != nil {
			logger.Fatalf("masterdata repo error: %v", err)
		}
		materials, reasons, configs = pgCatalog, pgCatalog, pgCatalog

		recordRepo, err := historypostgres.NewRecordRepository(db, units)
		if err != nil {
			logger.Fatalf("history repo error: %v", err)
		}
		records = recordRepo
	}
	metrics.Init(db, logger)

	engine := scripting.NewGojaEngine(scripting.WithTimeout(cfg.ScriptTimeout))
	resolver, err := resolutionapp.NewEventResolver(configs, materials, reasons, engine, logger)
	if err != nil {
		logger.Fatalf("event resolver error: %v", err)
	}
	shared := resolutionapp.NewEquipmentContext()

	bus := eventing.NewInMemoryBus()
	bus.Subscribe(eventing.TypeOf[collectorapp.EventResolved](), func(ctx context.Context, event any) error {
		evt, ok := event.(collectorapp.EventResolved)
		if !ok {
			return eventing.ErrInvalidEventType
		}
		logger.Printf("event resolved: source=%s equipment=%s type=%s at=%s",
			evt.SourceID, evt.EquipmentName, evt.Type, evt.Timestamp.Format(time.RFC3339))
		return nil
	})

	collector, err := collectorapp.NewService(resolver, shared, records, configs, bus, logger)
	if err != nil {
		logger.Fatalf("collector service error: %v", err)
	}
	ingestHandler, err := collectorhttp.NewIngestHandler(collector, logger)
	if err != nil {
		logger.Fatalf("ingest handler error: %v", err)
	}
	cacheClearHandler, err := collectorhttp.NewCacheClearHandler(resolver, logger)
	if err != nil {
		logger.Fatalf("cache clear handler error: %v", err)
	}

	calculator, err := lossapp.NewCalculator(records, logger)
	if err != nil {
		logger.Fatalf("loss calculator error: %v", err)
	}
	lossHandler, err := losshttp.NewHandler(calculator, catalog, materials, logger)
	if err != nil {
		logger.Fatalf("loss handler error: %v", err)
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	mux := http.NewServeMux()
	mux.Handle("/ingest/readings", ingestHandler)
	mux.HandleFunc("/api/v1/oee/loss", lossHandler.Loss)
	mux.HandleFunc("/api/v1/oee/pareto", lossHandler.Pareto)
	mux.HandleFunc("/api/v1/oee/export.pdf", lossHandler.ExportPDF)
	mux.HandleFunc("/api/v1/oee/export.xlsx", lossHandler.ExportXLSX)
	mux.Handle("/api/v1/resolvers/cache/clear", cacheClearHandler)
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
	DatabaseURL     string
	HTTPAddr        string
	PlantConfigPath string
	JWTSecret       string
	ScriptTimeout   time.Duration
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:     getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:        getenvDefault("HTTP_ADDR", ":8080"),
		PlantConfigPath: getenvDefault("PLANT_CONFIG", "plant.yaml"),
		JWTSecret:       getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		ScriptTimeout:   getenvDuration("SCRIPT_TIMEOUT", 5*time.Second),
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

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
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
