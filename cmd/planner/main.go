package main

import (
	"context"
	"database/sql"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"SmartGrocer/internal/catalog"
	"SmartGrocer/internal/planner"
	"SmartGrocer/internal/session"
	"SmartGrocer/internal/share"
	"SmartGrocer/pkg/kit"
)

const startupTimeout = 10 * time.Second

func main() {
	_ = godotenv.Load()

	service := "planner"
	log := kit.NewLogger(service, os.Getenv("DEBUG") == "1")
	defer func() { _ = log.Sync() }()

	port := getenv("PORT", "8080")
	baseURL := getenv("BASE_URL", "http://localhost:"+port)
	secret := getenv("SESSION_SECRET", "dev-secret")
	ttl := getdur("SESSION_TTL", 24*time.Hour, log)

	src, closeDB := buildSource(log)
	defer closeDB()

	provider := catalog.NewProvider(src)

	// Load once up front. A schema problem has to stop the process, not
	// surface per request.
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	cat, err := provider.Get(ctx)
	cancel()
	if err != nil {
		log.Fatal("catalog load failed", zap.Error(err))
	}
	log.Info("catalog loaded",
		zap.Int("items", cat.Len()),
		zap.Int("stores", len(cat.Stores())),
	)

	mgr := session.NewManager(ttl)
	go purgeLoop(mgr, ttl, log)

	s := &planner.Server{
		Catalog:    provider,
		Sessions:   mgr,
		Tokens:     session.NewTokenMaker(secret),
		Share:      &share.Builder{BaseURL: baseURL},
		Log:        log,
		SessionTTL: ttl,
	}

	h := planner.NewHandler(s, planner.HTTPDeps{
		Log:            log,
		Service:        service,
		Registry:       prometheus.NewRegistry(),
		MetricsEnabled: os.Getenv("METRICS_ENABLED") == "1",
		MetricsToken:   os.Getenv("METRICS_TOKEN"),
	})

	if err := kit.RunHTTPServer(":"+port, h, log); err != nil {
		log.Fatal("http server stopped", zap.Error(err))
	}
}

func buildSource(log *zap.Logger) (catalog.Source, func()) {
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		db, err := sql.Open("pgx", dbURL)
		if err != nil {
			log.Fatal("open database failed", zap.Error(err))
		}
		return catalog.NewPostgresSource(db), func() { _ = db.Close() }
	}

	path := getenv("CATALOG_CSV", "cleaned_food_list.csv")
	return &catalog.CSVSource{Path: path, Log: log}, func() {}
}

func purgeLoop(mgr *session.Manager, ttl time.Duration, log *zap.Logger) {
	interval := ttl / 4
	if interval < time.Minute {
		interval = time.Minute
	}

	t := time.NewTicker(interval)
	defer t.Stop()

	for now := range t.C {
		if n := mgr.Purge(now); n > 0 {
			log.Info("sessions purged", zap.Int("count", n))
		}
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getdur(k string, def time.Duration, log *zap.Logger) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Warn("bad duration, using default", zap.String("key", k), zap.String("value", v))
		return def
	}
	return d
}
