// Command ishlund is the hosted ISH-LUNC service.
// It serves the run submission API, the scenario and run read endpoints,
// and a health check.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	_ "github.com/lib/pq"

	"github.com/ishlunc/ishlunc/internal/api"
	"github.com/ishlunc/ishlunc/internal/artifact"
	"github.com/ishlunc/ishlunc/internal/platform"
	"github.com/ishlunc/ishlunc/internal/store"
	"github.com/ishlunc/ishlunc/pkg/config"
	"github.com/ishlunc/ishlunc/pkg/pipeline"
)

type daemonConfig struct {
	Port        string
	DatabaseURL string
	Storage     config.StorageConfig
}

func loadConfig() daemonConfig {
	return daemonConfig{
		Port:        envOrDefault("PORT", "8080"),
		DatabaseURL: envOrDefault("DATABASE_URL", "postgres://localhost:5432/ishlunc?sslmode=disable"),
		Storage: config.StorageConfig{
			Backend:   envOrDefault("STORAGE_BACKEND", "local"),
			BaseDir:   envOrDefault("LOCAL_STORAGE_PATH", filepath.Join(os.TempDir(), "ishlunc-data")),
			Bucket:    os.Getenv("STORAGE_BUCKET"),
			Region:    os.Getenv("STORAGE_REGION"),
			Endpoint:  os.Getenv("STORAGE_ENDPOINT"),
			AccessKey: os.Getenv("STORAGE_ACCESS_KEY"),
			SecretKey: os.Getenv("STORAGE_SECRET_KEY"),
		},
	}
}

func main() {
	cfg := loadConfig()

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("ping database: %v", err)
	}

	if err := platform.AutoMigrate(db); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	storage, err := artifact.NewFromConfig(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("init storage: %v", err)
	}

	storeSvc := store.NewService(db)
	handler := api.NewHandler(db, storeSvc, storage, pipeline.New())

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.HandleFunc("GET /healthz", healthHandler(db))

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: mux,
	}

	go func() {
		log.Printf("starting ishlund on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down...")
	if err := srv.Shutdown(context.Background()); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

func healthHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
