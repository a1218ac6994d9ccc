package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "modernc.org/sqlite"

	"courtside/internal/adapters/academy"
	"courtside/internal/adapters/camera"
	web "courtside/internal/adapters/http"
	"courtside/internal/adapters/storage"
	journalStore "courtside/internal/adapters/storage/journal"
	"courtside/internal/application/orchestrators"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// .env is optional; real deployments set the environment directly
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("could not load .env: %v", err)
	}

	baseURL := os.Getenv("COURTSIDE_API_BASE_URL")
	if baseURL == "" {
		log.Fatal("COURTSIDE_API_BASE_URL is required (academy API root, e.g. https://api.example.com)")
	}

	timeout := academy.DefaultTimeout
	if raw := os.Getenv("COURTSIDE_API_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			log.Fatalf("COURTSIDE_API_TIMEOUT must be a duration (e.g. 10s): %v", err)
		}
		timeout = d
	}
	client := academy.NewHTTPClient(baseURL, timeout)

	// Local scan journal with WAL mode, foreign keys, and busy timeout
	dbPath := envOrDefault("COURTSIDE_DB", "courtside.db")
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)

	if err := db.Ping(); err != nil {
		log.Fatalf("database unreachable: %v", err)
	}
	if err := storage.InitDB(db); err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}

	timedDB := storage.NewTimedDB(db)
	journal := journalStore.NewSQLiteStore(timedDB)

	// The device camera is for kiosk installs; browser clients decode QR
	// codes themselves and push payloads to /api/scan.
	var cam *camera.Manager
	if os.Getenv("COURTSIDE_CAMERA") != "off" {
		cam = camera.NewManager(&camera.ZbarSource{}, camera.DefaultScanRate)
	}

	app := web.NewApp(client, cameraOrNil(cam), journal)
	mux := web.NewMux(envOrDefault("COURTSIDE_STATIC_DIR", "static"), app)

	addr := envOrDefault("COURTSIDE_ADDR", ":8080")
	srv := &http.Server{Addr: addr, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("Courtside %s starting on %s (api=%s, env=%s)", version, addr, baseURL, envOrDefault("COURTSIDE_ENV", "development"))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")
	if cam != nil {
		cam.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

// cameraOrNil avoids handing the app a typed-nil interface when the camera is
// disabled.
func cameraOrNil(cam *camera.Manager) orchestrators.CameraControl {
	if cam == nil {
		return nil
	}
	return cam
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
