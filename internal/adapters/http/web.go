package web

import (
	"crypto/rand"
	"encoding/hex"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/cors"

	"courtside/internal/adapters/academy"
	"courtside/internal/adapters/http/middleware"
	journalStore "courtside/internal/adapters/storage/journal"
	"courtside/internal/application/orchestrators"
	"courtside/internal/application/rosterview"
	"courtside/internal/domain/class"
	"courtside/internal/domain/notice"
	"courtside/internal/domain/roster"
	"courtside/internal/domain/scan"
)

// App holds the portal's dependencies and the mutable session state of one
// attendance device: the selected class, the live scan session and the local
// roster view.
type App struct {
	Academy academy.Client
	Camera  orchestrators.CameraControl // optional: nil disables the device camera
	Journal journalStore.Store          // optional: nil disables the scan journal
	Roster  *rosterview.View
	Notices *notice.Board

	Now        func() time.Time
	GenerateID func() string

	mu         sync.Mutex
	class      class.Context
	session    *scan.Session
	scanStatus roster.Status // status applied to scans, present or late
}

// NewApp creates a portal app around an academy client.
func NewApp(client academy.Client, camera orchestrators.CameraControl, journal journalStore.Store) *App {
	return &App{
		Academy:    client,
		Camera:     camera,
		Journal:    journal,
		Roster:     rosterview.New(),
		Notices:    notice.NewBoard(notice.DefaultTTL),
		Now:        time.Now,
		GenerateID: func() string { return uuid.New().String() },
		scanStatus: roster.StatusPresent,
	}
}

// loadCSRFKey reads the CSRF secret from COURTSIDE_CSRF_KEY (hex-encoded, 32 bytes).
// In production, the key MUST be set. In development, a random key is generated per startup.
func loadCSRFKey() []byte {
	if keyHex := os.Getenv("COURTSIDE_CSRF_KEY"); keyHex != "" {
		key, err := hex.DecodeString(keyHex)
		if err != nil || len(key) != 32 {
			log.Fatal("COURTSIDE_CSRF_KEY must be 64 hex characters (32 bytes)")
		}
		return key
	}
	if os.Getenv("COURTSIDE_ENV") == "production" {
		log.Fatal("COURTSIDE_CSRF_KEY is required in production")
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		log.Fatalf("failed to generate CSRF key: %v", err)
	}
	log.Println("WARNING: using random CSRF key (sessions won't survive restart). Set COURTSIDE_CSRF_KEY for production.")
	return key
}

// RateLimitPerSecond controls the per-IP rate limit. Tests can increase this.
var RateLimitPerSecond = 20

// NewMux wires HTTP handlers for the portal.
func NewMux(staticDir string, app *App) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.Dir(staticDir)))
	registerRoutes(mux, app)

	csrfKey := loadCSRFKey()
	limiter := middleware.NewRateLimiter(RateLimitPerSecond, time.Second)

	corsOptions := cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type"},
	}
	if origins := os.Getenv("COURTSIDE_ALLOWED_ORIGINS"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				corsOptions.AllowedOrigins = append(corsOptions.AllowedOrigins, o)
			}
		}
	}

	// Apply middleware: SecurityHeaders -> CSRF -> CORS -> RateLimit -> Mux
	return middleware.Chain(mux,
		middleware.SecurityHeaders,
		middleware.CSRF(csrfKey, []string{"localhost:8080", "127.0.0.1:8080"}),
		cors.New(corsOptions).Handler,
		middleware.RateLimit(limiter),
	)
}
