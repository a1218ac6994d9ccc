package browser_test

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"

	_ "modernc.org/sqlite"

	"courtside/internal/adapters/academy"
	web "courtside/internal/adapters/http"
	"courtside/internal/adapters/storage"
	journalStore "courtside/internal/adapters/storage/journal"
)

// fakeStudent is one enrolled student in the fake academy backend.
type fakeStudent struct {
	ID    int64
	Name  string
	Email string
}

// fakeAcademy is an in-memory academy API speaking the production wire
// format, so browser tests exercise the real HTTP client.
type fakeAcademy struct {
	mu         sync.Mutex
	students   []fakeStudent
	attendance map[int64]string // student ID -> status
	classID    int64
}

func newFakeAcademy() *fakeAcademy {
	return &fakeAcademy{
		students: []fakeStudent{
			{ID: 7, Name: "Jane Doe", Email: "jane@example.com"},
			{ID: 8, Name: "John Roe", Email: "john@example.com"},
		},
		attendance: make(map[int64]string),
		classID:    42,
	}
}

func (f *fakeAcademy) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/class_types", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []map[string]any{{"id": 7, "name": "Junior Squad"}})
	})

	mux.HandleFunc("/classes/by_type", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Date        string `json:"date"`
			ClassTypeID int64  `json:"class_type_id"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		writeJSON(w, map[string]any{"id": f.classID, "class_type_id": req.ClassTypeID, "date": req.Date})
	})

	mux.HandleFunc("/attendance/scan", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			QRData  string `json:"qr_data"`
			ClassID int64  `json:"class_id"`
			Status  string `json:"status"`
		}
		json.NewDecoder(r.Body).Decode(&req)

		student, ok := f.studentByToken(req.QRData)
		if !ok {
			writeJSON(w, map[string]any{"success": false, "message": "Student not found"})
			return
		}

		f.mu.Lock()
		_, already := f.attendance[student.ID]
		if !already {
			f.attendance[student.ID] = req.Status
		}
		f.mu.Unlock()

		if already {
			// Repeat scans answer success=false with the flag set,
			// matching the real backend.
			writeJSON(w, map[string]any{
				"success":         false,
				"message":         "Already marked present",
				"user_name":       student.Name,
				"already_present": true,
			})
			return
		}
		writeJSON(w, map[string]any{
			"success":         true,
			"user_id":         student.ID,
			"user_name":       student.Name,
			"already_present": false,
			"checked_in_at":   time.Now().UTC().Format(time.RFC3339),
		})
	})

	mux.HandleFunc("/attendance/mark", func(w http.ResponseWriter, r *http.Request) {
		userID, _ := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
		student, ok := f.studentByID(userID)
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			writeJSON(w, map[string]any{"detail": "Student not found"})
			return
		}
		f.mu.Lock()
		f.attendance[userID] = r.URL.Query().Get("status")
		f.mu.Unlock()
		writeJSON(w, map[string]any{"user_name": student.Name, "checked_in_at": time.Now().UTC().Format(time.RFC3339)})
	})

	mux.HandleFunc("/attendance/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/attendance/comprehensive/") {
			f.mu.Lock()
			rows := make([]map[string]any, 0, len(f.students))
			for i, s := range f.students {
				row := map[string]any{"user_id": s.ID, "name": s.Name, "email": s.Email, "status": "missing"}
				if status, ok := f.attendance[s.ID]; ok {
					row["status"] = status
					row["attendance_id"] = int64(i + 1)
					row["checked_in_at"] = time.Now().UTC().Format(time.RFC3339)
				}
				rows = append(rows, row)
			}
			f.mu.Unlock()
			writeJSON(w, rows)
			return
		}
		if r.Method == http.MethodDelete {
			parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
			userID, _ := strconv.ParseInt(parts[len(parts)-1], 10, 64)
			f.mu.Lock()
			delete(f.attendance, userID)
			f.mu.Unlock()
			writeJSON(w, map[string]any{"success": true})
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	mux.HandleFunc("/cancel_class/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"success": true})
	})

	return mux
}

// studentByToken resolves a "id:name" QR payload.
func (f *fakeAcademy) studentByToken(token string) (fakeStudent, bool) {
	idPart, _, _ := strings.Cut(token, ":")
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return fakeStudent{}, false
	}
	return f.studentByID(id)
}

func (f *fakeAcademy) studentByID(id int64) (fakeStudent, bool) {
	for _, s := range f.students {
		if s.ID == id {
			return s, true
		}
	}
	return fakeStudent{}, false
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// testApp holds the running portal, the fake backend and Playwright handles.
type testApp struct {
	BaseURL string
	Academy *fakeAcademy
	Browser playwright.Browser
}

// newTestApp starts the fake academy, a portal wired to it over the real HTTP
// client, and a headless browser. Skips the test when Playwright's browsers
// are not installed on the host.
func newTestApp(t *testing.T) *testApp {
	t.Helper()

	fake := newFakeAcademy()
	backend := httptest.NewServer(fake.handler())
	t.Cleanup(backend.Close)

	client := academy.NewHTTPClient(backend.URL, 5*time.Second)

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)")
	if err != nil {
		t.Fatalf("failed to open test DB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := storage.InitDB(db); err != nil {
		t.Fatalf("failed to initialize test DB: %v", err)
	}

	app := web.NewApp(client, nil, journalStore.NewSQLiteStore(db))

	// Find a free port
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find free port: %v", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	// Serve static assets from the project root
	projectRoot := findProjectRoot(t)
	origDir, _ := os.Getwd()
	if err := os.Chdir(projectRoot); err != nil {
		t.Fatalf("failed to chdir to project root: %v", err)
	}
	t.Cleanup(func() { os.Chdir(origDir) })

	web.RateLimitPerSecond = 1000
	srv := &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", port),
		Handler: web.NewMux("static", app),
	}
	go func() {
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("test server error: %v", err)
		}
	}()
	t.Cleanup(func() { srv.Close() })

	baseURL := fmt.Sprintf("http://127.0.0.1:%d", port)
	for i := 0; i < 50; i++ {
		resp, err := http.Get(baseURL + "/api/state")
		if err == nil {
			resp.Body.Close()
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	pw, err := playwright.Run()
	if err != nil {
		t.Skipf("playwright not available: %v", err)
	}
	t.Cleanup(func() { pw.Stop() })
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
	})
	if err != nil {
		t.Skipf("could not launch browser: %v", err)
	}
	t.Cleanup(func() { browser.Close() })

	return &testApp{BaseURL: baseURL, Academy: fake, Browser: browser}
}

// newPage creates a new browser page (tab).
func (a *testApp) newPage(t *testing.T) playwright.Page {
	t.Helper()
	page, err := a.Browser.NewPage()
	if err != nil {
		t.Fatalf("failed to create page: %v", err)
	}
	t.Cleanup(func() { page.Close() })
	return page
}

// findProjectRoot walks up from the working directory to the module root.
func findProjectRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("go.mod not found above the test directory")
		}
		dir = parent
	}
}
