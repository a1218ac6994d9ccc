package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"courtside/internal/adapters/academy"
)

// mockAcademy implements academy.Client for testing.
type mockAcademy struct {
	roster      []academy.RosterRow
	scanResult  academy.ScanResult
	scanErr     error
	scans       int
	marks       int
	unmarks     int
	cancelled   []string
	classTypes  []academy.ClassType
	resolveInfo academy.ClassInfo
}

func (m *mockAcademy) ScanAttendance(_ context.Context, _ academy.ScanRequest) (academy.ScanResult, error) {
	m.scans++
	if m.scanErr != nil {
		return academy.ScanResult{}, m.scanErr
	}
	return m.scanResult, nil
}

func (m *mockAcademy) MarkAttendance(_ context.Context, _, studentID, _ string) (academy.MarkResult, error) {
	m.marks++
	for _, row := range m.roster {
		if row.StudentID == studentID {
			return academy.MarkResult{StudentName: row.Name}, nil
		}
	}
	return academy.MarkResult{}, &academy.RejectionError{Message: "Student not found"}
}

func (m *mockAcademy) UnmarkAttendance(_ context.Context, _, _ string) error {
	m.unmarks++
	return nil
}

func (m *mockAcademy) ComprehensiveRoster(_ context.Context, _ string) ([]academy.RosterRow, error) {
	return m.roster, nil
}

func (m *mockAcademy) ResolveClassByType(_ context.Context, _, _ string) (academy.ClassInfo, error) {
	return m.resolveInfo, nil
}

func (m *mockAcademy) ListClassTypes(_ context.Context) ([]academy.ClassType, error) {
	return m.classTypes, nil
}

func (m *mockAcademy) CancelClass(_ context.Context, classID string) error {
	m.cancelled = append(m.cancelled, classID)
	return nil
}

var fixedTimeWeb = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func newTestApp(client *mockAcademy) *App {
	app := NewApp(client, nil, nil)
	app.Now = func() time.Time { return fixedTimeWeb }
	ids := 0
	app.GenerateID = func() string {
		ids++
		return "id-" + string(rune('0'+ids))
	}
	return app
}

func newTestMux(t *testing.T, app *App) http.Handler {
	t.Helper()
	RateLimitPerSecond = 1000
	return NewMux(t.TempDir(), app)
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest("POST", path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func getJSON(t *testing.T, h http.Handler, path string, out any) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if out != nil && rec.Code == http.StatusOK {
		if err := json.NewDecoder(rec.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return rec
}

func resolveTestClass(t *testing.T, h http.Handler) {
	t.Helper()
	rec := postJSON(t, h, "/api/class/resolve", map[string]string{
		"class_type_id": "7",
		"package_id":    "3",
		"date":          "2026-03-14",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("resolve class: status %d, body %s", rec.Code, rec.Body.String())
	}
}

func testAcademy() *mockAcademy {
	return &mockAcademy{
		resolveInfo: academy.ClassInfo{ID: "42", ClassTypeID: "7", Date: "2026-03-14"},
		roster: []academy.RosterRow{
			{StudentID: "7", Name: "Jane Doe", Email: "jane@example.com"},
			{StudentID: "8", Name: "John Roe", Email: "john@example.com"},
		},
	}
}

// TestResolveClassLoadsRoster tests that resolving a class pulls its roster.
func TestResolveClassLoadsRoster(t *testing.T) {
	client := testAcademy()
	mux := newTestMux(t, newTestApp(client))

	resolveTestClass(t, mux)

	var roster struct {
		Rows  []map[string]any `json:"rows"`
		Total int              `json:"total"`
	}
	rec := getJSON(t, mux, "/api/roster", &roster)
	if rec.Code != http.StatusOK {
		t.Fatalf("roster: status %d", rec.Code)
	}
	if roster.Total != 2 || len(roster.Rows) != 2 {
		t.Fatalf("roster = %+v, want 2 rows", roster)
	}
	if roster.Rows[0]["status"] != "unchecked" {
		t.Errorf("status = %v, want unchecked", roster.Rows[0]["status"])
	}
}

// TestScanFlow tests the browser scan path end to end: start scanning, push a
// token, see the roster update and the notice appear.
func TestScanFlow(t *testing.T) {
	client := testAcademy()
	client.scanResult = academy.ScanResult{StudentID: "7", StudentName: "Jane Doe", CheckedInAt: fixedTimeWeb}
	mux := newTestMux(t, newTestApp(client))
	resolveTestClass(t, mux)

	rec := postJSON(t, mux, "/api/scanning/start", map[string]string{"status": "present"})
	if rec.Code != http.StatusOK {
		t.Fatalf("start scanning: status %d, body %s", rec.Code, rec.Body.String())
	}

	rec = postJSON(t, mux, "/api/scan", map[string]string{"token": "7:Jane Doe"})
	if rec.Code != http.StatusOK {
		t.Fatalf("scan: status %d, body %s", rec.Code, rec.Body.String())
	}
	var scanResp struct {
		Dropped     bool   `json:"dropped"`
		StudentName string `json:"student_name"`
		Status      string `json:"status"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&scanResp); err != nil {
		t.Fatalf("decode scan response: %v", err)
	}
	if scanResp.Dropped || scanResp.StudentName != "Jane Doe" || scanResp.Status != "present" {
		t.Errorf("scan response = %+v", scanResp)
	}

	// Same token again: dropped without another request.
	rec = postJSON(t, mux, "/api/scan", map[string]string{"token": "7:Jane Doe"})
	if err := json.NewDecoder(rec.Body).Decode(&scanResp); err != nil {
		t.Fatalf("decode second scan response: %v", err)
	}
	if !scanResp.Dropped {
		t.Error("expected the duplicate scan to be dropped")
	}
	if client.scans != 1 {
		t.Errorf("backend scans = %d, want 1", client.scans)
	}

	var notices []map[string]any
	getJSON(t, mux, "/api/notices", &notices)
	if len(notices) != 1 || notices[0]["message"] != "Jane Doe marked as present" {
		t.Errorf("notices = %+v", notices)
	}
}

// TestScanWithoutSession tests that scans are refused before scanning starts.
func TestScanWithoutSession(t *testing.T) {
	mux := newTestMux(t, newTestApp(testAcademy()))
	resolveTestClass(t, mux)

	rec := postJSON(t, mux, "/api/scan", map[string]string{"token": "7:Jane Doe"})
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

// TestSetStatusAndUnmark tests the manual buttons: mark late, then unmark.
func TestSetStatusAndUnmark(t *testing.T) {
	client := testAcademy()
	mux := newTestMux(t, newTestApp(client))
	resolveTestClass(t, mux)

	rec := postJSON(t, mux, "/api/roster/status", map[string]string{"student_id": "8", "status": "late"})
	if rec.Code != http.StatusOK {
		t.Fatalf("set status: %d, body %s", rec.Code, rec.Body.String())
	}

	var roster struct {
		Rows []map[string]any `json:"rows"`
	}
	getJSON(t, mux, "/api/roster", &roster)
	if roster.Rows[1]["student_id"] != "8" || roster.Rows[1]["status"] != "late" {
		t.Errorf("rows = %+v, want John Roe late after the unchecked group", roster.Rows)
	}

	rec = postJSON(t, mux, "/api/roster/status", map[string]string{"student_id": "8", "status": "unchecked"})
	if rec.Code != http.StatusOK {
		t.Fatalf("unmark: %d, body %s", rec.Code, rec.Body.String())
	}
	if client.unmarks != 1 {
		t.Errorf("unmarks = %d, want 1", client.unmarks)
	}

	getJSON(t, mux, "/api/roster", &roster)
	if roster.Rows[1]["status"] != "unchecked" {
		t.Errorf("status = %v, want unchecked after unmark", roster.Rows[1]["status"])
	}
}

// TestScanRegistrationWarning tests that a lapsed registration reported with
// the mark reaches the page.
func TestScanRegistrationWarning(t *testing.T) {
	client := testAcademy()
	client.scanResult = academy.ScanResult{
		StudentID:           "7",
		StudentName:         "Jane Doe",
		RegistrationMessage: "Package expired on 2026-02-28",
	}
	mux := newTestMux(t, newTestApp(client))
	resolveTestClass(t, mux)
	postJSON(t, mux, "/api/scanning/start", map[string]string{})

	rec := postJSON(t, mux, "/api/scan", map[string]string{"token": "7:Jane Doe"})
	if rec.Code != http.StatusOK {
		t.Fatalf("scan: status %d, body %s", rec.Code, rec.Body.String())
	}
	var scanResp struct {
		Registered          bool   `json:"registered"`
		RegistrationMessage string `json:"registration_message"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&scanResp); err != nil {
		t.Fatalf("decode scan response: %v", err)
	}
	if scanResp.Registered {
		t.Error("expected registered = false to carry through")
	}
	if scanResp.RegistrationMessage != "Package expired on 2026-02-28" {
		t.Errorf("registration message = %q", scanResp.RegistrationMessage)
	}
}

// TestSetStatusWithoutClass tests that acting before a class is selected is
// answered as a bad request, not a gateway failure.
func TestSetStatusWithoutClass(t *testing.T) {
	mux := newTestMux(t, newTestApp(testAcademy()))

	rec := postJSON(t, mux, "/api/roster/status", map[string]string{"student_id": "7", "status": "present"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

// TestSetStatusRejection tests that a backend rejection surfaces as 422.
func TestSetStatusRejection(t *testing.T) {
	mux := newTestMux(t, newTestApp(testAcademy()))
	resolveTestClass(t, mux)

	rec := postJSON(t, mux, "/api/roster/status", map[string]string{"student_id": "999", "status": "present"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
}

// TestRosterSearchAndAnchor tests the filter and anchor query parameters.
func TestRosterSearchAndAnchor(t *testing.T) {
	mux := newTestMux(t, newTestApp(testAcademy()))
	resolveTestClass(t, mux)

	var result struct {
		Rows        []map[string]any `json:"rows"`
		Total       int              `json:"total"`
		AnchorIndex int              `json:"anchor_index"`
	}
	getJSON(t, mux, "/api/roster?search=jane&anchor=7", &result)
	if len(result.Rows) != 1 || result.Rows[0]["name"] != "Jane Doe" {
		t.Fatalf("rows = %+v", result.Rows)
	}
	if result.Total != 2 {
		t.Errorf("total = %d, want unfiltered count", result.Total)
	}
	if result.AnchorIndex != 0 {
		t.Errorf("anchor index = %d, want 0", result.AnchorIndex)
	}
}

// TestStopScanningIdempotent tests that stop never fails, even before start.
func TestStopScanningIdempotent(t *testing.T) {
	mux := newTestMux(t, newTestApp(testAcademy()))

	for i := 0; i < 2; i++ {
		rec := postJSON(t, mux, "/api/scanning/stop", map[string]string{})
		if rec.Code != http.StatusNoContent {
			t.Errorf("stop %d: status = %d, want 204", i, rec.Code)
		}
	}
}

// TestScanningRestartResetsDedup tests that stop and start let a seen token
// through again.
func TestScanningRestartResetsDedup(t *testing.T) {
	client := testAcademy()
	client.scanResult = academy.ScanResult{StudentID: "7", StudentName: "Jane Doe"}
	mux := newTestMux(t, newTestApp(client))
	resolveTestClass(t, mux)

	postJSON(t, mux, "/api/scanning/start", map[string]string{})
	postJSON(t, mux, "/api/scan", map[string]string{"token": "7:Jane Doe"})
	postJSON(t, mux, "/api/scanning/stop", map[string]string{})
	postJSON(t, mux, "/api/scanning/start", map[string]string{})

	rec := postJSON(t, mux, "/api/scan", map[string]string{"token": "7:Jane Doe"})
	var scanResp struct {
		Dropped bool `json:"dropped"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&scanResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if scanResp.Dropped {
		t.Error("a restarted session must accept a previously seen token")
	}
	if client.scans != 2 {
		t.Errorf("backend scans = %d, want 2", client.scans)
	}
}

// TestCancelClass tests that cancelling clears the device state.
func TestCancelClass(t *testing.T) {
	client := testAcademy()
	mux := newTestMux(t, newTestApp(client))
	resolveTestClass(t, mux)

	rec := postJSON(t, mux, "/api/class/cancel", map[string]string{})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("cancel: status %d", rec.Code)
	}
	if len(client.cancelled) != 1 || client.cancelled[0] != "42" {
		t.Errorf("cancelled = %v", client.cancelled)
	}

	var state struct {
		ClassID  string `json:"class_id"`
		Scanning bool   `json:"scanning"`
	}
	getJSON(t, mux, "/api/state", &state)
	if state.ClassID != "" || state.Scanning {
		t.Errorf("state = %+v, want cleared", state)
	}
}

// TestClassTypes tests the dropdown listing.
func TestClassTypes(t *testing.T) {
	client := testAcademy()
	client.classTypes = []academy.ClassType{{ID: "7", Name: "Junior Squad"}}
	mux := newTestMux(t, newTestApp(client))

	var types []map[string]any
	rec := getJSON(t, mux, "/api/class-types", &types)
	if rec.Code != http.StatusOK || len(types) != 1 {
		t.Fatalf("status %d, types %+v", rec.Code, types)
	}
}

// TestMethodNotAllowed tests the method guards on the API surface.
func TestMethodNotAllowed(t *testing.T) {
	mux := newTestMux(t, newTestApp(testAcademy()))

	rec := postJSON(t, mux, "/api/roster", map[string]string{})
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /api/roster: status = %d, want 405", rec.Code)
	}
	req := httptest.NewRequest("GET", "/api/scanning/start", nil)
	reqRec := httptest.NewRecorder()
	mux.ServeHTTP(reqRec, req)
	if reqRec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/scanning/start: status = %d, want 405", reqRec.Code)
	}
}
