package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"courtside/internal/adapters/academy"
	"courtside/internal/application/orchestrators"
	"courtside/internal/application/projections"
	"courtside/internal/domain/class"
	"courtside/internal/domain/roster"
	"courtside/internal/domain/scan"
)

// registerRoutes wires the portal's JSON API.
func registerRoutes(mux *http.ServeMux, app *App) {
	mux.HandleFunc("/api/class-types", app.handleClassTypes)
	mux.HandleFunc("/api/class/resolve", app.handleResolveClass)
	mux.HandleFunc("/api/class/cancel", app.handleCancelClass)
	mux.HandleFunc("/api/roster", app.handleRoster)
	mux.HandleFunc("/api/roster/refresh", app.handleRefreshRoster)
	mux.HandleFunc("/api/roster/status", app.handleSetStatus)
	mux.HandleFunc("/api/scanning/start", app.handleStartScanning)
	mux.HandleFunc("/api/scanning/stop", app.handleStopScanning)
	mux.HandleFunc("/api/scan", app.handleScan)
	mux.HandleFunc("/api/notices", app.handleNotices)
	mux.HandleFunc("/api/journal", app.handleJournal)
	mux.HandleFunc("/api/state", app.handleState)
}

// internalError logs the real error and returns a generic message to the client.
// This prevents leaking internal details per OWASP A05.
func internalError(w http.ResponseWriter, err error) {
	slog.Error("internal_error", "error", err.Error())
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

// strictDecode decodes JSON from the request body, rejecting unknown fields.
func strictDecode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response_encode_failed", "error", err.Error())
	}
}

// apiError maps an orchestrator error to an HTTP answer: bad input and
// rejections are the user's problem, everything else is the network's or ours.
func apiError(w http.ResponseWriter, err error) {
	if orchestrators.IsInvalidInput(err) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if academy.IsRejection(err) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return
	}
	if errors.Is(err, orchestrators.ErrStudentBusy) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
}

// currentState snapshots the mutable device state under the app lock.
func (a *App) currentState() (class.Context, *scan.Session, roster.Status) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.class, a.session, a.scanStatus
}

// handleClassTypes handles GET /api/class-types
func (a *App) handleClassTypes(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	result, err := projections.QueryGetClassTypes(r.Context(), projections.GetClassTypesDeps{Academy: a.Academy})
	if err != nil {
		apiError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result.Types)
}

// handleResolveClass handles POST /api/class/resolve: picks the class the
// device takes attendance for and loads its roster.
func (a *App) handleResolveClass(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var input struct {
		ClassTypeID string `json:"class_type_id"`
		PackageID   string `json:"package_id"`
		Date        string `json:"date"`
	}
	if err := strictDecode(r, &input); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	resolved, err := orchestrators.ExecuteResolveClass(r.Context(), orchestrators.ResolveClassInput{
		ClassTypeID: input.ClassTypeID,
		PackageID:   input.PackageID,
		Date:        input.Date,
	}, orchestrators.ResolveClassDeps{Academy: a.Academy})
	if err != nil {
		apiError(w, err)
		return
	}

	// Selecting a class ends any scanning for the previous one.
	a.mu.Lock()
	previous := a.session
	a.class = resolved.Class
	a.session = nil
	a.mu.Unlock()
	orchestrators.ExecuteStopScanning(orchestrators.StopScanningDeps{Camera: a.Camera, Session: previous})

	loaded, err := orchestrators.ExecuteLoadRoster(r.Context(), orchestrators.LoadRosterInput{Class: resolved.Class}, orchestrators.LoadRosterDeps{
		Academy: a.Academy,
		Roster:  a.Roster,
	})
	if err != nil {
		apiError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"class_id": resolved.Class.ClassID,
		"date":     resolved.Class.Date,
		"students": loaded.Students,
	})
}

// handleCancelClass handles POST /api/class/cancel
func (a *App) handleCancelClass(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	cls, session, _ := a.currentState()
	err := orchestrators.ExecuteCancelClass(r.Context(), orchestrators.CancelClassInput{Class: cls}, orchestrators.CancelClassDeps{
		Academy: a.Academy,
		Camera:  a.Camera,
		Session: session,
		Roster:  a.Roster,
	})
	if err != nil {
		apiError(w, err)
		return
	}

	a.mu.Lock()
	a.class = class.Context{}
	a.session = nil
	a.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

// handleRoster handles GET /api/roster?search=&anchor=
func (a *App) handleRoster(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	result := projections.QueryGetRosterView(projections.GetRosterViewQuery{
		Search: r.URL.Query().Get("search"),
		Anchor: r.URL.Query().Get("anchor"),
	}, projections.GetRosterViewDeps{Roster: a.Roster})

	rows := make([]map[string]any, 0, len(result.Rows))
	for _, row := range result.Rows {
		item := map[string]any{
			"student_id":      row.StudentID,
			"name":            row.Name,
			"email":           row.Email,
			"status":          row.Status,
			"label":           row.Label,
			"already_present": row.AlreadyPresent,
		}
		if !row.CheckedInAt.IsZero() {
			item["checked_in_at"] = row.CheckedInAt.Format(time.RFC3339)
		}
		rows = append(rows, item)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"rows":         rows,
		"total":        result.Total,
		"anchor_index": result.AnchorIndex,
	})
}

// handleRefreshRoster handles POST /api/roster/refresh: refetches server
// truth for the selected class.
func (a *App) handleRefreshRoster(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	cls, _, _ := a.currentState()
	result, err := orchestrators.ExecuteLoadRoster(r.Context(), orchestrators.LoadRosterInput{Class: cls}, orchestrators.LoadRosterDeps{
		Academy: a.Academy,
		Roster:  a.Roster,
	})
	if err != nil {
		apiError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"students": result.Students})
}

// handleSetStatus handles POST /api/roster/status: the manual status buttons
// on a roster row. Status "unchecked" unmarks the student.
func (a *App) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var input struct {
		StudentID string `json:"student_id"`
		Status    string `json:"status"`
	}
	if err := strictDecode(r, &input); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	cls, session, _ := a.currentState()
	result, err := orchestrators.ExecuteSetStatus(r.Context(), orchestrators.SetStatusInput{
		StudentID: input.StudentID,
		Status:    roster.Status(input.Status),
	}, orchestrators.SetStatusDeps{
		Class:      cls,
		Academy:    a.Academy,
		Roster:     a.Roster,
		Session:    session,
		Journal:    a.Journal,
		Notices:    a.Notices,
		Now:        a.Now,
		GenerateID: a.GenerateID,
	})
	if err != nil {
		apiError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"student_id":   input.StudentID,
		"student_name": result.StudentName,
		"status":       string(result.Status),
	})
}

// handleStartScanning handles POST /api/scanning/start. The optional status
// field picks what scans mark (present or late) until scanning stops.
func (a *App) handleStartScanning(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var input struct {
		Status          string `json:"status"`
		PreferredFacing string `json:"preferred_facing"`
	}
	if err := strictDecode(r, &input); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	status := roster.StatusPresent
	if input.Status != "" {
		status = roster.Status(input.Status)
		if status != roster.StatusPresent && status != roster.StatusLate {
			http.Error(w, "scans can only mark present or late", http.StatusBadRequest)
			return
		}
	}

	a.mu.Lock()
	cls := a.class
	previous := a.session
	a.scanStatus = status
	a.mu.Unlock()

	result, err := orchestrators.ExecuteStartScanning(r.Context(), orchestrators.StartScanningInput{
		Class:           cls,
		PreferredFacing: input.PreferredFacing,
	}, orchestrators.StartScanningDeps{
		Camera:     a.Camera,
		Previous:   previous,
		GenerateID: a.GenerateID,
		HandleDecode: func(session *scan.Session, token string) {
			a.recordScan(session, token)
		},
	})
	if err != nil {
		apiError(w, err)
		return
	}

	a.mu.Lock()
	a.session = result.Session
	a.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": result.Session.ID,
		"status":     string(status),
	})
}

// handleStopScanning handles POST /api/scanning/stop
func (a *App) handleStopScanning(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	_, session, _ := a.currentState()
	orchestrators.ExecuteStopScanning(orchestrators.StopScanningDeps{Camera: a.Camera, Session: session})
	w.WriteHeader(http.StatusNoContent)
}

// handleScan handles POST /api/scan: a QR payload decoded by the browser
// rather than the device camera. Both paths funnel into the same gate.
func (a *App) handleScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var input struct {
		Token string `json:"token"`
	}
	if err := strictDecode(r, &input); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	_, session, _ := a.currentState()
	if session == nil || session.Closed() {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "scanning is not active"})
		return
	}

	result, err := a.executeScan(session, input.Token)
	if err != nil {
		apiError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"dropped":              result.Dropped,
		"stale":                result.Stale,
		"already_present":      result.AlreadyPresent,
		"student_id":           result.StudentID,
		"student_name":         result.StudentName,
		"status":               string(result.Status),
		"registered":           result.Registered,
		"registration_message": result.RegistrationMessage,
	})
}

// recordScan is the camera decode callback. The decode loop stays live while
// the network round trip runs on its own goroutine; the session gate makes
// sure one payload produces at most one request.
func (a *App) recordScan(session *scan.Session, token string) {
	go func() {
		if _, err := a.executeScan(session, token); err != nil {
			slog.Warn("scan_event", "event", "scan_error", "error", err.Error())
		}
	}()
}

func (a *App) executeScan(session *scan.Session, token string) (orchestrators.RecordScanResult, error) {
	// Camera decodes arrive outside any request, so the round trip carries
	// its own context.
	cls, _, status := a.currentState()
	return orchestrators.ExecuteRecordScan(context.Background(), orchestrators.RecordScanInput{
		Token:         token,
		DesiredStatus: status,
	}, orchestrators.RecordScanDeps{
		Session:    session,
		Class:      cls,
		Academy:    a.Academy,
		Roster:     a.Roster,
		Journal:    a.Journal,
		Notices:    a.Notices,
		Now:        a.Now,
		GenerateID: a.GenerateID,
	})
}

// handleNotices handles GET /api/notices: the transient success messages the
// page polls for.
func (a *App) handleNotices(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	active := a.Notices.Active(a.Now())
	out := make([]map[string]any, 0, len(active))
	for _, n := range active {
		out = append(out, map[string]any{
			"id":      n.ID,
			"message": n.Message(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleJournal handles GET /api/journal?limit=
func (a *App) handleJournal(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if a.Journal == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	cls, _, _ := a.currentState()

	result, err := projections.QueryGetScanHistory(r.Context(), projections.GetScanHistoryQuery{
		ClassID: cls.ClassID,
		Limit:   limit,
	}, projections.GetScanHistoryDeps{JournalStore: a.Journal})
	if err != nil {
		internalError(w, err)
		return
	}

	out := make([]map[string]any, 0, len(result.Rows))
	for _, row := range result.Rows {
		out = append(out, map[string]any{
			"student_id":   row.StudentID,
			"student_name": row.StudentName,
			"status":       row.Status,
			"outcome":      row.Outcome,
			"recorded_at":  row.RecordedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleState handles GET /api/state: what the page needs to restore itself
// after a reload.
func (a *App) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	cls, session, status := a.currentState()
	scanning := session != nil && !session.Closed()
	writeJSON(w, http.StatusOK, map[string]any{
		"class_id":    cls.ClassID,
		"date":        cls.Date,
		"scanning":    scanning,
		"scan_status": string(status),
	})
}
