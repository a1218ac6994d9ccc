package academy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultTimeout bounds every request to the academy API. The upstream
// service applies no deadline of its own, so a stalled request would
// otherwise hang the scanning flow indefinitely.
const DefaultTimeout = 10 * time.Second

// HTTPClient talks JSON to the academy API over HTTP.
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

// NewHTTPClient creates a client for the academy API.
// PRE: baseURL points at the API root (e.g. "https://api.academy.example/api")
// POST: Returns a ready-to-use client with the given per-request timeout
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// apiError is the backend's structured rejection body.
type apiError struct {
	Detail  string `json:"detail"`
	Message string `json:"message"`
}

// ScanAttendance resolves a decoded payload and marks attendance in one call.
// PRE: req.Token and req.ClassID are non-empty; req.Status is present or late
// POST: Returns the resolved student and whether they were already marked
func (c *HTTPClient) ScanAttendance(ctx context.Context, req ScanRequest) (ScanResult, error) {
	classID, err := wireID(req.ClassID)
	if err != nil {
		return ScanResult{}, &RejectionError{Message: "invalid class ID"}
	}

	body := struct {
		QRData  string `json:"qr_data"`
		ClassID int64  `json:"class_id"`
		Status  string `json:"status"`
	}{QRData: req.Token, ClassID: classID, Status: req.Status}

	var resp struct {
		Success             bool   `json:"success"`
		Message             string `json:"message"`
		UserID              int64  `json:"user_id"`
		UserName            string `json:"user_name"`
		AlreadyPresent      bool   `json:"already_present"`
		IsRegistered        *bool  `json:"is_registered"`
		RegistrationMessage string `json:"registration_message"`
		CheckedInAt         string `json:"checked_in_at"`
	}
	if err := c.do(ctx, http.MethodPost, "/attendance/scan", body, &resp); err != nil {
		return ScanResult{}, err
	}
	// A repeat scan comes back with success=false but already_present=true.
	// That is a normal outcome, not a rejection.
	if !resp.Success && !resp.AlreadyPresent {
		return ScanResult{}, &RejectionError{Message: rejectionMessage(resp.Message)}
	}

	result := ScanResult{
		StudentName:         resp.UserName,
		AlreadyPresent:      resp.AlreadyPresent,
		IsRegistered:        resp.IsRegistered == nil || *resp.IsRegistered,
		RegistrationMessage: resp.RegistrationMessage,
		CheckedInAt:         parseWireTime(resp.CheckedInAt),
	}
	if resp.UserID != 0 {
		result.StudentID = strconv.FormatInt(resp.UserID, 10)
	} else if id, _, ok := strings.Cut(req.Token, ":"); ok {
		// The already-present answer omits user_id; recover it from the
		// token, which the backend parses as "user_id:user_name".
		result.StudentID = id
	}
	return result, nil
}

// MarkAttendance sets a student's status without a scan.
// PRE: classID and studentID are non-empty; status is present, late or missing
func (c *HTTPClient) MarkAttendance(ctx context.Context, classID, studentID, status string) (MarkResult, error) {
	cID, err := wireID(classID)
	if err != nil {
		return MarkResult{}, &RejectionError{Message: "invalid class ID"}
	}
	sID, err := wireID(studentID)
	if err != nil {
		return MarkResult{}, &RejectionError{Message: "invalid student ID"}
	}

	q := url.Values{}
	q.Set("class_id", strconv.FormatInt(cID, 10))
	q.Set("user_id", strconv.FormatInt(sID, 10))
	q.Set("status", status)

	var resp struct {
		UserName    string `json:"user_name"`
		CheckedInAt string `json:"checked_in_at"`
	}
	if err := c.do(ctx, http.MethodPost, "/attendance/mark?"+q.Encode(), nil, &resp); err != nil {
		return MarkResult{}, err
	}
	return MarkResult{StudentName: resp.UserName, CheckedInAt: parseWireTime(resp.CheckedInAt)}, nil
}

// UnmarkAttendance deletes a student's attendance record for the class,
// reverting them to unchecked.
func (c *HTTPClient) UnmarkAttendance(ctx context.Context, classID, studentID string) error {
	cID, err := wireID(classID)
	if err != nil {
		return &RejectionError{Message: "invalid class ID"}
	}
	sID, err := wireID(studentID)
	if err != nil {
		return &RejectionError{Message: "invalid student ID"}
	}
	path := fmt.Sprintf("/attendance/%d/%d", cID, sID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// ComprehensiveRoster fetches every enrolled student with their current
// status for the class. Rows without an attendance record come back with a
// placeholder status; they are surfaced as unmarked.
func (c *HTTPClient) ComprehensiveRoster(ctx context.Context, classID string) ([]RosterRow, error) {
	cID, err := wireID(classID)
	if err != nil {
		return nil, &RejectionError{Message: "invalid class ID"}
	}

	var resp []struct {
		UserID       int64  `json:"user_id"`
		Name         string `json:"name"`
		Email        string `json:"email"`
		Status       string `json:"status"`
		CheckedInAt  string `json:"checked_in_at"`
		AttendanceID *int64 `json:"attendance_id"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/attendance/comprehensive/%d", cID), nil, &resp); err != nil {
		return nil, err
	}

	rows := make([]RosterRow, 0, len(resp))
	for _, r := range resp {
		rows = append(rows, RosterRow{
			StudentID:   strconv.FormatInt(r.UserID, 10),
			Name:        r.Name,
			Email:       r.Email,
			Status:      r.Status,
			CheckedInAt: parseWireTime(r.CheckedInAt),
			Marked:      r.AttendanceID != nil,
		})
	}
	return rows, nil
}

// ResolveClassByType resolves (date, class type) to a class record, creating
// it server-side when it does not exist yet.
func (c *HTTPClient) ResolveClassByType(ctx context.Context, date, classTypeID string) (ClassInfo, error) {
	tID, err := wireID(classTypeID)
	if err != nil {
		return ClassInfo{}, &RejectionError{Message: "invalid class type ID"}
	}

	body := struct {
		Date        string `json:"date"`
		ClassTypeID int64  `json:"class_type_id"`
	}{Date: date, ClassTypeID: tID}

	var resp struct {
		ID          int64  `json:"id"`
		ClassTypeID int64  `json:"class_type_id"`
		Date        string `json:"date"`
	}
	if err := c.do(ctx, http.MethodPost, "/classes/by_type", body, &resp); err != nil {
		return ClassInfo{}, err
	}
	return ClassInfo{
		ID:          strconv.FormatInt(resp.ID, 10),
		ClassTypeID: strconv.FormatInt(resp.ClassTypeID, 10),
		Date:        resp.Date,
	}, nil
}

// ListClassTypes fetches the selectable class categories.
func (c *HTTPClient) ListClassTypes(ctx context.Context) ([]ClassType, error) {
	var resp []struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}
	if err := c.do(ctx, http.MethodGet, "/class_types", nil, &resp); err != nil {
		return nil, err
	}
	types := make([]ClassType, 0, len(resp))
	for _, t := range resp {
		types = append(types, ClassType{ID: strconv.FormatInt(t.ID, 10), Name: t.Name})
	}
	return types, nil
}

// CancelClass cancels a class. Notifying enrolled students is the backend's
// job.
func (c *HTTPClient) CancelClass(ctx context.Context, classID string) error {
	cID, err := wireID(classID)
	if err != nil {
		return &RejectionError{Message: "invalid class ID"}
	}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/cancel_class/%d", cID), nil, nil)
}

// do issues one JSON request and decodes the response into out (when non-nil).
// Non-2xx responses with a structured body become RejectionErrors; everything
// else is a transport failure.
func (c *HTTPClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("academy api: encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("academy api: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("academy api: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("academy api: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var rejection apiError
		if jsonErr := json.Unmarshal(raw, &rejection); jsonErr == nil && (rejection.Detail != "" || rejection.Message != "") {
			msg := rejection.Detail
			if msg == "" {
				msg = rejection.Message
			}
			slog.Warn("academy_api_rejected", "method", method, "path", path, "status", resp.StatusCode, "message", msg)
			return &RejectionError{Message: msg}
		}
		slog.Error("academy_api_failed", "method", method, "path", path, "status", resp.StatusCode)
		return fmt.Errorf("academy api: %s %s: unexpected status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("academy api: decode response: %w", err)
	}
	return nil
}

// wireID converts a domain ID string to the numeric form the API speaks.
func wireID(id string) (int64, error) {
	return strconv.ParseInt(id, 10, 64)
}

// parseWireTime parses the API's RFC3339 timestamps, returning zero for
// missing or malformed values.
func parseWireTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func rejectionMessage(msg string) string {
	if msg == "" {
		return "attendance was rejected"
	}
	return msg
}
