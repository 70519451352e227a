package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"timetrack/internal/auth"
	"timetrack/internal/config"
	"timetrack/internal/queue"
	"timetrack/internal/store"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func testConfig() config.App {
	return config.App{
		Env:             "test",
		JWTIssuer:       "timetrack",
		JWTSigningKey:   "test-signing-key",
		AccessTTL:       time.Minute,
		RefreshTTL:      time.Hour,
		RecentScansMax:  10,
		RateLimitPerMin: 10000,
		AdminUser:       "admin",
		AdminPassword:   "admin-pass",
	}
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	db, err := store.Open("sqlite3", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	srv := NewServer(testConfig(), db, nil, queue.NewInMemory(16))
	if err := srv.SeedAdmin(context.Background()); err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	return srv.Router()
}

func doJSON(t *testing.T, r *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func login(t *testing.T, r *gin.Engine) string {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/v1/auth/login", "", gin.H{
		"username": "admin", "password": "admin-pass",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login status %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	if resp.AccessToken == "" {
		t.Fatal("empty access token")
	}
	return resp.AccessToken
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	r := newTestRouter(t)
	w := doJSON(t, r, http.MethodPost, "/v1/auth/login", "", gin.H{
		"username": "admin", "password": "wrong",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRoutesRequireAuth(t *testing.T) {
	r := newTestRouter(t)
	for _, path := range []string{"/v1/scans/recent", "/v1/students", "/v1/reports/daily", "/v1/counts"} {
		w := doJSON(t, r, http.MethodGet, path, "", nil)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", path, w.Code)
		}
	}
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	r := newTestRouter(t)
	pair, err := auth.Issue("viewer-1", "viewer", "timetrack", "test-signing-key", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	w := doJSON(t, r, http.MethodPost, "/v1/students", pair.AccessToken, gin.H{
		"student_id": "S1", "last_name": "Abad", "first_name": "Ana", "school": "Higher Education",
	})
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d: %s", w.Code, w.Body.String())
	}

	// The viewer token still reaches read-only routes.
	w = doJSON(t, r, http.MethodGet, "/v1/students", pair.AccessToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for list, got %d: %s", w.Code, w.Body.String())
	}
}

func TestScanFlow(t *testing.T) {
	r := newTestRouter(t)
	token := login(t, r)

	w := doJSON(t, r, http.MethodPost, "/v1/students", token, gin.H{
		"student_id": "S100", "last_name": "Reyes", "first_name": "Ana",
		"school": "Higher Education", "status": "active",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create student: %d: %s", w.Code, w.Body.String())
	}

	// First scan of the day checks in, the second checks out.
	w = doJSON(t, r, http.MethodPost, "/v1/scans", token, gin.H{"student_id": "S100"})
	if w.Code != http.StatusCreated {
		t.Fatalf("first scan: %d: %s", w.Code, w.Body.String())
	}
	var first struct {
		Record struct {
			Type string `json:"type"`
		} `json:"record"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &first); err != nil {
		t.Fatalf("decode scan: %v", err)
	}
	if first.Record.Type != "in" {
		t.Fatalf("first scan type = %q, want in", first.Record.Type)
	}

	w = doJSON(t, r, http.MethodPost, "/v1/scans", token, gin.H{"student_id": "S100"})
	if w.Code != http.StatusCreated {
		t.Fatalf("second scan: %d: %s", w.Code, w.Body.String())
	}
	var second struct {
		Record struct {
			Type string `json:"type"`
		} `json:"record"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &second); err != nil {
		t.Fatalf("decode scan: %v", err)
	}
	if second.Record.Type != "out" {
		t.Fatalf("second scan type = %q, want out", second.Record.Type)
	}
}

func TestScanUnknownAndInactive(t *testing.T) {
	r := newTestRouter(t)
	token := login(t, r)

	w := doJSON(t, r, http.MethodPost, "/v1/scans", token, gin.H{"student_id": "NOPE"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown student: expected 404, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/v1/students", token, gin.H{
		"student_id": "S200", "last_name": "Cruz", "first_name": "Ben",
		"school": "Basic Education", "status": "inactive",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create student: %d: %s", w.Code, w.Body.String())
	}
	w = doJSON(t, r, http.MethodPost, "/v1/scans", token, gin.H{"student_id": "S200"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("inactive student: expected 403, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCreateStudentValidationAndConflict(t *testing.T) {
	r := newTestRouter(t)
	token := login(t, r)

	w := doJSON(t, r, http.MethodPost, "/v1/students", token, gin.H{
		"student_id": "S1", "last_name": "Abad", "first_name": "Ana", "school": "Night School",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad school: expected 400, got %d: %s", w.Code, w.Body.String())
	}

	body := gin.H{"student_id": "S1", "last_name": "Abad", "first_name": "Ana", "school": "Higher Education"}
	if w := doJSON(t, r, http.MethodPost, "/v1/students", token, body); w.Code != http.StatusCreated {
		t.Fatalf("create: %d: %s", w.Code, w.Body.String())
	}
	if w := doJSON(t, r, http.MethodPost, "/v1/students", token, body); w.Code != http.StatusConflict {
		t.Fatalf("duplicate: expected 409, got %d: %s", w.Code, w.Body.String())
	}
}

func TestDailyReportAndCounts(t *testing.T) {
	r := newTestRouter(t)
	token := login(t, r)

	w := doJSON(t, r, http.MethodPost, "/v1/students", token, gin.H{
		"student_id": "S1", "last_name": "Abad", "first_name": "Ana", "school": "Higher Education",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create student: %d: %s", w.Code, w.Body.String())
	}
	if w := doJSON(t, r, http.MethodPost, "/v1/scans", token, gin.H{"student_id": "S1"}); w.Code != http.StatusCreated {
		t.Fatalf("scan: %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodGet, "/v1/reports/daily?school=Higher%20Education", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("report: %d: %s", w.Code, w.Body.String())
	}
	var report struct {
		Entries []struct {
			StudentID string `json:"student_id"`
			TotalTime string `json:"total_time"`
		} `json:"entries"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if len(report.Entries) != 1 || report.Entries[0].TotalTime != "0h 0m" {
		t.Fatalf("unexpected entries: %+v", report.Entries)
	}

	w = doJSON(t, r, http.MethodGet, "/v1/reports/daily?school=Unknown", token, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad school report: expected 400, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/v1/counts", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("counts: %d: %s", w.Code, w.Body.String())
	}
	var counts map[string]int
	if err := json.Unmarshal(w.Body.Bytes(), &counts); err != nil {
		t.Fatalf("decode counts: %v", err)
	}
	if counts["students"] != 1 || counts["time_records"] != 1 {
		t.Fatalf("unexpected counts: %+v", counts)
	}
}

func TestBatchEndpoints(t *testing.T) {
	r := newTestRouter(t)
	token := login(t, r)

	w := doJSON(t, r, http.MethodPost, "/v1/batch/backfill-school", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("backfill: %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodPost, "/v1/batch/semester-rollover", token, gin.H{
		"from_semester": "1st Semester", "to_semester": "2nd Semester", "school": "Higher Education",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("rollover: %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodDelete, "/v1/batch/records/range?start=bad&end=2026-01-31", token, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad range: expected 400, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodDelete, "/v1/batch/records", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("purge all: %d: %s", w.Code, w.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	r := newTestRouter(t)
	w := doJSON(t, r, http.MethodGet, "/healthz", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("healthz: %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		DB    bool `json:"db"`
		Redis bool `json:"redis"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode healthz: %v", err)
	}
	if !resp.DB {
		t.Fatal("expected db healthy")
	}
	if resp.Redis {
		t.Fatal("redis is not configured in tests")
	}
}
