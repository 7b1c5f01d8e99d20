package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/kardo-digital/kardo-backend/internal/storage/recordstore"
)

func newHealthEnv(t *testing.T) (*HealthHandler, string, *recordstore.Store) {
	t.Helper()

	dir := t.TempDir()
	dataDir := filepath.Join(dir, "content")
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		t.Fatal(err)
	}
	store, err := recordstore.New(filepath.Join(dir, "db.json"), testLogger())
	if err != nil {
		t.Fatal(err)
	}

	return NewHealthHandler(dataDir, store), dataDir, store
}

// TestHealthLive проверяет liveness probe.
func TestHealthLive(t *testing.T) {
	h, _, _ := newHealthEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec := httptest.NewRecorder()
	h.HealthLive(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("ожидался 200, получен %d", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["status"] != "ok" {
		t.Errorf("status = %v", resp["status"])
	}
	if resp["service"] != "kardo-backend" {
		t.Errorf("service = %v", resp["service"])
	}
}

// TestHealthReady_OK проверяет readiness при исправных FS и хранилище.
func TestHealthReady_OK(t *testing.T) {
	h, _, _ := newHealthEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()
	h.HealthReady(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("ожидался 200, получен %d: %s", rec.Code, rec.Body.String())
	}
}

// TestHealthReady_BrokenStore проверяет 503 при нечитаемом db.json.
func TestHealthReady_BrokenStore(t *testing.T) {
	h, _, store := newHealthEnv(t)

	if err := os.WriteFile(store.Path(), []byte("{broken"), 0o640); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()
	h.HealthReady(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("ожидался 503, получен %d", rec.Code)
	}

	var resp struct {
		Status string `json:"status"`
		Checks map[string]struct {
			Status string `json:"status"`
		} `json:"checks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "fail" {
		t.Errorf("status = %q", resp.Status)
	}
	if resp.Checks["store"].Status != "fail" {
		t.Errorf("checks.store = %q", resp.Checks["store"].Status)
	}
}
