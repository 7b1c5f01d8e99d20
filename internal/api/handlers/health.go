// health.go — обработчики health endpoints для Kubernetes probes.
package handlers

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/kardo-digital/kardo-backend/internal/config"
	"github.com/kardo-digital/kardo-backend/internal/storage/recordstore"
)

// statusFail — строковая константа для статуса "fail" в health checks.
const statusFail = "fail"

// HealthHandler реализует health endpoints: /health/live, /health/ready.
type HealthHandler struct {
	version string
	// dataDir — путь к контент-директории (для проверки FS)
	dataDir string
	// store — хранилище записей (для проверки читаемости db.json)
	store *recordstore.Store
}

// NewHealthHandler создаёт обработчик health endpoints.
func NewHealthHandler(dataDir string, store *recordstore.Store) *HealthHandler {
	return &HealthHandler{
		version: config.Version,
		dataDir: dataDir,
		store:   store,
	}
}

// HealthLive обрабатывает GET /health/live.
// Возвращает 200, если процесс жив. Не проверяет зависимости.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   "kardo-backend",
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

// HealthReady обрабатывает GET /health/ready.
// Проверяет: запись в контент-директорию, читаемость db.json.
func (h *HealthHandler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	overallStatus := "ok"
	httpStatus := http.StatusOK

	fsCheck := h.checkFilesystem()
	if fsCheck["status"] != "ok" {
		overallStatus = statusFail
		httpStatus = http.StatusServiceUnavailable
	}

	storeCheck := h.checkStore()
	if storeCheck["status"] != "ok" {
		overallStatus = statusFail
		httpStatus = http.StatusServiceUnavailable
	}

	resp := map[string]any{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks": map[string]any{
			"filesystem": fsCheck,
			"store":      storeCheck,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(resp)
}

// checkFilesystem проверяет возможность записи в контент-директорию.
func (h *HealthHandler) checkFilesystem() map[string]any {
	probe := filepath.Join(h.dataDir, ".health_probe")

	if err := os.WriteFile(probe, []byte("ok"), 0o640); err != nil {
		return map[string]any{
			"status": statusFail,
			"error":  err.Error(),
		}
	}
	_ = os.Remove(probe)

	return map[string]any{"status": "ok"}
}

// checkStore проверяет, что db.json читается и парсится.
func (h *HealthHandler) checkStore() map[string]any {
	doc, err := h.store.Load()
	if err != nil {
		return map[string]any{
			"status": statusFail,
			"error":  err.Error(),
		}
	}

	return map[string]any{
		"status":   "ok",
		"projects": len(doc.Projects),
		"reports":  len(doc.Reports),
	}
}
