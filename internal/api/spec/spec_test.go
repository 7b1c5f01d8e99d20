package spec

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// TestLoad проверяет, что встроенный OpenAPI документ валиден.
func TestLoad(t *testing.T) {
	doc, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if doc.Info.Title == "" {
		t.Error("пустой заголовок документа")
	}

	// Ключевые пути контракта присутствуют
	for _, path := range []string{"/{type}", "/health/live", "/health/ready", "/metrics", "/language.html", "/openapi.json"} {
		if doc.Paths.Find(path) == nil {
			t.Errorf("путь %s отсутствует в контракте", path)
		}
	}
}

// TestHandler проверяет отдачу документа на /openapi.json.
func TestHandler(t *testing.T) {
	handler, err := Handler()
	if err != nil {
		t.Fatalf("Handler: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/openapi.json", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("ожидался 200, получен %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("ответ не JSON: %v", err)
	}
	if body["openapi"] == "" {
		t.Error("поле openapi отсутствует")
	}
}
