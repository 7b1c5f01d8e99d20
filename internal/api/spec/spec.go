// Пакет spec — встроенный OpenAPI контракт kardo-backend.
// Контракт валидируется при старте (битый YAML не доезжает до
// продакшена) и отдаётся клиентам на GET /openapi.json.
package spec

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var specFS embed.FS

var (
	loadOnce sync.Once
	doc      *openapi3.T
	loadErr  error
)

// Load парсит и валидирует встроенный OpenAPI документ.
// Повторные вызовы возвращают закэшированный результат.
func Load(ctx context.Context) (*openapi3.T, error) {
	loadOnce.Do(func() {
		data, err := specFS.ReadFile("openapi.yaml")
		if err != nil {
			loadErr = fmt.Errorf("чтение встроенного openapi.yaml: %w", err)
			return
		}

		loader := openapi3.NewLoader()
		doc, loadErr = loader.LoadFromData(data)
		if loadErr != nil {
			loadErr = fmt.Errorf("парсинг OpenAPI документа: %w", loadErr)
			return
		}

		if err := doc.Validate(ctx); err != nil {
			doc = nil
			loadErr = fmt.Errorf("валидация OpenAPI документа: %w", err)
		}
	})
	return doc, loadErr
}

// Handler возвращает HTTP handler для GET /openapi.json.
func Handler() (http.HandlerFunc, error) {
	document, err := Load(context.Background())
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(document)
	if err != nil {
		return nil, fmt.Errorf("сериализация OpenAPI документа: %w", err)
	}

	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}, nil
}
