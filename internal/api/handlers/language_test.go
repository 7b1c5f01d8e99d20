package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kardo-digital/kardo-backend/internal/i18n"
)

// TestLanguagePage проверяет отдачу страницы выбора языка.
func TestLanguagePage(t *testing.T) {
	h := NewLanguageHandler()

	req := httptest.NewRequest(http.MethodGet, "/language.html", nil)
	rec := httptest.NewRecorder()
	h.Page(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("ожидался 200, получен %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "کوردی") {
		t.Error("страница не содержит курдского варианта")
	}
	if !strings.Contains(rec.Body.String(), "English") {
		t.Error("страница не содержит английского варианта")
	}
}

// TestSetLanguage проверяет установку cookie и redirect.
func TestSetLanguage(t *testing.T) {
	h := NewLanguageHandler()

	req := httptest.NewRequest(http.MethodPost, "/language?lang=en", nil)
	req.Header.Set("Referer", "/language.html")
	rec := httptest.NewRecorder()
	h.SetLanguage(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("ожидался 303, получен %d", rec.Code)
	}

	cookies := rec.Result().Cookies()
	var found bool
	for _, c := range cookies {
		if c.Name == i18n.LangCookieName {
			found = true
			if c.Value != "en" {
				t.Errorf("cookie lang = %q, ожидалось en", c.Value)
			}
		}
	}
	if !found {
		t.Error("cookie lang не установлена")
	}

	if loc := rec.Header().Get("Location"); loc != "/language.html" {
		t.Errorf("Location = %q", loc)
	}
}

// TestSetLanguage_InvalidFallsBack проверяет fallback на ku для
// неподдерживаемого значения.
func TestSetLanguage_InvalidFallsBack(t *testing.T) {
	h := NewLanguageHandler()

	req := httptest.NewRequest(http.MethodPost, "/language?lang=de", nil)
	rec := httptest.NewRecorder()
	h.SetLanguage(rec, req)

	for _, c := range rec.Result().Cookies() {
		if c.Name == i18n.LangCookieName && c.Value != "ku" {
			t.Errorf("cookie lang = %q, ожидалось ku", c.Value)
		}
	}
}
