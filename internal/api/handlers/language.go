// language.go — страница выбора языка и установка cookie.
// Сюда внешняя система входа ведёт пользователя после отказа в доступе.
package handlers

import (
	"net/http"
	"time"

	"github.com/kardo-digital/kardo-backend/internal/i18n"
	"github.com/kardo-digital/kardo-backend/internal/web"
)

// LanguageHandler — обработчик страницы выбора языка.
type LanguageHandler struct{}

// NewLanguageHandler создаёт обработчик страницы выбора языка.
func NewLanguageHandler() *LanguageHandler {
	return &LanguageHandler{}
}

// Page обрабатывает GET /language.html — отдаёт встроенную статическую
// страницу выбора языка.
func (h *LanguageHandler) Page(w http.ResponseWriter, r *http.Request) {
	data, err := web.LanguagePage()
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// SetLanguage обрабатывает POST /language.
// Устанавливает cookie "lang" и перенаправляет обратно.
// Параметр lang: "ku" или "en" (из query или form).
func (h *LanguageHandler) SetLanguage(w http.ResponseWriter, r *http.Request) {
	lang := r.FormValue("lang")
	if lang == "" {
		lang = r.URL.Query().Get("lang")
	}

	// Валидация: только поддерживаемые языки
	if !i18n.IsSupported(lang) {
		lang = "ku"
	}

	// Устанавливаем cookie "lang" на 1 год
	http.SetCookie(w, &http.Cookie{
		Name:     i18n.LangCookieName,
		Value:    lang,
		Path:     "/",
		MaxAge:   365 * 24 * 60 * 60, // 1 год
		HttpOnly: false,              // JS может читать для UI-логики
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(365 * 24 * time.Hour),
	})

	// Redirect обратно на предыдущую страницу (Referer) или на /language.html
	referer := r.Header.Get("Referer")
	if referer == "" {
		referer = "/language.html"
	}

	http.Redirect(w, r, referer, http.StatusSeeOther)
}
