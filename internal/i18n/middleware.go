// middleware.go — HTTP middleware для определения языка пользователя.
// Приоритет: cookie "lang" → заголовок Accept-Language → default из конфигурации.
package i18n

import (
	"net/http"
)

// Middleware создаёт HTTP middleware, определяющий язык запроса и
// помещающий его вместе с bundle в контекст.
// defaultLang используется, когда ни cookie, ни Accept-Language
// не дали поддерживаемого языка.
func Middleware(bundle *Bundle, defaultLang string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lang := detectLanguage(r, defaultLang)
			ctx := WithLang(r.Context(), bundle, lang)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// detectLanguage определяет язык из запроса.
// Приоритет: cookie "lang" → Accept-Language → defaultLang.
func detectLanguage(r *http.Request, defaultLang string) string {
	// 1. Cookie "lang" (пользователь явно выбрал язык на language.html)
	if cookie, err := r.Cookie(LangCookieName); err == nil && cookie.Value != "" {
		if IsSupported(cookie.Value) {
			return cookie.Value
		}
	}

	// 2. Accept-Language заголовок
	if accept := r.Header.Get("Accept-Language"); accept != "" {
		return MatchLanguage(accept)
	}

	// 3. Default
	return defaultLang
}
