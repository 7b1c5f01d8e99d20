// recover.go — middleware перехвата паник в обработчиках.
// Паника превращается в 500 в стандартном формате ошибок
// с локализованным сообщением; стек пишется в лог.
package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	apierrors "github.com/kardo-digital/kardo-backend/internal/api/errors"
	"github.com/kardo-digital/kardo-backend/internal/i18n"
)

// Recoverer возвращает middleware, перехватывающий панику обработчика.
func Recoverer(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.Error("Паника при обработке запроса",
						slog.Any("panic", rec),
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
						slog.String("stack", string(debug.Stack())),
					)
					apierrors.InternalError(w, i18n.T(r.Context(), "error.internal"))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
