// Пакет i18n — локализация пользовательских сообщений kardo-backend.
// Предоставляет функции T(ctx, key) и Tf(ctx, key, args...) для получения
// переведённых строк из контекста HTTP-запроса.
// Поддерживаемые языки: Kurdî Sorani (ku), English (en).
// Язык определяется middleware: cookie "lang" → Accept-Language → default.
package i18n

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/text/language"
)

// Поддерживаемые языки
var (
	// Kurdish — тег курдского языка (сорани).
	Kurdish = language.MustParse("ku")

	// SupportedLanguages — список поддерживаемых тегов языков.
	// Первый элемент используется matcher-ом как fallback.
	SupportedLanguages = []language.Tag{
		Kurdish,
		language.English,
	}

	// matcher — языковой matcher для Accept-Language.
	matcher = language.NewMatcher(SupportedLanguages)
)

// LangCookieName — имя cookie с выбранным языком.
const LangCookieName = "lang"

// contextKey — тип ключей контекста (избегаем коллизий).
type contextKey string

const (
	// contextKeyLang — текущий язык в контексте запроса.
	contextKeyLang contextKey = "i18n_lang"
	// contextKeyBundle — bundle переводов в контексте запроса.
	contextKeyBundle contextKey = "i18n_bundle"
)

// Bundle — хранилище переводов для всех языков.
// Загружается один раз при старте приложения.
type Bundle struct {
	mu       sync.RWMutex
	catalogs map[string]map[string]string // lang → key → translation
	logger   *slog.Logger
}

// NewBundle создаёт пустой Bundle.
func NewBundle(logger *slog.Logger) *Bundle {
	return &Bundle{
		catalogs: make(map[string]map[string]string),
		logger:   logger,
	}
}

// LoadMessages загружает JSON-каталог переводов для указанного языка.
// JSON формат: {"key": "translation", ...} (плоский).
func (b *Bundle) LoadMessages(lang string, data []byte) error {
	var messages map[string]string
	if err := json.Unmarshal(data, &messages); err != nil {
		return fmt.Errorf("i18n: ошибка парсинга каталога %s: %w", lang, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.catalogs[lang] = messages

	if b.logger != nil {
		b.logger.Info("i18n каталог загружен",
			slog.String("lang", lang),
			slog.Int("keys", len(messages)),
		)
	}
	return nil
}

// Translate возвращает перевод по ключу для указанного языка.
// Если ключ не найден в каталоге языка — ищется в каталоге "en",
// если не найден нигде — возвращается ключ как есть (для отладки).
func (b *Bundle) Translate(lang, key string) string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if catalog, ok := b.catalogs[lang]; ok {
		if msg, ok := catalog[key]; ok {
			return msg
		}
	}
	if catalog, ok := b.catalogs["en"]; ok {
		if msg, ok := catalog[key]; ok {
			return msg
		}
	}
	return key
}

// Languages возвращает список языков с загруженными каталогами.
func (b *Bundle) Languages() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	langs := make([]string, 0, len(b.catalogs))
	for lang := range b.catalogs {
		langs = append(langs, lang)
	}
	return langs
}

// MatchLanguage подбирает поддерживаемый язык по значению
// заголовка Accept-Language. Пустое или нераспознанное значение
// даёт первый поддерживаемый язык.
func MatchLanguage(acceptLanguage string) string {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		base, _ := SupportedLanguages[0].Base()
		return base.String()
	}

	_, idx, _ := matcher.Match(tags...)
	base, _ := SupportedLanguages[idx].Base()
	return base.String()
}

// IsSupported проверяет, что код языка входит в список поддерживаемых.
func IsSupported(lang string) bool {
	for _, tag := range SupportedLanguages {
		base, _ := tag.Base()
		if strings.EqualFold(base.String(), lang) {
			return true
		}
	}
	return false
}

// WithLang кладёт язык и bundle в контекст. Используется middleware
// и тестами.
func WithLang(ctx context.Context, b *Bundle, lang string) context.Context {
	ctx = context.WithValue(ctx, contextKeyBundle, b)
	return context.WithValue(ctx, contextKeyLang, lang)
}

// Lang возвращает текущий язык из контекста запроса.
// Возвращает "ku", если язык не установлен.
func Lang(ctx context.Context) string {
	if lang, ok := ctx.Value(contextKeyLang).(string); ok && lang != "" {
		return lang
	}
	return "ku"
}

// T возвращает перевод по ключу для языка из контекста.
// Если bundle в контексте отсутствует — возвращается ключ как есть.
func T(ctx context.Context, key string) string {
	b, ok := ctx.Value(contextKeyBundle).(*Bundle)
	if !ok || b == nil {
		return key
	}
	return b.Translate(Lang(ctx), key)
}

// Tf возвращает перевод по ключу с подстановкой аргументов (fmt.Sprintf).
func Tf(ctx context.Context, key string, args ...any) string {
	return fmt.Sprintf(T(ctx, key), args...)
}
