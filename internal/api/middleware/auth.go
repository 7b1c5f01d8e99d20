// auth.go — JWT middleware для аутентификации записи.
// Два режима верификации, выбираются конфигурацией:
//   - secret: HS256 с общим секретом (KB_JWT_SECRET)
//   - jwks:   RS256 с ключами из JWKS endpoint (KB_JWKS_URL)
//
// Claims (sub) помещаются в контекст запроса. Отказ — явный 401
// в стандартном формате ошибок с локализованным сообщением.
package middleware

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	apierrors "github.com/kardo-digital/kardo-backend/internal/api/errors"
	"github.com/kardo-digital/kardo-backend/internal/i18n"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

const (
	// ContextKeySubject — ключ для sub из JWT в контексте запроса.
	ContextKeySubject contextKey = "jwt_subject"
	// ContextKeyClaims — ключ для полного набора claims в контексте запроса.
	ContextKeyClaims contextKey = "jwt_claims"
)

// Claims — структура JWT claims kardo-backend.
// Токены выпускаются внешней системой входа; сервис полагается
// только на стандартные claims.
type Claims struct {
	jwt.RegisteredClaims
}

// JWTAuth — middleware JWT-аутентификации.
type JWTAuth struct {
	keyfn   jwt.Keyfunc
	methods []string
	leeway  time.Duration
	logger  *slog.Logger
}

// JWKSConfig — параметры режима jwks.
type JWKSConfig struct {
	// URL JWKS endpoint
	URL string
	// Путь к CA-сертификату (опционально)
	CACertPath string
	// Пропускать проверку TLS-сертификатов
	TLSSkipVerify bool
	// Таймаут HTTP-клиента JWKS
	ClientTimeout time.Duration
	// Интервал обновления JWKS-ключей
	RefreshInterval time.Duration
	// Допустимое отклонение времени при проверке JWT
	Leeway time.Duration
}

// NewSecret создаёт JWT middleware в режиме общего секрета (HS256).
// Секрет поступает из конфигурации и неизменен после старта.
func NewSecret(secret []byte, leeway time.Duration, logger *slog.Logger) *JWTAuth {
	return &JWTAuth{
		keyfn: func(_ *jwt.Token) (any, error) {
			return secret, nil
		},
		methods: []string{"HS256"},
		leeway:  leeway,
		logger:  logger.With(slog.String("component", "jwt_auth")),
	}
}

// NewJWKS создаёт JWT middleware в режиме jwks (RS256).
// Все параметры (таймауты, TLS, интервалы) берутся из JWKSConfig.
func NewJWKS(authCfg JWKSConfig, logger *slog.Logger) (*JWTAuth, error) {
	httpClient, err := buildHTTPClient(authCfg)
	if err != nil {
		return nil, err
	}

	if authCfg.CACertPath != "" {
		logger.Info("CA-сертификат добавлен в пул доверия",
			slog.String("ca_cert", authCfg.CACertPath),
		)
	}

	// JWKS Storage с кастомным HTTP-клиентом и настроенным RefreshInterval.
	// NoErrorReturnFirstHTTPReq позволяет стартовать даже если JWKS
	// endpoint ещё недоступен.
	storage, err := jwkset.NewStorageFromHTTP(authCfg.URL, jwkset.HTTPClientStorageOptions{
		Client:                    httpClient,
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           authCfg.RefreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("Ошибка обновления JWKS",
				slog.String("error", err.Error()),
				slog.String("url", authCfg.URL),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("создание JWKS storage: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{
		Storage: storage,
	})
	if err != nil {
		return nil, fmt.Errorf("создание keyfunc: %w", err)
	}

	return &JWTAuth{
		keyfn:   k.Keyfunc,
		methods: []string{"RS256"},
		leeway:  authCfg.Leeway,
		logger:  logger.With(slog.String("component", "jwt_auth")),
	}, nil
}

// NewWithKeyfunc создаёт JWT middleware с предоставленной keyfunc
// и списком допустимых алгоритмов. Используется в тестах.
func NewWithKeyfunc(keyfn jwt.Keyfunc, methods []string, leeway time.Duration, logger *slog.Logger) *JWTAuth {
	return &JWTAuth{
		keyfn:   keyfn,
		methods: methods,
		leeway:  leeway,
		logger:  logger.With(slog.String("component", "jwt_auth")),
	}
}

// buildHTTPClient создаёт HTTP-клиент с настроенным TLS и таймаутом.
func buildHTTPClient(authCfg JWKSConfig) (*http.Client, error) {
	tlsConfig := &tls.Config{
		InsecureSkipVerify: authCfg.TLSSkipVerify, //nolint:gosec // настраивается через KB_TLS_SKIP_VERIFY
	}

	if authCfg.CACertPath != "" {
		caCert, err := os.ReadFile(authCfg.CACertPath)
		if err != nil {
			return nil, fmt.Errorf("загрузка CA-сертификата %s: %w", authCfg.CACertPath, err)
		}

		caCertPool, err := x509.SystemCertPool()
		if err != nil {
			caCertPool = x509.NewCertPool()
		}
		caCertPool.AppendCertsFromPEM(caCert)
		tlsConfig.RootCAs = caCertPool
	}

	return &http.Client{
		Timeout: authCfg.ClientTimeout,
		Transport: &http.Transport{
			TLSClientConfig: tlsConfig,
		},
	}, nil
}

// Middleware возвращает HTTP middleware для JWT-аутентификации.
// Извлекает Bearer token из заголовка Authorization, валидирует подпись
// и временные claims, помещает sub и claims в контекст запроса.
// Должен стоять в цепочке ПЕРЕД разбором multipart: отклонённый
// запрос не сохраняет ни одного файла на диск.
func (j *JWTAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			// Извлекаем Bearer token
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				apierrors.Unauthorized(w, i18n.T(ctx, "error.unauthorized.missing_header"))
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				apierrors.Unauthorized(w, i18n.T(ctx, "error.unauthorized.bad_format"))
				return
			}

			tokenString := parts[1]
			if tokenString == "" {
				apierrors.Unauthorized(w, i18n.T(ctx, "error.unauthorized.bad_format"))
				return
			}

			// Парсинг и валидация JWT
			claims := &Claims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, j.keyfn,
				jwt.WithValidMethods(j.methods),
				jwt.WithLeeway(j.leeway),
			)
			if err != nil {
				j.logger.Debug("JWT валидация не пройдена",
					slog.String("error", err.Error()),
					slog.String("remote_addr", r.RemoteAddr),
				)
				apierrors.Unauthorized(w, i18n.T(ctx, "error.unauthorized.invalid_token"))
				return
			}

			if !token.Valid {
				apierrors.Unauthorized(w, i18n.T(ctx, "error.unauthorized.invalid_token"))
				return
			}

			// Помещаем claims в контекст. sub опционален: токены
			// внешней системы входа могут его не содержать.
			subject, _ := claims.GetSubject()
			ctx = context.WithValue(ctx, ContextKeySubject, subject)
			ctx = context.WithValue(ctx, ContextKeyClaims, claims)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SubjectFromContext извлекает sub из контекста запроса.
// Возвращает пустую строку, если sub не найден.
func SubjectFromContext(ctx context.Context) string {
	subject, _ := ctx.Value(ContextKeySubject).(string)
	return subject
}

// ClaimsFromContext извлекает claims из контекста запроса.
// Возвращает nil, если claims не найдены.
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(ContextKeyClaims).(*Claims)
	return claims
}
