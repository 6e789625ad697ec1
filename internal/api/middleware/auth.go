// auth.go — аутентификация и авторизация запросов Media Module.
// Боевой режим: RS256 + JWKS, claims sub и scope/scopes.
// Dev-режим (MM_JWKS_URL не задан): владелец из заголовка X-Owner-ID.
// Требуемые scopes операции кладёт в контекст generated-обёртка
// (generated.BearerAuthScopes); операции без security пропускают анонимов.
package middleware

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	apierrors "github.com/bigkaa/goartstore/media-module/internal/api/errors"
	"github.com/bigkaa/goartstore/media-module/internal/api/generated"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

const (
	// ContextKeySubject — ключ для владельца запроса в контексте.
	ContextKeySubject contextKey = "jwt_subject"
	// ContextKeyScopes — ключ для scopes в контексте запроса.
	ContextKeyScopes contextKey = "jwt_scopes"
)

const (
	ScopeImagesRead  = "images:read"
	ScopeImagesWrite = "images:write"

	// HeaderOwnerID — заголовок владельца в dev-режиме
	HeaderOwnerID = "X-Owner-ID"
)

// ErrNoCredentials — запрос не содержит учётных данных.
var ErrNoCredentials = errors.New("отсутствуют учётные данные")

// Identity — аутентифицированный владелец запроса.
type Identity struct {
	Subject string
	Scopes  []string
}

// HasScope проверяет наличие scope.
func (i *Identity) HasScope(scope string) bool {
	for _, s := range i.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Authenticator извлекает Identity из запроса. Отсутствие учётных данных
// возвращается как ErrNoCredentials.
type Authenticator interface {
	Authenticate(r *http.Request) (*Identity, error)
}

// Claims — структура JWT claims.
// Поддерживает два формата scopes:
//   - Keycloak стандартный: "scope" (пробело-разделённая строка)
//   - Кастомный: "scopes" (массив строк)
type Claims struct {
	jwt.RegisteredClaims
	ScopeString string   `json:"scope"`
	ScopeArray  []string `json:"scopes"`
}

// Scopes возвращает объединённый список scope'ов из обоих форматов.
func (c *Claims) Scopes() []string {
	var result []string
	result = append(result, strings.Fields(c.ScopeString)...)
	result = append(result, c.ScopeArray...)
	return result
}

// JWTAuth — аутентификация по Bearer-токену через JWKS.
type JWTAuth struct {
	jwks      keyfunc.Keyfunc
	jwtLeeway time.Duration
	logger    *slog.Logger
}

// JWTAuthConfig — параметры для создания JWT middleware.
type JWTAuthConfig struct {
	// URL JWKS endpoint
	JWKSURL string
	// Путь к CA-сертификату (опционально)
	CACertPath string
	// Таймаут HTTP-клиента JWKS
	ClientTimeout time.Duration
	// Интервал обновления JWKS-ключей
	RefreshInterval time.Duration
	// Допустимое отклонение времени при проверке JWT
	JWTLeeway time.Duration
}

// NewJWTAuth создаёт JWT-аутентификацию с JWKS из указанного URL.
func NewJWTAuth(authCfg JWTAuthConfig, logger *slog.Logger) (*JWTAuth, error) {
	httpClient, err := buildHTTPClient(authCfg)
	if err != nil {
		return nil, err
	}

	if authCfg.CACertPath != "" {
		logger.Info("CA-сертификат добавлен в пул доверия",
			slog.String("ca_cert", authCfg.CACertPath),
		)
	}

	// NoErrorReturnFirstHTTPReq позволяет стартовать даже если JWKS endpoint
	// ещё недоступен (например, при одновременном запуске pod-ов).
	storage, err := jwkset.NewStorageFromHTTP(authCfg.JWKSURL, jwkset.HTTPClientStorageOptions{
		Client:                    httpClient,
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           authCfg.RefreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("Ошибка обновления JWKS",
				slog.String("error", err.Error()),
				slog.String("url", authCfg.JWKSURL),
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

	return NewJWTAuthWithKeyfunc(k, authCfg.JWTLeeway, logger), nil
}

// buildHTTPClient создаёт HTTP-клиент с настроенным TLS и таймаутом.
func buildHTTPClient(authCfg JWTAuthConfig) (*http.Client, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}

	if authCfg.CACertPath != "" {
		caCert, err := os.ReadFile(authCfg.CACertPath)
		if err != nil {
			return nil, fmt.Errorf("загрузка CA-сертификата %s: %w", authCfg.CACertPath, err)
		}

		caCertPool, err := x509.SystemCertPool()
		if err != nil {
			caCertPool = x509.NewCertPool()
		}
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("CA-сертификат %s не содержит PEM-блоков", authCfg.CACertPath)
		}
		tlsConfig.RootCAs = caCertPool
	}

	return &http.Client{
		Timeout: authCfg.ClientTimeout,
		Transport: &http.Transport{
			TLSClientConfig: tlsConfig,
		},
	}, nil
}

// NewJWTAuthWithKeyfunc создаёт JWT-аутентификацию с предоставленной keyfunc.
// Используется в тестах для подстановки mock JWKS.
func NewJWTAuthWithKeyfunc(kf keyfunc.Keyfunc, jwtLeeway time.Duration, logger *slog.Logger) *JWTAuth {
	return &JWTAuth{
		jwks:      kf,
		jwtLeeway: jwtLeeway,
		logger:    logger.With(slog.String("component", "jwt_auth")),
	}
}

// Authenticate извлекает Bearer token, проверяет подпись (RS256), exp/nbf
// и наличие sub.
func (j *JWTAuth) Authenticate(r *http.Request) (*Identity, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, ErrNoCredentials
	}

	scheme, tokenString, ok := strings.Cut(authHeader, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return nil, errors.New("неверный формат Authorization: ожидается Bearer <token>")
	}
	if tokenString == "" {
		return nil, errors.New("пустой Bearer token")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, j.jwks.KeyfuncCtx(r.Context()),
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(j.jwtLeeway),
	)
	if err != nil || !token.Valid {
		if err != nil {
			j.logger.Debug("JWT валидация не пройдена",
				slog.String("error", err.Error()),
				slog.String("remote_addr", r.RemoteAddr),
			)
		}
		return nil, errors.New("невалидный или просроченный токен")
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return nil, errors.New("отсутствует sub в токене")
	}

	return &Identity{Subject: subject, Scopes: claims.Scopes()}, nil
}

// DevAuth — аутентификация для локального запуска без IdP: владелец
// берётся из X-Owner-ID, выдаются все scopes.
type DevAuth struct{}

// Authenticate реализует Authenticator.
func (DevAuth) Authenticate(r *http.Request) (*Identity, error) {
	owner := strings.TrimSpace(r.Header.Get(HeaderOwnerID))
	if owner == "" {
		return nil, ErrNoCredentials
	}
	return &Identity{
		Subject: owner,
		Scopes:  []string{ScopeImagesRead, ScopeImagesWrite},
	}, nil
}

// OperationAuth возвращает middleware для generated.ChiServerOptions.Middlewares.
// Операции с security требуют Identity и все перечисленные scopes;
// остальные принимают анонимов, а при наличии учётных данных проверяют их.
func OperationAuth(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			required, secured := r.Context().Value(generated.BearerAuthScopes).([]string)

			identity, err := auth.Authenticate(r)
			switch {
			case errors.Is(err, ErrNoCredentials):
				if secured {
					apierrors.Unauthorized(w, "Требуется аутентификация")
					return
				}
				next.ServeHTTP(w, r)
				return
			case err != nil:
				apierrors.Unauthorized(w, err.Error())
				return
			}

			for _, scope := range required {
				if !identity.HasScope(scope) {
					apierrors.Forbidden(w, "Недостаточно прав: требуется scope "+scope)
					return
				}
			}

			ctx := context.WithValue(r.Context(), ContextKeySubject, identity.Subject)
			ctx = context.WithValue(ctx, ContextKeyScopes, identity.Scopes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SubjectFromContext извлекает владельца из контекста запроса.
// Возвращает пустую строку для анонимного запроса.
func SubjectFromContext(ctx context.Context) string {
	subject, _ := ctx.Value(ContextKeySubject).(string)
	return subject
}

// ScopesFromContext извлекает scopes из контекста запроса.
func ScopesFromContext(ctx context.Context) []string {
	scopes, _ := ctx.Value(ContextKeyScopes).([]string)
	return scopes
}
