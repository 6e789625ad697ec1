// validate.go — проверка запросов по встроенному OpenAPI контракту
// (kin-openapi openapi3filter): параметры пути, query и заголовков.
// Тело multipart-загрузки не проверяется, его разбирает handler.
package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/legacy"

	apierrors "github.com/bigkaa/goartstore/media-module/internal/api/errors"
)

// OpenAPIValidator возвращает middleware, отклоняющий с 400 запросы,
// не соответствующие контракту. Пути вне контракта пропускаются
// без проверки (их обработает роутер).
func OpenAPIValidator(swagger *openapi3.T) (func(http.Handler) http.Handler, error) {
	// servers в документе описывают dev-адрес; сопоставление по хосту не нужно
	swagger.Servers = nil

	router, err := legacy.NewRouter(swagger)
	if err != nil {
		return nil, fmt.Errorf("создание OpenAPI роутера: %w", err)
	}

	opts := &openapi3filter.Options{
		ExcludeRequestBody: true,
		// аутентификацию выполняет OperationAuth
		AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route, pathParams, err := router.FindRoute(r)
			if err != nil {
				if errors.Is(err, routers.ErrPathNotFound) || errors.Is(err, routers.ErrMethodNotAllowed) {
					next.ServeHTTP(w, r)
					return
				}
				apierrors.ValidationError(w, err.Error())
				return
			}

			input := &openapi3filter.RequestValidationInput{
				Request:    r,
				PathParams: pathParams,
				Route:      route,
				Options:    opts,
			}
			if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
				apierrors.ValidationError(w, validationMessage(err))
				return
			}

			next.ServeHTTP(w, r)
		})
	}, nil
}

// validationMessage сокращает ошибку openapi3filter до причины.
func validationMessage(err error) string {
	var reqErr *openapi3filter.RequestError
	if errors.As(err, &reqErr) {
		reason := reqErr.Reason
		if reason == "" && reqErr.Err != nil {
			reason = reqErr.Err.Error()
		}
		if reqErr.Parameter != nil {
			return fmt.Sprintf("параметр %s: %s", reqErr.Parameter.Name, reason)
		}
		if reason != "" {
			return reason
		}
	}
	return err.Error()
}
