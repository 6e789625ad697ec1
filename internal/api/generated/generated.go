// Пакет generated — типы и маршрутизация HTTP API по контракту openapi.yaml
// в формате oapi-codegen (chi-server): ServerInterface, обёртка с привязкой
// параметров через oapi-codegen/runtime и встроенный документ OpenAPI.
// При изменении openapi.yaml файл обновляется вместе с ним.
package generated

import (
	"context"
	_ "embed"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"
)

const (
	BearerAuthScopes = "bearerAuth.Scopes"
)

// Defines values for ImageVisibility.
const (
	ImageVisibilityPublic  ImageVisibility = "public"
	ImageVisibilityPrivate ImageVisibility = "private"
)

// ImageVisibility defines model for Image.Visibility.
type ImageVisibility string

// Metadata defines model for Metadata.
type Metadata struct {
	Tags          *map[string]interface{} `json:"tags,omitempty"`
	Palette       []string                `json:"palette"`
	DominantColor string                  `json:"dominant_color"`
	Animated      bool                    `json:"animated"`
	Duration      *float64                `json:"duration,omitempty"`
	QualityScore  int                     `json:"quality_score"`
}

// Image defines model for Image.
type Image struct {
	Id               openapi_types.UUID  `json:"id"`
	OwnerId          string              `json:"owner_id"`
	Url              string              `json:"url"`
	Width            int                 `json:"width"`
	Height           int                 `json:"height"`
	Size             int64               `json:"size"`
	ContentType      string              `json:"content_type"`
	ThumbnailUrl     string              `json:"thumbnail_url"`
	ThumbnailWidth   *int                `json:"thumbnail_width,omitempty"`
	ThumbnailHeight  *int                `json:"thumbnail_height,omitempty"`
	ThumbnailSize    *int64              `json:"thumbnail_size,omitempty"`
	OriginalFilename string              `json:"original_filename"`
	MimeType         string              `json:"mime_type"`
	Visibility       ImageVisibility     `json:"visibility"`
	CollectionId     *openapi_types.UUID `json:"collection_id,omitempty"`
	ExpiresAt        *time.Time          `json:"expires_at,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	Views            int64               `json:"views"`
	Downloads        *int64              `json:"downloads,omitempty"`
	Tags             *[]string           `json:"tags,omitempty"`
	Metadata         Metadata            `json:"metadata"`
}

// ImageList defines model for ImageList.
type ImageList struct {
	Items   []Image `json:"items"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
	HasMore bool    `json:"has_more"`
}

// ImageId defines model for ImageId.
type ImageId = openapi_types.UUID

// ListImagesParams defines parameters for ListImages.
type ListImagesParams struct {
	Limit  *int `form:"limit,omitempty" json:"limit,omitempty"`
	Offset *int `form:"offset,omitempty" json:"offset,omitempty"`
}

// GetImageParams defines parameters for GetImage.
type GetImageParams struct {
	XAccessSecret *string `json:"X-Access-Secret,omitempty"`
}

// ServerInterface represents all server handlers.
type ServerInterface interface {
	// Изображения текущего владельца
	// (GET /api/v1/images)
	ListImages(w http.ResponseWriter, r *http.Request, params ListImagesParams)
	// Загрузка и обработка изображения
	// (POST /api/v1/images)
	UploadImage(w http.ResponseWriter, r *http.Request)
	// Удаление изображения и его объектов
	// (DELETE /api/v1/images/{image_id})
	DeleteImage(w http.ResponseWriter, r *http.Request, imageId ImageId)
	// Запись изображения
	// (GET /api/v1/images/{image_id})
	GetImage(w http.ResponseWriter, r *http.Request, imageId ImageId, params GetImageParams)
	// Объект fs-хранилища
	// (GET /media/{key})
	ServeMedia(w http.ResponseWriter, r *http.Request, key string)
	// (GET /health/live)
	HealthLive(w http.ResponseWriter, r *http.Request)
	// (GET /health/ready)
	HealthReady(w http.ResponseWriter, r *http.Request)
	// (GET /metrics)
	GetMetrics(w http.ResponseWriter, r *http.Request)
}

// ServerInterfaceWrapper converts contexts to parameters.
type ServerInterfaceWrapper struct {
	Handler            ServerInterface
	HandlerMiddlewares []MiddlewareFunc
	ErrorHandlerFunc   func(w http.ResponseWriter, r *http.Request, err error)
}

type MiddlewareFunc func(http.Handler) http.Handler

// ListImages operation middleware
func (siw *ServerInterfaceWrapper) ListImages(w http.ResponseWriter, r *http.Request) {
	var err error

	ctx := r.Context()

	ctx = context.WithValue(ctx, BearerAuthScopes, []string{"images:read"})

	r = r.WithContext(ctx)

	var params ListImagesParams

	err = runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &params.Limit)
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "limit", Err: err})
		return
	}

	err = runtime.BindQueryParameter("form", true, false, "offset", r.URL.Query(), &params.Offset)
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "offset", Err: err})
		return
	}

	handler := http.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.ListImages(w, r, params)
	}))

	siw.serve(handler, w, r)
}

// UploadImage operation middleware
func (siw *ServerInterfaceWrapper) UploadImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ctx = context.WithValue(ctx, BearerAuthScopes, []string{"images:write"})

	r = r.WithContext(ctx)

	handler := http.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.UploadImage(w, r)
	}))

	siw.serve(handler, w, r)
}

// DeleteImage operation middleware
func (siw *ServerInterfaceWrapper) DeleteImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ctx = context.WithValue(ctx, BearerAuthScopes, []string{"images:write"})

	r = r.WithContext(ctx)

	var imageId ImageId

	err := runtime.BindStyledParameterWithLocation("simple", false, "image_id", runtime.ParamLocationPath, chi.URLParam(r, "image_id"), &imageId)
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "image_id", Err: err})
		return
	}

	handler := http.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.DeleteImage(w, r, imageId)
	}))

	siw.serve(handler, w, r)
}

// GetImage operation middleware
func (siw *ServerInterfaceWrapper) GetImage(w http.ResponseWriter, r *http.Request) {
	var imageId ImageId

	err := runtime.BindStyledParameterWithLocation("simple", false, "image_id", runtime.ParamLocationPath, chi.URLParam(r, "image_id"), &imageId)
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "image_id", Err: err})
		return
	}

	var params GetImageParams

	if values, found := r.Header[http.CanonicalHeaderKey("X-Access-Secret")]; found {
		var XAccessSecret string
		if len(values) != 1 {
			siw.ErrorHandlerFunc(w, r, &TooManyValuesForParamError{ParamName: "X-Access-Secret", Count: len(values)})
			return
		}

		err = runtime.BindStyledParameterWithLocation("simple", false, "X-Access-Secret", runtime.ParamLocationHeader, values[0], &XAccessSecret)
		if err != nil {
			siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "X-Access-Secret", Err: err})
			return
		}
		params.XAccessSecret = &XAccessSecret
	}

	handler := http.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.GetImage(w, r, imageId, params)
	}))

	siw.serve(handler, w, r)
}

// ServeMedia operation middleware
func (siw *ServerInterfaceWrapper) ServeMedia(w http.ResponseWriter, r *http.Request) {
	// ключ содержит «/», поэтому маршрут — wildcard, а не {key}
	key := chi.URLParam(r, "*")
	if key == "" {
		siw.ErrorHandlerFunc(w, r, &RequiredParamError{ParamName: "key"})
		return
	}

	handler := http.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.ServeMedia(w, r, key)
	}))

	siw.serve(handler, w, r)
}

// HealthLive operation middleware
func (siw *ServerInterfaceWrapper) HealthLive(w http.ResponseWriter, r *http.Request) {
	siw.serve(http.HandlerFunc(siw.Handler.HealthLive), w, r)
}

// HealthReady operation middleware
func (siw *ServerInterfaceWrapper) HealthReady(w http.ResponseWriter, r *http.Request) {
	siw.serve(http.HandlerFunc(siw.Handler.HealthReady), w, r)
}

// GetMetrics operation middleware
func (siw *ServerInterfaceWrapper) GetMetrics(w http.ResponseWriter, r *http.Request) {
	siw.serve(http.HandlerFunc(siw.Handler.GetMetrics), w, r)
}

func (siw *ServerInterfaceWrapper) serve(handler http.Handler, w http.ResponseWriter, r *http.Request) {
	for _, middleware := range siw.HandlerMiddlewares {
		handler = middleware(handler)
	}
	handler.ServeHTTP(w, r)
}

type UnescapedCookieParamError struct {
	ParamName string
	Err       error
}

func (e *UnescapedCookieParamError) Error() string {
	return fmt.Sprintf("error unescaping cookie parameter '%s'", e.ParamName)
}

func (e *UnescapedCookieParamError) Unwrap() error {
	return e.Err
}

type RequiredParamError struct {
	ParamName string
}

func (e *RequiredParamError) Error() string {
	return fmt.Sprintf("Query argument %s is required, but not found", e.ParamName)
}

type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return fmt.Sprintf("Invalid format for parameter %s: %s", e.ParamName, e.Err.Error())
}

func (e *InvalidParamFormatError) Unwrap() error {
	return e.Err
}

type TooManyValuesForParamError struct {
	ParamName string
	Count     int
}

func (e *TooManyValuesForParamError) Error() string {
	return fmt.Sprintf("Expected one value for %s, got %d", e.ParamName, e.Count)
}

// Handler creates http.Handler with routing matching OpenAPI spec.
func Handler(si ServerInterface) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{})
}

type ChiServerOptions struct {
	BaseURL          string
	BaseRouter       chi.Router
	Middlewares      []MiddlewareFunc
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// HandlerFromMux creates http.Handler with routing matching OpenAPI spec based on the provided mux.
func HandlerFromMux(si ServerInterface, r chi.Router) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{
		BaseRouter: r,
	})
}

// HandlerWithOptions creates http.Handler with additional options
func HandlerWithOptions(si ServerInterface, options ChiServerOptions) http.Handler {
	r := options.BaseRouter

	if r == nil {
		r = chi.NewRouter()
	}
	if options.ErrorHandlerFunc == nil {
		options.ErrorHandlerFunc = func(w http.ResponseWriter, r *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	}
	wrapper := ServerInterfaceWrapper{
		Handler:            si,
		HandlerMiddlewares: options.Middlewares,
		ErrorHandlerFunc:   options.ErrorHandlerFunc,
	}

	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/api/v1/images", wrapper.ListImages)
	})
	r.Group(func(r chi.Router) {
		r.Post(options.BaseURL+"/api/v1/images", wrapper.UploadImage)
	})
	r.Group(func(r chi.Router) {
		r.Delete(options.BaseURL+"/api/v1/images/{image_id}", wrapper.DeleteImage)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/api/v1/images/{image_id}", wrapper.GetImage)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/media/*", wrapper.ServeMedia)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/health/live", wrapper.HealthLive)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/health/ready", wrapper.HealthReady)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/metrics", wrapper.GetMetrics)
	})

	return r
}

//go:embed openapi.yaml
var swaggerSpec []byte

var (
	swaggerOnce sync.Once
	swagger     *openapi3.T
	swaggerErr  error
)

// GetSwagger returns the OpenAPI document parsed from the embedded openapi.yaml.
func GetSwagger() (*openapi3.T, error) {
	swaggerOnce.Do(func() {
		loader := openapi3.NewLoader()
		swagger, swaggerErr = loader.LoadFromData(swaggerSpec)
		if swaggerErr != nil {
			swaggerErr = fmt.Errorf("error loading embedded spec: %w", swaggerErr)
			return
		}
		if err := swagger.Validate(loader.Context); err != nil {
			swaggerErr = fmt.Errorf("error validating embedded spec: %w", err)
		}
	})
	return swagger, swaggerErr
}
