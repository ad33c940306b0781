package http

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/sagarc03/xupload"
)

// WelcomeMessage is served at GET /.
const WelcomeMessage = "Welcome to XMPP HTTP Upload. State your business."

// Service is the upload service the handler serves.
type Service interface {
	Put(ctx context.Context, req xupload.PutRequest, body io.Reader) error
	Get(ctx context.Context, path string) (xupload.Object, error)
	Head(ctx context.Context, path string) (xupload.Object, error)
}

// CORSConfig configures the optional CORS middleware.
type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled" yaml:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods" yaml:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers" yaml:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers" yaml:"exposed_headers,omitempty"`
	AllowCredentials bool     `mapstructure:"allow_credentials" yaml:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age" yaml:"max_age"`
}

// HandlerConfig holds the handler's response and middleware settings.
type HandlerConfig struct {
	Headers *xupload.HeaderPolicy
	CORS    CORSConfig
	// Middleware is applied to every route after request logging,
	// e.g. metrics instrumentation.
	Middleware []func(http.Handler) http.Handler
}

// Handler provides the HTTP upload endpoints.
type Handler struct {
	config  HandlerConfig
	service Service
}

// NewHandler creates a new Handler with the given configuration and service.
// A nil header policy serves every type as an attachment.
func NewHandler(config *HandlerConfig, service Service) *Handler {
	cfg := *config
	if cfg.Headers == nil {
		cfg.Headers, _ = xupload.NewHeaderPolicy(nil)
	}
	return &Handler{
		config:  cfg,
		service: service,
	}
}

// Router returns an http.Handler with the upload routes:
//
//	GET  /        welcome text
//	PUT  /<path>  signed upload
//	GET  /<path>  download
//	HEAD /<path>  headers only
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestLogger)
	for _, mw := range h.config.Middleware {
		r.Use(mw)
	}

	if h.config.CORS.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.config.CORS.AllowedOrigins,
			AllowedMethods:   h.config.CORS.AllowedMethods,
			AllowedHeaders:   h.config.CORS.AllowedHeaders,
			ExposedHeaders:   h.config.CORS.ExposedHeaders,
			AllowCredentials: h.config.CORS.AllowCredentials,
			MaxAge:           h.config.CORS.MaxAge,
		}))
	}

	r.Get("/", h.handleIndex)
	r.Put("/*", h.handlePut)
	r.Get("/*", h.handleGet)
	r.Head("/*", h.handleHead)

	return r
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, WelcomeMessage)
}

func (h *Handler) handlePut(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/")

	length := r.ContentLength
	if length < 0 {
		length = 0
	}

	query := r.URL.Query()
	req := xupload.PutRequest{
		Path:        path,
		Length:      length,
		ContentType: r.Header.Get("Content-Type"),
		Signature:   query.Get("v"),
		Quota:       query.Get("q"),
	}

	if err := h.service.Put(r.Context(), req, r.Body); err != nil {
		HandleError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/")

	obj, err := h.service.Get(r.Context(), path)
	if err != nil {
		HandleError(w, err)
		return
	}
	defer func() { _ = obj.Content.Close() }()

	h.writeHeaders(w, obj)
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, obj.Content)
}

func (h *Handler) handleHead(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/")

	obj, err := h.service.Head(r.Context(), path)
	if err != nil {
		HandleError(w, err)
		return
	}

	h.writeHeaders(w, obj)
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) writeHeaders(w http.ResponseWriter, obj xupload.Object) {
	h.config.Headers.Apply(w.Header(), obj.Metadata)
	w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	if !obj.ModTime.IsZero() {
		w.Header().Set("Last-Modified", obj.ModTime.UTC().Format(http.TimeFormat))
	}
}
