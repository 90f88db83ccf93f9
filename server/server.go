package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/xhad/paperqa/internal/types"
	"github.com/xhad/paperqa/pkg/pipeline"
)

type Config struct {
	MaxUploadBytes int64
	QueryTimeout   time.Duration
}

// Server exposes a pipeline over HTTP and WebSocket.
type Server struct {
	router   chi.Router
	pipeline *pipeline.Pipeline
	log      *slog.Logger
	config   Config
}

func NewServer(p *pipeline.Pipeline, log *slog.Logger, config Config) *Server {
	if log == nil {
		log = slog.Default()
	}
	if config.MaxUploadBytes == 0 {
		config.MaxUploadBytes = 50 << 20
	}
	if config.QueryTimeout == 0 {
		config.QueryTimeout = 2 * time.Minute
	}

	s := &Server{
		pipeline: p,
		log:      log,
		config:   config,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	r.Get("/health", s.handleHealth)
	r.Get("/ws", s.handleWebSocket)

	r.Route("/documents", func(r chi.Router) {
		r.Post("/", s.handleIndex)
		r.Get("/", s.handleListDocuments)
		r.Route("/{docID}", func(r chi.Router) {
			r.Delete("/", s.handleEvict)
			r.Get("/sections", s.handleSections)
			r.Get("/overview", s.handleOverview)
			r.Post("/query", s.handleQuery)
		})
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// RequestLogger logs incoming requests.
func RequestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			log.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"request_id", middleware.GetReqID(r.Context()),
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}

// errorBody tells a client what failed and whether trying again may help.
type errorBody struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	Retryable bool   `json:"retryable"`
}

func newErrorBody(err error) errorBody {
	body := errorBody{Error: err.Error(), Retryable: types.Retryable(err)}
	if kind := types.KindOf(err); kind != nil {
		body.Kind = kind.Error()
	}
	return body
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrCancelled):
		return http.StatusRequestTimeout
	case errors.Is(err, types.ErrDocumentLoad):
		return http.StatusUnprocessableEntity
	case errors.Is(err, types.ErrIndexEmpty):
		return http.StatusConflict
	case errors.Is(err, types.ErrEmbedding), errors.Is(err, types.ErrRerank), errors.Is(err, types.ErrGeneration):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, errorBody{Error: msg})
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), newErrorBody(err))
}
