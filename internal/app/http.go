package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"specstudio/internal/archive"
	"specstudio/internal/config"
	"specstudio/internal/export"
	"specstudio/internal/history"
	"specstudio/internal/project"
	"specstudio/internal/ratelimit"
	"specstudio/internal/secret"
	"specstudio/internal/share"
)

// Deps are the collaborators of the HTTP server. History, Archive and
// Limiter are optional.
type Deps struct {
	Config   config.Config
	Secrets  *secret.Provider
	Exporter *export.Service
	History  *history.Service
	Archive  *archive.Publisher
	Limiter  ratelimit.Limiter
	Logger   *slog.Logger
}

// MaxHeaderBytes admits a request line carrying the longest token that
// /share issues.
const MaxHeaderBytes = share.MaxTokenBytes + 64<<10

type HTTPServer struct {
	cfg      config.Config
	secrets  *secret.Provider
	exporter *export.Service
	history  *history.Service
	archive  *archive.Publisher
	limiter  ratelimit.Limiter
	logger   *slog.Logger

	maxToken int
}

func NewHTTPServer(deps Deps) *HTTPServer {
	s := &HTTPServer{
		cfg:      deps.Config,
		secrets:  deps.Secrets,
		exporter: deps.Exporter,
		history:  deps.History,
		archive:  deps.Archive,
		limiter:  deps.Limiter,
		logger:   deps.Logger,
		maxToken: share.MaxTokenBytes,
	}
	if s.secrets == nil {
		s.secrets = secret.New(s.cfg.ShareSecret)
	}
	if s.exporter == nil {
		s.exporter = export.NewService(s.cfg.PDF.Timeout())
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.cfg.MaxBodyBytes <= 0 {
		s.cfg.MaxBodyBytes = config.Default().MaxBodyBytes
	}
	return s
}

func (s *HTTPServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.withMiddleware)
	r.Use(s.maxBody)

	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)
	r.Post("/panel", s.handlePanel)
	r.Get("/history", s.handleHistory)

	r.Group(func(r chi.Router) {
		r.Use(s.rateLimit("export", s.cfg.RateLimit.ExportRequests))
		r.Post("/export", s.handleExport)
		r.Post("/export/pdf", s.handleExportPDF)
	})
	r.Group(func(r chi.Router) {
		r.Use(s.rateLimit("share", s.cfg.RateLimit.ShareRequests))
		r.Post("/share", s.handleShare)
		r.Get("/share/decode", s.handleShareDecode)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})
	return r
}

// Server returns an http.Server for Handler with timeouts sized for PDF
// rendering and a header limit that fits share tokens.
func (s *HTTPServer) Server(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      s.cfg.PDF.Timeout() + 15*time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    MaxHeaderBytes,
	}
}

type pinger interface {
	Ping(ctx context.Context) error
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	checks := map[string]any{}
	if p, ok := s.limiter.(pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			checks["redis"] = map[string]any{"status": "error", "error": err.Error()}
		} else {
			checks["redis"] = map[string]any{"status": "ok"}
		}
	}
	writeJSON(w, status, map[string]any{
		"ok":              status == http.StatusOK,
		"ephemeralSecret": s.secrets.Ephemeral(),
		"history":         s.history != nil,
		"archive":         s.archive != nil,
		"checks":          checks,
	})
}

func (s *HTTPServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusOK, map[string]any{"enabled": false, "commits": []history.Commit{}})
		return
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "limit must be a positive integer", nil)
			return
		}
		limit = min(parsed, 100)
	}
	commits, err := s.history.Log(limit)
	if err != nil {
		s.logger.Error("history log failed", "error", err)
		s.writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"enabled": true, "commits": commits})
}

// readForm parses the submitted form into a snapshot. Lists that fail to
// parse are replaced with the starter lists and the substitution logged.
func (s *HTTPServer) readForm(w http.ResponseWriter, r *http.Request) (project.Snapshot, bool) {
	form, ok := s.parseForm(w, r)
	if !ok {
		return project.Snapshot{}, false
	}
	if err := form.Err(); err != nil {
		s.logger.Warn("form list unparsable, using defaults", "request_id", requestID(r.Context()), "error", err)
	}
	return form.WithDefaults(), true
}

func (s *HTTPServer) parseForm(w http.ResponseWriter, r *http.Request) (project.Form, bool) {
	if err := r.ParseForm(); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE",
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit), nil)
			return project.Form{}, false
		}
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid form body", nil)
		return project.Form{}, false
	}
	return project.FromForm(r.PostForm), true
}

func (s *HTTPServer) writeMappedError(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	writeError(w, status, code, message, details)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setDefaultHeaders(writer.Header())
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		s.logger.Info("request",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", writer.status,
			"duration_ms", time.Since(started).Milliseconds(),
		)
	})
}

func (s *HTTPServer) maxBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimit applies a fixed window per client address to a route group.
// Limiter failures let the request through.
func (s *HTTPServer) rateLimit(group string, limit int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if s.limiter == nil || !s.cfg.RateLimit.Enabled || limit <= 0 {
			return next
		}
		window := s.cfg.RateLimit.Window()
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			decision, err := s.limiter.Allow(r.Context(), group+":"+ip, limit, window)
			if err != nil {
				s.logger.Warn("rate limiter unavailable", "group", group, "error", err)
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			if !decision.Allowed {
				s.logger.Warn("request rate limited", "group", group, "ip", ip)
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(decision.ResetAfter.Seconds()))))
				writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type requestIDKey struct{}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setDefaultHeaders(header http.Header) {
	header.Set("Cache-Control", "no-store")
	header.Set("X-Content-Type-Options", "nosniff")
	header.Set("X-Frame-Options", "DENY")
	header.Set("Referrer-Policy", "no-referrer")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

// clientIP returns the first X-Forwarded-For entry or the remote host.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
