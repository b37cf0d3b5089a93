package api

import (
	"net/http"
	"time"

	"github.com/rs/cors"

	"github.com/rshade/rowprompt/internal/logging"
)

const (
	internalServerError = "internal server error"
	headerTraceID       = "X-Trace-ID"
)

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	n, err := s.ResponseWriter.Write(b)
	s.bytes += n
	return n, err
}

// TraceMiddleware attaches a trace id and the default logger to the request
// context. An incoming X-Trace-ID header is reused.
func TraceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		traceID := r.Header.Get(headerTraceID)
		if traceID == "" {
			traceID = logging.GetOrGenerateTraceID(ctx)
		}
		ctx = logging.ContextWithTraceID(ctx, traceID)
		logger := logging.ComponentLogger(logging.Default(), "api").
			With().Str("trace_id", traceID).Logger()
		ctx = logger.WithContext(ctx)

		w.Header().Set(headerTraceID, traceID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// LoggingMiddleware logs one line per request.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}

		next.ServeHTTP(rec, r)

		logging.FromContext(r.Context()).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Int("bytes", rec.bytes).
			Dur("duration_ms", time.Since(start)).
			Msg("request handled")
	})
}

// RecoveryMiddleware converts handler panics into 500 responses.
func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logging.FromContext(r.Context()).Error().
					Interface("panic", err).
					Str("path", r.URL.Path).
					Msg("handler panicked")
				writeError(w, http.StatusInternalServerError, internalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// CORSMiddleware allows browser clients from origins. No origins disables CORS headers.
func CORSMiddleware(origins []string) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", headerTraceID},
		ExposedHeaders: []string{headerLogPath, headerRunID, headerTraceID},
	})
	return c.Handler
}
