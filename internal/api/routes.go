package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/rshade/rowprompt/internal/metrics"
)

// SetupRoutes registers every endpoint on a new router. When corsOrigins is
// non-empty, preflight requests are answered by the CORS middleware.
func SetupRoutes(h *Handler, corsOrigins []string) *mux.Router {
	r := mux.NewRouter()

	r.Use(TraceMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(RecoveryMiddleware)

	post := []string{http.MethodPost}
	get := []string{http.MethodGet}
	if len(corsOrigins) > 0 {
		r.Use(CORSMiddleware(corsOrigins))
		post = append(post, http.MethodOptions)
		get = append(get, http.MethodOptions)
	}

	r.HandleFunc("/process", h.Process).Methods(post...)
	r.HandleFunc("/process/", h.Process).Methods(post...)
	r.HandleFunc("/reset", h.Reset).Methods(post...)
	r.HandleFunc("/reset/", h.Reset).Methods(post...)
	r.HandleFunc("/healthz", h.Health).Methods(get...)
	r.Handle("/metrics", metrics.Handler()).Methods(get...)

	return r
}
