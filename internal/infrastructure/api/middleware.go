package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

const RequestIDHeader = "X-Request-ID"

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// AccessLog tags each request with an id and logs it once it is served.
func AccessLog() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, requestID)

			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			if rec.status == 0 {
				rec.status = http.StatusOK
			}
			event := log.Info()
			if rec.status >= http.StatusInternalServerError {
				event = log.Error()
			}
			event.
				Str("requestId", requestID).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rec.status).
				Int("bytes", rec.bytes).
				Dur("elapsed", time.Since(start)).
				Msg("request served")
		})
	}
}

// NewRouter wires every route of the upload page.
func NewRouter(handler *DetectionHandler) *mux.Router {
	r := mux.NewRouter()
	r.Use(AccessLog())

	r.HandleFunc("/", handler.HandleIndex).Methods("GET")
	r.HandleFunc("/select", handler.HandleSelect).Methods("POST")
	r.HandleFunc("/detect", handler.HandleDetect).Methods("POST")
	r.HandleFunc("/reset", handler.HandleReset).Methods("POST")
	r.HandleFunc("/chart.png", handler.HandleChart).Methods("GET")
	r.HandleFunc("/healthz", handler.HandleHealth).Methods("GET")

	apiRouter := r.PathPrefix("/api").Subrouter()
	apiRouter.HandleFunc("/state", handler.HandleState).Methods("GET")
	apiRouter.HandleFunc("/diseases", handler.HandleDiseases).Methods("GET")

	return r
}
