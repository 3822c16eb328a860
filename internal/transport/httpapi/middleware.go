package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

// statusRecorder запоминает код ответа для метрик и логов.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// instrument пишет метрики и access-лог по шаблону маршрута, а не по сырому пути.
func (h *Handler) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		h.metrics.Started()
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)
		h.metrics.Finished(r.Method, route, rec.status, elapsed)

		h.logger.WithFields(log.Fields{
			"method":      r.Method,
			"route":       route,
			"status":      rec.status,
			"duration_ms": elapsed.Milliseconds(),
		}).Debug("http request served")
	})
}

// recoverer превращает panic обработчика в 500.
func (h *Handler) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				h.logger.WithFields(log.Fields{
					"panic": rec,
					"path":  r.URL.Path,
				}).Error("http handler panicked")
				writeJSON(w, http.StatusInternalServerError, errorBody(http.StatusInternalServerError, internalErrorMessage))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
