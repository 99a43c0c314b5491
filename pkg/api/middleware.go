package api

import (
	"context"
	"net/http"
	"time"

	"fund-transfer/pkg/logging"
	"fund-transfer/pkg/metrics"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// CorrelationHeader carries the request's correlation ID in both directions.
const CorrelationHeader = "X-Correlation-ID"

const maxCorrelationLength = 128

type correlationKey struct{}

// CorrelationID returns the ID attached by the correlation middleware.
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

func correlationMiddleware(base *logging.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(CorrelationHeader)
			if id == "" || len(id) > maxCorrelationLength {
				id = uuid.NewString()
			}
			w.Header().Set(CorrelationHeader, id)

			ctx := context.WithValue(r.Context(), correlationKey{}, id)
			ctx = logging.WithContext(ctx, base.With(zap.String("correlation_id", id)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// metricsMiddleware labels requests with the route template, not the raw
// path, so account numbers do not create new series.
func metricsMiddleware(collector metrics.MetricsCollector) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			route := "unknown"
			if cr := mux.CurrentRoute(r); cr != nil {
				if tpl, err := cr.GetPathTemplate(); err == nil {
					route = tpl
				}
			}
			collector.RecordHTTPRequest(r.Method, route, rec.status, time.Since(start))
		})
	}
}

func recoverMiddleware(base *logging.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if v := recover(); v != nil {
					logging.FromContext(r.Context(), base).Error("handler panicked",
						zap.Any("panic", v),
						zap.String("path", r.URL.Path),
					)
					writeError(w, http.StatusInternalServerError, msgUnexpected, nil)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
