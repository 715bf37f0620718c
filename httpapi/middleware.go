package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-borrowing-go/library"
)

// HeaderRequestID carries the request id. An incoming value is kept, otherwise a new one is generated.
const HeaderRequestID = "X-Request-ID"

const (
	logMsgRequestHandled    = "http request handled"
	logMsgRequestFailed     = "http request failed"
	logMsgPanicRecovered    = "http handler panicked"
	logMsgHealthCheckFailed = "health check failed"

	logAttrRequestID  = "request_id"
	logAttrMethod     = "method"
	logAttrRoute      = "route"
	logAttrPath       = "path"
	logAttrStatusCode = "status_code"
	logAttrDurationMS = "duration_ms"
	logAttrError      = "error"

	metricRequestDuration = "library_http_request_duration_seconds"
	metricRequests        = "library_http_requests_total"

	spanNameRequest = "libraryhttp.request"
)

type requestIDKey struct{}

// RequestIDFrom returns the request id stored in ctx, or an empty string.
func RequestIDFrom(ctx context.Context) string {
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

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}

	return r.ResponseWriter.Write(b)
}

func (h *Handler) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}

		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func (h *Handler) withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if recovered := recover(); recovered != nil {
				if recovered == http.ErrAbortHandler { //nolint:errorlint // sentinel value passed to panic
					panic(recovered)
				}

				h.logError(r.Context(), logMsgPanicRecovered, fmt.Errorf("%v", recovered))
				writeJSON(w, http.StatusInternalServerError, errorResponse{Error: msgInternalServerError})
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// instrument wraps a route handler with the access log, request metrics and a tracing span.
func (h *Handler) instrument(route string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx, span := h.startRequestSpan(r.Context(), r.Method, route)
		recorder := &statusRecorder{ResponseWriter: w}

		next.ServeHTTP(recorder, r.WithContext(ctx))

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}

		duration := time.Since(start)
		h.finishRequestSpan(span, status)
		h.recordRequest(ctx, r.Method, route, status, duration)

		if h.logger != nil {
			h.logger.InfoContext(ctx, logMsgRequestHandled,
				logAttrRequestID, RequestIDFrom(ctx),
				logAttrMethod, r.Method,
				logAttrRoute, route,
				logAttrPath, r.URL.Path,
				logAttrStatusCode, status,
				logAttrDurationMS, float64(duration.Nanoseconds())/1e6,
			)
		}
	})
}

func (h *Handler) startRequestSpan(ctx context.Context, method, route string) (context.Context, library.SpanContext) {
	if h.tracingCollector == nil {
		return ctx, nil
	}

	return h.tracingCollector.StartSpan(ctx, spanNameRequest, map[string]string{
		logAttrMethod:    method,
		logAttrRoute:     route,
		logAttrRequestID: RequestIDFrom(ctx),
	})
}

func (h *Handler) finishRequestSpan(span library.SpanContext, status int) {
	if h.tracingCollector == nil || span == nil {
		return
	}

	h.tracingCollector.FinishSpan(span, spanStatusFor(status), map[string]string{
		logAttrStatusCode: strconv.Itoa(status),
	})
}

// spanStatusFor treats client errors as rejected requests, not as failures of the service.
func spanStatusFor(status int) string {
	switch {
	case status >= http.StatusInternalServerError:
		return "error"
	case status == http.StatusConflict:
		return "concurrency_conflict"
	case status >= http.StatusBadRequest:
		return "rejected"
	default:
		return "success"
	}
}

func (h *Handler) recordRequest(ctx context.Context, method, route string, status int, duration time.Duration) {
	if h.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		logAttrMethod:     method,
		logAttrRoute:      route,
		logAttrStatusCode: strconv.Itoa(status),
	}

	if contextualCollector, ok := h.metricsCollector.(library.ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(ctx, metricRequestDuration, duration, labels)
		contextualCollector.IncrementCounterContext(ctx, metricRequests, labels)

		return
	}

	h.metricsCollector.RecordDuration(metricRequestDuration, duration, labels)
	h.metricsCollector.IncrementCounter(metricRequests, labels)
}

func (h *Handler) logError(ctx context.Context, msg string, err error) {
	if h.logger == nil {
		return
	}

	h.logger.ErrorContext(ctx, msg, logAttrRequestID, RequestIDFrom(ctx), logAttrError, err.Error())
}
