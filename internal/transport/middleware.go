package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Lllllllleong/likeface/internal/metrics"
	"github.com/felixge/httpsnoop"
	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

const requestIDHeader = "X-Request-ID"

type ctxKey struct{}

// RequestIDFromContext returns the id the access log assigned to the request,
// or "" outside a request served by NewRouter.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// NewRouter returns the face API: routing, panic recovery and access logging.
func NewRouter(faces FaceProcessor, logger *slog.Logger) http.Handler {
	r := mux.NewRouter()
	NewFaceHandler(faces, logger).RegisterRoutes(r)

	recovered := handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{logger}),
		handlers.PrintRecoveryStack(false),
	)(r)
	return accessLog(logger, recovered)
}

// accessLog assigns a request id and logs every request once it completes.
func accessLog(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		r = r.WithContext(context.WithValue(r.Context(), ctxKey{}, id))

		m := httpsnoop.CaptureMetrics(next, w, r)
		metrics.IncHTTPRequest(r.Method, strconv.Itoa(m.Code))
		logger.Info("http request",
			"requestId", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", m.Code,
			"duration", m.Duration.String(),
			"bytes", m.Written,
		)
	})
}

// recoveryLogger adapts slog to gorilla/handlers' recovery logger.
type recoveryLogger struct {
	logger *slog.Logger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.logger.Error("Recovered from panic", "panic", fmt.Sprint(v...))
}
