package httpapi

import (
	"bufio"
	"errors"
	"expvar"
	"log"
	"net"
	"net/http"
	"time"
)

var (
	requestsTotal     = expvar.NewInt("requests_total")
	requestsErrors    = expvar.NewInt("requests_errors_total")
	ordersCompleted   = expvar.NewInt("orders_completed_total")
	documentsIssued   = expvar.NewInt("documents_generated_total")
	intakeSubmitted   = expvar.NewInt("intake_submitted_total")
	intakeSessionsNow = expvar.NewInt("intake_sessions_active")
)

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming transports working behind the middleware.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack lets the realtime websocket transport upgrade the connection.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijack not supported")
	}
	return h.Hijack()
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		writer := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(writer, r)
		duration := time.Since(start)
		requestsTotal.Add(1)
		if writer.status >= http.StatusBadRequest {
			requestsErrors.Add(1)
		}
		requestID := r.Header.Get("X-Request-ID")
		log.Printf("request method=%s path=%s status=%d duration_ms=%d request_id=%s", r.Method, r.URL.Path, writer.status, duration.Milliseconds(), requestID)
	})
}

func logError(r *http.Request, err error) {
	log.Printf("request error method=%s path=%s request_id=%s error=%v", r.Method, r.URL.Path, requestIDFromRequest(r), err)
}

func logPersistence(err error) {
	log.Printf("persistence error=%v", err)
}
