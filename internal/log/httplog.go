package log

import (
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// HTTPLogCapacity is the number of requests kept by the HTTP log
const HTTPLogCapacity = 1000

// HTTPLogEntry represents an HTTP request/response log entry
type HTTPLogEntry struct {
	Timestamp  time.Time     `json:"timestamp"`
	Method     string        `json:"method"`
	Path       string        `json:"path"`
	Status     int           `json:"status"`
	Duration   time.Duration `json:"duration"`
	Size       int           `json:"size"`
	RemoteAddr string        `json:"remote_addr"`
	UserAgent  string        `json:"user_agent"`
}

// HTTPLog keeps the most recent requests
type HTTPLog struct {
	mu      sync.Mutex
	entries []HTTPLogEntry
	next    int
	full    bool
}

// NewHTTPLog returns a log holding up to capacity entries
func NewHTTPLog(capacity int) *HTTPLog {
	return &HTTPLog{entries: make([]HTTPLogEntry, capacity)}
}

// Add appends an entry, evicting the oldest when full
func (l *HTTPLog) Add(e HTTPLogEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries[l.next] = e
	l.next = (l.next + 1) % len(l.entries)
	if l.next == 0 {
		l.full = true
	}
}

// Entries returns the buffered entries, oldest first
func (l *HTTPLog) Entries() []HTTPLogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.full {
		return append([]HTTPLogEntry(nil), l.entries[:l.next]...)
	}
	out := make([]HTTPLogEntry, 0, len(l.entries))
	out = append(out, l.entries[l.next:]...)
	return append(out, l.entries[:l.next]...)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.size += n
	return n, err
}

// HTTPMiddleware records every request in l and logs it at debug level
func HTTPMiddleware(l *HTTPLog, logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, req)

			e := HTTPLogEntry{
				Timestamp:  start,
				Method:     req.Method,
				Path:       req.URL.Path,
				Status:     rec.status,
				Duration:   time.Since(start),
				Size:       rec.size,
				RemoteAddr: req.RemoteAddr,
				UserAgent:  req.UserAgent(),
			}
			l.Add(e)
			logger.Debugw("http request", "method", e.Method, "path", e.Path, "status", e.Status, "duration", e.Duration, "size", e.Size)
		})
	}
}
