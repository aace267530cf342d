package middleware

import (
	"encoding/json"
	"log"
	"net/http"
	"time"
)

// accessEntry is one JSON line per request. EmployeeID identifies who saved,
// submitted, or reopened; it is empty for login and health probes.
type accessEntry struct {
	Timestamp  string `json:"ts"`
	Method     string `json:"method"`
	Path       string `json:"path"`
	Query      string `json:"query,omitempty"`
	Status     int    `json:"status"`
	Bytes      int    `json:"bytes"`
	DurationMS int64  `json:"durationMs"`
	RequestID  string `json:"requestId"`
	EmployeeID string `json:"employeeId,omitempty"`
}

// responseMeter captures the status code and body size written downstream.
type responseMeter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (m *responseMeter) WriteHeader(code int) {
	m.status = code
	m.ResponseWriter.WriteHeader(code)
}

func (m *responseMeter) Write(p []byte) (int, error) {
	n, err := m.ResponseWriter.Write(p)
	m.bytes += n
	return n, err
}

// Logger must sit inside Auth in the chain so the caller's identity is
// already on the context when the entry is built.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		meter := &responseMeter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(meter, r)

		entry := accessEntry{
			Timestamp:  time.Now().UTC().Format(time.RFC3339),
			Method:     r.Method,
			Path:       r.URL.Path,
			Query:      r.URL.RawQuery,
			Status:     meter.status,
			Bytes:      meter.bytes,
			DurationMS: time.Since(start).Milliseconds(),
			RequestID:  GetRequestID(r.Context()),
		}
		if caller, ok := GetCaller(r.Context()); ok {
			entry.EmployeeID = caller.EmployeeID
		}

		payload, _ := json.Marshal(entry)
		log.Println(string(payload))
	})
}
