package middleware

import "net/http"

// BodyLimit caps mutation payloads. A complete evaluation with every section
// filled is tens of kilobytes of JSON; anything near the cap is a runaway
// client, not a longer review. Reads and artifact downloads pass untouched.
func BodyLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost, http.MethodPut, http.MethodPatch:
				if maxBytes > 0 && r.Body != nil {
					r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
