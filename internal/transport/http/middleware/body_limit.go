package middleware

import (
	"net/http"

	"hrpay/internal/transport/http/api"
)

// BodyLimit caps request bodies on writes. Requests that declare a larger
// Content-Length are refused before the handler runs.
func BodyLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if maxBytes <= 0 || (r.Method != http.MethodPost && r.Method != http.MethodPut && r.Method != http.MethodPatch) {
				next.ServeHTTP(w, r)
				return
			}
			if r.ContentLength > maxBytes {
				api.Fail(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large", GetRequestID(r.Context()))
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
