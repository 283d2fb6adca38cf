package middleware

import (
	"bytes"
	"net/http"

	"github.com/Heidric/digest.git/internal/crypto"
)

// HashHeader carries the SHA-256 of the response body.
const HashHeader = "HashSHA256"

type hashResponseWriter struct {
	http.ResponseWriter
	buf    *bytes.Buffer
	status int
}

// HashMiddleware computes the SHA-256 of the response body and adds it to
// the "HashSHA256" response header as a hex string. It is a pass-through
// when disabled.
func HashMiddleware(enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				next.ServeHTTP(w, r)
				return
			}

			hrw := &hashResponseWriter{
				ResponseWriter: w,
				buf:            new(bytes.Buffer),
				status:         http.StatusOK,
			}

			next.ServeHTTP(hrw, r)

			w.Header().Set(HashHeader, crypto.HashSHA256(hrw.buf.Bytes()))
			w.WriteHeader(hrw.status)
			_, _ = w.Write(hrw.buf.Bytes())
		})
	}
}

// WriteHeader records the status code; it is sent once the body is hashed.
func (w *hashResponseWriter) WriteHeader(code int) {
	w.status = code
}

// Write appends bytes to the internal buffer; the real write happens after
// the hash is computed in the middleware.
func (w *hashResponseWriter) Write(b []byte) (int, error) {
	return w.buf.Write(b)
}
