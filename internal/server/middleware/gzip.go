package middleware

import (
	"io"
	"net/http"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"

	"github.com/Heidric/digest.git/internal/customerrors"
)

type gzipBody struct {
	*gzip.Reader
	orig io.Closer
}

// Read reports a corrupt or truncated stream as ErrInvalidBody. io.EOF is
// passed through unchanged.
func (b gzipBody) Read(p []byte) (int, error) {
	n, err := b.Reader.Read(p)
	if err != nil && err != io.EOF {
		return n, errors.Wrap(customerrors.ErrInvalidBody, "gzip: "+err.Error())
	}
	return n, err
}

func (b gzipBody) Close() error {
	_ = b.Reader.Close()
	return b.orig.Close()
}

// Decompress transparently inflates request bodies sent with
// "Content-Encoding: gzip". Digests are computed over the inflated bytes.
func Decompress(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(strings.ToLower(r.Header.Get("Content-Encoding")), "gzip") {
			next.ServeHTTP(w, r)
			return
		}

		zr, err := gzip.NewReader(r.Body)
		if err != nil {
			customerrors.WriteError(w, http.StatusBadRequest, "invalid gzip body")
			return
		}

		r.Body = gzipBody{Reader: zr, orig: r.Body}
		r.Header.Del("Content-Encoding")
		r.Header.Del("Content-Length")
		r.ContentLength = -1

		next.ServeHTTP(w, r)
	})
}
