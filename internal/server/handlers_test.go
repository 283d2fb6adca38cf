package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/Heidric/digest.git/internal/crypto"
	"github.com/Heidric/digest.git/internal/customerrors"
	"github.com/Heidric/digest.git/internal/model"
	"github.com/Heidric/digest.git/internal/server/middleware"
)

const abcHex = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"

type mockDigests struct {
	computeFn  func(r io.Reader) (model.Computed, error)
	registerFn func(name string, r io.Reader) (model.Digest, error)
	importFn   func(d model.Digest) (model.Digest, error)
	getFn      func(name string) (model.Digest, error)
	listFn     func() ([]model.Digest, error)
	verifyFn   func(name string, r io.Reader) (model.Verification, error)
	pingErr    error
}

func (m *mockDigests) Compute(_ context.Context, r io.Reader) (model.Computed, error) {
	return m.computeFn(r)
}

func (m *mockDigests) Register(_ context.Context, name string, r io.Reader) (model.Digest, error) {
	return m.registerFn(name, r)
}

func (m *mockDigests) Import(_ context.Context, d model.Digest) (model.Digest, error) {
	return m.importFn(d)
}

func (m *mockDigests) Get(_ context.Context, name string) (model.Digest, error) {
	return m.getFn(name)
}

func (m *mockDigests) List(_ context.Context) ([]model.Digest, error) {
	return m.listFn()
}

func (m *mockDigests) Verify(_ context.Context, name string, r io.Reader) (model.Verification, error) {
	return m.verifyFn(name, r)
}

func (m *mockDigests) Ping(_ context.Context) error { return m.pingErr }

func testOptions() Options {
	l := zerolog.Nop()
	return Options{Logger: &l}
}

func hashingCompute(r io.Reader) (model.Computed, error) {
	sum, n, err := crypto.HashReader(context.Background(), r, 0)
	if err != nil {
		return model.Computed{}, err
	}
	return model.Computed{SHA256: sum.String(), Size: n}, nil
}

func do(t *testing.T, srv *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.GetRouter().ServeHTTP(rec, req)
	return rec
}

func TestHandlers(t *testing.T) {
	t.Run("Compute success", func(t *testing.T) {
		srv := NewServer(":0", &mockDigests{computeFn: hashingCompute}, testOptions())

		rec := do(t, srv, httptest.NewRequest(http.MethodPost, "/digest", strings.NewReader("abc")))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var got model.Computed
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
		assert.Equal(t, model.Computed{SHA256: abcHex, Size: 3}, got)
	})

	t.Run("Compute gzip body", func(t *testing.T) {
		srv := NewServer(":0", &mockDigests{computeFn: hashingCompute}, testOptions())

		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		_, _ = zw.Write([]byte("abc"))
		require.NoError(t, zw.Close())

		req := httptest.NewRequest(http.MethodPost, "/digest", &buf)
		req.Header.Set("Content-Encoding", "gzip")
		rec := do(t, srv, req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), abcHex)
	})

	t.Run("Compute corrupt gzip body", func(t *testing.T) {
		srv := NewServer(":0", &mockDigests{computeFn: hashingCompute}, testOptions())

		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		_, _ = zw.Write([]byte(strings.Repeat("abc", 1000)))
		require.NoError(t, zw.Close())

		bodies := map[string][]byte{
			"not deflate": []byte("\x1f\x8b\x08\x00\x00\x00\x00\x00\x00\xffTHIS IS NOT DEFLATE"),
			"truncated":   buf.Bytes()[:buf.Len()/2],
		}
		for name, body := range bodies {
			req := httptest.NewRequest(http.MethodPost, "/digest", bytes.NewReader(body))
			req.Header.Set("Content-Encoding", "gzip")
			rec := do(t, srv, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code, name)
			assert.Contains(t, rec.Body.String(), "invalid request body", name)
		}
	})

	t.Run("Compute body too large", func(t *testing.T) {
		opts := testOptions()
		opts.MaxBodySize = 8
		srv := NewServer(":0", &mockDigests{computeFn: hashingCompute}, opts)

		rec := do(t, srv, httptest.NewRequest(http.MethodPost, "/digest", strings.NewReader(strings.Repeat("x", 100))))
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})

	t.Run("Register created", func(t *testing.T) {
		var gotName string
		mock := &mockDigests{
			registerFn: func(name string, r io.Reader) (model.Digest, error) {
				gotName = name
				return model.Digest{Name: name, SHA256: abcHex, Size: 3, CreatedAt: time.Now()}, nil
			},
		}
		srv := NewServer(":0", mock, testOptions())

		rec := do(t, srv, httptest.NewRequest(http.MethodPut, "/digest/releases/v1.tar", strings.NewReader("abc")))
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "releases/v1.tar", gotName)
	})

	t.Run("Register invalid name", func(t *testing.T) {
		mock := &mockDigests{
			registerFn: func(name string, r io.Reader) (model.Digest, error) {
				return model.Digest{}, errors.WithStack(customerrors.ErrInvalidName)
			},
		}
		srv := NewServer(":0", mock, testOptions())

		rec := do(t, srv, httptest.NewRequest(http.MethodPut, "/digest/", strings.NewReader("abc")))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Get not found", func(t *testing.T) {
		mock := &mockDigests{
			getFn: func(name string) (model.Digest, error) {
				return model.Digest{}, customerrors.ErrDigestNotFound
			},
		}
		srv := NewServer(":0", mock, testOptions())

		rec := do(t, srv, httptest.NewRequest(http.MethodGet, "/digest/missing", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("Get internal error hides detail", func(t *testing.T) {
		mock := &mockDigests{
			getFn: func(name string) (model.Digest, error) {
				return model.Digest{}, errors.New("secret connection string leaked")
			},
		}
		srv := NewServer(":0", mock, testOptions())

		rec := do(t, srv, httptest.NewRequest(http.MethodGet, "/digest/x", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "secret")
	})

	t.Run("Verify", func(t *testing.T) {
		mock := &mockDigests{
			verifyFn: func(name string, r io.Reader) (model.Verification, error) {
				return model.Verification{Name: name, Match: true, SHA256: abcHex}, nil
			},
		}
		srv := NewServer(":0", mock, testOptions())

		rec := do(t, srv, httptest.NewRequest(http.MethodPost, "/verify/abc", strings.NewReader("abc")))
		require.Equal(t, http.StatusOK, rec.Code)

		var v model.Verification
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
		assert.True(t, v.Match)
		assert.Equal(t, "abc", v.Name)
	})

	t.Run("Import", func(t *testing.T) {
		mock := &mockDigests{
			importFn: func(d model.Digest) (model.Digest, error) {
				if err := d.Validate(); err != nil {
					return model.Digest{}, err
				}
				return d, nil
			},
		}
		srv := NewServer(":0", mock, testOptions())

		body := `{"name":"abc","sha256":"` + abcHex + `","size":3}`
		rec := do(t, srv, httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(body)))
		assert.Equal(t, http.StatusCreated, rec.Code)

		rec = do(t, srv, httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(`{"name":"abc","sha256":"zz"}`)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = do(t, srv, httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(`{not json`)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("List escapes names", func(t *testing.T) {
		mock := &mockDigests{
			listFn: func() ([]model.Digest, error) {
				return []model.Digest{{Name: "<script>", SHA256: abcHex, Size: 3}}, nil
			},
		}
		srv := NewServer(":0", mock, testOptions())

		rec := do(t, srv, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/html", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Body.String(), "&lt;script&gt;")
		assert.Contains(t, rec.Body.String(), abcHex)
	})

	t.Run("Ping", func(t *testing.T) {
		srv := NewServer(":0", &mockDigests{}, testOptions())
		assert.Equal(t, http.StatusOK, do(t, srv, httptest.NewRequest(http.MethodGet, "/ping", nil)).Code)

		srv = NewServer(":0", &mockDigests{pingErr: customerrors.ErrNotConnected}, testOptions())
		assert.Equal(t, http.StatusInternalServerError, do(t, srv, httptest.NewRequest(http.MethodGet, "/ping", nil)).Code)
	})

	t.Run("Not found route", func(t *testing.T) {
		srv := NewServer(":0", &mockDigests{}, testOptions())
		assert.Equal(t, http.StatusNotFound, do(t, srv, httptest.NewRequest(http.MethodGet, "/nope", nil)).Code)
	})

	t.Run("Signed responses", func(t *testing.T) {
		opts := testOptions()
		opts.SignResponses = true
		srv := NewServer(":0", &mockDigests{computeFn: hashingCompute}, opts)

		rec := do(t, srv, httptest.NewRequest(http.MethodPost, "/digest", strings.NewReader("abc")))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, crypto.HashSHA256(rec.Body.Bytes()), rec.Header().Get(middleware.HashHeader))
	})

	t.Run("Rate limited", func(t *testing.T) {
		opts := testOptions()
		opts.Limiter = rate.NewLimiter(rate.Every(time.Hour), 1)
		srv := NewServer(":0", &mockDigests{}, opts)

		assert.Equal(t, http.StatusOK, do(t, srv, httptest.NewRequest(http.MethodGet, "/ping", nil)).Code)
		assert.Equal(t, http.StatusTooManyRequests, do(t, srv, httptest.NewRequest(http.MethodGet, "/ping", nil)).Code)
	})

	t.Run("Metrics endpoint", func(t *testing.T) {
		srv := NewServer(":0", &mockDigests{}, testOptions())
		rec := do(t, srv, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "go_goroutines")
	})
}
