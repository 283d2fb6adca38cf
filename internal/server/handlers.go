package server

import (
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"

	"github.com/go-chi/chi"
	"github.com/pkg/errors"

	"github.com/Heidric/digest.git/internal/customerrors"
	"github.com/Heidric/digest.git/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// fail maps a service error onto an HTTP error response.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		err = errors.WithStack(customerrors.ErrBodyTooLarge)
	}

	status := customerrors.StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error().Stack().Err(err).Str("path", r.URL.Path).Msg("request failed")
		customerrors.WriteError(w, status, "")
		return
	}
	customerrors.WriteError(w, status, err.Error())
}

func (s *Server) body(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodySize)
}

func digestName(r *http.Request) string {
	return chi.URLParam(r, "*")
}

func (s *Server) computeHandler(w http.ResponseWriter, r *http.Request) {
	s.body(w, r)
	res, err := s.digests.Compute(r.Context(), r.Body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) registerHandler(w http.ResponseWriter, r *http.Request) {
	s.body(w, r)
	d, err := s.digests.Register(r.Context(), digestName(r), r.Body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.logger.Debug().Str("name", d.Name).Str("sha256", d.SHA256).Int64("size", d.Size).Msg("digest registered")
	writeJSON(w, http.StatusCreated, d)
}

func (s *Server) getDigestHandler(w http.ResponseWriter, r *http.Request) {
	d, err := s.digests.Get(r.Context(), digestName(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) verifyHandler(w http.ResponseWriter, r *http.Request) {
	s.body(w, r)
	v, err := s.digests.Verify(r.Context(), digestName(r), r.Body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) importHandler(w http.ResponseWriter, r *http.Request) {
	s.body(w, r)

	var in model.Digest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.fail(w, r, err)
			return
		}
		customerrors.WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	d, err := s.digests.Import(r.Context(), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (s *Server) listDigestsHandler(w http.ResponseWriter, r *http.Request) {
	all, err := s.digests.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var b strings.Builder
	b.WriteString(`<html><head><title>Digests</title></head><body>
             <h1>Digests</h1>
             <table border="1">
             <tr><th>Name</th><th>SHA-256</th><th>Size</th></tr>`)

	for _, d := range all {
		fmt.Fprintf(&b, "<tr><td>%s</td><td><code>%s</code></td><td>%d</td></tr>",
			html.EscapeString(d.Name), d.SHA256, d.Size)
	}

	b.WriteString("</table></body></html>")

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(b.String()))
}

func (s *Server) pingHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.digests.Ping(r.Context()); err != nil {
		s.logger.Warn().Err(err).Msg("storage ping failed")
		customerrors.WriteError(w, http.StatusInternalServerError, "")
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) notFoundHandler(w http.ResponseWriter, r *http.Request) {
	customerrors.WriteError(w, http.StatusNotFound, "")
}
