package logger

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/Heidric/digest.git/pkg/log"
)

// Log is the process-wide zerolog logger used by the service.
var Log *zerolog.Logger

func init() {
	nop := zerolog.Nop()
	Log = &nop
}

// Initialize configures the logging subsystem using the provided Config.
// It builds a zerolog-based logger (level/format taken from Config), assigns
// the global Log, and returns a wrapper for further use.
func Initialize(config *log.Config) (*log.Logger, error) {
	logger, err := log.NewLogger(context.Background(), config)
	if err != nil {
		return nil, errors.Wrap(err, "new logger")
	}

	Log = logger.Zerolog()

	return logger, nil
}

// Middleware is the HTTP access log.
// It records status, bytes written and latency of each request together with
// the chi request id, and writes one entry per request to the global Log.
func Middleware(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		responseData := &responseData{
			status: http.StatusOK,
			size:   0,
		}
		lw := loggingResponseWriter{
			ResponseWriter: w,
			responseData:   responseData,
		}
		next.ServeHTTP(&lw, r)

		Log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("uri", r.RequestURI).
			Str("method", r.Method).
			Str("duration", time.Since(start).String()).
			Int("status", responseData.status).
			Int("size", responseData.size).
			Msg("got HTTP request")
	}

	return http.HandlerFunc(fn)
}

type responseData struct {
	status int
	size   int
}

type loggingResponseWriter struct {
	http.ResponseWriter
	responseData *responseData
}

// Write forwards bytes to the underlying writer and counts them.
func (r *loggingResponseWriter) Write(b []byte) (int, error) {
	size, err := r.ResponseWriter.Write(b)
	r.responseData.size += size
	return size, err
}

// WriteHeader forwards the status code and remembers it for the access log.
func (r *loggingResponseWriter) WriteHeader(statusCode int) {
	r.ResponseWriter.WriteHeader(statusCode)
	r.responseData.status = statusCode
}
