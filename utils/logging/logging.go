package logging

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	slogmulti "github.com/samber/slog-multi"
	"github.com/segmentio/ksuid"
)

// Setup installs the default logger: structured JSON to the given file for
// log shipping, human readable text to stderr.
func Setup(logPath string) (io.Closer, error) {
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0666)
	if err != nil {
		return nil, fmt.Errorf("error opening log file %v: %w", logPath, err)
	}

	logger := slog.New(slogmulti.Fanout(
		slog.NewJSONHandler(logFile, nil),
		slog.NewTextHandler(os.Stderr, nil),
	))
	slog.SetDefault(logger)

	return logFile, nil
}

// RequestIdMiddleware tags every request with a unique id and logs its
// method and path under that id.
func RequestIdMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestId := ksuid.New().String()
		w.Header().Set("X-Request-Id", requestId)
		slog.Info("request received", "request_id", requestId, "method", r.Method, "url", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
