package obs

import (
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/throttlite/throttlite/internal/config"
	"github.com/throttlite/throttlite/internal/throttle"
)

func SetupLogger(level string, file config.LogFile) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano

	var out io.Writer = os.Stdout
	if file.Enabled {
		rotating := &lumberjack.Logger{
			Filename:   file.Path,
			MaxSize:    file.MaxSizeMB,
			MaxBackups: file.MaxBackups,
		}
		out = zerolog.MultiLevelWriter(os.Stdout, rotating)
	}

	return zerolog.New(out).With().Timestamp().Logger().Level(lvl)
}

// RequestID middleware: uses X-Request-ID if present, else generates one.
func RequestID() func(http.Handler) http.Handler {
	return hlog.RequestIDHandler("req_id", "X-Request-ID")
}

// Logger returns a middleware that logs per-request with duration and status.
func Logger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		h := hlog.NewHandler(logger)(
			hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
				hlog.FromRequest(r).Info().
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Str("remote", r.RemoteAddr).
					Int("status", status).
					Int("size", size).
					Dur("dur", duration).
					Msg("req")
			})(
				hlog.UserAgentHandler("ua")(
					hlog.RequestIDHandler("req_id", "X-Request-ID")(next),
				),
			),
		)
		return h
	}
}

// DecisionLogger returns a throttle observer that logs every accept/throttle
// outcome at debug level, keyed for traceability.
func DecisionLogger(logger zerolog.Logger) throttle.Observer {
	return func(d throttle.Decision) {
		ev := logger.Debug().
			Str("key", d.Key).
			Str("event_id", d.EventID).
			Int64("ts", d.Timestamp).
			Int64("window", d.Window).
			Bool("accepted", d.Accepted)
		if !d.FirstSeen {
			ev = ev.Int64("since_last", d.Timestamp-d.Last)
		}
		ev.Msg("decision")
	}
}
