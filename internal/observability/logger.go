// Package observability provides sop's structured logging setup: a
// slog.Logger with sensitive-field redaction, shared across the CLI run.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"regexp"
	"time"

	"github.com/m-mizutani/masq"
)

// urlSensitiveParamPattern matches sensitive query parameters embedded in
// logged URL strings (e.g. a source URL passed to "parse").
var urlSensitiveParamPattern = regexp.MustCompile(`(?i)(password|secret|token|apikey|api_key|credential)=([^&\s"']+)`)

// LevelTrace is one step below slog.LevelDebug, for per-quad tracing that
// would otherwise flood debug output.
const LevelTrace = slog.LevelDebug - 4

// GlobalLogLevel is the shared log level; NewLoggerWithWriter sets it and
// SetLogLevel changes it at runtime.
var GlobalLogLevel = &slog.LevelVar{}

// Config configures NewLogger. Level is one of trace/debug/info/warn/error;
// Format is "text" or "json".
type Config struct {
	Level     string
	Format    string
	AddSource bool
}

// NewLogger builds a slog.Logger writing to stderr, per cfg.
func NewLogger(cfg Config) *slog.Logger {
	return NewLoggerWithWriter(cfg, os.Stderr)
}

// NewLoggerWithWriter is NewLogger with an explicit writer, for tests.
func NewLoggerWithWriter(cfg Config, w io.Writer) *slog.Logger {
	GlobalLogLevel.Set(parseLevel(cfg.Level))
	redactor := sensitiveFieldRedactor()

	opts := &slog.HandlerOptions{
		Level:     GlobalLogLevel,
		AddSource: cfg.AddSource,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			a = redactor(groups, a)
			if a.Value.Kind() == slog.KindString {
				if redacted := redactURLParams(a.Value.String()); redacted != a.Value.String() {
					a = slog.String(a.Key, redacted)
				}
			}
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
					return slog.String(slog.LevelKey, "TRACE")
				}
			}
			return a
		},
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// sensitiveFieldRedactor redacts common credential-bearing field names.
func sensitiveFieldRedactor() func(groups []string, a slog.Attr) slog.Attr {
	return masq.New(
		masq.WithFieldName("password"),
		masq.WithFieldName("Password"),
		masq.WithFieldName("secret"),
		masq.WithFieldName("Secret"),
		masq.WithFieldName("token"),
		masq.WithFieldName("Token"),
		masq.WithFieldName("apikey"),
		masq.WithFieldName("ApiKey"),
		masq.WithFieldName("api_key"),
		masq.WithFieldName("credential"),
		masq.WithFieldName("Credential"),
	)
}

func redactURLParams(s string) string {
	return urlSensitiveParamPattern.ReplaceAllString(s, "$1=[REDACTED]")
}

func parseLevel(level string) slog.Level {
	switch level {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetLogLevel changes the global log level at runtime.
func SetLogLevel(level string) { GlobalLogLevel.Set(parseLevel(level)) }

// SetDefault installs logger as the slog default, so library code calling
// slog.Info/Error without a specific logger still goes through it.
func SetDefault(logger *slog.Logger) { slog.SetDefault(logger) }

// TimedOperation logs an operation's start and, once the returned func is
// called, its completion and duration. Used to log overall pipeline runtime.
func TimedOperation(ctx context.Context, logger *slog.Logger, operation string) func() {
	start := time.Now()
	logger.InfoContext(ctx, "operation started", slog.String("operation", operation))
	return func() {
		logger.InfoContext(ctx, "operation completed",
			slog.String("operation", operation),
			slog.Duration("duration", time.Since(start)),
		)
	}
}
