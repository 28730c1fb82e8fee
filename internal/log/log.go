package log

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
)

const maxFieldLength = 61

var rootLogger = logrus.NewEntry(logrus.StandardLogger())

type ctxLogKey struct{}

// WithLogger adds the specified logger to the context
func WithLogger(ctx context.Context, logger *logrus.Entry) context.Context {
	return context.WithValue(ctx, ctxLogKey{}, logger)
}

// WithLogField adds the specified field to the logger in the context.
// Long values are truncated so a large payload cannot flood the log line.
func WithLogField(ctx context.Context, key, value string) context.Context {
	if len(value) > maxFieldLength {
		n := maxFieldLength
		for n > 0 && !utf8.RuneStart(value[n]) {
			n--
		}
		value = value[0:n] + "..."
	}
	return WithLogger(ctx, loggerFromContext(ctx).WithField(key, value))
}

// L returns the logger for the context, tagged with the active trace id when there is one.
func L(ctx context.Context) *logrus.Entry {
	logger := loggerFromContext(ctx)
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		logger = logger.WithField("trace_id", sc.TraceID().String())
	}
	return logger
}

func loggerFromContext(ctx context.Context) *logrus.Entry {
	if ctx == nil {
		return rootLogger
	}
	if logger, ok := ctx.Value(ctxLogKey{}).(*logrus.Entry); ok && logger != nil {
		return logger
	}
	return rootLogger
}

// SetLevel sets the global log level, falling back to info for unknown names
func SetLevel(level string) {
	switch strings.ToLower(level) {
	case "error":
		logrus.SetLevel(logrus.ErrorLevel)
	case "warn", "warning":
		logrus.SetLevel(logrus.WarnLevel)
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "trace":
		logrus.SetLevel(logrus.TraceLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}
}

type Formatting struct {
	JSON bool
	UTC  bool
}

type utcFormatter struct {
	logrus.Formatter
}

func (f *utcFormatter) Format(e *logrus.Entry) ([]byte, error) {
	e.Time = e.Time.UTC()
	return f.Formatter.Format(e)
}

func SetFormatting(format Formatting) {
	var formatter logrus.Formatter
	if format.JSON {
		formatter = &logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"}
	} else {
		formatter = &logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02T15:04:05.000Z07:00"}
	}
	if format.UTC {
		formatter = &utcFormatter{Formatter: formatter}
	}
	logrus.SetFormatter(formatter)
}
