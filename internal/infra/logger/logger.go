// internal/infra/logger/logger.go
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"alarm_clock_bot/internal/infra/config"

	"github.com/sirupsen/logrus"
)

// Log is the process-wide logger. Init configures it from the application config.
var Log = logrus.New()

// Init configures Log for the given configuration and returns it.
func Init(cfg *config.AppConfig) *logrus.Logger {
	if err := Configure(Log, cfg.LogLevel, cfg.Environment, os.Stdout); err != nil {
		Log.WithError(err).Warn("Falling back to info level")
	}
	Log.WithFields(logrus.Fields{
		"level":       Log.GetLevel().String(),
		"environment": cfg.Environment,
	}).Debug("Logger initialized")
	return Log
}

// Configure sets output, format and level of l. An unknown level leaves l at info and is
// reported as an error.
func Configure(l *logrus.Logger, level, environment string, out io.Writer) error {
	l.SetOutput(out)
	l.SetFormatter(formatterFor(environment))

	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		l.SetLevel(logrus.InfoLevel)
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	l.SetLevel(lvl)
	// File and line only when tracing, it is costly.
	l.SetReportCaller(lvl == logrus.TraceLevel)
	return nil
}

func formatterFor(environment string) logrus.Formatter {
	switch strings.ToLower(environment) {
	case "production", "staging":
		return &logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00", // ISO8601
			FieldMap:        logrus.FieldMap{logrus.FieldKeyMsg: "message"},
		}
	default:
		return &logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		}
	}
}

// Component returns an entry of Log tagged with the component name.
func Component(name string) *logrus.Entry {
	return Log.WithField("component", name)
}
