package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is a thin wrapper around logrus that carries structured fields
// for a single component of the service.
type Logger struct {
	entry *logrus.Entry
}

// Init configures the global logrus settings.
// level: the minimum level that will be emitted (e.g. logrus.InfoLevel).
func Init(level logrus.Level) {
	// JSON output so log lines can be collected and queried downstream.
	logrus.SetFormatter(&logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})

	logrus.SetOutput(os.Stdout)
	logrus.SetLevel(level)
}

// New creates a Logger bound to a component name.
func New(component string) *Logger {
	return &Logger{
		entry: logrus.WithFields(logrus.Fields{
			"component": component,
		}),
	}
}

// WithSpace returns a Logger with the tenant space name attached.
func (l *Logger) WithSpace(space string) *Logger {
	return &Logger{entry: l.entry.WithField("space", space)}
}

// WithError attaches an error to the log entry.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{entry: l.entry.WithField("error", err.Error())}
}

// WithField attaches an arbitrary field to the log entry.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

// Info logs a message at info level.
func (l *Logger) Info(message string) {
	l.entry.Info(message)
}

// Warn logs a message at warning level.
func (l *Logger) Warn(message string) {
	l.entry.Warn(message)
}

// Error logs a message at error level.
func (l *Logger) Error(message string) {
	l.entry.Error(message)
}

// Debug logs a message at debug level.
func (l *Logger) Debug(message string) {
	l.entry.Debug(message)
}

// Fatal logs a message at fatal level and terminates the process.
func (l *Logger) Fatal(message string) {
	l.entry.Fatal(message)
}
