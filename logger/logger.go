package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Fields type alias for logrus.Fields to maintain compatibility
type Fields map[string]interface{}

// Log wraps logrus.Logger with additional functionality. A Log is built once
// at process start and handed to whoever needs it; there is no package-level
// instance.
type Log struct {
	*logrus.Logger

	closer io.Closer
	warns  *int64
	errors *int64
}

// Entry wraps logrus.Entry with additional functionality
type Entry struct {
	*logrus.Entry

	warns  *int64
	errors *int64
}

func callerPrettyfier(f *runtime.Frame) (string, string) {
	file := filepath.Base(f.File)
	return "", fmt.Sprintf("%s:%d", file, f.Line)
}

// New returns a logger writing text to stdout at info level.
func New() *Log {
	logger := logrus.New()
	logger.SetReportCaller(true)
	logger.SetLevel(logrus.InfoLevel)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:    true,
		TimestampFormat:  time.RFC3339,
		CallerPrettyfier: callerPrettyfier,
	})
	logger.AddHook(&callerHook{})
	return &Log{Logger: logger, warns: new(int64), errors: new(int64)}
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *Log {
	l := New()
	l.SetOutput(io.Discard)
	return l
}

func (l *Log) entry(e *logrus.Entry) *Entry {
	return &Entry{Entry: e, warns: l.warns, errors: l.errors}
}

func (l *Log) WithComponent(component string) *Entry {
	return l.entry(l.Logger.WithField("component", component))
}

func (l *Log) WithFields(fields Fields) *Entry {
	return l.entry(l.Logger.WithFields(logrus.Fields(fields)))
}

func (l *Log) WithError(err error) *Entry {
	return l.entry(l.Logger.WithError(err))
}

// WithEnv attaches environment variable values to the log entry
func (l *Log) WithEnv(envs ...string) *Entry {
	fields := logrus.Fields{}
	for _, env := range envs {
		fields[env] = os.Getenv(env)
	}
	return l.entry(l.Logger.WithFields(fields))
}

// Warnings returns how many warnings were logged through an Entry.
func (l *Log) Warnings() int64 {
	return atomic.LoadInt64(l.warns)
}

// Errors returns how many errors were logged through an Entry.
func (l *Log) Errors() int64 {
	return atomic.LoadInt64(l.errors)
}

func (e *Entry) wrap(next *logrus.Entry) *Entry {
	return &Entry{Entry: next, warns: e.warns, errors: e.errors}
}

func (e *Entry) WithComponent(component string) *Entry {
	return e.wrap(e.Entry.WithField("component", component))
}

func (e *Entry) WithFields(fields Fields) *Entry {
	return e.wrap(e.Entry.WithFields(logrus.Fields(fields)))
}

func (e *Entry) WithError(err error) *Entry {
	return e.wrap(e.Entry.WithError(err))
}

// WithEnv attaches environment variable values to the log entry
func (e *Entry) WithEnv(envs ...string) *Entry {
	fields := logrus.Fields{}
	for _, env := range envs {
		fields[env] = os.Getenv(env)
	}
	return e.wrap(e.Entry.WithFields(fields))
}

// Convert Entry methods to return our Entry type
func (e *Entry) Info(args ...interface{}) {
	e.Entry.Info(args...)
}

func (e *Entry) Warn(args ...interface{}) {
	if e.warns != nil {
		atomic.AddInt64(e.warns, 1)
	}
	e.Entry.Warn(args...)
}

func (e *Entry) Debug(args ...interface{}) {
	e.Entry.Debug(args...)
}

func (e *Entry) Error(args ...interface{}) {
	if e.errors != nil {
		atomic.AddInt64(e.errors, 1)
	}
	e.Entry.Error(args...)
}

// LogMetric writes a metric as a structured log line.
func (e *Entry) LogMetric(component string, metric string, value interface{}, metricType string, fields Fields) {
	if fields == nil {
		fields = make(Fields)
	}
	if metricType == "" {
		metricType = "counter"
	}
	fields["metric"] = metric
	fields["value"] = value
	fields["metric_type"] = metricType

	e.WithComponent(component).WithFields(fields).Info("metric")
}

// Configure sets up the logger with the provided configuration. A file
// output is truncated so every run starts a fresh log; with maxAge > 0 the
// file is managed by lumberjack and the previous run's file is rotated away
// instead.
func (l *Log) Configure(level string, format string, output string, maxAge int) error {
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		level = env
	}

	level = strings.ToLower(level)
	switch level {
	case "report":
		l.SetLevel(logrus.InfoLevel)
	default:
		if lvl, err := logrus.ParseLevel(level); err == nil {
			l.SetLevel(lvl)
		} else {
			return fmt.Errorf("invalid log level '%s'", level)
		}
	}

	// Ensure caller info is included
	l.SetReportCaller(true)

	// Set formatter
	switch format {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
			CallerPrettyfier: callerPrettyfier,
		})
	case "text", "":
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:    true,
			TimestampFormat:  time.RFC3339,
			DisableColors:    output != "stdout" && output != "stderr" && output != "",
			CallerPrettyfier: callerPrettyfier,
		})
	default:
		return fmt.Errorf("invalid log format '%s'", format)
	}

	// Set output
	switch output {
	case "stdout", "":
		l.SetOutput(os.Stdout)
	case "stderr":
		l.SetOutput(os.Stderr)
	default:
		// Assume it's a file path
		if dir := filepath.Dir(output); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("failed to create log directory '%s': %w", dir, err)
			}
		}
		if maxAge > 0 {
			lj := &lumberjack.Logger{
				Filename: output,
				MaxAge:   maxAge,
				MaxSize:  100,
				Compress: true,
			}
			if _, err := os.Stat(output); err == nil {
				if err := lj.Rotate(); err != nil {
					return fmt.Errorf("failed to rotate log file '%s': %w", output, err)
				}
			}
			l.setSink(lj, lj)
		} else {
			file, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
			if err != nil {
				return fmt.Errorf("failed to open log file '%s': %w", output, err)
			}
			l.setSink(file, file)
		}
	}

	return nil
}

func (l *Log) setSink(w io.Writer, c io.Closer) {
	if l.closer != nil {
		_ = l.closer.Close()
	}
	l.Logger.SetOutput(w)
	l.closer = c
}

// Close releases a file sink opened by Configure.
func (l *Log) Close() error {
	if l.closer == nil {
		return nil
	}
	err := l.closer.Close()
	l.closer = nil
	return err
}

// Performance logging helper
func LogPerformanceEntry(entry *Entry, component string, operation string, duration time.Duration, fields Fields) {
	if fields == nil {
		fields = make(Fields)
	}
	fields["duration_ms"] = float64(duration.Nanoseconds()) / 1e6
	fields["operation"] = operation

	entry.WithFields(fields).WithComponent(component).Info("performance metric")
}

// Data flow logging helper
func LogDataFlowEntry(entry *Entry, source string, destination string, recordCount int, dataType string) {
	entry.WithFields(Fields{
		"source":       source,
		"destination":  destination,
		"record_count": recordCount,
		"data_type":    dataType,
		"flow_type":    "data_flow",
	}).Info("data flow metric")
}

// Metric logging helper
func (l *Log) LogMetric(component string, metric string, value interface{}, metricType string, fields Fields) {
	l.WithComponent(component).LogMetric(component, metric, value, metricType, fields)
}

// Set output for logger
func (l *Log) SetOutput(output io.Writer) {
	l.Logger.SetOutput(output)
}

// Set level for logger
func (l *Log) SetLevel(level logrus.Level) {
	l.Logger.SetLevel(level)
}

// Set formatter for logger
func (l *Log) SetFormatter(formatter logrus.Formatter) {
	l.Logger.SetFormatter(formatter)
}
