package observability

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Options configures the logrus-backed logger.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // text or json
	Output io.Writer
}

type logrusLogger struct {
	entry *logrus.Entry
}

// NewLogrus builds a Logger on top of a dedicated logrus instance.
func NewLogrus(opts Options) (Logger, error) {
	l := logrus.New()
	if opts.Output != nil {
		l.SetOutput(opts.Output)
	} else {
		l.SetOutput(os.Stderr)
	}
	level := opts.Level
	if level == "" {
		level = "warn"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	l.SetLevel(lvl)
	switch strings.ToLower(opts.Format) {
	case "", "text":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("unknown log format %q", opts.Format)
	}
	return &logrusLogger{entry: logrus.NewEntry(l)}, nil
}

// LevelForVerbosity maps a -v count to a logrus level name.
func LevelForVerbosity(v int) string {
	switch {
	case v <= 0:
		return "warn"
	case v == 1:
		return "info"
	default:
		return "debug"
	}
}

func (l *logrusLogger) fields(fields []Field) *logrus.Entry {
	if len(fields) == 0 {
		return l.entry
	}
	data := make(logrus.Fields, len(fields))
	for _, f := range fields {
		switch v := f.Value().(type) {
		case nil:
		case error:
			data[f.Key()] = v.Error()
		default:
			data[f.Key()] = v
		}
	}
	return l.entry.WithFields(data)
}

func (l *logrusLogger) Debug(msg string, fields ...Field) { l.fields(fields).Debug(msg) }
func (l *logrusLogger) Info(msg string, fields ...Field)  { l.fields(fields).Info(msg) }
func (l *logrusLogger) Warn(msg string, fields ...Field)  { l.fields(fields).Warn(msg) }
func (l *logrusLogger) Error(msg string, fields ...Field) { l.fields(fields).Error(msg) }

func (l *logrusLogger) With(fields ...Field) Logger {
	return &logrusLogger{entry: l.fields(fields)}
}
