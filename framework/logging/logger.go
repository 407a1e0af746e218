// Package logging provides the labelled application logger.
//
// Every component logs through a child of the root logger created with
// CreateLogger. Labels nest with a dot, so the App logger's "Router" child
// logs as "App.Router".
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Options configures the root logger.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // text or json
	// Dir, when set, receives debug.log (every entry) and error.log
	// (error and above).
	Dir string
	// Output defaults to os.Stderr.
	Output io.Writer
}

// Logger is a labelled wrapper around a logrus entry.
type Logger struct {
	entry *logrus.Entry
	label string
	// shared by the root and all its children
	files *fileSet
}

type fileSet struct {
	once    sync.Once
	closers []io.Closer
	err     error
}

// New builds the root logger.
func New(opts Options) (*Logger, error) {
	base := logrus.New()

	level := logrus.DebugLevel
	if opts.Level != "" {
		parsed, err := logrus.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("parse log level %q: %w", opts.Level, err)
		}
		level = parsed
	}
	base.SetLevel(level)

	switch strings.ToLower(opts.Format) {
	case "json":
		base.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02 15:04:05"})
	default:
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"})
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	l := &Logger{}
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create logs dir: %w", err)
		}
		debugFile, err := openLog(filepath.Join(opts.Dir, "debug.log"))
		if err != nil {
			return nil, err
		}
		errorFile, err := openLog(filepath.Join(opts.Dir, "error.log"))
		if err != nil {
			_ = debugFile.Close()
			return nil, err
		}
		out = io.MultiWriter(out, debugFile)
		base.AddHook(&levelFileHook{
			writer:    errorFile,
			levels:    []logrus.Level{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel},
			formatter: &logrus.JSONFormatter{TimestampFormat: "2006-01-02 15:04:05"},
		})
		l.files = &fileSet{closers: []io.Closer{debugFile, errorFile}}
	}
	base.SetOutput(out)

	l.entry = logrus.NewEntry(base)
	return l, nil
}

// NewDefault returns a debug-level text logger on stderr labelled label.
// Used in tests and as the fallback when no logger is injected.
func NewDefault(label string) *Logger {
	base := logrus.New()
	base.SetLevel(logrus.DebugLevel)
	l := &Logger{entry: logrus.NewEntry(base)}
	return l.CreateLogger(label)
}

// CreateLogger derives a child logger. Labels nest as parent.child.
func (l *Logger) CreateLogger(label string) *Logger {
	full := label
	if l.label != "" {
		full = l.label + "." + label
	}
	return &Logger{
		entry: l.entry.WithField("component", full),
		label: full,
		files: l.files,
	}
}

// Label returns the full dotted label.
func (l *Logger) Label() string { return l.label }

// Entry exposes the underlying logrus entry for structured fields.
func (l *Logger) Entry() *logrus.Entry { return l.entry }

func (l *Logger) WithField(key string, value any) *logrus.Entry { return l.entry.WithField(key, value) }
func (l *Logger) WithFields(fields logrus.Fields) *logrus.Entry { return l.entry.WithFields(fields) }
func (l *Logger) WithError(err error) *logrus.Entry             { return l.entry.WithError(err) }

func (l *Logger) Debug(args ...any)                 { l.entry.Debug(args...) }
func (l *Logger) Debugf(format string, args ...any) { l.entry.Debugf(format, args...) }
func (l *Logger) Info(args ...any)                  { l.entry.Info(args...) }
func (l *Logger) Infof(format string, args ...any)  { l.entry.Infof(format, args...) }
func (l *Logger) Warn(args ...any)                  { l.entry.Warn(args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.entry.Warnf(format, args...) }
func (l *Logger) Error(args ...any)                 { l.entry.Error(args...) }
func (l *Logger) Errorf(format string, args ...any) { l.entry.Errorf(format, args...) }

// Writer returns a pipe writer logging each line at info level. The caller
// closes it.
func (l *Logger) Writer() *io.PipeWriter { return l.entry.Writer() }

// Close releases the log files opened by New. Closing any logger of a tree
// closes them for the whole tree; later calls are no-ops.
func (l *Logger) Close() error {
	if l.files == nil {
		return nil
	}
	l.files.once.Do(func() {
		for _, f := range l.files.closers {
			if err := f.Close(); err != nil && l.files.err == nil {
				l.files.err = err
			}
		}
	})
	return l.files.err
}

func openLog(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}

// levelFileHook copies entries of the given levels to a separate writer.
type levelFileHook struct {
	writer    io.Writer
	levels    []logrus.Level
	formatter logrus.Formatter
}

func (h *levelFileHook) Levels() []logrus.Level { return h.levels }

func (h *levelFileHook) Fire(entry *logrus.Entry) error {
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}
	_, err = h.writer.Write(line)
	return err
}
