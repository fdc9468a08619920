package log

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

type Config struct {
	LogLevel  string
	LogFormat string
	ErrorFile string
}

// InitLogger builds the process logger: leveled logfmt or JSON on stderr,
// with everything at error level mirrored to cfg.ErrorFile. The returned
// closer releases the error sink.
func InitLogger(cfg Config) (log.Logger, func() error, error) {
	console := newBasicLogger(cfg.LogFormat, os.Stderr)
	console = level.NewFilter(console, allowLevel(cfg.LogLevel))

	closer := func() error { return nil }

	if cfg.ErrorFile != "" {
		f, err := os.OpenFile(cfg.ErrorFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, err
		}
		errSink := newBasicLogger(cfg.LogFormat, f)
		console = newErrorTee(console, errSink)
		closer = f.Close
	}

	return console, closer, nil
}

func newBasicLogger(format string, w *os.File) log.Logger {
	var logger log.Logger
	if format == "json" {
		logger = log.NewJSONLogger(log.NewSyncWriter(w))
	} else {
		logger = log.NewLogfmtLogger(log.NewSyncWriter(w))
	}

	return log.With(logger, "ts", log.DefaultTimestampUTC)
}

func allowLevel(l string) level.Option {
	switch strings.ToLower(l) {
	case "debug":
		return level.AllowDebug()
	case "warn":
		return level.AllowWarn()
	case "error":
		return level.AllowError()
	default:
		return level.AllowInfo()
	}
}

// errorTee forwards every entry to the console logger and duplicates
// error-level entries to the error sink.
type errorTee struct {
	console log.Logger
	errors  log.Logger
}

func newErrorTee(console, errors log.Logger) log.Logger {
	return &errorTee{console: console, errors: errors}
}

func (t *errorTee) Log(keyvals ...interface{}) error {
	if keyvalValue(keyvals, level.Key()) == level.ErrorValue() {
		_ = t.errors.Log(keyvals...)
	}
	return t.console.Log(keyvals...)
}

// suppressLogger drops entries whose msg contains every configured
// substring. It replaces a process-wide message filter: the owner of the
// pipeline decides at startup which noisy patterns to silence.
type suppressLogger struct {
	next     log.Logger
	patterns []string
}

func WithSuppression(next log.Logger, patterns ...string) log.Logger {
	return &suppressLogger{next: next, patterns: patterns}
}

func (s *suppressLogger) Log(keyvals ...interface{}) error {
	if len(s.patterns) > 0 {
		msg := fmt.Sprintf("%v", keyvalValue(keyvals, "msg"))
		matched := true
		for _, p := range s.patterns {
			if !strings.Contains(msg, p) {
				matched = false
				break
			}
		}
		if matched {
			return nil
		}
	}
	return s.next.Log(keyvals...)
}

func keyvalValue(keyvals []interface{}, key interface{}) interface{} {
	for i := 0; i+1 < len(keyvals); i += 2 {
		if keyvals[i] == key {
			return keyvals[i+1]
		}
	}
	return nil
}
