package occlusion

import (
	"fmt"
	"log"
	"os"
	"sync"
)

// Logger is the logging surface handed to the culling stages.
type Logger interface {
	DebugEnabled() bool
	SetDebug(enabled bool)
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// sinks is shared by a logger and every logger derived with Named.
type sinks struct {
	mu    sync.Mutex
	debug bool
	out   *log.Logger
	err   *log.Logger
}

// DefaultLogger writes "[prefix] LEVEL: msg" lines. DEBUG and INFO go to the
// out logger, WARN and ERROR to the err logger.
type DefaultLogger struct {
	prefix string
	s      *sinks
}

func NewDefaultLogger(prefix string, debug bool) *DefaultLogger {
	flags := log.LstdFlags | log.Lmicroseconds
	return &DefaultLogger{
		prefix: prefix,
		s: &sinks{
			debug: debug,
			out:   log.New(os.Stdout, "", flags),
			err:   log.New(os.Stderr, "", flags),
		},
	}
}

// NewWriterLogger logs every level to a single logger, e.g. a test buffer.
func NewWriterLogger(prefix string, debug bool, l *log.Logger) *DefaultLogger {
	return &DefaultLogger{prefix: prefix, s: &sinks{debug: debug, out: l, err: l}}
}

// Named returns a logger writing to the same sinks under "prefix/name".
// The debug switch stays shared.
func (l *DefaultLogger) Named(name string) *DefaultLogger {
	prefix := name
	if l.prefix != "" {
		prefix = l.prefix + "/" + name
	}
	return &DefaultLogger{prefix: prefix, s: l.s}
}

func (l *DefaultLogger) DebugEnabled() bool {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	return l.s.debug
}

func (l *DefaultLogger) SetDebug(enabled bool) {
	l.s.mu.Lock()
	l.s.debug = enabled
	l.s.mu.Unlock()
}

func (l *DefaultLogger) print(dst *log.Logger, level, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if l.prefix != "" {
		dst.Printf("[%s] %s: %s", l.prefix, level, msg)
		return
	}
	dst.Printf("%s: %s", level, msg)
}

func (l *DefaultLogger) Debugf(format string, args ...any) {
	if l.DebugEnabled() {
		l.print(l.s.out, "DEBUG", format, args...)
	}
}

func (l *DefaultLogger) Infof(format string, args ...any) {
	l.print(l.s.out, "INFO", format, args...)
}

func (l *DefaultLogger) Warnf(format string, args ...any) {
	l.print(l.s.err, "WARN", format, args...)
}

func (l *DefaultLogger) Errorf(format string, args ...any) {
	l.print(l.s.err, "ERROR", format, args...)
}

type nopLogger struct{}

func NewNopLogger() Logger { return nopLogger{} }

func (nopLogger) DebugEnabled() bool    { return false }
func (nopLogger) SetDebug(bool)         {}
func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}
