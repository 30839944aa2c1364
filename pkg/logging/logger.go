package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
	"time"
)

// LogLevel orders entries by severity.
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}

func (l LogLevel) String() string {
	if l < DebugLevel || int(l) >= len(levelNames) {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// ParseLevel maps a LOG_LEVEL value to a LogLevel. Unknown values fall back to info.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Fields are the structured key/values attached to an entry.
type Fields map[string]interface{}

type contextKey int

const requestIDKey contextKey = iota

// WithRequestID returns a context carrying the request ID that log entries pick up.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestID returns the request ID stored in ctx, if any.
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// Entry is one JSON log line.
type Entry struct {
	Timestamp  time.Time `json:"timestamp"`
	Level      string    `json:"level"`
	Service    string    `json:"service"`
	Version    string    `json:"version"`
	Hostname   string    `json:"hostname"`
	Message    string    `json:"message"`
	Fields     Fields    `json:"fields,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
	File       string    `json:"file,omitempty"`
	Line       int       `json:"line,omitempty"`
	Function   string    `json:"function,omitempty"`
	Error      string    `json:"error,omitempty"`
	StackTrace string    `json:"stack_trace,omitempty"`
}

// sink is shared by a logger and every logger derived from it with WithFields.
type sink struct {
	mu    sync.Mutex
	out   io.Writer
	level LogLevel
	exit  func(int)
}

func (s *sink) enabled(level LogLevel) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return level >= s.level
}

func (s *sink) write(line []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.out.Write(line)
}

// StructuredLogger writes one JSON object per line. Error and fatal entries
// carry the caller; fatal entries also carry a stack trace.
type StructuredLogger struct {
	sink     *sink
	service  string
	version  string
	hostname string
	base     Fields
}

// NewStructuredLogger returns a logger writing to stdout.
func NewStructuredLogger(service, version string, level LogLevel) *StructuredLogger {
	hostname, _ := os.Hostname()
	return &StructuredLogger{
		sink:     &sink{out: os.Stdout, level: level, exit: os.Exit},
		service:  service,
		version:  version,
		hostname: hostname,
	}
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() *StructuredLogger {
	l := NewStructuredLogger("nop", "0", FatalLevel+1)
	l.sink.out = io.Discard
	return l
}

// SetOutput redirects this logger and all loggers derived from it.
func (l *StructuredLogger) SetOutput(w io.Writer) {
	l.sink.mu.Lock()
	l.sink.out = w
	l.sink.mu.Unlock()
}

// SetLevel changes the minimum level for this logger and all loggers derived from it.
func (l *StructuredLogger) SetLevel(level LogLevel) {
	l.sink.mu.Lock()
	l.sink.level = level
	l.sink.mu.Unlock()
}

// WithFields returns a logger that adds fields to every entry. Per-call
// fields win on key collisions.
func (l *StructuredLogger) WithFields(fields Fields) *StructuredLogger {
	child := *l
	child.base = merge(l.base, fields)
	return &child
}

func (l *StructuredLogger) Debug(ctx context.Context, message string, fields Fields) {
	l.emit(ctx, DebugLevel, message, fields, nil)
}

func (l *StructuredLogger) Info(ctx context.Context, message string, fields Fields) {
	l.emit(ctx, InfoLevel, message, fields, nil)
}

func (l *StructuredLogger) Warn(ctx context.Context, message string, fields Fields) {
	l.emit(ctx, WarnLevel, message, fields, nil)
}

// Error logs err together with the caller's location.
func (l *StructuredLogger) Error(ctx context.Context, message string, fields Fields, err error) {
	l.emit(ctx, ErrorLevel, message, fields, err)
}

// Fatal logs like Error plus a stack trace, then exits with status 1.
func (l *StructuredLogger) Fatal(ctx context.Context, message string, fields Fields, err error) {
	l.emit(ctx, FatalLevel, message, fields, err)
	l.sink.exit(1)
}

// emit must be called directly from an exported level method; the caller
// lookup skips exactly those two frames.
func (l *StructuredLogger) emit(ctx context.Context, level LogLevel, message string, fields Fields, err error) {
	if !l.sink.enabled(level) {
		return
	}

	e := Entry{
		Timestamp: time.Now().UTC(),
		Level:     level.String(),
		Service:   l.service,
		Version:   l.version,
		Hostname:  l.hostname,
		Message:   message,
		Fields:    merge(l.base, fields),
		RequestID: RequestID(ctx),
	}
	if level >= ErrorLevel {
		e.File, e.Line, e.Function = caller(3)
		if err != nil {
			e.Error = err.Error()
		}
		if level == FatalLevel {
			e.StackTrace = string(debug.Stack())
		}
	}

	line, marshalErr := json.Marshal(e)
	if marshalErr != nil {
		// a field value json cannot encode; fall back to a plain line
		fmt.Fprintf(os.Stderr, "%s [%s] %s: %v (log marshal failed: %v)\n",
			e.Timestamp.Format(time.RFC3339), e.Level, message, fields, marshalErr)
		return
	}
	l.sink.write(append(line, '\n'))
}

func caller(skip int) (file string, line int, function string) {
	pc, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "", 0, ""
	}
	if fn := runtime.FuncForPC(pc); fn != nil {
		function = fn.Name()
	}
	return file, line, function
}

func merge(base, extra Fields) Fields {
	if len(base) == 0 {
		return extra
	}
	out := make(Fields, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
