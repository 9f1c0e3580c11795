package logger

import (
	"context"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger defines the logging interface.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
	Sync() error
}

// LogEntry is one log line as kept by a LogWriter.
type LogEntry struct {
	Timestamp int64          `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Caller    string         `json:"caller,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	UserID    string         `json:"user_id,omitempty"`
}

// LogWriter stores log entries next to the stream output.
type LogWriter interface {
	Write(entry LogEntry) error
	Close() error
}

// zapLogger wraps zap.Logger to implement Logger interface.
type zapLogger struct {
	logger *zap.Logger
}

var (
	defaultMu     sync.RWMutex
	defaultLogger Logger
)

// New creates a new Logger with the given configuration.
func New(cfg Config) (Logger, error) {
	level := parseLevel(cfg.Level)

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	var encoder zapcore.Encoder
	if cfg.Environment == "production" {
		encoderConfig := zap.NewProductionEncoderConfig()
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoderConfig := zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(out), level)
	if cfg.Writer != nil {
		core = zapcore.NewTee(core, newStoreCore(cfg.Writer, level))
	}
	logger := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))

	return &zapLogger{logger: logger}, nil
}

// NewNop returns a Logger that discards everything. Used by tests.
func NewNop() Logger {
	return &zapLogger{logger: zap.NewNop()}
}

// Default returns the default logger, initializing it if needed.
func Default() Logger {
	defaultMu.RLock()
	l := defaultLogger
	defaultMu.RUnlock()
	if l != nil {
		return l
	}

	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLogger == nil {
		defaultLogger, _ = New(DefaultConfig())
	}
	return defaultLogger
}

// SetDefault sets the default logger.
func SetDefault(l Logger) {
	defaultMu.Lock()
	defaultLogger = l
	defaultMu.Unlock()
}

func (l *zapLogger) Debug(msg string, fields ...Field) {
	l.logger.Debug(msg, fields...)
}

func (l *zapLogger) Info(msg string, fields ...Field) {
	l.logger.Info(msg, fields...)
}

func (l *zapLogger) Warn(msg string, fields ...Field) {
	l.logger.Warn(msg, fields...)
}

func (l *zapLogger) Error(msg string, fields ...Field) {
	l.logger.Error(msg, fields...)
}

func (l *zapLogger) With(fields ...Field) Logger {
	return &zapLogger{logger: l.logger.With(fields...)}
}

func (l *zapLogger) Sync() error {
	return l.logger.Sync()
}

// Context key for logger.
type contextKey struct{}

// WithContext returns a context with the logger attached.
func WithContext(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// FromContext retrieves the logger from context, or returns the default logger.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(contextKey{}).(Logger); ok {
		return l
	}
	return Default()
}

// storeCore is a zapcore.Core that hands entries to a LogWriter.
type storeCore struct {
	zapcore.LevelEnabler
	writer LogWriter
	fields []Field
}

func newStoreCore(writer LogWriter, level zapcore.Level) zapcore.Core {
	return &storeCore{LevelEnabler: level, writer: writer}
}

func (c *storeCore) With(fields []zapcore.Field) zapcore.Core {
	return &storeCore{
		LevelEnabler: c.LevelEnabler,
		writer:       c.writer,
		fields:       append(append([]Field{}, c.fields...), fields...),
	}
}

func (c *storeCore) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return ce.AddCore(entry, c)
	}
	return ce
}

func (c *storeCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	var requestID, userID string
	for _, f := range append(append([]Field{}, c.fields...), fields...) {
		f.AddTo(enc)
		switch f.Key {
		case "request_id":
			requestID = f.String
		case "user_id":
			userID = f.String
		}
	}

	return c.writer.Write(LogEntry{
		Timestamp: entry.Time.UnixMilli(),
		Level:     entry.Level.String(),
		Message:   entry.Message,
		Caller:    entry.Caller.String(),
		Fields:    enc.Fields,
		RequestID: requestID,
		UserID:    userID,
	})
}

func (c *storeCore) Sync() error {
	return nil
}
