package logger

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"agora/pkg/errors"
)

var (
	globalLogger *Logger
	mu           sync.RWMutex
)

// Logger wraps zap.SugaredLogger with optional error tracking.
// String fields added through With become tags on captured errors.
type Logger struct {
	*zap.SugaredLogger
	errorTracker errors.Tracker
	tags         map[string]string
}

// Init initializes the global logger.
// env "production" switches to JSON output, anything else gets a colored console encoder.
func Init(level string, env string) error {
	var config zap.Config

	if env == "production" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}
	config.Level = zap.NewAtomicLevelAt(zapLevel)

	logger, err := config.Build(
		zap.AddCallerSkip(1),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	if err != nil {
		return err
	}

	mu.Lock()
	globalLogger = &Logger{SugaredLogger: logger.Sugar()}
	mu.Unlock()
	return nil
}

// SetErrorTracker sets the error tracker for automatic error reporting
func SetErrorTracker(tracker errors.Tracker) {
	l := Get()
	mu.Lock()
	defer mu.Unlock()
	l.errorTracker = tracker
}

// Get returns the global logger
func Get() *Logger {
	mu.RLock()
	l := globalLogger
	mu.RUnlock()
	if l != nil {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if globalLogger == nil {
		logger, _ := zap.NewDevelopment(zap.AddCallerSkip(1))
		globalLogger = &Logger{SugaredLogger: logger.Sugar()}
	}
	return globalLogger
}

// Nop returns a logger that discards everything. Used by tests.
func Nop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}

// Component is shorthand for Get().With("component", name).
func Component(name string) *Logger {
	return Get().With("component", name)
}

// With creates a child logger with additional fields
func (l *Logger) With(args ...interface{}) *Logger {
	return &Logger{
		SugaredLogger: l.SugaredLogger.With(args...),
		errorTracker:  l.errorTracker,
		tags:          mergeTags(l.tags, args),
	}
}

// WithFields creates a child logger with a map of fields
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return l.With(args...)
}

// Debugw logs a message with key-value pairs at debug level
func (l *Logger) Debugw(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Debugw(msg, keysAndValues...)
}

// Infow logs a message with key-value pairs at info level
func (l *Logger) Infow(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Infow(msg, keysAndValues...)
}

// Warnw logs a message with key-value pairs at warn level
func (l *Logger) Warnw(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Warnw(msg, keysAndValues...)
}

// Errorw logs at error level and sends the "error" value (or the message) to the error tracker
func (l *Logger) Errorw(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Errorw(msg, keysAndValues...)
	l.capture(context.Background(), msg, keysAndValues)
}

// ErrorwContext is Errorw for call sites holding a request context, so the
// captured event carries the session from errors.WithSessionID.
func (l *Logger) ErrorwContext(ctx context.Context, msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Errorw(msg, keysAndValues...)
	l.capture(ctx, msg, keysAndValues)
}

// Error logs an error and optionally sends it to error tracker
func (l *Logger) Error(args ...interface{}) {
	l.SugaredLogger.Error(args...)
	l.captureText(fmt.Sprint(args...))
}

// Errorf logs a formatted error and optionally sends it to error tracker
func (l *Logger) Errorf(template string, args ...interface{}) {
	l.SugaredLogger.Errorf(template, args...)
	l.captureText(fmt.Sprintf(template, args...))
}

// ErrorWithContext logs an error with context and sends to error tracker
func (l *Logger) ErrorWithContext(ctx context.Context, err error, tags map[string]string) {
	kv := make([]interface{}, 0, len(tags)*2+2)
	kv = append(kv, "error", err)
	for k, v := range tags {
		kv = append(kv, k, v)
	}
	l.SugaredLogger.Errorw(err.Error(), kv...)

	if l.errorTracker != nil {
		_ = l.errorTracker.CaptureError(ctx, err, mergeTags(l.tags, kv[2:]))
	}
}

// Breadcrumb records a step on the error tracker. No-op without one.
func (l *Logger) Breadcrumb(ctx context.Context, category, message string, data map[string]interface{}) {
	if l.errorTracker != nil {
		l.errorTracker.AddBreadcrumb(ctx, message, category, errors.LevelInfo, data)
	}
}

func (l *Logger) capture(ctx context.Context, msg string, keysAndValues []interface{}) {
	if l.errorTracker == nil {
		return
	}

	var err error
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if key, _ := keysAndValues[i].(string); key == "error" {
			if e, ok := keysAndValues[i+1].(error); ok && e != nil {
				err = errors.Wrap(e, msg)
			}
			break
		}
	}
	if err == nil {
		err = errors.Wrap(errors.ErrInternal, msg)
	}
	_ = l.errorTracker.CaptureError(ctx, err, mergeTags(l.tags, keysAndValues))
}

func (l *Logger) captureText(text string) {
	if l.errorTracker == nil {
		return
	}
	err := errors.Wrapf(errors.ErrInternal, "%s", text)
	_ = l.errorTracker.CaptureError(context.Background(), err, mergeTags(l.tags, nil))
}

// mergeTags copies base and adds the string-valued pairs of keysAndValues.
// Errors and other structured values stay in the log only.
func mergeTags(base map[string]string, keysAndValues []interface{}) map[string]string {
	out := make(map[string]string, len(base)+len(keysAndValues)/2)
	for k, v := range base {
		out[k] = v
	}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		if v, ok := keysAndValues[i+1].(string); ok {
			out[key] = v
		}
	}
	return out
}

// Convenience functions that use the global logger
func Debug(args ...interface{})                   { Get().Debug(args...) }
func Debugf(template string, args ...interface{}) { Get().Debugf(template, args...) }
func Info(args ...interface{})                    { Get().Info(args...) }
func Infof(template string, args ...interface{})  { Get().Infof(template, args...) }
func Warn(args ...interface{})                    { Get().Warn(args...) }
func Warnf(template string, args ...interface{})  { Get().Warnf(template, args...) }

// Error and Errorf sit one frame above the Logger methods.
func Error(args ...interface{}) {
	l := Get()
	l.SugaredLogger.WithOptions(zap.AddCallerSkip(1)).Error(args...)
	l.captureText(fmt.Sprint(args...))
}

func Errorf(template string, args ...interface{}) {
	l := Get()
	l.SugaredLogger.WithOptions(zap.AddCallerSkip(1)).Errorf(template, args...)
	l.captureText(fmt.Sprintf(template, args...))
}

func Fatal(args ...interface{})                   { Get().Fatal(args...) }
func Fatalf(template string, args ...interface{}) { Get().Fatalf(template, args...) }

// Sync flushes any buffered log entries
func Sync() error {
	mu.RLock()
	defer mu.RUnlock()
	if globalLogger != nil {
		return globalLogger.Sync()
	}
	return nil
}
