package senso4s

import "go.uber.org/zap"

// Logger denotes a generic leveled logging facility
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
}

// NullLogger denotes a logger that discards all messages
type NullLogger struct{}

// Debugf fulfils the Logger interface
func (l *NullLogger) Debugf(format string, args ...interface{}) {}

// Infof fulfils the Logger interface
func (l *NullLogger) Infof(format string, args ...interface{}) {}

// Warnf fulfils the Logger interface
func (l *NullLogger) Warnf(format string, args ...interface{}) {}

// Errorf fulfils the Logger interface
func (l *NullLogger) Errorf(format string, args ...interface{}) {}

// Fatalf fulfils the Logger interface
func (l *NullLogger) Fatalf(format string, args ...interface{}) {}

// DefaultLogger denotes a console logger backed by zap
type DefaultLogger struct {
	*zap.SugaredLogger
}

// NewDefaultLogger instantiates a new console logger (optionally with debug
// level output)
func NewDefaultLogger(debug bool) *DefaultLogger {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.DisableStacktrace = true

	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}

	return &DefaultLogger{logger.Sugar()}
}
