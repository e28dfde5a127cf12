package bridge

import (
	"fmt"
	"log/slog"
	"os"
)

// Logger adapts an slog.Logger to the senso4s.Logger interface so the
// library logs through the bridge's handler
type Logger struct {
	*slog.Logger
}

// Debugf fulfils the senso4s.Logger interface
func (l Logger) Debugf(format string, args ...interface{}) {
	l.Logger.Debug(fmt.Sprintf(format, args...))
}

// Infof fulfils the senso4s.Logger interface
func (l Logger) Infof(format string, args ...interface{}) {
	l.Logger.Info(fmt.Sprintf(format, args...))
}

// Warnf fulfils the senso4s.Logger interface
func (l Logger) Warnf(format string, args ...interface{}) {
	l.Logger.Warn(fmt.Sprintf(format, args...))
}

// Errorf fulfils the senso4s.Logger interface
func (l Logger) Errorf(format string, args ...interface{}) {
	l.Logger.Error(fmt.Sprintf(format, args...))
}

// Fatalf fulfils the senso4s.Logger interface
func (l Logger) Fatalf(format string, args ...interface{}) {
	l.Logger.Error(fmt.Sprintf(format, args...))
	os.Exit(1)
}
