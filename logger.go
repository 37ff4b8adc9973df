package gptbatch

// This library never panics or exits on its own, so there is no Fatal.

// Logger: An interface to support different logging implementations, with a default no-op Logger provided. *zap.SugaredLogger satisfies it.
type Logger interface {
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})
	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Warn(args ...interface{})
	Warnf(format string, args ...interface{})
	Error(args ...interface{})
	Errorf(format string, args ...interface{})
}

// noOpLogger: Used when no Logger is given.
type noOpLogger struct{}

func (n *noOpLogger) Debug(args ...interface{})                 {}
func (n *noOpLogger) Debugf(format string, args ...interface{}) {}
func (n *noOpLogger) Info(args ...interface{})                  {}
func (n *noOpLogger) Infof(format string, args ...interface{})  {}
func (n *noOpLogger) Warn(args ...interface{})                  {}
func (n *noOpLogger) Warnf(format string, args ...interface{})  {}
func (n *noOpLogger) Error(args ...interface{})                 {}
func (n *noOpLogger) Errorf(format string, args ...interface{}) {}
