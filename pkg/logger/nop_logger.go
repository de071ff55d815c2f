package logger

// Nop returns a logger that drops everything. It reports every level as
// disabled so callers can skip building expensive messages.
func Nop() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (l nopLogger) WithFields(map[string]any) Logger { return l }

func (nopLogger) Debug(...any)          {}
func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Info(...any)           {}
func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Warn(...any)           {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Error(...any)          {}
func (nopLogger) Errorf(string, ...any) {}
func (nopLogger) Fatal(...any)          {}
func (nopLogger) Fatalf(string, ...any) {}

func (nopLogger) GetLevel() LogLevel           { return "" }
func (nopLogger) IsLevelEnabled(LogLevel) bool { return false }
