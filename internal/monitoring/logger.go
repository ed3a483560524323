// Package monitoring carries the process-wide diagnostic logger used by the
// field, model, and persistence layers. Library consumers embedding the field
// in a larger trainer can redirect or mute it with SetLogger.
package monitoring

import "log"

// Logf is the package-level diagnostic logger, defaulting to log.Printf.
// Messages carry a "[Component]" prefix chosen by the caller.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Scoped returns a logger that prepends a "[component]" prefix and forwards
// to the current package logger.
func Scoped(component string) func(format string, v ...interface{}) {
	prefix := "[" + component + "] "
	return func(format string, v ...interface{}) {
		Logf(prefix+format, v...)
	}
}
