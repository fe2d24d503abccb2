// Package monitoring holds the process-wide diagnostic logger.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf but
// may be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// Verbose gates Debugf. The pipeline emits per-year progress through Debugf
// so long runs stay quiet by default.
var Verbose bool

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Debugf logs through Logf only when Verbose is set.
func Debugf(format string, v ...interface{}) {
	if Verbose {
		Logf(format, v...)
	}
}
