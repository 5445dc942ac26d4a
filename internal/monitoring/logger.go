// Package monitoring carries the package-level diagnostic hooks shared by the
// watermarking stages. Core packages never write to stdout directly; they
// report warnings and stage timings through Logf and Debugf.
package monitoring

import (
	"log"
	"sync/atomic"
	"time"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

var debug atomic.Bool

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// SetDebug turns Debugf output on or off.
func SetDebug(on bool) {
	debug.Store(on)
}

// DebugEnabled reports whether Debugf currently forwards to Logf.
func DebugEnabled() bool {
	return debug.Load()
}

// Debugf forwards to Logf only when debug output is enabled.
func Debugf(format string, v ...interface{}) {
	if !debug.Load() {
		return
	}
	Logf("[debug] "+format, v...)
}

// Timed logs the elapsed time of a pipeline stage at debug level. Use it as
//
//	defer monitoring.Timed("select regions")()
func Timed(stage string) func() {
	if !debug.Load() {
		return func() {}
	}
	start := time.Now()
	return func() {
		Debugf("%s took %s", stage, time.Since(start).Round(time.Microsecond))
	}
}
