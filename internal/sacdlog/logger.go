// Package sacdlog defines the small injectable logging interface shared by
// the internal packages that log (container, dstpool), so that
// host applications can route per-frame diagnostics wherever they like:
// per-frame errors are absorbed locally, logged, and decoding continues.
//
// The interface is intentionally narrower than charmbracelet/log's full
// *log.Logger: internal packages only ever need leveled, printf-style
// messages, never structured key-value fields or sub-loggers, so they
// depend on this interface instead of the concrete logging library
// directly. The root package's Logger (logger.go) is the adapter that
// wires a real *log.Logger into this shape.
package sacdlog

// Logger is the logging contract internal packages depend on.
type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Discard is a Logger that drops every message, used when a caller passes
// a nil Logger to the public API.
var Discard Logger = discard{}

type discard struct{}

func (discard) Debugf(string, ...any) {}
func (discard) Warnf(string, ...any)  {}
func (discard) Errorf(string, ...any) {}
