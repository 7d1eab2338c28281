package sacd

import (
	"github.com/charmbracelet/log"

	"github.com/deepteams/sacd/internal/sacdlog"
)

// Logger is the interface host applications implement to receive
// per-frame diagnostics. A nil Config.Logger passed to Open is valid and
// discards output.
type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// charmLogger adapts a *log.Logger from github.com/charmbracelet/log to
// this package's Logger interface, matching charm's leveled, structured
// logging output instead of a bare log.Printf.
type charmLogger struct{ l *log.Logger }

// NewCharmLogger wraps l as a Logger. Passing nil uses charm's default
// logger writing to os.Stderr.
func NewCharmLogger(l *log.Logger) Logger {
	if l == nil {
		l = log.Default()
	}
	return charmLogger{l: l}
}

func (c charmLogger) Debugf(format string, args ...any) { c.l.Debugf(format, args...) }
func (c charmLogger) Warnf(format string, args ...any)  { c.l.Warnf(format, args...) }
func (c charmLogger) Errorf(format string, args ...any) { c.l.Errorf(format, args...) }

// internalLogger adapts a public Logger down to the narrower interface
// internal packages (container, dstpool) depend on,
// so those packages never import the root package or charmbracelet/log
// directly.
type internalLogger struct{ l Logger }

func toInternal(l Logger) sacdlog.Logger {
	if l == nil {
		return sacdlog.Discard
	}
	return internalLogger{l: l}
}

func (i internalLogger) Debugf(format string, args ...any) { i.l.Debugf(format, args...) }
func (i internalLogger) Warnf(format string, args ...any)  { i.l.Warnf(format, args...) }
func (i internalLogger) Errorf(format string, args ...any) { i.l.Errorf(format, args...) }
