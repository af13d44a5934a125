package mxf

import "log/slog"

// logger is the package-level structured logging sink. It defaults to
// slog.Default() so this package never has an unconfigured "nowhere to log
// to" state, but a host process can redirect it via SetLogger.
var logger = slog.Default()

// SetLogger replaces the package's logging sink. Passing nil restores
// slog.Default().
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.Default()
	}
	logger = l
}

// DefaultWarnFunc is a warnFunc that logs a rejected packet's key at Warn
// level, named by its dict catalog entry when one is found. Pass it to
// Reader.ReadFrame in place of a caller-supplied warnFunc to satisfy the
// "warn with the UL's catalog name if any" requirement without every
// caller needing to write its own logging glue.
func DefaultWarnFunc(foundUL UL, name string, found bool) {
	if found {
		logger.Warn("mxf: unexpected essence key", "ul", foundUL, "name", name)
		return
	}
	logger.Warn("mxf: unexpected essence key", "ul", foundUL)
}
