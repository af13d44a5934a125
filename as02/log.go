package as02

import "log/slog"

// logger is this package's structured logging sink, mirroring package
// mxf's: defaults to slog.Default(), redirectable via SetLogger.
var logger = slog.Default()

// SetLogger replaces the package's logging sink. Passing nil restores
// slog.Default().
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.Default()
	}
	logger = l
}
