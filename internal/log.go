package internal

import (
	"context"
	"log/slog"
)

// LevelTrace logs per-frame events and sits below debug so ordinary debug
// logging does not drown in datagram traffic.
const LevelTrace slog.Level = slog.LevelDebug - 2

func LogEnabled(l *slog.Logger, lvl slog.Level) bool {
	return l != nil && l.Handler().Enabled(context.Background(), lvl)
}

// LogAttrs is the helper used by all package loggers. A nil logger disables
// logging at no cost to the caller.
func LogAttrs(l *slog.Logger, level slog.Level, msg string, attrs ...slog.Attr) {
	if l != nil {
		l.LogAttrs(context.Background(), level, msg, attrs...)
	}
}
