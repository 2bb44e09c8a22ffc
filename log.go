package flashfat

import (
	"context"
	"io"
	"log/slog"
)

// discardLogger is used when no logger is configured.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func logattrs(l *slog.Logger, level slog.Level, msg string, attrs ...slog.Attr) {
	if l == nil {
		return
	}
	l.LogAttrs(context.Background(), level, msg, attrs...)
}

func debug(l *slog.Logger, msg string, attrs ...slog.Attr) {
	logattrs(l, slog.LevelDebug, msg, attrs...)
}

func info(l *slog.Logger, msg string, attrs ...slog.Attr) {
	logattrs(l, slog.LevelInfo, msg, attrs...)
}

func warn(l *slog.Logger, msg string, attrs ...slog.Attr) {
	logattrs(l, slog.LevelWarn, msg, attrs...)
}

func logerror(l *slog.Logger, msg string, attrs ...slog.Attr) {
	logattrs(l, slog.LevelError, msg, attrs...)
}

func sectorAttr(sector uint32) slog.Attr {
	return slog.Uint64("sector", uint64(sector))
}

func clusterAttr(id uint16) slog.Attr {
	return slog.Uint64("cluster", uint64(id))
}
