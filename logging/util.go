package logging

import (
	"log/slog"
	"strings"
)

// LevelFromString parses a config level, INFO when unset or unknown.
func LevelFromString(str *string) slog.Level {
	if str == nil {
		return slog.LevelInfo
	}
	switch strings.ToUpper(strings.TrimSpace(*str)) {
	case slog.LevelDebug.String():
		return slog.LevelDebug
	case slog.LevelInfo.String():
		return slog.LevelInfo
	case slog.LevelWarn.String(), "WARNING":
		return slog.LevelWarn
	case slog.LevelError.String():
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func AttrFormatFromString(str *string) LogAttrFormat {
	if str != nil && strings.EqualFold(strings.TrimSpace(*str), string(LogAttrFormatText)) {
		return LogAttrFormatText
	}
	return LogAttrFormatJSON
}
