package www

import (
	"log/slog"
	"net/http"

	"github.com/icodeforyou/energiprice-go/database"
	"github.com/icodeforyou/energiprice-go/logging"
)

type logEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
	Attrs     string `json:"attrs,omitempty"`
}

// NewLogHandler pages through the persisted log, newest first.
func NewLogHandler(logger *slog.Logger, store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := intOrDefault(r.URL, "page", 1)
		pageSize := min(intOrDefault(r.URL, "pageSize", 25), 500)
		level := r.URL.Query().Get("level")
		minLevel := slog.LevelDebug
		if level != "" {
			minLevel = logging.LevelFromString(&level)
		}

		rows, err := store.GetLogEntries(r.Context(), minLevel, page, pageSize)
		if err != nil {
			logger.Error("handling log request", slog.Any("error", err))
			writeError(logger, w, http.StatusInternalServerError, err)
			return
		}

		writeJSON(logger, w, http.StatusOK, toLogEntries(rows))
	}
}

func toLogEntries(rows []database.LogEntryRow) []logEntry {
	entries := make([]logEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, logEntry{
			Timestamp: r.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
			Level:     slog.Level(r.Level).String(),
			Message:   r.Message,
			Attrs:     r.Attrs,
		})
	}
	return entries
}
