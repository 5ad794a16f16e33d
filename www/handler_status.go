package www

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/icodeforyou/energiprice-go/scheduler"
)

var errRefreshRunning = errors.New("a refresh is already running")

type statusResponse struct {
	Version string `json:"version"`
	scheduler.Status
}

func NewStatusHandler(s *Server, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := statusResponse{Version: version}
		if ps := s.priceService(); ps != nil {
			resp.Status = ps.Status()
		}
		writeJSON(s.logger, w, http.StatusOK, resp)
	}
}

// NewRefreshHandler replaces the pending refresh with an immediate one.
func NewRefreshHandler(logger *slog.Logger, s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ps := s.priceService()
		if ps == nil {
			writeError(logger, w, http.StatusServiceUnavailable, errNotRunning)
			return
		}
		if !ps.RefreshNow() {
			if ps.Status().Started {
				writeError(logger, w, http.StatusConflict, errRefreshRunning)
			} else {
				writeError(logger, w, http.StatusServiceUnavailable, errNotRunning)
			}
			return
		}
		logger.Info("refresh requested")
		w.WriteHeader(http.StatusAccepted)
	}
}
