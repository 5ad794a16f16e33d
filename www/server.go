package www

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/icodeforyou/energiprice-go/config"
	"github.com/icodeforyou/energiprice-go/database"
	"github.com/icodeforyou/energiprice-go/hours"
	"github.com/icodeforyou/energiprice-go/scheduler"
	"github.com/icodeforyou/energiprice-go/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PriceService is the part of the scheduler served over HTTP.
type PriceService interface {
	Status() scheduler.Status
	HourlyPrices(from time.Time) []types.HourlyPrice
	Prices(ctx context.Context, series types.Series) ([]types.Record, error)
	RefreshNow() bool
}

// Store is the history kept in the database.
type Store interface {
	GetPublishedPrices(ctx context.Context, series types.Series, from hours.DateHour) ([]database.PublishedPriceRow, error)
	GetLogEntries(ctx context.Context, minLvl slog.Level, page, pageSize int) ([]database.LogEntryRow, error)
}

type Server struct {
	logger     *slog.Logger
	config     config.AppConfigApi
	store      Store
	hub        *Hub
	gatherer   prometheus.Gatherer
	version    string
	reducedTax bool

	mu     sync.RWMutex
	prices PriceService
}

func NewServer(cfg config.AppConfigApi, prices PriceService, store Store, hub *Hub, gatherer prometheus.Gatherer, version string) *Server {
	return &Server{
		logger:   slog.Default().With("module", "www"),
		config:   cfg,
		prices:   prices,
		store:    store,
		hub:      hub,
		gatherer: gatherer,
		version:  version,
	}
}

// WithReducedTax makes total prices use the reduced electricity tax.
func (s *Server) WithReducedTax(reduced bool) *Server {
	s.reducedTax = reduced
	return s
}

// SetPriceService swaps the scheduler after a config reload.
func (s *Server) SetPriceService(prices PriceService) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices = prices
}

func (s *Server) priceService() PriceService {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prices
}

func (s *Server) Handler() http.Handler {
	logReqMW := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.logger.Debug("http request",
				slog.String("method", r.Method),
				slog.String("url", r.URL.String()),
				slog.String("remoteAddr", r.RemoteAddr))
			next.ServeHTTP(w, r)
		})
	}

	mux := http.NewServeMux()
	mux.Handle("GET /api/prices", logReqMW(NewHourlyPricesHandler(s.logger.With(slog.String("handler", "prices")), s)))
	mux.Handle("GET /api/series/{name}", logReqMW(NewSeriesHandler(s.logger.With(slog.String("handler", "series")), s)))
	mux.Handle("GET /api/history/{name}", logReqMW(NewHistoryHandler(s.logger.With(slog.String("handler", "history")), s.store)))
	mux.Handle("GET /api/status", logReqMW(NewStatusHandler(s, s.version)))
	mux.Handle("POST /api/refresh", logReqMW(NewRefreshHandler(s.logger.With(slog.String("handler", "refresh")), s)))
	mux.Handle("GET /api/log", logReqMW(NewLogHandler(s.logger.With(slog.String("handler", "log")), s.store)))
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		client, err := NewClient(s.hub, w, r, r.Header.Get("User-Agent"))
		if err != nil {
			s.logger.Error("new websocket client failed", slog.Any("error", err))
			return
		}
		if !s.hub.register(client) {
			client.conn.Close()
			return
		}
		go client.ReadPump()
		go client.WritePump()
	})
	return mux
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting server...", slog.String("address", s.config.Address), slog.Int("port", int(s.config.Port)))
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.config.Address, s.config.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErrors := make(chan error, 1)
	go func() {
		srvErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-srvErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	}
}
