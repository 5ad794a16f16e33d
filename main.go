package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/icodeforyou/energiprice-go/cache"
	"github.com/icodeforyou/energiprice-go/config"
	"github.com/icodeforyou/energiprice-go/database"
	"github.com/icodeforyou/energiprice-go/energidataservice"
	"github.com/icodeforyou/energiprice-go/hours"
	"github.com/icodeforyou/energiprice-go/logging"
	"github.com/icodeforyou/energiprice-go/metrics"
	"github.com/icodeforyou/energiprice-go/mqttsink"
	"github.com/icodeforyou/energiprice-go/nordpool"
	"github.com/icodeforyou/energiprice-go/scheduler"
	"github.com/icodeforyou/energiprice-go/task"
	"github.com/icodeforyou/energiprice-go/www"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var Version = "?.?.?"

func main() {
	defer func() {
		if err := recover(); err != nil {
			exitWithError(slog.Default(), fmt.Errorf("application panicked: %v", err))
		} else {
			slog.Default().Info("application is shutting down...")
		}
	}()

	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cnfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consoleHandler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      cnfg.Logging.GetConsoleLevel(),
		TimeFormat: time.RFC3339,
	})
	slog.New(consoleHandler).Debug("energiprice is starting...", slog.String("version", Version))

	db, err := database.New(ctx, cnfg.Database.Path)
	if err != nil {
		panic(fmt.Sprintf("failed to connect to database: %v", err))
	}
	defer db.Close()

	logger := slog.New(logging.NewMultiHandler(
		consoleHandler,
		logging.NewSQLiteHandler(db, cnfg.Logging.GetDbLevel(), cnfg.Logging.GetDbAttrsFormat())))
	slog.SetDefault(logger)

	// Now we can use the logger to log database operations into the database itself
	db.SetLogger(logger.With("module", "database"))

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	history := scheduler.NewAsyncSink("history", database.NewHistorySink(db), 64)
	defer history.Close()

	hub := www.NewHub()
	go hub.Run(ctx)

	sink := scheduler.MultiSink{history, hub}

	if cnfg.Mqtt.Enabled {
		mq := mqttsink.New(mqttsink.Options{
			Host:        cnfg.Mqtt.Host,
			Port:        cnfg.Mqtt.Port,
			Username:    cnfg.Mqtt.Username,
			Password:    cnfg.Mqtt.Password,
			TopicPrefix: cnfg.Mqtt.GetTopicPrefix(),
		})
		if err := mq.Connect(); err != nil {
			panic(fmt.Sprintf("mqtt connection error: %v", err))
		}
		defer mq.Disconnect()

		async := scheduler.NewAsyncSink("mqtt", mq, 64)
		defer async.Close()
		sink = append(sink, async)
	}

	zone, err := energidataservice.LoadZone()
	if err != nil {
		panic(err)
	}

	host := &priceHost{
		logger: logger.With("module", "main"),
		sink:   sink,
		zone:   zone,
		client: &http.Client{Timeout: 30 * time.Second},
		m:      m,
	}
	sched, err := host.start(ctx, cnfg)
	if err != nil {
		panic(fmt.Sprintf("failed to start price scheduler: %v", err))
	}
	defer host.stop()

	server := www.NewServer(cnfg.Api, sched, db, hub, reg, Version).
		WithReducedTax(cnfg.EnergiDataService.ReducedElectricityTax)

	err = config.Watch(*configPath, func(c *config.AppConfig) {
		sched, err := host.restart(ctx, c)
		if err != nil {
			logger.Error("failed to restart price scheduler", slog.Any("error", err))
			server.SetPriceService(nil)
			return
		}
		server.SetPriceService(sched)
		logger.Info("price scheduler restarted, other settings apply after a restart of the application")
	})
	if err != nil {
		logger.Warn("config changes won't be picked up", slog.Any("error", err))
	}

	tasks := task.NewTasks(db, cnfg)
	if isDevMode() {
		logger.Info("dev mode, skipping task scheduling")
	} else {
		if err := tasks.Run(); err != nil {
			panic(fmt.Sprintf("failed to schedule tasks: %v", err))
		}
		defer tasks.Stop()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-ctx.Done():
		case sig := <-sigCh:
			logger.Info("received signal", slog.Any("signal", sig))
			cancel()
		}
	}()

	if err := server.Run(ctx); err != nil {
		exitWithError(logger, err)
	}
}

// priceHost owns the running scheduler and replaces it on config changes.
type priceHost struct {
	logger *slog.Logger
	sink   scheduler.Sink
	zone   *time.Location
	client *http.Client
	m      *metrics.Metrics

	mu    sync.Mutex
	sched *scheduler.Scheduler
}

func (h *priceHost) start(ctx context.Context, cnfg *config.AppConfig) (*scheduler.Scheduler, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	linked, err := cnfg.EnergiDataService.GetLinked()
	if err != nil {
		return nil, err
	}
	policy, err := cnfg.Policy()
	if err != nil {
		return nil, err
	}

	clock := hours.SystemClock()
	transport := scheduler.FallbackTransport{energidataservice.New(h.client, h.zone, clock)}
	if cnfg.Nordpool.Enabled {
		transport = append(transport, nordpool.New(h.client, h.zone, clock))
	}

	sched := scheduler.New(
		scheduler.Options{
			Linked:       linked,
			HourlyPrices: cnfg.EnergiDataService.HourlyPrices,
			Currency:     cnfg.EnergiDataService.Currency,
			TariffZone:   h.zone,
			Policy:       policy,
			Builder:      cnfg.Builder(),
		},
		cache.New(clock, cnfg.EnergiDataService.GetHistoricHours()),
		transport,
		h.sink,
		clock,
		h.m)
	if err := sched.Start(ctx); err != nil {
		return nil, err
	}
	h.sched = sched
	return sched, nil
}

func (h *priceHost) stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sched != nil {
		h.sched.Stop()
		h.sched = nil
	}
}

func (h *priceHost) restart(ctx context.Context, cnfg *config.AppConfig) (*scheduler.Scheduler, error) {
	h.stop()
	return h.start(ctx, cnfg)
}

func isDevMode() bool {
	return strings.EqualFold(os.Getenv("APP_ENV"), "development")
}

func exitWithError(logger *slog.Logger, err error) {
	if err != nil {
		logger.Error("application shutting down with error", slog.Any("error", err))
	}
	time.Sleep(2 * time.Second)
	os.Exit(1)
}
