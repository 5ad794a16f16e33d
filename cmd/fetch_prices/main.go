package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/icodeforyou/energiprice-go/config"
	"github.com/icodeforyou/energiprice-go/energidataservice"
	"github.com/icodeforyou/energiprice-go/hours"
	"github.com/icodeforyou/energiprice-go/nordpool"
	"github.com/icodeforyou/energiprice-go/query"
	"github.com/icodeforyou/energiprice-go/scheduler"
	"github.com/icodeforyou/energiprice-go/types"
	"github.com/lmittmann/tint"
)

// Downloads the configured series once and prints them, handy when checking
// a grid tariff filter.
func main() {
	configPath := flag.String("config", "", "path to config file")
	seriesFlag := flag.String("series", "", "comma separated series, default all")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: level, TimeFormat: time.Kitchen})))

	cnfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	series := types.AllSeries
	if *seriesFlag != "" {
		series = nil
		for _, name := range strings.Split(*seriesFlag, ",") {
			s, err := types.ParseSeries(name)
			if err != nil {
				panic(err)
			}
			series = append(series, s)
		}
	}

	// Query starts and tariff hours are Danish whatever the host zone is.
	zone, err := energidataservice.LoadZone()
	if err != nil {
		panic(err)
	}
	clock := hours.SystemClock()
	transport := scheduler.FallbackTransport{energidataservice.New(nil, zone, clock)}
	if cnfg.Nordpool.Enabled {
		transport = append(transport, nordpool.New(nil, zone, clock))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	builder := cnfg.Builder()
	for _, s := range series {
		spec := builder.SpotPrice(false)
		if s.IsTariff() {
			spec, err = builder.Tariff(s)
			if errors.Is(err, query.ErrNoGLN) {
				slog.Warn("skipping series without GLN", slog.String("series", s.String()))
				continue
			}
			if err != nil {
				panic(err)
			}
		}

		records, err := transport.Fetch(ctx, spec)
		if err != nil {
			slog.Error("download failed", slog.String("spec", spec.String()), slog.Any("error", err))
			continue
		}

		fmt.Printf("%s (%d hours)\n", s, len(records))
		for _, r := range records {
			fmt.Printf("  %s  %10.6f\n", r.Hour.LocalizedString(zone), r.Value)
		}
	}
}
