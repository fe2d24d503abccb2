package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/canopy-data/clearcut.report/internal/api"
	"github.com/canopy-data/clearcut.report/internal/config"
	"github.com/canopy-data/clearcut.report/internal/db"
	archive "github.com/canopy-data/clearcut.report/internal/landsat/storage/sqlite"
	"github.com/canopy-data/clearcut.report/internal/monitoring"
	"github.com/canopy-data/clearcut.report/internal/pipeline"
	"github.com/canopy-data/clearcut.report/internal/report"
	trendstore "github.com/canopy-data/clearcut.report/internal/trend/storage/sqlite"
	"github.com/canopy-data/clearcut.report/internal/version"
)

var (
	dbFile        = flag.String("db", "clearcut.db", "Path to the run database")
	migrationsDir = flag.String("migrations", "migrations", "Path to the migrations directory")
	configFile    = flag.String("config", "", "Pipeline config JSON (defaults file used when empty)")
	runPipeline   = flag.Bool("run", false, "Execute one pipeline run")
	serve         = flag.Bool("serve", false, "Serve the HTTP API")
	listen        = flag.String("listen", ":8080", "Listen address")
	aoi           = flag.String("aoi", "", "Area of interest for -run")
	sensors       = flag.String("sensors", "LT05,LE07,LC08", "Comma-separated sensor IDs for -run")
	plotsDir      = flag.String("plots", "", "Write run charts under this directory (with -run)")
	verbose       = flag.Bool("verbose", false, "Enable per-year debug logging")
)

func main() {
	flag.Parse()
	monitoring.Verbose = *verbose
	monitoring.Logf("clearcut %s (%s)", version.Version, version.GitSHA)

	if !*runPipeline && !*serve {
		log.Fatal("nothing to do: pass -run and/or -serve")
	}

	var cfg *config.PipelineConfig
	if *configFile != "" {
		var err error
		cfg, err = config.LoadPipelineConfig(*configFile)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	} else {
		cfg = config.MustLoadDefaultConfig()
	}

	database, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	if err := database.MigrateUp(*migrationsDir); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	runs := trendstore.NewRunStore(database.DB)
	summaries := trendstore.NewSummaryStore(database.DB)
	events := trendstore.NewEventStore(database.DB)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *runPipeline {
		if *aoi == "" {
			log.Fatal("-run requires -aoi")
		}
		params, err := pipeline.ParamsFromConfig(cfg, *aoi, splitSensors(*sensors))
		if err != nil {
			log.Fatalf("invalid run parameters: %v", err)
		}

		// The archive cache doubles as the provider; trend fitting runs
		// out of process, so the CLI stops at composite summaries.
		runner := pipeline.NewRunner(archive.NewArchiveStore(database.DB), nil, pipeline.Stores{
			Runs:      runs,
			Summaries: summaries,
			Events:    events,
		})
		res, err := runner.Run(ctx, params)
		if err != nil {
			log.Fatalf("pipeline run failed: %v", err)
		}
		monitoring.Logf("run %s complete: %d years, %d data errors",
			res.RunID, len(res.Years), len(res.DataErrors))

		if *plotsDir != "" {
			counts, err := events.CountByYear(res.RunID)
			if err != nil {
				log.Fatalf("failed to load event counts: %v", err)
			}
			outDir := report.MakePlotOutputDir(*plotsDir, res.RunID)
			n, err := report.PlotRunCharts(outDir, params.Index.String(), res.Stats, counts)
			if err != nil {
				log.Fatalf("failed to render charts: %v", err)
			}
			monitoring.Logf("wrote %d charts to %s", n, outDir)
		}
	}

	if !*serve {
		return
	}

	server := api.NewServer(runs, summaries, events)
	httpServer := &http.Server{
		Addr:    *listen,
		Handler: api.LoggingMiddleware(server.ServeMux()),
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		monitoring.Logf("listening on %s", *listen)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("shutdown: %v", err)
	}
	wg.Wait()
}

func splitSensors(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
