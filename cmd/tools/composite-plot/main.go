// Command composite-plot renders the report charts for a stored run:
// yearly index distribution, coverage, and the disturbance histogram.
package main

import (
	"flag"
	"log"
	"math"

	"github.com/canopy-data/clearcut.report/internal/db"
	"github.com/canopy-data/clearcut.report/internal/report"
	trendstore "github.com/canopy-data/clearcut.report/internal/trend/storage/sqlite"
)

var (
	dbFile = flag.String("db", "clearcut.db", "Path to the run database")
	runID  = flag.String("run", "", "Run ID to plot")
	outDir = flag.String("out", "plots", "Output directory for charts")
)

func main() {
	flag.Parse()
	if *runID == "" {
		log.Fatal("-run is required")
	}

	database, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	runs := trendstore.NewRunStore(database.DB)
	run, err := runs.Get(*runID)
	if err != nil {
		log.Fatalf("failed to load run %s: %v", *runID, err)
	}

	sums, err := trendstore.NewSummaryStore(database.DB).ByRun(*runID)
	if err != nil {
		log.Fatalf("failed to load summaries: %v", err)
	}
	if len(sums) == 0 {
		log.Fatalf("run %s has no summaries", *runID)
	}

	counts, err := trendstore.NewEventStore(database.DB).CountByYear(*runID)
	if err != nil {
		log.Fatalf("failed to load event counts: %v", err)
	}

	stats := make([]report.YearStats, 0, len(sums))
	for _, sum := range sums {
		stats = append(stats, report.YearStats{
			Year:        sum.Year,
			ValidPixels: sum.ValidPixels,
			TotalPixels: sum.TotalPixels,
			Mean:        deref(sum.IndexMean),
			StdDev:      deref(sum.IndexStdDev),
			P05:         deref(sum.IndexP05),
			P50:         deref(sum.IndexP50),
			P95:         deref(sum.IndexP95),
		})
	}

	dir := report.MakePlotOutputDir(*outDir, *runID)
	n, err := report.PlotRunCharts(dir, run.SpectralIndex, stats, counts)
	if err != nil {
		log.Fatalf("failed to render charts: %v", err)
	}
	log.Printf("wrote %d charts to %s", n, dir)
}

// deref maps a NULL statistic back to NaN for plotting gaps.
func deref(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
