package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"crash-dashboard/internal/aggregate"
	"crash-dashboard/internal/config"
	"crash-dashboard/internal/dataset"
	"crash-dashboard/internal/export"
	"crash-dashboard/internal/models"
	"crash-dashboard/internal/render"
	"crash-dashboard/pkg/logging"
)

// crashreport prints the dashboard views for a dataset file without starting
// the server, and can write them to a workbook and SVG files.
func main() {
	file := flag.String("file", "", "Crash dataset (.csv or .xlsx); defaults to DATASET_PATH")
	xlsxOut := flag.String("xlsx", "", "Write the views to this Excel workbook")
	svgDir := flag.String("svg-dir", "", "Write the static charts as SVG files into this directory")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *file == "" {
		*file = cfg.Dataset.Path
	}

	logger := logging.NewStructuredLogger("crashreport", "1.0.0", logging.ParseLevel(cfg.Logging.Level))
	ctx := context.Background()

	table, err := dataset.LoadFile(*file)
	if err != nil {
		logger.Fatal(ctx, "[REPORT_ERROR] Failed to load dataset", logging.Fields{"path": *file}, err)
	}

	snap, err := aggregate.Compute(ctx, table, aggregate.Baselines{
		Clear: cfg.Dashboard.Baselines.Clear,
		Rain:  cfg.Dashboard.Baselines.Rain,
		Snow:  cfg.Dashboard.Baselines.Snow,
	}, nil)
	if err != nil {
		logger.Fatal(ctx, "[REPORT_ERROR] Failed to compute views", logging.Fields{}, err)
	}

	if err := writeReport(os.Stdout, table, snap, cfg.Dashboard.FatalityLookups); err != nil {
		logger.Fatal(ctx, "[REPORT_ERROR] Failed to print report", logging.Fields{}, err)
	}

	if *xlsxOut != "" {
		if err := writeWorkbookFile(*xlsxOut, snap); err != nil {
			logger.Fatal(ctx, "[REPORT_ERROR] Failed to write workbook", logging.Fields{"path": *xlsxOut}, err)
		}
		logger.Info(ctx, "[REPORT_XLSX] Workbook written", logging.Fields{"path": *xlsxOut})
	}

	if *svgDir != "" {
		written, err := writeCharts(*svgDir, snap, cfg.Dashboard.FatalityLookups)
		if err != nil {
			logger.Fatal(ctx, "[REPORT_ERROR] Failed to write charts", logging.Fields{"dir": *svgDir}, err)
		}
		logger.Info(ctx, "[REPORT_SVG] Charts written", logging.Fields{"dir": *svgDir, "count": written})
	}
}

func writeWorkbookFile(path string, snap *aggregate.Snapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := export.WriteWorkbook(f, snap); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// writeCharts renders the static charts; views that cannot be drawn are skipped.
func writeCharts(dir string, snap *aggregate.Snapshot, lookups []config.FatalityLookup) (int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, err
	}

	charts := []render.Chart{render.CauseTotals(snap.CauseTotals)}
	if snap.WeatherErr == nil {
		charts = append(charts, render.WeatherRates(snap.Weather))
	}
	for i, lookup := range lookups {
		counts, err := snap.Fatalities.Slice(lookup.Key)
		if err != nil {
			continue
		}
		charts = append(charts, render.Breakdown(render.FatalityID(i), "For "+lookup.Title, models.ColSecondaryCause, counts))
	}

	written := 0
	for _, c := range charts {
		f, err := os.Create(filepath.Join(dir, c.ID+".svg"))
		if err != nil {
			return written, err
		}
		err = render.SVG(f, c)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(f.Name())
			continue
		}
		written++
	}
	return written, nil
}
