// Command robokin runs the telemetry pipeline once over an input file and
// prints the drop report and run statistics.
//
//	robokin -config configs/config.yaml -in telemetry.csv [-sheet Sheet1] [-json]
//
// The exit status is non-zero only when the run fails; an input where every
// row is rejected is a successful run with an empty result.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"robokin/internal/app"
	"robokin/internal/config"
	"robokin/internal/infrastructure"
	"robokin/internal/operations"
	"robokin/pkg/contracts"
)

const (
	exitOK    = 0
	exitFatal = 1
	exitUsage = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("robokin", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to the YAML config (default: config.yaml or configs/config.yaml)")
	input := fs.String("in", "", "input telemetry file (.csv or .xlsx)")
	sheet := fs.String("sheet", "", "worksheet to read from an .xlsx input (default: first sheet)")
	asJSON := fs.Bool("json", false, "print the operation response as JSON")
	showVersion := fs.Bool("version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	if *showVersion {
		fmt.Fprintln(stdout, contracts.GetFullVersionString())
		return exitOK
	}
	if *input == "" {
		fmt.Fprintln(stderr, "robokin: -in is required")
		fs.Usage()
		return exitUsage
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "robokin: %v\n", err)
		return exitFatal
	}

	logger, err := newLogger(cfg.Logging, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "robokin: %v\n", err)
		return exitFatal
	}
	defer infrastructure.CloseLogFile()

	providers, err := infrastructure.InitializeOTel(cfg.Telemetry, contracts.Version, logger)
	if err != nil {
		logger.Error("failed to initialize OpenTelemetry", slog.String("error", err.Error()))
		return exitFatal
	}
	defer providers.Shutdown(context.Background())

	metrics, err := infrastructure.NewPipelineMetrics(providers.Meter)
	if err != nil {
		logger.Error("failed to create pipeline metrics", slog.String("error", err.Error()))
		return exitFatal
	}

	rt, err := app.Build(cfg, logger, nil, metrics)
	if err != nil {
		logger.Error("failed to build pipeline", slog.String("error", err.Error()))
		return exitFatal
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Error("failed to close sinks", slog.String("error", err.Error()))
		}
	}()

	resp, runErr := rt.Manager.Execute(ctx, operations.OperationRequest{InputPath: *input, Sheet: *sheet})

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(resp); err != nil {
			runErr = errors.Join(runErr, err)
		}
	} else {
		printReport(stdout, resp)
	}

	if runErr != nil {
		fmt.Fprintf(stderr, "robokin: %v\n", runErr)
		return exitFatal
	}
	return exitOK
}

// newLogger keeps stdout for the report: console logging goes to stderr
func newLogger(cfg config.LoggingConfig, stderr io.Writer) (*slog.Logger, error) {
	if cfg.Output == "console" {
		logger := infrastructure.NewLogger(stderr, cfg.Level)
		slog.SetDefault(logger)
		return logger, nil
	}
	return infrastructure.InitializeLogger(cfg)
}

func printReport(w io.Writer, resp *operations.OperationResponse) {
	if resp == nil {
		return
	}
	fmt.Fprintf(w, "operation %s %s in %s\n", resp.ID, resp.Status, resp.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "samples: %s  feature rows: %s  runs: %d\n",
		humanize.Comma(int64(resp.Samples)), humanize.Comma(int64(resp.FeatureRows)), len(resp.Stats))
	if resp.NoData {
		fmt.Fprintln(w, "no rows survived validation")
	}

	fmt.Fprintf(w, "\ndropped rows: %s\n", humanize.Comma(int64(resp.Drops.Total())))
	if len(resp.Drops) > 0 {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, rule := range resp.Drops.Rules() {
			fmt.Fprintf(tw, "  %s\t%s\n", rule, humanize.Comma(int64(resp.Drops[rule])))
		}
		tw.Flush()
	}

	if len(resp.Stats) == 0 {
		return
	}
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	header := []string{"run", "start_ms", "end_ms", "runtime_ms"}
	for _, robot := range resp.Stats[0].Robots {
		header = append(header, "distance_"+robot)
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, s := range resp.Stats {
		row := []string{
			fmt.Sprint(s.Run),
			fmt.Sprint(s.StartMs),
			fmt.Sprint(s.EndMs),
			fmt.Sprint(s.DurationMs),
		}
		for _, d := range s.TotalDistance {
			row = append(row, fmt.Sprintf("%.4f", d))
		}
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	tw.Flush()
}
