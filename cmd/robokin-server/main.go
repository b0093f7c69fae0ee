// Command robokin-server serves the pipeline over HTTP: operations are
// queued through the REST API and their progress is pushed over /ws.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"robokin/internal/app"
	"robokin/pkg/contracts"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config (default: config.yaml or configs/config.yaml)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(contracts.GetFullVersionString())
		return
	}

	application, err := app.NewApplication(*configPath)
	if err != nil {
		slog.Error("failed to create application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := application.Run(context.Background()); err != nil {
		application.Logger.Error("server stopped with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
