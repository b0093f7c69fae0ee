// Package app wires robokin together: configuration, logging and
// OpenTelemetry, the processing pipeline and its sinks, the operation manager
// and job queue, the WebSocket hub and the chi router.
//
// Build assembles the pipeline side and is shared by the batch CLI and the
// server. NewApplication adds the HTTP surface on top:
//
//	application, err := app.NewApplication("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := application.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package app
