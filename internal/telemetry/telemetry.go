// Package telemetry provides OpenTelemetry integration for the RestBackup client.
//
// The Manager owns the TracerProvider lifecycle: it builds an OTLP gRPC
// exporter, applies sampling and resource attributes, and flushes spans on
// shutdown. If initialization fails the Manager disables itself and the
// client keeps working without tracing.
//
// Span attribute keys and user-facing error templates live here so that the
// client and the command line share one spelling.
//
// Example:
//
//	manager := telemetry.NewManager(telemetry.Config{
//	    Enabled:         true,
//	    Endpoint:        "localhost:4317",
//	    Insecure:        true,
//	    SamplingRate:    1.0,
//	    ServiceName:     "restbackup",
//	    ServiceVersion:  "1.0",
//	    ServiceEndpoint: "us.restbackup.com",
//	})
//	if err := manager.Initialize(ctx); err != nil {
//	    return err
//	}
//	defer manager.Shutdown(ctx)
//
//	api, err := restbackup.NewBackupAPI(accessURL,
//	    restbackup.WithTracerProvider(manager.TracerProvider()))
package telemetry
