// restbackup is a command line client for the RestBackup service.
//
// It manages backup accounts through the Management API and uploads,
// downloads and lists files through the Backup API of an account.
//
// Usage:
//
//	restbackup account create "Backups for web server" --retain-days 365
//	restbackup account list
//	restbackup file put ./db.tar.gz /db.20100521.tar.gz
//	restbackup file get /db.20100521.tar.gz ./restored.tar.gz
//
// Access-URLs come from the YAML file given with --config or from the
// RESTBACKUP_MANAGEMENT_ACCESS_URL and RESTBACKUP_BACKUP_ACCESS_URL
// environment variables.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjacquet/restbackup/internal/logging"
	"github.com/fjacquet/restbackup/internal/models"
	"github.com/fjacquet/restbackup/internal/restbackup"
	"github.com/fjacquet/restbackup/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	programName     = "restbackup"     // Application name
	shutdownTimeout = 10 * time.Second // Maximum time to flush telemetry
	initTimeout     = 10 * time.Second // Maximum time to set up the OTLP exporter
)

// app holds what the subcommands share for one invocation: configuration,
// the connection pool, metrics and the telemetry manager.
type app struct {
	configFile string
	debug      bool

	cfg              *models.Config
	logFile          io.Closer
	pool             *restbackup.Pool
	registry         *prometheus.Registry
	metrics          *restbackup.Metrics
	telemetryManager *telemetry.Manager

	// API constructors, replaced by fakes in tests.
	newAccountManager func(accessURL string, opts ...restbackup.Option) (restbackup.AccountManager, error)
	newFileStore      func(accessURL string, opts ...restbackup.Option) (restbackup.FileStore, error)
}

func newApp() *app {
	return &app{
		newAccountManager: openManagementAPI,
		newFileStore:      openBackupAPI,
	}
}

// setup loads the configuration and builds the shared client resources.
// It must be paired with shutdown. On failure it releases what it already
// built.
func (a *app) setup(ctx context.Context) (err error) {
	defer func() {
		if err != nil {
			if releaseErr := a.release(); releaseErr != nil {
				log.Warnf("Cleanup after failed setup: %v", releaseErr)
			}
		}
	}()

	cfg, err := models.LoadConfig(a.configFile)
	if err != nil {
		if errors.Is(err, models.ErrInvalidAccessURL) {
			logging.LogError(fmt.Sprintf(telemetry.ErrInvalidAccessURLTemplate, "****"))
		}
		return err
	}
	a.cfg = cfg

	logFile, err := logging.PrepareLogs(cfg.Log.Name, a.debug)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	a.logFile = logFile
	log.Debug("Debug mode enabled")

	if cfg.IsOTelEnabled() {
		a.telemetryManager = telemetry.NewManager(telemetry.Config{
			Enabled:         cfg.OpenTelemetry.Enabled,
			Endpoint:        cfg.OpenTelemetry.Endpoint,
			Insecure:        cfg.OpenTelemetry.Insecure,
			SamplingRate:    cfg.OpenTelemetry.SamplingRate,
			ServiceName:     programName,
			ServiceVersion:  restbackup.Version,
			ServiceEndpoint: serviceHost(cfg),
		})
		initCtx, cancel := context.WithTimeout(ctx, initTimeout)
		defer cancel()
		if err := a.telemetryManager.Initialize(initCtx); err != nil {
			log.Warnf("Failed to initialize OpenTelemetry: %v. Continuing without tracing.", err)
		}
	}

	if a.registry == nil {
		a.registry = prometheus.NewRegistry()
	}
	a.metrics, err = restbackup.NewMetrics(a.registry)
	if err != nil {
		return err
	}

	a.pool = restbackup.NewPool(restbackup.PoolConfig{
		ConnectTimeout:     cfg.GetConnectTimeout(),
		ReadTimeout:        cfg.GetReadTimeout(),
		MaxConns:           cfg.Client.MaxConns,
		MaxConnsPerHost:    cfg.Client.MaxConnsPerHost,
		InsecureSkipVerify: cfg.Client.InsecureSkipVerify,
	})
	return nil
}

// shutdown writes the metrics textfile, then releases the resources of setup.
func (a *app) shutdown() error {
	var errs []error
	if a.cfg != nil && a.cfg.Metrics.Textfile != "" && a.metrics != nil {
		if err := prometheus.WriteToTextfile(a.cfg.Metrics.Textfile, a.registry); err != nil {
			errs = append(errs, fmt.Errorf("metrics textfile: %w", err))
		}
	}
	errs = append(errs, a.release())
	return errors.Join(errs...)
}

// release flushes pending spans, then closes connections and the log file.
// Each resource is released once.
func (a *app) release() error {
	var errs []error

	if a.telemetryManager != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.telemetryManager.Shutdown(ctx); err != nil {
			log.Warnf("Telemetry shutdown warning: %v", err)
		}
		a.telemetryManager = nil
	}

	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
	if a.logFile != nil {
		log.SetOutput(os.Stderr)
		if err := a.logFile.Close(); err != nil {
			errs = append(errs, fmt.Errorf("log file close: %w", err))
		}
		a.logFile = nil
	}
	return errors.Join(errs...)
}

// clientOptions returns the options shared by every API client of this invocation.
func (a *app) clientOptions() []restbackup.Option {
	opts := []restbackup.Option{
		restbackup.WithPool(a.pool),
		restbackup.WithMaxAttempts(a.cfg.Client.MaxAttempts),
		restbackup.WithMetrics(a.metrics),
	}
	if tp := a.telemetryManager.TracerProvider(); tp != nil {
		opts = append(opts, restbackup.WithTracerProvider(tp))
	}
	return opts
}

// run wraps a subcommand body with setup, shutdown and error reporting.
func (a *app) run(cmd *cobra.Command, fn func(ctx context.Context) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := a.setup(ctx); err != nil {
		return err
	}
	defer func() {
		if shutdownErr := a.shutdown(); shutdownErr != nil && err == nil {
			err = shutdownErr
		}
	}()

	ctx, span := a.startCommandSpan(ctx, cmd.CommandPath())
	defer span.End()

	if err := fn(ctx); err != nil {
		span.SetAttributes(attribute.String(telemetry.AttrCommandStatus, "error"))
		span.SetStatus(codes.Error, err.Error())
		a.reportError(err)
		return err
	}
	span.SetAttributes(attribute.String(telemetry.AttrCommandStatus, "ok"))
	return nil
}

// startCommandSpan opens the span that parents every API call of the command.
func (a *app) startCommandSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return a.telemetryManager.Tracer(programName).Start(ctx, "restbackup.command",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String(telemetry.AttrCommandName, name)))
}

// reportError logs the troubleshooting text for well-known failures.
func (a *app) reportError(err error) {
	var retryErr *restbackup.RetryError
	switch {
	case errors.Is(err, restbackup.ErrUnauthorized):
		logging.LogError(fmt.Sprintf(telemetry.ErrUnauthorizedTemplate, serviceEndpoint(a.cfg)))
	case errors.As(err, &retryErr):
		logging.LogError(fmt.Sprintf(telemetry.ErrRetriesExhaustedTemplate, serviceEndpoint(a.cfg), retryErr.Attempts, retryErr.Err))
	}
}

// serviceEndpoint names the configured service with passwords masked,
// preferring the Management API.
func serviceEndpoint(cfg *models.Config) string {
	if cfg == nil {
		return ""
	}
	if cfg.Management.AccessURL != "" {
		return models.MaskAccessURL(cfg.Management.AccessURL)
	}
	return models.MaskAccessURL(cfg.Backup.AccessURL)
}

// serviceHost returns the host of the configured service, preferring the
// Management API.
func serviceHost(cfg *models.Config) string {
	for _, raw := range []string{cfg.Management.AccessURL, cfg.Backup.AccessURL} {
		if u, err := models.ParseAccessURL(raw); err == nil {
			return u.Host()
		}
	}
	return ""
}

// newRootCmd builds the command tree around a.
func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           programName,
		Short:         "Command line client for the RestBackup service",
		Long:          "restbackup manages RestBackup accounts and transfers files to and from their Backup API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&a.configFile, "config", "c", "", "Path to configuration file (optional, environment variables override it)")
	rootCmd.PersistentFlags().BoolVarP(&a.debug, "debug", "d", false, "Enable debug mode")

	rootCmd.AddCommand(newAccountCmd(a), newFileCmd(a))
	return rootCmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(newApp()).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
