// updater.go implements "graph-updater updater", the AQI updater
// application: it polls the Enfuser bucket, processes each new hourly
// forecast and exports edge AQI updates until it is interrupted.

package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/hellej/hope-graph-updater/internal/aqi"
	"github.com/hellej/hope-graph-updater/internal/config"
	"github.com/hellej/hope-graph-updater/internal/history"
	"github.com/hellej/hope-graph-updater/internal/launcher"
	"github.com/hellej/hope-graph-updater/internal/model"
	"github.com/hellej/hope-graph-updater/internal/port"
)

type updaterFlags struct {
	metricsAddr string
	once        bool
}

// NewUpdaterCommand creates the "updater" cobra command.
func NewUpdaterCommand() *cobra.Command {
	flags := &updaterFlags{}

	cmd := &cobra.Command{
		Use:   "updater",
		Short: "Run the AQI updater application",
		Long: `Run the AQI updater loop. Every poll interval the updater checks whether
the Enfuser forecast of the current hour has been processed; if not it is
downloaded, converted with gdal_translate and nodata-filled. Each new raster
is then sampled at every edge of the street graph and exported as an edge
update CSV and an AQI map JSON.

Docker secrets and the .env file are exported to the environment first.
GRAPH_SUBSET=True selects the subset edges file.

Examples:
  graph-updater updater
  graph-updater updater --metrics-addr :9108
  graph-updater updater --once`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdater(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (overrides updater.metricsAddr)")
	cmd.Flags().BoolVar(&flags.once, "once", false, "Run a single fetch and update step and exit")
	return cmd
}

func runUpdater(ctx context.Context, flags *updaterFlags) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	uc := cfg.Updater

	if logFile == "" && uc.LogFile != "" {
		if err := setupLogging(uc.LogFile); err != nil {
			return err
		}
	}

	if _, err := config.LoadDockerSecrets(logger, uc.SecretsDir); err != nil {
		return model.WrapCLIError(model.ExitConfigInvalid, "failed to load docker secrets", err)
	}
	if _, err := config.LoadDotEnv(logger, uc.EnvFile); err != nil {
		return model.WrapCLIError(model.ExitConfigInvalid, "failed to load .env", err)
	}

	path := edgesPath(uc, os.Getenv)
	edges, dropped, err := aqi.LoadEdges(path)
	if err != nil {
		return model.WrapCLIError(model.ExitConfigInvalid, "failed to load edges", err)
	}
	updater := aqi.NewUpdater(logger, edges, uc.AqiCache, uc.AqiUpdates)
	total, samples := updater.Edges()
	logger.Infof("loaded %d edges from %s (%d without valid geometry, %d sampling points)",
		total, path, dropped, samples)

	for _, dir := range []string{uc.AqiCache, uc.AqiUpdates} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return model.WrapCLIError(model.ExitGeneralError, fmt.Sprintf("failed to create %s", dir), err)
		}
	}

	store, err := aqi.NewS3StoreFromEnv(uc.Region)
	if err != nil {
		return err
	}
	fetcher := aqi.NewFetcher(logger, store, aqi.NewGDAL(), uc.AqiCache)
	fetcher.Bucket = uc.Bucket
	fetcher.KeyPrefix = uc.KeyPrefix
	fetcher.MinNodataCount = uc.MinNodataCount

	hist, err := history.Open(uc.HistoryDB)
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "failed to open history", err)
	}
	defer func() { _ = hist.Close() }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	addr := flags.metricsAddr
	if addr == "" {
		addr = uc.MetricsAddr
	}
	if addr != "" {
		stop, err := serveMetrics(addr, reg)
		if err != nil {
			return err
		}
		defer stop()
	}

	app := &aqi.App{
		Log:          logger,
		Fetcher:      fetcher,
		Updater:      updater,
		History:      hist,
		Metrics:      aqi.NewMetrics(reg),
		PollInterval: uc.PollInterval.Duration,
		RetryDelay:   uc.RetryDelay.Duration,
	}
	if flags.once {
		app.Step(ctx)
		return nil
	}
	return app.Run(ctx)
}

// edgesPath returns the edges file to load: the subset file when the
// launcher started the updater in dev mode, the full graph otherwise.
func edgesPath(uc config.UpdaterConfig, getenv func(string) string) string {
	if getenv(launcher.EnvGraphSubset) == "True" {
		return uc.SubsetEdges
	}
	return uc.Edges
}

// serveMetrics starts the metrics endpoint on addr and returns a function
// that shuts it down.
func serveMetrics(addr string, reg *prometheus.Registry) (func(), error) {
	if err := port.NewScanner().RequireAddr(addr); err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("metrics server failed")
		}
	}()
	logger.Infof("serving metrics on %s/metrics", addr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
