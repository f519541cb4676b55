// Command scorecache extracts features from YAML scores through the proxy
// cache and keeps per-score snapshots between runs.
package main

import (
	"errors"
	"net/http"
	_ "net/http/pprof"
	"os"
	"time"

	"github.com/charmbracelet/log"
	platformerrors "github.com/jmgilman/go/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/DIDONEproject/musif-sub000/cache"
	"github.com/DIDONEproject/musif-sub000/internal/config"
	"github.com/DIDONEproject/musif-sub000/metrics/prom"
)

var (
	configFile string
	pprofAddr  string

	cfg    config.Config
	logger *log.Logger

	rootCmd = &cobra.Command{
		Use:               "scorecache",
		Short:             "Feature extraction over scores with a persistent proxy cache",
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file (default: scorecache.yaml in the user config dir)")
	flags.String("log-level", "info", "log level: debug | info | warn | error")
	flags.String("http", "", "serve Prometheus metrics at addr (e.g. :8080); empty = disabled")
	flags.String("snapshot-dir", "", "directory for score snapshots")
	flags.StringVar(&pprofAddr, "pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")

	_ = viper.BindPFlag(config.KeyLogLevel, flags.Lookup("log-level"))
	_ = viper.BindPFlag(config.KeyHTTP, flags.Lookup("http"))
	_ = viper.BindPFlag(config.KeySnapshotDir, flags.Lookup("snapshot-dir"))

	rootCmd.AddCommand(extractCmd, inspectCmd)
}

func setup(cmd *cobra.Command, _ []string) error {
	logger = log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		Prefix:          "scorecache",
	})

	var err error
	if cfg, err = config.Load(viper.GetViper(), configFile); err != nil {
		return err
	}
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return platformerrors.Wrap(err, platformerrors.CodeInvalidConfig, "parse log level")
	}
	logger.SetLevel(level)
	if cfg.Source != "" {
		logger.Debug("using config", "file", cfg.Source)
	}

	if pprofAddr != "" {
		go func() {
			logger.Info("serving pprof", "addr", pprofAddr)
			logger.Error("pprof server stopped", "err", http.ListenAndServe(pprofAddr, nil))
		}()
	}
	return nil
}

// metricsFor returns Prometheus adapters for the proxy caches and the
// reuse cache and starts the /metrics endpoint. Both are nil when no
// address is configured.
func metricsFor() (proxy, reuse cache.Metrics) {
	if cfg.HTTP == "" {
		return nil, nil
	}
	proxy = prom.New(prometheus.DefaultRegisterer, "scorecache", "proxy", nil)
	reuse = prom.New(prometheus.DefaultRegisterer, "scorecache", "reuse", nil)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: cfg.HTTP, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("serving metrics", "addr", cfg.HTTP)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "err", err)
		}
	}()
	return proxy, reuse
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
