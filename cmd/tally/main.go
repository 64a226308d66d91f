package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gissleh/tally"
	"github.com/gissleh/tally/handlers"
	"github.com/gissleh/tally/karma"
	"github.com/gissleh/tally/metric"
)

var flagConfig = flag.String("config", "", "Path to a yaml config file")
var flagServer = flag.String("server", "", "The server host to connect to")
var flagPort = flag.Int("port", 0, "The server port")
var flagNick = flag.String("nick", "", "The bot nick")
var flagChannels = flag.String("channels", "", "Comma-separated list of channels to join")
var flagSsl = flag.Bool("ssl", false, "Whether to connect securely")
var flagSkipVerify = flag.Bool("skip-verify", false, "Skip SSL verification")
var flagDatabase = flag.String("db", "", "Path to the karma database file")
var flagMetricsAddr = flag.String("metrics-addr", "", "Listen address for /metrics, empty disables it")
var flagDebug = flag.Bool("debug", false, "Log at debug level")

func main() {
	flag.Parse()

	level := slog.LevelInfo
	if *flagDebug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	config := tally.Config{}
	if *flagConfig != "" {
		loaded, err := tally.LoadConfig(*flagConfig)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to load config: %s\n", err)
			os.Exit(1)
		}

		config = loaded
	}

	if *flagServer != "" {
		config.Server = *flagServer
	}
	if *flagPort != 0 {
		config.Port = *flagPort
	}
	if *flagNick != "" {
		config.Nick = *flagNick
	}
	if *flagChannels != "" {
		config.Channels = strings.Split(*flagChannels, ",")
	}
	if *flagSsl {
		config.SSL = true
	}
	if *flagSkipVerify {
		config.SkipSSLVerification = true
	}
	if *flagDatabase != "" {
		config.Database = *flagDatabase
	}
	if *flagMetricsAddr != "" {
		config.MetricsAddr = *flagMetricsAddr
	}

	config = config.WithDefaults()
	config.Logger = logger

	metrics := metric.New()
	registry := prometheus.NewRegistry()
	if err := metrics.Register(registry); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to register metrics: %s\n", err)
		os.Exit(1)
	}
	config.Metrics = metrics

	if config.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

			logger.Info("metrics listening", "addr", config.MetricsAddr)
			if err := http.ListenAndServe(config.MetricsAddr, mux); err != nil {
				logger.Error("metrics listener failed", "error", err)
			}
		}()
	}

	store, err := karma.Open(config.Database)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to open karma database: %s\n", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := tally.New(ctx, config)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to construct client: %s\n", err)
		os.Exit(1)
	}

	client.AddHandler(handlers.Karma(store, metrics))

	exitSignal := make(chan os.Signal, 1)
	signal.Notify(exitSignal, os.Interrupt, syscall.SIGTERM)

	<-exitSignal

	logger.Info("shutting down")
	client.Destroy()
}
