// flowcollectd - standalone NetFlow v5/v9/IPFIX collector
// Listens for exporter datagrams on UDP and prints decoded flow events as JSON lines
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/zapr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	netflow "github.com/flowlane/go-netflow"
)

// Config represents the collector configuration
type Config struct {
	Listen string `yaml:"listen"`

	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Listen  string `yaml:"listen"`
	} `yaml:"metrics"`

	Decoder struct {
		Versions                []uint16 `yaml:"versions"`
		CacheTTLSeconds         int      `yaml:"cache_ttl"`
		SwitchedTimesFromUptime bool     `yaml:"switched_times_from_uptime"`
		Definitions             string   `yaml:"definitions"`
		IPFIXDefinitions        string   `yaml:"ipfix_definitions"`
		CacheSavePath           string   `yaml:"cache_save_path"`
		IncludeFlowsetId        bool     `yaml:"include_flowset_id"`
	} `yaml:"decoder"`
}

func loadConfig(path string) (Config, error) {
	config := Config{}
	config.Listen = ":2055"
	config.Metrics.Listen = ":9116"

	if path == "" {
		return config, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return config, err
	}
	if err := yaml.Unmarshal(raw, &config); err != nil {
		return config, err
	}
	return config, nil
}

func main() {
	var configPath string
	var debug bool
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.BoolVar(&debug, "debug", false, "enable debug logging")
	flag.Parse()

	zapConfig := zap.NewProductionConfig()
	if debug {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zl, err := zapConfig.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer zl.Sync()

	logger := zapr.NewLogger(zl)
	netflow.SetLogger(logger)

	config, err := loadConfig(configPath)
	if err != nil {
		logger.Error(err, "failed to load config", "path", configPath)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	decoder, err := netflow.NewDecoder(ctx, netflow.DecoderOptions{
		Versions:                config.Decoder.Versions,
		CacheTTL:                time.Duration(config.Decoder.CacheTTLSeconds) * time.Second,
		SwitchedTimesFromUptime: config.Decoder.SwitchedTimesFromUptime,
		Definitions:             config.Decoder.Definitions,
		IPFIXDefinitions:        config.Decoder.IPFIXDefinitions,
		CacheSavePath:           config.Decoder.CacheSavePath,
		IncludeFlowsetId:        config.Decoder.IncludeFlowsetId,
	})
	if err != nil {
		logger.Error(err, "failed to construct decoder")
		os.Exit(1)
	}

	if config.Metrics.Enabled {
		registry := prometheus.NewRegistry()
		netflow.RegisterMetrics(registry)

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		server := &http.Server{Addr: config.Metrics.Listen, Handler: mux}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error(err, "metrics server failed")
			}
		}()
		go func() {
			<-ctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			server.Shutdown(shutdownCtx)
		}()
		logger.Info("serving metrics", "addr", config.Metrics.Listen)
	}

	listener := netflow.NewUDPListener(config.Listen)
	go func() {
		if err := listener.Listen(ctx); err != nil {
			logger.Error(err, "udp listener failed")
			cancel()
		}
	}()

	out := json.NewEncoder(os.Stdout)
	sink := func(ts time.Time, event *netflow.Event) {
		if err := out.Encode(event); err != nil {
			logger.Error(err, "failed to write event")
		}
	}

	for packet := range listener.Packets() {
		// decode errors drop the datagram, never the collector
		_ = decoder.Decode(ctx, packet.Payload, packet.Host, sink)
	}

	if err := decoder.Persist(context.Background()); err != nil {
		logger.Error(err, "failed to persist template cache on shutdown")
	}
	logger.Info("shut down")
}
