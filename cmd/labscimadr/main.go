package main

import (
	"errors"
	"flag"
	"net/http"
	"os"

	"github.com/brocaar/chirpstack-network-server/v3/adr"
	"github.com/hashicorp/go-plugin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	labscim "github.com/glmoritz/labscimadr/src"
	"github.com/glmoritz/labscimadr/src/config"
	"github.com/glmoritz/labscimadr/src/engine"
	"github.com/glmoritz/labscimadr/src/metrics"
)

var (
	configPath = flag.String("config", "", "path to the YAML configuration")
	presetName = flag.String("preset", "", "override engine.preset from the configuration")
)

func init() {
	flag.Parse()

	// go-plugin owns stdout for its handshake.
	log.SetOutput(os.Stderr)
	log.SetFormatter(&log.TextFormatter{
		DisableColors: true,
		FullTimestamp: true,
	})
}

func loadConfig() (config.Config, error) {
	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return cfg, err
		}
	}
	if *presetName != "" {
		if err := cfg.ApplyPreset(*presetName); err != nil {
			return cfg, err
		}
	}
	return cfg, cfg.Validate()
}

func serveMetrics(addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	log.WithField("listen", addr).Info("metrics server started")
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Error("metrics server")
	}
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.WithError(err).Fatal("load configuration")
	}
	level, _ := log.ParseLevel(cfg.Settings.LogLevel)
	log.SetLevel(level)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	e, err := engine.New(cfg,
		engine.WithLogger(log.WithField("component", "adr")),
		engine.WithMetrics(metrics.New(reg)),
	)
	if err != nil {
		log.WithError(err).Fatal("build adr engine")
	}

	if cfg.Metrics.Listen != "" {
		go serveMetrics(cfg.Metrics.Listen, reg)
	}

	handler := labscim.NewHandler(e, log.WithField("component", "handler"))
	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: adr.HandshakeConfig,
		Plugins: map[string]plugin.Plugin{
			"handler": &adr.HandlerPlugin{Impl: handler},
		},
	})
}
