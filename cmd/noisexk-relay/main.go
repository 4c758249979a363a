package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/lnxk/noisexk/internal/config"
	"github.com/lnxk/noisexk/internal/relay"
)

var version = "dev"

func main() {
	var (
		configPath  = flag.String("config", "", "path to relay config file")
		listen      = flag.String("listen", "", "override listen address (e.g., 0.0.0.0:9736)")
		logLevel    = flag.String("log-level", "info", "log level")
		showVersion = flag.Bool("version", false, "show version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("noisexk-relay %s\n", version)
		os.Exit(0)
	}

	var level slog.Level
	switch strings.ToLower(*logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	var cfg *config.RelayConfig
	if *configPath != "" {
		var err error
		cfg, err = config.LoadRelayConfig(*configPath)
		if err != nil {
			log.Error("load config", "err", err)
			os.Exit(1)
		}
	} else {
		cfg = config.DefaultRelayConfig()
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	cfg.LogLevel = *logLevel

	srv := relay.New(relay.Config{ListenAddr: cfg.Listen}, log)
	if err := srv.Start(); err != nil {
		log.Error("start relay", "err", err)
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down relay server")
	srv.Stop()
}
