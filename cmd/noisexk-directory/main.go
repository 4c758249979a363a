package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/lnxk/noisexk/internal/config"
	"github.com/lnxk/noisexk/internal/directory"
)

var version = "dev"

func main() {
	var (
		configPath  = flag.String("config", "", "path to directory config file")
		listen      = flag.String("listen", "", "override listen address (e.g., 0.0.0.0:9394)")
		database    = flag.String("database", "", "override database DSN")
		jwtSecret   = flag.String("jwt-secret", "", "override JWT secret")
		logLevel    = flag.String("log-level", "info", "log level: debug, info, warn, error")
		showVersion = flag.Bool("version", false, "show version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("noisexk-directory %s\n", version)
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

	var cfg *config.DirectoryConfig
	if *configPath != "" {
		var err error
		cfg, err = config.LoadDirectoryConfig(*configPath)
		if err != nil {
			log.Error("load config", "err", err)
			os.Exit(1)
		}
	} else {
		cfg = config.DefaultDirectoryConfig()
	}

	if *listen != "" {
		cfg.Listen = *listen
	}
	if *database != "" {
		cfg.Database = *database
	}
	if *jwtSecret != "" {
		cfg.JWTSecret = *jwtSecret
	}
	cfg.LogLevel = *logLevel

	d, err := directory.New(cfg, log)
	if err != nil {
		log.Error("create directory", "err", err)
		os.Exit(1)
	}

	if err := d.Run(); err != nil {
		log.Error("directory stopped", "err", err)
		os.Exit(1)
	}
}
