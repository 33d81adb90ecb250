// poolmon runs a database connection pool and serves an HTTP monitor for it.
//
// Usage:
//
//	poolmon [flags]
//
// Flags:
//
//	-config string
//	    Path to configuration file (default "~/.connpool/config.toml")
//	-env string
//	    Optional dotenv file with CONNPOOL_DB_USER and CONNPOOL_DB_SECRET (default ".env")
//	-v
//	    Enable verbose logging
//	-version
//	    Print version and exit
//
// Endpoints:
//
//	GET  /metrics              Prometheus metrics
//	GET  /api/stats[?since=]   pool statistics as JSON
//	GET  /api/config           live pool configuration
//	POST /api/probe            check out, validate and return a connection
//	POST /api/stats/reset      reset the statistics counters
//	POST /api/pool/enable      enable the pool
//	POST /api/pool/disable     disable the pool
//	GET  /healthz, /readyz     liveness and readiness
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/go-i2p/connpool/lib/core"
	"github.com/go-i2p/connpool/lib/metrics"
	"github.com/go-i2p/connpool/lib/pool"
	"github.com/go-i2p/connpool/lib/resilience"
	"github.com/go-i2p/connpool/lib/sqlres"
	"github.com/go-i2p/connpool/lib/web"
	"github.com/go-i2p/connpool/version"
)

func main() {
	os.Exit(run())
}

func run() int {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	defaultConfigPath := filepath.Join(homeDir, ".connpool", "config.toml")

	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	envPath := flag.String("env", ".env", "Optional dotenv file with database credentials")
	verbose := flag.Bool("v", false, "Enable verbose logging")
	showVersion := flag.Bool("version", false, "Print version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "poolmon - database connection pool monitor\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  poolmon [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if *showVersion {
		fmt.Println(version.Banner("poolmon"))
		return 0
	}

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	if err := loadEnv(*envPath); err != nil {
		logger.Error("failed to load env file", "path", *envPath, "error", err)
		return 1
	}

	cfg, err := core.LoadConfig(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return 1
	}
	cfg.ApplyEnv()

	factory, err := buildFactory(cfg)
	if err != nil {
		logger.Error("failed to build connection factory", "error", err)
		return 1
	}

	p, err := pool.New(guardFactory(cfg, factory), cfg.Credential(), cfg.PoolConfig())
	if err != nil {
		logger.Error("failed to create pool", "driver", cfg.Database.Driver, "error", err)
		return 1
	}
	defer p.Close()

	metrics.RecordStartTime()
	go logEvents(logger, p.Events())

	srv, err := web.New(p, web.Config{
		ListenAddr:   cfg.Monitor.Listen,
		ProbeTimeout: time.Duration(cfg.Monitor.ProbeTimeout),
		Admin:        adminLimits(cfg),
		Logger:       logger,
	})
	if err != nil {
		logger.Error("failed to create monitor", "error", err)
		return 1
	}
	if err := srv.Start(); err != nil {
		logger.Error("failed to start monitor", "error", err)
		return 1
	}

	logger.Info("poolmon started",
		"driver", cfg.Database.Driver,
		"min", cfg.Pool.MinimumSize,
		"max", cfg.Pool.MaximumSize,
		"version", version.Full(),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("received signal, shutting down", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	exitCode := 0
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("error stopping monitor", "error", err)
		exitCode = 1
	}
	if err := p.Close(); err != nil {
		logger.Error("error closing pool", "error", err)
		exitCode = 1
	}

	logger.Info("shutdown complete")
	return exitCode
}

// loadEnv loads path into the environment. A missing file is not an error;
// variables already set take precedence over the file.
func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}

// buildFactory returns the connection factory for the configured driver.
func buildFactory(cfg *core.Config) (*sqlres.Factory, error) {
	f := &sqlres.Factory{
		Driver:      cfg.Database.Driver,
		PingTimeout: time.Duration(cfg.Database.PingTimeout),
	}
	switch cfg.Database.Driver {
	case "mysql":
		f.DSN = sqlres.MySQLDSN(cfg.Database.Address, cfg.Database.Name)
	case "sqlite3":
		f.DSN = sqlres.SQLiteDSN(cfg.Database.Path)
	default:
		return nil, fmt.Errorf("unsupported driver %q", cfg.Database.Driver)
	}
	return f, nil
}

// guardFactory puts the creation breaker in front of f unless the
// configuration disables it.
func guardFactory(cfg *core.Config, f pool.Factory) pool.Factory {
	if cfg.Database.BreakerFailures <= 0 {
		return f
	}
	return resilience.Guard(f, resilience.NewBreaker(cfg.Database.Driver, resilience.Config{
		FailureThreshold: cfg.Database.BreakerFailures,
		OpenTimeout:      time.Duration(cfg.Database.BreakerTimeout),
	}))
}

// adminLimits returns the POST route budgets for the monitor.
func adminLimits(cfg *core.Config) web.AdminLimits {
	l := web.DefaultAdminLimits()
	l.TrustProxy = cfg.Monitor.TrustProxy
	return l
}

// logEvents logs pool events until the pool closes the channel.
func logEvents(logger *slog.Logger, events <-chan pool.Event) {
	for ev := range events {
		level := slog.LevelDebug
		switch ev.Type {
		case pool.EventEnabled, pool.EventDisabled, pool.EventClosed, pool.EventConfigChanged:
			level = slog.LevelInfo
		}
		logger.Log(context.Background(), level, "pool event",
			"type", ev.Type.String(),
			"size", ev.Size,
			"in_use", ev.InUse,
		)
	}
}
