package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/TENTURAVITEJA/forecasting-AI/internal/di"
	"github.com/TENTURAVITEJA/forecasting-AI/pkg/config"
	applogger "github.com/TENTURAVITEJA/forecasting-AI/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	checkOnly := flag.Bool("check", false, "validate the configuration and exit")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	if *checkOnly {
		fmt.Printf("%s: ok\n", *configPath)
		return
	}

	boot, err := applogger.New(&applogger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(2)
	}
	boot.Info("starting forecast service",
		applogger.String("env", cfg.Environment),
		applogger.Int("port", cfg.Server.Port),
		applogger.Bool("kafka", cfg.Kafka.Enabled),
		applogger.Bool("clickhouse", cfg.ClickHouse.Enabled),
		applogger.Bool("redis", cfg.Cache.Enabled && cfg.Cache.Redis.Enabled),
	)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		boot.Error("initialization failed", applogger.Error(err))
		os.Exit(1)
	}
	if err := app.Run(); err != nil {
		boot.Error("service stopped with error", applogger.Error(err))
		os.Exit(1)
	}
}
