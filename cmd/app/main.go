package main

import (
	"flag"
	"log"
	"os"

	"github.com/katsup07/stock-predictor-2/internal/di"
	"github.com/katsup07/stock-predictor-2/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s redis=%t clickhouse=%t kafka=%t",
		cfg.Environment, cfg.Redis.Enabled, cfg.ClickHouse.Enabled, cfg.Kafka.Enabled)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
