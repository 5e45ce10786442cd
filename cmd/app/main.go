package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"FinSeries/internal/di"
	"FinSeries/pkg/config"
)

func main() {
	defaultPath := "config/config.yaml"
	if v := os.Getenv("FINSERIES_CONFIG"); v != "" {
		defaultPath = v
	}
	configPath := flag.String("config", defaultPath, "config file path")
	checkOnly := flag.Bool("check", false, "validate the config and exit")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if *checkOnly {
		fmt.Printf("config ok: env=%s backend=%s series=%d\n",
			cfg.Environment, cfg.Backend.Type, len(cfg.Aggregation.Series))
		return
	}

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	// blocks until SIGINT or SIGTERM
	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
