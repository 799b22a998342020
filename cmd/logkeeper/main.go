package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"github.com/BurntSushi/toml"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"

	"buddyfeed/pkg/logkeeper"
)

func main() {
	configPath := flag.String("config", "cmd/logkeeper/config.toml", "Path to TOML config file")
	logLevel := flag.String("log", "", "Log level: debug, info, warn, error.")
	workers := flag.Int("workers", 0, "Number of indexing workers, overrides numWorkers.")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("[logkeeper] %v", err)
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *workers > 0 {
		cfg.NumWorkers = *workers
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[logkeeper] %v", err)
	}
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: cfg.ElasticSearchNodes})
	if err != nil {
		log.Fatalf("[logkeeper] failed to create elasticsearch client: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := kafka.NewReader(cfg.ReaderConfig())
	defer r.Close()

	log.Infof("[logkeeper] indexing %s into %s with %d workers", cfg.KafkaTopic, cfg.ElasticSearchIndex, cfg.NumWorkers)
	logkeeper.New(es, cfg.ElasticSearchIndex, cfg.NumWorkers).Run(ctx, r)
	log.Info("[logkeeper] stopped")
}

func loadConfig(path string) (*logkeeper.Config, error) {
	var cfg logkeeper.Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	return &cfg, nil
}
