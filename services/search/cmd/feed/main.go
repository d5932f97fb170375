package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"shenanigigs/common/telemetry"
	"shenanigigs/services/search/internal/config"
	"shenanigigs/services/search/internal/feed"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

func main() {
	workers := flag.Int("workers", 10, "number of publishing workers")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer func() {
		if err := logger.Sync(); err != nil {
			log.Printf("failed to sync logger: %v", err)
		}
	}()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	nc, err := nats.Connect(cfg.NATSURL,
		nats.Timeout(cfg.NATSConnTimeout),
		nats.Name("search-feed"),
	)
	if err != nil {
		logger.Fatal("failed to connect to NATS", zap.Error(err))
	}
	defer func() {
		if err := nc.Drain(); err != nil {
			logger.Warn("failed to drain NATS connection", zap.Error(err))
		}
	}()

	in := os.Stdin
	if path := flag.Arg(0); path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			logger.Fatal("failed to open feed", zap.String("path", path), zap.Error(err))
		}
		defer f.Close()
		in = f
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader := feed.NewLoader(nc, cfg.IngestSubject, *workers, logger, telemetry.GetTracer("shenanigigs/search/feed"))
	if _, err := loader.Load(ctx, in); err != nil {
		logger.Error("feed load failed", zap.Error(err))
	}
}
