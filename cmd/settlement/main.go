package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-prompt-market/internal/config"
	kafkax "github.com/ariefcatur/go-prompt-market/internal/kafka"
	"github.com/ariefcatur/go-prompt-market/internal/logging"
	"github.com/ariefcatur/go-prompt-market/internal/orders"
	"github.com/ariefcatur/go-prompt-market/internal/postgres"
	"github.com/ariefcatur/go-prompt-market/internal/redisx"
	"github.com/ariefcatur/go-prompt-market/internal/settlement"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := logging.New(cfg.Env, cfg.ServiceName+"-settlement")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	if err := postgres.Migrate(cfg.PostgresDSN); err != nil {
		log.Fatal("db migrate", zap.Error(err))
	}
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	if err := redisx.Ping(ctx, rdb); err != nil {
		log.Fatal("redis ping", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}

	svc := &settlement.Service{
		Repo:        &orders.Repo{DB: db},
		Redis:       rdb,
		ServiceName: "settlement",
		Log:         log,
	}

	// Consumer per topic
	subs := []struct {
		topic   string
		handler kafkax.Handler
	}{
		{orders.TopicPaymentAuthorized, svc.HandlePaymentAuthorized},
		{orders.TopicPaymentFailed, svc.HandlePaymentFailed},
	}
	var wg sync.WaitGroup
	for _, s := range subs {
		cons := kafkax.NewConsumer(cfg.Brokers(), cfg.Settlement.Group, s.topic, cfg.Settlement.Workers, log)
		wg.Add(1)
		go func(topic string, h kafkax.Handler) {
			defer wg.Done()
			log.Info("settlement consumer started", zap.String("group", cfg.Settlement.Group),
				zap.String("topic", topic), zap.Int("workers", cfg.Settlement.Workers))
			if err := cons.Start(ctx, h); err != nil {
				log.Error("consumer exit", zap.String("topic", topic), zap.Error(err))
				cancel()
			}
		}(s.topic, s.handler)
	}

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Info("shutting down consumers...")
	cancel()
	wg.Wait()
}
