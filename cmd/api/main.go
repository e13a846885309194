package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-prompt-market/internal/auth"
	"github.com/ariefcatur/go-prompt-market/internal/config"
	"github.com/ariefcatur/go-prompt-market/internal/httpx"
	kafkax "github.com/ariefcatur/go-prompt-market/internal/kafka"
	"github.com/ariefcatur/go-prompt-market/internal/logging"
	"github.com/ariefcatur/go-prompt-market/internal/orders"
	"github.com/ariefcatur/go-prompt-market/internal/postgres"
	"github.com/ariefcatur/go-prompt-market/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := logging.New(cfg.Env, cfg.ServiceName+"-api")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Repo: Postgres, atau in-memory untuk demo
	var repo orders.Repository
	if cfg.API.MemoryStore {
		log.Warn("using in-memory order store, orders are lost on restart")
		repo = orders.NewMemoryRepo()
	} else {
		if err := postgres.Migrate(cfg.PostgresDSN); err != nil {
			log.Fatal("db migrate", zap.Error(err))
		}
		db, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Fatal("db connect", zap.Error(err))
		}
		defer db.Close()
		repo = &orders.Repo{DB: db}
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	if err := redisx.Ping(ctx, rdb); err != nil {
		log.Fatal("redis ping", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}

	// Kafka producer
	prod := kafkax.NewProducer(cfg.Brokers(), orders.TopicOrderCreated, 1024, log)
	prod.Start()

	router := httpx.NewRouter(log)
	oh := &httpx.OrdersHandler{
		Repo:      repo,
		Producer:  prod,
		Redis:     rdb,
		Tokens:    auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		Service:   cfg.ServiceName,
		DevIssuer: cfg.Auth.DevIssuer,
		Log:       log,
	}
	oh.Register(router)

	// HTTP server
	srv := &http.Server{Addr: cfg.API.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info("HTTP listening", zap.String("addr", cfg.API.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Error("http shutdown incomplete, late order.created events will be dropped", zap.Error(err))
	}
	prod.Close()      // tutup inbox -> flush & close writer
	prod.WaitClosed() // drain
}
