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

	"github.com/ariefcatur/go-prompt-market/internal/cart"
	"github.com/ariefcatur/go-prompt-market/internal/checkout"
	"github.com/ariefcatur/go-prompt-market/internal/config"
	"github.com/ariefcatur/go-prompt-market/internal/httpx"
	kafkax "github.com/ariefcatur/go-prompt-market/internal/kafka"
	"github.com/ariefcatur/go-prompt-market/internal/logging"
	"github.com/ariefcatur/go-prompt-market/internal/orders"
	"github.com/ariefcatur/go-prompt-market/internal/ordersclient"
	"github.com/ariefcatur/go-prompt-market/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := logging.New(cfg.Env, cfg.ServiceName+"-storefront")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cart storage: Redis per session, atau memory kalau Redis tidak dipakai
	var carts *cart.Registry
	if cfg.Storefront.MemoryCarts {
		log.Warn("using in-memory carts, carts are lost on restart")
		carts = cart.NewRegistry(func(string) cart.Repository { return cart.NewMemoryRepository() }, cfg.Storefront.CartIdleTTL)
	} else {
		rdb := redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		if err := redisx.Ping(ctx, rdb); err != nil {
			log.Fatal("redis ping", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		carts = cart.NewRegistry(func(session string) cart.Repository { return cart.NewRedisRepository(rdb, session) }, cfg.Storefront.CartIdleTTL)
	}

	// Producers: authorized & failed (dua topic berbeda)
	pOK := kafkax.NewProducer(cfg.Brokers(), orders.TopicPaymentAuthorized, 1024, log)
	pOK.Start()
	pFail := kafkax.NewProducer(cfg.Brokers(), orders.TopicPaymentFailed, 1024, log)
	pFail.Start()

	flow := checkout.NewFlow(
		ordersclient.New(cfg.Storefront.OrdersBaseURL, cfg.Storefront.OrdersTimeout, log),
		checkout.NewSimulatedGateway(cfg.Storefront.PaymentLatency, cfg.Storefront.PaymentSuccessRate),
		&checkout.EventReporter{Authorized: pOK, Failed: pFail, ServiceName: cfg.ServiceName + "-storefront"},
		log,
	)

	router := httpx.NewRouter(log)
	sh := &httpx.StorefrontHandler{
		Carts:        carts,
		Checkout:     flow,
		SecureCookie: cfg.Env == "production",
		Log:          log,
	}
	sh.Register(router)

	srv := &http.Server{Addr: cfg.Storefront.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info("HTTP listening", zap.String("addr", cfg.Storefront.HTTPAddr),
			zap.String("orders_api", cfg.Storefront.OrdersBaseURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down...")

	// checkout yang sedang jalan bisa makan ORDERS_API_TIMEOUT + latency pembayaran
	grace := 5*time.Second + cfg.Storefront.OrdersTimeout + cfg.Storefront.PaymentLatency
	ctx2, cancel2 := context.WithTimeout(context.Background(), grace)
	defer cancel2()
	if err := srv.Shutdown(ctx2); err != nil {
		// producer menolak Publish setelah Close, event yang telat di-log lalu dibuang
		log.Error("http shutdown incomplete, late payment outcomes will be dropped", zap.Error(err))
	}
	pOK.Close()
	pFail.Close()
	pOK.WaitClosed()
	pFail.WaitClosed()
}
