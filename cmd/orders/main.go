package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/peeves91/mcc-final-project/internal/clients"
	"github.com/peeves91/mcc-final-project/internal/config"
	"github.com/peeves91/mcc-final-project/internal/httpx"
	kafkax "github.com/peeves91/mcc-final-project/internal/kafka"
	"github.com/peeves91/mcc-final-project/internal/orders"
	"github.com/peeves91/mcc-final-project/internal/postgres"
	"github.com/peeves91/mcc-final-project/internal/redisx"
	"github.com/peeves91/mcc-final-project/internal/saga"
)

const consumerGroup = "orders-svc"

func main() {
	_ = godotenv.Load()
	cfg := config.Load("orders", ":5000")

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.ServiceName).Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	createdProd := kafkax.NewProducer(cfg.KafkaBrokers, saga.TopicOrderCreated, log)
	defer createdProd.Close()

	repo := &orders.Repo{DB: db}
	coord := &orders.Coordinator{
		Store:   repo,
		Created: createdProd,
		Log:     log,
	}

	// One serialized consume loop per incoming event type; the two loops
	// run independently of each other.
	validatedCons := kafkax.NewConsumer(cfg.KafkaBrokers, consumerGroup, saga.TopicItemsValidated, log)
	failedCons := kafkax.NewConsumer(cfg.KafkaBrokers, consumerGroup, saga.TopicOrderFailed, log)
	go func() {
		if err := validatedCons.Start(ctx, coord.HandleOrderItemsValidated); err != nil {
			log.Error().Err(err).Msg("items-validated consumer exit")
			cancel()
		}
	}()
	go func() {
		if err := failedCons.Start(ctx, coord.HandleOrderFailed); err != nil {
			log.Error().Err(err).Msg("order-failed consumer exit")
			cancel()
		}
	}()

	router := httpx.NewRouter()
	oh := &httpx.OrdersHandler{
		Repo:        repo,
		Coordinator: coord,
		Users:       clients.NewUsers(cfg.UsersBaseURL, cfg.ClientTimeout),
		Cart:        clients.NewCart(cfg.CartBaseURL, cfg.ClientTimeout),
		Items:       clients.NewItems(cfg.ItemsBaseURL, cfg.ClientTimeout),
		Redis:       rdb,
		Log:         log,
	}
	oh.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info().Msg("shutting down")

	shutdownCtx, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(shutdownCtx)
	cancel()
}
