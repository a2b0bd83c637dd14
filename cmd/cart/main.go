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

	"github.com/peeves91/mcc-final-project/internal/cart"
	"github.com/peeves91/mcc-final-project/internal/clients"
	"github.com/peeves91/mcc-final-project/internal/config"
	"github.com/peeves91/mcc-final-project/internal/httpx"
	kafkax "github.com/peeves91/mcc-final-project/internal/kafka"
	"github.com/peeves91/mcc-final-project/internal/postgres"
	"github.com/peeves91/mcc-final-project/internal/redisx"
	"github.com/peeves91/mcc-final-project/internal/saga"
)

const consumerGroup = "cart-svc"

func main() {
	_ = godotenv.Load()
	cfg := config.Load("cart", ":6000")

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

	validatedProd := kafkax.NewProducer(cfg.KafkaBrokers, saga.TopicCartValidated, log)
	defer validatedProd.Close()
	failedProd := kafkax.NewProducer(cfg.KafkaBrokers, saga.TopicOrderFailed, log)
	defer failedProd.Close()

	repo := &cart.Repo{DB: db}
	stage := &cart.Stage{
		Store:     repo,
		Validated: validatedProd,
		Failed:    failedProd,
		Dedup:     &redisx.Deduper{R: rdb, Service: cfg.ServiceName},
		Log:       log,
	}

	createdCons := kafkax.NewConsumer(cfg.KafkaBrokers, consumerGroup, saga.TopicOrderCreated, log)
	go func() {
		if err := createdCons.Start(ctx, stage.HandleOrderCreated); err != nil {
			log.Error().Err(err).Msg("order-created consumer exit")
			cancel()
		}
	}()

	router := httpx.NewRouter()
	ch := &httpx.CartHandler{
		Repo:  repo,
		Items: clients.NewItems(cfg.ItemsBaseURL, cfg.ClientTimeout),
		Log:   log,
	}
	ch.Register(router)

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
