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

	"github.com/peeves91/mcc-final-project/internal/config"
	"github.com/peeves91/mcc-final-project/internal/httpx"
	"github.com/peeves91/mcc-final-project/internal/inventory"
	kafkax "github.com/peeves91/mcc-final-project/internal/kafka"
	"github.com/peeves91/mcc-final-project/internal/postgres"
	"github.com/peeves91/mcc-final-project/internal/saga"
)

const consumerGroup = "inventory-svc"

func main() {
	_ = godotenv.Load()
	cfg := config.Load("items", ":8000")

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.ServiceName).Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	defer db.Close()

	validatedProd := kafkax.NewProducer(cfg.KafkaBrokers, saga.TopicItemsValidated, log)
	defer validatedProd.Close()
	failedProd := kafkax.NewProducer(cfg.KafkaBrokers, saga.TopicOrderFailed, log)
	defer failedProd.Close()

	repo := &inventory.Repo{DB: db}
	stage := &inventory.Stage{
		Store:     repo,
		Validated: validatedProd,
		Failed:    failedProd,
		Log:       log,
	}

	cartValidatedCons := kafkax.NewConsumer(cfg.KafkaBrokers, consumerGroup, saga.TopicCartValidated, log)
	go func() {
		if err := cartValidatedCons.Start(ctx, stage.HandleCartValidated); err != nil {
			log.Error().Err(err).Msg("cart-validated consumer exit")
			cancel()
		}
	}()

	router := httpx.NewRouter()
	ih := &httpx.ItemsHandler{Repo: repo, Log: log}
	ih.Register(router)

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
