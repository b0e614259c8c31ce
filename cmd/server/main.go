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

	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/config"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/enrichment"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/handler"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/infra"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/lifecycle"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/repository"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/router"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/service"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/shipment"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/weighing"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/worker"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Structured logger. dev: pretty, prod: JSON
	zerolog.TimeFieldFormat = time.RFC3339
	if !cfg.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := infra.NewMetrics()

	// ── External clients behind breakers ─────────────────────────────────────
	notFound := func(err error) bool { return errors.Is(err, enrichment.ErrNotFound) }
	nfeCB := infra.NewCircuitBreaker("nfe_sidecar", infra.DefaultCBConfig(), metrics)
	cnpjCB := infra.NewCircuitBreaker("brasilapi", infra.CircuitBreakerConfig{OpenTimeout: 30 * time.Second, Ignore: notFound}, metrics)
	cepCB := infra.NewCircuitBreaker("viacep", infra.CircuitBreakerConfig{OpenTimeout: 30 * time.Second, Ignore: notFound}, metrics)

	nfeClient := infra.NewNFeClient(cfg.NFeSidecarURL, nfeCB)
	lookups := service.NewLookupService(
		infra.NewBrasilAPIClient(cfg.BrasilAPIURL, cnpjCB),
		infra.NewViaCEPClient(cfg.ViaCEPURL, cepCB),
		rdb,
		cfg.LookupCacheTTL(),
		metrics,
	)

	mailer := infra.NewMailer(cfg)
	events := infra.NewEventPublisher(cfg.Brokers(), cfg.KafkaTopicDocuments, metrics)
	defer events.Close()

	// ── Document lifecycle ───────────────────────────────────────────────────
	dispatcher := worker.NewDispatcher(rdb)
	shipmentRepo := repository.NewShipmentRepository(db)
	var emails worker.EmailQueue = dispatcher
	if !mailer.Enabled() {
		log.Warn().Msg("smtp not configured, authorized documents will not be e-mailed")
		emails = nil
	}
	syncer := lifecycle.NewSyncer(shipmentRepo, nfeClient, worker.NewNotifier(events, emails))

	syncWorker := worker.NewSyncWorker(syncer, shipmentRepo)
	emailWorker := worker.NewEmailWorker(mailer, nfeClient)
	pool := worker.NewPool(rdb, map[string]worker.JobHandler{
		worker.JobDocumentSync: syncWorker.Process,
		worker.JobEmail:        emailWorker.Process,
	}, metrics)
	pool.Start(ctx, cfg.WorkerPoolSize)

	worker.StartRetryCron(ctx, worker.RetryCronConfig{
		Store:  shipmentRepo,
		Syncer: syncer,
		CB:     nfeCB,
		RDB:    rdb,
	})

	moisture, shrink, impurities := cfg.DiscountDefaults()
	r := router.New(ctx, cfg, router.Deps{
		DB:       db,
		RDB:      rdb,
		Metrics:  metrics,
		NFe:      nfeClient,
		Lookups:  lookups,
		Syncer:   syncer,
		Queue:    dispatcher,
		Defaults: shipment.Defaults{Policy: weighing.Policy{RefMoisture: moisture, ShrinkFactor: shrink, RefImpurities: impurities}},
		Breakers: []handler.BreakerState{nfeCB, cnpjCB, cepCB},
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("carregamentos backend listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server exited")
}
