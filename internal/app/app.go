package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/andreyxaxa/Photo-Pipeline/config"
	kafkactrl "github.com/andreyxaxa/Photo-Pipeline/internal/controller/kafka"
	"github.com/andreyxaxa/Photo-Pipeline/internal/controller/restapi"
	infrakafka "github.com/andreyxaxa/Photo-Pipeline/internal/infrastructure/kafka"
	"github.com/andreyxaxa/Photo-Pipeline/internal/infrastructure/notify"
	"github.com/andreyxaxa/Photo-Pipeline/internal/repo/persistent"
	"github.com/andreyxaxa/Photo-Pipeline/internal/repo/webapi"
	"github.com/andreyxaxa/Photo-Pipeline/internal/usecase/pipeline"
	"github.com/andreyxaxa/Photo-Pipeline/internal/usecase/presence"
	"github.com/andreyxaxa/Photo-Pipeline/internal/usecase/project"
	"github.com/andreyxaxa/Photo-Pipeline/internal/usecase/quota"
	"github.com/andreyxaxa/Photo-Pipeline/pkg/httpserver"
	"github.com/andreyxaxa/Photo-Pipeline/pkg/kafka/consumer"
	"github.com/andreyxaxa/Photo-Pipeline/pkg/kafka/producer"
	"github.com/andreyxaxa/Photo-Pipeline/pkg/logger"
	"github.com/andreyxaxa/Photo-Pipeline/pkg/postgres"
	"github.com/andreyxaxa/Photo-Pipeline/pkg/redisclient"
	"github.com/andreyxaxa/Photo-Pipeline/pkg/s3client"
)

func Run(cfg *config.Config) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Logger
	l := logger.New(cfg.Log.Level)

	// Repository

	// s3
	s3Ctx, s3Cancel := context.WithTimeout(ctx, cfg.S3.CfgLoadTimeout)
	defer s3Cancel()
	s3c, err := s3client.New(s3Ctx, cfg.S3.Endpoint, cfg.S3.AccessKey, cfg.S3.SecretKey)
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - s3client.New: %w", err))
	}

	// postgres
	pg, err := postgres.New(cfg.PG.URL, postgres.MaxPoolSize(cfg.PG.PoolMax))
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - postgres.New: %w", err))
	}
	defer pg.Close()

	err = persistent.RunMigrations(ctx, cfg.PG.URL)
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - persistent.RunMigrations: %w", err))
	}

	// redis
	rc, err := redisclient.New(ctx, cfg.Redis.Addr,
		redisclient.Password(cfg.Redis.Password),
		redisclient.DB(cfg.Redis.DB),
	)
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - redisclient.New: %w", err))
	}
	defer rc.Close()

	projectRepo := persistent.NewProjectRepo(pg)
	processRepo := persistent.NewProcessRepo(pg)
	resultRepo := persistent.NewResultRepo(pg)
	cacheRepo := persistent.NewPreviewCacheRepo(pg)
	blobRepo := persistent.NewBlobRepo(s3c, cfg.S3.Bucket)
	presenceRepo := persistent.NewPresenceRepo(rc)
	quotaAPI := webapi.NewQuotaClient(cfg.Quota.BaseURL, cfg.Quota.Timeout)

	// Kafka Producer
	kafkaProducer, err := producer.New(ctx, cfg.Kafka.Brokers)
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - producer.New: %w", err))
	}

	dispatcher := infrakafka.NewStepDispatcher(kafkaProducer, cfg.Kafka.DispatchTopicPrefix)
	notifier := notify.NewRedisNotifier(rc, cfg.Notify.ChannelPrefix)

	// Use-Case
	projectUseCase := project.New(projectRepo, processRepo, resultRepo, blobRepo, presenceRepo, pg, l)
	quotaUseCase := quota.New(projectRepo, quotaAPI, l)
	pipelineUseCase := pipeline.New(
		projectRepo,
		processRepo,
		resultRepo,
		cacheRepo,
		blobRepo,
		quotaUseCase,
		dispatcher,
		notifier,
		cfg.Presign.TTL,
		l,
	)
	presenceUseCase := presence.New(presenceRepo, quotaAPI, cfg.Presence.Window, cfg.Presence.EditorLimit, l)

	// Kafka Consumer
	kafkaConsumer, err := consumer.New(ctx, cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.ResultsTopic)
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - consumer.New: %w", err))
	}

	// Kafka as Controller
	kafkaController := kafkactrl.New(
		pipelineUseCase,
		infrakafka.NewResultConsumer(kafkaConsumer),
		l,
		cfg.KafkaController.CommitTimeout,
		cfg.KafkaController.ProcessTimeout,
		cfg.KafkaController.Workers,
	)

	// HTTP Server
	httpServer := httpserver.New(l, httpserver.Port(cfg.HTTP.Port), httpserver.Prefork(cfg.HTTP.UsePreforkMode))
	restapi.NewRouter(httpServer.App, cfg, projectUseCase, pipelineUseCase, presenceUseCase, l)

	// Start Components
	err = kafkaController.Start(ctx)
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - kafkaController.Start: %w", err))
	}
	httpServer.Start()

	// Waiting Signal
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	select {
	case s := <-interrupt:
		l.Info("app - Run - signal: %s", s.String())
	case err = <-httpServer.Notify():
		l.Error(fmt.Errorf("app - Run - httpServer.Notify: %w", err))
	}

	// Shutdown
	err = httpServer.Shutdown()
	if err != nil {
		l.Error(fmt.Errorf("app - Run - httpServer.Shutdown: %w", err))
	}

	kcShutdownCtx, kcShutdownCancel := context.WithTimeout(ctx, cfg.KafkaController.ShutdownTimeout)
	defer kcShutdownCancel()
	err = kafkaController.Shutdown(kcShutdownCtx)
	if err != nil {
		l.Error(fmt.Errorf("app - Run - kafkaController.Shutdown: %w", err))
	}

	err = dispatcher.Close()
	if err != nil {
		l.Error(fmt.Errorf("app - Run - dispatcher.Close: %w", err))
	}
}
