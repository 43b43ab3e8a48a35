package daemon

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"gridsync/pkg/archive"
	"gridsync/pkg/client"
	"gridsync/pkg/config"
	"gridsync/pkg/handler"
	httpHandler "gridsync/pkg/http"
	"gridsync/pkg/logger"
	"gridsync/pkg/notify"
	"gridsync/pkg/results"
	"gridsync/pkg/s3"
	"gridsync/pkg/shared"
)

type DaemonService struct {
	server          *asynq.Server
	httpServer      *http.Server
	transferHandler *handler.TransferHandler
	notifyHandler   *handler.NotifyHandler
	httpHandler     *httpHandler.HTTPHandler
	config          *config.Config
}

func NewDaemonService(config *config.Config) (*DaemonService, error) {
	logger.SetLevel(logger.ParseLevel(config.Daemon.LogLevel))

	redisOpt := asynq.RedisClientOpt{
		Addr:     config.Redis.Addr,
		Password: config.Redis.Password,
		DB:       config.Redis.DB,
	}

	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: config.Daemon.Concurrency,
		Queues: map[string]int{
			"default": 6,
		},
	})

	redisClient := redis.NewClient(&redis.Options{
		Addr:     config.Redis.Addr,
		Password: config.Redis.Password,
		DB:       config.Redis.DB,
	})

	asyncClient := asynq.NewClient(redisOpt)

	transferClient, err := client.New(&config.Service)
	if err != nil {
		return nil, fmt.Errorf("create transfer client: %w", err)
	}

	resultStore := results.NewStore(redisClient, time.Duration(config.Results.TTLHours)*time.Hour)

	var archiver *archive.Archiver
	if config.Archive.Enabled {
		logger.Info("creating archive backend", map[string]any{
			"bucket": config.Archive.S3.Bucket,
			"prefix": config.Archive.Prefix,
		})
		s3Client, err := s3.CreateS3Client(config.Archive.S3)
		if err != nil {
			return nil, fmt.Errorf("create S3 client: %w", err)
		}
		archiver = archive.NewArchiver(s3Client, &config.Archive)
	}

	var notifier *notify.Debouncer
	var notifyHandler *handler.NotifyHandler
	if config.Notify.Enabled {
		notifier = notify.NewDebouncer(redisClient, asyncClient, &config.Notify, logger.NewDefault())
		notifyHandler = handler.NewNotifyHandler(&config.Notify, notifier, asyncClient)
	}

	transferHandler := handler.NewTransferHandler(transferClient, config, resultStore, archiver, notifier)

	httpHandler, err := httpHandler.NewHTTPHandler(config, resultStore)
	if err != nil {
		return nil, fmt.Errorf("create http handler: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/transfers", httpHandler.TransfersHandler)
	mux.HandleFunc("/transfers/", httpHandler.OutcomeHandler)
	mux.HandleFunc("/healthz", httpHandler.HealthzHandler)

	httpServer := &http.Server{
		Addr:    config.HTTP.Addr,
		Handler: mux,
	}

	return &DaemonService{
		server:          server,
		httpServer:      httpServer,
		transferHandler: transferHandler,
		notifyHandler:   notifyHandler,
		httpHandler:     httpHandler,
		config:          config,
	}, nil
}

func (d *DaemonService) Start() error {
	go func() {
		logger.Info("starting HTTP server", map[string]any{
			"addr": d.config.HTTP.Addr,
		})

		if err := d.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", err, nil)
		}
	}()

	logger.Info("starting Asynq server", map[string]any{
		"concurrency": d.config.Daemon.Concurrency,
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(shared.TaskTypeTransfer, d.transferHandler.Handle)
	if d.notifyHandler != nil {
		mux.HandleFunc(shared.TaskTypeNotify, d.notifyHandler.ProcessTask)
	}
	return d.server.Run(mux)
}

func (d *DaemonService) Shutdown(ctx context.Context) error {
	logger.Info("initiating graceful shutdown", nil)

	if d.httpHandler != nil {
		d.httpHandler.Close()
	}

	if err := d.httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown failed", err, nil)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		d.server.Shutdown()
	}()

	select {
	case <-done:
		logger.Info("all tasks completed, shutdown successful", nil)
		return nil
	case <-ctx.Done():
		logger.Warn("shutdown timeout, forcing exit", nil)
		return ctx.Err()
	}
}
