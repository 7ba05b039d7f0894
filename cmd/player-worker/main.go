// Player Worker — ведёт runs через удалённый сервер выполнения.
//
// Worker:
//   - Получает новые runs из RabbitMQ и периодически ищет их в БД
//   - Закрепляет run за собой и выполняет его на удалённом сервере
//   - Пересылает ответы на взаимодействия и собирает результаты
//   - Публикует run.finished после каждого run
//
// Workers масштабируются горизонтально: run берёт ровно один процесс.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Player/internal/blob"
	"github.com/shaiso/Player/internal/config"
	"github.com/shaiso/Player/internal/dispatch"
	"github.com/shaiso/Player/internal/domain"
	"github.com/shaiso/Player/internal/mq"
	"github.com/shaiso/Player/internal/proxy"
	"github.com/shaiso/Player/internal/remote"
	"github.com/shaiso/Player/internal/repo"
	"github.com/shaiso/Player/internal/telemetry"
	"github.com/shaiso/Player/internal/worker"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting player-worker")

	cfg, err := config.Load(os.Getenv("PLAYER_CONFIG"))
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	if err := repo.Migrate(ctx, pool); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	blobs, err := blob.NewStore(cfg.BlobDir)
	if err != nil {
		logger.Error("failed to open blob store", "error", err)
		os.Exit(1)
	}

	server, err := remote.NewClient(remote.ClientConfig{
		BaseURL:     cfg.Server.URL,
		Credentials: remote.Credentials{Username: cfg.Server.Username, Password: cfg.Server.Password},
		Timeout:     cfg.Server.Timeout,
		Logger:      logger,
	})
	if err != nil {
		logger.Error("failed to create server client", "error", err)
		os.Exit(1)
	}

	rewriter, err := proxy.NewRewriter(cfg.PublicURL)
	if err != nil {
		logger.Error("failed to create page rewriter", "error", err)
		os.Exit(1)
	}

	registry := worker.NewCallbackRegistry()
	registry.Register("log", func(ctx context.Context, run *domain.Run) error {
		logger.Info("run callback", "run_id", run.ID, "state", run.State, "status", run.StatusMessage)
		return nil
	})
	callbacks, err := cfg.ResolveCallbacks(registry)
	if err != nil {
		logger.Error("failed to resolve callbacks", "error", err)
		os.Exit(1)
	}

	// Создаём репозитории
	runRepo := repo.NewRunRepo(pool)

	w := worker.New(worker.Config{
		Runs:          runRepo,
		Ports:         repo.NewPortRepo(pool),
		Interactions:  repo.NewInteractionRepo(pool),
		Credentials:   repo.NewCredentialRepo(pool),
		Workflows:     repo.NewWorkflowRepo(pool),
		Blobs:         blobs,
		Server:        server,
		Rewriter:      rewriter,
		PollInterval:  cfg.Worker.PollInterval,
		RetryInterval: cfg.Worker.RetryInterval,
		TmpDir:        cfg.Worker.TmpDir,
		Callbacks:     callbacks,
		Logger:        logger,
	})

	dispatchCfg := dispatch.Config{
		Executor:      w,
		Runs:          runRepo,
		MaxConcurrent: cfg.Worker.MaxConcurrentRuns,
		SweepSchedule: cfg.Worker.SweepSchedule,
		SweepBatch:    cfg.Worker.SweepBatch,
		Logger:        logger,
	}

	// RabbitMQ
	mqConn, err := mq.NewConnection(cfg.RabbitMQ.URL, logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, running in polling-only mode", "error", err)
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		// Создаём топологию
		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}

		dispatchCfg.Conn = mqConn
		dispatchCfg.Publisher = mq.NewPublisher(mqConn, logger)
	}

	d, err := dispatch.New(dispatchCfg)
	if err != nil {
		logger.Error("failed to create dispatcher", "error", err)
		os.Exit(1)
	}

	if err := d.Start(ctx); err != nil {
		logger.Error("failed to start dispatcher", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		logger.Info("listening", "addr", cfg.HTTP.WorkerAddr)
		if err := http.ListenAndServe(cfg.HTTP.WorkerAddr, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()

	// Runs в работе получают время на завершение
	d.Stop()
	logger.Info("player-worker stopped")
}
