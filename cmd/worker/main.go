// Package main - точка входа фонового процесса (Worker) Adaptive Engine.
//
// Worker отвечает за периодические задачи:
// - Жизненный цикл: истечение рекомендаций и инсайтов, удаление устаревших
// - Пакетная генерация инсайтов по поведенческим агрегатам
// - Обновление метрик принятия и средней оценки
//
// Параллельно Worker обслуживает служебные эндпоинты /healthz, /metrics и /jobs.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/alem-hub/adaptive-engine/config"
	"github.com/alem-hub/adaptive-engine/internal/bootstrap"
	"github.com/alem-hub/adaptive-engine/internal/infrastructure/metrics"
	httpserver "github.com/alem-hub/adaptive-engine/internal/interface/http"
	"github.com/alem-hub/adaptive-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	// Корневой контекст отменяется по SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load(os.Getenv(config.EnvPrefix + "_CONFIG"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log, err := bootstrap.NewLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting Adaptive Engine Worker",
		logger.String("storage", cfg.App.Storage),
		logger.String("timezone", cfg.App.Timezone),
		logger.AlgorithmVersion(cfg.Engine.AlgorithmVersion),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ХРАНИЛИЩЕ И МИГРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	st, err := bootstrap.OpenStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing storage...")
		st.Close()
	}()

	if cfg.Database.AutoMigrate {
		if err := bootstrap.Migrate(ctx, st, log); err != nil {
			return err
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. БЛОКИРОВКА ПО ПОЛЬЗОВАТЕЛЮ (Redis или in-process)
	// ─────────────────────────────────────────────────────────────────────────
	locker, redisClient, err := bootstrap.OpenLocker(ctx, cfg, log)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. МЕТРИКИ
	// ─────────────────────────────────────────────────────────────────────────
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New()
	if err := m.Register(registry); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ОБРАБОТЧИКИ ДВИЖКА
	// ─────────────────────────────────────────────────────────────────────────
	eng, err := bootstrap.NewEngine(st, locker, nil, m, cfg.Engine, log)
	if err != nil {
		return err
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. ПЛАНИРОВЩИК
	// ─────────────────────────────────────────────────────────────────────────
	sched, err := bootstrap.NewScheduler(cfg, eng, st, m, log)
	if err != nil {
		return err
	}
	if cfg.Scheduler.Enabled {
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	} else {
		log.Warn("scheduler disabled, jobs run only on demand")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. СЛУЖЕБНЫЙ HTTP СЕРВЕР
	// ─────────────────────────────────────────────────────────────────────────
	var server *httpserver.Server
	var serverErr <-chan error
	if cfg.Observability.HTTPAddr != "" {
		httpCfg := httpserver.DefaultConfig()
		httpCfg.Addr = cfg.Observability.HTTPAddr
		server = httpserver.NewServer(httpCfg, httpserver.Dependencies{
			Logger:        log,
			HealthChecker: bootstrap.NewHealthChecker(cfg, st, redisClient),
			Gatherer:      registry,
			Jobs:          sched,
			JobControl:    sched,
		})
		serverErr = server.StartAsync()
	}

	log.Info("Adaptive Engine Worker is running")

	// ─────────────────────────────────────────────────────────────────────────
	// 9. ОЖИДАНИЕ СИГНАЛА
	// ─────────────────────────────────────────────────────────────────────────
	var runErr error
	select {
	case <-ctx.Done():
		log.Info("received shutdown signal")
	case err, ok := <-serverErr:
		if ok && err != nil {
			runErr = err
			log.Error("http server failed", logger.Err(err))
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 10. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("starting graceful shutdown...", logger.Duration("timeout", cfg.App.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.App.ShutdownTimeout)
	defer cancel()

	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("http server shutdown failed", logger.Err(err))
		}
	}

	stopped := make(chan struct{})
	go func() {
		if err := sched.Stop(); err != nil && cfg.Scheduler.Enabled {
			log.Warn("scheduler stop", logger.Err(err))
		}
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-shutdownCtx.Done():
		runErr = errors.Join(runErr, errors.New("shutdown timed out waiting for jobs"))
	}

	log.Info("shutdown completed")
	return runErr
}
