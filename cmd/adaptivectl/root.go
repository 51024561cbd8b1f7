package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/alem-hub/adaptive-engine/config"
	"github.com/alem-hub/adaptive-engine/internal/bootstrap"
	"github.com/alem-hub/adaptive-engine/pkg/logger"
)

var (
	// configPath - путь к YAML; пусто = поиск по умолчанию
	configPath string

	// storageFlag переопределяет app.storage
	storageFlag string

	logLevelFlag string
)

var rootCmd = &cobra.Command{
	Use:   "adaptivectl",
	Short: "Adaptive Engine command line client",
	Long: `adaptivectl operates the Adaptive Insight & Recommendation Engine directly
against its storage: profiles, insights, recommendations, lifecycle
transitions, cleanup and feedback statistics.

Configuration is read from --config (or ./config.yaml) and ADAPTIVE_* env vars.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&storageFlag, "storage", "", "Storage backend override: postgres or memory")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "warn", "Log level: debug, info, warn, error")
}

// ══════════════════════════════════════════════════════════════════════════════
// ОКРУЖЕНИЕ КОМАНДЫ
// ══════════════════════════════════════════════════════════════════════════════

// env - всё, что нужно одной команде; закрывается после выполнения.
type env struct {
	cfg *config.Config
	log *logger.Logger
	st  *bootstrap.Storage
	eng *bootstrap.Engine

	closers []func()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if storageFlag != "" {
		cfg.App.Storage = storageFlag
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	cfg.Observability.LogLevel = logLevelFlag
	return cfg, nil
}

// openEnv открывает хранилище и собирает обработчики.
func openEnv(ctx context.Context) (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log, err := bootstrap.NewLogger(cfg)
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, log: log}

	e.st, err = bootstrap.OpenStorage(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	e.closers = append(e.closers, e.st.Close)

	locker, rc, err := bootstrap.OpenLocker(ctx, cfg, log)
	if err != nil {
		e.Close()
		return nil, err
	}
	if rc != nil {
		e.closers = append(e.closers, func() { _ = rc.Close() })
	}

	e.eng, err = bootstrap.NewEngine(e.st, locker, nil, nil, cfg.Engine, log)
	if err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

// Close освобождает ресурсы в обратном порядке.
func (e *env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
	_ = e.log.Sync()
}

// withEnv оборачивает RunE: открывает окружение и закрывает его после fn.
func withEnv(fn func(cmd *cobra.Command, args []string, e *env) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()
		return fn(cmd, args, e)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ВЫВОД
// ══════════════════════════════════════════════════════════════════════════════

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
