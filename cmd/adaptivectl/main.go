// Package main - adaptivectl, консольный клиент Adaptive Engine.
//
// Позволяет управлять профилями, генерировать инсайты и рекомендации,
// применять переходы жизненного цикла, запускать очистку и смотреть
// статистику обратной связи без запуска Worker.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
