package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/kbukum/execkit/cmd/execbench/commands"
	"github.com/kbukum/execkit/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := commands.Execute(ctx); err != nil {
		logger.Error("Command execution failed", logger.Fields(logger.FieldError, err.Error()))
		stop()
		os.Exit(1)
	}
}
