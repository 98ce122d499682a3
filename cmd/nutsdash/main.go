package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/nutsq/nutsdash/cmd/nutsdash/commands"
	"github.com/nutsq/nutsdash/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := commands.Execute(ctx)
	stop()
	logger.Cleanup()

	if err != nil {
		commands.PrintError(os.Stderr, err)
		os.Exit(1)
	}
}
