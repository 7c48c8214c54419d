package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/credportal/credportal/cli"
	"github.com/credportal/credportal/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := cli.RootCmd().ExecuteContext(ctx); err != nil {
		logger.GetDefault().Error("Command failed", "error", err)
		stop()
		os.Exit(1)
	}
}
