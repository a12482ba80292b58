package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/openrpg/internal/sheetctl"
	"github.com/okian/openrpg/pkg/logger"
)

func main() {
	if err := logger.Init(logger.WithOutput(os.Stderr)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sheetctl.Run(ctx, os.Args[1:], os.Stdout); err != nil {
		if !errors.Is(err, sheetctl.ErrUsage) {
			os.Stderr.WriteString(err.Error() + "\n")
		}
		stop()
		os.Exit(1)
	}
}
