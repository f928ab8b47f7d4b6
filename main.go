package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/olusolaa/infra-deployer/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd.Execute(ctx)
}
