// Command statusctl is the operator tool of the fleet status collector.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		zap.Must(zap.NewDevelopment()).Sugar().Fatal(err)
	}
}
