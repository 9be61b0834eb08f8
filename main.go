package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/raysh454/clipper/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Execute(ctx)
	stop()
	os.Exit(code)
}
