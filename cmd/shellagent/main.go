package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/harun/shellagent/internal/cli"
)

func main() {
	// The first interrupt cancels the run so history is saved; a second one
	// falls through to the default handler.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		stop()
	}()

	err := cli.Execute(ctx)
	stop()
	os.Exit(cli.ExitCode(err))
}
