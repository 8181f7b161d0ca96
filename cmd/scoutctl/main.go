package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/scout/internal/cli"
	"github.com/okian/scout/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := cli.NewRootCommand().ExecuteContext(ctx)
	stop()
	_ = logger.Sync()
	if err != nil {
		os.Stderr.WriteString("scoutctl: " + err.Error() + "\n")
		os.Exit(1)
	}
}
