package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/nimburion/movieship/pkg/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := cli.NewRootCommand(cli.Options{
		Name:       "movieship",
		ConfigPath: os.Getenv("MOVIESHIP_CONFIG_FILE"),
		EnvPrefix:  "MOVIESHIP",
	})
	cmd.SetContext(ctx)
	cli.Execute(cmd)
}
