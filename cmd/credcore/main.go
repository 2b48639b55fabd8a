package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/credcore/internal/app"
	"github.com/dmitrijs2005/credcore/internal/cli"
	"github.com/dmitrijs2005/credcore/internal/config"
)

func main() {

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	cfg := config.LoadConfig()
	a, err := app.New(ctx, cfg, app.Options{LogWriter: os.Stderr})
	if err != nil {
		log.Fatalf("%v", err)
		return
	}
	defer a.Close()

	cli.NewApp(a.Auth(), os.Stdin, os.Stdout).Run(ctx)

}
