package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/reviewdesk/internal/buildinfo"
	"github.com/dmitrijs2005/reviewdesk/internal/client/cli"
	"github.com/dmitrijs2005/reviewdesk/internal/client/config"
	"github.com/dmitrijs2005/reviewdesk/internal/logging"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("%v", err)
	}

	logger := logging.NewTextLogger(os.Stderr, cfg.LogLevel)

	app, err := cli.NewApp(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	app.Run(ctx)

}
