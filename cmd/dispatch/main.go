package main

import (
	"context"
	"flag"
	"os"
	"strings"

	"github.com/olzhas-a/dispatch-core/config"
	"github.com/olzhas-a/dispatch-core/internal/app"
	"github.com/olzhas-a/dispatch-core/pkg/logger"
)

var configPath = flag.String("config-path", "config/config.yaml", "Path to the config yaml file")

func main() {
	flag.Parse()

	ctx := context.Background()
	log := logger.InitLogger("dispatch", logger.LevelDebug)

	cfg, err := config.NewConfig(*configPath)
	if err != nil {
		log.Error(ctx, "failed to configure application", err)
		os.Exit(1)
	}

	log = logger.InitLogger("dispatch", strings.ToUpper(cfg.LogLevel))

	application, err := app.NewApplication(ctx, *cfg, log)
	if err != nil {
		log.Error(ctx, "failed to init application", err)
		os.Exit(1)
	}

	if err = application.Run(ctx); err != nil {
		log.Error(ctx, "failed to run application", err)
		os.Exit(1)
	}
}
