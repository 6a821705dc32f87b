package main

import (
	"context"

	"github.com/pawbridge/console-backend/internal/app"
	"github.com/pawbridge/console-backend/internal/logging"
	"github.com/pawbridge/console-backend/internal/utils"
	server "github.com/pawbridge/console-backend/pkg/httpserver"
	"github.com/sethvargo/go-signalcontext"
)

func main() {
	ctx, done := signalcontext.OnInterrupt()
	defer done()

	logger := logging.FromContext(ctx)

	if err := realMain(ctx); err != nil {
		logger.Fatal(err)
	}
}

func realMain(ctx context.Context) error {
	config, err := utils.LoadConfig(ctx)
	if err != nil {
		return err
	}

	logger := logging.NewLogger(config.LogLevel).Named("console")
	ctx = logging.WithLogger(ctx, logger)

	console, err := app.New(ctx, config)
	if err != nil {
		return err
	}
	defer console.Close()

	if err := console.Start(ctx); err != nil {
		return err
	}

	srv, err := server.NewServer(ctx, &server.Config{Port: config.Port})
	if err != nil {
		return err
	}
	logger.Infof("listening on %s", srv.Addr())

	return srv.ServeHTTPHandler(ctx, console.Handler())
}
