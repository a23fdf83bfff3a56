package main

import (
	"github.com/alecthomas/kingpin/v2"
	"github.com/maxbolgarin/contem"
	"github.com/maxbolgarin/critique/internal/app"
	"github.com/maxbolgarin/critique/internal/config"
	"github.com/maxbolgarin/erro"
	"github.com/maxbolgarin/logze/v2"
)

var (
	Version, Branch, Commit, BuildDate string
)

var (
	configPath = kingpin.Flag("config", "path to config file").Short('c').String()
)

func main() {
	kingpin.Parse()

	var err error
	ctx := contem.New(contem.WithLogger(logze.DefaultPtr()), contem.Exit(&err))
	defer ctx.Shutdown()
	err = run(ctx)
	if err != nil {
		logze.DefaultPtr().Error("cannot run", "error", err)
	}
}

func run(ctx contem.Context) error {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return erro.Wrap(err, "load config")
	}
	logze.Init(logze.C().WithConsole().WithLevel(parseLevel(cfg.LogLevel)))

	critique, err := app.New(ctx, cfg)
	if err != nil {
		return erro.Wrap(err, "init app")
	}

	if err := critique.Start(ctx); err != nil {
		return erro.Wrap(err, "start server")
	}

	return nil
}

func parseLevel(raw string) string {
	switch raw {
	case "debug":
		return logze.LevelDebug
	case "warn":
		return logze.LevelWarn
	case "error":
		return logze.LevelError
	default:
		return logze.LevelInfo
	}
}
