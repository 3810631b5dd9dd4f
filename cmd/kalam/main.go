package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/kalam-press/kalam"
	"github.com/kalam-press/kalam/views"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	if err := rootCommand().Run(context.Background(), os.Args); err != nil {
		reportError(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCommand() *cli.Command {
	return &cli.Command{
		Name:   "kalam",
		Usage:  "Bilingual author portfolio and blog backed by Notion",
		Flags:  []cli.Flag{configFlag()},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the web server",
				Action: serve,
			},
			{
				Name:   "check",
				Usage:  "Validate the config file and exit",
				Action: check,
			},
			{
				Name:  "version",
				Usage: "Print the kalam version",
				Action: func(context.Context, *cli.Command) error {
					fmt.Printf("kalam %s\n", version)
					return nil
				},
			},
		},
	}
}

// reportError logs err as a single JSON line on w.
func reportError(w io.Writer, err error) {
	log := zerolog.New(w).With().Timestamp().Logger()
	log.Error().Err(err).Msg("application error")
}

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "Path to config file",
		DefaultText: "config/config.yaml",
		Value:       "config/config.yaml",
		Sources:     cli.EnvVars("KALAM_CONFIG"),
	}
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := kalam.LoadConfig(cmd.String("config"))
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	log, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := kalam.New(cfg, views.Default(), kalam.WithLogger(log))
	defer func() {
		if err := app.Close(); err != nil {
			log.Error().Err(err).Msg("close app")
		}
	}()

	log.Info().Str("version", version).Str("site", cfg.Site.URL).Msg("starting kalam")
	if err := app.Start(ctx); err != nil {
		return errors.Wrap(err, "app run error")
	}
	return nil
}

func check(_ context.Context, cmd *cli.Command) error {
	path := cmd.String("config")
	if _, err := kalam.LoadConfig(path); err != nil {
		return err
	}
	fmt.Printf("%s: ok\n", path)
	return nil
}

func newLogger(cfg kalam.LogConfig) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Logger{}, errors.Wrapf(err, "log level %q", cfg.Level)
	}
	if cfg.Pretty {
		w := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
		return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
	}
	return zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger(), nil
}
