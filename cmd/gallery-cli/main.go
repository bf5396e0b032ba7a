package main

import (
	"context"
	"io"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/example/gallery/internal/client"
)

var version = "dev"

func main() {
	_ = godotenv.Load()

	app := &cli.Command{
		Name:    "gallery-cli",
		Usage:   "Search and populate a media gallery from the terminal",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Usage:   "Gallery API base URL",
				Value:   "http://localhost:8080",
				Sources: cli.EnvVars("GALLERY_API_URL"),
			},
			&cli.StringFlag{
				Name:    "api-key",
				Usage:   "API key sent as X-Api-Key",
				Sources: cli.EnvVars("GALLERY_API_KEY"),
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Per-request timeout (0 for none)",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Commands: []*cli.Command{
			searchCommand(),
			importCommand(),
			tagsCommand(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func apiClient(cmd *cli.Command) *client.Client {
	return client.New(cmd.String("server"),
		client.WithAPIKey(cmd.String("api-key")),
		client.WithTimeout(cmd.Duration("timeout")),
	)
}

func cliLogger(cmd *cli.Command) *slog.Logger {
	if !cmd.Bool("debug") {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func tagsCommand() *cli.Command {
	return &cli.Command{
		Name:      "tags",
		Usage:     "List tags of active media",
		ArgsUsage: "[prefix]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			tags, err := apiClient(cmd).Tags(ctx, cmd.Args().First())
			if err != nil {
				return err
			}
			renderTags(os.Stdout, tags)
			return nil
		},
	}
}
