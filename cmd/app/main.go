package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/ferrix/tagscan/internal"
	pkgconfig "github.com/ferrix/tagscan/pkg/config"
	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	// The config file is optional; defaults scan the current directory.
	if err := pkgconfig.LoadIfExists(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if root := cmd.String("root"); root != "" {
		cfg.Scan.Root = root
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func runMode(mode string, extra func(cmd *cli.Command) []internal.Option) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		opts := []internal.Option{
			internal.WithConfig(cfg),
			internal.WithMode(mode),
		}
		if extra != nil {
			opts = append(opts, extra(cmd)...)
		}

		if err := internal.Run(ctx, opts...); err != nil {
			return fmt.Errorf("app run error: %w", err)
		}
		return nil
	}
}

func main() {
	cmd := &cli.Command{
		Name:  "tagscan",
		Usage: "Index TODO/FIXME-style annotation comments across a source tree, with incremental caching and live watch",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "tagscan.yaml",
				Value:       "tagscan.yaml",
				Sources:     cli.EnvVars("TAGSCAN_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Scan root (overrides config)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "scan",
				Usage: "Scan the tree once and print all annotation items",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Emit a JSON document instead of text lines",
					},
					&cli.BoolFlag{
						Name:  "record",
						Usage: "Record the run in the history database",
					},
					&cli.IntFlag{
						Name:  "history",
						Usage: "List the N most recent recorded runs instead of scanning",
					},
				},
				Action: runMode(internal.ModeScan, func(cmd *cli.Command) []internal.Option {
					return []internal.Option{
						internal.WithJSONOutput(cmd.Bool("json")),
						internal.WithRecord(cmd.Bool("record")),
						internal.WithHistoryList(int(cmd.Int("history"))),
					}
				}),
			},
			{
				Name:   "watch",
				Usage:  "Scan, then watch the tree and print item changes as they happen",
				Action: runMode(internal.ModeWatch, nil),
			},
			{
				Name:   "serve",
				Usage:  "Scan, watch, and serve the index over HTTP with SSE change events",
				Action: runMode(internal.ModeServe, nil),
			},
			{
				Name:   "mcp",
				Usage:  "Serve scan tools over the Model Context Protocol on stdio",
				Action: runMode(internal.ModeMCP, nil),
			},
		},
		DefaultCommand: "scan",
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
