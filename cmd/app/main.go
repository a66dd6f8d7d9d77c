package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/jobpilot/internal"
	pkgconfig "github.com/starford/jobpilot/pkg/config"
)

const version = "0.1.0"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func sources(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	list, err := internal.ListSources(ctx, internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
	if err != nil {
		return fmt.Errorf("list sources: %w", err)
	}
	return printJSON(list)
}

func checkPermissions(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	report, err := internal.CheckPermissions(ctx, internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
	if err != nil {
		return fmt.Errorf("check permissions: %w", err)
	}
	return printJSON(report)
}

func setPermission(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 2 {
		return fmt.Errorf("usage: permissions set <capability> <status>")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.SetPermission(ctx, cmd.Args().Get(0), cmd.Args().Get(1),
		internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
}

func record(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	req := internal.RecordRequest{
		InterviewID: cmd.String("interview"),
		Title:       cmd.String("title"),
		Company:     cmd.String("company"),
		Transcript:  cmd.String("transcript"),
		SourceID:    cmd.String("source"),
		Duration:    cmd.Duration("duration"),
	}
	res, err := internal.Record(ctx, req, internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
	if err != nil {
		return fmt.Errorf("record: %w", err)
	}
	return printJSON(res)
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.ServeMCP(ctx, version, internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
}

func main() {
	cmd := &cli.Command{
		Name:    "jobpilot",
		Usage:   "Record mock interviews and keep them in a local library",
		Version: version,
		Action:  serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API, IPC bridge and background recorder",
				Action: serve,
			},
			{
				Name:   "sources",
				Usage:  "Print the capturable screens and windows as JSON",
				Action: sources,
			},
			{
				Name:   "permissions",
				Usage:  "Check media capture permissions",
				Action: checkPermissions,
				Commands: []*cli.Command{
					{
						Name:      "set",
						Usage:     "Record a permission status",
						ArgsUsage: "<capability> <status>",
						Action:    setPermission,
					},
				},
			},
			{
				Name:  "record",
				Usage: "Pick a source, record it and save the result to an interview",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "interview", Usage: "Existing interview id"},
					&cli.StringFlag{Name: "title", Usage: "Title of a new interview"},
					&cli.StringFlag{Name: "company", Usage: "Company of a new interview"},
					&cli.StringFlag{Name: "transcript", Usage: "Transcript text to save with the video"},
					&cli.StringFlag{Name: "source", Usage: "Source id; skips the picker"},
					&cli.DurationFlag{Name: "duration", Usage: "Stop after this long instead of waiting for Enter"},
				},
				Action: record,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the interview library over MCP on stdio",
				Action: serveMCP,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
