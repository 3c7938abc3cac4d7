package main

import (
	"context"
	"fmt"
	"os"

	"github.com/AlanSobenes/jira-label-sync/internal"
	pkgconfig "github.com/AlanSobenes/jira-label-sync/pkg/config"
	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"
)

func run(ctx context.Context, cmd *cli.Command) error {
	dryRun := cmd.Bool("dry-run")
	apply := cmd.Bool("apply")
	if dryRun == apply {
		return fmt.Errorf("pass exactly one flag: --dry-run or --apply")
	}

	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
		internal.WithApply(apply),
	}

	return internal.Run(ctx, opts...)
}

func main() {
	cmd := &cli.Command{
		Name:   "jira-label-sync",
		Usage:  "Batch reconciliation of the dependency label on issues linked to the core scope",
		Action: run,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Preview label changes only",
			},
			&cli.BoolFlag{
				Name:  "apply",
				Usage: "Apply label mutations in Jira",
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}
