package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/starford/othala/internal"
	"github.com/starford/othala/internal/familyservice"
	"github.com/starford/othala/internal/index"
	"github.com/starford/othala/internal/mcpserver"
	"github.com/starford/othala/internal/quality"
	"github.com/starford/othala/internal/storage"
	pkgconfig "github.com/starford/othala/pkg/config"
	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"
)

func configFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "Path to config file",
		DefaultText: "config/config.yaml",
		Value:       "config/config.yaml",
		Sources:     cli.EnvVars("APP_CONFIG_FILE"),
	}
}

// loadConfig reads the YAML config, falling back to built-in defaults when
// the file is absent and the path was not given explicitly. MCP clients
// usually launch the binary without a config file next to it.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) && !cmd.IsSet("config") {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid default config: %w", err)
		}
		return cfg, nil
	}
	if err := pkgconfig.Load(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func runMCP(_ context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// Stdout carries the MCP protocol stream, so logs go to stderr.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return fmt.Errorf("create vault dir: %w", err)
	}

	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	if err := index.Sync(db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	svc := familyservice.NewService(store, db, logger, familyservice.Options{
		DefaultGenerations: cfg.Graph.DefaultMaxGenerations,
		Thresholds: quality.Thresholds{
			MaxAgeYears:        cfg.Quality.MaxAgeYears,
			MinParentAgeYears:  cfg.Quality.MinParentAgeYears,
			MaxParentAgeYears:  cfg.Quality.MaxParentAgeYears,
			MaxAfterDeathYears: cfg.Quality.MaxAfterDeathYears,
		},
	})

	logger.Info("MCP server starting on stdio", slog.String("vault_path", cfg.Vault.Path))

	if err := mcpserver.New(svc, store).ServeStdio(); err != nil {
		return fmt.Errorf("mcp server error: %w", err)
	}

	return nil
}

func main() {
	cmd := &cli.Command{
		Name:   "othala",
		Usage:  "Family history vault with bidirectional relationship sync, tree traversal, and consistency checks over plain Markdown records",
		Action: runServe,
		Flags: []cli.Flag{
			configFlag(),
		},
		Commands: []*cli.Command{
			{
				Name:   "mcp",
				Usage:  "Serve vault tools to LLM clients over stdio",
				Action: runMCP,
				Flags: []cli.Flag{
					configFlag(),
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
