package commands

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/frameloom-labs/frameloom/internal/cli/output"
	"github.com/frameloom-labs/frameloom/internal/config"
	"github.com/frameloom-labs/frameloom/internal/engine"
	"github.com/frameloom-labs/frameloom/internal/sandbox"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Engine   *engine.Engine
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext with engine and renderer.
// Returns the context and a cleanup function that must be called
// (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())

	eng, err := createEngine(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	cleanup := func() {
		_ = eng.Close()
	}

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Engine:   eng,
		Renderer: r,
	}, cleanup, nil
}

// NewCommandContextWithoutEngine creates a CommandContext without an
// engine. Useful for commands that don't need the compile pipeline.
func NewCommandContextWithoutEngine(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// getConfig returns the current configuration.
// It uses config.GetCurrentConfig() if available, otherwise falls back to
// environment variables.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}

	bundlesDir := getEnvOrDefault("FRAMELOOM_BUNDLES_DIR", config.DefaultBundlesDir)
	statePath := getEnvOrDefault("FRAMELOOM_STATE_PATH", config.DefaultStateFile)
	outputDir := getEnvOrDefault("FRAMELOOM_OUTPUT_DIR", config.DefaultOutputDir)
	verbose := os.Getenv("FRAMELOOM_VERBOSE") == "true"
	outputFormat := os.Getenv("FRAMELOOM_OUTPUT")

	return &config.Config{
		BundlesDir:   bundlesDir,
		StatePath:    statePath,
		OutputDir:    outputDir,
		Width:        config.DefaultWidth,
		Height:       config.DefaultHeight,
		FPS:          config.DefaultFPS,
		Verbose:      verbose,
		OutputFormat: outputFormat,
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func createEngine(cfg *config.Config, logger *slog.Logger) (*engine.Engine, error) {
	// Ensure state directory exists
	stateDir := filepath.Dir(cfg.StatePath)
	if stateDir != "." && stateDir != "" {
		if err := os.MkdirAll(stateDir, 0750); err != nil {
			return nil, err
		}
	}

	var pollInterval time.Duration
	if cfg.PollInterval != "" {
		if d, err := time.ParseDuration(cfg.PollInterval); err == nil {
			pollInterval = d
		}
	}

	engineCfg := engine.Config{
		BundlesDir:   cfg.BundlesDir,
		StatePath:    cfg.StatePath,
		Viewport:     sandbox.Viewport{Width: cfg.Width, Height: cfg.Height},
		PollInterval: pollInterval,
		Logger:       logger,
	}

	return engine.New(engineCfg)
}
