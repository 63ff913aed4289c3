package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewWatchCommand creates the watch command.
func NewWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch bundle sources and recompile on change",
		Long: `Compile every bundle, then watch the bundle directory and recompile
bundles whose sources change. Each successful recompile bumps the bundle's
version and is reported as it lands. Runs until interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd)
		},
	}

	return cmd
}

func runWatch(cmd *cobra.Command) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	eng := cmdCtx.Engine
	r := cmdCtx.Renderer

	if err := eng.LoadBundles(); err != nil {
		return fmt.Errorf("failed to load bundles: %w", err)
	}

	eng.OnReload(func(id string, version int) {
		r.Info(fmt.Sprintf("reloaded %s (v%d)", id, version))
	})

	r.Info(fmt.Sprintf("watching %s", cmdCtx.Cfg.BundlesDir))
	return eng.Watch(cmd.Context())
}
