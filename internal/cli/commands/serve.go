package commands

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/frameloom-labs/frameloom/internal/preview"
	"github.com/spf13/cobra"
)

// ServeOptions holds options for the serve command.
type ServeOptions struct {
	Port    int
	NoWatch bool
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &ServeOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the component preview server",
		Long: `Compile every bundle and serve a browser preview with a frame
scrubber. Frames render on demand; when watching is enabled, source
changes recompile the bundle and connected previews refresh live.`,
		Example: `  # Serve on the configured port
  frameloom serve

  # Serve on a specific port without watching
  frameloom serve --port 9000 --no-watch`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Port, "port", "p", 0, "Port to serve on (default: config)")
	cmd.Flags().BoolVar(&opts.NoWatch, "no-watch", false, "Disable source watching")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	eng := cmdCtx.Engine
	if err := eng.LoadBundles(); err != nil {
		return fmt.Errorf("failed to load bundles: %w", err)
	}

	previewCfg := cmdCtx.Cfg.GetPreviewConfig()
	port := opts.Port
	if port == 0 {
		port = previewCfg.Port
	}
	watch := previewCfg.Watch && !opts.NoWatch

	srv := preview.NewServer(preview.Config{
		Engine:        eng,
		Port:          port,
		Watch:         watch,
		SessionSecret: sessionSecret(),
		FPS:           float64(cmdCtx.Cfg.FPS),
		Logger:        cmdCtx.Logger,
	})

	return srv.Serve(cmd.Context())
}

// sessionSecret generates an ephemeral cookie secret. Preview sessions
// only track UI state, so they do not need to survive restarts.
func sessionSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "frameloom-preview-fallback"
	}
	return hex.EncodeToString(buf)
}
