package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/frameloom-labs/frameloom/internal/cli/output"
	"github.com/spf13/cobra"
)

const initConfig = `# Frameloom project configuration
bundles_dir: bundles
state_path: .frameloom/state.db
output_dir: out
width: 1280
height: 720
fps: 30

preview:
  port: 8710
  watch: true
`

const initManifest = `id: bouncing-ball
name: Bouncing Ball
description: A ball that bounces across the viewport.
entry: main
meta:
  duration: 2
  width: 640
  height: 360
  properties:
    - name: color
      type: color
      default: "#38bdf8"
    - name: size
      type: number
      default: 40
      min: 8
      max: 120
files:
  - path: main
    language: component
  - path: util/easing
    language: script
`

const initMain = `import bounce from "./util/easing"

def Ball(color="#38bdf8", size=40, frame=0, t=0.0, fps=30.0, duration=2.0):
    x = motion.lerp(size, viewport.width - size, t / duration)
    y = viewport.height - size - bounce(t / duration) * 200
    return ui.frame(
        fill="#0f172a",
        children=[
            ui.circle(cx=x, cy=y, r=size, fill=color),
        ],
    )

export default Ball
`

const initEasing = `def bounce(t):
    cycle = motion.oscillate(t, period=0.5)
    return abs(cycle)

export default bounce
`

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new Frameloom project",
		Long: `Initialize a new Frameloom project with default directory structure
and configuration.

This creates:
  - bundles/ directory with a working example component
  - frameloom.yaml configuration file`,
		Example: `  # Initialize in current directory
  frameloom init

  # Initialize in a new directory
  frameloom init my-project

  # Force overwrite existing config
  frameloom init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			cfg := getConfig()
			mode := output.Mode(cfg.OutputFormat)
			r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

			return runInit(r, dir, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")

	return cmd
}

func runInit(r *output.Renderer, dir string, force bool) error {
	if dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	configPath := filepath.Join(dir, "frameloom.yaml")
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("frameloom.yaml already exists. Use --force to overwrite")
	}

	files := map[string]string{
		configPath: initConfig,
		filepath.Join(dir, "bundles", "bouncing-ball", "bundle.yaml"):      initManifest,
		filepath.Join(dir, "bundles", "bouncing-ball", "main.loom"):        initMain,
		filepath.Join(dir, "bundles", "bouncing-ball", "util", "easing.loom"): initEasing,
	}

	for path, content := range files {
		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
		}
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		r.Success(path)
	}

	r.Println("")
	r.Info("Project initialized. Next steps:")
	r.Muted("  frameloom compile")
	r.Muted("  frameloom render bouncing-ball")
	r.Muted("  frameloom serve")
	return nil
}
