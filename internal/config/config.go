// Package config provides configuration management for the Frameloom CLI.
//
// Configuration is layered: built-in defaults, then frameloom.yaml, then
// FRAMELOOM_* environment variables, then explicitly-set CLI flags.
package config

// Default configuration values.
const (
	DefaultBundlesDir = "bundles"
	DefaultStateFile  = ".frameloom/state.db"
	DefaultOutputDir  = "out"
	DefaultOutput     = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultWidth      = 1280
	DefaultHeight     = 720
	DefaultFPS        = 30
)

// PreviewConfig holds configuration for the preview server.
type PreviewConfig struct {
	Port     int  `koanf:"port"`
	AutoOpen bool `koanf:"auto_open"`
	Watch    bool `koanf:"watch"`
}

// DefaultPreviewConfig returns a PreviewConfig with default values.
func DefaultPreviewConfig() *PreviewConfig {
	return &PreviewConfig{
		Port:     8710,
		AutoOpen: true,
		Watch:    true,
	}
}

// Config holds all CLI configuration options.
type Config struct {
	BundlesDir   string         `koanf:"bundles_dir"`
	StatePath    string         `koanf:"state_path"`
	OutputDir    string         `koanf:"output_dir"`
	Width        int            `koanf:"width"`
	Height       int            `koanf:"height"`
	FPS          int            `koanf:"fps"`
	PollInterval string         `koanf:"poll_interval"`
	Verbose      bool           `koanf:"verbose"`
	OutputFormat string         `koanf:"output"`
	Preview      *PreviewConfig `koanf:"preview"`

	// ProjectRoot is the resolved project root. Set by the loader, not
	// read from the config file.
	ProjectRoot string `koanf:"-"`
}

// GetPreviewConfig returns the preview config with defaults applied for
// any unset values.
func (c *Config) GetPreviewConfig() *PreviewConfig {
	if c.Preview == nil {
		return DefaultPreviewConfig()
	}
	p := c.Preview
	if p.Port == 0 {
		p.Port = 8710
	}
	return p
}
