package preview

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/evanw/esbuild/pkg/api"
)

//go:embed player.ts
var playerSource string

var (
	playerOnce sync.Once
	playerJS   string
	playerErr  error
)

// buildPlayer compiles the embedded TypeScript player to browser JS.
// The result is cached for the lifetime of the process; the player only
// changes with the binary.
func buildPlayer(minify bool) (string, error) {
	playerOnce.Do(func() {
		opts := api.TransformOptions{
			Loader:     api.LoaderTS,
			Target:     api.ES2020,
			Format:     api.FormatIIFE,
			Sourcefile: "player.ts",
			LogLevel:   api.LogLevelSilent,
		}
		if minify {
			opts.MinifyWhitespace = true
			opts.MinifyIdentifiers = true
			opts.MinifySyntax = true
		}

		result := api.Transform(playerSource, opts)
		if len(result.Errors) > 0 {
			var msg string
			for _, err := range result.Errors {
				if err.Location != nil {
					msg += fmt.Sprintf("%s:%d:%d: %s\n",
						err.Location.File, err.Location.Line, err.Location.Column, err.Text)
					continue
				}
				msg += err.Text + "\n"
			}
			playerErr = fmt.Errorf("player build failed:\n%s", msg)
			return
		}
		playerJS = string(result.Code)
	})
	return playerJS, playerErr
}
