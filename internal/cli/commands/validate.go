package commands

import (
	"fmt"

	"github.com/frameloom-labs/frameloom/internal/cli/output"
	"github.com/frameloom-labs/frameloom/internal/source"
	"github.com/frameloom-labs/frameloom/internal/validate"
	"github.com/spf13/cobra"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [bundle-id...]",
		Short: "Validate bundle sources without compiling",
		Long: `Scan bundle sources for forbidden capabilities (network access,
storage access, dynamic evaluation) without executing anything. Style and
data files are skipped; only script sources are scanned.`,
		Example: `  # Validate every bundle
  frameloom validate

  # Validate one bundle
  frameloom validate bouncing-ball`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, args)
		},
	}

	return cmd
}

// ValidationResult is the JSON shape of one validated bundle.
type ValidationResult struct {
	BundleID   string   `json:"bundle_id"`
	Violations []string `json:"violations"`
}

func runValidate(cmd *cobra.Command, args []string) error {
	cmdCtx := NewCommandContextWithoutEngine(cmd)
	r := cmdCtx.Renderer

	src := source.NewDirSource(cmdCtx.Cfg.BundlesDir)

	ids := args
	if len(ids) == 0 {
		var err error
		ids, err = src.List()
		if err != nil {
			return fmt.Errorf("failed to list bundles: %w", err)
		}
	}

	var results []ValidationResult
	total := 0
	for _, id := range ids {
		b, err := src.Load(id)
		if err != nil {
			return fmt.Errorf("failed to load bundle %s: %w", id, err)
		}

		violations := validate.Bundle(b)
		total += len(violations)

		res := ValidationResult{BundleID: id, Violations: []string{}}
		for _, v := range violations {
			res.Violations = append(res.Violations, v.String())
		}
		results = append(results, res)
	}

	if r.EffectiveMode() == output.ModeJSON {
		if err := r.JSON(results); err != nil {
			return err
		}
	} else {
		for _, res := range results {
			if len(res.Violations) == 0 {
				r.Success(res.BundleID + " clean")
				continue
			}
			r.Error(fmt.Sprintf("%s has %d violations", res.BundleID, len(res.Violations)))
			for _, v := range res.Violations {
				r.Muted("  " + v)
			}
		}
	}

	if total > 0 {
		return fmt.Errorf("%d violations across %d bundles", total, len(ids))
	}
	return nil
}
