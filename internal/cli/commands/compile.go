package commands

import (
	"errors"
	"fmt"

	"github.com/frameloom-labs/frameloom/internal/compiler"
	"github.com/spf13/cobra"
)

// NewCompileCommand creates the compile command.
func NewCompileCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile [bundle-id...]",
		Short: "Compile component bundles",
		Long: `Compile the named bundles, or every bundle in the project when no
names are given. Compilation validates sources, resolves imports, executes
module bodies, and caches the resulting component handles.

A bundle that fails to compile keeps its previous cached artifact; the
failure is reported and recorded on the bundle status.`,
		Example: `  # Compile everything
  frameloom compile

  # Compile one bundle
  frameloom compile bouncing-ball`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd, args)
		},
	}

	cmd.Flags().Bool("force", false, "Recompile even when the cache is fresh")

	return cmd
}

func runCompile(cmd *cobra.Command, args []string) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	eng := cmdCtx.Engine
	r := cmdCtx.Renderer

	ids := args
	if len(ids) == 0 {
		if err := eng.LoadBundles(); err != nil {
			return fmt.Errorf("failed to load bundles: %w", err)
		}
		bundles, err := eng.Bundles()
		if err != nil {
			return err
		}
		// LoadBundles already compiled everything; reuse the list for the
		// per-bundle reports below.
		ids = ids[:0]
		for _, b := range bundles {
			ids = append(ids, b.ID)
		}
	}

	force, _ := cmd.Flags().GetBool("force")
	if force {
		eng.Invalidate(ids...)
	}

	failed := 0
	for _, id := range ids {
		mod, err := eng.CompileBundle(id)
		if err != nil {
			failed++
			var cerr *compiler.Error
			if errors.As(err, &cerr) {
				r.Error(fmt.Sprintf("%s failed", id))
				for _, v := range cerr.Violations {
					r.Muted("  " + v.String())
				}
				for _, ce := range cerr.Errors {
					r.Muted("  " + ce.Error())
				}
				continue
			}
			r.Error(fmt.Sprintf("%s: %v", id, err))
			continue
		}

		r.Success(fmt.Sprintf("%s compiled (v%d)", id, mod.Version))
		for _, w := range mod.Warnings {
			r.Warning("  " + w)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d bundles failed to compile", failed, len(ids))
	}
	return nil
}
