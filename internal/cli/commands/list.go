package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/frameloom-labs/frameloom/internal/cli/output"
	"github.com/frameloom-labs/frameloom/pkg/component"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// NewListCommand creates the list command.
func NewListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all component bundles and their compile state",
		Long: `List every bundle known to the project with its entry point, file
count, compile status, and last update time.

Output adapts to environment:
  - Terminal: Styled table output
  - Piped/Scripted: Markdown format (agent-friendly)

Use --output to override: auto, text, markdown, json`,
		Example: `  # List all bundles (auto-detect output format)
  frameloom list

  # List bundles as JSON
  frameloom list --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd)
		},
	}

	return cmd
}

// BundleInfo is the JSON shape of one listed bundle.
type BundleInfo struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Entry     string   `json:"entry"`
	Files     int      `json:"files"`
	Status    string   `json:"status"`
	Version   int      `json:"version,omitempty"`
	Warnings  []string `json:"warnings,omitempty"`
	Errors    []string `json:"errors,omitempty"`
	UpdatedAt string   `json:"updated_at"`
}

// ListOutput is the JSON output for the list command.
type ListOutput struct {
	Bundles []BundleInfo   `json:"bundles"`
	Summary map[string]int `json:"summary"`
}

func runList(cmd *cobra.Command) error {
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

	bundles, err := eng.Bundles()
	if err != nil {
		return fmt.Errorf("failed to list bundles: %w", err)
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return listJSON(cmdCtx, bundles)
	case output.ModeMarkdown:
		return listMarkdown(cmdCtx, bundles)
	default:
		return listText(cmdCtx, bundles)
	}
}

func listText(cmdCtx *CommandContext, bundles []*component.Bundle) error {
	r := cmdCtx.Renderer
	r.Header(1, fmt.Sprintf("Bundles (%d total)", len(bundles)))

	t := table.NewWriter()
	t.SetOutputMirror(r.Writer())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Name", "Entry", "Files", "Status", "Version", "Updated"})

	for _, b := range bundles {
		version := ""
		if mod, ok := cmdCtx.Engine.Lookup(b.ID); ok {
			version = fmt.Sprintf("v%d", mod.Version)
		}
		t.AppendRow(table.Row{
			b.ID, b.Name, b.EntryPoint, len(b.Files),
			string(b.Status), version,
			b.UpdatedAt.Format("2006-01-02 15:04"),
		})
	}

	t.Render()
	return nil
}

func listMarkdown(cmdCtx *CommandContext, bundles []*component.Bundle) error {
	r := cmdCtx.Renderer
	r.Println(output.FormatHeader(1, fmt.Sprintf("Bundles (%d total)", len(bundles))))
	r.Println("")

	for _, b := range bundles {
		r.Println(output.FormatHeader(2, b.ID))
		r.Println(output.FormatKeyValue("Name", b.Name))
		r.Println(output.FormatKeyValue("Entry", b.EntryPoint))
		r.Println(output.FormatKeyValue("Files", fmt.Sprintf("%d", len(b.Files))))
		r.Println(output.FormatKeyValue("Status", string(b.Status)))
		r.Println(output.FormatKeyValue("Updated", b.UpdatedAt.Format(time.RFC3339)))

		if mod, ok := cmdCtx.Engine.Lookup(b.ID); ok {
			r.Println(output.FormatKeyValue("Version", fmt.Sprintf("%d", mod.Version)))
			if len(mod.Warnings) > 0 {
				r.Println(output.FormatKeyValue("Warnings", strings.Join(mod.Warnings, "; ")))
			}
		}

		for _, ce := range b.Errors {
			r.Println(output.FormatKeyValue("Error", ce.Error()))
		}

		r.Println("")
	}

	return nil
}

func listJSON(cmdCtx *CommandContext, bundles []*component.Bundle) error {
	out := ListOutput{
		Bundles: make([]BundleInfo, 0, len(bundles)),
		Summary: make(map[string]int),
	}

	for _, b := range bundles {
		info := BundleInfo{
			ID:        b.ID,
			Name:      b.Name,
			Entry:     b.EntryPoint,
			Files:     len(b.Files),
			Status:    string(b.Status),
			UpdatedAt: b.UpdatedAt.Format(time.RFC3339),
		}
		if mod, ok := cmdCtx.Engine.Lookup(b.ID); ok {
			info.Version = mod.Version
			info.Warnings = mod.Warnings
		}
		for _, ce := range b.Errors {
			info.Errors = append(info.Errors, ce.Error())
		}
		out.Summary[string(b.Status)]++
		out.Bundles = append(out.Bundles, info)
	}

	return cmdCtx.Renderer.JSON(out)
}
