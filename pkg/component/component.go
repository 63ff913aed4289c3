// Package component defines the core data model for Frameloom component
// bundles: multi-file visual components authored in loomscript, compiled
// into executable render handles.
package component

import (
	"fmt"
	"time"
)

// Language identifies the dialect of a bundle file.
type Language string

// Language constants.
const (
	// LanguageComponent is loomscript defining a renderable component.
	LanguageComponent Language = "component"
	// LanguageScript is a loomscript utility module.
	LanguageScript Language = "script"
	// LanguageStyle is raw style text, exposed as a default-export string.
	LanguageStyle Language = "style"
	// LanguageData is a JSON document, exposed as a default-export value.
	LanguageData Language = "data"
)

// BundleStatus tracks the compile state of a bundle.
type BundleStatus string

const (
	// StatusDraft means the bundle has never been compiled.
	StatusDraft BundleStatus = "draft"
	// StatusCompiled means the last compile pass succeeded.
	StatusCompiled BundleStatus = "compiled"
	// StatusError means the last compile pass failed; Errors is non-empty.
	StatusError BundleStatus = "error"
)

// BundleSource records where a bundle came from.
type BundleSource string

const (
	// SourceAuthor marks a hand-written bundle.
	SourceAuthor BundleSource = "author"
	// SourceGenerated marks an AI-generated bundle.
	SourceGenerated BundleSource = "generated"
	// SourceImported marks a bundle imported from an external library.
	SourceImported BundleSource = "imported"
)

// File is a single source file within a bundle.
// The path is relative, unique within the bundle, and never starts with a
// slash. Content is immutable for the duration of a compile pass.
type File struct {
	// Path is the bundle-relative path (e.g. "util/easing")
	Path string
	// Content is the raw source text
	Content string
	// Language is the file dialect
	Language Language
}

// PropertyDescriptor describes one author-configurable component property.
type PropertyDescriptor struct {
	// Name is the property key passed to the component on invocation
	Name string
	// Type is the editor-facing type: "number", "string", "color", "bool"
	Type string
	// Default is the value used when the author has not set one
	Default any
	// Min and Max bound numeric properties (nil when unbounded)
	Min *float64
	Max *float64
}

// Meta carries the editable-property descriptors and timing defaults a
// host needs to place a component on a timeline.
type Meta struct {
	// Properties are the editable-property descriptors
	Properties []PropertyDescriptor
	// DefaultDuration is the suggested clip duration in seconds
	DefaultDuration float64
	// Width and Height are the component's natural pixel size
	Width  int
	Height int
}

// CompileError is a single compile failure tied to a bundle file.
// Compile errors are never silently dropped; they surface on the bundle
// status and to the caller.
type CompileError struct {
	// File is the bundle-relative path of the offending file
	File string
	// Line and Column locate the failure when known (1-based, 0 = unknown)
	Line   int
	Column int
	// Message is the human-readable failure description
	Message string
}

func (e CompileError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

// Violation is a forbidden-capability match reported by the source
// validator. Its presence halts compilation for the file.
type Violation struct {
	// File is the bundle-relative path that matched
	File string
	// Line locates the match when known (1-based, 0 = unknown)
	Line int
	// Rule is the identifier of the rule that matched (e.g. "FL001")
	Rule string
	// Reason is the human-readable explanation
	Reason string
}

func (v Violation) String() string {
	if v.Line > 0 {
		return fmt.Sprintf("%s:%d: %s (%s)", v.File, v.Line, v.Reason, v.Rule)
	}
	return fmt.Sprintf("%s: %s (%s)", v.File, v.Reason, v.Rule)
}

// Bundle is a named set of component source files with a designated entry
// point. Bundles are the unit of compilation, caching, and hot reload.
type Bundle struct {
	// ID is the stable bundle identity
	ID string
	// Name is the display name
	Name string
	// Description is an optional human-readable description
	Description string
	// EntryPoint is the path of the entry file; must match a file in Files
	EntryPoint string
	// Files are the bundle source files, paths unique, order preserved
	Files []File
	// Dependencies are external capability names the bundle declares
	Dependencies []string
	// Meta carries property descriptors and timing defaults
	Meta Meta
	// Status is the compile state
	Status BundleStatus
	// Errors holds compile failures when Status is StatusError
	Errors []CompileError
	// CreatedAt and UpdatedAt track bundle lifecycle; the compiler compares
	// UpdatedAt against the cached artifact's compile time for freshness
	CreatedAt time.Time
	UpdatedAt time.Time
	// Source is the provenance tag
	Source BundleSource
}

// FileByPath returns the file with the given path, if present.
func (b *Bundle) FileByPath(path string) (File, bool) {
	for _, f := range b.Files {
		if f.Path == path {
			return f, true
		}
	}
	return File{}, false
}

// Validate checks the structural invariants of a bundle: a non-empty id,
// unique relative file paths, and an entry point that resolves to a file.
func (b *Bundle) Validate() error {
	if b.ID == "" {
		return fmt.Errorf("bundle has no id")
	}
	if len(b.Files) == 0 {
		return fmt.Errorf("bundle %s has no files", b.ID)
	}
	seen := make(map[string]struct{}, len(b.Files))
	for _, f := range b.Files {
		if f.Path == "" {
			return fmt.Errorf("bundle %s: file with empty path", b.ID)
		}
		if f.Path[0] == '/' {
			return fmt.Errorf("bundle %s: file path %q must be relative", b.ID, f.Path)
		}
		if _, dup := seen[f.Path]; dup {
			return fmt.Errorf("bundle %s: duplicate file path %q", b.ID, f.Path)
		}
		seen[f.Path] = struct{}{}
	}
	if b.EntryPoint == "" {
		return fmt.Errorf("bundle %s has no entry point", b.ID)
	}
	if _, ok := b.FileByPath(b.EntryPoint); !ok {
		return fmt.Errorf("bundle %s: entry point %q does not match any file", b.ID, b.EntryPoint)
	}
	return nil
}
