// Package source provides bundle sources: implementations of the
// fetch-by-id contract the watcher and engine consume. The directory
// source reads bundles from local disk, one directory per bundle, with a
// bundle.yaml manifest and sibling content files.
package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/frameloom-labs/frameloom/internal/watch"
	"github.com/frameloom-labs/frameloom/pkg/component"
	"gopkg.in/yaml.v3"
)

// ManifestName is the per-bundle manifest file name.
const ManifestName = "bundle.yaml"

// manifest is the on-disk bundle representation: the file list carries
// paths and languages only; content lives in sibling files.
type manifest struct {
	ID           string         `yaml:"id"`
	Name         string         `yaml:"name"`
	Description  string         `yaml:"description,omitempty"`
	Entry        string         `yaml:"entry"`
	Source       string         `yaml:"source,omitempty"`
	Dependencies []string       `yaml:"dependencies,omitempty"`
	Meta         manifestMeta   `yaml:"meta,omitempty"`
	Files        []manifestFile `yaml:"files"`
}

type manifestMeta struct {
	Duration   float64            `yaml:"duration,omitempty"`
	Width      int                `yaml:"width,omitempty"`
	Height     int                `yaml:"height,omitempty"`
	Properties []manifestProperty `yaml:"properties,omitempty"`
}

type manifestProperty struct {
	Name    string   `yaml:"name"`
	Type    string   `yaml:"type"`
	Default any      `yaml:"default,omitempty"`
	Min     *float64 `yaml:"min,omitempty"`
	Max     *float64 `yaml:"max,omitempty"`
}

type manifestFile struct {
	Path     string `yaml:"path"`
	Language string `yaml:"language"`
}

// DirSource reads bundles from a root directory, one subdirectory per
// bundle id.
type DirSource struct {
	root string
}

// NewDirSource creates a directory source rooted at root.
func NewDirSource(root string) *DirSource {
	return &DirSource{root: root}
}

// List returns the ids of every bundle directory under the root.
func (s *DirSource) List() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read bundle root: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(s.root, e.Name(), ManifestName)); err == nil {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}

// Load reads a full bundle (manifest plus content) by id.
func (s *DirSource) Load(id string) (*component.Bundle, error) {
	dir := filepath.Join(s.root, id)
	m, modTime, err := s.readManifest(dir)
	if err != nil {
		return nil, err
	}

	files, contentTime, err := s.readFiles(dir, m, true)
	if err != nil {
		return nil, err
	}
	if contentTime.After(modTime) {
		modTime = contentTime
	}

	b := &component.Bundle{
		ID:           m.ID,
		Name:         m.Name,
		Description:  m.Description,
		EntryPoint:   m.Entry,
		Files:        files,
		Dependencies: m.Dependencies,
		Meta: component.Meta{
			DefaultDuration: m.Meta.Duration,
			Width:           m.Meta.Width,
			Height:          m.Meta.Height,
		},
		Status:    component.StatusDraft,
		CreatedAt: modTime,
		UpdatedAt: modTime,
		Source:    component.BundleSource(m.Source),
	}
	if b.ID == "" {
		b.ID = id
	}
	if b.Source == "" {
		b.Source = component.SourceAuthor
	}
	for _, p := range m.Meta.Properties {
		b.Meta.Properties = append(b.Meta.Properties, component.PropertyDescriptor{
			Name:    p.Name,
			Type:    p.Type,
			Default: p.Default,
			Min:     p.Min,
			Max:     p.Max,
		})
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// Fetch implements the watch.Source contract.
func (s *DirSource) Fetch(_ context.Context, id string, withDeps bool) (*watch.FetchResult, error) {
	dir := filepath.Join(s.root, id)
	m, modTime, err := s.readManifest(dir)
	if err != nil {
		return nil, err
	}
	files, contentTime, err := s.readFiles(dir, m, withDeps)
	if err != nil {
		return nil, err
	}
	if contentTime.After(modTime) {
		modTime = contentTime
	}
	return &watch.FetchResult{Files: files, LastModified: modTime}, nil
}

func (s *DirSource) readManifest(dir string) (*manifest, time.Time, error) {
	path := filepath.Join(dir, ManifestName)
	info, err := os.Stat(path)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("bundle manifest not found: %w", err)
	}
	raw, err := os.ReadFile(path) //nolint:gosec // G304: path is rooted in the configured bundle directory
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, time.Time{}, fmt.Errorf("malformed manifest %s: %w", path, err)
	}
	return &m, info.ModTime(), nil
}

// readFiles loads content for the manifest's file list. With withDeps
// false only the entry file is returned; with it true the transitive
// local dependency set (the whole bundle) comes back in one response.
func (s *DirSource) readFiles(dir string, m *manifest, withDeps bool) ([]component.File, time.Time, error) {
	var latest time.Time
	var files []component.File
	for _, mf := range m.Files {
		if !withDeps && mf.Path != m.Entry {
			continue
		}
		lang := component.Language(mf.Language)
		if lang == "" {
			lang = component.LanguageScript
		}
		contentPath := filepath.Join(dir, mf.Path+ExtFor(lang))
		info, err := os.Stat(contentPath)
		if err != nil {
			return nil, time.Time{}, fmt.Errorf("bundle file %s: %w", mf.Path, err)
		}
		raw, err := os.ReadFile(contentPath) //nolint:gosec // G304: path is rooted in the configured bundle directory
		if err != nil {
			return nil, time.Time{}, fmt.Errorf("bundle file %s: %w", mf.Path, err)
		}
		if info.ModTime().After(latest) {
			latest = info.ModTime()
		}
		files = append(files, component.File{Path: mf.Path, Content: string(raw), Language: lang})
	}
	return files, latest, nil
}

// ExtFor maps a file language to its on-disk content extension.
func ExtFor(lang component.Language) string {
	switch lang {
	case component.LanguageStyle:
		return ".css"
	case component.LanguageData:
		return ".json"
	default:
		return ".loom"
	}
}
