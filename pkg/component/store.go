package component

// Store is the persistence contract for bundle manifests.
//
// Only the manifest is stored (file list with paths and languages, plus
// bundle metadata); file content lives in sibling files referenced by
// path and is fetched through a source implementation.
type Store interface {
	// Open opens the backing store at the given path (":memory:" for tests).
	Open(path string) error

	// Close releases the store.
	Close() error

	// Migrate brings the schema up to date.
	Migrate() error

	// SaveBundle inserts or wholesale-replaces a bundle manifest.
	SaveBundle(b *Bundle) error

	// GetBundle returns the manifest for the given id, or nil when absent.
	GetBundle(id string) (*Bundle, error)

	// ListBundles returns all manifests ordered by name.
	ListBundles() ([]*Bundle, error)

	// DeleteBundle removes a manifest. Deleting an unknown id is not an error.
	DeleteBundle(id string) error

	// SetStatus records the compile outcome for a bundle.
	SetStatus(id string, status BundleStatus, errs []CompileError) error
}
