package overlays

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"upcomarr/models"
)

// TemplateName is the shared template every expected-release entry references.
const TemplateName = "ExpectedRelease"

// EntryKey returns the overlay key for a movie id.
func EntryKey(tmdbID int64) string {
	return fmt.Sprintf("movie_%d_expected", tmdbID)
}

// Registry owns the overlay YAML document consumed by the rendering tool.
// The registry is advisory UI metadata, so malformed backing content is
// treated as an empty document rather than an error: availability wins over
// strict validation here.
type Registry struct {
	mu        sync.Mutex
	fs        afero.Fs
	path      string
	framePath string
}

// NewRegistry creates a registry backed by the given YAML file. framePath is
// the frame image baked into the default template styling.
func NewRegistry(fs afero.Fs, path, framePath string) *Registry {
	return &Registry{fs: fs, path: path, framePath: framePath}
}

// Upsert ensures the shared template exists and inserts or replaces the
// entry for the movie.
func (r *Registry) Upsert(tmdbID int64, releaseDate string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc := r.load()
	if doc.Templates == nil {
		doc.Templates = make(map[string]models.OverlayTemplate)
	}
	if doc.Overlays == nil {
		doc.Overlays = make(map[string]models.OverlayEntry)
	}
	if _, ok := doc.Templates[TemplateName]; !ok {
		doc.Templates[TemplateName] = r.defaultTemplate()
	}

	doc.Overlays[EntryKey(tmdbID)] = models.OverlayEntry{
		Template: models.OverlayTemplateRef{Name: TemplateName, ReleaseDate: releaseDate},
		TMDBID:   tmdbID,
	}
	return r.save(doc)
}

// Remove deletes the entry for the movie if present. No-op otherwise.
func (r *Registry) Remove(tmdbID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc := r.load()
	key := EntryKey(tmdbID)
	if _, ok := doc.Overlays[key]; !ok {
		return nil
	}
	delete(doc.Overlays, key)
	return r.save(doc)
}

// Read returns the full declaration document.
func (r *Registry) Read() (models.OverlayFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(), nil
}

// load reads the backing file, degrading to an empty document on any
// problem. Caller holds r.mu.
func (r *Registry) load() models.OverlayFile {
	data, err := afero.ReadFile(r.fs, r.path)
	if err != nil {
		return models.OverlayFile{}
	}

	var doc models.OverlayFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		log.Printf("[overlays] WARN: %s is unreadable, treating registry as empty: %v", r.path, err)
		return models.OverlayFile{}
	}
	return doc
}

// save writes the document atomically. Caller holds r.mu.
func (r *Registry) save(doc models.OverlayFile) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("overlays: marshal registry: %w", err)
	}

	if dir := filepath.Dir(r.path); dir != "." {
		if err := r.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("overlays: create registry dir: %w", err)
		}
	}

	tmp := r.path + ".tmp"
	if err := afero.WriteFile(r.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("overlays: write %s: %w", tmp, err)
	}
	if err := r.fs.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("overlays: replace %s: %w", r.path, err)
	}
	return nil
}

// defaultTemplate is the fixed styling for the expected-release badge.
func (r *Registry) defaultTemplate() models.OverlayTemplate {
	return models.OverlayTemplate{
		Overlay:   r.framePath,
		Builder:   "text",
		Text:      "<<release_date>>",
		Font:      "Arial",
		FontColor: "#FFFFFF",
		FontSize:  42,
		BackColor: "#000000AA",
	}
}
