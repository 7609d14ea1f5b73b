package releases

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"

	"upcomarr/models"
)

// ErrStoreCorrupt marks a backing file that could not be parsed. The store
// degrades to empty and logs a warning; callers may inspect the error but are
// never forced to crash on it.
var ErrStoreCorrupt = errors.New("releases: store file corrupt")

// Store persists the tracked-movie list as a JSON array. Every mutation is a
// whole-file read-modify-write serialized by an internal mutex, with an
// atomic temp-file-and-rename replace so a crash mid-write cannot truncate
// the file.
type Store struct {
	mu   sync.Mutex
	fs   afero.Fs
	path string
}

// NewStore creates a store backed by the given file path.
func NewStore(fs afero.Fs, path string) *Store {
	return &Store{fs: fs, path: path}
}

// List returns every tracked movie. A corrupt backing file yields an empty
// list together with ErrStoreCorrupt.
func (s *Store) List() ([]models.TrackedMovie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Upsert inserts the movie or replaces the existing record with the same id.
func (s *Store) Upsert(movie models.TrackedMovie) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	movies, err := s.load()
	if err != nil && !errors.Is(err, ErrStoreCorrupt) {
		return err
	}

	replaced := false
	for i := range movies {
		if movies[i].TMDBID == movie.TMDBID {
			movies[i] = movie
			replaced = true
			break
		}
	}
	if !replaced {
		movies = append(movies, movie)
	}
	return s.save(movies)
}

// Remove deletes the record with the given id. No-op when absent.
func (s *Store) Remove(tmdbID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	movies, err := s.load()
	if err != nil && !errors.Is(err, ErrStoreCorrupt) {
		return err
	}

	kept := movies[:0]
	for _, m := range movies {
		if m.TMDBID != tmdbID {
			kept = append(kept, m)
		}
	}
	if len(kept) == len(movies) {
		return nil
	}
	return s.save(kept)
}

// Contains reports whether a record with the given id is present.
func (s *Store) Contains(tmdbID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	movies, err := s.load()
	if err != nil && !errors.Is(err, ErrStoreCorrupt) {
		return false, err
	}
	for _, m := range movies {
		if m.TMDBID == tmdbID {
			return true, nil
		}
	}
	return false, nil
}

// load reads the backing file. Caller holds s.mu.
func (s *Store) load() ([]models.TrackedMovie, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if exists, _ := afero.Exists(s.fs, s.path); !exists {
			return nil, nil
		}
		return nil, fmt.Errorf("releases: read %s: %w", s.path, err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var movies []models.TrackedMovie
	if err := json.Unmarshal(data, &movies); err != nil {
		log.Printf("[releases] WARN: %s is unreadable, treating store as empty: %v", s.path, err)
		return nil, ErrStoreCorrupt
	}
	return movies, nil
}

// save writes the full list atomically. Caller holds s.mu.
func (s *Store) save(movies []models.TrackedMovie) error {
	if movies == nil {
		movies = []models.TrackedMovie{}
	}
	data, err := json.MarshalIndent(movies, "", "  ")
	if err != nil {
		return fmt.Errorf("releases: marshal store: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("releases: create store dir: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("releases: write %s: %w", tmp, err)
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("releases: replace %s: %w", s.path, err)
	}
	return nil
}
