package reconciler

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"upcomarr/models"
)

// MetadataProvider supplies release dates and asset URLs for a movie.
type MetadataProvider interface {
	ReleaseDates(ctx context.Context, tmdbID int64) ([]models.Release, error)
	Assets(ctx context.Context, tmdbID int64) (models.MovieAssets, error)
}

// ReleaseStore persists movies awaiting a qualifying release date.
type ReleaseStore interface {
	List() ([]models.TrackedMovie, error)
	Upsert(movie models.TrackedMovie) error
	Remove(tmdbID int64) error
	Contains(tmdbID int64) (bool, error)
}

// OverlayRegistry owns the overlay declarations consumed by the renderer.
type OverlayRegistry interface {
	Upsert(tmdbID int64, releaseDate string) error
	Remove(tmdbID int64) error
}

// AssetStager materializes and removes per-movie staging folders.
type AssetStager interface {
	Stage(ctx context.Context, movie models.Movie, assets models.MovieAssets) (string, error)
	Teardown(movie models.Movie) error
}

// sweepWorkers bounds concurrent per-movie rechecks during a sweep.
const sweepWorkers = 4

// Status holds the current state of the background sweep worker.
type Status struct {
	Running       bool      `json:"running"`
	State         string    `json:"state"` // "idle", "sweeping", "stopped"
	LastSweepAt   time.Time `json:"lastSweepAt"`
	LastSweepMs   int64     `json:"lastSweepMs"`
	NextSweepAt   time.Time `json:"nextSweepAt"`
	SweepInterval string    `json:"sweepInterval"`
	Pending       int       `json:"pending"`
}

// Service is the reconciliation core: it classifies each movie's state and
// drives the release store, overlay registry and asset stager to keep them
// mutually consistent. All provider and staging failures are handled here;
// nothing propagates to the webhook caller.
type Service struct {
	provider MetadataProvider
	store    ReleaseStore
	overlays OverlayRegistry
	stager   AssetStager

	country     string
	releaseType int
	now         func() time.Time

	// Per-movie-id locks make the webhook path and the sweep linearizable
	// for the same id. Entries are never evicted; the map is bounded by the
	// number of movies ever tracked in this process.
	lockMu sync.Mutex
	locks  map[int64]*sync.Mutex

	stopCh   chan struct{}
	sweepNow chan struct{}
	interval time.Duration

	statusMu    sync.RWMutex
	running     bool
	state       string
	lastSweepAt time.Time
	lastSweepMs int64
	nextSweepAt time.Time
}

// New creates a reconciler. country and releaseType configure the
// qualifying-release-date selection policy.
func New(
	provider MetadataProvider,
	store ReleaseStore,
	overlays OverlayRegistry,
	stager AssetStager,
	country string,
	releaseType int,
) *Service {
	return &Service{
		provider:    provider,
		store:       store,
		overlays:    overlays,
		stager:      stager,
		country:     country,
		releaseType: releaseType,
		now:         time.Now,
		locks:       make(map[int64]*sync.Mutex),
	}
}

// OnMovieAdded handles a MovieAdded event: stage immediately when a
// qualifying future release date is known, otherwise track the movie for the
// next sweep. Re-adding an already tracked movie never creates a duplicate.
func (s *Service) OnMovieAdded(ctx context.Context, movie models.Movie) {
	unlock := s.lockMovie(movie.TMDBID)
	defer unlock()

	date, future, err := s.qualifyingDate(ctx, movie.TMDBID)
	if err != nil {
		log.Printf("[reconciler] provider lookup failed for %q (tmdb %d), tracking for retry: %v", movie.Title, movie.TMDBID, err)
		s.trackPending(movie, "")
		return
	}
	if !future {
		log.Printf("[reconciler] no qualifying future release date for %q (tmdb %d), tracking", movie.Title, movie.TMDBID)
		s.trackPending(movie, date)
		return
	}

	if err := s.materialize(ctx, movie, date); err != nil {
		log.Printf("[reconciler] staging failed for %q (tmdb %d), reverting to pending: %v", movie.Title, movie.TMDBID, err)
		s.trackPending(movie, date)
		return
	}
	if err := s.store.Remove(movie.TMDBID); err != nil {
		log.Printf("[reconciler] failed to drop staged movie %d from store: %v", movie.TMDBID, err)
	}
}

// OnMovieRemoved handles MovieDownloaded and MovieDeleted events: tear down
// the tracked record, the staged folder and the overlay entry. Every removal
// is a no-op when its target is already gone, so the whole operation is
// idempotent.
func (s *Service) OnMovieRemoved(movie models.Movie) {
	unlock := s.lockMovie(movie.TMDBID)
	defer unlock()

	if err := s.store.Remove(movie.TMDBID); err != nil {
		log.Printf("[reconciler] failed to remove tracked movie %d: %v", movie.TMDBID, err)
	}
	if err := s.stager.Teardown(movie); err != nil {
		log.Printf("[reconciler] failed to remove staged folder for %q: %v", movie.FolderName(), err)
	}
	if err := s.overlays.Remove(movie.TMDBID); err != nil {
		log.Printf("[reconciler] failed to remove overlay for movie %d: %v", movie.TMDBID, err)
	}
	log.Printf("[reconciler] cleaned up %q (tmdb %d)", movie.FolderName(), movie.TMDBID)
}

// Sweep re-checks every pending movie. Failures are isolated per movie: a
// provider error for one movie never aborts the rest.
func (s *Service) Sweep(ctx context.Context) {
	movies, err := s.store.List()
	if err != nil {
		// Corrupt store degrades to empty; the warning is already logged.
		log.Printf("[reconciler] sweep: store list degraded: %v", err)
	}
	if len(movies) == 0 {
		return
	}

	log.Printf("[reconciler] sweep: re-checking %d pending movie(s)", len(movies))
	p := pool.New().WithMaxGoroutines(sweepWorkers)
	for _, m := range movies {
		movie := m.Movie()
		p.Go(func() {
			s.recheck(ctx, movie)
		})
	}
	p.Wait()
}

// recheck re-queries one pending movie and stages it when its release date
// has resolved to a qualifying future date.
func (s *Service) recheck(ctx context.Context, movie models.Movie) {
	unlock := s.lockMovie(movie.TMDBID)
	defer unlock()

	// The movie may have been downloaded or deleted since the sweep listed
	// it; staging it again would resurrect a torn-down folder.
	if tracked, err := s.store.Contains(movie.TMDBID); err != nil || !tracked {
		return
	}

	date, future, err := s.qualifyingDate(ctx, movie.TMDBID)
	if err != nil {
		log.Printf("[reconciler] sweep: provider lookup failed for %q (tmdb %d), keeping pending: %v", movie.Title, movie.TMDBID, err)
		return
	}
	if !future {
		if date != "" {
			s.trackPending(movie, date)
		}
		return
	}

	if err := s.materialize(ctx, movie, date); err != nil {
		log.Printf("[reconciler] sweep: staging failed for %q (tmdb %d), keeping pending: %v", movie.Title, movie.TMDBID, err)
		return
	}
	if err := s.store.Remove(movie.TMDBID); err != nil {
		log.Printf("[reconciler] sweep: failed to drop staged movie %d from store: %v", movie.TMDBID, err)
	}
}

// materialize stages the movie's assets and registers its overlay. On an
// overlay write failure the staged folder is torn down again so the
// folder-implies-overlay invariant holds.
func (s *Service) materialize(ctx context.Context, movie models.Movie, date string) error {
	assets, err := s.provider.Assets(ctx, movie.TMDBID)
	if err != nil {
		// Assets are best-effort; the overlay is the product.
		log.Printf("[reconciler] asset lookup failed for %q (tmdb %d), staging without assets: %v", movie.Title, movie.TMDBID, err)
		assets = models.MovieAssets{}
	}

	folder, err := s.stager.Stage(ctx, movie, assets)
	if err != nil {
		return err
	}

	if err := s.overlays.Upsert(movie.TMDBID, date); err != nil {
		if terr := s.stager.Teardown(movie); terr != nil {
			log.Printf("[reconciler] failed to clean up folder after overlay failure for %q: %v", movie.FolderName(), terr)
		}
		return fmt.Errorf("register overlay: %w", err)
	}

	log.Printf("[reconciler] staged %q (tmdb %d) at %s, release %s", movie.Title, movie.TMDBID, folder, date)
	return nil
}

// trackPending upserts the movie as awaiting staging. releaseDate may be
// empty when the date itself is still unknown.
func (s *Service) trackPending(movie models.Movie, releaseDate string) {
	record := models.TrackedMovie{TMDBID: movie.TMDBID, Title: movie.Title, Year: movie.Year, ReleaseDate: releaseDate}
	if err := s.store.Upsert(record); err != nil {
		log.Printf("[reconciler] failed to track movie %d: %v", movie.TMDBID, err)
	}
}

// qualifyingDate selects the first provider-order release matching the
// configured country and release type. Returns the date as YYYY-MM-DD plus
// whether it is strictly in the future; date is "" when no entry matches or
// the matched date is unparseable.
func (s *Service) qualifyingDate(ctx context.Context, tmdbID int64) (string, bool, error) {
	releases, err := s.provider.ReleaseDates(ctx, tmdbID)
	if err != nil {
		return "", false, err
	}

	for _, rel := range releases {
		if !strings.EqualFold(rel.Country, s.country) || rel.Type != s.releaseType {
			continue
		}
		ts, ok := parseReleaseTime(rel.Date)
		if !ok {
			return "", false, nil
		}
		return ts.Format("2006-01-02"), ts.After(s.now()), nil
	}
	return "", false, nil
}

func parseReleaseTime(value string) (time.Time, bool) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, false
	}
	if ts, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return ts, true
	}
	if len(trimmed) >= 10 {
		if ts, err := time.Parse("2006-01-02", trimmed[:10]); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// lockMovie acquires the per-movie mutex and returns its release func.
func (s *Service) lockMovie(tmdbID int64) func() {
	s.lockMu.Lock()
	l, ok := s.locks[tmdbID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[tmdbID] = l
	}
	s.lockMu.Unlock()

	l.Lock()
	return l.Unlock
}

// StartBackgroundSweep runs an immediate sweep and then re-sweeps on the
// given interval until Stop is called.
func (s *Service) StartBackgroundSweep(interval time.Duration) {
	s.interval = interval
	s.stopCh = make(chan struct{})
	s.sweepNow = make(chan struct{}, 1)

	s.statusMu.Lock()
	s.running = true
	s.state = "idle"
	s.statusMu.Unlock()

	go func() {
		log.Printf("[reconciler] background sweep started (interval %s)", interval)
		s.doSweep()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			s.statusMu.Lock()
			s.nextSweepAt = s.now().Add(interval)
			s.statusMu.Unlock()

			select {
			case <-ticker.C:
				s.doSweep()
			case <-s.sweepNow:
				s.doSweep()
				ticker.Reset(interval)
			case <-s.stopCh:
				log.Println("[reconciler] background sweep stopped")
				s.statusMu.Lock()
				s.running = false
				s.state = "stopped"
				s.statusMu.Unlock()
				return
			}
		}
	}()
}

// doSweep runs one sweep with status tracking.
func (s *Service) doSweep() {
	s.statusMu.Lock()
	s.state = "sweeping"
	s.statusMu.Unlock()

	start := s.now()
	s.Sweep(context.Background())
	elapsed := time.Since(start)

	s.statusMu.Lock()
	s.state = "idle"
	s.lastSweepAt = s.now()
	s.lastSweepMs = elapsed.Milliseconds()
	s.statusMu.Unlock()
}

// SweepNow triggers an immediate sweep. Non-blocking; a no-op when a trigger
// is already pending or the background loop is not running.
func (s *Service) SweepNow() {
	if s.sweepNow == nil {
		return
	}
	select {
	case s.sweepNow <- struct{}{}:
	default:
	}
}

// Stop halts the background sweep loop.
func (s *Service) Stop() {
	if s.stopCh != nil {
		close(s.stopCh)
	}
}

// GetStatus returns a snapshot of the sweep worker state.
func (s *Service) GetStatus() Status {
	s.statusMu.RLock()
	status := Status{
		Running:     s.running,
		State:       s.state,
		LastSweepAt: s.lastSweepAt,
		LastSweepMs: s.lastSweepMs,
		NextSweepAt: s.nextSweepAt,
	}
	s.statusMu.RUnlock()

	if s.interval > 0 {
		if s.interval >= time.Hour {
			status.SweepInterval = fmt.Sprintf("%.0fh", s.interval.Hours())
		} else {
			status.SweepInterval = fmt.Sprintf("%.0fm", s.interval.Minutes())
		}
	}

	if movies, err := s.store.List(); err == nil {
		status.Pending = len(movies)
	}
	return status
}
