package stager

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/spf13/afero"

	"upcomarr/models"
)

const (
	posterFileName  = "poster.jpg"
	trailerFileName = "trailer.mp4"

	trailerTimeout = 5 * time.Minute
)

// ErrStagingFailed marks a filesystem failure while materializing a staging
// folder. Individual asset download failures are not staging failures; they
// are tolerated per asset so a flaky trailer source cannot block the overlay.
var ErrStagingFailed = errors.New("stager: staging failed")

// trailerRunner downloads a video URL to outputPath. Swapped in tests.
type trailerRunner func(ctx context.Context, videoURL, outputPath string) error

// Stager materializes per-movie folders under a staging root and fills them
// with a poster image and a trailer video.
type Stager struct {
	fs     afero.Fs
	root   string
	httpc  *http.Client
	runner trailerRunner
}

// New creates a stager rooted at the given directory.
func New(fs afero.Fs, root string) *Stager {
	s := &Stager{
		fs:    fs,
		root:  root,
		httpc: &http.Client{Timeout: 30 * time.Second},
	}
	s.runner = s.runYtDlp
	return s
}

// FolderPath returns the staging folder path for a movie.
func (s *Stager) FolderPath(movie models.Movie) string {
	return filepath.Join(s.root, movie.FolderName())
}

// Stage creates the movie's folder and downloads its assets. A folder
// creation error removes any partial folder and returns ErrStagingFailed;
// poster and trailer download errors are logged and tolerated.
func (s *Stager) Stage(ctx context.Context, movie models.Movie, assets models.MovieAssets) (string, error) {
	path := s.FolderPath(movie)
	if err := s.fs.MkdirAll(path, 0o755); err != nil {
		return "", fmt.Errorf("%w: create %s: %v", ErrStagingFailed, path, err)
	}

	if assets.PosterURL != "" {
		if err := s.downloadPoster(ctx, assets.PosterURL, filepath.Join(path, posterFileName)); err != nil {
			log.Printf("[stager] poster download failed for %q: %v", movie.FolderName(), err)
		}
	}

	if assets.TrailerURL != "" {
		trailerCtx, cancel := context.WithTimeout(ctx, trailerTimeout)
		err := s.runner(trailerCtx, assets.TrailerURL, filepath.Join(path, trailerFileName))
		cancel()
		if err != nil {
			log.Printf("[stager] trailer download failed for %q: %v", movie.FolderName(), err)
		}
	}

	return path, nil
}

// Teardown removes the movie's staging folder. No-op when absent.
func (s *Stager) Teardown(movie models.Movie) error {
	path := s.FolderPath(movie)
	if exists, err := afero.DirExists(s.fs, path); err != nil || !exists {
		return err
	}
	if err := s.fs.RemoveAll(path); err != nil {
		return fmt.Errorf("stager: remove %s: %w", path, err)
	}
	return nil
}

// downloadPoster fetches the poster with retries on transient failures.
func (s *Stager) downloadPoster(ctx context.Context, posterURL, outputPath string) error {
	return retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, posterURL, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			resp, err := s.httpc.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				io.Copy(io.Discard, resp.Body)
				if resp.StatusCode >= 500 {
					return fmt.Errorf("status %d", resp.StatusCode)
				}
				return retry.Unrecoverable(fmt.Errorf("status %d", resp.StatusCode))
			}

			out, err := s.fs.Create(outputPath)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			defer out.Close()
			_, err = io.Copy(out, resp.Body)
			return err
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
}

// runYtDlp downloads the trailer via yt-dlp, preferring 1080p with an mp4
// merge and falling back to the best available format.
func (s *Stager) runYtDlp(ctx context.Context, videoURL, outputPath string) error {
	ytdlp, err := exec.LookPath("yt-dlp")
	if err != nil {
		return fmt.Errorf("yt-dlp not found in PATH")
	}

	cmd := exec.CommandContext(ctx, ytdlp,
		"-f", "137+140/bestvideo[height<=1080]+bestaudio/best",
		"--merge-output-format", "mp4",
		"--no-warnings",
		"--no-playlist",
		"-o", outputPath,
		videoURL,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return fmt.Errorf("yt-dlp: %s", msg)
	}

	if _, err := s.fs.Stat(outputPath); err != nil {
		return fmt.Errorf("yt-dlp produced no output file: %w", err)
	}
	return nil
}
