package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"golang.org/x/time/rate"

	"upcomarr/models"
)

// Minimal TMDB v3 client (release dates, movie details, videos — the
// endpoints asset preparation needs).

const (
	defaultBaseURL = "https://api.themoviedb.org/3"
	imageBaseURL   = "https://image.tmdb.org/t/p/original"
	youtubeWatch   = "https://www.youtube.com/watch?v="
)

// Release-type codes as enumerated by TMDB.
const (
	ReleasePremiere           = 1
	ReleaseTheatricalLimited  = 2
	ReleaseTheatrical         = 3
	ReleaseDigital            = 4
	ReleasePhysical           = 5
	ReleaseTV                 = 6
)

var (
	// ErrNotFound means the movie id is unknown to the provider.
	ErrNotFound = errors.New("tmdb: movie not found")
	// ErrProviderUnavailable covers network failures and non-404 HTTP errors.
	ErrProviderUnavailable = errors.New("tmdb: provider unavailable")
)

type Client struct {
	apiKey   string
	language string
	baseURL  string
	httpc    *http.Client
	limiter  *rate.Limiter

	retryAttempts uint
	retryDelay    time.Duration
}

// NewClient creates a TMDB client with a bounded request timeout and a
// client-side rate limit well under TMDB's published ceiling.
func NewClient(apiKey, language string, httpc *http.Client) *Client {
	if httpc == nil {
		httpc = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		apiKey:        apiKey,
		language:      normalizeLanguage(language),
		baseURL:       defaultBaseURL,
		httpc:         httpc,
		limiter:       rate.NewLimiter(rate.Limit(4), 8),
		retryAttempts: 3,
		retryDelay:    500 * time.Millisecond,
	}
}

// normalizeLanguage maps bare ISO 639-1 codes to the region-qualified form
// TMDB prefers.
func normalizeLanguage(lang string) string {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return "en-US"
	}
	lang = strings.ReplaceAll(lang, "_", "-")
	parts := strings.SplitN(lang, "-", 2)
	if len(parts) == 2 {
		return strings.ToLower(parts[0]) + "-" + strings.ToUpper(parts[1])
	}
	return strings.ToLower(lang) + "-US"
}

type releaseDatesResponse struct {
	Results []struct {
		ISO3166 string `json:"iso_3166_1"`
		Dates   []struct {
			Type        int    `json:"type"`
			ReleaseDate string `json:"release_date"`
		} `json:"release_dates"`
	} `json:"results"`
}

// ReleaseDates returns every country/type release-date record TMDB has for
// the movie, flattened in provider order.
func (c *Client) ReleaseDates(ctx context.Context, tmdbID int64) ([]models.Release, error) {
	var resp releaseDatesResponse
	path := fmt.Sprintf("/movie/%d/release_dates", tmdbID)
	if err := c.getJSON(ctx, path, nil, &resp); err != nil {
		return nil, err
	}

	var releases []models.Release
	for _, country := range resp.Results {
		for _, rel := range country.Dates {
			releases = append(releases, models.Release{
				Country: country.ISO3166,
				Type:    rel.Type,
				Date:    rel.ReleaseDate,
			})
		}
	}
	return releases, nil
}

type movieDetailsResponse struct {
	PosterPath string `json:"poster_path"`
}

type videosResponse struct {
	Results []struct {
		Site string `json:"site"`
		Type string `json:"type"`
		Key  string `json:"key"`
	} `json:"results"`
}

// Assets returns the poster and trailer URLs for the movie. A failed or empty
// videos lookup leaves TrailerURL empty rather than failing the whole call;
// asset retrieval downstream is best-effort per asset.
func (c *Client) Assets(ctx context.Context, tmdbID int64) (models.MovieAssets, error) {
	var details movieDetailsResponse
	query := url.Values{"language": []string{c.language}}
	if err := c.getJSON(ctx, "/movie/"+strconv.FormatInt(tmdbID, 10), query, &details); err != nil {
		return models.MovieAssets{}, err
	}

	assets := models.MovieAssets{}
	if details.PosterPath != "" {
		assets.PosterURL = imageBaseURL + details.PosterPath
	}

	var videos videosResponse
	path := fmt.Sprintf("/movie/%d/videos", tmdbID)
	if err := c.getJSON(ctx, path, query, &videos); err != nil {
		return assets, nil
	}
	for _, v := range videos.Results {
		if v.Site == "YouTube" && v.Type == "Trailer" && v.Key != "" {
			assets.TrailerURL = youtubeWatch + v.Key
			break
		}
	}
	return assets, nil
}

// getJSON performs a rate-limited GET with retries on transient failures.
// 404 maps to ErrNotFound; every other failure maps to ErrProviderUnavailable.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	if query == nil {
		query = url.Values{}
	}
	query.Set("api_key", c.apiKey)
	fullURL := c.baseURL + path + "?" + query.Encode()

	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			resp, err := c.httpc.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			switch {
			case resp.StatusCode == http.StatusNotFound:
				return retry.Unrecoverable(ErrNotFound)
			case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
				io.Copy(io.Discard, resp.Body)
				return fmt.Errorf("tmdb: status %d", resp.StatusCode)
			case resp.StatusCode != http.StatusOK:
				io.Copy(io.Discard, resp.Body)
				return retry.Unrecoverable(fmt.Errorf("tmdb: status %d", resp.StatusCode))
			}

			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return retry.Unrecoverable(fmt.Errorf("tmdb: decode response: %w", err))
			}
			return nil
		},
		retry.Attempts(c.retryAttempts),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	return nil
}
