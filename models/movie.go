package models

import "fmt"

// Movie is the minimal movie identity Radarr includes in webhook payloads.
type Movie struct {
	TMDBID int64  `json:"tmdbId"`
	Title  string `json:"title"`
	Year   int    `json:"year"`
}

// FolderName returns the display folder name for the movie's staging
// directory, in the "Title (Year)" form library managers expect.
func (m Movie) FolderName() string {
	return fmt.Sprintf("%s (%d)", m.Title, m.Year)
}

// TrackedMovie is a movie awaiting asset preparation. ReleaseDate stays empty
// until the provider reports a qualifying date; the record is dropped from the
// store once assets are staged and an overlay registered.
type TrackedMovie struct {
	TMDBID      int64  `json:"tmdbId"`
	Title       string `json:"title"`
	Year        int    `json:"year"`
	ReleaseDate string `json:"releaseDate,omitempty"` // YYYY-MM-DD
}

// Movie returns the webhook-shaped identity for a tracked record.
func (t TrackedMovie) Movie() Movie {
	return Movie{TMDBID: t.TMDBID, Title: t.Title, Year: t.Year}
}

// Release is a single release-date record from the metadata provider.
type Release struct {
	Country string // ISO-3166-1 country code, e.g. "US"
	Type    int    // provider release-type code (premiere, theatrical, digital, ...)
	Date    string // RFC3339 or YYYY-MM-DD as returned by the provider
}

// MovieAssets holds the candidate artwork and trailer URLs for a movie.
// Either field may be empty when the provider has nothing to offer.
type MovieAssets struct {
	PosterURL  string
	TrailerURL string
}
