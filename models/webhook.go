package models

// Radarr webhook event types handled by the ingress.
const (
	EventMovieAdded      = "MovieAdded"
	EventMovieDownloaded = "MovieDownloaded"
	EventMovieDeleted    = "MovieDeleted"
	EventTest            = "Test"
)

// WebhookEvent is the subset of a Radarr webhook payload the daemon consumes.
type WebhookEvent struct {
	EventType string `json:"eventType"`
	Movie     Movie  `json:"movie"`
}
