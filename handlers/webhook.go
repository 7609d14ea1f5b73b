package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"upcomarr/models"
	"upcomarr/services/reconciler"

	"github.com/gorilla/mux"
)

// movieReconciler is the surface of the reconciler the webhook needs.
type movieReconciler interface {
	OnMovieAdded(ctx context.Context, movie models.Movie)
	OnMovieRemoved(movie models.Movie)
	GetStatus() reconciler.Status
}

// WebhookHandler receives Radarr webhook events and forwards them to the
// reconciler. Radarr expects a fast acknowledgment, so reconciliation runs
// off the request goroutine.
type WebhookHandler struct {
	Reconciler movieReconciler

	// dispatch runs reconciliation work. Synchronous in tests.
	dispatch func(fn func())
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(rec movieReconciler) *WebhookHandler {
	return &WebhookHandler{
		Reconciler: rec,
		dispatch:   func(fn func()) { go fn() },
	}
}

// Register attaches the webhook routes to the router.
func (h *WebhookHandler) Register(r *mux.Router) {
	r.HandleFunc("/webhook/radarr", h.HandleRadarr).Methods("POST")
	r.HandleFunc("/webhook/status", h.GetStatus).Methods("GET")
}

// HandleRadarr processes a single Radarr webhook event. Events that carry no
// actionable movie payload (connection tests, unknown types) are acknowledged
// and ignored so Radarr never sees its notification marked as failed.
func (h *WebhookHandler) HandleRadarr(w http.ResponseWriter, r *http.Request) {
	var event models.WebhookEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid webhook payload"})
		return
	}

	if event.EventType == models.EventTest || event.Movie.TMDBID == 0 {
		log.Printf("[webhook] ignoring %q event", event.EventType)
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	movie := event.Movie
	switch event.EventType {
	case models.EventMovieAdded:
		log.Printf("[webhook] movie added: %q (tmdb %d)", movie.Title, movie.TMDBID)
		h.dispatch(func() {
			h.Reconciler.OnMovieAdded(context.Background(), movie)
		})
	case models.EventMovieDownloaded, models.EventMovieDeleted:
		log.Printf("[webhook] movie removed: %q (tmdb %d, event %s)", movie.Title, movie.TMDBID, event.EventType)
		h.dispatch(func() {
			h.Reconciler.OnMovieRemoved(movie)
		})
	default:
		log.Printf("[webhook] ignoring %q event for tmdb %d", event.EventType, movie.TMDBID)
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

// GetStatus reports the reconciler's sweep loop state and pending count.
func (h *WebhookHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Reconciler.GetStatus())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
