package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"upcomarr/models"
	"upcomarr/services/reconciler"

	"github.com/gorilla/mux"
)

type mockReconciler struct {
	added   []models.Movie
	removed []models.Movie
	status  reconciler.Status
}

func (m *mockReconciler) OnMovieAdded(_ context.Context, movie models.Movie) {
	m.added = append(m.added, movie)
}

func (m *mockReconciler) OnMovieRemoved(movie models.Movie) {
	m.removed = append(m.removed, movie)
}

func (m *mockReconciler) GetStatus() reconciler.Status {
	return m.status
}

func newTestHandler() (*WebhookHandler, *mockReconciler, *mux.Router) {
	rec := &mockReconciler{}
	h := NewWebhookHandler(rec)
	h.dispatch = func(fn func()) { fn() }
	r := mux.NewRouter()
	h.Register(r)
	return h, rec, r
}

func postEvent(t *testing.T, r *mux.Router, event models.WebhookEvent) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	req := httptest.NewRequest("POST", "/webhook/radarr", bytes.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandleRadarrMovieAdded(t *testing.T) {
	_, rec, r := newTestHandler()

	w := postEvent(t, r, models.WebhookEvent{
		EventType: models.EventMovieAdded,
		Movie:     models.Movie{TMDBID: 42, Title: "Nova", Year: 2025},
	})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp map[string]string
	json.NewDecoder(w.Body).Decode(&resp)
	if resp["status"] != "accepted" {
		t.Fatalf("expected accepted, got %q", resp["status"])
	}
	if len(rec.added) != 1 || rec.added[0].TMDBID != 42 {
		t.Fatalf("reconciler should have received the added movie, got %+v", rec.added)
	}
}

func TestHandleRadarrRemovalEvents(t *testing.T) {
	for _, eventType := range []string{models.EventMovieDownloaded, models.EventMovieDeleted} {
		_, rec, r := newTestHandler()

		w := postEvent(t, r, models.WebhookEvent{
			EventType: eventType,
			Movie:     models.Movie{TMDBID: 42, Title: "Nova", Year: 2025},
		})

		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", eventType, w.Code)
		}
		if len(rec.removed) != 1 {
			t.Fatalf("%s: reconciler should have received the removal", eventType)
		}
		if len(rec.added) != 0 {
			t.Fatalf("%s: no add should be recorded", eventType)
		}
	}
}

func TestHandleRadarrIgnoresTestEvent(t *testing.T) {
	_, rec, r := newTestHandler()

	w := postEvent(t, r, models.WebhookEvent{EventType: models.EventTest})

	if w.Code != http.StatusOK {
		t.Fatalf("test events must be acknowledged, got %d", w.Code)
	}
	var resp map[string]string
	json.NewDecoder(w.Body).Decode(&resp)
	if resp["status"] != "ignored" {
		t.Fatalf("expected ignored, got %q", resp["status"])
	}
	if len(rec.added) != 0 || len(rec.removed) != 0 {
		t.Fatal("test events must not reach the reconciler")
	}
}

func TestHandleRadarrIgnoresMissingTMDBID(t *testing.T) {
	_, rec, r := newTestHandler()

	w := postEvent(t, r, models.WebhookEvent{
		EventType: models.EventMovieAdded,
		Movie:     models.Movie{Title: "No ID"},
	})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if len(rec.added) != 0 {
		t.Fatal("events without a tmdb id must not reach the reconciler")
	}
}

func TestHandleRadarrIgnoresUnknownEventType(t *testing.T) {
	_, rec, r := newTestHandler()

	w := postEvent(t, r, models.WebhookEvent{
		EventType: "Health",
		Movie:     models.Movie{TMDBID: 42, Title: "Nova", Year: 2025},
	})

	if w.Code != http.StatusOK {
		t.Fatalf("unknown events must be acknowledged, got %d", w.Code)
	}
	if len(rec.added) != 0 || len(rec.removed) != 0 {
		t.Fatal("unknown events must not reach the reconciler")
	}
}

func TestHandleRadarrRejectsMalformedBody(t *testing.T) {
	_, _, r := newTestHandler()

	req := httptest.NewRequest("POST", "/webhook/radarr", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestGetStatus(t *testing.T) {
	_, rec, r := newTestHandler()
	rec.status = reconciler.Status{Running: true, State: "idle", Pending: 3}

	req := httptest.NewRequest("GET", "/webhook/status", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var status reconciler.Status
	if err := json.NewDecoder(w.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !status.Running || status.Pending != 3 {
		t.Fatalf("unexpected status: %+v", status)
	}
}
