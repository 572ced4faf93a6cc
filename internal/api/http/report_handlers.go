package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/skillgauge/skillgauge/internal/assess"
)

// GET /assignments/{assignmentID}/score: the read-side source of truth for
// "the score". Reports and leaderboards consume this; nothing re-derives
// percentages on its own. needs_grading=true marks the aggregate provisional.
func GetScoreHandler(svc *assess.Service, store assess.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "assignmentID")
		a, err := store.GetAssignment(r.Context(), id)
		if err != nil {
			http.Error(w, err.Error(), 404)
			return
		}
		if !ownsOrViewsAll(r, a) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		b, err := svc.Breakdown(r.Context(), id)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		_ = json.NewEncoder(w).Encode(b)
	}
}
