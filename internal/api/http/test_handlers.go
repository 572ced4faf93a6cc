package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/skillgauge/skillgauge/internal/assess"
)

// POST /tests (admin): upsert a published test definition.
func UploadTestHandler(store assess.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var t assess.Test
		if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		if t.ID == "" || t.Title == "" {
			http.Error(w, "id and title required", 400)
			return
		}
		if len(t.Questions) == 0 {
			http.Error(w, "at least one question required", 400)
			return
		}
		if err := store.PutTest(r.Context(), t); err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		_ = json.NewEncoder(w).Encode(t)
	}
}

// GET /tests/{testID}. Respondent-safe: option scores and correct flags are
// stripped by the store.
func GetTestHandler(store assess.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "testID")
		t, err := store.GetTest(r.Context(), id)
		if err != nil {
			if errors.Is(err, assess.ErrTestNotFound) {
				http.Error(w, err.Error(), 404)
				return
			}
			http.Error(w, err.Error(), 500)
			return
		}
		_ = json.NewEncoder(w).Encode(t)
	}
}
