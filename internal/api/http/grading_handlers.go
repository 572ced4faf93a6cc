package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/skillgauge/skillgauge/internal/assess"
	"github.com/skillgauge/skillgauge/internal/grading"
)

// GET /assignments/{assignmentID}/grading: open-ended answers of a
// completed assignment awaiting (or holding) a manual score.
func GetGradingQueueHandler(coord *grading.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assignmentID := strings.TrimSpace(chi.URLParam(r, "assignmentID"))
		if assignmentID == "" {
			http.Error(w, "assignmentID required", http.StatusBadRequest)
			return
		}
		items, err := coord.Queue(r.Context(), assignmentID)
		if err != nil {
			switch {
			case errors.Is(err, assess.ErrAssignmentNotFound):
				http.Error(w, err.Error(), http.StatusNotFound)
			case errors.Is(err, grading.ErrAssignmentNotCompleted):
				http.Error(w, err.Error(), http.StatusConflict)
			default:
				http.Error(w, "grading queue: "+err.Error(), http.StatusInternalServerError)
			}
			return
		}
		_ = json.NewEncoder(w).Encode(items)
	}
}

// POST /responses/{responseID}/grade  {percentage}
// Returns the recomputed breakdown; clients must replace any cached score
// with it rather than patch locally.
func GradeResponseHandler(coord *grading.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responseID := strings.TrimSpace(chi.URLParam(r, "responseID"))
		if responseID == "" {
			http.Error(w, "responseID required", http.StatusBadRequest)
			return
		}
		var req struct {
			Percentage float64 `json:"percentage"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
			return
		}
		b, err := coord.Grade(r.Context(), responseID, req.Percentage)
		if err != nil {
			switch {
			case errors.Is(err, assess.ErrResponseNotFound):
				http.Error(w, err.Error(), http.StatusNotFound)
			case errors.Is(err, grading.ErrPercentageRange):
				http.Error(w, err.Error(), http.StatusBadRequest)
			case errors.Is(err, grading.ErrInvalidGradeTarget):
				http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			case errors.Is(err, grading.ErrAssignmentNotCompleted):
				http.Error(w, err.Error(), http.StatusConflict)
			default:
				http.Error(w, "apply grade: "+err.Error(), http.StatusInternalServerError)
			}
			return
		}
		_ = json.NewEncoder(w).Encode(b)
	}
}
