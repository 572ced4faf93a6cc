package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/skillgauge/skillgauge/internal/assess"
	authmw "github.com/skillgauge/skillgauge/internal/auth/middleware"
	"github.com/skillgauge/skillgauge/internal/rbac"
	"github.com/skillgauge/skillgauge/internal/scoring"
)

// ownsOrViewsAll is the own-or-all guard: respondents only see their own
// assignments, every other role passed route-level rbac already.
func ownsOrViewsAll(r *http.Request, a assess.Assignment) bool {
	if rbac.RoleFromContext(r.Context()) != "respondent" {
		return true
	}
	return authmw.SubjectFromContext(r.Context()) == a.UserID
}

// POST /assignments (admin): hand a test to a respondent.
func CreateAssignmentHandler(store assess.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			TestID string `json:"test_id"`
			UserID string `json:"user_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		if req.TestID == "" || req.UserID == "" {
			http.Error(w, "test_id and user_id required", 400)
			return
		}
		a, err := store.CreateAssignment(r.Context(), req.TestID, req.UserID)
		if err != nil {
			if errors.Is(err, assess.ErrTestNotFound) {
				http.Error(w, err.Error(), 404)
				return
			}
			http.Error(w, err.Error(), 500)
			return
		}
		_ = json.NewEncoder(w).Encode(a)
	}
}

// GET /assignments?test_id=&user_id=&status=
func ListAssignmentsHandler(store assess.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		opts := assess.AssignmentListOpts{
			TestID: q.Get("test_id"),
			UserID: q.Get("user_id"),
			Status: q.Get("status"),
		}
		if n, err := strconv.Atoi(q.Get("limit")); err == nil {
			opts.Limit = n
		}
		if n, err := strconv.Atoi(q.Get("offset")); err == nil {
			opts.Offset = n
		}
		// respondents only list their own
		if rbac.RoleFromContext(r.Context()) == "respondent" {
			opts.UserID = authmw.SubjectFromContext(r.Context())
		}
		out, err := store.ListAssignments(r.Context(), opts)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}

// GET /assignments/{assignmentID}
func GetAssignmentHandler(store assess.Store) http.HandlerFunc {
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
		_ = json.NewEncoder(w).Encode(a)
	}
}

type openAssignmentResp struct {
	Assignment       assess.Assignment `json:"assignment"`
	Questions        []assess.Question `json:"questions"`
	RemainingSeconds *int              `json:"remaining_seconds,omitempty"`
}

// POST /assignments/{assignmentID}/open: first open starts the session and
// its timer; reopening resumes with the remaining time recomputed from the
// wall clock.
func OpenAssignmentHandler(svc *assess.Service, store assess.Store) http.HandlerFunc {
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
		a, questions, err := svc.Open(r.Context(), id)
		if err != nil {
			if errors.Is(err, assess.ErrNoQuestions) {
				// broken definition: send the respondent back, no session
				http.Error(w, err.Error(), http.StatusConflict)
				return
			}
			http.Error(w, err.Error(), 500)
			return
		}
		resp := openAssignmentResp{Assignment: a, Questions: questions}
		if rem, ok := svc.RemainingSeconds(a); ok {
			resp.RemainingSeconds = &rem
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// POST /assignments/{assignmentID}/responses  {question_id, value}
// One call per answer change; answers are never batched.
func SaveResponseHandler(svc *assess.Service, store assess.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "assignmentID")
		var req struct {
			QuestionID string `json:"question_id"`
			Value      string `json:"value"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		if req.QuestionID == "" {
			http.Error(w, "question_id required", 400)
			return
		}
		a, err := store.GetAssignment(r.Context(), id)
		if err != nil {
			http.Error(w, err.Error(), 404)
			return
		}
		if !ownsOrViewsAll(r, a) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		resp, err := svc.Answer(r.Context(), id, req.QuestionID, req.Value)
		switch {
		case err == nil:
			_ = json.NewEncoder(w).Encode(resp)
		case errors.Is(err, assess.ErrAssignmentCompleted), errors.Is(err, assess.ErrNotStarted):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			// autosave failure: the client retries with the next answer
			http.Error(w, err.Error(), 500)
		}
	}
}

// GET /assignments/{assignmentID}/responses
func ListResponsesHandler(store assess.Store) http.HandlerFunc {
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
		out, err := store.GetResponses(r.Context(), id)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}

type submitResp struct {
	Assignment assess.Assignment `json:"assignment"`
	Breakdown  scoring.Breakdown `json:"breakdown"`
}

// POST /assignments/{assignmentID}/submit  {time_spent_seconds}
// A timer-forced submit renders the same result shape as this explicit one.
func SubmitAssignmentHandler(svc *assess.Service, store assess.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "assignmentID")
		var req struct {
			TimeSpentSeconds int `json:"time_spent_seconds"`
		}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&req)
		}
		a, err := store.GetAssignment(r.Context(), id)
		if err != nil {
			http.Error(w, err.Error(), 404)
			return
		}
		if !ownsOrViewsAll(r, a) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		a, b, err := svc.Submit(r.Context(), id, req.TimeSpentSeconds)
		if err != nil {
			if errors.Is(err, assess.ErrNotStarted) {
				http.Error(w, err.Error(), http.StatusConflict)
				return
			}
			http.Error(w, err.Error(), 500)
			return
		}
		_ = json.NewEncoder(w).Encode(submitResp{Assignment: a, Breakdown: b})
	}
}
