package assess

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// memoryStore backs tests and offline demos. Same contracts as SQLStore.
type memoryStore struct {
	mu          sync.RWMutex
	tests       map[string]Test
	assignments map[string]Assignment
	responses   map[string]map[string]Response // assignmentID -> questionID -> response
	byID        map[string]Response            // responseID -> response
}

func NewInMemoryStore() Store {
	return &memoryStore{
		tests:       map[string]Test{},
		assignments: map[string]Assignment{},
		responses:   map[string]map[string]Response{},
		byID:        map[string]Response{},
	}
}

func (m *memoryStore) PutTest(_ context.Context, t Test) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tests[t.ID] = t
	return nil
}

func (m *memoryStore) GetTest(ctx context.Context, id string) (Test, error) {
	t, err := m.GetTestAdmin(ctx, id)
	if err != nil {
		return Test{}, err
	}
	qs := make([]Question, len(t.Questions))
	copy(qs, t.Questions)
	for i := range qs {
		opts := make([]Option, len(qs[i].Options))
		copy(opts, qs[i].Options)
		for j := range opts {
			opts[j].Score = 0
			opts[j].IsCorrect = false
		}
		qs[i].Options = opts
	}
	t.Questions = qs
	return t, nil
}

func (m *memoryStore) GetTestAdmin(_ context.Context, id string) (Test, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tests[id]
	if !ok {
		return Test{}, ErrTestNotFound
	}
	return t, nil
}

func (m *memoryStore) CreateAssignment(_ context.Context, testID, userID string) (Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tests[testID]
	if !ok {
		return Assignment{}, ErrTestNotFound
	}
	a := Assignment{
		ID:              uuid.NewString(),
		TestID:          testID,
		UserID:          userID,
		Status:          StatusPending,
		DurationMinutes: t.DurationMinutes,
	}
	m.assignments[a.ID] = a
	return a, nil
}

func (m *memoryStore) GetAssignment(_ context.Context, id string) (Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.assignments[id]
	if !ok {
		return Assignment{}, ErrAssignmentNotFound
	}
	return a, nil
}

func (m *memoryStore) StartAssignment(_ context.Context, id string, startedAt int64) (Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assignments[id]
	if !ok {
		return Assignment{}, ErrAssignmentNotFound
	}
	if a.Status == StatusPending {
		a.Status = StatusInProgress
		a.StartedAt = &startedAt
		m.assignments[id] = a
	}
	return a, nil
}

func (m *memoryStore) SubmitAssignment(_ context.Context, id string, timeSpentSeconds int, submittedAt int64) (Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assignments[id]
	if !ok {
		return Assignment{}, ErrAssignmentNotFound
	}
	if a.Status == StatusInProgress {
		a.Status = StatusCompleted
		a.SubmittedAt = &submittedAt
		a.TimeSpentSeconds = timeSpentSeconds
		m.assignments[id] = a
	}
	return a, nil
}

func (m *memoryStore) ListAssignments(_ context.Context, opts AssignmentListOpts) ([]Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Assignment{}
	for _, a := range m.assignments {
		if opts.TestID != "" && a.TestID != opts.TestID {
			continue
		}
		if opts.UserID != "" && a.UserID != opts.UserID {
			continue
		}
		if opts.Status != "" && a.Status != opts.Status {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (m *memoryStore) ListExpiredAssignments(_ context.Context, now int64) ([]Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Assignment{}
	for _, a := range m.assignments {
		if a.Status != StatusInProgress {
			continue
		}
		if deadline, ok := Deadline(a); ok && deadline <= now {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memoryStore) UpsertResponse(_ context.Context, assignmentID, questionID, value string) (Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assignments[assignmentID]
	if !ok {
		return Response{}, ErrAssignmentNotFound
	}
	switch a.Status {
	case StatusCompleted:
		return Response{}, ErrAssignmentCompleted
	case StatusPending:
		return Response{}, ErrNotStarted
	}
	byQ := m.responses[assignmentID]
	if byQ == nil {
		byQ = map[string]Response{}
		m.responses[assignmentID] = byQ
	}
	r, ok := byQ[questionID]
	if !ok {
		r = Response{ID: uuid.NewString(), AssignmentID: assignmentID, QuestionID: questionID}
	}
	r.Value = value
	byQ[questionID] = r
	m.byID[r.ID] = r
	return r, nil
}

func (m *memoryStore) GetResponses(_ context.Context, assignmentID string) ([]Response, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Response{}
	for _, r := range m.responses[assignmentID] {
		out = append(out, r)
	}
	return out, nil
}

func (m *memoryStore) GetResponse(_ context.Context, responseID string) (Response, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.byID[responseID]
	if !ok {
		return Response{}, ErrResponseNotFound
	}
	return r, nil
}

func (m *memoryStore) SetResponseScore(_ context.Context, responseID string, rawScore float64) (Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byID[responseID]
	if !ok {
		return Response{}, ErrResponseNotFound
	}
	v := rawScore
	r.RawScore = &v
	m.byID[responseID] = r
	if byQ := m.responses[r.AssignmentID]; byQ != nil {
		byQ[r.QuestionID] = r
	}
	return r, nil
}
