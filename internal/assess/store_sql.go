package assess

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

func (s *SQLStore) PutTest(ctx context.Context, t Test) error {
	qj, err := json.Marshal(t.Questions)
	if err != nil {
		return err
	}
	var dur sql.NullInt64
	if t.DurationMinutes != nil {
		dur = sql.NullInt64{Int64: int64(*t.DurationMinutes), Valid: true}
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO tests (id,title,duration_minutes,questions_json,created_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, duration_minutes=EXCLUDED.duration_minutes, questions_json=EXCLUDED.questions_json`,
		t.ID, t.Title, dur, string(qj), time.Now().Unix())
	return err
}

func (s *SQLStore) GetTest(ctx context.Context, id string) (Test, error) {
	t, err := s.GetTestAdmin(ctx, id)
	if err != nil {
		return Test{}, err
	}
	// Strip scoring fields when serving to respondents.
	for i := range t.Questions {
		for j := range t.Questions[i].Options {
			t.Questions[i].Options[j].Score = 0
			t.Questions[i].Options[j].IsCorrect = false
		}
	}
	return t, nil
}

func (s *SQLStore) GetTestAdmin(ctx context.Context, id string) (Test, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,title,duration_minutes,questions_json,created_at FROM tests WHERE id=$1`, id)
	var t Test
	var dur sql.NullInt64
	var qjson string
	if err := row.Scan(&t.ID, &t.Title, &dur, &qjson, &t.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Test{}, ErrTestNotFound
		}
		return Test{}, err
	}
	if dur.Valid {
		d := int(dur.Int64)
		t.DurationMinutes = &d
	}
	if err := json.Unmarshal([]byte(qjson), &t.Questions); err != nil {
		return Test{}, err
	}
	return t, nil
}

func (s *SQLStore) CreateAssignment(ctx context.Context, testID, userID string) (Assignment, error) {
	t, err := s.GetTestAdmin(ctx, testID)
	if err != nil {
		return Assignment{}, err
	}
	a := Assignment{
		ID:              uuid.NewString(),
		TestID:          t.ID,
		UserID:          userID,
		Status:          StatusPending,
		DurationMinutes: t.DurationMinutes,
	}
	var dur sql.NullInt64
	if a.DurationMinutes != nil {
		dur = sql.NullInt64{Int64: int64(*a.DurationMinutes), Valid: true}
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO assignments (id,test_id,user_id,status,duration_minutes,time_spent_seconds)
		VALUES ($1,$2,$3,$4,$5,0)`,
		a.ID, a.TestID, a.UserID, a.Status, dur)
	if err != nil {
		return Assignment{}, err
	}
	return a, nil
}

func (s *SQLStore) GetAssignment(ctx context.Context, id string) (Assignment, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,test_id,user_id,status,duration_minutes,started_at,submitted_at,time_spent_seconds
		FROM assignments WHERE id=$1`, id)
	return scanAssignment(row)
}

func (s *SQLStore) StartAssignment(ctx context.Context, id string, startedAt int64) (Assignment, error) {
	_, err := s.db.ExecContext(ctx, `UPDATE assignments SET status=$1, started_at=$2 WHERE id=$3 AND status=$4`,
		StatusInProgress, startedAt, id, StatusPending)
	if err != nil {
		return Assignment{}, err
	}
	return s.GetAssignment(ctx, id)
}

func (s *SQLStore) SubmitAssignment(ctx context.Context, id string, timeSpentSeconds int, submittedAt int64) (Assignment, error) {
	// Guarded transition: whichever of the explicit-submit and timer paths
	// runs first flips the status, the other finds nothing to update.
	_, err := s.db.ExecContext(ctx, `UPDATE assignments SET status=$1, submitted_at=$2, time_spent_seconds=$3
		WHERE id=$4 AND status=$5`,
		StatusCompleted, submittedAt, timeSpentSeconds, id, StatusInProgress)
	if err != nil {
		return Assignment{}, err
	}
	return s.GetAssignment(ctx, id)
}

func (s *SQLStore) ListAssignments(ctx context.Context, opts AssignmentListOpts) ([]Assignment, error) {
	q := `SELECT id,test_id,user_id,status,duration_minutes,started_at,submitted_at,time_spent_seconds FROM assignments WHERE 1=1`
	args := []interface{}{}
	n := 0
	add := func(clause string, v interface{}) {
		n++
		q += fmt.Sprintf(" AND %s=$%d", clause, n)
		args = append(args, v)
	}
	if opts.TestID != "" {
		add("test_id", opts.TestID)
	}
	if opts.UserID != "" {
		add("user_id", opts.UserID)
	}
	if opts.Status != "" {
		add("status", opts.Status)
	}
	q += " ORDER BY id"
	limit := opts.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	n++
	q += fmt.Sprintf(" LIMIT $%d", n)
	args = append(args, limit)
	if opts.Offset > 0 {
		n++
		q += fmt.Sprintf(" OFFSET $%d", n)
		args = append(args, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Assignment{}
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) ListExpiredAssignments(ctx context.Context, now int64) ([]Assignment, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,test_id,user_id,status,duration_minutes,started_at,submitted_at,time_spent_seconds
		FROM assignments
		WHERE status=$1 AND duration_minutes IS NOT NULL AND started_at IS NOT NULL
		  AND started_at + duration_minutes*60 <= $2`,
		StatusInProgress, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Assignment{}
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) UpsertResponse(ctx context.Context, assignmentID, questionID, value string) (Response, error) {
	a, err := s.GetAssignment(ctx, assignmentID)
	if err != nil {
		return Response{}, err
	}
	switch a.Status {
	case StatusCompleted:
		return Response{}, ErrAssignmentCompleted
	case StatusPending:
		return Response{}, ErrNotStarted
	}
	now := time.Now().Unix()
	_, err = s.db.ExecContext(ctx, `INSERT INTO responses (id,assignment_id,question_id,value,updated_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (assignment_id,question_id) DO UPDATE SET value=EXCLUDED.value, updated_at=EXCLUDED.updated_at`,
		uuid.NewString(), assignmentID, questionID, value, now)
	if err != nil {
		return Response{}, err
	}
	row := s.db.QueryRowContext(ctx, `SELECT id,assignment_id,question_id,value,raw_score,updated_at
		FROM responses WHERE assignment_id=$1 AND question_id=$2`, assignmentID, questionID)
	return scanResponse(row)
}

func (s *SQLStore) GetResponses(ctx context.Context, assignmentID string) ([]Response, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,assignment_id,question_id,value,raw_score,updated_at
		FROM responses WHERE assignment_id=$1 ORDER BY question_id`, assignmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Response{}
	for rows.Next() {
		r, err := scanResponse(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLStore) GetResponse(ctx context.Context, responseID string) (Response, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,assignment_id,question_id,value,raw_score,updated_at
		FROM responses WHERE id=$1`, responseID)
	return scanResponse(row)
}

func (s *SQLStore) SetResponseScore(ctx context.Context, responseID string, rawScore float64) (Response, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE responses SET raw_score=$1, updated_at=$2 WHERE id=$3`,
		rawScore, time.Now().Unix(), responseID)
	if err != nil {
		return Response{}, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return Response{}, ErrResponseNotFound
	}
	return s.GetResponse(ctx, responseID)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAssignment(row rowScanner) (Assignment, error) {
	var a Assignment
	var dur, started, submitted sql.NullInt64
	if err := row.Scan(&a.ID, &a.TestID, &a.UserID, &a.Status, &dur, &started, &submitted, &a.TimeSpentSeconds); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Assignment{}, ErrAssignmentNotFound
		}
		return Assignment{}, err
	}
	if dur.Valid {
		d := int(dur.Int64)
		a.DurationMinutes = &d
	}
	if started.Valid {
		v := started.Int64
		a.StartedAt = &v
	}
	if submitted.Valid {
		v := submitted.Int64
		a.SubmittedAt = &v
	}
	return a, nil
}

func scanResponse(row rowScanner) (Response, error) {
	var r Response
	var raw sql.NullFloat64
	if err := row.Scan(&r.ID, &r.AssignmentID, &r.QuestionID, &r.Value, &raw, &r.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Response{}, ErrResponseNotFound
		}
		return Response{}, err
	}
	if raw.Valid {
		v := raw.Float64
		r.RawScore = &v
	}
	return r, nil
}
