package assess_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "modernc.org/sqlite" // driver for "sqlite"

	"github.com/skillgauge/skillgauge/internal/assess"
	"github.com/skillgauge/skillgauge/internal/db"
	"github.com/skillgauge/skillgauge/internal/scoring"
)

func openTestStore(t *testing.T) *assess.SQLStore {
	t.Helper()
	ctx := context.Background()
	dbh, err := sql.Open("sqlite", "file:"+t.Name()+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	dbh.SetMaxOpenConns(1)
	t.Cleanup(func() { dbh.Close() })
	if err := db.EnsureSchema(ctx, dbh, db.DriverSQLite); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return assess.NewSQLStore(dbh, "sqlite")
}

func sqlSeed(t *testing.T, store *assess.SQLStore) assess.Test {
	t.Helper()
	dur := 30
	def := assess.Test{
		ID:              "tna-sql",
		Title:           "SQL Skills",
		DurationMinutes: &dur,
		Questions: []assess.Question{
			{ID: "q1", Type: scoring.TypeMultipleChoice, Weight: 2, Options: []assess.Option{
				{Value: "inner", Label: "INNER JOIN", IsCorrect: true, Score: 10},
				{Value: "cross", Label: "CROSS JOIN", Score: 0},
			}},
			{ID: "q2", Type: scoring.TypeOpenText, Weight: 1, Prompt: "Explain an index you added."},
		},
	}
	if err := store.PutTest(context.Background(), def); err != nil {
		t.Fatalf("put test: %v", err)
	}
	return def
}

func TestSQLStore_TestRoundTripAndStripping(t *testing.T) {
	store := openTestStore(t)
	def := sqlSeed(t, store)
	ctx := context.Background()

	admin, err := store.GetTestAdmin(ctx, def.ID)
	if err != nil {
		t.Fatalf("get admin: %v", err)
	}
	if admin.DurationMinutes == nil || *admin.DurationMinutes != 30 {
		t.Fatalf("duration = %v, want 30", admin.DurationMinutes)
	}
	if !admin.Questions[0].Options[0].IsCorrect || admin.Questions[0].Options[0].Score != 10 {
		t.Fatalf("admin view lost scoring fields: %+v", admin.Questions[0].Options[0])
	}

	safe, err := store.GetTest(ctx, def.ID)
	if err != nil {
		t.Fatalf("get safe: %v", err)
	}
	for _, q := range safe.Questions {
		for _, o := range q.Options {
			if o.IsCorrect || o.Score != 0 {
				t.Fatalf("respondent view leaked scoring fields: %+v", o)
			}
		}
	}

	if _, err := store.GetTest(ctx, "missing"); !errors.Is(err, assess.ErrTestNotFound) {
		t.Fatalf("err = %v, want ErrTestNotFound", err)
	}
}

func TestSQLStore_AssignmentLifecycle(t *testing.T) {
	store := openTestStore(t)
	def := sqlSeed(t, store)
	ctx := context.Background()

	a, err := store.CreateAssignment(ctx, def.ID, "u1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.Status != assess.StatusPending || a.DurationMinutes == nil {
		t.Fatalf("new assignment: %+v", a)
	}

	a, err = store.StartAssignment(ctx, a.ID, 1000)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if a.Status != assess.StatusInProgress || a.StartedAt == nil || *a.StartedAt != 1000 {
		t.Fatalf("started assignment: %+v", a)
	}

	// starting again must not reset the clock
	a, err = store.StartAssignment(ctx, a.ID, 2000)
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if *a.StartedAt != 1000 {
		t.Fatalf("restart moved started_at to %d", *a.StartedAt)
	}

	a, err = store.SubmitAssignment(ctx, a.ID, 120, 1120)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if a.Status != assess.StatusCompleted || a.TimeSpentSeconds != 120 {
		t.Fatalf("submitted assignment: %+v", a)
	}

	// the losing side of the submit race is a no-op
	a, err = store.SubmitAssignment(ctx, a.ID, 999, 9999)
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if a.TimeSpentSeconds != 120 || *a.SubmittedAt != 1120 {
		t.Fatalf("resubmit overwrote: %+v", a)
	}
}

func TestSQLStore_ResponseUpsertAndGuards(t *testing.T) {
	store := openTestStore(t)
	def := sqlSeed(t, store)
	ctx := context.Background()

	a, _ := store.CreateAssignment(ctx, def.ID, "u1")

	if _, err := store.UpsertResponse(ctx, a.ID, "q1", "inner"); !errors.Is(err, assess.ErrNotStarted) {
		t.Fatalf("err = %v, want ErrNotStarted", err)
	}

	if _, err := store.StartAssignment(ctx, a.ID, 1000); err != nil {
		t.Fatalf("start: %v", err)
	}
	first, err := store.UpsertResponse(ctx, a.ID, "q1", "cross")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	second, err := store.UpsertResponse(ctx, a.ID, "q1", "inner")
	if err != nil {
		t.Fatalf("revise: %v", err)
	}
	if first.ID != second.ID || second.Value != "inner" {
		t.Fatalf("revision: first=%+v second=%+v", first, second)
	}
	rs, err := store.GetResponses(ctx, a.ID)
	if err != nil {
		t.Fatalf("get responses: %v", err)
	}
	if len(rs) != 1 {
		t.Fatalf("want one row per (assignment,question), got %d", len(rs))
	}

	if _, err := store.SubmitAssignment(ctx, a.ID, 60, 1060); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := store.UpsertResponse(ctx, a.ID, "q2", "late"); !errors.Is(err, assess.ErrAssignmentCompleted) {
		t.Fatalf("err = %v, want ErrAssignmentCompleted", err)
	}
}

func TestSQLStore_SetResponseScore(t *testing.T) {
	store := openTestStore(t)
	def := sqlSeed(t, store)
	ctx := context.Background()

	a, _ := store.CreateAssignment(ctx, def.ID, "u1")
	if _, err := store.StartAssignment(ctx, a.ID, 1000); err != nil {
		t.Fatalf("start: %v", err)
	}
	r, err := store.UpsertResponse(ctx, a.ID, "q2", "covering index on (user_id, created_at)")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if r.RawScore != nil {
		t.Fatalf("raw score should start null, got %v", *r.RawScore)
	}

	graded, err := store.SetResponseScore(ctx, r.ID, 7.5)
	if err != nil {
		t.Fatalf("set score: %v", err)
	}
	if graded.RawScore == nil || *graded.RawScore != 7.5 {
		t.Fatalf("raw score = %v, want 7.5", graded.RawScore)
	}

	if _, err := store.SetResponseScore(ctx, "missing", 5); !errors.Is(err, assess.ErrResponseNotFound) {
		t.Fatalf("err = %v, want ErrResponseNotFound", err)
	}
}

func TestSQLStore_ListExpiredAssignments(t *testing.T) {
	store := openTestStore(t)
	def := sqlSeed(t, store)
	ctx := context.Background()

	a, _ := store.CreateAssignment(ctx, def.ID, "u1")
	if _, err := store.StartAssignment(ctx, a.ID, 1000); err != nil {
		t.Fatalf("start: %v", err)
	}
	// deadline is 1000 + 30*60
	expired, err := store.ListExpiredAssignments(ctx, 1000+30*60)
	if err != nil {
		t.Fatalf("list expired: %v", err)
	}
	if len(expired) != 1 || expired[0].ID != a.ID {
		t.Fatalf("expired = %+v, want the started assignment", expired)
	}
	early, err := store.ListExpiredAssignments(ctx, 1000+30*60-1)
	if err != nil {
		t.Fatalf("list early: %v", err)
	}
	if len(early) != 0 {
		t.Fatalf("assignment expired too early: %+v", early)
	}
}

func TestSQLStore_ListAssignmentsFilters(t *testing.T) {
	store := openTestStore(t)
	def := sqlSeed(t, store)
	ctx := context.Background()

	a1, _ := store.CreateAssignment(ctx, def.ID, "u1")
	if _, err := store.CreateAssignment(ctx, def.ID, "u2"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.StartAssignment(ctx, a1.ID, 1000); err != nil {
		t.Fatalf("start: %v", err)
	}

	mine, err := store.ListAssignments(ctx, assess.AssignmentListOpts{UserID: "u1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(mine) != 1 || mine[0].UserID != "u1" {
		t.Fatalf("user filter: %+v", mine)
	}
	inProgress, err := store.ListAssignments(ctx, assess.AssignmentListOpts{Status: assess.StatusInProgress})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(inProgress) != 1 || inProgress[0].ID != a1.ID {
		t.Fatalf("status filter: %+v", inProgress)
	}
}
