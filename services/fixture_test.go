package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"journal-workflow-api/models"
)

const (
	journalID    = 1
	otherJournal = 2

	managerID       = 10
	editorID        = 11
	sectionEditorID = 12
	authorID        = 20
	reviewerA       = 30
	reviewerB       = 31
	copyeditorID    = 40
	outsiderID      = 50
)

var seedRoles = []models.JournalRole{
	{UserID: managerID, JournalID: journalID, Role: RoleManager},
	{UserID: editorID, JournalID: journalID, Role: RoleEditor},
	{UserID: sectionEditorID, JournalID: journalID, Role: RoleSectionEditor},
	{UserID: authorID, JournalID: journalID, Role: RoleAuthor},
	{UserID: reviewerA, JournalID: journalID, Role: RoleReviewer},
	{UserID: reviewerB, JournalID: journalID, Role: RoleReviewer},
	{UserID: copyeditorID, JournalID: journalID, Role: RoleCopyeditor},
	{UserID: editorID, JournalID: otherJournal, Role: RoleReviewer},
}

// newTestDB opens an in-memory SQLite database with every workflow table. A single
// connection keeps the database alive and serialises transactions the way row locks do.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))

	users := []models.User{
		{UserID: managerID, Name: "Mina Manager", Email: "manager@example.org"},
		{UserID: editorID, Name: "Ed Itor", Email: "editor@example.org"},
		{UserID: sectionEditorID, Name: "Sec Tion", Email: "section@example.org"},
		{UserID: authorID, Name: "Ada Author", Email: "author@example.org"},
		{UserID: reviewerA, Name: "Rae Viewer", Email: "rae@example.org"},
		{UserID: reviewerB, Name: "Rob Viewer", Email: "rob@example.org"},
		{UserID: copyeditorID, Name: "Cody Editor", Email: "cody@example.org"},
		{UserID: outsiderID, Name: "Otto Sider", Email: "otto@example.org"},
	}
	require.NoError(t, db.Create(&users).Error)
	roles := append([]models.JournalRole(nil), seedRoles...)
	require.NoError(t, db.Create(&roles).Error)
	return db
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// recordingNotifier keeps every delivered event in memory.
type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingNotifier) Name() string { return "recorder" }

func (r *recordingNotifier) Notify(_ context.Context, event Event) error {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
	return nil
}

func (r *recordingNotifier) ofType(eventType EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	db         *gorm.DB
	wf         *Workflow
	clock      *testClock
	recorder   *recordingNotifier
	dispatcher *Dispatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	recorder := &recordingNotifier{}
	dispatcher := NewDispatcher(nil, time.Second, recorder)
	clock := newTestClock()
	return &fixture{
		db:         db,
		wf:         NewWorkflow(Deps{DB: db, Events: dispatcher, Clock: clock.Now}),
		clock:      clock,
		recorder:   recorder,
		dispatcher: dispatcher,
	}
}

func as(userID int) Actor {
	return NewActor(userID)
}

func (f *fixture) submit(t *testing.T, title string) *models.Submission {
	t.Helper()
	sub, err := f.wf.Submissions.Create(context.Background(), as(authorID), CreateSubmissionInput{
		JournalID: journalID,
		Title:     title,
	})
	require.NoError(t, err)
	return sub
}

func (f *fixture) decide(submissionID int, stage models.Stage, round int, decision models.Decision) (*DecisionResult, error) {
	return f.wf.Decisions.RecordDecision(context.Background(), as(editorID), DecisionInput{
		SubmissionID: submissionID,
		Stage:        stage,
		RoundNumber:  round,
		Decision:     decision,
	})
}

// inExternalReview returns a submission sent to external review with round 1 open.
func (f *fixture) inExternalReview(t *testing.T) (*models.Submission, *models.ReviewRound) {
	t.Helper()
	sub := f.submit(t, "Sparse attention for tide gauges")
	_, err := f.decide(sub.SubmissionID, models.StageSubmission, 0, models.DecisionSendToExternalReview)
	require.NoError(t, err)
	round, err := f.wf.Rounds.OpenRound(context.Background(), as(editorID), sub.SubmissionID, models.StageExternalReview)
	require.NoError(t, err)
	return f.reload(t, sub.SubmissionID), round
}

func (f *fixture) assign(t *testing.T, sub *models.Submission, round *models.ReviewRound, reviewerID int) *models.ReviewAssignment {
	t.Helper()
	a, err := f.wf.Assignments.Assign(context.Background(), as(editorID), AssignReviewerInput{
		SubmissionID:  sub.SubmissionID,
		ReviewRoundID: round.ReviewRoundID,
		ReviewerID:    reviewerID,
	})
	require.NoError(t, err)
	return a
}

// accepted returns a submission accepted into copyediting.
func (f *fixture) accepted(t *testing.T) *models.Submission {
	t.Helper()
	sub := f.submit(t, "Notes on citation graphs")
	_, err := f.decide(sub.SubmissionID, models.StageSubmission, 0, models.DecisionAccept)
	require.NoError(t, err)
	return f.reload(t, sub.SubmissionID)
}

func (f *fixture) reload(t *testing.T, submissionID int) *models.Submission {
	t.Helper()
	sub, err := loadSubmission(f.db, submissionID)
	require.NoError(t, err)
	return sub
}

func (f *fixture) setStage(t *testing.T, submissionID int, stage models.Stage, status models.SubmissionStatus) {
	t.Helper()
	require.NoError(t, f.db.Model(&models.Submission{}).
		Where("submission_id = ?", submissionID).
		Updates(map[string]interface{}{"stage": stage, "status": status}).Error)
}
