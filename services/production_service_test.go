package services

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"journal-workflow-api/models"
)

func (f *fixture) issue(t *testing.T, scheduled *time.Time) *models.Issue {
	t.Helper()
	issue, err := f.wf.Production.CreateIssue(context.Background(), as(editorID), CreateIssueInput{
		JournalID:     journalID,
		Volume:        12,
		Number:        "3",
		Year:          2024,
		Title:         "Spring issue",
		DateScheduled: scheduled,
	})
	require.NoError(t, err)
	return issue
}

func (f *fixture) schedule(t *testing.T, sub *models.Submission, issue *models.Issue) *models.PublicationSchedule {
	t.Helper()
	sc, err := f.wf.Production.ScheduleForIssue(context.Background(), as(editorID), ScheduleInput{
		SubmissionID:    sub.SubmissionID,
		IssueID:         issue.IssueID,
		PublicationDate: f.clock.Now().Add(7 * 24 * time.Hour),
		ArticleOrder:    1,
	})
	require.NoError(t, err)
	return sc
}

func TestCopyeditingFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := f.accepted(t)

	_, err := f.wf.Production.AssignCopyeditor(ctx, as(reviewerA), sub.SubmissionID, copyeditorID)
	assert.ErrorIs(t, err, ErrCapabilityDenied)

	ce, err := f.wf.Production.AssignCopyeditor(ctx, as(editorID), sub.SubmissionID, copyeditorID)
	require.NoError(t, err)
	assert.Equal(t, models.CopyeditingPending, ce.Status)

	_, err = f.wf.Production.AssignCopyeditor(ctx, as(editorID), sub.SubmissionID, copyeditorID)
	assert.ErrorIs(t, err, ErrDuplicateAssignment)

	_, err = f.wf.Production.UploadVersion(ctx, as(copyeditorID), sub.SubmissionID, "files/copyedit-1.docx", models.VersionCopyedited)
	require.NoError(t, err)
	rows, err := f.wf.Production.ListCopyeditors(ctx, as(editorID), sub.SubmissionID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, models.CopyeditingInProgress, rows[0].Status)

	_, err = f.wf.Production.RecordAuthorApproval(ctx, as(authorID), sub.SubmissionID, false, "Please keep the British spelling.")
	require.NoError(t, err)
	approval, err := f.wf.Production.RecordAuthorApproval(ctx, as(authorID), sub.SubmissionID, true, "")
	require.NoError(t, err)
	assert.True(t, approval.Approved)

	var approvals []models.AuthorApproval
	require.NoError(t, f.db.Where("submission_id = ?", sub.SubmissionID).Find(&approvals).Error)
	require.Len(t, approvals, 1, "approval is upserted per author")
	assert.True(t, approvals[0].Approved)
	assert.Nil(t, approvals[0].Comments)

	rows, err = f.wf.Production.ListCopyeditors(ctx, as(editorID), sub.SubmissionID)
	require.NoError(t, err)
	assert.Equal(t, models.CopyeditingComplete, rows[0].Status)
	assert.NotNil(t, rows[0].DateCompleted)

	f.dispatcher.Wait()
	created := f.recorder.ofType(EventAssignmentCreated)
	require.Len(t, created, 1)
	assert.Equal(t, []int{copyeditorID}, created[0].Recipients)
}

func TestAuthorActsOnlyOnOwnSubmission(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.db.Create(&models.JournalRole{UserID: outsiderID, JournalID: journalID, Role: RoleAuthor}).Error)
	sub := f.accepted(t)
	_, err := f.wf.Production.AssignCopyeditor(ctx, as(editorID), sub.SubmissionID, copyeditorID)
	require.NoError(t, err)

	_, err = f.wf.Production.RecordAuthorApproval(ctx, as(outsiderID), sub.SubmissionID, true, "")
	assert.ErrorIs(t, err, ErrCapabilityDenied)
	_, err = f.wf.Production.UploadVersion(ctx, as(outsiderID), sub.SubmissionID, "files/other.docx", models.VersionProofread)
	assert.ErrorIs(t, err, ErrCapabilityDenied)

	var approvals int64
	require.NoError(t, f.db.Model(&models.AuthorApproval{}).Where("submission_id = ?", sub.SubmissionID).Count(&approvals).Error)
	assert.Zero(t, approvals)
	rows, err := f.wf.Production.ListCopyeditors(ctx, as(editorID), sub.SubmissionID)
	require.NoError(t, err)
	assert.Equal(t, models.CopyeditingPending, rows[0].Status)

	// The outsider's own manuscript is still theirs to work on.
	own, err := f.wf.Submissions.Create(ctx, as(outsiderID), CreateSubmissionInput{JournalID: journalID, Title: "Second author"})
	require.NoError(t, err)
	_, err = f.wf.Production.UploadVersion(ctx, as(outsiderID), own.SubmissionID, "files/second.docx", models.VersionOriginal)
	assert.NoError(t, err)
}

func TestAssignCopyeditorOutsideCopyediting(t *testing.T) {
	f := newFixture(t)
	sub := f.submit(t, "Not yet accepted")
	_, err := f.wf.Production.AssignCopyeditor(context.Background(), as(editorID), sub.SubmissionID, copyeditorID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestFileVersionsAreNumberedAcrossTypes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := f.accepted(t)

	uploads := []struct {
		actor int
		file  string
		kind  models.FileVersionType
	}{
		{authorID, "files/manuscript.docx", models.VersionOriginal},
		{copyeditorID, "files/copyedited.docx", models.VersionCopyedited},
		{authorID, "files/proof.pdf", models.VersionProofread},
		{editorID, "files/copyedited-2.docx", models.VersionCopyedited},
	}
	for i, u := range uploads {
		v, err := f.wf.Production.UploadVersion(ctx, as(u.actor), sub.SubmissionID, u.file, u.kind)
		require.NoError(t, err)
		assert.Equal(t, i+1, v.VersionNumber)
	}

	versions, err := f.wf.Production.ListVersions(ctx, as(authorID), sub.SubmissionID)
	require.NoError(t, err)
	require.Len(t, versions, 4)
	assert.Equal(t, models.VersionProofread, versions[2].VersionType)

	_, err = f.wf.Production.UploadVersion(ctx, as(outsiderID), sub.SubmissionID, "files/x.docx", models.VersionOriginal)
	assert.ErrorIs(t, err, ErrCapabilityDenied)
	_, err = f.wf.Production.UploadVersion(ctx, as(authorID), sub.SubmissionID, "files/x.docx", "final")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.wf.Production.UploadVersion(ctx, as(authorID), sub.SubmissionID, " ", models.VersionOriginal)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestScheduleIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := f.accepted(t)
	issue := f.issue(t, nil)

	f.schedule(t, sub, issue)
	scheduled := f.reload(t, sub.SubmissionID)
	assert.Equal(t, models.StageProduction, scheduled.Stage)
	assert.Equal(t, models.StatusScheduled, scheduled.Status)

	f.schedule(t, sub, issue)
	var count int64
	require.NoError(t, f.db.Model(&models.PublicationSchedule{}).Where("submission_id = ?", sub.SubmissionID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
	assert.Equal(t, scheduled.Version, f.reload(t, sub.SubmissionID).Version, "rescheduling does not transition again")

	// Moving to another issue overwrites the row.
	later := f.issue(t, nil)
	f.schedule(t, sub, later)
	var sc models.PublicationSchedule
	require.NoError(t, f.db.Where("submission_id = ?", sub.SubmissionID).First(&sc).Error)
	assert.Equal(t, later.IssueID, sc.IssueID)

	history, err := f.wf.Submissions.History(ctx, as(authorID), sub.SubmissionID)
	require.NoError(t, err)
	assert.Len(t, history, 2, "accept and the first scheduling")

	f.dispatcher.Wait()
	assert.Len(t, f.recorder.ofType(EventSubmissionScheduled), 3)
}

func TestScheduleRequiresAcceptedSubmission(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	issue := f.issue(t, nil)
	sub, _ := f.inExternalReview(t)

	_, err := f.wf.Production.ScheduleForIssue(ctx, as(editorID), ScheduleInput{
		SubmissionID: sub.SubmissionID, IssueID: issue.IssueID, PublicationDate: f.clock.Now(),
	})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	accepted := f.accepted(t)
	_, err = f.wf.Production.ScheduleForIssue(ctx, as(editorID), ScheduleInput{
		SubmissionID: accepted.SubmissionID, IssueID: issue.IssueID,
	})
	assert.ErrorIs(t, err, ErrValidation, "publication date is required")

	foreign, err := f.wf.Production.CreateIssue(ctx, NewActor(99, RoleAdmin), CreateIssueInput{JournalID: otherJournal, Year: 2024})
	require.NoError(t, err)
	_, err = f.wf.Production.ScheduleForIssue(ctx, as(editorID), ScheduleInput{
		SubmissionID: accepted.SubmissionID, IssueID: foreign.IssueID, PublicationDate: f.clock.Now(),
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReleaseIssuePublishesScheduledArticles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	issue := f.issue(t, nil)
	first := f.accepted(t)
	second := f.accepted(t)
	f.schedule(t, first, issue)
	f.schedule(t, second, issue)

	_, err := f.wf.Production.ReleaseIssue(ctx, as(editorID), issue.IssueID)
	assert.ErrorIs(t, err, ErrCapabilityDenied, "release needs manage-journal")

	res, err := f.wf.Production.ReleaseIssue(ctx, as(managerID), issue.IssueID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{first.SubmissionID, second.SubmissionID}, res.Published)
	assert.Empty(t, res.Skipped)

	published := f.reload(t, first.SubmissionID)
	assert.Equal(t, models.StatusPublished, published.Status)
	require.NotNil(t, published.DatePublished)

	reloaded, err := loadIssue(f.db, issue.IssueID)
	require.NoError(t, err)
	assert.True(t, reloaded.Published)

	again, err := f.wf.Production.ReleaseIssue(ctx, as(managerID), issue.IssueID)
	require.NoError(t, err)
	assert.Empty(t, again.Published)
	assert.ElementsMatch(t, []int{first.SubmissionID, second.SubmissionID}, again.Skipped)

	_, err = f.decide(first.SubmissionID, models.StageProduction, 0, models.DecisionDecline)
	assert.ErrorIs(t, err, ErrSubmissionTerminal)

	_, err = f.wf.Production.ScheduleForIssue(ctx, as(editorID), ScheduleInput{
		SubmissionID: first.SubmissionID, IssueID: issue.IssueID, PublicationDate: f.clock.Now(),
	})
	assert.ErrorIs(t, err, ErrSubmissionTerminal)

	f.dispatcher.Wait()
	assert.Len(t, f.recorder.ofType(EventSubmissionPublished), 2)
}

func TestReleasedIssueTakesNoNewArticles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	issue := f.issue(t, nil)
	f.schedule(t, f.accepted(t), issue)
	_, err := f.wf.Production.ReleaseIssue(ctx, as(managerID), issue.IssueID)
	require.NoError(t, err)

	late := f.accepted(t)
	_, err = f.wf.Production.ScheduleForIssue(ctx, as(editorID), ScheduleInput{
		SubmissionID: late.SubmissionID, IssueID: issue.IssueID, PublicationDate: f.clock.Now(),
	})
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, models.StatusAccepted, f.reload(t, late.SubmissionID).Status)
}

func issueRow(journal int, published bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"issue_id", "journal_id", "year", "published"}).
		AddRow(3, journal, 2024, published)
}

func TestReleaseIssueHoldsIssueLock(t *testing.T) {
	db, mock := newMockGormDB(t)
	svc := NewProductionService(Deps{DB: db})

	mock.ExpectQuery("SELECT \\* FROM `issues`").WillReturnRows(issueRow(journalID, false))
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `issues` .*FOR UPDATE").WillReturnRows(issueRow(journalID, false))
	mock.ExpectQuery("SELECT \\* FROM `publication_schedules`").
		WillReturnRows(sqlmock.NewRows([]string{"submission_id", "issue_id"}))
	mock.ExpectExec("UPDATE `issues` SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	res, err := svc.ReleaseIssue(context.Background(), SystemActor(), 3)
	require.NoError(t, err)
	assert.Empty(t, res.Published)
	assert.NoError(t, mock.ExpectationsWereMet(), "schedules are read and the issue is marked inside one locked transaction")
}

func TestScheduleLocksIssueBeforeSubmission(t *testing.T) {
	db, mock := newMockGormDB(t)
	svc := NewProductionService(Deps{DB: db})
	accepted := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{"submission_id", "journal_id", "submitter_id", "stage", "status", "version"}).
			AddRow(7, journalID, authorID, string(models.StageCopyediting), string(models.StatusAccepted), 2)
	}

	mock.ExpectQuery("SELECT \\* FROM `submissions`").WillReturnRows(accepted())
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `issues` .*FOR UPDATE").WillReturnRows(issueRow(otherJournal, false))
	mock.ExpectQuery("SELECT \\* FROM `submissions` .*FOR UPDATE").WillReturnRows(accepted())
	mock.ExpectRollback()

	_, err := svc.ScheduleForIssue(context.Background(), SystemActor(), ScheduleInput{
		SubmissionID: 7, IssueID: 3, PublicationDate: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
	})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReleaseDueIssues(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	yesterday := f.clock.Now().Add(-24 * time.Hour)
	nextMonth := f.clock.Now().Add(30 * 24 * time.Hour)
	due := f.issue(t, &yesterday)
	future := f.issue(t, &nextMonth)
	f.issue(t, nil)

	sub := f.accepted(t)
	f.schedule(t, sub, due)
	other := f.accepted(t)
	f.schedule(t, other, future)

	results, err := f.wf.Production.ReleaseDueIssues(ctx, f.clock.Now())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, due.IssueID, results[0].IssueID)
	assert.Equal(t, []int{sub.SubmissionID}, results[0].Published)

	assert.Equal(t, models.StatusPublished, f.reload(t, sub.SubmissionID).Status)
	assert.Equal(t, models.StatusScheduled, f.reload(t, other.SubmissionID).Status)

	open, err := f.wf.Production.ListIssues(ctx, as(authorID), journalID, true)
	require.NoError(t, err)
	assert.Len(t, open, 2)

	results, err = f.wf.Production.ReleaseDueIssues(ctx, f.clock.Now())
	require.NoError(t, err)
	assert.Empty(t, results, "released issues are not picked up again")
}
