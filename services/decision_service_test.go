package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"journal-workflow-api/models"
)

func countDecisions(t *testing.T, f *fixture, submissionID int) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&models.EditorialDecision{}).Where("submission_id = ?", submissionID).Count(&n).Error)
	return n
}

func TestEditorCannotDecideOwnSubmission(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub, err := f.wf.Submissions.Create(ctx, as(editorID), CreateSubmissionInput{JournalID: journalID, Title: "My own paper"})
	require.NoError(t, err)

	_, err = f.decide(sub.SubmissionID, models.StageSubmission, 0, models.DecisionAccept)
	assert.ErrorIs(t, err, ErrConflictOfInterest)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Zero(t, countDecisions(t, f, sub.SubmissionID))

	// Another editor of the journal may decide.
	_, err = f.wf.Decisions.RecordDecision(ctx, as(sectionEditorID), DecisionInput{
		SubmissionID: sub.SubmissionID,
		Stage:        models.StageSubmission,
		Decision:     models.DecisionAccept,
	})
	assert.NoError(t, err)
}

func TestAcceptFromExternalReview(t *testing.T) {
	f := newFixture(t)
	sub, _ := f.inExternalReview(t)

	res, err := f.decide(sub.SubmissionID, models.StageExternalReview, 1, models.DecisionAccept)
	require.NoError(t, err)
	assert.Equal(t, models.StageCopyediting, res.Submission.Stage)
	assert.Equal(t, models.StatusAccepted, res.Submission.Status)
	assert.Equal(t, models.DecisionAccept, res.Decision.Decision)
	assert.Equal(t, editorID, res.Decision.EditorID)
	assert.Nil(t, res.NewRound)

	decisions, err := f.wf.Decisions.ListDecisions(context.Background(), as(authorID), sub.SubmissionID)
	require.NoError(t, err)
	require.Len(t, decisions, 2)
	assert.Equal(t, models.DecisionSendToExternalReview, decisions[0].Decision)
	assert.Equal(t, models.DecisionAccept, decisions[1].Decision)
	assert.Equal(t, 1, decisions[1].RoundNumber)

	f.dispatcher.Wait()
	recorded := f.recorder.ofType(EventDecisionRecorded)
	require.Len(t, recorded, 2)
	var accept *Event
	for i := range recorded {
		if recorded[i].Data["decision"] == models.DecisionAccept {
			accept = &recorded[i]
		}
	}
	require.NotNil(t, accept, "delivery order is not guaranteed")
	assert.Equal(t, []int{authorID}, accept.Recipients)
	assert.Equal(t, models.StatusAccepted, accept.Data["status"])
}

func TestNoDecisionsOutsideReviewStages(t *testing.T) {
	f := newFixture(t)
	sub := f.accepted(t)

	for _, d := range []models.Decision{
		models.DecisionDecline,
		models.DecisionAccept,
		models.DecisionRequestRevisions,
		models.DecisionNewRound,
		models.DecisionSendToExternalReview,
	} {
		_, err := f.decide(sub.SubmissionID, models.StageCopyediting, 0, d)
		assert.ErrorIs(t, err, ErrInvalidTransition, "decision %s from copyediting", d)
	}

	// A decision naming a stage the submission has left is refused as well.
	_, err := f.decide(sub.SubmissionID, models.StageSubmission, 0, models.DecisionDecline)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, models.StatusAccepted, f.reload(t, sub.SubmissionID).Status)
}

func TestDecisionMatrix(t *testing.T) {
	tests := []struct {
		name       string
		stage      models.Stage
		round      int
		decision   models.Decision
		wantStage  models.Stage
		wantStatus models.SubmissionStatus
		wantErr    error
	}{
		{"external review from intake", models.StageSubmission, 0, models.DecisionSendToExternalReview, models.StageExternalReview, models.StatusUnderReview, nil},
		{"desk accept", models.StageSubmission, 0, models.DecisionAccept, models.StageCopyediting, models.StatusAccepted, nil},
		{"desk reject", models.StageSubmission, 0, models.DecisionDecline, models.StageSubmission, models.StatusDeclined, nil},
		{"desk reject naming a round", models.StageSubmission, 1, models.DecisionDecline, "", "", ErrRoundConflict},
		{"no revisions at intake", models.StageSubmission, 0, models.DecisionRequestRevisions, "", "", ErrInvalidTransition},
		{"no new round at intake", models.StageSubmission, 0, models.DecisionNewRound, "", "", ErrInvalidTransition},
		{"internal to external", models.StageInternalReview, 0, models.DecisionSendToExternalReview, models.StageExternalReview, models.StatusUnderReview, nil},
		{"revisions in internal review", models.StageInternalReview, 0, models.DecisionRequestRevisions, models.StageInternalReview, models.StatusRevisionRequired, nil},
		{"revisions against a missing round", models.StageInternalReview, 99, models.DecisionRequestRevisions, "", "", ErrRoundConflict},
		{"new round without rounds", models.StageInternalReview, 0, models.DecisionNewRound, "", "", ErrInvalidTransition},
		{"external cannot go external", models.StageExternalReview, 0, models.DecisionSendToExternalReview, "", "", ErrInvalidTransition},
		{"decline in external review", models.StageExternalReview, 0, models.DecisionDecline, models.StageExternalReview, models.StatusDeclined, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			sub := f.submit(t, tt.name)
			if tt.stage != models.StageSubmission {
				f.setStage(t, sub.SubmissionID, tt.stage, models.StatusUnderReview)
			}

			res, err := f.decide(sub.SubmissionID, tt.stage, tt.round, tt.decision)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Zero(t, countDecisions(t, f, sub.SubmissionID), "failed decisions leave no row")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStage, res.Submission.Stage)
			assert.Equal(t, tt.wantStatus, res.Submission.Status)
		})
	}
}

func TestDecisionMustNameLatestRound(t *testing.T) {
	f := newFixture(t)
	sub, _ := f.inExternalReview(t)

	for _, round := range []int{99, 0, 2} {
		_, err := f.decide(sub.SubmissionID, models.StageExternalReview, round, models.DecisionRequestRevisions)
		assert.ErrorIs(t, err, ErrRoundConflict, "round %d", round)
	}
	assert.EqualValues(t, 1, countDecisions(t, f, sub.SubmissionID), "only the intake decision is logged")
	assert.Equal(t, models.StatusUnderReview, f.reload(t, sub.SubmissionID).Status)

	res, err := f.decide(sub.SubmissionID, models.StageExternalReview, 1, models.DecisionRequestRevisions)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Decision.RoundNumber)
}

func TestDeclinedSubmissionIsFrozen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub, round := f.inExternalReview(t)
	f.assign(t, sub, round, reviewerA)

	_, err := f.decide(sub.SubmissionID, models.StageExternalReview, 1, models.DecisionDecline)
	require.NoError(t, err)

	_, err = f.decide(sub.SubmissionID, models.StageExternalReview, 1, models.DecisionAccept)
	assert.ErrorIs(t, err, ErrSubmissionTerminal)
	_, err = f.wf.Rounds.OpenRound(ctx, as(editorID), sub.SubmissionID, models.StageExternalReview)
	assert.ErrorIs(t, err, ErrSubmissionTerminal)
	_, err = f.wf.Assignments.Assign(ctx, as(editorID), AssignReviewerInput{
		SubmissionID: sub.SubmissionID, ReviewRoundID: round.ReviewRoundID, ReviewerID: reviewerB,
	})
	assert.ErrorIs(t, err, ErrSubmissionTerminal)
	_, err = f.wf.Production.UploadVersion(ctx, as(authorID), sub.SubmissionID, "files/late.docx", models.VersionOriginal)
	assert.ErrorIs(t, err, ErrSubmissionTerminal)

	final := f.reload(t, sub.SubmissionID)
	assert.Equal(t, models.StatusDeclined, final.Status)
	assert.Equal(t, models.StageExternalReview, final.Stage)
}

func TestNewRoundCancelsOutstandingReviews(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub, round := f.inExternalReview(t)
	a := f.assign(t, sub, round, reviewerA)

	_, err := f.decide(sub.SubmissionID, models.StageExternalReview, 1, models.DecisionRequestRevisions)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRevisionRequired, f.reload(t, sub.SubmissionID).Status)

	res, err := f.decide(sub.SubmissionID, models.StageExternalReview, 1, models.DecisionNewRound)
	require.NoError(t, err)
	require.NotNil(t, res.NewRound)
	assert.Equal(t, 2, res.NewRound.RoundNumber)
	assert.Equal(t, models.StatusUnderReview, res.Submission.Status)
	assert.Equal(t, models.StageExternalReview, res.Submission.Stage)

	old, err := loadRound(f.db, round.ReviewRoundID)
	require.NoError(t, err)
	assert.Equal(t, models.RoundCompleted, old.Status)
	cancelled, err := loadAssignment(f.db, a.ReviewAssignmentID)
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentCancelled, cancelled.Status)
	assert.Nil(t, cancelled.ActiveReviewerID)

	// The same reviewer can be asked again in the new round.
	f.assign(t, sub, res.NewRound, reviewerA)

	_, err = f.decide(sub.SubmissionID, models.StageExternalReview, 1, models.DecisionNewRound)
	assert.ErrorIs(t, err, ErrRoundConflict, "round 1 is no longer the latest")

	_, err = f.wf.Decisions.RecordDecision(ctx, as(editorID), DecisionInput{
		SubmissionID: sub.SubmissionID, Stage: models.StageExternalReview, Decision: "maybe",
	})
	assert.ErrorIs(t, err, ErrValidation)

	f.dispatcher.Wait()
	assert.Len(t, f.recorder.ofType(EventRoundOpened), 2)
}

func TestConcurrentDeclinesHaveOneWinner(t *testing.T) {
	f := newFixture(t)
	sub, _ := f.inExternalReview(t)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, editor := range []int{editorID, sectionEditorID} {
		wg.Add(1)
		go func(i, editor int) {
			defer wg.Done()
			_, errs[i] = f.wf.Decisions.RecordDecision(context.Background(), as(editor), DecisionInput{
				SubmissionID: sub.SubmissionID,
				Stage:        models.StageExternalReview,
				RoundNumber:  1,
				Decision:     models.DecisionDecline,
			})
		}(i, editor)
	}
	wg.Wait()

	var ok, terminal int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case assert.ErrorIs(t, err, ErrSubmissionTerminal):
			terminal++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, terminal)
	assert.EqualValues(t, 2, countDecisions(t, f, sub.SubmissionID), "intake decision plus one decline")
}

func TestConcurrentNewRoundsOpenOneRound(t *testing.T) {
	f := newFixture(t)
	sub, _ := f.inExternalReview(t)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.decide(sub.SubmissionID, models.StageExternalReview, 1, models.DecisionNewRound)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var conflicts int
	for err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, ErrRoundConflict)
			conflicts++
		}
	}
	assert.Equal(t, 1, conflicts)

	rounds, err := f.wf.Rounds.ListRounds(context.Background(), as(editorID), sub.SubmissionID, nil)
	require.NoError(t, err)
	assert.Len(t, rounds, 2)
}
