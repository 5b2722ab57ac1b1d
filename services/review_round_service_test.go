package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"journal-workflow-api/models"
)

func TestOpenRoundNumbersFromOne(t *testing.T) {
	f := newFixture(t)
	sub, round := f.inExternalReview(t)

	assert.Equal(t, 1, round.RoundNumber)
	assert.Equal(t, models.RoundPendingReviewers, round.Status)
	assert.Equal(t, models.StageExternalReview, round.Stage)

	_, err := f.wf.Rounds.OpenRound(context.Background(), as(editorID), sub.SubmissionID, models.StageExternalReview)
	assert.ErrorIs(t, err, ErrRoundConflict)

	f.dispatcher.Wait()
	opened := f.recorder.ofType(EventRoundOpened)
	require.Len(t, opened, 1)
	assert.Equal(t, []int{authorID}, opened[0].Recipients)
}

func TestOpenRoundRejectsWrongStage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := f.submit(t, "Still in intake")

	_, err := f.wf.Rounds.OpenRound(ctx, as(editorID), sub.SubmissionID, models.StageExternalReview)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.wf.Rounds.OpenRound(ctx, as(editorID), sub.SubmissionID, models.StageCopyediting)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.wf.Rounds.OpenRound(ctx, as(reviewerA), sub.SubmissionID, models.StageSubmission)
	assert.ErrorIs(t, err, ErrCapabilityDenied)
}

func TestAdvanceRoundIsForwardOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, round := f.inExternalReview(t)

	_, err := f.wf.Rounds.AdvanceRoundStatus(ctx, as(editorID), round.ReviewRoundID, models.RoundCompleted)
	assert.ErrorIs(t, err, ErrInvalidTransition, "pending_reviewers cannot skip to completed")

	r, err := f.wf.Rounds.AdvanceRoundStatus(ctx, as(editorID), round.ReviewRoundID, models.RoundPendingReviews)
	require.NoError(t, err)
	assert.Equal(t, models.RoundPendingReviews, r.Status)

	_, err = f.wf.Rounds.AdvanceRoundStatus(ctx, as(editorID), round.ReviewRoundID, models.RoundPendingReviewers)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	r, err = f.wf.Rounds.AdvanceRoundStatus(ctx, as(editorID), round.ReviewRoundID, models.RoundCompleted)
	require.NoError(t, err)
	assert.Equal(t, models.RoundCompleted, r.Status)
	assert.Nil(t, r.OpenMarker)

	_, err = f.wf.Rounds.AdvanceRoundStatus(ctx, as(editorID), round.ReviewRoundID, models.RoundCompleted)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCompleteRoundWithOutstandingReviews(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub, round := f.inExternalReview(t)
	a := f.assign(t, sub, round, reviewerA)

	_, err := f.wf.Rounds.AdvanceRoundStatus(ctx, as(editorID), round.ReviewRoundID, models.RoundPendingReviews)
	require.NoError(t, err)

	_, err = f.wf.Rounds.AdvanceRoundStatus(ctx, as(editorID), round.ReviewRoundID, models.RoundCompleted)
	assert.ErrorIs(t, err, ErrReviewsOutstanding)

	_, err = f.wf.Assignments.Respond(ctx, as(reviewerA), a.ReviewAssignmentID, false)
	require.NoError(t, err)

	_, err = f.wf.Rounds.AdvanceRoundStatus(ctx, as(editorID), round.ReviewRoundID, models.RoundCompleted)
	assert.NoError(t, err)
}

func TestRoundNumbersStayGapFree(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub, round := f.inExternalReview(t)

	for _, next := range []models.ReviewRoundStatus{models.RoundPendingReviews, models.RoundCompleted} {
		_, err := f.wf.Rounds.AdvanceRoundStatus(ctx, as(editorID), round.ReviewRoundID, next)
		require.NoError(t, err)
	}
	second, err := f.wf.Rounds.OpenRound(ctx, as(editorID), sub.SubmissionID, models.StageExternalReview)
	require.NoError(t, err)
	assert.Equal(t, 2, second.RoundNumber)

	res, err := f.decide(sub.SubmissionID, models.StageExternalReview, 2, models.DecisionNewRound)
	require.NoError(t, err)
	require.NotNil(t, res.NewRound)
	assert.Equal(t, 3, res.NewRound.RoundNumber)

	stage := models.StageExternalReview
	rounds, err := f.wf.Rounds.ListRounds(ctx, as(authorID), sub.SubmissionID, &stage)
	require.NoError(t, err)
	require.Len(t, rounds, 3)
	for i, r := range rounds {
		assert.Equal(t, i+1, r.RoundNumber)
	}
	assert.Equal(t, models.RoundCompleted, rounds[1].Status)
	assert.Equal(t, models.RoundPendingReviewers, rounds[2].Status)
}

func TestRoundSettlementIsStamped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub, round := f.inExternalReview(t)
	a := f.assign(t, sub, round, reviewerA)
	b := f.assign(t, sub, round, reviewerB)

	_, err := f.wf.Assignments.Respond(ctx, as(reviewerA), a.ReviewAssignmentID, false)
	require.NoError(t, err)
	reloaded, err := loadRound(f.db, round.ReviewRoundID)
	require.NoError(t, err)
	assert.Nil(t, reloaded.DateSettled, "one reviewer is still active")

	_, err = f.wf.Assignments.Cancel(ctx, as(editorID), b.ReviewAssignmentID)
	require.NoError(t, err)
	reloaded, err = loadRound(f.db, round.ReviewRoundID)
	require.NoError(t, err)
	assert.NotNil(t, reloaded.DateSettled)
	assert.Equal(t, models.RoundPendingReviewers, reloaded.Status, "settling never advances the round")
}
