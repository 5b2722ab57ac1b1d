package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"journal-workflow-api/models"
)

func TestParseSubmissionStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    models.SubmissionStatus
		wantErr bool
	}{
		{"submitted", models.StatusSubmitted, false},
		{"Under Review", models.StatusUnderReview, false},
		{"in-review", models.StatusUnderReview, false},
		{"REJECTED", models.StatusDeclined, false},
		{" needs revision ", models.StatusRevisionRequired, false},
		{"1", "", true},
		{"", "", true},
		{"pending", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSubmissionStatus(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseStage(t *testing.T) {
	stage, err := ParseStage("External-Review")
	require.NoError(t, err)
	assert.Equal(t, models.StageExternalReview, stage)

	stage, err = ParseStage("editing")
	require.NoError(t, err)
	assert.Equal(t, models.StageCopyediting, stage)

	_, err = ParseStage("3")
	assert.ErrorContains(t, err, "numeric stage codes")
}

func TestParseExactEnums(t *testing.T) {
	d, err := ParseDecision("New Round")
	require.NoError(t, err)
	assert.Equal(t, models.DecisionNewRound, d)
	_, err = ParseDecision("reject")
	assert.Error(t, err)

	r, err := ParseRecommendation("see-comments")
	require.NoError(t, err)
	assert.Equal(t, models.RecommendSeeComments, r)

	v, err := ParseFileVersionType("Proofread")
	require.NoError(t, err)
	assert.Equal(t, models.VersionProofread, v)
	_, err = ParseFileVersionType("2")
	assert.Error(t, err)

	s, err := ParseRoundStatus("pending_reviews")
	require.NoError(t, err)
	assert.Equal(t, models.RoundPendingReviews, s)
	_, err = ParseRoundStatus("open")
	assert.Error(t, err)
}

func TestOptionalFilters(t *testing.T) {
	stage, err := OptionalStage("")
	require.NoError(t, err)
	assert.Nil(t, stage)

	status, err := OptionalSubmissionStatus("published")
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, models.StatusPublished, *status)

	_, err = OptionalSubmissionStatus("7")
	assert.Error(t, err)
}
