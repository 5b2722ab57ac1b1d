package models

import "time"

// ReviewRoundStatus tracks one review cycle. Transitions are forward-only.
type ReviewRoundStatus string

const (
	RoundPendingReviewers ReviewRoundStatus = "pending_reviewers"
	RoundPendingReviews   ReviewRoundStatus = "pending_reviews"
	RoundCompleted        ReviewRoundStatus = "completed"
)

// Next returns the only status a round may advance to.
func (s ReviewRoundStatus) Next() (ReviewRoundStatus, bool) {
	switch s {
	case RoundPendingReviewers:
		return RoundPendingReviews, true
	case RoundPendingReviews:
		return RoundCompleted, true
	}
	return "", false
}

// ReviewRound is one cycle of reviewer assignment within a (submission, stage) pair.
//
// OpenMarker is 1 while the round is not completed and NULL afterwards, so the unique
// index on (submission_id, stage, open_marker) admits a single open round per pair.
type ReviewRound struct {
	ReviewRoundID int               `gorm:"primaryKey;column:review_round_id" json:"review_round_id"`
	SubmissionID  int               `gorm:"column:submission_id;not null;uniqueIndex:ux_review_rounds_number,priority:1;uniqueIndex:ux_review_rounds_open,priority:1" json:"submission_id"`
	Stage         Stage             `gorm:"column:stage;size:32;not null;uniqueIndex:ux_review_rounds_number,priority:2;uniqueIndex:ux_review_rounds_open,priority:2" json:"stage"`
	RoundNumber   int               `gorm:"column:round_number;not null;uniqueIndex:ux_review_rounds_number,priority:3" json:"round_number"`
	Status        ReviewRoundStatus `gorm:"column:status;size:32;not null" json:"status"`
	OpenMarker    *int              `gorm:"column:open_marker;uniqueIndex:ux_review_rounds_open,priority:3" json:"-"`
	DateSettled   *time.Time        `gorm:"column:date_settled" json:"date_settled,omitempty"`
	CreatedAt     time.Time         `gorm:"column:created_at" json:"created_at"`
	UpdatedAt     time.Time         `gorm:"column:updated_at" json:"updated_at"`
}

func (ReviewRound) TableName() string {
	return "review_rounds"
}

// IsOpen reports whether the round still blocks a new round for its stage.
func (r *ReviewRound) IsOpen() bool {
	return r.Status != RoundCompleted
}
