package models

import "time"

type ReviewAssignmentStatus string

const (
	AssignmentAwaitingResponse ReviewAssignmentStatus = "awaiting_response"
	AssignmentAccepted         ReviewAssignmentStatus = "accepted"
	AssignmentDeclined         ReviewAssignmentStatus = "declined"
	AssignmentCompleted        ReviewAssignmentStatus = "completed"
	AssignmentCancelled        ReviewAssignmentStatus = "cancelled"
)

// IsActive reports whether the reviewer still owes a response or a review.
func (s ReviewAssignmentStatus) IsActive() bool {
	return s == AssignmentAwaitingResponse || s == AssignmentAccepted
}

// Recommendation is the reviewer's advice to the editor.
type Recommendation string

const (
	RecommendAccept            Recommendation = "accept"
	RecommendPendingRevisions  Recommendation = "pending_revisions"
	RecommendResubmitHere      Recommendation = "resubmit_here"
	RecommendResubmitElsewhere Recommendation = "resubmit_elsewhere"
	RecommendDecline           Recommendation = "decline"
	RecommendSeeComments       Recommendation = "see_comments"
)

func (r Recommendation) Valid() bool {
	switch r {
	case RecommendAccept, RecommendPendingRevisions, RecommendResubmitHere,
		RecommendResubmitElsewhere, RecommendDecline, RecommendSeeComments:
		return true
	}
	return false
}

// ReviewAssignment links a reviewer to a review round.
//
// ActiveReviewerID mirrors ReviewerID while the assignment is active and is NULL once it
// settles; the unique index on (review_round_id, active_reviewer_id) rejects a second
// active assignment for the same reviewer.
type ReviewAssignment struct {
	ReviewAssignmentID int                    `gorm:"primaryKey;column:review_assignment_id" json:"review_assignment_id"`
	SubmissionID       int                    `gorm:"column:submission_id;index;not null" json:"submission_id"`
	ReviewRoundID      int                    `gorm:"column:review_round_id;not null;uniqueIndex:ux_review_assignments_active,priority:1" json:"review_round_id"`
	ReviewerID         int                    `gorm:"column:reviewer_id;not null" json:"reviewer_id"`
	ActiveReviewerID   *int                   `gorm:"column:active_reviewer_id;uniqueIndex:ux_review_assignments_active,priority:2" json:"-"`
	Status             ReviewAssignmentStatus `gorm:"column:status;size:32;not null" json:"status"`
	Recommendation     *Recommendation        `gorm:"column:recommendation;size:32" json:"recommendation,omitempty"`
	Comments           *string                `gorm:"column:comments;type:text" json:"comments,omitempty"`
	DateAssigned       time.Time              `gorm:"column:date_assigned" json:"date_assigned"`
	DateDue            *time.Time             `gorm:"column:date_due" json:"date_due,omitempty"`
	DateResponded      *time.Time             `gorm:"column:date_responded" json:"date_responded,omitempty"`
	DateCompleted      *time.Time             `gorm:"column:date_completed" json:"date_completed,omitempty"`
	UpdatedAt          time.Time              `gorm:"column:updated_at" json:"updated_at"`
}

func (ReviewAssignment) TableName() string {
	return "review_assignments"
}
