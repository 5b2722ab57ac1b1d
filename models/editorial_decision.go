package models

import "time"

type Decision string

const (
	DecisionSendToExternalReview Decision = "send_to_external_review"
	DecisionAccept               Decision = "accept"
	DecisionDecline              Decision = "decline"
	DecisionRequestRevisions     Decision = "request_revisions"
	DecisionNewRound             Decision = "new_round"
)

func (d Decision) Valid() bool {
	switch d {
	case DecisionSendToExternalReview, DecisionAccept, DecisionDecline,
		DecisionRequestRevisions, DecisionNewRound:
		return true
	}
	return false
}

// EditorialDecision is an append-only audit entry. Rows are never updated or deleted.
type EditorialDecision struct {
	EditorialDecisionID int       `gorm:"primaryKey;column:editorial_decision_id" json:"editorial_decision_id"`
	SubmissionID        int       `gorm:"column:submission_id;index;not null" json:"submission_id"`
	Stage               Stage     `gorm:"column:stage;size:32;not null" json:"stage"`
	RoundNumber         int       `gorm:"column:round_number" json:"round_number"`
	EditorID            int       `gorm:"column:editor_id;not null" json:"editor_id"`
	Decision            Decision  `gorm:"column:decision;size:40;not null" json:"decision"`
	Comments            *string   `gorm:"column:comments;type:text" json:"comments,omitempty"`
	DateDecided         time.Time `gorm:"column:date_decided" json:"date_decided"`
}

func (EditorialDecision) TableName() string {
	return "editorial_decisions"
}
