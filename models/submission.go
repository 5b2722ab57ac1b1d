package models

import "time"

// SubmissionStatus is the canonical status stored in submissions.status.
type SubmissionStatus string

const (
	StatusSubmitted        SubmissionStatus = "submitted"
	StatusUnderReview      SubmissionStatus = "under_review"
	StatusRevisionRequired SubmissionStatus = "revision_required"
	StatusAccepted         SubmissionStatus = "accepted"
	StatusDeclined         SubmissionStatus = "declined"
	StatusScheduled        SubmissionStatus = "scheduled"
	StatusPublished        SubmissionStatus = "published"
)

// SubmissionStatuses lists every status in workflow order.
var SubmissionStatuses = []SubmissionStatus{
	StatusSubmitted,
	StatusUnderReview,
	StatusRevisionRequired,
	StatusAccepted,
	StatusDeclined,
	StatusScheduled,
	StatusPublished,
}

// IsTerminal reports whether no further workflow mutation is permitted.
func (s SubmissionStatus) IsTerminal() bool {
	return s == StatusDeclined || s == StatusPublished
}

func (s SubmissionStatus) Valid() bool {
	for _, candidate := range SubmissionStatuses {
		if s == candidate {
			return true
		}
	}
	return false
}

// Stage is a macro-phase of the manuscript lifecycle.
type Stage string

const (
	StageSubmission     Stage = "submission"
	StageInternalReview Stage = "internal_review"
	StageExternalReview Stage = "external_review"
	StageCopyediting    Stage = "copyediting"
	StageProduction     Stage = "production"
)

// Stages lists every stage in workflow order.
var Stages = []Stage{
	StageSubmission,
	StageInternalReview,
	StageExternalReview,
	StageCopyediting,
	StageProduction,
}

// IsReview reports whether review rounds can be opened in the stage.
func (s Stage) IsReview() bool {
	return s == StageInternalReview || s == StageExternalReview
}

func (s Stage) Valid() bool {
	for _, candidate := range Stages {
		if s == candidate {
			return true
		}
	}
	return false
}

// Submission is a manuscript moving through the editorial workflow.
type Submission struct {
	SubmissionID       int              `gorm:"primaryKey;column:submission_id" json:"submission_id"`
	JournalID          int              `gorm:"column:journal_id;index;not null" json:"journal_id"`
	SubmitterID        int              `gorm:"column:submitter_id;not null" json:"submitter_id"`
	Title              string           `gorm:"column:title;size:500" json:"title"`
	Status             SubmissionStatus `gorm:"column:status;size:32;not null" json:"status"`
	Stage              Stage            `gorm:"column:stage;size:32;not null" json:"stage"`
	Version            int              `gorm:"column:version;not null;default:0" json:"version"`
	DateSubmitted      time.Time        `gorm:"column:date_submitted" json:"date_submitted"`
	DateStatusModified time.Time        `gorm:"column:date_status_modified" json:"date_status_modified"`
	DatePublished      *time.Time       `gorm:"column:date_published" json:"date_published,omitempty"`
	ArchivedAt         *time.Time       `gorm:"column:archived_at" json:"archived_at,omitempty"`
	CreatedAt          time.Time        `gorm:"column:created_at" json:"created_at"`
	UpdatedAt          time.Time        `gorm:"column:updated_at" json:"updated_at"`
}

func (Submission) TableName() string {
	return "submissions"
}
