package models

import "time"

// SubmissionStatusHistory tracks every stage/status transition of a submission.
type SubmissionStatusHistory struct {
	HistoryID    int              `gorm:"primaryKey;column:history_id" json:"history_id"`
	SubmissionID int              `gorm:"column:submission_id;index" json:"submission_id"`
	OldStage     Stage            `gorm:"column:old_stage;size:32" json:"old_stage"`
	NewStage     Stage            `gorm:"column:new_stage;size:32" json:"new_stage"`
	OldStatus    SubmissionStatus `gorm:"column:old_status;size:32" json:"old_status"`
	NewStatus    SubmissionStatus `gorm:"column:new_status;size:32" json:"new_status"`
	ChangedBy    int              `gorm:"column:changed_by" json:"changed_by"`
	Reason       *string          `gorm:"column:reason" json:"reason"`
	Notes        *string          `gorm:"column:notes" json:"notes"`
	CreatedAt    time.Time        `gorm:"column:created_at" json:"created_at"`
}

// TableName specifies the table for SubmissionStatusHistory.
func (SubmissionStatusHistory) TableName() string {
	return "submission_status_history"
}
