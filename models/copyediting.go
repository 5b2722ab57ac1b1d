package models

import "time"

type CopyeditingStatus string

const (
	CopyeditingPending    CopyeditingStatus = "pending"
	CopyeditingInProgress CopyeditingStatus = "in_progress"
	CopyeditingComplete   CopyeditingStatus = "complete"
)

// CopyeditingAssignment is the single active row per (submission, copyeditor).
type CopyeditingAssignment struct {
	CopyeditingAssignmentID int               `gorm:"primaryKey;column:copyediting_assignment_id" json:"copyediting_assignment_id"`
	SubmissionID            int               `gorm:"column:submission_id;not null;uniqueIndex:ux_copyediting_assignments,priority:1" json:"submission_id"`
	CopyeditorID            int               `gorm:"column:copyeditor_id;not null;uniqueIndex:ux_copyediting_assignments,priority:2" json:"copyeditor_id"`
	Status                  CopyeditingStatus `gorm:"column:status;size:32;not null" json:"status"`
	DateAssigned            time.Time         `gorm:"column:date_assigned" json:"date_assigned"`
	DateCompleted           *time.Time        `gorm:"column:date_completed" json:"date_completed,omitempty"`
	UpdatedAt               time.Time         `gorm:"column:updated_at" json:"updated_at"`
}

func (CopyeditingAssignment) TableName() string {
	return "copyediting_assignments"
}

type FileVersionType string

const (
	VersionOriginal   FileVersionType = "original"
	VersionCopyedited FileVersionType = "copyedited"
	VersionProofread  FileVersionType = "proofread"
)

func (t FileVersionType) Valid() bool {
	return t == VersionOriginal || t == VersionCopyedited || t == VersionProofread
}

// FileVersion numbers are global per submission, whatever the version type.
type FileVersion struct {
	FileVersionID int             `gorm:"primaryKey;column:file_version_id" json:"file_version_id"`
	SubmissionID  int             `gorm:"column:submission_id;not null;uniqueIndex:ux_file_versions_number,priority:1" json:"submission_id"`
	VersionNumber int             `gorm:"column:version_number;not null;uniqueIndex:ux_file_versions_number,priority:2" json:"version_number"`
	FileID        string          `gorm:"column:file_id;size:255;not null" json:"file_id"`
	VersionType   FileVersionType `gorm:"column:version_type;size:32;not null" json:"version_type"`
	UploadedBy    int             `gorm:"column:uploaded_by" json:"uploaded_by"`
	UploadedAt    time.Time       `gorm:"column:uploaded_at" json:"uploaded_at"`
}

func (FileVersion) TableName() string {
	return "file_versions"
}

// AuthorApproval is upserted on (submission_id, author_id).
type AuthorApproval struct {
	AuthorApprovalID int       `gorm:"primaryKey;column:author_approval_id" json:"author_approval_id"`
	SubmissionID     int       `gorm:"column:submission_id;not null;uniqueIndex:ux_author_approvals,priority:1" json:"submission_id"`
	AuthorID         int       `gorm:"column:author_id;not null;uniqueIndex:ux_author_approvals,priority:2" json:"author_id"`
	Approved         bool      `gorm:"column:approved" json:"approved"`
	Comments         *string   `gorm:"column:comments;type:text" json:"comments,omitempty"`
	DateResponded    time.Time `gorm:"column:date_responded" json:"date_responded"`
}

func (AuthorApproval) TableName() string {
	return "author_approvals"
}
