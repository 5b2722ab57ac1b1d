package models

import "time"

// Query is a discussion thread attached to a submission and stage.
type Query struct {
	QueryID      int        `gorm:"primaryKey;column:query_id" json:"query_id"`
	SubmissionID int        `gorm:"column:submission_id;not null;index:ix_queries_submission_stage,priority:1" json:"submission_id"`
	Stage        Stage      `gorm:"column:stage;size:32;not null;index:ix_queries_submission_stage,priority:2" json:"stage"`
	Subject      string     `gorm:"column:subject;size:255" json:"subject"`
	CreatedBy    int        `gorm:"column:created_by" json:"created_by"`
	Closed       bool       `gorm:"column:closed" json:"closed"`
	ClosedBy     *int       `gorm:"column:closed_by" json:"closed_by,omitempty"`
	DateClosed   *time.Time `gorm:"column:date_closed" json:"date_closed,omitempty"`
	CreatedAt    time.Time  `gorm:"column:created_at" json:"created_at"`

	Participants []QueryParticipant `gorm:"foreignKey:QueryID" json:"participants,omitempty"`
	Notes        []QueryNote        `gorm:"foreignKey:QueryID" json:"notes,omitempty"`
}

func (Query) TableName() string {
	return "queries"
}

type QueryParticipant struct {
	QueryID int `gorm:"primaryKey;column:query_id;autoIncrement:false" json:"query_id"`
	UserID  int `gorm:"primaryKey;column:user_id;autoIncrement:false" json:"user_id"`
}

func (QueryParticipant) TableName() string {
	return "query_participants"
}

type QueryNote struct {
	QueryNoteID int       `gorm:"primaryKey;column:query_note_id" json:"query_note_id"`
	QueryID     int       `gorm:"column:query_id;index;not null" json:"query_id"`
	AuthorID    int       `gorm:"column:author_id" json:"author_id"`
	Content     string    `gorm:"column:content;type:text" json:"content"`
	CreatedAt   time.Time `gorm:"column:created_at" json:"created_at"`
}

func (QueryNote) TableName() string {
	return "query_notes"
}
