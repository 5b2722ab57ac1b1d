package models

import "time"

// Issue groups scheduled articles released together.
type Issue struct {
	IssueID       int        `gorm:"primaryKey;column:issue_id" json:"issue_id"`
	JournalID     int        `gorm:"column:journal_id;index;not null" json:"journal_id"`
	Volume        int        `gorm:"column:volume" json:"volume"`
	Number        string     `gorm:"column:number;size:40" json:"number"`
	Year          int        `gorm:"column:year" json:"year"`
	Title         string     `gorm:"column:title;size:255" json:"title"`
	DateScheduled *time.Time `gorm:"column:date_scheduled" json:"date_scheduled,omitempty"`
	Published     bool       `gorm:"column:published" json:"published"`
	DatePublished *time.Time `gorm:"column:date_published" json:"date_published,omitempty"`
	CreatedAt     time.Time  `gorm:"column:created_at" json:"created_at"`
}

func (Issue) TableName() string {
	return "issues"
}

// PublicationSchedule has one row per submission; rescheduling overwrites it.
type PublicationSchedule struct {
	PublicationScheduleID int       `gorm:"primaryKey;column:publication_schedule_id" json:"publication_schedule_id"`
	SubmissionID          int       `gorm:"column:submission_id;not null;uniqueIndex:ux_publication_schedules_submission" json:"submission_id"`
	IssueID               int       `gorm:"column:issue_id;index;not null" json:"issue_id"`
	ArticleOrder          int       `gorm:"column:article_order" json:"article_order"`
	PublicationDate       time.Time `gorm:"column:publication_date" json:"publication_date"`
	UpdatedAt             time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (PublicationSchedule) TableName() string {
	return "publication_schedules"
}
