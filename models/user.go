package models

import (
	"time"
)

type User struct {
	UserID   int        `gorm:"primaryKey;column:user_id" json:"user_id"`
	Name     string     `gorm:"column:name;size:255" json:"name"`
	Email    string     `gorm:"column:email;size:255;unique" json:"email"`
	SiteRole *string    `gorm:"column:site_role;size:32" json:"site_role,omitempty"`
	CreateAt *time.Time `gorm:"column:create_at" json:"create_at"`
	UpdateAt *time.Time `gorm:"column:update_at" json:"update_at"`
	DeleteAt *time.Time `gorm:"column:delete_at" json:"delete_at,omitempty"`
}

// JournalRole is one role membership of a user in one journal.
type JournalRole struct {
	JournalRoleID int       `gorm:"primaryKey;column:journal_role_id" json:"journal_role_id"`
	UserID        int       `gorm:"column:user_id;not null;uniqueIndex:ux_journal_roles,priority:1" json:"user_id"`
	JournalID     int       `gorm:"column:journal_id;not null;uniqueIndex:ux_journal_roles,priority:2" json:"journal_id"`
	Role          string    `gorm:"column:role;size:32;not null;uniqueIndex:ux_journal_roles,priority:3" json:"role"`
	CreateAt      time.Time `gorm:"column:create_at" json:"create_at"`
}

// TableName overrides
func (User) TableName() string {
	return "users"
}

func (JournalRole) TableName() string {
	return "journal_roles"
}
