package models

// All returns every table model, in dependency order, for AutoMigrate in tests and tools.
func All() []interface{} {
	return []interface{}{
		&User{},
		&JournalRole{},
		&Submission{},
		&SubmissionStatusHistory{},
		&ReviewRound{},
		&ReviewAssignment{},
		&EditorialDecision{},
		&CopyeditingAssignment{},
		&FileVersion{},
		&AuthorApproval{},
		&Issue{},
		&PublicationSchedule{},
		&Query{},
		&QueryParticipant{},
		&QueryNote{},
		&Notification{},
	}
}
