package services

// Workflow bundles the editorial services around one set of dependencies.
type Workflow struct {
	Guard        *Guard
	Submissions  *SubmissionService
	Rounds       *ReviewRoundService
	Assignments  *ReviewAssignmentService
	Decisions    *DecisionService
	Production   *ProductionService
	Discussions  *DiscussionService
	Notification *NotificationService
}

func NewWorkflow(deps Deps) *Workflow {
	b := newBase(deps)
	deps = Deps{DB: b.db, Guard: b.guard, Events: b.events, Logger: b.logger, Clock: b.clock}
	return &Workflow{
		Guard:        b.guard,
		Submissions:  NewSubmissionService(deps),
		Rounds:       NewReviewRoundService(deps),
		Assignments:  NewReviewAssignmentService(deps),
		Decisions:    NewDecisionService(deps),
		Production:   NewProductionService(deps),
		Discussions:  NewDiscussionService(deps),
		Notification: NewNotificationService(b.db),
	}
}
