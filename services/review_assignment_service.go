package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"journal-workflow-api/models"
)

var activeAssignmentStatuses = []models.ReviewAssignmentStatus{
	models.AssignmentAwaitingResponse,
	models.AssignmentAccepted,
}

func countActiveAssignments(tx *gorm.DB, roundID int) (int64, error) {
	var n int64
	if err := tx.Model(&models.ReviewAssignment{}).
		Where("review_round_id = ? AND status IN ?", roundID, activeAssignmentStatuses).
		Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count active assignments: %w", err)
	}
	return n, nil
}

func loadAssignment(tx *gorm.DB, assignmentID int) (*models.ReviewAssignment, error) {
	var a models.ReviewAssignment
	if err := tx.Where("review_assignment_id = ?", assignmentID).First(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("review assignment")
		}
		return nil, fmt.Errorf("load review assignment %d: %w", assignmentID, err)
	}
	return &a, nil
}

// ReviewAssignmentService tracks reviewers within review rounds.
type ReviewAssignmentService struct {
	base
}

func NewReviewAssignmentService(deps Deps) *ReviewAssignmentService {
	return &ReviewAssignmentService{base: newBase(deps)}
}

type AssignReviewerInput struct {
	SubmissionID  int
	ReviewRoundID int
	ReviewerID    int
	DateDue       *time.Time
}

// Assign adds a reviewer to an open round of the submission.
func (s *ReviewAssignmentService) Assign(ctx context.Context, actor Actor, input AssignReviewerInput) (*models.ReviewAssignment, error) {
	if input.ReviewerID <= 0 {
		return nil, validation("reviewer_id is required")
	}

	if err := s.authorizeSubmission(ctx, actor, input.SubmissionID, CapAssignReviewer); err != nil {
		return nil, err
	}

	var (
		sub        *models.Submission
		assignment models.ReviewAssignment
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		sub, err = lockSubmission(tx, input.SubmissionID)
		if err != nil {
			return err
		}
		if sub.Status.IsTerminal() {
			return ErrSubmissionTerminal
		}
		if input.ReviewerID == sub.SubmitterID {
			return ErrConflictOfInterest
		}

		round, err := loadRound(tx, input.ReviewRoundID)
		if err != nil {
			return err
		}
		if round.SubmissionID != sub.SubmissionID {
			return notFound("review round")
		}
		if !round.IsOpen() {
			return invalidTransition("review round %d is completed", round.RoundNumber)
		}

		var existing int64
		if err := tx.Model(&models.ReviewAssignment{}).
			Where("review_round_id = ? AND reviewer_id = ? AND status IN ?",
				round.ReviewRoundID, input.ReviewerID, activeAssignmentStatuses).
			Count(&existing).Error; err != nil {
			return fmt.Errorf("check existing assignment: %w", err)
		}
		if existing > 0 {
			return ErrDuplicateAssignment
		}

		now := s.now()
		reviewerID := input.ReviewerID
		assignment = models.ReviewAssignment{
			SubmissionID:     sub.SubmissionID,
			ReviewRoundID:    round.ReviewRoundID,
			ReviewerID:       reviewerID,
			ActiveReviewerID: &reviewerID,
			Status:           models.AssignmentAwaitingResponse,
			DateAssigned:     now,
			DateDue:          input.DateDue,
			UpdatedAt:        now,
		}
		if err := tx.Create(&assignment).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateAssignment
			}
			return fmt.Errorf("create review assignment: %w", err)
		}

		if err := tx.Model(&models.ReviewRound{}).
			Where("review_round_id = ?", round.ReviewRoundID).
			Update("date_settled", nil).Error; err != nil {
			return fmt.Errorf("reset round settlement: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("reviewer assigned",
		zap.Int("submission_id", sub.SubmissionID),
		zap.Int("review_round_id", assignment.ReviewRoundID),
		zap.Int("reviewer_id", assignment.ReviewerID))

	data := map[string]interface{}{"review_assignment_id": assignment.ReviewAssignmentID}
	if assignment.DateDue != nil {
		data["date_due"] = assignment.DateDue.Format("2006-01-02")
	}
	s.events.Publish(ctx, newEvent(EventAssignmentCreated, sub.SubmissionID, sub.JournalID, actor.UserID, data, assignment.ReviewerID))
	return &assignment, nil
}

// settle moves an active assignment to a final status inside tx and stamps the round
// when nothing active is left in it.
func settle(tx *gorm.DB, a *models.ReviewAssignment, status models.ReviewAssignmentStatus, extra map[string]interface{}, now time.Time) error {
	updates := map[string]interface{}{
		"status":             status,
		"active_reviewer_id": nil,
		"updated_at":         now,
	}
	for k, v := range extra {
		updates[k] = v
	}
	res := tx.Model(&models.ReviewAssignment{}).
		Where("review_assignment_id = ? AND status = ?", a.ReviewAssignmentID, a.Status).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update review assignment %d: %w", a.ReviewAssignmentID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConcurrentUpdate
	}
	a.Status = status
	a.ActiveReviewerID = nil
	a.UpdatedAt = now
	return noteRoundSettled(tx, a.ReviewRoundID, now)
}

// authorizeReviewer checks that actor is the assignment's reviewer and may review in
// the journal. It returns the assignment's submission id.
func (s *ReviewAssignmentService) authorizeReviewer(ctx context.Context, actor Actor, assignmentID int) (int, error) {
	if !actor.authenticated() {
		return 0, ErrUnauthorized
	}
	a, err := loadAssignment(s.db.WithContext(ctx), assignmentID)
	if err != nil {
		return 0, err
	}
	if a.ReviewerID != actor.UserID {
		return 0, ErrCapabilityDenied
	}
	if err := s.authorizeSubmission(ctx, actor, a.SubmissionID, CapSubmitReview); err != nil {
		return 0, err
	}
	return a.SubmissionID, nil
}

// lockForReviewer locks the submission and reloads the assignment inside tx.
func lockForReviewer(tx *gorm.DB, submissionID, assignmentID int) (*models.Submission, *models.ReviewAssignment, error) {
	sub, err := lockSubmission(tx, submissionID)
	if err != nil {
		return nil, nil, err
	}
	if sub.Status.IsTerminal() {
		return nil, nil, ErrSubmissionTerminal
	}
	a, err := loadAssignment(tx, assignmentID)
	if err != nil {
		return nil, nil, err
	}
	return sub, a, nil
}

// Respond records the reviewer's acceptance or refusal of a review request.
func (s *ReviewAssignmentService) Respond(ctx context.Context, actor Actor, assignmentID int, accept bool) (*models.ReviewAssignment, error) {
	submissionID, err := s.authorizeReviewer(ctx, actor, assignmentID)
	if err != nil {
		return nil, err
	}

	var assignment *models.ReviewAssignment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, a, err := lockForReviewer(tx, submissionID, assignmentID)
		if err != nil {
			return err
		}
		if a.Status != models.AssignmentAwaitingResponse {
			return invalidTransition("assignment is %s, not awaiting a response", a.Status)
		}

		now := s.now()
		if !accept {
			if err := settle(tx, a, models.AssignmentDeclined, map[string]interface{}{"date_responded": now}, now); err != nil {
				return err
			}
			a.DateResponded = &now
			assignment = a
			return nil
		}

		res := tx.Model(&models.ReviewAssignment{}).
			Where("review_assignment_id = ? AND status = ?", a.ReviewAssignmentID, a.Status).
			Updates(map[string]interface{}{
				"status":         models.AssignmentAccepted,
				"date_responded": now,
				"updated_at":     now,
			})
		if res.Error != nil {
			return fmt.Errorf("accept review assignment: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrConcurrentUpdate
		}
		a.Status = models.AssignmentAccepted
		a.DateResponded = &now
		a.UpdatedAt = now
		assignment = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("review request answered",
		zap.Int("review_assignment_id", assignmentID),
		zap.Bool("accepted", accept))
	return assignment, nil
}

type CompleteReviewInput struct {
	Recommendation models.Recommendation
	Comments       string
}

// Complete stores the reviewer's recommendation. The assignment must have been accepted.
func (s *ReviewAssignmentService) Complete(ctx context.Context, actor Actor, assignmentID int, input CompleteReviewInput) (*models.ReviewAssignment, error) {
	if !input.Recommendation.Valid() {
		return nil, validation("unknown recommendation %q", input.Recommendation)
	}

	submissionID, err := s.authorizeReviewer(ctx, actor, assignmentID)
	if err != nil {
		return nil, err
	}

	var (
		sub        *models.Submission
		assignment *models.ReviewAssignment
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var (
			a   *models.ReviewAssignment
			err error
		)
		sub, a, err = lockForReviewer(tx, submissionID, assignmentID)
		if err != nil {
			return err
		}
		if a.Status != models.AssignmentAccepted {
			return ErrNotAccepted
		}

		now := s.now()
		comments := optionalString(input.Comments)
		if err := settle(tx, a, models.AssignmentCompleted, map[string]interface{}{
			"recommendation": input.Recommendation,
			"comments":       comments,
			"date_completed": now,
		}, now); err != nil {
			return err
		}
		rec := input.Recommendation
		a.Recommendation = &rec
		a.Comments = comments
		a.DateCompleted = &now
		assignment = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("review completed",
		zap.Int("review_assignment_id", assignmentID),
		zap.String("recommendation", string(input.Recommendation)))
	s.events.Publish(ctx, newEvent(EventReviewSubmitted, sub.SubmissionID, sub.JournalID, actor.UserID,
		map[string]interface{}{
			"review_assignment_id": assignment.ReviewAssignmentID,
			"review_round_id":      assignment.ReviewRoundID,
		}, s.decisionMakers(ctx, sub)...))
	return assignment, nil
}

// decisionMakers returns the journal's editors to notify about a submitted review.
func (s *ReviewAssignmentService) decisionMakers(ctx context.Context, sub *models.Submission) []int {
	var ids []int
	if err := s.db.WithContext(ctx).
		Model(&models.JournalRole{}).
		Distinct("user_id").
		Where("journal_id = ? AND role IN ?", sub.JournalID, []string{RoleManager, RoleEditor, RoleSectionEditor}).
		Where("user_id <> ?", sub.SubmitterID).
		Pluck("user_id", &ids).Error; err != nil {
		s.logger.Warn("load editors for notification failed", zap.Int("submission_id", sub.SubmissionID), zap.Error(err))
		return nil
	}
	return ids
}

// Cancel withdraws an active assignment on behalf of an editor.
func (s *ReviewAssignmentService) Cancel(ctx context.Context, actor Actor, assignmentID int) (*models.ReviewAssignment, error) {
	if !actor.authenticated() {
		return nil, ErrUnauthorized
	}
	existing, err := loadAssignment(s.db.WithContext(ctx), assignmentID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeSubmission(ctx, actor, existing.SubmissionID, CapAssignReviewer); err != nil {
		return nil, err
	}

	var assignment *models.ReviewAssignment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockSubmission(tx, existing.SubmissionID); err != nil {
			return err
		}
		a, err := loadAssignment(tx, assignmentID)
		if err != nil {
			return err
		}
		if !a.Status.IsActive() {
			return invalidTransition("assignment is already %s", a.Status)
		}
		if err := settle(tx, a, models.AssignmentCancelled, nil, s.now()); err != nil {
			return err
		}
		assignment = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("review assignment cancelled", zap.Int("review_assignment_id", assignmentID))
	return assignment, nil
}

// ListForRound returns every assignment in a round. Reviewers only see their own.
func (s *ReviewAssignmentService) ListForRound(ctx context.Context, actor Actor, roundID int) ([]models.ReviewAssignment, error) {
	round, err := loadRound(s.db.WithContext(ctx), roundID)
	if err != nil {
		return nil, err
	}
	sub, err := s.visibleSubmission(ctx, actor, round.SubmissionID)
	if err != nil {
		return nil, err
	}

	q := s.db.WithContext(ctx).Where("review_round_id = ?", roundID)
	if err := s.guard.AuthorizeSubmission(ctx, actor, sub, CapAssignReviewer); err != nil {
		if !errors.Is(err, ErrForbidden) {
			return nil, err
		}
		q = q.Where("reviewer_id = ?", actor.UserID)
	}

	var rows []models.ReviewAssignment
	if err := q.Order("date_assigned ASC, review_assignment_id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list review assignments: %w", err)
	}
	return rows, nil
}

// ListForReviewer returns the actor's own assignments, newest first.
func (s *ReviewAssignmentService) ListForReviewer(ctx context.Context, actor Actor, activeOnly bool) ([]models.ReviewAssignment, error) {
	if !actor.authenticated() {
		return nil, ErrUnauthorized
	}
	q := s.db.WithContext(ctx).Where("reviewer_id = ?", actor.UserID)
	if activeOnly {
		q = q.Where("status IN ?", activeAssignmentStatuses)
	}
	var rows []models.ReviewAssignment
	if err := q.Order("date_assigned DESC, review_assignment_id DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list reviewer assignments: %w", err)
	}
	return rows, nil
}
