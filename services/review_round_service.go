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

// ReviewRoundService opens and advances review rounds.
type ReviewRoundService struct {
	base
}

func NewReviewRoundService(deps Deps) *ReviewRoundService {
	return &ReviewRoundService{base: newBase(deps)}
}

func openMarker() *int {
	one := 1
	return &one
}

// latestRound returns the highest-numbered round of the pair, or nil when none exists.
func latestRound(tx *gorm.DB, submissionID int, stage models.Stage) (*models.ReviewRound, error) {
	var round models.ReviewRound
	err := tx.Where("submission_id = ? AND stage = ?", submissionID, stage).
		Order("round_number DESC").
		Limit(1).
		Find(&round).Error
	if err != nil {
		return nil, fmt.Errorf("load latest round: %w", err)
	}
	if round.ReviewRoundID == 0 {
		return nil, nil
	}
	return &round, nil
}

func loadRound(tx *gorm.DB, roundID int) (*models.ReviewRound, error) {
	var round models.ReviewRound
	if err := tx.Where("review_round_id = ?", roundID).First(&round).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("review round")
		}
		return nil, fmt.Errorf("load review round %d: %w", roundID, err)
	}
	return &round, nil
}

// openRoundTx creates the next round of the (submission, stage) pair. The caller holds
// the submission lock.
func openRoundTx(tx *gorm.DB, sub *models.Submission, stage models.Stage, now time.Time) (*models.ReviewRound, error) {
	if sub.Status.IsTerminal() {
		return nil, ErrSubmissionTerminal
	}
	if !stage.IsReview() {
		return nil, invalidTransition("review rounds cannot be opened in stage %s", stage)
	}
	if sub.Stage != stage {
		return nil, invalidTransition("submission is in stage %s, not %s", sub.Stage, stage)
	}

	latest, err := latestRound(tx, sub.SubmissionID, stage)
	if err != nil {
		return nil, err
	}
	next := 1
	if latest != nil {
		if latest.IsOpen() {
			return nil, ErrRoundConflict
		}
		next = latest.RoundNumber + 1
	}

	round := models.ReviewRound{
		SubmissionID: sub.SubmissionID,
		Stage:        stage,
		RoundNumber:  next,
		Status:       models.RoundPendingReviewers,
		OpenMarker:   openMarker(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := tx.Create(&round).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrRoundConflict
		}
		return nil, fmt.Errorf("create review round: %w", err)
	}
	return &round, nil
}

// setRoundStatus writes a round status; completed rounds release the open marker.
func setRoundStatus(tx *gorm.DB, round *models.ReviewRound, status models.ReviewRoundStatus, now time.Time) error {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": now,
	}
	if status == models.RoundCompleted {
		updates["open_marker"] = nil
	}
	if err := tx.Model(&models.ReviewRound{}).
		Where("review_round_id = ? AND status = ?", round.ReviewRoundID, round.Status).
		Updates(updates).Error; err != nil {
		return fmt.Errorf("update review round %d: %w", round.ReviewRoundID, err)
	}
	round.Status = status
	round.UpdatedAt = now
	if status == models.RoundCompleted {
		round.OpenMarker = nil
	}
	return nil
}

// forceCompleteRoundTx closes an open round on an editor's decision, cancelling every
// assignment that is still active.
func forceCompleteRoundTx(tx *gorm.DB, round *models.ReviewRound, now time.Time) error {
	if !round.IsOpen() {
		return nil
	}
	if err := tx.Model(&models.ReviewAssignment{}).
		Where("review_round_id = ? AND status IN ?", round.ReviewRoundID, activeAssignmentStatuses).
		Updates(map[string]interface{}{
			"status":             models.AssignmentCancelled,
			"active_reviewer_id": nil,
			"updated_at":         now,
		}).Error; err != nil {
		return fmt.Errorf("cancel outstanding assignments: %w", err)
	}
	return setRoundStatus(tx, round, models.RoundCompleted, now)
}

// noteRoundSettled records that no active assignment is left in the round. It makes
// the round eligible for completion; it does not advance it.
func noteRoundSettled(tx *gorm.DB, roundID int, now time.Time) error {
	active, err := countActiveAssignments(tx, roundID)
	if err != nil {
		return err
	}
	if active > 0 {
		return nil
	}
	if err := tx.Model(&models.ReviewRound{}).
		Where("review_round_id = ?", roundID).
		Update("date_settled", now).Error; err != nil {
		return fmt.Errorf("mark round settled: %w", err)
	}
	return nil
}

// OpenRound starts the next review round for the submission's current review stage.
func (s *ReviewRoundService) OpenRound(ctx context.Context, actor Actor, submissionID int, stage models.Stage) (*models.ReviewRound, error) {
	if err := s.authorizeSubmission(ctx, actor, submissionID, CapAssignReviewer); err != nil {
		return nil, err
	}
	var (
		round *models.ReviewRound
		sub   *models.Submission
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		sub, err = lockSubmission(tx, submissionID)
		if err != nil {
			return err
		}
		round, err = openRoundTx(tx, sub, stage, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("review round opened",
		zap.Int("submission_id", submissionID),
		zap.String("stage", string(stage)),
		zap.Int("round_number", round.RoundNumber))
	s.events.Publish(ctx, roundOpenedEvent(sub, round, actor.UserID))
	return round, nil
}

func roundOpenedEvent(sub *models.Submission, round *models.ReviewRound, actorID int) Event {
	return newEvent(EventRoundOpened, sub.SubmissionID, sub.JournalID, actorID, map[string]interface{}{
		"stage":        round.Stage,
		"round_number": round.RoundNumber,
		"review_round": round.ReviewRoundID,
	}, sub.SubmitterID)
}

// AdvanceRoundStatus moves a round one step forward:
// pending_reviewers -> pending_reviews -> completed.
func (s *ReviewRoundService) AdvanceRoundStatus(ctx context.Context, actor Actor, roundID int, newStatus models.ReviewRoundStatus) (*models.ReviewRound, error) {
	if !actor.authenticated() {
		return nil, ErrUnauthorized
	}
	existing, err := loadRound(s.db.WithContext(ctx), roundID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeSubmission(ctx, actor, existing.SubmissionID, CapAssignReviewer); err != nil {
		return nil, err
	}

	var round *models.ReviewRound
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub, err := lockSubmission(tx, existing.SubmissionID)
		if err != nil {
			return err
		}
		if sub.Status.IsTerminal() {
			return ErrSubmissionTerminal
		}

		round, err = loadRound(tx, roundID)
		if err != nil {
			return err
		}
		next, ok := round.Status.Next()
		if !ok || next != newStatus {
			return invalidTransition("review round cannot move from %s to %s", round.Status, newStatus)
		}
		if newStatus == models.RoundCompleted {
			active, err := countActiveAssignments(tx, round.ReviewRoundID)
			if err != nil {
				return err
			}
			if active > 0 {
				return ErrReviewsOutstanding
			}
		}
		return setRoundStatus(tx, round, newStatus, s.now())
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("review round advanced",
		zap.Int("review_round_id", roundID),
		zap.String("status", string(newStatus)))
	return round, nil
}

// ListRounds returns the rounds of a submission, optionally limited to one stage.
func (s *ReviewRoundService) ListRounds(ctx context.Context, actor Actor, submissionID int, stage *models.Stage) ([]models.ReviewRound, error) {
	if _, err := s.visibleSubmission(ctx, actor, submissionID); err != nil {
		return nil, err
	}
	q := s.db.WithContext(ctx).Where("submission_id = ?", submissionID)
	if stage != nil {
		q = q.Where("stage = ?", *stage)
	}
	var rounds []models.ReviewRound
	if err := q.Order("stage ASC, round_number ASC").Find(&rounds).Error; err != nil {
		return nil, fmt.Errorf("list review rounds: %w", err)
	}
	return rounds, nil
}
