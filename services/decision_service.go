package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"journal-workflow-api/models"
)

type decisionRule struct {
	from     []models.Stage
	newStage models.Stage // empty keeps the current stage
	status   models.SubmissionStatus
}

var reviewStages = []models.Stage{models.StageInternalReview, models.StageExternalReview}

var decisionRules = map[models.Decision]decisionRule{
	models.DecisionSendToExternalReview: {
		from:     []models.Stage{models.StageSubmission, models.StageInternalReview},
		newStage: models.StageExternalReview,
		status:   models.StatusUnderReview,
	},
	models.DecisionAccept: {
		from:     []models.Stage{models.StageSubmission, models.StageInternalReview, models.StageExternalReview},
		newStage: models.StageCopyediting,
		status:   models.StatusAccepted,
	},
	models.DecisionDecline: {
		from:   []models.Stage{models.StageSubmission, models.StageInternalReview, models.StageExternalReview},
		status: models.StatusDeclined,
	},
	models.DecisionRequestRevisions: {
		from:   reviewStages,
		status: models.StatusRevisionRequired,
	},
	models.DecisionNewRound: {
		from:   reviewStages,
		status: models.StatusUnderReview,
	},
}

func (r decisionRule) allows(stage models.Stage) bool {
	for _, s := range r.from {
		if s == stage {
			return true
		}
	}
	return false
}

// DecisionService records editorial decisions. It is the only component that moves a
// submission between stages before production.
type DecisionService struct {
	base
}

func NewDecisionService(deps Deps) *DecisionService {
	return &DecisionService{base: newBase(deps)}
}

type DecisionInput struct {
	SubmissionID int
	Stage        models.Stage
	RoundNumber  int
	Decision     models.Decision
	Comments     string
}

type DecisionResult struct {
	Decision   models.EditorialDecision `json:"decision"`
	Submission models.Submission        `json:"submission"`
	NewRound   *models.ReviewRound      `json:"new_round,omitempty"`
}

// RecordDecision validates the decision against the submission's current stage, writes
// it and applies its transition in one transaction.
func (s *DecisionService) RecordDecision(ctx context.Context, actor Actor, input DecisionInput) (*DecisionResult, error) {
	if !input.Decision.Valid() {
		return nil, validation("unknown decision %q", input.Decision)
	}
	if !input.Stage.Valid() {
		return nil, validation("unknown stage %q", input.Stage)
	}
	rule := decisionRules[input.Decision]
	if err := s.authorizeSubmission(ctx, actor, input.SubmissionID, CapMakeEditorialDecision); err != nil {
		return nil, err
	}

	var result DecisionResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub, err := lockSubmission(tx, input.SubmissionID)
		if err != nil {
			return err
		}
		if sub.Status.IsTerminal() {
			return ErrSubmissionTerminal
		}
		if sub.Stage != input.Stage {
			return invalidTransition("submission is in stage %s, not %s", sub.Stage, input.Stage)
		}
		if !rule.allows(sub.Stage) {
			return invalidTransition("decision %s is not allowed in stage %s", input.Decision, sub.Stage)
		}

		now := s.now()
		if input.Decision == models.DecisionNewRound {
			round, err := s.startNewRound(tx, sub, input.RoundNumber, now)
			if err != nil {
				return err
			}
			result.NewRound = round
		} else if err := checkDecisionRound(tx, sub, input.RoundNumber); err != nil {
			return err
		}

		decision := models.EditorialDecision{
			SubmissionID: sub.SubmissionID,
			Stage:        sub.Stage,
			RoundNumber:  input.RoundNumber,
			EditorID:     actor.UserID,
			Decision:     input.Decision,
			Comments:     optionalString(input.Comments),
			DateDecided:  now,
		}
		if err := tx.Create(&decision).Error; err != nil {
			return fmt.Errorf("record editorial decision: %w", err)
		}

		newStage := rule.newStage
		if newStage == "" {
			newStage = sub.Stage
		}
		if err := transitionSubmission(tx, sub, newStage, rule.status, actor.UserID, string(input.Decision), input.Comments, now); err != nil {
			return err
		}

		result.Decision = decision
		result.Submission = *sub
		return nil
	})
	if err != nil {
		return nil, err
	}

	sub := &result.Submission
	s.logger.Info("editorial decision recorded",
		zap.Int("submission_id", sub.SubmissionID),
		zap.String("decision", string(input.Decision)),
		zap.String("stage", string(sub.Stage)),
		zap.String("status", string(sub.Status)),
		zap.Int("editor_id", actor.UserID))

	events := []Event{newEvent(EventDecisionRecorded, sub.SubmissionID, sub.JournalID, actor.UserID,
		map[string]interface{}{
			"decision":     input.Decision,
			"stage":        sub.Stage,
			"status":       sub.Status,
			"round_number": input.RoundNumber,
		}, sub.SubmitterID)}
	if result.NewRound != nil {
		events = append(events, roundOpenedEvent(sub, result.NewRound, actor.UserID))
	}
	s.events.Publish(ctx, events...)
	return &result, nil
}

// startNewRound completes round roundNumber, which must be the latest of the stage, and
// opens the next one.
func (s *DecisionService) startNewRound(tx *gorm.DB, sub *models.Submission, roundNumber int, now time.Time) (*models.ReviewRound, error) {
	latest, err := latestRound(tx, sub.SubmissionID, sub.Stage)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, invalidTransition("no review round exists in stage %s", sub.Stage)
	}
	if latest.RoundNumber != roundNumber {
		return nil, ErrRoundConflict
	}
	if err := forceCompleteRoundTx(tx, latest, now); err != nil {
		return nil, err
	}
	return openRoundTx(tx, sub, sub.Stage, now)
}

// checkDecisionRound keeps the decision log consistent with the rounds table: a decision
// names the latest round of the current stage, or 0 when the stage has none.
func checkDecisionRound(tx *gorm.DB, sub *models.Submission, roundNumber int) error {
	latest, err := latestRound(tx, sub.SubmissionID, sub.Stage)
	if err != nil {
		return err
	}
	want := 0
	if latest != nil {
		want = latest.RoundNumber
	}
	if roundNumber != want {
		return &WorkflowError{
			Kind:    KindConflict,
			Reason:  ErrRoundConflict.Reason,
			Message: fmt.Sprintf("decision names round %d but the latest round in stage %s is %d", roundNumber, sub.Stage, want),
		}
	}
	return nil
}

// ListDecisions returns the decision log of a submission, oldest first.
func (s *DecisionService) ListDecisions(ctx context.Context, actor Actor, submissionID int) ([]models.EditorialDecision, error) {
	if _, err := s.visibleSubmission(ctx, actor, submissionID); err != nil {
		return nil, err
	}
	var rows []models.EditorialDecision
	if err := s.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Order("date_decided ASC, editorial_decision_id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list editorial decisions: %w", err)
	}
	return rows, nil
}
