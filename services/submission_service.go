package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"journal-workflow-api/config"
	"journal-workflow-api/models"
)

// Deps are the collaborators shared by every workflow service.
type Deps struct {
	DB     *gorm.DB
	Guard  *Guard
	Events *Dispatcher
	Logger *zap.Logger
	Clock  func() time.Time
}

type base struct {
	db     *gorm.DB
	guard  *Guard
	events *Dispatcher
	logger *zap.Logger
	clock  func() time.Time
}

func newBase(deps Deps) base {
	b := base{
		db:     deps.DB,
		guard:  deps.Guard,
		events: deps.Events,
		logger: deps.Logger,
		clock:  deps.Clock,
	}
	if b.db == nil {
		b.db = config.DB
	}
	if b.guard == nil {
		b.guard = NewGuard(NewGormRoleSource(b.db))
	}
	if b.logger == nil {
		b.logger = zap.NewNop()
	}
	if b.clock == nil {
		b.clock = time.Now
	}
	return b
}

func (b *base) now() time.Time {
	return b.clock().UTC()
}

// visibleSubmission loads a submission for reading. The submitter always sees it; anyone
// else needs a role in the journal.
func (b *base) visibleSubmission(ctx context.Context, actor Actor, submissionID int) (*models.Submission, error) {
	if !actor.authenticated() {
		return nil, ErrUnauthorized
	}
	sub, err := loadSubmission(b.db.WithContext(ctx), submissionID)
	if err != nil {
		return nil, err
	}
	if actor.UserID == sub.SubmitterID {
		return sub, nil
	}
	if err := b.guard.Authorize(ctx, actor, sub.JournalID, CapParticipateDiscussion); err != nil {
		return nil, err
	}
	return sub, nil
}

// authorizeSubmission checks capability against an unlocked read, before any transaction
// starts. Journal and submitter never change, so the verdict holds for the locked copy.
func (b *base) authorizeSubmission(ctx context.Context, actor Actor, submissionID int, capability Capability) error {
	if !actor.authenticated() {
		return ErrUnauthorized
	}
	sub, err := loadSubmission(b.db.WithContext(ctx), submissionID)
	if err != nil {
		return err
	}
	return b.guard.AuthorizeSubmission(ctx, actor, sub, capability)
}

// loadSubmission reads a submission without locking it.
func loadSubmission(db *gorm.DB, submissionID int) (*models.Submission, error) {
	var sub models.Submission
	if err := db.Where("submission_id = ?", submissionID).First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("submission")
		}
		return nil, fmt.Errorf("load submission %d: %w", submissionID, err)
	}
	return &sub, nil
}

// lockSubmission loads a submission inside tx holding a row lock until commit. Every
// mutation of a submission or its rounds, assignments and files starts here, which
// serialises writers per submission.
func lockSubmission(tx *gorm.DB, submissionID int) (*models.Submission, error) {
	return loadSubmission(tx.Clauses(clause.Locking{Strength: "UPDATE"}), submissionID)
}

// transitionSubmission is the only write path for stage and status. It compares the
// stage, status and version read under lock and bumps the version, so a writer working
// from a stale copy fails instead of overwriting. A history row is written alongside.
func transitionSubmission(tx *gorm.DB, sub *models.Submission, stage models.Stage, status models.SubmissionStatus, actorID int, reason, note string, now time.Time) error {
	if sub.Status.IsTerminal() {
		return ErrSubmissionTerminal
	}

	updates := map[string]interface{}{
		"stage":                stage,
		"status":               status,
		"version":              gorm.Expr("version + 1"),
		"date_status_modified": now,
		"updated_at":           now,
	}
	if status == models.StatusPublished {
		updates["date_published"] = now
	}

	res := tx.Model(&models.Submission{}).
		Where("submission_id = ? AND stage = ? AND status = ? AND version = ?",
			sub.SubmissionID, sub.Stage, sub.Status, sub.Version).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update submission %d: %w", sub.SubmissionID, res.Error)
	}
	if res.RowsAffected == 0 {
		current, err := loadSubmission(tx, sub.SubmissionID)
		if err != nil {
			return err
		}
		if current.Status.IsTerminal() {
			return ErrSubmissionTerminal
		}
		return ErrConcurrentUpdate
	}

	history := models.SubmissionStatusHistory{
		SubmissionID: sub.SubmissionID,
		OldStage:     sub.Stage,
		NewStage:     stage,
		OldStatus:    sub.Status,
		NewStatus:    status,
		ChangedBy:    actorID,
		Reason:       optionalString(reason),
		Notes:        optionalString(note),
		CreatedAt:    now,
	}
	if err := tx.Create(&history).Error; err != nil {
		return fmt.Errorf("log status history: %w", err)
	}

	sub.Stage = stage
	sub.Status = status
	sub.Version++
	sub.DateStatusModified = now
	sub.UpdatedAt = now
	if status == models.StatusPublished {
		sub.DatePublished = &now
	}
	return nil
}

func optionalString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

// SubmissionService handles manuscript intake and reads.
type SubmissionService struct {
	base
}

func NewSubmissionService(deps Deps) *SubmissionService {
	return &SubmissionService{base: newBase(deps)}
}

type CreateSubmissionInput struct {
	JournalID int
	Title     string
}

// Create records a new manuscript in the submission stage.
func (s *SubmissionService) Create(ctx context.Context, actor Actor, input CreateSubmissionInput) (*models.Submission, error) {
	if !actor.authenticated() {
		return nil, ErrUnauthorized
	}
	if input.JournalID <= 0 {
		return nil, validation("journal_id is required")
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, validation("title is required")
	}

	now := s.now()
	sub := models.Submission{
		JournalID:          input.JournalID,
		SubmitterID:        actor.UserID,
		Title:              title,
		Status:             models.StatusSubmitted,
		Stage:              models.StageSubmission,
		DateSubmitted:      now,
		DateStatusModified: now,
	}
	if err := s.db.WithContext(ctx).Create(&sub).Error; err != nil {
		s.logger.Error("create submission failed", zap.Int("journal_id", input.JournalID), zap.Error(err))
		return nil, fmt.Errorf("create submission: %w", err)
	}
	return &sub, nil
}

// Get returns a submission visible to the actor.
func (s *SubmissionService) Get(ctx context.Context, actor Actor, submissionID int) (*models.Submission, error) {
	return s.visibleSubmission(ctx, actor, submissionID)
}

type SubmissionFilter struct {
	Status *models.SubmissionStatus
	Stage  *models.Stage
	Limit  int
	Offset int
}

// List returns a journal's non-archived submissions for its editors.
func (s *SubmissionService) List(ctx context.Context, actor Actor, journalID int, filter SubmissionFilter) ([]models.Submission, int64, error) {
	if err := s.guard.Authorize(ctx, actor, journalID, CapMakeEditorialDecision); err != nil {
		return nil, 0, err
	}
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	q := s.db.WithContext(ctx).Model(&models.Submission{}).
		Where("journal_id = ? AND archived_at IS NULL", journalID)
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	if filter.Stage != nil {
		q = q.Where("stage = ?", *filter.Stage)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count submissions: %w", err)
	}

	var subs []models.Submission
	if err := q.Order("date_submitted DESC, submission_id DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&subs).Error; err != nil {
		return nil, 0, fmt.Errorf("list submissions: %w", err)
	}
	return subs, total, nil
}

// Archive hides a submission from listings. Submissions are never deleted.
func (s *SubmissionService) Archive(ctx context.Context, actor Actor, submissionID int) (*models.Submission, error) {
	if err := s.authorizeSubmission(ctx, actor, submissionID, CapManageJournal); err != nil {
		return nil, err
	}
	var sub *models.Submission
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		sub, err = lockSubmission(tx, submissionID)
		if err != nil {
			return err
		}
		if sub.ArchivedAt != nil {
			return nil
		}
		now := s.now()
		if err := tx.Model(&models.Submission{}).
			Where("submission_id = ?", sub.SubmissionID).
			Updates(map[string]interface{}{"archived_at": now, "updated_at": now}).Error; err != nil {
			return fmt.Errorf("archive submission: %w", err)
		}
		sub.ArchivedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// History returns the submission's transitions, oldest first.
func (s *SubmissionService) History(ctx context.Context, actor Actor, submissionID int) ([]models.SubmissionStatusHistory, error) {
	if _, err := s.Get(ctx, actor, submissionID); err != nil {
		return nil, err
	}
	var rows []models.SubmissionStatusHistory
	if err := s.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Order("created_at ASC, history_id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load status history: %w", err)
	}
	return rows, nil
}
