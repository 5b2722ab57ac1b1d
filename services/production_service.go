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

	"journal-workflow-api/models"
)

// ProductionService covers copyediting, file versions, scheduling and issue release.
type ProductionService struct {
	base
}

func NewProductionService(deps Deps) *ProductionService {
	return &ProductionService{base: newBase(deps)}
}

// AssignCopyeditor adds a copyeditor to a submission in the copyediting stage.
func (s *ProductionService) AssignCopyeditor(ctx context.Context, actor Actor, submissionID, copyeditorID int) (*models.CopyeditingAssignment, error) {
	if copyeditorID <= 0 {
		return nil, validation("copyeditor_id is required")
	}

	if err := s.authorizeSubmission(ctx, actor, submissionID, CapAssignCopyeditor); err != nil {
		return nil, err
	}

	var (
		sub        *models.Submission
		assignment models.CopyeditingAssignment
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		sub, err = lockSubmission(tx, submissionID)
		if err != nil {
			return err
		}
		if sub.Status.IsTerminal() {
			return ErrSubmissionTerminal
		}
		if sub.Stage != models.StageCopyediting {
			return invalidTransition("copyeditors can only be assigned in the copyediting stage")
		}

		now := s.now()
		assignment = models.CopyeditingAssignment{
			SubmissionID: sub.SubmissionID,
			CopyeditorID: copyeditorID,
			Status:       models.CopyeditingPending,
			DateAssigned: now,
			UpdatedAt:    now,
		}
		if err := tx.Create(&assignment).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateAssignment
			}
			return fmt.Errorf("create copyediting assignment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("copyeditor assigned",
		zap.Int("submission_id", submissionID),
		zap.Int("copyeditor_id", copyeditorID))
	s.events.Publish(ctx, newEvent(EventAssignmentCreated, sub.SubmissionID, sub.JournalID, actor.UserID,
		map[string]interface{}{"copyediting_assignment_id": assignment.CopyeditingAssignmentID}, copyeditorID))
	return &assignment, nil
}

// UploadVersion registers a new file version. Version numbers run across all types.
func (s *ProductionService) UploadVersion(ctx context.Context, actor Actor, submissionID int, fileID string, versionType models.FileVersionType) (*models.FileVersion, error) {
	fileID = strings.TrimSpace(fileID)
	if fileID == "" {
		return nil, validation("file_id is required")
	}
	if !versionType.Valid() {
		return nil, validation("unknown version type %q", versionType)
	}

	if err := s.authorizeSubmission(ctx, actor, submissionID, CapUploadFile); err != nil {
		return nil, err
	}

	var version models.FileVersion
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub, err := lockSubmission(tx, submissionID)
		if err != nil {
			return err
		}
		if sub.Status.IsTerminal() {
			return ErrSubmissionTerminal
		}

		var latest int
		if err := tx.Model(&models.FileVersion{}).
			Where("submission_id = ?", sub.SubmissionID).
			Select("COALESCE(MAX(version_number), 0)").
			Scan(&latest).Error; err != nil {
			return fmt.Errorf("load latest file version: %w", err)
		}
		next := latest + 1

		now := s.now()
		version = models.FileVersion{
			SubmissionID:  sub.SubmissionID,
			VersionNumber: next,
			FileID:        fileID,
			VersionType:   versionType,
			UploadedBy:    actor.UserID,
			UploadedAt:    now,
		}
		if err := tx.Create(&version).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrConcurrentUpdate
			}
			return fmt.Errorf("create file version: %w", err)
		}

		if versionType == models.VersionCopyedited {
			if err := tx.Model(&models.CopyeditingAssignment{}).
				Where("submission_id = ? AND copyeditor_id = ? AND status = ?",
					sub.SubmissionID, actor.UserID, models.CopyeditingPending).
				Updates(map[string]interface{}{
					"status":     models.CopyeditingInProgress,
					"updated_at": now,
				}).Error; err != nil {
				return fmt.Errorf("start copyediting: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("file version uploaded",
		zap.Int("submission_id", submissionID),
		zap.Int("version_number", version.VersionNumber),
		zap.String("version_type", string(versionType)))
	return &version, nil
}

// ListVersions returns the file versions of a submission in version order.
func (s *ProductionService) ListVersions(ctx context.Context, actor Actor, submissionID int) ([]models.FileVersion, error) {
	if _, err := s.visibleSubmission(ctx, actor, submissionID); err != nil {
		return nil, err
	}
	var rows []models.FileVersion
	if err := s.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Order("version_number ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list file versions: %w", err)
	}
	return rows, nil
}

// RecordAuthorApproval stores the author's verdict on the copyedited text. Approval
// completes the copyediting assignments that are in progress.
func (s *ProductionService) RecordAuthorApproval(ctx context.Context, actor Actor, submissionID int, approved bool, comments string) (*models.AuthorApproval, error) {
	if err := s.authorizeSubmission(ctx, actor, submissionID, CapApproveCopyedit); err != nil {
		return nil, err
	}

	var approval models.AuthorApproval
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub, err := lockSubmission(tx, submissionID)
		if err != nil {
			return err
		}
		if sub.Status.IsTerminal() {
			return ErrSubmissionTerminal
		}

		now := s.now()
		approval = models.AuthorApproval{
			SubmissionID:  sub.SubmissionID,
			AuthorID:      actor.UserID,
			Approved:      approved,
			Comments:      optionalString(comments),
			DateResponded: now,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "submission_id"}, {Name: "author_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"approved", "comments", "date_responded"}),
		}).Create(&approval).Error; err != nil {
			return fmt.Errorf("save author approval: %w", err)
		}

		if approved {
			if err := tx.Model(&models.CopyeditingAssignment{}).
				Where("submission_id = ? AND status = ?", sub.SubmissionID, models.CopyeditingInProgress).
				Updates(map[string]interface{}{
					"status":         models.CopyeditingComplete,
					"date_completed": now,
					"updated_at":     now,
				}).Error; err != nil {
				return fmt.Errorf("complete copyediting: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("author approval recorded",
		zap.Int("submission_id", submissionID),
		zap.Int("author_id", actor.UserID),
		zap.Bool("approved", approved))
	return &approval, nil
}

// ListCopyeditors returns the copyediting assignments of a submission.
func (s *ProductionService) ListCopyeditors(ctx context.Context, actor Actor, submissionID int) ([]models.CopyeditingAssignment, error) {
	if _, err := s.visibleSubmission(ctx, actor, submissionID); err != nil {
		return nil, err
	}
	var rows []models.CopyeditingAssignment
	if err := s.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Order("date_assigned ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list copyediting assignments: %w", err)
	}
	return rows, nil
}

type CreateIssueInput struct {
	JournalID     int
	Volume        int
	Number        string
	Year          int
	Title         string
	DateScheduled *time.Time
}

// CreateIssue adds an unpublished issue to a journal.
func (s *ProductionService) CreateIssue(ctx context.Context, actor Actor, input CreateIssueInput) (*models.Issue, error) {
	if err := s.guard.Authorize(ctx, actor, input.JournalID, CapSchedulePublication); err != nil {
		return nil, err
	}
	if input.Year <= 0 {
		return nil, validation("year is required")
	}
	issue := models.Issue{
		JournalID:     input.JournalID,
		Volume:        input.Volume,
		Number:        strings.TrimSpace(input.Number),
		Year:          input.Year,
		Title:         strings.TrimSpace(input.Title),
		DateScheduled: input.DateScheduled,
		CreatedAt:     s.now(),
	}
	if err := s.db.WithContext(ctx).Create(&issue).Error; err != nil {
		return nil, fmt.Errorf("create issue: %w", err)
	}
	return &issue, nil
}

func loadIssue(db *gorm.DB, issueID int) (*models.Issue, error) {
	var issue models.Issue
	if err := db.Where("issue_id = ?", issueID).First(&issue).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("issue")
		}
		return nil, fmt.Errorf("load issue %d: %w", issueID, err)
	}
	return &issue, nil
}

// lockIssue reads an issue under a row lock. Writers lock the issue before any of its
// submissions.
func lockIssue(tx *gorm.DB, issueID int) (*models.Issue, error) {
	return loadIssue(tx.Clauses(clause.Locking{Strength: "UPDATE"}), issueID)
}

// ListIssues returns a journal's issues, newest first.
func (s *ProductionService) ListIssues(ctx context.Context, actor Actor, journalID int, unpublishedOnly bool) ([]models.Issue, error) {
	if err := s.guard.Authorize(ctx, actor, journalID, CapParticipateDiscussion); err != nil {
		return nil, err
	}
	q := s.db.WithContext(ctx).Where("journal_id = ?", journalID)
	if unpublishedOnly {
		q = q.Where("published = ?", false)
	}
	var rows []models.Issue
	if err := q.Order("year DESC, volume DESC, issue_id DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	return rows, nil
}

type ScheduleInput struct {
	SubmissionID    int
	IssueID         int
	PublicationDate time.Time
	ArticleOrder    int
}

// ScheduleForIssue places an accepted submission in an issue. Calling it again with the
// same arguments leaves a single schedule row.
func (s *ProductionService) ScheduleForIssue(ctx context.Context, actor Actor, input ScheduleInput) (*models.PublicationSchedule, error) {
	if input.PublicationDate.IsZero() {
		return nil, validation("publication_date is required")
	}

	if err := s.authorizeSubmission(ctx, actor, input.SubmissionID, CapSchedulePublication); err != nil {
		return nil, err
	}

	var (
		sub      *models.Submission
		schedule models.PublicationSchedule
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		issue, err := lockIssue(tx, input.IssueID)
		if err != nil {
			return err
		}
		sub, err = lockSubmission(tx, input.SubmissionID)
		if err != nil {
			return err
		}
		if sub.Status.IsTerminal() {
			return ErrSubmissionTerminal
		}
		if sub.Stage != models.StageCopyediting && sub.Stage != models.StageProduction {
			return invalidTransition("submission in stage %s cannot be scheduled", sub.Stage)
		}
		if sub.Status != models.StatusAccepted && sub.Status != models.StatusScheduled {
			return invalidTransition("submission with status %s cannot be scheduled", sub.Status)
		}

		if issue.JournalID != sub.JournalID {
			return notFound("issue")
		}
		if issue.Published {
			return invalidTransition("issue %d is already published", issue.IssueID)
		}

		now := s.now()
		schedule = models.PublicationSchedule{
			SubmissionID:    sub.SubmissionID,
			IssueID:         issue.IssueID,
			ArticleOrder:    input.ArticleOrder,
			PublicationDate: input.PublicationDate.UTC(),
			UpdatedAt:       now,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "submission_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"issue_id", "article_order", "publication_date", "updated_at"}),
		}).Create(&schedule).Error; err != nil {
			return fmt.Errorf("save publication schedule: %w", err)
		}

		if sub.Stage == models.StageProduction && sub.Status == models.StatusScheduled {
			return nil
		}
		return transitionSubmission(tx, sub, models.StageProduction, models.StatusScheduled, actor.UserID,
			"scheduled", fmt.Sprintf("issue %d", issue.IssueID), now)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("submission scheduled",
		zap.Int("submission_id", sub.SubmissionID),
		zap.Int("issue_id", input.IssueID))
	s.events.Publish(ctx, newEvent(EventSubmissionScheduled, sub.SubmissionID, sub.JournalID, actor.UserID,
		map[string]interface{}{
			"issue_id":         input.IssueID,
			"publication_date": schedule.PublicationDate.Format("2006-01-02"),
		}, sub.SubmitterID))
	return &schedule, nil
}

// ReleaseResult summarises one issue release.
type ReleaseResult struct {
	IssueID   int   `json:"issue_id"`
	Published []int `json:"published"`
	Skipped   []int `json:"skipped,omitempty"`
}

// ReleaseIssue publishes every scheduled submission of the issue and marks it published.
// Submissions already published are skipped, so the call can be repeated.
func (s *ProductionService) ReleaseIssue(ctx context.Context, actor Actor, issueID int) (*ReleaseResult, error) {
	issue, err := loadIssue(s.db.WithContext(ctx), issueID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.Authorize(ctx, actor, issue.JournalID, CapManageJournal); err != nil {
		return nil, err
	}

	result := &ReleaseResult{IssueID: issueID}
	var published []*models.Submission
	// The issue lock keeps ScheduleForIssue out until the release commits, so no article
	// can join an issue that is being marked published.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockIssue(tx, issueID); err != nil {
			return err
		}

		var schedules []models.PublicationSchedule
		if err := tx.Where("issue_id = ?", issueID).
			Order("article_order ASC, submission_id ASC").
			Find(&schedules).Error; err != nil {
			return fmt.Errorf("load issue schedule: %w", err)
		}

		now := s.now()
		for _, sc := range schedules {
			sub, err := publishScheduled(tx, actor, sc, now)
			if err != nil {
				return err
			}
			if sub == nil {
				result.Skipped = append(result.Skipped, sc.SubmissionID)
				continue
			}
			result.Published = append(result.Published, sub.SubmissionID)
			published = append(published, sub)
		}

		if err := tx.Model(&models.Issue{}).
			Where("issue_id = ? AND published = ?", issueID, false).
			Updates(map[string]interface{}{"published": true, "date_published": now}).Error; err != nil {
			return fmt.Errorf("mark issue published: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("issue released",
		zap.Int("issue_id", issueID),
		zap.Int("published", len(result.Published)),
		zap.Int("skipped", len(result.Skipped)))
	for _, sub := range published {
		s.events.Publish(ctx, newEvent(EventSubmissionPublished, sub.SubmissionID, sub.JournalID, actor.UserID,
			map[string]interface{}{"issue_id": issueID}, sub.SubmitterID))
	}
	return result, nil
}

// publishScheduled publishes a single scheduled submission. It returns nil when the row
// is not in the scheduled state.
func publishScheduled(tx *gorm.DB, actor Actor, sc models.PublicationSchedule, now time.Time) (*models.Submission, error) {
	sub, err := lockSubmission(tx, sc.SubmissionID)
	if err != nil {
		return nil, err
	}
	if sub.Stage != models.StageProduction || sub.Status != models.StatusScheduled {
		return nil, nil
	}
	if err := transitionSubmission(tx, sub, models.StageProduction, models.StatusPublished, actor.UserID,
		"published", fmt.Sprintf("issue %d", sc.IssueID), now); err != nil {
		return nil, err
	}
	return sub, nil
}

// ReleaseDueIssues releases every unpublished issue whose scheduled date has passed.
// Failures are logged per issue and the first one is returned after all were tried.
func (s *ProductionService) ReleaseDueIssues(ctx context.Context, now time.Time) ([]ReleaseResult, error) {
	var issues []models.Issue
	if err := s.db.WithContext(ctx).
		Where("published = ? AND date_scheduled IS NOT NULL AND date_scheduled <= ?", false, now.UTC()).
		Order("date_scheduled ASC, issue_id ASC").
		Find(&issues).Error; err != nil {
		return nil, fmt.Errorf("load due issues: %w", err)
	}

	var (
		results  []ReleaseResult
		firstErr error
	)
	for _, issue := range issues {
		res, err := s.ReleaseIssue(ctx, SystemActor(), issue.IssueID)
		if err != nil {
			s.logger.Error("release issue failed", zap.Int("issue_id", issue.IssueID), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		results = append(results, *res)
	}
	return results, firstErr
}
