package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"journal-workflow-api/models"
)

// DiscussionService manages query threads on submissions. It never changes stage or status.
type DiscussionService struct {
	base
}

func NewDiscussionService(deps Deps) *DiscussionService {
	return &DiscussionService{base: newBase(deps)}
}

type OpenQueryInput struct {
	SubmissionID   int
	Stage          models.Stage
	Subject        string
	ParticipantIDs []int
	FirstNote      string
}

func loadQuery(db *gorm.DB, queryID int) (*models.Query, error) {
	var q models.Query
	if err := db.Preload("Participants").Where("query_id = ?", queryID).First(&q).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("query")
		}
		return nil, fmt.Errorf("load query %d: %w", queryID, err)
	}
	return &q, nil
}

func participantSet(q *models.Query) mapset.Set[int] {
	set := mapset.NewThreadUnsafeSet[int]()
	for _, p := range q.Participants {
		set.Add(p.UserID)
	}
	return set
}

// OpenQuery starts a thread. The creator is always a participant.
func (s *DiscussionService) OpenQuery(ctx context.Context, actor Actor, input OpenQueryInput) (*models.Query, error) {
	subject := strings.TrimSpace(input.Subject)
	if subject == "" {
		return nil, validation("subject is required")
	}
	if !input.Stage.Valid() {
		return nil, validation("unknown stage %q", input.Stage)
	}

	sub, err := loadSubmission(s.db.WithContext(ctx), input.SubmissionID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.AuthorizeSubmission(ctx, actor, sub, CapParticipateDiscussion); err != nil {
		return nil, err
	}

	members := mapset.NewThreadUnsafeSet(actor.UserID)
	for _, id := range input.ParticipantIDs {
		if id > 0 {
			members.Add(id)
		}
	}
	ids := members.ToSlice()
	slices.Sort(ids)

	now := s.now()
	query := models.Query{
		SubmissionID: sub.SubmissionID,
		Stage:        input.Stage,
		Subject:      subject,
		CreatedBy:    actor.UserID,
		CreatedAt:    now,
	}
	for _, id := range ids {
		query.Participants = append(query.Participants, models.QueryParticipant{UserID: id})
	}
	if content := strings.TrimSpace(input.FirstNote); content != "" {
		query.Notes = []models.QueryNote{{AuthorID: actor.UserID, Content: content, CreatedAt: now}}
	}
	// Create saves participants and the first note in the same implicit transaction.
	if err := s.db.WithContext(ctx).Create(&query).Error; err != nil {
		return nil, fmt.Errorf("create query: %w", err)
	}

	s.logger.Info("query opened",
		zap.Int("submission_id", sub.SubmissionID),
		zap.Int("query_id", query.QueryID),
		zap.Int("participants", len(query.Participants)))
	if len(query.Notes) > 0 {
		s.events.Publish(ctx, s.noteEvent(sub, &query, actor.UserID))
	}
	return &query, nil
}

func (s *DiscussionService) noteEvent(sub *models.Submission, q *models.Query, authorID int) Event {
	var recipients []int
	for _, p := range q.Participants {
		if p.UserID != authorID {
			recipients = append(recipients, p.UserID)
		}
	}
	return newEvent(EventQueryNoteAdded, sub.SubmissionID, sub.JournalID, authorID,
		map[string]interface{}{"query_id": q.QueryID, "subject": q.Subject}, recipients...)
}

// AddNote appends a message to an open thread. Only participants may post.
func (s *DiscussionService) AddNote(ctx context.Context, actor Actor, queryID int, content string) (*models.QueryNote, error) {
	if !actor.authenticated() {
		return nil, ErrUnauthorized
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, validation("content is required")
	}

	q, err := loadQuery(s.db.WithContext(ctx), queryID)
	if err != nil {
		return nil, err
	}
	if !participantSet(q).Contains(actor.UserID) {
		return nil, ErrCapabilityDenied
	}
	if q.Closed {
		return nil, invalidTransition("query %d is closed", q.QueryID)
	}
	sub, err := loadSubmission(s.db.WithContext(ctx), q.SubmissionID)
	if err != nil {
		return nil, err
	}

	note := models.QueryNote{
		QueryID:   q.QueryID,
		AuthorID:  actor.UserID,
		Content:   content,
		CreatedAt: s.now(),
	}
	res := s.db.WithContext(ctx).Create(&note)
	if res.Error != nil {
		return nil, fmt.Errorf("add query note: %w", res.Error)
	}

	s.events.Publish(ctx, s.noteEvent(sub, q, actor.UserID))
	return &note, nil
}

// CloseQuery marks a thread closed. Editors only.
func (s *DiscussionService) CloseQuery(ctx context.Context, actor Actor, queryID int) (*models.Query, error) {
	q, err := loadQuery(s.db.WithContext(ctx), queryID)
	if err != nil {
		return nil, err
	}
	sub, err := loadSubmission(s.db.WithContext(ctx), q.SubmissionID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.Authorize(ctx, actor, sub.JournalID, CapMakeEditorialDecision); err != nil {
		return nil, err
	}
	if q.Closed {
		return q, nil
	}

	now := s.now()
	if err := s.db.WithContext(ctx).Model(&models.Query{}).
		Where("query_id = ?", q.QueryID).
		Updates(map[string]interface{}{
			"closed":      true,
			"closed_by":   actor.UserID,
			"date_closed": now,
		}).Error; err != nil {
		return nil, fmt.Errorf("close query: %w", err)
	}
	closedBy := actor.UserID
	q.Closed = true
	q.ClosedBy = &closedBy
	q.DateClosed = &now
	return q, nil
}

// ListQueries returns the threads of a submission with their participants and notes.
// A nil stage lists every stage.
func (s *DiscussionService) ListQueries(ctx context.Context, actor Actor, submissionID int, stage *models.Stage) ([]models.Query, error) {
	if _, err := s.visibleSubmission(ctx, actor, submissionID); err != nil {
		return nil, err
	}
	q := s.db.WithContext(ctx).
		Preload("Participants").
		Preload("Notes", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, query_note_id ASC")
		}).
		Where("submission_id = ?", submissionID)
	if stage != nil {
		q = q.Where("stage = ?", *stage)
	}
	var rows []models.Query
	if err := q.Order("created_at ASC, query_id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list queries: %w", err)
	}
	return rows, nil
}
