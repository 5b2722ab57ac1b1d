package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventType names a workflow event published after a committed mutation.
type EventType string

const (
	EventDecisionRecorded    EventType = "decisionRecorded"
	EventAssignmentCreated   EventType = "assignmentCreated"
	EventRoundOpened         EventType = "roundOpened"
	EventReviewSubmitted     EventType = "reviewSubmitted"
	EventSubmissionScheduled EventType = "submissionScheduled"
	EventSubmissionPublished EventType = "submissionPublished"
	EventQueryNoteAdded      EventType = "queryNoteAdded"
)

// Event describes something that happened to a submission.
type Event struct {
	ID           string                 `json:"id"`
	Type         EventType              `json:"type"`
	SubmissionID int                    `json:"submission_id"`
	JournalID    int                    `json:"journal_id"`
	ActorID      int                    `json:"actor_id"`
	Recipients   []int                  `json:"recipients,omitempty"`
	Data         map[string]interface{} `json:"data,omitempty"`
	OccurredAt   time.Time              `json:"occurred_at"`
}

func newEvent(eventType EventType, submissionID, journalID, actorID int, data map[string]interface{}, recipients ...int) Event {
	return Event{
		ID:           uuid.NewString(),
		Type:         eventType,
		SubmissionID: submissionID,
		JournalID:    journalID,
		ActorID:      actorID,
		Recipients:   recipients,
		Data:         data,
		OccurredAt:   time.Now().UTC(),
	}
}

// Notifier delivers an event to one external collaborator.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, event Event) error
}

// Dispatcher fans events out to notifiers in the background. Delivery failures are
// logged and never reach the caller of the workflow operation.
type Dispatcher struct {
	notifiers []Notifier
	logger    *zap.Logger
	timeout   time.Duration
	wg        sync.WaitGroup
}

func NewDispatcher(logger *zap.Logger, timeout time.Duration, notifiers ...Notifier) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{notifiers: notifiers, logger: logger, timeout: timeout}
}

// Publish schedules delivery of events. Call it only after the transaction committed.
func (d *Dispatcher) Publish(ctx context.Context, events ...Event) {
	if d == nil || len(d.notifiers) == 0 {
		return
	}
	// Delivery outlives the request that triggered it.
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithoutCancel(ctx)
	for _, event := range events {
		for _, n := range d.notifiers {
			d.wg.Add(1)
			go d.deliver(ctx, n, event)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, n Notifier, event Event) {
	defer d.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("notifier panicked",
				zap.String("notifier", n.Name()),
				zap.String("event_id", event.ID),
				zap.Any("panic", r))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := n.Notify(ctx, event); err != nil {
		d.logger.Warn("event delivery failed",
			zap.String("notifier", n.Name()),
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Int("submission_id", event.SubmissionID),
			zap.Error(err))
		return
	}
	d.logger.Debug("event delivered",
		zap.String("notifier", n.Name()),
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)))
}

// Wait blocks until every published event has been handled. Used on shutdown and in tests.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}
