package services

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"journal-workflow-api/config"
	"journal-workflow-api/models"
)

type templatedMessage struct {
	Title string
	Body  string
}

func describeEvent(event Event) templatedMessage {
	sub := fmt.Sprintf("submission #%d", event.SubmissionID)
	switch event.Type {
	case EventDecisionRecorded:
		return templatedMessage{
			Title: "Editorial decision recorded",
			Body:  fmt.Sprintf("An editorial decision (%v) was recorded for %s.", event.Data["decision"], sub),
		}
	case EventAssignmentCreated:
		due := "-"
		if v, ok := event.Data["date_due"]; ok && v != nil {
			due = fmt.Sprint(v)
		}
		return templatedMessage{
			Title: "Review request",
			Body:  fmt.Sprintf("You have been asked to review %s. Response due: %s.", sub, due),
		}
	case EventRoundOpened:
		return templatedMessage{
			Title: "Review round opened",
			Body:  fmt.Sprintf("Review round %v was opened for %s.", event.Data["round_number"], sub),
		}
	case EventReviewSubmitted:
		return templatedMessage{
			Title: "Review submitted",
			Body:  fmt.Sprintf("A reviewer completed their review of %s.", sub),
		}
	case EventSubmissionScheduled:
		return templatedMessage{
			Title: "Publication scheduled",
			Body:  fmt.Sprintf("Submission #%d has been scheduled for issue %v.", event.SubmissionID, event.Data["issue_id"]),
		}
	case EventSubmissionPublished:
		return templatedMessage{
			Title: "Article published",
			Body:  fmt.Sprintf("Submission #%d has been published.", event.SubmissionID),
		}
	case EventQueryNoteAdded:
		return templatedMessage{
			Title: "New discussion message",
			Body:  fmt.Sprintf("A new message was posted in a discussion on %s.", sub),
		}
	}
	return templatedMessage{Title: string(event.Type), Body: sub}
}

// InAppNotifier stores one notifications row per recipient.
type InAppNotifier struct {
	db *gorm.DB
}

func NewInAppNotifier(db *gorm.DB) *InAppNotifier {
	if db == nil {
		db = config.DB
	}
	return &InAppNotifier{db: db}
}

func (n *InAppNotifier) Name() string { return "in_app" }

func (n *InAppNotifier) Notify(ctx context.Context, event Event) error {
	if len(event.Recipients) == 0 {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	msg := describeEvent(event)
	related := uint(event.SubmissionID)

	rows := make([]models.Notification, 0, len(event.Recipients))
	for _, userID := range event.Recipients {
		if userID <= 0 {
			continue
		}
		rows = append(rows, models.Notification{
			UserID:              uint(userID),
			Title:               msg.Title,
			Message:             msg.Body,
			Type:                string(event.Type),
			RelatedSubmissionID: &related,
			Payload:             datatypes.JSON(payload),
			CreateAt:            event.OccurredAt,
		})
	}
	if len(rows) == 0 {
		return nil
	}
	return n.db.WithContext(ctx).Create(&rows).Error
}

// Publisher is the part of the Redis client used for event fan-out.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisNotifier publishes every event as JSON on a pub/sub channel.
type RedisNotifier struct {
	client  Publisher
	channel string
}

func NewRedisNotifier(client Publisher, channel string) *RedisNotifier {
	return &RedisNotifier{client: client, channel: channel}
}

func (n *RedisNotifier) Name() string { return "redis" }

func (n *RedisNotifier) Notify(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return n.client.Publish(ctx, n.channel, payload).Err()
}

// MailSender sends an HTML message; config.Mailer implements it.
type MailSender interface {
	SendMail(to []string, subject, html string) error
}

// MailNotifier emails recipients of an event.
type MailNotifier struct {
	db     *gorm.DB
	sender MailSender
}

func NewMailNotifier(db *gorm.DB, sender MailSender) *MailNotifier {
	if db == nil {
		db = config.DB
	}
	return &MailNotifier{db: db, sender: sender}
}

func (n *MailNotifier) Name() string { return "mail" }

func (n *MailNotifier) Notify(ctx context.Context, event Event) error {
	if len(event.Recipients) == 0 {
		return nil
	}

	var users []models.User
	if err := n.db.WithContext(ctx).
		Where("user_id IN ? AND delete_at IS NULL", event.Recipients).
		Find(&users).Error; err != nil {
		return fmt.Errorf("load recipients: %w", err)
	}

	msg := describeEvent(event)
	var failed []string
	for _, u := range users {
		if strings.TrimSpace(u.Email) == "" {
			continue
		}
		html := buildFormalEmailHTML(msg.Title, u.Name, msg.Body, event.OccurredAt)
		if err := n.sender.SendMail([]string{u.Email}, msg.Title, html); err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", u.Email, err))
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("send mail: %s", strings.Join(failed, "; "))
	}
	return nil
}

func buildFormalEmailHTML(subject, recipientName, message string, at time.Time) string {
	name := strings.TrimSpace(recipientName)
	if name == "" {
		name = "colleague"
	}

	escapedSubject := template.HTMLEscapeString(subject)
	escapedGreeting := template.HTMLEscapeString(fmt.Sprintf("Dear %s,", name))
	escapedMessage := template.HTMLEscapeString(strings.TrimSpace(message))
	escapedMessage = strings.ReplaceAll(strings.ReplaceAll(escapedMessage, "\r\n", "\n"), "\r", "\n")
	escapedMessage = strings.ReplaceAll(escapedMessage, "\n", "<br />")
	stamp := template.HTMLEscapeString(at.Format("02 Jan 2006 15:04 MST"))

	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s</title>
</head>
<body style="margin:0;padding:0;background-color:#f9fafb;font-family:'Segoe UI',Tahoma,Arial,sans-serif;">
<div style="max-width:640px;margin:0 auto;padding:24px 20px;">
  <div style="background-color:#ffffff;border:1px solid #e5e7eb;border-radius:12px;padding:24px;">
    <p style="margin:0 0 16px 0;font-size:16px;line-height:1.7;color:#111827;">%s</p>
    <p style="margin:0 0 16px 0;font-size:16px;line-height:1.7;color:#111827;word-break:break-word;">%s</p>
    <p style="margin:0;font-size:13px;color:#6b7280;">%s</p>
  </div>
</div>
</body>
</html>`, escapedSubject, escapedGreeting, escapedMessage, stamp)
}
