package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/nexusride/nexusride-web/internal/jobs"
)

// Message is an outgoing notification.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers notifications.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer writes notifications to the log instead of delivering them.
type LogMailer struct {
	Logger *slog.Logger
}

// Send implements Mailer.
func (m LogMailer) Send(_ context.Context, msg Message) error {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("notification", slog.String("to", msg.To), slog.String("subject", msg.Subject))
	return nil
}

// Cleaner prunes processed submission ids.
type Cleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// Notifications handles subscription tasks.
type Notifications struct {
	mailer       Mailer
	officerEmail string
	metrics      *jobmetrics.Metrics
}

// NewNotifications builds the task handlers. metrics may be nil.
func NewNotifications(mailer Mailer, officerEmail string, metrics *jobmetrics.Metrics) *Notifications {
	return &Notifications{mailer: mailer, officerEmail: officerEmail, metrics: metrics}
}

// HandleRequested processes TaskSubscriptionRequested tasks.
func (n *Notifications) HandleRequested(ctx context.Context, t *asynq.Task) error {
	var payload SubscriptionPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode %s: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	tracker := n.metrics.Track(TaskSubscriptionRequested)
	msg := Message{
		To:      n.officerEmail,
		Subject: "New subscription request from " + payload.RiderEmail,
		Body: fmt.Sprintf("Request %s for stop %s (%s to %s) is waiting for review.",
			payload.SubscriptionID, orDash(payload.StopName), orDash(payload.StartDate), orDash(payload.EndDate)),
	}
	return tracker.End(n.mailer.Send(ctx, msg))
}

// HandleDecided processes TaskSubscriptionDecided tasks.
func (n *Notifications) HandleDecided(ctx context.Context, t *asynq.Task) error {
	var payload SubscriptionPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode %s: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	if payload.RiderEmail == "" {
		return fmt.Errorf("subscription %s has no rider email: %w", payload.SubscriptionID, asynq.SkipRetry)
	}
	tracker := n.metrics.Track(TaskSubscriptionDecided)
	verb := "declined"
	if strings.EqualFold(payload.Decision, "approve") {
		verb = "approved"
	}
	msg := Message{
		To:      payload.RiderEmail,
		Subject: "Your subscription request was " + verb,
		Body:    fmt.Sprintf("Subscription %s for stop %s was %s by the transport office.", payload.SubscriptionID, orDash(payload.StopName), verb),
	}
	return tracker.End(n.mailer.Send(ctx, msg))
}

// CleanupHandler prunes submission ids older than retention.
func CleanupHandler(cleaner Cleaner, retention time.Duration, logger *slog.Logger, metrics *jobmetrics.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		tracker := metrics.Track(TaskIdempotencyCleanup)
		if err := cleaner.Cleanup(ctx, retention); err != nil {
			if logger != nil {
				logger.Error("idempotency cleanup", slog.Any("error", err))
			}
			return tracker.End(err)
		}
		if logger != nil {
			logger.Info("pruned submission ids", slog.String("job", TaskIdempotencyCleanup), slog.Duration("retention", retention))
		}
		return tracker.End(nil)
	}
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
