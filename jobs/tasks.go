package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/nexusride/nexusride-web/internal/backend"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSubscriptionRequested tells the transport office about a new request.
	TaskSubscriptionRequested = "subscription:requested"
	// TaskSubscriptionDecided tells a rider that their request was approved or declined.
	TaskSubscriptionDecided = "subscription:decided"
	// TaskIdempotencyCleanup prunes old submission ids.
	TaskIdempotencyCleanup = "maintenance:idempotency_cleanup"
)

// SubscriptionPayload describes a subscription event.
type SubscriptionPayload struct {
	SubscriptionID string `json:"subscription_id"`
	RiderEmail     string `json:"rider_email"`
	RiderName      string `json:"rider_name,omitempty"`
	StopName       string `json:"stop_name,omitempty"`
	RouteName      string `json:"route_name,omitempty"`
	StartDate      string `json:"start_date,omitempty"`
	EndDate        string `json:"end_date,omitempty"`
	Decision       string `json:"decision,omitempty"`
	DecidedBy      string `json:"decided_by,omitempty"`
}

func payloadFor(sub backend.Subscription, riderEmail string) SubscriptionPayload {
	if riderEmail == "" {
		riderEmail = sub.UserEmail
	}
	return SubscriptionPayload{
		SubscriptionID: sub.ID.String(),
		RiderEmail:     riderEmail,
		RiderName:      sub.UserName,
		StopName:       sub.StopName,
		RouteName:      sub.RouteName,
		StartDate:      sub.StartDate,
		EndDate:        sub.EndDate,
	}
}

// NewSubscriptionRequestedTask constructs a TaskSubscriptionRequested task.
func NewSubscriptionRequestedTask(sub backend.Subscription, riderEmail string) (*asynq.Task, error) {
	data, err := json.Marshal(payloadFor(sub, riderEmail))
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSubscriptionRequested, data), nil
}

// NewSubscriptionDecidedTask constructs a TaskSubscriptionDecided task.
func NewSubscriptionDecidedTask(sub backend.Subscription, decision, officerEmail string) (*asynq.Task, error) {
	payload := payloadFor(sub, "")
	payload.Decision = decision
	payload.DecidedBy = officerEmail
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSubscriptionDecided, data), nil
}

// NewIdempotencyCleanupTask constructs the periodic cleanup task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyCleanup, nil)
}
