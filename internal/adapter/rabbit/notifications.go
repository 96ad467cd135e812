// Package rabbit relays dispatch domain events to the push-notification
// pipeline. Delivery is best-effort: a failed publish is logged and dropped,
// it never affects the mutation that produced the event.
package rabbit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/olzhas-a/dispatch-core/internal/domain/models"
	"github.com/olzhas-a/dispatch-core/internal/domain/types"
	"github.com/olzhas-a/dispatch-core/internal/event"
	"github.com/olzhas-a/dispatch-core/pkg/logger"
	wrap "github.com/olzhas-a/dispatch-core/pkg/logger/wrapper"
	"github.com/olzhas-a/dispatch-core/pkg/metrics"
	"github.com/olzhas-a/dispatch-core/pkg/rabbit"
)

const (
	serviceName = "dispatch"

	notificationExchange = "notifications_topic"

	audienceOwner  = "owner"
	audienceDriver = "driver"
)

// PushJob is the message consumed by the push-notification workers.
type PushJob struct {
	RecipientID string            `json:"recipient_id"`
	Audience    string            `json:"audience"`
	RequestID   string            `json:"request_id"`
	Title       string            `json:"title"`
	Body        string            `json:"body"`
	Data        map[string]string `json:"data,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

type NotificationRelay struct {
	client *rabbit.RabbitMQ
	l      logger.Logger
}

func NewNotificationRelay(client *rabbit.RabbitMQ, l logger.Logger) *NotificationRelay {
	return &NotificationRelay{client: client, l: l}
}

// Register subscribes the relay to the events it turns into notifications.
func (r *NotificationRelay) Register(bus *event.Bus) {
	bus.Subscribe(models.StatusChangedEvent{}.EventType(), r.handleStatusChanged)
	bus.Subscribe(models.DriverAssignedEvent{}.EventType(), r.handleDriverAssigned)
}

func (r *NotificationRelay) handleStatusChanged(ctx context.Context, e models.Event) error {
	evt, ok := e.(models.StatusChangedEvent)
	if !ok {
		return fmt.Errorf("notification relay: unexpected event %T", e)
	}
	ctx = wrap.WithTripID(ctx, evt.RequestID.String())

	if evt.OldStatus == evt.NewStatus {
		// no-op touch, nothing worth a push
		return nil
	}

	jobs := []PushJob{{
		RecipientID: evt.OwnerID.String(),
		Audience:    audienceOwner,
		RequestID:   evt.RequestID.String(),
		Title:       "Trip request update",
		Body:        ownerStatusCopy(evt.NewStatus),
		Data:        map[string]string{"status": string(evt.NewStatus)},
		CreatedAt:   evt.At,
	}}

	if evt.DriverID != nil {
		if body := driverStatusCopy(evt.NewStatus); body != "" {
			jobs = append(jobs, PushJob{
				RecipientID: evt.DriverID.String(),
				Audience:    audienceDriver,
				RequestID:   evt.RequestID.String(),
				Title:       "Trip update",
				Body:        body,
				Data:        map[string]string{"status": string(evt.NewStatus)},
				CreatedAt:   evt.At,
			})
		}
	}

	for _, job := range jobs {
		if err := r.publish(ctx, job); err != nil {
			return err
		}
	}
	return nil
}

func (r *NotificationRelay) handleDriverAssigned(ctx context.Context, e models.Event) error {
	evt, ok := e.(models.DriverAssignedEvent)
	if !ok {
		return fmt.Errorf("notification relay: unexpected event %T", e)
	}
	ctx = wrap.WithTripID(ctx, evt.RequestID.String())

	jobs := []PushJob{
		{
			RecipientID: evt.OwnerID.String(),
			Audience:    audienceOwner,
			RequestID:   evt.RequestID.String(),
			Title:       "Driver assigned",
			Body:        fmt.Sprintf("%s is on the way", evt.Driver.Name),
			Data:        map[string]string{"driver_id": evt.DriverID.String()},
			CreatedAt:   evt.At,
		},
		{
			RecipientID: evt.DriverID.String(),
			Audience:    audienceDriver,
			RequestID:   evt.RequestID.String(),
			Title:       "New assignment",
			Body:        "you have been assigned a new trip request",
			CreatedAt:   evt.At,
		},
	}

	for _, job := range jobs {
		if err := r.publish(ctx, job); err != nil {
			return err
		}
	}
	return nil
}

func (r *NotificationRelay) publish(ctx context.Context, job PushJob) (err error) {
	const op = "NotificationRelay.publish"
	defer func() { metrics.RecordRabbitMQPublish(serviceName, notificationExchange, err) }()

	body, err := json.Marshal(job)
	if err != nil {
		return wrap.Error(wrap.WithAction(ctx, "marshal_push_job"), fmt.Errorf("%s: failed to marshal job: %w", op, err))
	}

	key := fmt.Sprintf("notify.%s.%s", job.Audience, job.RecipientID)

	err = retry(3, 200*time.Millisecond, func() error {
		if err := r.client.EnsureConnection(ctx); err != nil {
			return err
		}
		return r.client.Channel.PublishWithContext(
			ctx,
			notificationExchange,
			key,
			false, // mandatory
			false, // immediate
			amqp091.Publishing{
				ContentType: "application/json",
				Body:        body,
				Timestamp:   time.Now(),
			},
		)
	})
	if err != nil {
		return wrap.Error(wrap.WithAction(ctx, "publish_push_job"), fmt.Errorf("%s: failed to publish: %w", op, err))
	}

	return nil
}

func ownerStatusCopy(status types.RequestStatus) string {
	switch status {
	case types.StatusPending:
		return "your request is waiting for a driver"
	case types.StatusConfirmed:
		return "a driver has been confirmed for your request"
	case types.StatusInProgress:
		return "your trip has started"
	case types.StatusCompleted:
		return "your trip is complete"
	case types.StatusCancelled:
		return "your request has been cancelled"
	default:
		return fmt.Sprintf("your request is now %s", status)
	}
}

// driverStatusCopy returns the driver-facing message, empty when the status
// change is not the driver's concern.
func driverStatusCopy(status types.RequestStatus) string {
	switch status {
	case types.StatusInProgress:
		return "trip started"
	case types.StatusCompleted:
		return "trip completed"
	case types.StatusCancelled:
		return "the trip has been cancelled"
	default:
		return ""
	}
}

func retry(n int, sleep time.Duration, fn func() error) error {
	var err error
	for range n {
		if err = fn(); err == nil {
			return nil
		}
		time.Sleep(sleep)
	}
	return err
}
