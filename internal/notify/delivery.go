package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/harlequingg/taskmanager-api/internal/data"
)

type Outbox interface {
	ListDueNotifications(ctx context.Context, now time.Time) ([]data.DueNotification, error)
	MarkNotificationSent(ctx context.Context, id int64) error
}

type Sender interface {
	Send(recipient, templateFile string, data any) error
}

// Dispatcher emails notifications whose scheduled time has passed.
type Dispatcher struct {
	outbox Outbox
	sender Sender
	log    *logrus.Entry
	now    func() time.Time
}

func NewDispatcher(outbox Outbox, sender Sender, logger *logrus.Logger) *Dispatcher {
	return &Dispatcher{
		outbox: outbox,
		sender: sender,
		log:    logger.WithField("job", "notification-delivery"),
		now:    time.Now,
	}
}

// Run sends every due notification. A failed send leaves it unsent for the next run.
func (d *Dispatcher) Run(ctx context.Context) (sent int, err error) {
	due, err := d.outbox.ListDueNotifications(ctx, d.now())
	if err != nil {
		return 0, fmt.Errorf("loading due notifications: %w", err)
	}

	for _, n := range due {
		if ctx.Err() != nil {
			break
		}
		log := d.log.WithFields(logrus.Fields{"notification_id": n.ID, "task_id": n.TaskID})

		if err := d.sender.Send(n.UserEmail, "task_due.tmpl", templateData(n)); err != nil {
			notificationsDelivered.WithLabelValues("error").Inc()
			log.WithError(err).Warn("failed to send notification email")
			continue
		}
		if err := d.outbox.MarkNotificationSent(ctx, n.ID); err != nil {
			log.WithError(err).Error("failed to mark notification sent")
			continue
		}
		notificationsDelivered.WithLabelValues("sent").Inc()
		sent++
	}

	if len(due) > 0 {
		d.log.WithFields(logrus.Fields{"due": len(due), "sent": sent}).Info("notification delivery completed")
	}
	return sent, nil
}

func templateData(n data.DueNotification) map[string]any {
	td := map[string]any{
		"Name":      n.UserName,
		"Title":     n.Title,
		"Message":   n.Message,
		"TaskTitle": "",
		"DueDate":   "",
	}
	if n.Task != nil {
		td["TaskTitle"] = n.Task.Title
		if n.Task.DueDate != nil {
			td["DueDate"] = n.Task.DueDate.UTC().Format("Mon, 02 Jan 2006 15:04 MST")
		}
	}
	return td
}
