package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/harlequingg/taskmanager-api/internal/data"
)

// TaskSource is the storage the scanner reads candidates from and writes notifications to.
type TaskSource interface {
	ListNotifiableTasks(ctx context.Context, from, to time.Time) ([]data.Task, error)
	LatestNotification(ctx context.Context, taskID int64, typ data.NotificationType) (*data.Notification, error)
	CreateNotification(ctx context.Context, n *data.Notification) error
}

// debounceSlack absorbs scheduler jitter so a scan running on the same cadence
// as Debounce does not land a few milliseconds short of it.
const debounceSlack = time.Minute

type ScanConfig struct {
	// Horizon is how far ahead of now a due date makes a task eligible.
	Horizon time.Duration
	// SoonWindow is the short window in which a due task is flagged high priority.
	SoonWindow time.Duration
	// Debounce is the minimum age of the last (task, type) notification before another is created.
	Debounce time.Duration
	// OverdueLookback bounds how far past its due date a task is still picked up as a candidate.
	OverdueLookback time.Duration
}

func DefaultScanConfig() ScanConfig {
	return ScanConfig{
		Horizon:         24 * time.Hour,
		SoonWindow:      time.Hour,
		Debounce:        time.Hour,
		OverdueLookback: 24 * time.Hour,
	}
}

type ScanResult struct {
	Candidates int `json:"candidates"`
	Created    int `json:"created"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

type Scanner struct {
	store TaskSource
	cfg   ScanConfig
	log   *logrus.Entry
	now   func() time.Time
}

func NewScanner(store TaskSource, cfg ScanConfig, logger *logrus.Logger) *Scanner {
	defaults := DefaultScanConfig()
	if cfg.Horizon <= 0 {
		cfg.Horizon = defaults.Horizon
	}
	if cfg.SoonWindow <= 0 {
		cfg.SoonWindow = defaults.SoonWindow
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = defaults.Debounce
	}
	if cfg.OverdueLookback < 0 {
		cfg.OverdueLookback = 0
	}
	return &Scanner{
		store: store,
		cfg:   cfg,
		log:   logger.WithField("job", "due-date-scan"),
		now:   time.Now,
	}
}

type classification struct {
	typ      data.NotificationType
	priority data.NotificationPriority
	title    string
	message  string
}

// classify picks exactly one urgency class for a task relative to now.
func (s *Scanner) classify(t data.Task, now time.Time) classification {
	due := *t.DueDate
	switch {
	case due.Before(now):
		return classification{
			typ:      data.NotificationOverdue,
			priority: data.NotificationPriorityHigh,
			title:    "Task Overdue",
			message:  fmt.Sprintf("Task %q is overdue", t.Title),
		}
	case !due.After(now.Add(s.cfg.SoonWindow)):
		return classification{
			typ:      data.NotificationDueSoon,
			priority: data.NotificationPriorityHigh,
			title:    "Task Due Soon",
			message:  fmt.Sprintf("Task %q is due in less than %s!", t.Title, humanizeWindow(s.cfg.SoonWindow)),
		}
	default:
		return classification{
			typ:      data.NotificationDueSoon,
			priority: data.NotificationPriorityNormal,
			title:    "Task Due Soon",
			message:  fmt.Sprintf("Task %q is due within %s", t.Title, humanizeWindow(s.cfg.Horizon)),
		}
	}
}

// Run evaluates every open task due within the horizon and creates the notifications
// that are owed. Failures on individual tasks are logged and counted. A failure to
// load candidates or a cancelled ctx is returned along with the partial result.
func (s *Scanner) Run(ctx context.Context) (ScanResult, error) {
	now := s.now()
	var result ScanResult

	tasks, err := s.store.ListNotifiableTasks(ctx, now.Add(-s.cfg.OverdueLookback), now.Add(s.cfg.Horizon))
	if err != nil {
		scanRuns.WithLabelValues("error").Inc()
		return result, fmt.Errorf("loading candidate tasks: %w", err)
	}
	result.Candidates = len(tasks)

	for _, t := range tasks {
		if err := ctx.Err(); err != nil {
			scanRuns.WithLabelValues("cancelled").Inc()
			s.log.WithError(err).WithFields(logrus.Fields{
				"candidates": result.Candidates,
				"created":    result.Created,
			}).Warn("due date notifications check cancelled")
			return result, err
		}
		created, err := s.processTask(ctx, t, now)
		switch {
		case err != nil:
			result.Failed++
			scanTaskFailures.Inc()
			s.log.WithError(err).WithField("task_id", t.ID).Error("failed to process task")
		case created:
			result.Created++
		default:
			result.Skipped++
		}
	}

	scanRuns.WithLabelValues("ok").Inc()
	s.log.WithFields(logrus.Fields{
		"candidates": result.Candidates,
		"created":    result.Created,
		"skipped":    result.Skipped,
		"failed":     result.Failed,
	}).Info("due date notifications check completed")

	return result, nil
}

func (s *Scanner) processTask(ctx context.Context, t data.Task, now time.Time) (bool, error) {
	if t.DueDate == nil || t.Status == data.TaskStatusCompleted {
		return false, nil
	}

	c := s.classify(t, now)

	last, err := s.store.LatestNotification(ctx, t.ID, c.typ)
	if err != nil {
		return false, err
	}
	if s.alreadyNotified(t, c, last, now) {
		return false, nil
	}

	n := &data.Notification{
		CreatedAt:    now,
		UserID:       t.UserID,
		TaskID:       t.ID,
		Type:         c.typ,
		Title:        c.title,
		Message:      c.message,
		Priority:     c.priority,
		ScheduledFor: now,
	}
	if err := s.store.CreateNotification(ctx, n); err != nil {
		return false, err
	}

	notificationsCreated.WithLabelValues(string(c.typ)).Inc()
	return true, nil
}

// alreadyNotified reports whether last covers the notification c would create.
// Overdue fires once per due date. Due-soon is debounced but an escalation to
// a higher priority always goes through.
func (s *Scanner) alreadyNotified(t data.Task, c classification, last *data.Notification, now time.Time) bool {
	if last == nil {
		return false
	}
	if c.typ == data.NotificationOverdue {
		return !last.CreatedAt.Before(*t.DueDate)
	}
	if priorityRank(c.priority) > priorityRank(last.Priority) {
		return false
	}
	window := s.cfg.Debounce
	if window > debounceSlack {
		window -= debounceSlack
	}
	return now.Sub(last.CreatedAt) < window
}

func priorityRank(p data.NotificationPriority) int {
	switch p {
	case data.NotificationPriorityHigh:
		return 2
	case data.NotificationPriorityNormal:
		return 1
	default:
		return 0
	}
}

func humanizeWindow(d time.Duration) string {
	switch {
	case d == time.Hour:
		return "an hour"
	case d == 24*time.Hour:
		return "24 hours"
	case d%time.Hour == 0:
		return fmt.Sprintf("%d hours", int(d/time.Hour))
	case d%time.Minute == 0:
		return fmt.Sprintf("%d minutes", int(d/time.Minute))
	default:
		return d.String()
	}
}
