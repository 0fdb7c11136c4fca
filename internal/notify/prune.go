package notify

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

type Retention interface {
	DeleteNotificationsOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Pruner deletes notifications older than a fixed age.
type Pruner struct {
	store  Retention
	maxAge time.Duration
	log    *logrus.Entry
	now    func() time.Time
}

func NewPruner(store Retention, maxAge time.Duration, logger *logrus.Logger) *Pruner {
	if maxAge <= 0 {
		maxAge = 30 * 24 * time.Hour
	}
	return &Pruner{
		store:  store,
		maxAge: maxAge,
		log:    logger.WithField("job", "notification-retention"),
		now:    time.Now,
	}
}

func (p *Pruner) Run(ctx context.Context) (int64, error) {
	cutoff := p.now().Add(-p.maxAge)
	deleted, err := p.store.DeleteNotificationsOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	p.log.WithFields(logrus.Fields{"cutoff": cutoff.Format(time.RFC3339), "deleted": deleted}).Info("old notifications deleted")
	return deleted, nil
}
