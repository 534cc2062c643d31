// Package jobs runs the scheduled broadcasts.
package jobs

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/romnatson3/pharmacy/core/logger"
	"github.com/romnatson3/pharmacy/core/queue"
)

// Users lists broadcast recipients.
type Users interface {
	ListActiveUserIDs(ctx context.Context) ([]int64, error)
}

// Promoter sends the product-of-the-day feed to one chat.
type Promoter interface {
	ProductOfTheDay(ctx context.Context, chatID int64) error
}

// Promo broadcasts the products of the day to every active user on a cron
// schedule. Deliveries go through the task queue, one per recipient, so a
// blocked user cannot stall the rest of the run.
type Promo struct {
	users    Users
	promoter Promoter
	queue    queue.Enqueuer
	cron     *cron.Cron
}

// NewPromo constructs the broadcast job.
func NewPromo(users Users, promoter Promoter, q queue.Enqueuer) *Promo {
	return &Promo{users: users, promoter: promoter, queue: q}
}

// Start registers the schedule and starts the cron loop.
func (p *Promo) Start(schedule string) error {
	p.cron = cron.New()
	_, err := p.cron.AddFunc(schedule, func() {
		p.Run(context.Background())
	})
	if err != nil {
		return err
	}
	p.cron.Start()
	logger.Info(context.Background(), "cron", "promo.scheduled", slog.String("schedule", schedule))
	return nil
}

// Stop halts the cron loop. Already-enqueued deliveries still run.
func (p *Promo) Stop() {
	if p.cron != nil {
		p.cron.Stop()
	}
}

// Run enqueues one delivery per active user.
func (p *Promo) Run(ctx context.Context) {
	ids, err := p.users.ListActiveUserIDs(ctx)
	if err != nil {
		logger.Error(ctx, "cron", "promo.users.fail", slog.String("err", err.Error()))
		return
	}
	enqueued := 0
	for _, id := range ids {
		chatID := id
		err := p.queue.Enqueue(ctx, "promo_broadcast", func(ctx context.Context) error {
			ctx = logger.WithUpdateMeta(ctx, chatID, chatID)
			return p.promoter.ProductOfTheDay(ctx, chatID)
		})
		if err != nil {
			logger.Error(ctx, "cron", "promo.enqueue.fail",
				slog.Int64("chat_id", chatID),
				slog.String("err", err.Error()),
			)
			continue
		}
		enqueued++
	}
	logger.Info(ctx, "cron", "promo.run",
		slog.Int("recipients", len(ids)),
		slog.Int("enqueued", enqueued),
	)
}
