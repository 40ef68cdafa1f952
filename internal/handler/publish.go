package handler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/resort-reservation/internal/queue"
)

const publishTimeout = 3 * time.Second

// notifier publishes domain events after a commit.  A failed publish is
// logged and never reported to the caller: the commit already happened.
type notifier struct {
	pub queue.Publisher
	log *zap.Logger
}

func (n notifier) publish(ctx context.Context, ev queue.DomainEvent) {
	if n.pub == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := n.pub.Publish(ctx, ev); err != nil {
		n.log.Warn("publish domain event failed", zap.String("type", string(ev.Type)), zap.Error(err))
	}
}
