package services

import (
	"context"

	"lendbook/internal/amqp"
	"lendbook/internal/log"
)

type notifier struct {
	events EventPublisher
	logger *log.Logger
}

// publish is best effort: the write it announces already succeeded.
func (n notifier) publish(ctx context.Context, key, action string) {
	if n.events == nil {
		return
	}
	if err := n.events.PublishDebtorChanged(ctx, amqp.NewDebtorChangedMessage(key, action)); err != nil {
		n.logger.ErrorContext(ctx, "Failed to publish debtor change",
			log.FieldDebtorKey, key,
			"action", action,
			log.FieldError, err)
	}
}
