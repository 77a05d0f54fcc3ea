package amqp

import (
	"context"
	"time"

	"patrimonio/internal/log"
)

// ConsumeLoop keeps a consumer alive across broker outages. It dials,
// consumes until the connection drops, then redials with exponential
// backoff. Errors that do not look like connection failures end the
// loop, as does context cancellation.
func ConsumeLoop(ctx context.Context, url, exchangeName, queueName string, logger *log.Logger, handler func(*TransactionSyncMessage) error) error {
	l := logger.WithComponent(log.ComponentAMQP)

	attempt := 0
	for {
		client, err := NewClient(url, exchangeName, queueName, logger)
		if err != nil {
			if !isConnectionError(err) {
				return err
			}
			wait := exponentialBackoff(attempt)
			attempt++
			l.WarnContext(ctx, "broker unreachable, retrying",
				log.FieldError, err,
				"backoff", wait)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			continue
		}
		attempt = 0

		err = client.ConsumeTransactionSync(ctx, handler)
		client.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}

		// The consumer only returns with the context alive when the
		// channel broke underneath it, so treat any such return as a
		// reconnect case.
		wait := exponentialBackoff(attempt)
		attempt++
		l.WarnContext(ctx, "consumer stopped, reconnecting",
			log.FieldError, err,
			"backoff", wait)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
