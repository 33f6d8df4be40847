package mailer

import (
	"context"

	"go.uber.org/zap"

	"attendsheets/internal/metrics"
	"attendsheets/internal/queue"
)

// Relay drains mail jobs from q into m until ctx is done. Undecodable jobs and
// failed sends are logged and dropped.
func Relay(ctx context.Context, q queue.Queue, m Mailer, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	messages, err := q.Consume(ctx)
	if err != nil {
		return err
	}
	for msg := range messages {
		if msg.Type != MessageType {
			continue
		}
		env, err := Decode(msg)
		if err != nil {
			log.Warn("dropping malformed mail job", zap.Error(err))
			continue
		}
		err = m.Send(ctx, env.To, env.Subject, env.Body)
		metrics.MailDeliveries.WithLabelValues("relay", metrics.Result(err)).Inc()
		if err != nil {
			log.Warn("mail delivery failed", zap.String("to", env.To), zap.String("subject", env.Subject), zap.Error(err))
			continue
		}
		log.Debug("mail delivered", zap.String("to", env.To))
	}
	return nil
}
