package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/task-tracker/internal/queue"
)

// StartConsumer binds an exclusive queue to the task_events fanout
// exchange and records every event. It runs a reconnect loop with
// exponential backoff and never returns; processing errors are logged
// and the offending message rejected so the collector keeps running.
func StartConsumer(url string, repo *Repo, logger *slog.Logger) {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			logger.Warn("broker dial failed, retrying", "err", err, "backoff", backoff)
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		if err := consumeLoop(conn, repo, logger); err != nil {
			logger.Warn("consume loop ended, reconnecting", "err", err)
			time.Sleep(2 * time.Second)
		}
	}
}

func consumeLoop(conn *amqp.Connection, repo *Repo, logger *slog.Logger) error {
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.ExchangeDeclare(queue.ExchangeName, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("exchange declare: %w", err)
	}
	// Exclusive server-named queue: each collector instance gets its own
	// copy of the event stream.
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	if err := ch.QueueBind(q.Name, "", queue.ExchangeName, false, nil); err != nil {
		return fmt.Errorf("queue bind: %w", err)
	}

	msgs, err := ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	logger.Info("consuming task events", "queue", q.Name)

	for d := range msgs {
		if err := handleMessage(d.Body, repo, logger); err != nil {
			logger.Warn("handle message failed", "err", err)
			_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func handleMessage(body []byte, repo *Repo, logger *slog.Logger) error {
	var env struct {
		Event queue.TaskEventType `json:"event"`
		Data  queue.TaskSnapshot  `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := repo.Insert(ctx, env.Data.ID, env.Data.Title, env.Data.Status, env.Data.AssignedToUserID); err != nil {
		return fmt.Errorf("insert: %w", err)
	}
	logger.Debug("event recorded", "event", env.Event, "task", env.Data.ID)
	return nil
}
