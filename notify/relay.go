package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"claimflow/config"
)

// Publisher is the outbound side of the relay.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// Relay drains the transactional outbox into the message queue. Rows are
// claimed with FOR UPDATE SKIP LOCKED so multiple relay instances never
// publish the same message twice; a row is only marked sent after the broker
// accepted it, so delivery is at-least-once.
type Relay struct {
	pool  *pgxpool.Pool
	queue Publisher
	cfg   config.Outbox
	log   *slog.Logger
}

func NewRelay(pool *pgxpool.Pool, queue Publisher, cfg config.Outbox, log *slog.Logger) *Relay {
	if log == nil {
		log = slog.Default()
	}
	return &Relay{pool: pool, queue: queue, cfg: cfg, log: log}
}

// Run polls the outbox until the context is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n, err := r.DrainOnce(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				r.log.ErrorContext(ctx, "outbox drain failed", "error", err)
			} else if n > 0 {
				r.log.DebugContext(ctx, "outbox drained", "published", n)
			}
		}
	}
}

// DrainOnce publishes one batch of unsent messages and returns how many went out.
func (r *Relay) DrainOnce(ctx context.Context) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("notify: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT id, topic, payload
		FROM outbox
		WHERE sent_at IS NULL
		ORDER BY id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, r.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("notify: select outbox batch: %w", err)
	}

	type message struct {
		id      int64
		topic   string
		payload []byte
	}
	batch := make([]message, 0, r.cfg.BatchSize)
	for rows.Next() {
		var m message
		if err := rows.Scan(&m.id, &m.topic, &m.payload); err != nil {
			rows.Close()
			return 0, fmt.Errorf("notify: scan outbox row: %w", err)
		}
		batch = append(batch, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("notify: iterate outbox: %w", err)
	}
	if len(batch) == 0 {
		return 0, nil
	}

	sent := make([]int64, 0, len(batch))
	for _, m := range batch {
		if err := r.queue.Publish(ctx, m.topic, m.payload); err != nil {
			// unsent rows stay locked until rollback and are retried next tick
			r.log.WarnContext(ctx, "outbox publish failed", "id", m.id, "topic", m.topic, "error", err)
			break
		}
		sent = append(sent, m.id)
	}
	if len(sent) == 0 {
		return 0, nil
	}

	if _, err := tx.Exec(ctx, `UPDATE outbox SET sent_at = now() WHERE id = ANY($1)`, sent); err != nil {
		return 0, fmt.Errorf("notify: mark sent: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("notify: commit tx: %w", err)
	}
	return len(sent), nil
}
