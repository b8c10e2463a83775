package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/restaurant-ordering/internal/platform/pgdb"
	"github.com/dmehra2102/restaurant-ordering/pkg/outbox"
)

type OutboxStore struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewOutboxStore(log *slog.Logger, pool *pgxpool.Pool) *OutboxStore {
	return &OutboxStore{log: log, pool: pool}
}

// LockBatch claims pending events and in-progress events whose lease expired,
// so a relay that died mid-batch does not strand its events.
func (s *OutboxStore) LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]outbox.Event, error) {
	var events []outbox.Event
	err := pgdb.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT id, tenant_id, aggregate_type, aggregate_id, type, payload, headers, traceparent, retry_count, created_at
			FROM outbox
			WHERE status = 'pending'
			   OR (status = 'in_progress' AND lease_until < now())
			ORDER BY id
			FOR UPDATE SKIP LOCKED
			LIMIT $1`, batchSize)
		if err != nil {
			return err
		}
		events, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (outbox.Event, error) {
			var ev outbox.Event
			err := row.Scan(&ev.ID, &ev.TenantID, &ev.AggregateType, &ev.AggregateID, &ev.Type,
				&ev.Payload, &ev.Headers, &ev.Traceparent, &ev.RetryCount, &ev.CreatedAt)
			ev.Status = outbox.StatusInProgress
			ev.RelayID = relayID
			return ev, err
		})
		if err != nil || len(events) == 0 {
			return err
		}

		ids := make([]int64, 0, len(events))
		for _, ev := range events {
			ids = append(ids, ev.ID)
		}
		_, err = tx.Exec(ctx, `
			UPDATE outbox
			SET status = 'in_progress', relay_id = $1, lease_until = now() + $2::interval
			WHERE id = ANY($3)`, relayID, lease.String(), ids)
		return err
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (s *OutboxStore) MarkSent(ctx context.Context, ids []int64) error {
	ct, err := s.pool.Exec(ctx, `UPDATE outbox SET status = 'sent', lease_until = NULL WHERE id = ANY($1)`, ids)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return errors.New("no rows updated")
	}
	return nil
}

// MarkFailed puts the event back in the queue until it has failed
// outbox.MaxRetries times, after which it is parked as failed.
func (s *OutboxStore) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE outbox
		SET retry_count = retry_count + 1,
		    last_error = $2,
		    lease_until = NULL,
		    status = CASE WHEN retry_count + 1 >= $3 THEN 'failed' ELSE 'pending' END
		WHERE id = $1`, id, errMsg, outbox.MaxRetries)
	return err
}
