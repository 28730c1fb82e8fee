package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type OutboxEvent struct {
	ID          string
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
}

func insertEvent(ctx context.Context, db execer, rebind func(string) string, event *OutboxEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	query := rebind(`INSERT INTO outbox_events (id, aggregate_id, event_type, payload, created_at)
		VALUES (?, ?, ?, ?, ?)`)
	_, err := db.ExecContext(ctx, query, event.ID, event.AggregateID, event.EventType, string(event.Payload), event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}
	return nil
}

func (r *Repository) GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	query := r.rebind(`SELECT id, aggregate_id, event_type, payload, created_at
		FROM outbox_events WHERE processed_at IS NULL ORDER BY created_at, id LIMIT ?`)
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query outbox events: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		var (
			e       OutboxEvent
			payload string
		)
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.EventType, &payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		e.Payload = []byte(payload)
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate outbox events: %w", err)
	}
	return events, nil
}

func (r *Repository) MarkEventAsProcessed(ctx context.Context, id string) error {
	query := r.rebind(`UPDATE outbox_events SET processed_at = ? WHERE id = ? AND processed_at IS NULL`)
	if _, err := r.db.ExecContext(ctx, query, sql.NullTime{Time: time.Now().UTC(), Valid: true}, id); err != nil {
		return fmt.Errorf("failed to mark outbox event processed: %w", err)
	}
	return nil
}
