package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cass-tech/storefront/internal/domain"
)

func (r *Repository) RecordAttempt(ctx context.Context, attempt *domain.PaymentAttempt) error {
	return insertAttempt(ctx, r.db, r.rebind, attempt)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertAttempt(ctx context.Context, db execer, rebind func(string) string, attempt *domain.PaymentAttempt) error {
	now := time.Now().UTC()
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = now
	}
	attempt.UpdatedAt = now

	query := rebind(`INSERT INTO payment_attempts
		(id, checkout_id, gateway_id, transaction_id, status, order_id, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := db.ExecContext(ctx, query,
		attempt.ID,
		attempt.CheckoutID,
		string(attempt.GatewayID),
		attempt.TransactionID,
		string(attempt.Status),
		attempt.OrderID,
		attempt.Error,
		attempt.CreatedAt,
		attempt.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert payment attempt: %w", err)
	}
	return nil
}

func (r *Repository) UpdateAttemptStatus(ctx context.Context, id string, status domain.AttemptStatus, errMsg string) error {
	query := r.rebind(`UPDATE payment_attempts SET status = ?, error = ?, updated_at = ? WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, query, string(status), errMsg, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update payment attempt: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrAttemptNotFound
	}
	return nil
}

func (r *Repository) AttemptsByCheckout(ctx context.Context, checkoutID string) ([]*domain.PaymentAttempt, error) {
	query := r.rebind(`SELECT id, checkout_id, gateway_id, transaction_id, status, order_id, error, created_at, updated_at
		FROM payment_attempts WHERE checkout_id = ? ORDER BY created_at, id`)
	rows, err := r.db.QueryContext(ctx, query, checkoutID)
	if err != nil {
		return nil, fmt.Errorf("failed to query payment attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*domain.PaymentAttempt
	for rows.Next() {
		var (
			a       domain.PaymentAttempt
			gateway string
			status  string
		)
		if err := rows.Scan(&a.ID, &a.CheckoutID, &gateway, &a.TransactionID, &status, &a.OrderID, &a.Error, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment attempt: %w", err)
		}
		a.GatewayID = domain.GatewayID(gateway)
		a.Status = domain.AttemptStatus(status)
		attempts = append(attempts, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payment attempts: %w", err)
	}
	return attempts, nil
}

// RecordCompletion stores the completed attempt and its outbox event in one
// transaction so the event is published iff the completion is recorded.
func (r *Repository) RecordCompletion(ctx context.Context, attempt *domain.PaymentAttempt, event *OutboxEvent) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertAttempt(ctx, tx, r.rebind, attempt); err != nil {
		return err
	}
	if err := insertEvent(ctx, tx, r.rebind, event); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit completion: %w", err)
	}
	return nil
}
