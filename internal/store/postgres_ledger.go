/**
 * @description
 * PostgreSQL implementation of the balance ledger and the withdrawal request
 * lifecycle. The debit path locks the balance row FOR UPDATE so the
 * check-then-mutate is atomic per (user, coin) — two concurrent debits
 * serialize on the lock and the loser sees the post-debit balance.
 *
 * Withdrawal approval is one transaction covering the status move, the ledger
 * debit, and the audit append. A debit that fails under the lock flips the
 * request to `failed` with the reason recorded, never leaving a half-applied
 * state.
 */

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/hackkaliboi/ofs-sub001/internal/domain"
)

func (r *PostgresRepository) ListCoinBalances(ctx context.Context, userID uuid.UUID) ([]domain.CoinBalance, error) {
	query := `
		SELECT id, user_id, coin_symbol, balance, last_updated, updated_by
		FROM coin_balances
		WHERE user_id = $1
		ORDER BY coin_symbol ASC
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var balances []domain.CoinBalance
	for rows.Next() {
		var b domain.CoinBalance
		if err := rows.Scan(&b.ID, &b.UserID, &b.CoinSymbol, &b.Balance, &b.LastUpdated, &b.UpdatedBy); err != nil {
			return nil, err
		}
		balances = append(balances, b)
	}
	return balances, rows.Err()
}

func (r *PostgresRepository) GetCoinBalance(ctx context.Context, userID uuid.UUID, coinSymbol string) (*domain.CoinBalance, error) {
	var b domain.CoinBalance
	query := `
		SELECT id, user_id, coin_symbol, balance, last_updated, updated_by
		FROM coin_balances
		WHERE user_id = $1 AND coin_symbol = $2
	`
	err := r.db.QueryRow(ctx, query, userID, coinSymbol).Scan(
		&b.ID, &b.UserID, &b.CoinSymbol, &b.Balance, &b.LastUpdated, &b.UpdatedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBalanceNotFound
		}
		return nil, err
	}
	return &b, nil
}

// CreditBalance adds amount to an existing ledger row. A missing row means the
// user has not been approved yet — the ledger only becomes writable once KYC
// approval provisioned it.
func (r *PostgresRepository) CreditBalance(ctx context.Context, userID uuid.UUID, coinSymbol string, amount decimal.Decimal, actorID uuid.UUID) (*domain.CoinBalance, error) {
	var b domain.CoinBalance
	query := `
		UPDATE coin_balances
		SET balance = balance + $3, last_updated = NOW(), updated_by = $4
		WHERE user_id = $1 AND coin_symbol = $2
		RETURNING id, user_id, coin_symbol, balance, last_updated, updated_by
	`
	err := r.db.QueryRow(ctx, query, userID, coinSymbol, amount, actorID).Scan(
		&b.ID, &b.UserID, &b.CoinSymbol, &b.Balance, &b.LastUpdated, &b.UpdatedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBalanceNotFound
		}
		return nil, err
	}
	return &b, nil
}

// DebitBalance subtracts amount after checking it under a row lock. The check
// and the mutation are one transaction; a concurrent loser gets
// InsufficientBalanceError with the balance it actually saw.
func (r *PostgresRepository) DebitBalance(ctx context.Context, userID uuid.UUID, coinSymbol string, amount decimal.Decimal, actorID uuid.UUID) (*domain.CoinBalance, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	b, err := debitBalanceTx(ctx, tx, userID, coinSymbol, amount, actorID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

// debitBalanceTx performs the locked check-and-debit inside the caller's
// transaction so withdrawal approval can reuse it.
func debitBalanceTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, coinSymbol string, amount decimal.Decimal, actorID uuid.UUID) (*domain.CoinBalance, error) {
	var current decimal.Decimal
	err := tx.QueryRow(ctx,
		`SELECT balance FROM coin_balances WHERE user_id = $1 AND coin_symbol = $2 FOR UPDATE`,
		userID, coinSymbol,
	).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBalanceNotFound
		}
		return nil, err
	}

	if current.LessThan(amount) {
		return nil, &InsufficientBalanceError{CoinSymbol: coinSymbol, Available: current, Requested: amount}
	}

	var b domain.CoinBalance
	err = tx.QueryRow(ctx, `
		UPDATE coin_balances
		SET balance = balance - $3, last_updated = NOW(), updated_by = $4
		WHERE user_id = $1 AND coin_symbol = $2
		RETURNING id, user_id, coin_symbol, balance, last_updated, updated_by
	`, userID, coinSymbol, amount, actorID).Scan(
		&b.ID, &b.UserID, &b.CoinSymbol, &b.Balance, &b.LastUpdated, &b.UpdatedBy,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// SetBalance applies an absolute value and appends the audit entry recording
// the old and new values, in one transaction.
func (r *PostgresRepository) SetBalance(ctx context.Context, userID uuid.UUID, coinSymbol string, value decimal.Decimal, actorID uuid.UUID, notes *string) (*domain.CoinBalance, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var b domain.CoinBalance
	var previous decimal.Decimal
	err = tx.QueryRow(ctx, `
		SELECT id, balance FROM coin_balances
		WHERE user_id = $1 AND coin_symbol = $2
		FOR UPDATE
	`, userID, coinSymbol).Scan(&b.ID, &previous)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBalanceNotFound
		}
		return nil, err
	}

	err = tx.QueryRow(ctx, `
		UPDATE coin_balances
		SET balance = $3, last_updated = NOW(), updated_by = $4
		WHERE user_id = $1 AND coin_symbol = $2
		RETURNING id, user_id, coin_symbol, balance, last_updated, updated_by
	`, userID, coinSymbol, value, actorID).Scan(
		&b.ID, &b.UserID, &b.CoinSymbol, &b.Balance, &b.LastUpdated, &b.UpdatedBy,
	)
	if err != nil {
		return nil, err
	}

	if err := appendAuditEntryTx(ctx, tx, &domain.ValidationHistoryEntry{
		ID:          uuid.New(),
		SubjectType: domain.SubjectBalance,
		SubjectID:   b.ID,
		FromStatus:  previous.String(),
		ToStatus:    value.String(),
		ActorID:     actorID,
		Notes:       notes,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *PostgresRepository) CreateWithdrawalRequest(ctx context.Context, req *domain.WithdrawalRequest) error {
	query := `
		INSERT INTO withdrawal_requests (id, user_id, amount, coin_symbol, destination, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	return r.db.QueryRow(ctx, query,
		req.ID, req.UserID, req.Amount, req.CoinSymbol, req.Destination, req.Status,
	).Scan(&req.CreatedAt, &req.UpdatedAt)
}

func (r *PostgresRepository) FindWithdrawalRequestByID(ctx context.Context, id uuid.UUID) (*domain.WithdrawalRequest, error) {
	var w domain.WithdrawalRequest
	query := withdrawalSelect + ` WHERE id = $1`
	err := r.db.QueryRow(ctx, query, id).Scan(withdrawalScanTargets(&w)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWithdrawalNotFound
		}
		return nil, err
	}
	return &w, nil
}

func (r *PostgresRepository) ListWithdrawalRequestsByUser(ctx context.Context, userID uuid.UUID) ([]domain.WithdrawalRequest, error) {
	return r.scanWithdrawalRows(ctx, withdrawalSelect+` WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

func (r *PostgresRepository) ListWithdrawalRequestsByStatus(ctx context.Context, status domain.WithdrawalStatus) ([]domain.WithdrawalRequest, error) {
	return r.scanWithdrawalRows(ctx, withdrawalSelect+` WHERE status = $1 ORDER BY created_at ASC`, status)
}

const withdrawalSelect = `
	SELECT id, user_id, amount, coin_symbol, destination, status,
	       created_at, updated_at, completed_at, transaction_ref, notes
	FROM withdrawal_requests`

func withdrawalScanTargets(w *domain.WithdrawalRequest) []any {
	return []any{
		&w.ID, &w.UserID, &w.Amount, &w.CoinSymbol, &w.Destination, &w.Status,
		&w.CreatedAt, &w.UpdatedAt, &w.CompletedAt, &w.TransactionRef, &w.Notes,
	}
}

func (r *PostgresRepository) scanWithdrawalRows(ctx context.Context, query string, args ...any) ([]domain.WithdrawalRequest, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reqs []domain.WithdrawalRequest
	for rows.Next() {
		var w domain.WithdrawalRequest
		if err := rows.Scan(withdrawalScanTargets(&w)...); err != nil {
			return nil, err
		}
		reqs = append(reqs, w)
	}
	return reqs, rows.Err()
}

// ApproveWithdrawal locks the request row, verifies it is still pending, and
// attempts the ledger debit. On success the request moves to processing; on an
// insufficient balance the request is marked failed with the reason persisted.
// Both outcomes commit the audit entry with the status move.
func (r *PostgresRepository) ApproveWithdrawal(ctx context.Context, requestID uuid.UUID, actorID uuid.UUID) (*WithdrawalApprovalOutcome, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var w domain.WithdrawalRequest
	err = tx.QueryRow(ctx, withdrawalSelect+` WHERE id = $1 FOR UPDATE`, requestID).
		Scan(withdrawalScanTargets(&w)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWithdrawalNotFound
		}
		return nil, err
	}

	if w.Status != domain.WithdrawalStatusPending {
		return &WithdrawalApprovalOutcome{Request: &w}, ErrInvalidState
	}

	_, debitErr := debitBalanceTx(ctx, tx, w.UserID, w.CoinSymbol, w.Amount, actorID)
	if debitErr != nil {
		var insufficient *InsufficientBalanceError
		if !errors.As(debitErr, &insufficient) && !errors.Is(debitErr, ErrBalanceNotFound) {
			return nil, debitErr
		}

		// Balance moved (or was never provisioned) between request and
		// approval: fail the request with the reason, do not touch the ledger.
		reason := fmt.Sprintf("approval debit failed: %v", debitErr)
		if err := r.updateWithdrawalStatusTx(ctx, tx, &w, domain.WithdrawalStatusFailed, actorID, &reason, nil, nil); err != nil {
			return nil, err
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}
		return &WithdrawalApprovalOutcome{Request: &w, Debited: false}, nil
	}

	if err := r.updateWithdrawalStatusTx(ctx, tx, &w, domain.WithdrawalStatusProcessing, actorID, nil, nil, nil); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &WithdrawalApprovalOutcome{Request: &w, Debited: true}, nil
}

// CompleteWithdrawal moves processing → completed and records the settlement
// reference. Completing an already-completed request returns it unchanged.
func (r *PostgresRepository) CompleteWithdrawal(ctx context.Context, requestID uuid.UUID, actorID uuid.UUID, transactionRef string) (*domain.WithdrawalRequest, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var w domain.WithdrawalRequest
	err = tx.QueryRow(ctx, withdrawalSelect+` WHERE id = $1 FOR UPDATE`, requestID).
		Scan(withdrawalScanTargets(&w)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWithdrawalNotFound
		}
		return nil, err
	}

	if w.Status == domain.WithdrawalStatusCompleted {
		return &w, nil
	}
	if w.Status != domain.WithdrawalStatusProcessing {
		return &w, ErrInvalidState
	}

	now := true
	if err := r.updateWithdrawalStatusTx(ctx, tx, &w, domain.WithdrawalStatusCompleted, actorID, nil, &transactionRef, &now); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &w, nil
}

// RejectWithdrawal moves pending → rejected without touching the ledger.
func (r *PostgresRepository) RejectWithdrawal(ctx context.Context, requestID uuid.UUID, actorID uuid.UUID, notes string) (*domain.WithdrawalRequest, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var w domain.WithdrawalRequest
	err = tx.QueryRow(ctx, withdrawalSelect+` WHERE id = $1 FOR UPDATE`, requestID).
		Scan(withdrawalScanTargets(&w)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWithdrawalNotFound
		}
		return nil, err
	}

	if w.Status == domain.WithdrawalStatusRejected {
		return &w, nil
	}
	if w.Status != domain.WithdrawalStatusPending {
		return &w, ErrInvalidState
	}

	if err := r.updateWithdrawalStatusTx(ctx, tx, &w, domain.WithdrawalStatusRejected, actorID, &notes, nil, nil); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &w, nil
}

// updateWithdrawalStatusTx writes the status move plus its audit entry inside
// the caller's transaction and refreshes w in place.
func (r *PostgresRepository) updateWithdrawalStatusTx(ctx context.Context, tx pgx.Tx, w *domain.WithdrawalRequest, to domain.WithdrawalStatus, actorID uuid.UUID, notes *string, transactionRef *string, setCompletedAt *bool) error {
	from := w.Status

	query := `
		UPDATE withdrawal_requests
		SET status = $2,
		    updated_at = NOW(),
		    notes = COALESCE($3, notes),
		    transaction_ref = COALESCE($4, transaction_ref),
		    completed_at = CASE WHEN $5 THEN NOW() ELSE completed_at END
		WHERE id = $1
		RETURNING status, updated_at, completed_at, transaction_ref, notes
	`
	markCompleted := setCompletedAt != nil && *setCompletedAt
	err := tx.QueryRow(ctx, query, w.ID, to, notes, transactionRef, markCompleted).
		Scan(&w.Status, &w.UpdatedAt, &w.CompletedAt, &w.TransactionRef, &w.Notes)
	if err != nil {
		return err
	}

	return appendAuditEntryTx(ctx, tx, &domain.ValidationHistoryEntry{
		ID:          uuid.New(),
		SubjectType: domain.SubjectWithdrawal,
		SubjectID:   w.ID,
		FromStatus:  string(from),
		ToStatus:    string(to),
		ActorID:     actorID,
		Notes:       notes,
	})
}
