/**
 * @description
 * PostgreSQL implementation of the `Repository` interface for wallet
 * connections, KYC documents, the validation state machine transitions, and
 * the audit trail. Ledger and withdrawal persistence live in
 * postgres_ledger.go.
 *
 * Uniqueness of pending rows is enforced by partial unique indexes (see
 * migrations/0001_init.sql); unique violations surface as ErrDuplicatePending.
 * Transitions run inside a transaction with the target row locked FOR UPDATE,
 * so concurrent admin actions serialize on the row and the history append
 * commits together with the status change.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - internal/domain: Domain models.
 */

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackkaliboi/ofs-sub001/internal/domain"
)

const pgUniqueViolation = "23505"

// PostgresRepository is the pgx-backed implementation of Repository.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// CreateWalletConnection inserts a pending wallet connection. The partial
// unique index on (user_id, address) WHERE status = 'pending' rejects a second
// non-terminal claim for the same pair.
func (r *PostgresRepository) CreateWalletConnection(ctx context.Context, wallet *domain.WalletConnection) error {
	query := `
		INSERT INTO wallet_connections (id, user_id, address, chain_type, wallet_type, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING connected_at
	`
	err := r.db.QueryRow(ctx, query,
		wallet.ID, wallet.UserID, wallet.Address, wallet.ChainType, wallet.WalletType, wallet.Status,
	).Scan(&wallet.ConnectedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicatePending
		}
		return err
	}
	return nil
}

func (r *PostgresRepository) FindWalletConnectionByID(ctx context.Context, id uuid.UUID) (*domain.WalletConnection, error) {
	var w domain.WalletConnection
	query := `
		SELECT id, user_id, address, chain_type, wallet_type, status, connected_at, validated_at, validator_id
		FROM wallet_connections
		WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, id).Scan(
		&w.ID, &w.UserID, &w.Address, &w.ChainType, &w.WalletType, &w.Status,
		&w.ConnectedAt, &w.ValidatedAt, &w.ValidatorID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return &w, nil
}

func (r *PostgresRepository) ListWalletConnectionsByUser(ctx context.Context, userID uuid.UUID) ([]domain.WalletConnection, error) {
	query := `
		SELECT id, user_id, address, chain_type, wallet_type, status, connected_at, validated_at, validator_id
		FROM wallet_connections
		WHERE user_id = $1
		ORDER BY connected_at DESC
	`
	return r.scanWalletRows(ctx, query, userID)
}

func (r *PostgresRepository) ListPendingWalletConnections(ctx context.Context) ([]domain.WalletConnection, error) {
	query := `
		SELECT id, user_id, address, chain_type, wallet_type, status, connected_at, validated_at, validator_id
		FROM wallet_connections
		WHERE status = 'pending'
		ORDER BY connected_at ASC
	`
	return r.scanWalletRows(ctx, query)
}

func (r *PostgresRepository) scanWalletRows(ctx context.Context, query string, args ...any) ([]domain.WalletConnection, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var wallets []domain.WalletConnection
	for rows.Next() {
		var w domain.WalletConnection
		if err := rows.Scan(
			&w.ID, &w.UserID, &w.Address, &w.ChainType, &w.WalletType, &w.Status,
			&w.ConnectedAt, &w.ValidatedAt, &w.ValidatorID,
		); err != nil {
			return nil, err
		}
		wallets = append(wallets, w)
	}
	return wallets, rows.Err()
}

// TransitionWalletStatus moves a wallet out of pending and appends the history
// entry in the same transaction. Re-applying an already-applied transition
// returns the stored row untouched so retried admin actions are harmless.
// Balances are deliberately left alone here: rejecting a previously validated
// wallet never claws back credited funds.
func (r *PostgresRepository) TransitionWalletStatus(ctx context.Context, walletID uuid.UUID, to domain.WalletStatus, actorID uuid.UUID, notes *string) (*domain.WalletConnection, bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx)

	var w domain.WalletConnection
	err = tx.QueryRow(ctx, `
		SELECT id, user_id, address, chain_type, wallet_type, status, connected_at, validated_at, validator_id
		FROM wallet_connections
		WHERE id = $1
		FOR UPDATE
	`, walletID).Scan(
		&w.ID, &w.UserID, &w.Address, &w.ChainType, &w.WalletType, &w.Status,
		&w.ConnectedAt, &w.ValidatedAt, &w.ValidatorID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, ErrWalletNotFound
		}
		return nil, false, err
	}

	if w.Status == to {
		// Already applied; nothing to write.
		return &w, false, nil
	}
	if w.Status.Terminal() || !domain.WalletTransitionAllowed(w.Status, to) {
		return &w, false, ErrInvalidState
	}

	from := w.Status
	err = tx.QueryRow(ctx, `
		UPDATE wallet_connections
		SET status = $1, validated_at = NOW(), validator_id = $2
		WHERE id = $3
		RETURNING status, validated_at, validator_id
	`, to, actorID, walletID).Scan(&w.Status, &w.ValidatedAt, &w.ValidatorID)
	if err != nil {
		return nil, false, err
	}

	if err := appendAuditEntryTx(ctx, tx, &domain.ValidationHistoryEntry{
		ID:          uuid.New(),
		SubjectType: domain.SubjectWallet,
		SubjectID:   walletID,
		FromStatus:  string(from),
		ToStatus:    string(to),
		ActorID:     actorID,
		Notes:       notes,
	}); err != nil {
		return nil, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return &w, true, nil
}

// HasValidatedWallet reports whether the user has at least one validated
// wallet connection.
func (r *PostgresRepository) HasValidatedWallet(ctx context.Context, userID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM wallet_connections WHERE user_id = $1 AND status = 'validated')`,
		userID,
	).Scan(&exists)
	return exists, err
}

// CreateKycDocument inserts a pending KYC document. The partial unique index
// on (user_id, document_type) WHERE status = 'pending' rejects a second
// in-flight document of the same type.
func (r *PostgresRepository) CreateKycDocument(ctx context.Context, doc *domain.KycDocument) error {
	query := `
		INSERT INTO kyc_documents (id, user_id, document_type, document_number, front_ref, back_ref, selfie_ref, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING submitted_at
	`
	err := r.db.QueryRow(ctx, query,
		doc.ID, doc.UserID, doc.DocumentType, doc.DocumentNumber,
		doc.FrontRef, doc.BackRef, doc.SelfieRef, doc.Status,
	).Scan(&doc.SubmittedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicatePending
		}
		return err
	}
	return nil
}

func (r *PostgresRepository) FindKycDocumentByID(ctx context.Context, id uuid.UUID) (*domain.KycDocument, error) {
	var d domain.KycDocument
	query := `
		SELECT id, user_id, document_type, document_number, front_ref, back_ref, selfie_ref,
		       status, submitted_at, reviewed_at, reviewer_id, rejection_reason
		FROM kyc_documents
		WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, id).Scan(
		&d.ID, &d.UserID, &d.DocumentType, &d.DocumentNumber, &d.FrontRef, &d.BackRef, &d.SelfieRef,
		&d.Status, &d.SubmittedAt, &d.ReviewedAt, &d.ReviewerID, &d.RejectionReason,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (r *PostgresRepository) ListKycDocumentsByUser(ctx context.Context, userID uuid.UUID) ([]domain.KycDocument, error) {
	query := `
		SELECT id, user_id, document_type, document_number, front_ref, back_ref, selfie_ref,
		       status, submitted_at, reviewed_at, reviewer_id, rejection_reason
		FROM kyc_documents
		WHERE user_id = $1
		ORDER BY submitted_at DESC
	`
	return r.scanKycRows(ctx, query, userID)
}

func (r *PostgresRepository) ListPendingKycDocuments(ctx context.Context) ([]domain.KycDocument, error) {
	query := `
		SELECT id, user_id, document_type, document_number, front_ref, back_ref, selfie_ref,
		       status, submitted_at, reviewed_at, reviewer_id, rejection_reason
		FROM kyc_documents
		WHERE status = 'pending'
		ORDER BY submitted_at ASC
	`
	return r.scanKycRows(ctx, query)
}

func (r *PostgresRepository) scanKycRows(ctx context.Context, query string, args ...any) ([]domain.KycDocument, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []domain.KycDocument
	for rows.Next() {
		var d domain.KycDocument
		if err := rows.Scan(
			&d.ID, &d.UserID, &d.DocumentType, &d.DocumentNumber, &d.FrontRef, &d.BackRef, &d.SelfieRef,
			&d.Status, &d.SubmittedAt, &d.ReviewedAt, &d.ReviewerID, &d.RejectionReason,
		); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// TransitionKycStatus moves a KYC document out of pending, appends the history
// entry, and — when approving a user who already holds a validated wallet —
// provisions zero-value balance rows for initCoins, all in one transaction.
// The status change and the ledger initialization commit or fail together.
func (r *PostgresRepository) TransitionKycStatus(ctx context.Context, docID uuid.UUID, to domain.KycStatus, actorID uuid.UUID, notes *string, initCoins []string) (*domain.KycDocument, bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx)

	var d domain.KycDocument
	err = tx.QueryRow(ctx, `
		SELECT id, user_id, document_type, document_number, front_ref, back_ref, selfie_ref,
		       status, submitted_at, reviewed_at, reviewer_id, rejection_reason
		FROM kyc_documents
		WHERE id = $1
		FOR UPDATE
	`, docID).Scan(
		&d.ID, &d.UserID, &d.DocumentType, &d.DocumentNumber, &d.FrontRef, &d.BackRef, &d.SelfieRef,
		&d.Status, &d.SubmittedAt, &d.ReviewedAt, &d.ReviewerID, &d.RejectionReason,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, ErrDocumentNotFound
		}
		return nil, false, err
	}

	if d.Status == to {
		return &d, false, nil
	}
	if d.Status.Terminal() || !domain.KycTransitionAllowed(d.Status, to) {
		return &d, false, ErrInvalidState
	}

	from := d.Status
	var rejectionReason *string
	if to == domain.KycStatusRejected {
		rejectionReason = notes
	}
	err = tx.QueryRow(ctx, `
		UPDATE kyc_documents
		SET status = $1, reviewed_at = NOW(), reviewer_id = $2, rejection_reason = $3
		WHERE id = $4
		RETURNING status, reviewed_at, reviewer_id, rejection_reason
	`, to, actorID, rejectionReason, docID).Scan(&d.Status, &d.ReviewedAt, &d.ReviewerID, &d.RejectionReason)
	if err != nil {
		return nil, false, err
	}

	if err := appendAuditEntryTx(ctx, tx, &domain.ValidationHistoryEntry{
		ID:          uuid.New(),
		SubjectType: domain.SubjectKyc,
		SubjectID:   docID,
		FromStatus:  string(from),
		ToStatus:    string(to),
		ActorID:     actorID,
		Notes:       notes,
	}); err != nil {
		return nil, false, err
	}

	if to == domain.KycStatusApproved && len(initCoins) > 0 {
		var hasWallet bool
		err = tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM wallet_connections WHERE user_id = $1 AND status = 'validated')`,
			d.UserID,
		).Scan(&hasWallet)
		if err != nil {
			return nil, false, err
		}
		if hasWallet {
			if err := initCoinBalancesTx(ctx, tx, d.UserID, initCoins, actorID); err != nil {
				return nil, false, err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return &d, true, nil
}

// initCoinBalancesTx inserts zero-value rows for any coin the user does not
// already hold. ON CONFLICT DO NOTHING keeps existing credits intact when an
// approval is replayed.
func initCoinBalancesTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, coins []string, actorID uuid.UUID) error {
	for _, coin := range coins {
		_, err := tx.Exec(ctx, `
			INSERT INTO coin_balances (id, user_id, coin_symbol, balance, updated_by)
			VALUES ($1, $2, $3, 0, $4)
			ON CONFLICT (user_id, coin_symbol) DO NOTHING
		`, uuid.New(), userID, coin, actorID)
		if err != nil {
			return fmt.Errorf("initializing %s balance: %w", coin, err)
		}
	}
	return nil
}

// AppendAuditEntry writes a single history entry outside any composite
// transaction.
func (r *PostgresRepository) AppendAuditEntry(ctx context.Context, entry *domain.ValidationHistoryEntry) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := appendAuditEntryTx(ctx, tx, entry); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// appendAuditEntryTx inserts a history entry inside the caller's transaction.
// The BIGSERIAL seq column gives the trail its stable order even when entries
// share a timestamp.
func appendAuditEntryTx(ctx context.Context, tx pgx.Tx, entry *domain.ValidationHistoryEntry) error {
	return tx.QueryRow(ctx, `
		INSERT INTO validation_history (id, subject_type, subject_id, from_status, to_status, actor_id, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING seq, created_at
	`, entry.ID, entry.SubjectType, entry.SubjectID, entry.FromStatus, entry.ToStatus, entry.ActorID, entry.Notes,
	).Scan(&entry.Seq, &entry.CreatedAt)
}

// HistoryFor returns the full lifecycle of a subject in append order.
func (r *PostgresRepository) HistoryFor(ctx context.Context, subjectType domain.SubjectType, subjectID uuid.UUID) ([]domain.ValidationHistoryEntry, error) {
	query := `
		SELECT id, seq, subject_type, subject_id, from_status, to_status, actor_id, notes, created_at
		FROM validation_history
		WHERE subject_type = $1 AND subject_id = $2
		ORDER BY seq ASC
	`
	rows, err := r.db.Query(ctx, query, subjectType, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.ValidationHistoryEntry
	for rows.Next() {
		var e domain.ValidationHistoryEntry
		if err := rows.Scan(
			&e.ID, &e.Seq, &e.SubjectType, &e.SubjectID, &e.FromStatus, &e.ToStatus,
			&e.ActorID, &e.Notes, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
