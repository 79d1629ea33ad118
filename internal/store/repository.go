/**
 * @description
 * This file defines the `Repository` interface: the contract for all data
 * access needed by the custody pipeline. The interface keeps business logic
 * independent of PostgreSQL and lets tests stub persistence with in-memory
 * fakes.
 *
 * Composite methods (status transition + history append, approval + debit)
 * exist because those steps must commit or fail together; the service layer
 * never stitches multi-row atomicity out of single-row calls.
 *
 * @dependencies
 * - github.com/google/uuid: Entity identifiers.
 * - github.com/shopspring/decimal: Ledger amounts.
 * - internal/domain: Domain models.
 */

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hackkaliboi/ofs-sub001/internal/domain"
)

var (
	ErrWalletNotFound     = errors.New("wallet connection not found")
	ErrDocumentNotFound   = errors.New("kyc document not found")
	ErrBalanceNotFound    = errors.New("coin balance not found")
	ErrWithdrawalNotFound = errors.New("withdrawal request not found")

	// ErrDuplicatePending signals a second non-terminal row for a key that
	// allows exactly one (user+address for wallets, user+document_type for
	// KYC documents).
	ErrDuplicatePending = errors.New("a pending record already exists")

	// ErrInvalidState signals a compare-and-set that found the row in a state
	// the requested transition does not start from.
	ErrInvalidState = errors.New("record is not in a state that permits this transition")

	// ErrConcurrentModification signals that another writer won the race for
	// the same row; safe to retry after re-reading.
	ErrConcurrentModification = errors.New("record was modified concurrently")

	ErrInsufficientBalance = errors.New("insufficient balance")
)

// InsufficientBalanceError carries the current balance so callers can surface
// it for correction, per the error-handling contract.
type InsufficientBalanceError struct {
	CoinSymbol string
	Available  decimal.Decimal
	Requested  decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient %s balance: have %s, need %s",
		e.CoinSymbol, e.Available.String(), e.Requested.String())
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// WithdrawalApprovalOutcome reports what the atomic approval transaction did.
type WithdrawalApprovalOutcome struct {
	Request *domain.WithdrawalRequest
	// Debited is true when the ledger debit succeeded and the request moved
	// to processing. False means the balance check lost a race and the
	// request was marked failed with the reason recorded.
	Debited bool
}

// Repository defines the persistence operations for the custody pipeline.
type Repository interface {
	// Wallet connections
	CreateWalletConnection(ctx context.Context, wallet *domain.WalletConnection) error
	FindWalletConnectionByID(ctx context.Context, id uuid.UUID) (*domain.WalletConnection, error)
	ListWalletConnectionsByUser(ctx context.Context, userID uuid.UUID) ([]domain.WalletConnection, error)
	ListPendingWalletConnections(ctx context.Context) ([]domain.WalletConnection, error)
	// TransitionWalletStatus compare-and-sets the wallet status and appends
	// the history entry in one transaction. A wallet already in `to` is
	// returned unchanged with appended=false (idempotent retry).
	TransitionWalletStatus(ctx context.Context, walletID uuid.UUID, to domain.WalletStatus, actorID uuid.UUID, notes *string) (*domain.WalletConnection, bool, error)

	// KYC documents
	CreateKycDocument(ctx context.Context, doc *domain.KycDocument) error
	FindKycDocumentByID(ctx context.Context, id uuid.UUID) (*domain.KycDocument, error)
	ListKycDocumentsByUser(ctx context.Context, userID uuid.UUID) ([]domain.KycDocument, error)
	ListPendingKycDocuments(ctx context.Context) ([]domain.KycDocument, error)
	// TransitionKycStatus compare-and-sets the document status and appends the
	// history entry in one transaction. When `to` is approved and initCoins is
	// non-empty, zero-value balance rows are created for any coin the user does
	// not already hold, provided the user has a validated wallet — all inside
	// the same transaction, so approval and ledger initialization commit or
	// fail together.
	TransitionKycStatus(ctx context.Context, docID uuid.UUID, to domain.KycStatus, actorID uuid.UUID, notes *string, initCoins []string) (*domain.KycDocument, bool, error)
	HasValidatedWallet(ctx context.Context, userID uuid.UUID) (bool, error)

	// Balance ledger
	ListCoinBalances(ctx context.Context, userID uuid.UUID) ([]domain.CoinBalance, error)
	GetCoinBalance(ctx context.Context, userID uuid.UUID, coinSymbol string) (*domain.CoinBalance, error)
	CreditBalance(ctx context.Context, userID uuid.UUID, coinSymbol string, amount decimal.Decimal, actorID uuid.UUID) (*domain.CoinBalance, error)
	DebitBalance(ctx context.Context, userID uuid.UUID, coinSymbol string, amount decimal.Decimal, actorID uuid.UUID) (*domain.CoinBalance, error)
	// SetBalance applies an absolute value and appends the audit entry in the
	// same transaction.
	SetBalance(ctx context.Context, userID uuid.UUID, coinSymbol string, value decimal.Decimal, actorID uuid.UUID, notes *string) (*domain.CoinBalance, error)

	// Withdrawal requests
	CreateWithdrawalRequest(ctx context.Context, req *domain.WithdrawalRequest) error
	FindWithdrawalRequestByID(ctx context.Context, id uuid.UUID) (*domain.WithdrawalRequest, error)
	ListWithdrawalRequestsByUser(ctx context.Context, userID uuid.UUID) ([]domain.WithdrawalRequest, error)
	ListWithdrawalRequestsByStatus(ctx context.Context, status domain.WithdrawalStatus) ([]domain.WithdrawalRequest, error)
	// ApproveWithdrawal locks the request, moves pending → processing, debits
	// the ledger, and appends the audit entry in one transaction. If the
	// balance check fails under the lock the request is instead marked failed
	// with the reason recorded, and the outcome reports Debited=false.
	ApproveWithdrawal(ctx context.Context, requestID uuid.UUID, actorID uuid.UUID) (*WithdrawalApprovalOutcome, error)
	CompleteWithdrawal(ctx context.Context, requestID uuid.UUID, actorID uuid.UUID, transactionRef string) (*domain.WithdrawalRequest, error)
	RejectWithdrawal(ctx context.Context, requestID uuid.UUID, actorID uuid.UUID, notes string) (*domain.WithdrawalRequest, error)

	// Audit trail — append and read only; there is no update or delete.
	AppendAuditEntry(ctx context.Context, entry *domain.ValidationHistoryEntry) error
	HistoryFor(ctx context.Context, subjectType domain.SubjectType, subjectID uuid.UUID) ([]domain.ValidationHistoryEntry, error)
}
