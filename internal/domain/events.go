package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event routing keys published to the custody events exchange. Delivery is
// advisory: viewers subscribe, nothing in the pipeline depends on it.
const (
	EventWalletSubmitted      = "wallet.submitted"
	EventKycSubmitted         = "kyc.submitted"
	EventValidationTransition = "validation.transition"
	EventWithdrawalRequested  = "withdrawal.requested"
	EventWithdrawalUpdated    = "withdrawal.updated"
)

// WalletSubmittedEvent is published after a wallet connection row commits.
type WalletSubmittedEvent struct {
	WalletID  uuid.UUID `json:"wallet_id"`
	UserID    uuid.UUID `json:"user_id"`
	Address   string    `json:"address"`
	ChainType string    `json:"chain_type"`
	Timestamp time.Time `json:"timestamp"`
}

// KycSubmittedEvent is published after a KYC document row commits.
type KycSubmittedEvent struct {
	DocumentID   uuid.UUID `json:"document_id"`
	UserID       uuid.UUID `json:"user_id"`
	DocumentType string    `json:"document_type"`
	Timestamp    time.Time `json:"timestamp"`
}

// ValidationTransitionEvent is published after every committed state machine
// transition, for wallets and KYC documents alike.
type ValidationTransitionEvent struct {
	SubjectType SubjectType `json:"subject_type"`
	SubjectID   uuid.UUID   `json:"subject_id"`
	FromStatus  string      `json:"from_status"`
	ToStatus    string      `json:"to_status"`
	ActorID     uuid.UUID   `json:"actor_id"`
	Timestamp   time.Time   `json:"timestamp"`
}

// WithdrawalEvent is published on withdrawal creation and on every status move.
type WithdrawalEvent struct {
	WithdrawalID uuid.UUID        `json:"withdrawal_id"`
	UserID       uuid.UUID        `json:"user_id"`
	CoinSymbol   string           `json:"coin_symbol"`
	Amount       decimal.Decimal  `json:"amount"`
	Status       WithdrawalStatus `json:"status"`
	Timestamp    time.Time        `json:"timestamp"`
}
