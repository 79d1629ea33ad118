/**
 * @description
 * This file defines the withdrawal request entity and its linear lifecycle:
 *
 *   pending → processing → completed | failed
 *   pending → rejected
 *
 * The ledger debit happens exactly at pending → processing, inside the same
 * transaction as the status move, so funds can never be spent twice between
 * approval and settlement.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WithdrawalStatus is the closed set of withdrawal request states.
type WithdrawalStatus string

const (
	WithdrawalStatusPending    WithdrawalStatus = "pending"
	WithdrawalStatusProcessing WithdrawalStatus = "processing"
	WithdrawalStatusCompleted  WithdrawalStatus = "completed"
	WithdrawalStatusRejected   WithdrawalStatus = "rejected"
	WithdrawalStatusFailed     WithdrawalStatus = "failed"
)

// Terminal reports whether the status admits no further transition.
func (s WithdrawalStatus) Terminal() bool {
	switch s {
	case WithdrawalStatusCompleted, WithdrawalStatusRejected, WithdrawalStatusFailed:
		return true
	}
	return false
}

// WithdrawalRequest maps to the `withdrawal_requests` table.
type WithdrawalRequest struct {
	ID             uuid.UUID        `json:"id"`
	UserID         uuid.UUID        `json:"user_id"`
	Amount         decimal.Decimal  `json:"amount"`
	CoinSymbol     string           `json:"coin_symbol"`
	Destination    string           `json:"destination"`
	Status         WithdrawalStatus `json:"status"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
	CompletedAt    *time.Time       `json:"completed_at,omitempty"`
	TransactionRef *string          `json:"transaction_ref,omitempty"`
	Notes          *string          `json:"notes,omitempty"`
}

// SubmitWithdrawalRequest is the DTO for incoming withdrawal submissions.
type SubmitWithdrawalRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	CoinSymbol  string          `json:"coin_symbol"`
	Destination string          `json:"destination"`
}
