/**
 * @description
 * This file defines the validation state machine vocabulary shared by wallets
 * and KYC documents, plus the append-only history entry that records every
 * transition. Transition legality lives in one table here instead of being
 * re-checked ad hoc in each handler.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubjectType names the kind of record an audit entry or transition targets.
type SubjectType string

const (
	SubjectWallet     SubjectType = "wallet"
	SubjectKyc        SubjectType = "kyc"
	SubjectBalance    SubjectType = "balance"
	SubjectWithdrawal SubjectType = "withdrawal"
)

// ValidSubjectType reports whether s is a known subject type.
func ValidSubjectType(s SubjectType) bool {
	switch s {
	case SubjectWallet, SubjectKyc, SubjectBalance, SubjectWithdrawal:
		return true
	}
	return false
}

// walletTransitions and kycTransitions encode the only legal moves for each
// subject. Everything else is InvalidTransition.
var walletTransitions = map[WalletStatus][]WalletStatus{
	WalletStatusPending: {WalletStatusValidated, WalletStatusRejected},
}

var kycTransitions = map[KycStatus][]KycStatus{
	KycStatusPending: {KycStatusApproved, KycStatusRejected},
}

// WalletTransitionAllowed reports whether from → to is a legal wallet move.
func WalletTransitionAllowed(from, to WalletStatus) bool {
	for _, next := range walletTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// KycTransitionAllowed reports whether from → to is a legal KYC move.
func KycTransitionAllowed(from, to KycStatus) bool {
	for _, next := range kycTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidationHistoryEntry maps to the `validation_history` table. Entries are
// append-only: no update or delete path exists anywhere in the service. Seq is
// assigned by the database and is the authoritative ordering under concurrent
// writes; CreatedAt is for display.
type ValidationHistoryEntry struct {
	ID          uuid.UUID   `json:"id"`
	Seq         int64       `json:"seq"`
	SubjectType SubjectType `json:"subject_type"`
	SubjectID   uuid.UUID   `json:"subject_id"`
	FromStatus  string      `json:"from_status"`
	ToStatus    string      `json:"to_status"`
	ActorID     uuid.UUID   `json:"actor_id"`
	Notes       *string     `json:"notes,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// TransitionRequest is the DTO for admin-driven state machine transitions.
type TransitionRequest struct {
	SubjectType SubjectType `json:"subject_type"`
	SubjectID   uuid.UUID   `json:"subject_id"`
	NewStatus   string      `json:"new_status"`
	Notes       *string     `json:"notes,omitempty"`
}
