/**
 * @description
 * This file defines the wallet connection entity and its status lifecycle.
 * A wallet connection is a user's claim over an on-chain address; it stays
 * `pending` until an admin validates or rejects it. Terminal records are
 * immutable — re-submission creates a new row.
 *
 * @notes
 * - Address format rules are kept in one table per chain so legality is not
 *   re-derived ad hoc at call sites.
 */

package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// WalletStatus is the closed set of wallet connection states.
type WalletStatus string

const (
	WalletStatusPending   WalletStatus = "pending"
	WalletStatusValidated WalletStatus = "validated"
	WalletStatusRejected  WalletStatus = "rejected"
)

// Terminal reports whether the status admits no further transition.
func (s WalletStatus) Terminal() bool {
	return s == WalletStatusValidated || s == WalletStatusRejected
}

// WalletConnection maps to the `wallet_connections` table.
type WalletConnection struct {
	ID          uuid.UUID    `json:"id"`
	UserID      uuid.UUID    `json:"user_id"`
	Address     string       `json:"address"`
	ChainType   string       `json:"chain_type"`
	WalletType  string       `json:"wallet_type"`
	Status      WalletStatus `json:"status"`
	ConnectedAt time.Time    `json:"connected_at"`
	ValidatedAt *time.Time   `json:"validated_at,omitempty"`
	ValidatorID *uuid.UUID   `json:"validator_id,omitempty"`
}

// SubmitWalletRequest is the DTO for incoming wallet connection submissions.
type SubmitWalletRequest struct {
	Address    string `json:"address"`
	ChainType  string `json:"chain_type"`
	WalletType string `json:"wallet_type"`
}

// addressPatterns maps a chain type to the address format it accepts.
var addressPatterns = map[string]*regexp.Regexp{
	"ethereum": regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`),
	"bitcoin":  regexp.MustCompile(`^(1|3)[a-km-zA-HJ-NP-Z1-9]{25,34}$|^bc1[ac-hj-np-z02-9]{11,87}$`),
	"solana":   regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`),
	"tron":     regexp.MustCompile(`^T[1-9A-HJ-NP-Za-km-z]{33}$`),
}

// ValidAddress reports whether the address matches the declared chain's
// format. Unknown chains are rejected outright so that typos in chain_type
// cannot bypass validation.
func ValidAddress(chainType, address string) bool {
	pattern, ok := addressPatterns[strings.ToLower(strings.TrimSpace(chainType))]
	if !ok {
		return false
	}
	return pattern.MatchString(strings.TrimSpace(address))
}

// SupportedChains returns the chain types with a registered address format.
func SupportedChains() []string {
	chains := make([]string, 0, len(addressPatterns))
	for chain := range addressPatterns {
		chains = append(chains, chain)
	}
	return chains
}
