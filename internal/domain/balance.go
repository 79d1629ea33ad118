/**
 * @description
 * This file defines the per-user, per-coin balance ledger entity. Amounts are
 * `shopspring/decimal` values backed by NUMERIC columns — crypto balances need
 * arbitrary precision, and floats are never acceptable for financial data.
 * A balance row exists only after the user's KYC is approved alongside a
 * validated wallet; the initialization writes zero-value rows for every
 * supported coin.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CoinBalance maps to the `coin_balances` table. One row per
// (user_id, coin_symbol); balance never goes negative.
type CoinBalance struct {
	ID          uuid.UUID       `json:"id"`
	UserID      uuid.UUID       `json:"user_id"`
	CoinSymbol  string          `json:"coin_symbol"`
	Balance     decimal.Decimal `json:"balance"`
	LastUpdated time.Time       `json:"last_updated"`
	UpdatedBy   uuid.UUID       `json:"updated_by"`
}

// BalanceSnapshot is the tagged result of a balance read. Degraded is set when
// the store could not be reached and no entries could be produced — the caller
// (presentation layer) decides how to render that, instead of this service
// substituting synthetic data.
type BalanceSnapshot struct {
	Entries  []CoinBalance `json:"entries"`
	Degraded bool          `json:"degraded"`
}

// BalanceMutationRequest is the DTO for admin ledger writes.
type BalanceMutationRequest struct {
	CoinSymbol string          `json:"coin_symbol"`
	Amount     decimal.Decimal `json:"amount"`
	Notes      *string         `json:"notes,omitempty"`
}
