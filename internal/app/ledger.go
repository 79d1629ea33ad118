/**
 * @description
 * Balance ledger operations. Direct mutations (credit, debit, absolute set)
 * are admin-only; the withdrawal processor debits through its own atomic
 * approval transaction in the store. Balances can never go negative: the
 * store's locked check-and-debit enforces it for debits, and SetBalance
 * rejects negative values before any write.
 */

package app

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hackkaliboi/ofs-sub001/internal/domain"
)

// Credit adds amount to the user's balance for the coin. Admin only; the
// target row must exist, which means the user has passed approval.
func (s *Service) Credit(ctx context.Context, actor domain.Actor, userID uuid.UUID, coinSymbol string, amount decimal.Decimal) (*domain.CoinBalance, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	coinSymbol = normalizeCoin(coinSymbol)
	if !s.coinSupported(coinSymbol) {
		return nil, ErrUnsupportedCoin
	}
	if amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	return s.repo.CreditBalance(ctx, userID, coinSymbol, amount, actor.ID)
}

// Debit subtracts amount from the user's balance for the coin. Admin only.
// Fails with the current balance attached when funds are short.
func (s *Service) Debit(ctx context.Context, actor domain.Actor, userID uuid.UUID, coinSymbol string, amount decimal.Decimal) (*domain.CoinBalance, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	coinSymbol = normalizeCoin(coinSymbol)
	if !s.coinSupported(coinSymbol) {
		return nil, ErrUnsupportedCoin
	}
	if amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	return s.repo.DebitBalance(ctx, userID, coinSymbol, amount, actor.ID)
}

// SetBalance applies an absolute value, used by admin tooling. Idempotent by
// construction; the audit entry records old and new values.
func (s *Service) SetBalance(ctx context.Context, actor domain.Actor, userID uuid.UUID, coinSymbol string, value decimal.Decimal, notes *string) (*domain.CoinBalance, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	coinSymbol = normalizeCoin(coinSymbol)
	if !s.coinSupported(coinSymbol) {
		return nil, ErrUnsupportedCoin
	}
	if value.Sign() < 0 {
		return nil, ErrNegativeBalance
	}
	return s.repo.SetBalance(ctx, userID, coinSymbol, value, actor.ID, notes)
}

// ListBalances returns the user's ledger rows as a tagged snapshot. A
// transient store failure yields Degraded=true with no entries rather than an
// error or synthetic data — the presentation layer decides how to render a
// degraded read.
func (s *Service) ListBalances(ctx context.Context, userID uuid.UUID) (*domain.BalanceSnapshot, error) {
	entries, err := s.repo.ListCoinBalances(ctx, userID)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		log.Printf("level=warn component=ledger msg=\"balance read degraded\" user_id=%s err=%v", userID, err)
		return &domain.BalanceSnapshot{Degraded: true}, nil
	}
	return &domain.BalanceSnapshot{Entries: entries}, nil
}

func normalizeCoin(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
