/**
 * @description
 * Wallet registry: intake and listing of wallet connection claims. A
 * submission is validated against the declared chain's address format before
 * any write, and the partial unique index guarantees at most one pending
 * claim per (user, address) even under concurrent submissions.
 */

package app

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackkaliboi/ofs-sub001/internal/domain"
)

// SubmitWallet registers a wallet connection claim for the user. The record
// starts pending and waits for an admin validation transition. A
// `wallet.submitted` event is published after the row commits.
func (s *Service) SubmitWallet(ctx context.Context, userID uuid.UUID, req domain.SubmitWalletRequest) (*domain.WalletConnection, error) {
	address := strings.TrimSpace(req.Address)
	chainType := strings.ToLower(strings.TrimSpace(req.ChainType))

	if !domain.ValidAddress(chainType, address) {
		return nil, ErrInvalidAddress
	}

	wallet := &domain.WalletConnection{
		ID:         uuid.New(),
		UserID:     userID,
		Address:    address,
		ChainType:  chainType,
		WalletType: strings.TrimSpace(req.WalletType),
		Status:     domain.WalletStatusPending,
	}
	if err := s.repo.CreateWalletConnection(ctx, wallet); err != nil {
		return nil, err
	}

	s.publish(ctx, domain.EventWalletSubmitted, domain.WalletSubmittedEvent{
		WalletID:  wallet.ID,
		UserID:    wallet.UserID,
		Address:   wallet.Address,
		ChainType: wallet.ChainType,
		Timestamp: time.Now().UTC(),
	})

	return wallet, nil
}

// ListWalletsForUser returns the user's own wallet connections, newest first.
func (s *Service) ListWalletsForUser(ctx context.Context, userID uuid.UUID) ([]domain.WalletConnection, error) {
	return s.repo.ListWalletConnectionsByUser(ctx, userID)
}

// ListPendingWallets returns the admin review queue, oldest first.
func (s *Service) ListPendingWallets(ctx context.Context, actor domain.Actor) ([]domain.WalletConnection, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	return s.repo.ListPendingWalletConnections(ctx)
}
