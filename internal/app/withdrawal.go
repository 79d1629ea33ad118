/**
 * @description
 * Withdrawal processor: request intake with a balance pre-check, admin
 * approval that debits the ledger atomically with the status move, completion
 * with a settlement reference, and rejection with persisted notes.
 *
 * The pre-check at request time does not debit — funds are conceptually
 * reserved but only leave the spendable balance inside the approval
 * transaction. If the balance moved between request and approval, the
 * approval marks the request failed with the reason recorded instead of
 * silently succeeding.
 */

package app

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hackkaliboi/ofs-sub001/internal/domain"
	"github.com/hackkaliboi/ofs-sub001/internal/store"
)

// RequestWithdrawal creates a pending withdrawal after checking the user's
// current balance covers the amount. No record is created on an insufficient
// balance — the error carries the balance the user actually has.
func (s *Service) RequestWithdrawal(ctx context.Context, userID uuid.UUID, req domain.SubmitWithdrawalRequest) (*domain.WithdrawalRequest, error) {
	coinSymbol := normalizeCoin(req.CoinSymbol)
	if !s.coinSupported(coinSymbol) {
		return nil, ErrUnsupportedCoin
	}
	if req.Amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	destination := strings.TrimSpace(req.Destination)
	if destination == "" {
		return nil, ErrInvalidAddress
	}

	if err := s.consumeWithdrawalRateLimit(ctx, userID); err != nil {
		return nil, err
	}

	balance, err := s.repo.GetCoinBalance(ctx, userID, coinSymbol)
	if err != nil {
		if errors.Is(err, store.ErrBalanceNotFound) {
			// Ledger not provisioned yet; the user holds nothing to withdraw.
			return nil, &store.InsufficientBalanceError{
				CoinSymbol: coinSymbol,
				Available:  decimal.Zero,
				Requested:  req.Amount,
			}
		}
		return nil, err
	}
	if balance.Balance.LessThan(req.Amount) {
		return nil, &store.InsufficientBalanceError{
			CoinSymbol: coinSymbol,
			Available:  balance.Balance,
			Requested:  req.Amount,
		}
	}

	withdrawal := &domain.WithdrawalRequest{
		ID:          uuid.New(),
		UserID:      userID,
		Amount:      req.Amount,
		CoinSymbol:  coinSymbol,
		Destination: destination,
		Status:      domain.WithdrawalStatusPending,
	}
	if err := s.repo.CreateWithdrawalRequest(ctx, withdrawal); err != nil {
		return nil, err
	}

	s.publishWithdrawal(ctx, domain.EventWithdrawalRequested, withdrawal)
	return withdrawal, nil
}

// ApproveWithdrawal moves a pending request to processing and debits the
// ledger in one transaction. When the debit loses to a concurrent balance
// change the returned request is in `failed` with the reason recorded; the
// caller distinguishes outcomes by the request status.
func (s *Service) ApproveWithdrawal(ctx context.Context, actor domain.Actor, requestID uuid.UUID) (*domain.WithdrawalRequest, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	outcome, err := s.repo.ApproveWithdrawal(ctx, requestID, actor.ID)
	if err != nil {
		if errors.Is(err, store.ErrInvalidState) || errors.Is(err, store.ErrConcurrentModification) {
			return nil, ErrInvalidTransition
		}
		return nil, err
	}

	s.publishWithdrawal(ctx, domain.EventWithdrawalUpdated, outcome.Request)
	return outcome.Request, nil
}

// CompleteWithdrawal finalizes a processing request with its settlement
// reference.
func (s *Service) CompleteWithdrawal(ctx context.Context, actor domain.Actor, requestID uuid.UUID, transactionRef string) (*domain.WithdrawalRequest, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	transactionRef = strings.TrimSpace(transactionRef)
	if transactionRef == "" {
		return nil, ErrMissingTransactionRef
	}

	req, err := s.repo.CompleteWithdrawal(ctx, requestID, actor.ID, transactionRef)
	if err != nil {
		if errors.Is(err, store.ErrInvalidState) {
			return nil, ErrInvalidTransition
		}
		return nil, err
	}

	s.publishWithdrawal(ctx, domain.EventWithdrawalUpdated, req)
	return req, nil
}

// RejectWithdrawal declines a pending request without touching the ledger.
// Notes are mandatory: the rejection reason is persisted on the request, not
// only logged.
func (s *Service) RejectWithdrawal(ctx context.Context, actor domain.Actor, requestID uuid.UUID, notes string) (*domain.WithdrawalRequest, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return nil, ErrMissingRejectionNotes
	}

	req, err := s.repo.RejectWithdrawal(ctx, requestID, actor.ID, notes)
	if err != nil {
		if errors.Is(err, store.ErrInvalidState) {
			return nil, ErrInvalidTransition
		}
		return nil, err
	}

	s.publishWithdrawal(ctx, domain.EventWithdrawalUpdated, req)
	return req, nil
}

// ListWithdrawalsForUser returns the user's own requests, newest first.
func (s *Service) ListWithdrawalsForUser(ctx context.Context, userID uuid.UUID) ([]domain.WithdrawalRequest, error) {
	return s.repo.ListWithdrawalRequestsByUser(ctx, userID)
}

// ListPendingWithdrawals returns the admin processing queue, oldest first.
func (s *Service) ListPendingWithdrawals(ctx context.Context, actor domain.Actor) ([]domain.WithdrawalRequest, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	return s.repo.ListWithdrawalRequestsByStatus(ctx, domain.WithdrawalStatusPending)
}

func (s *Service) consumeWithdrawalRateLimit(ctx context.Context, userID uuid.UUID) error {
	if s.withdrawalLimiter == nil || s.withdrawalLimitPerMinute <= 0 {
		return nil
	}
	count, retryAfter, err := s.withdrawalLimiter.ConsumeRateLimit(
		ctx, "withdrawal_request", userID.String(), s.withdrawalLimitPerMinute, time.Minute,
	)
	if err != nil {
		// The limiter is advisory; a broken limiter must not block withdrawals.
		log.Printf("level=warn component=withdrawals msg=\"rate limiter unavailable\" user_id=%s err=%v", userID, err)
		return nil
	}
	if count > s.withdrawalLimitPerMinute {
		return &RateLimitedError{RetryAfterSeconds: retryAfter}
	}
	return nil
}

func (s *Service) publishWithdrawal(ctx context.Context, routingKey string, req *domain.WithdrawalRequest) {
	s.publish(ctx, routingKey, domain.WithdrawalEvent{
		WithdrawalID: req.ID,
		UserID:       req.UserID,
		CoinSymbol:   req.CoinSymbol,
		Amount:       req.Amount,
		Status:       req.Status,
		Timestamp:    time.Now().UTC(),
	})
}
