/**
 * @description
 * Validation state machine: the single entry point for admin-driven status
 * transitions on wallets and KYC documents. Legality is taken from the
 * transition tables in internal/domain; the store applies the move, the
 * history append, and (for KYC approval with a validated wallet) the
 * zero-balance ledger initialization in one transaction.
 *
 * Idempotence: re-applying a transition a subject already completed returns
 * the stored record without a second history entry, so a retried admin action
 * can never double-write.
 */

package app

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hackkaliboi/ofs-sub001/internal/domain"
	"github.com/hackkaliboi/ofs-sub001/internal/store"
)

// TransitionOutcome is the result of a transition call; exactly one subject
// field is set, matching the request's subject type.
type TransitionOutcome struct {
	Wallet *domain.WalletConnection `json:"wallet,omitempty"`
	Kyc    *domain.KycDocument      `json:"kyc_document,omitempty"`
	// Applied is false when the call was an idempotent replay of a transition
	// the subject had already completed.
	Applied bool `json:"applied"`
}

// Transition drives the validation state machine for a wallet or KYC subject.
// Only admin actors may call it. Rejections should carry notes — they are the
// human-readable reason persisted with the subject and its history.
func (s *Service) Transition(ctx context.Context, actor domain.Actor, req domain.TransitionRequest) (*TransitionOutcome, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	switch req.SubjectType {
	case domain.SubjectWallet:
		return s.transitionWallet(ctx, actor, req)
	case domain.SubjectKyc:
		return s.transitionKyc(ctx, actor, req)
	case domain.SubjectBalance, domain.SubjectWithdrawal:
		// Balances mutate through the ledger operations and withdrawals
		// through their own lifecycle calls, not this state machine.
		return nil, ErrInvalidTransition
	default:
		return nil, ErrUnknownSubjectType
	}
}

func (s *Service) transitionWallet(ctx context.Context, actor domain.Actor, req domain.TransitionRequest) (*TransitionOutcome, error) {
	to := domain.WalletStatus(req.NewStatus)
	switch to {
	case domain.WalletStatusValidated, domain.WalletStatusRejected:
	default:
		return nil, ErrInvalidTransition
	}

	wallet, applied, err := s.repo.TransitionWalletStatus(ctx, req.SubjectID, to, actor.ID, req.Notes)
	if err != nil {
		if errors.Is(err, store.ErrInvalidState) {
			return nil, ErrInvalidTransition
		}
		return nil, err
	}

	if applied {
		s.publishTransition(ctx, domain.SubjectWallet, wallet.ID, string(domain.WalletStatusPending), string(to), actor.ID)
	}
	return &TransitionOutcome{Wallet: wallet, Applied: applied}, nil
}

func (s *Service) transitionKyc(ctx context.Context, actor domain.Actor, req domain.TransitionRequest) (*TransitionOutcome, error) {
	to := domain.KycStatus(req.NewStatus)
	switch to {
	case domain.KycStatusApproved, domain.KycStatusRejected:
	default:
		return nil, ErrInvalidTransition
	}

	var initCoins []string
	if to == domain.KycStatusApproved {
		initCoins = s.supportedCoins
	}

	doc, applied, err := s.repo.TransitionKycStatus(ctx, req.SubjectID, to, actor.ID, req.Notes, initCoins)
	if err != nil {
		if errors.Is(err, store.ErrInvalidState) {
			return nil, ErrInvalidTransition
		}
		return nil, err
	}

	if applied {
		s.publishTransition(ctx, domain.SubjectKyc, doc.ID, string(domain.KycStatusPending), string(to), actor.ID)
	}
	return &TransitionOutcome{Kyc: doc, Applied: applied}, nil
}

func (s *Service) publishTransition(ctx context.Context, subjectType domain.SubjectType, subjectID uuid.UUID, from, to string, actorID uuid.UUID) {
	s.publish(ctx, domain.EventValidationTransition, domain.ValidationTransitionEvent{
		SubjectType: subjectType,
		SubjectID:   subjectID,
		FromStatus:  from,
		ToStatus:    to,
		ActorID:     actorID,
		Timestamp:   time.Now().UTC(),
	})
}

// History returns the audit trail for a subject in append order. Admin only.
func (s *Service) History(ctx context.Context, actor domain.Actor, subjectType domain.SubjectType, subjectID uuid.UUID) ([]domain.ValidationHistoryEntry, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	if !domain.ValidSubjectType(subjectType) {
		return nil, ErrUnknownSubjectType
	}
	return s.repo.HistoryFor(ctx, subjectType, subjectID)
}
