/**
 * @description
 * This file defines the `Service` struct that carries the custody pipeline's
 * business logic, plus the service-level error taxonomy. The concrete
 * workflows live in sibling files: wallet_registry.go, kyc_queue.go,
 * validation.go, ledger.go, withdrawal.go.
 *
 * Error taxonomy:
 * - validation errors (bad address, missing/oversized files, bad amounts) are
 *   rejected before any write;
 * - conflict errors (duplicate pending, invalid transition, concurrent
 *   modification) are retryable after re-reading state;
 * - ErrForbidden is never retryable with the same actor;
 * - resource errors (insufficient/negative balance) carry the current value.
 *
 * @dependencies
 * - internal/domain, internal/store: Models and persistence.
 * - pkg/rabbitmq: Advisory event publishing.
 */

package app

import (
	"context"
	"errors"
	"log"

	"github.com/hackkaliboi/ofs-sub001/internal/domain"
	"github.com/hackkaliboi/ofs-sub001/internal/store"
	"github.com/hackkaliboi/ofs-sub001/pkg/rabbitmq"
)

// EventExchange is the topic exchange all custody events are published to.
const EventExchange = "custody.events"

var (
	ErrForbidden           = errors.New("actor is not permitted to perform this operation")
	ErrInvalidAddress      = errors.New("address is not valid for the declared chain")
	ErrInvalidTransition   = errors.New("transition is not legal from the subject's current status")
	ErrMissingRequiredFile = errors.New("front image reference is required")
	ErrUnsupportedFileType = errors.New("file type is not supported")
	ErrFileTooLarge        = errors.New("file exceeds the maximum allowed size")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrNegativeBalance     = errors.New("balance value must not be negative")
	ErrUnsupportedCoin     = errors.New("coin is not supported")
	ErrUnknownSubjectType  = errors.New("unknown subject type")

	ErrMissingTransactionRef = errors.New("transaction reference is required to complete a withdrawal")
	ErrMissingRejectionNotes = errors.New("rejection notes are required")
)

// RateLimitedError reports a throttled withdrawal submission.
type RateLimitedError struct {
	RetryAfterSeconds int
}

func (e *RateLimitedError) Error() string {
	return "too many withdrawal requests; retry later"
}

// Service implements the custody approval pipeline: wallet registry, KYC
// review queue, validation state machine, balance ledger, withdrawal
// processing, and audit queries.
type Service struct {
	repo           store.Repository
	events         rabbitmq.Publisher
	supportedCoins []string
	maxKycFileSize int64

	withdrawalLimiter        RateLimiter
	withdrawalLimitPerMinute int
}

// NewService creates the custody service. events may be nil when the broker is
// unavailable; publishing then degrades to a logged no-op.
func NewService(repo store.Repository, events rabbitmq.Publisher, supportedCoins []string, maxKycFileSize int64) *Service {
	if maxKycFileSize <= 0 {
		maxKycFileSize = domain.MaxKycFileSizeBytes
	}
	return &Service{
		repo:           repo,
		events:         events,
		supportedCoins: supportedCoins,
		maxKycFileSize: maxKycFileSize,
	}
}

// SetWithdrawalRateLimiter wires the optional distributed limiter for
// withdrawal submissions.
func (s *Service) SetWithdrawalRateLimiter(limiter RateLimiter, perMinute int) {
	s.withdrawalLimiter = limiter
	s.withdrawalLimitPerMinute = perMinute
}

// SupportedCoins returns the coin symbols the ledger provisions on approval.
func (s *Service) SupportedCoins() []string {
	return s.supportedCoins
}

func (s *Service) coinSupported(symbol string) bool {
	for _, coin := range s.supportedCoins {
		if coin == symbol {
			return true
		}
	}
	return false
}

// publish sends an event to the custody exchange. Failures are logged and
// swallowed: notification delivery is advisory and never rolls back the
// transition that triggered it.
func (s *Service) publish(ctx context.Context, routingKey string, payload any) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, EventExchange, routingKey, payload); err != nil {
		log.Printf("level=warn component=service msg=\"event publish failed\" routing_key=%s err=%v", routingKey, err)
	}
}
