package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hackkaliboi/ofs-sub001/internal/domain"
	"github.com/hackkaliboi/ofs-sub001/internal/store"
)

type withdrawalRepoStub struct {
	store.Repository

	balance    decimal.Decimal
	hasBalance bool

	created   *domain.WithdrawalRequest
	createErr error

	approveOutcome *store.WithdrawalApprovalOutcome
	approveErr     error

	completed   *domain.WithdrawalRequest
	completeErr error

	rejected  *domain.WithdrawalRequest
	rejectErr error
}

func (s *withdrawalRepoStub) GetCoinBalance(ctx context.Context, userID uuid.UUID, coinSymbol string) (*domain.CoinBalance, error) {
	if !s.hasBalance {
		return nil, store.ErrBalanceNotFound
	}
	return &domain.CoinBalance{UserID: userID, CoinSymbol: coinSymbol, Balance: s.balance}, nil
}

func (s *withdrawalRepoStub) CreateWithdrawalRequest(ctx context.Context, req *domain.WithdrawalRequest) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.created = req
	return nil
}

func (s *withdrawalRepoStub) ApproveWithdrawal(ctx context.Context, requestID uuid.UUID, actorID uuid.UUID) (*store.WithdrawalApprovalOutcome, error) {
	if s.approveErr != nil {
		return nil, s.approveErr
	}
	return s.approveOutcome, nil
}

func (s *withdrawalRepoStub) CompleteWithdrawal(ctx context.Context, requestID uuid.UUID, actorID uuid.UUID, transactionRef string) (*domain.WithdrawalRequest, error) {
	if s.completeErr != nil {
		return nil, s.completeErr
	}
	return s.completed, nil
}

func (s *withdrawalRepoStub) RejectWithdrawal(ctx context.Context, requestID uuid.UUID, actorID uuid.UUID, notes string) (*domain.WithdrawalRequest, error) {
	if s.rejectErr != nil {
		return nil, s.rejectErr
	}
	s.rejected = &domain.WithdrawalRequest{ID: requestID, Status: domain.WithdrawalStatusRejected, Notes: &notes}
	return s.rejected, nil
}

// stubRateLimiter returns a fixed count, simulating a shared window counter.
type stubRateLimiter struct {
	count int
	err   error
	calls int
}

func (l *stubRateLimiter) ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (int, int, error) {
	l.calls++
	if l.err != nil {
		return 0, 0, l.err
	}
	return l.count, 30, nil
}

func TestRequestWithdrawalCreatesPending(t *testing.T) {
	repo := &withdrawalRepoStub{hasBalance: true, balance: decimal.NewFromInt(100)}
	publisher := &recordingPublisher{}
	svc := NewService(repo, publisher, testCoins(), 0)

	req, err := svc.RequestWithdrawal(context.Background(), uuid.New(), domain.SubmitWithdrawalRequest{
		Amount:      decimal.NewFromInt(40),
		CoinSymbol:  "btc",
		Destination: "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4",
	})
	if err != nil {
		t.Fatalf("RequestWithdrawal returned error: %v", err)
	}
	if req.Status != domain.WithdrawalStatusPending {
		t.Fatalf("expected pending status, got %s", req.Status)
	}
	if req.CoinSymbol != "BTC" {
		t.Fatalf("expected normalized coin symbol, got %q", req.CoinSymbol)
	}
	if repo.created == nil {
		t.Fatal("expected the request persisted")
	}
	if len(publisher.routingKeys) != 1 || publisher.routingKeys[0] != domain.EventWithdrawalRequested {
		t.Fatalf("expected one %s event, got %v", domain.EventWithdrawalRequested, publisher.routingKeys)
	}
}

func TestRequestWithdrawalValidatesInput(t *testing.T) {
	repo := &withdrawalRepoStub{hasBalance: true, balance: decimal.NewFromInt(100)}
	svc := NewService(repo, &recordingPublisher{}, testCoins(), 0)
	userID := uuid.New()

	if _, err := svc.RequestWithdrawal(context.Background(), userID, domain.SubmitWithdrawalRequest{
		Amount: decimal.NewFromInt(1), CoinSymbol: "XMR", Destination: "dest",
	}); !errors.Is(err, ErrUnsupportedCoin) {
		t.Fatalf("expected ErrUnsupportedCoin, got %v", err)
	}
	if _, err := svc.RequestWithdrawal(context.Background(), userID, domain.SubmitWithdrawalRequest{
		Amount: decimal.Zero, CoinSymbol: "BTC", Destination: "dest",
	}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := svc.RequestWithdrawal(context.Background(), userID, domain.SubmitWithdrawalRequest{
		Amount: decimal.NewFromInt(1), CoinSymbol: "BTC", Destination: "   ",
	}); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress for blank destination, got %v", err)
	}
}

func TestRequestWithdrawalInsufficientBalance(t *testing.T) {
	repo := &withdrawalRepoStub{hasBalance: true, balance: decimal.NewFromInt(5)}
	svc := NewService(repo, &recordingPublisher{}, testCoins(), 0)

	_, err := svc.RequestWithdrawal(context.Background(), uuid.New(), domain.SubmitWithdrawalRequest{
		Amount: decimal.NewFromInt(6), CoinSymbol: "BTC", Destination: "dest",
	})
	var insufficient *store.InsufficientBalanceError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientBalanceError, got %v", err)
	}
	if !insufficient.Available.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("expected available 5 in error, got %s", insufficient.Available)
	}
	if repo.created != nil {
		t.Fatal("no request should be persisted on insufficient balance")
	}
}

func TestRequestWithdrawalWithoutLedgerRowReportsZero(t *testing.T) {
	repo := &withdrawalRepoStub{hasBalance: false}
	svc := NewService(repo, &recordingPublisher{}, testCoins(), 0)

	_, err := svc.RequestWithdrawal(context.Background(), uuid.New(), domain.SubmitWithdrawalRequest{
		Amount: decimal.NewFromInt(1), CoinSymbol: "BTC", Destination: "dest",
	})
	var insufficient *store.InsufficientBalanceError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientBalanceError, got %v", err)
	}
	if !insufficient.Available.IsZero() {
		t.Fatalf("expected zero available, got %s", insufficient.Available)
	}
}

func TestRequestWithdrawalRateLimited(t *testing.T) {
	repo := &withdrawalRepoStub{hasBalance: true, balance: decimal.NewFromInt(100)}
	limiter := &stubRateLimiter{count: 11}
	svc := NewService(repo, &recordingPublisher{}, testCoins(), 0)
	svc.SetWithdrawalRateLimiter(limiter, 10)

	_, err := svc.RequestWithdrawal(context.Background(), uuid.New(), domain.SubmitWithdrawalRequest{
		Amount: decimal.NewFromInt(1), CoinSymbol: "BTC", Destination: "dest",
	})
	var limited *RateLimitedError
	if !errors.As(err, &limited) {
		t.Fatalf("expected RateLimitedError, got %v", err)
	}
	if limited.RetryAfterSeconds != 30 {
		t.Fatalf("expected retry-after 30, got %d", limited.RetryAfterSeconds)
	}
}

func TestRequestWithdrawalLimiterFailureIsAdvisory(t *testing.T) {
	repo := &withdrawalRepoStub{hasBalance: true, balance: decimal.NewFromInt(100)}
	limiter := &stubRateLimiter{err: errors.New("redis down")}
	svc := NewService(repo, &recordingPublisher{}, testCoins(), 0)
	svc.SetWithdrawalRateLimiter(limiter, 10)

	if _, err := svc.RequestWithdrawal(context.Background(), uuid.New(), domain.SubmitWithdrawalRequest{
		Amount: decimal.NewFromInt(1), CoinSymbol: "BTC", Destination: "dest",
	}); err != nil {
		t.Fatalf("a broken limiter must not block withdrawals, got %v", err)
	}
	if limiter.calls != 1 {
		t.Fatalf("expected one limiter call, got %d", limiter.calls)
	}
}

func TestApproveWithdrawalDebitSuccess(t *testing.T) {
	processing := &domain.WithdrawalRequest{ID: uuid.New(), Status: domain.WithdrawalStatusProcessing}
	repo := &withdrawalRepoStub{approveOutcome: &store.WithdrawalApprovalOutcome{Request: processing, Debited: true}}
	publisher := &recordingPublisher{}
	svc := NewService(repo, publisher, testCoins(), 0)

	req, err := svc.ApproveWithdrawal(context.Background(), admin(), processing.ID)
	if err != nil {
		t.Fatalf("ApproveWithdrawal returned error: %v", err)
	}
	if req.Status != domain.WithdrawalStatusProcessing {
		t.Fatalf("expected processing status, got %s", req.Status)
	}
	if len(publisher.routingKeys) != 1 || publisher.routingKeys[0] != domain.EventWithdrawalUpdated {
		t.Fatalf("expected one %s event, got %v", domain.EventWithdrawalUpdated, publisher.routingKeys)
	}
}

func TestApproveWithdrawalDebitRaceMarksFailed(t *testing.T) {
	reason := "approval debit failed: insufficient BTC balance: have 1, need 5"
	failed := &domain.WithdrawalRequest{ID: uuid.New(), Status: domain.WithdrawalStatusFailed, Notes: &reason}
	repo := &withdrawalRepoStub{approveOutcome: &store.WithdrawalApprovalOutcome{Request: failed, Debited: false}}
	svc := NewService(repo, &recordingPublisher{}, testCoins(), 0)

	req, err := svc.ApproveWithdrawal(context.Background(), admin(), failed.ID)
	if err != nil {
		t.Fatalf("a debit race is reported through status, not error; got %v", err)
	}
	if req.Status != domain.WithdrawalStatusFailed {
		t.Fatalf("expected failed status, got %s", req.Status)
	}
	if req.Notes == nil || *req.Notes == "" {
		t.Fatal("expected the failure reason recorded on the request")
	}
}

func TestApproveWithdrawalRequiresAdminAndPendingState(t *testing.T) {
	repo := &withdrawalRepoStub{approveErr: store.ErrInvalidState}
	svc := NewService(repo, &recordingPublisher{}, testCoins(), 0)

	if _, err := svc.ApproveWithdrawal(context.Background(), domain.Actor{Role: domain.RoleUser}, uuid.New()); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := svc.ApproveWithdrawal(context.Background(), admin(), uuid.New()); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestCompleteWithdrawalRequiresTransactionRef(t *testing.T) {
	ref := "0xabc123"
	completed := &domain.WithdrawalRequest{ID: uuid.New(), Status: domain.WithdrawalStatusCompleted, TransactionRef: &ref}
	repo := &withdrawalRepoStub{completed: completed}
	svc := NewService(repo, &recordingPublisher{}, testCoins(), 0)

	if _, err := svc.CompleteWithdrawal(context.Background(), admin(), completed.ID, "   "); !errors.Is(err, ErrMissingTransactionRef) {
		t.Fatalf("expected ErrMissingTransactionRef, got %v", err)
	}

	req, err := svc.CompleteWithdrawal(context.Background(), admin(), completed.ID, ref)
	if err != nil {
		t.Fatalf("CompleteWithdrawal returned error: %v", err)
	}
	if req.Status != domain.WithdrawalStatusCompleted {
		t.Fatalf("expected completed status, got %s", req.Status)
	}
}

func TestRejectWithdrawalRequiresNotes(t *testing.T) {
	repo := &withdrawalRepoStub{}
	svc := NewService(repo, &recordingPublisher{}, testCoins(), 0)

	if _, err := svc.RejectWithdrawal(context.Background(), admin(), uuid.New(), ""); !errors.Is(err, ErrMissingRejectionNotes) {
		t.Fatalf("expected ErrMissingRejectionNotes, got %v", err)
	}

	req, err := svc.RejectWithdrawal(context.Background(), admin(), uuid.New(), "destination flagged")
	if err != nil {
		t.Fatalf("RejectWithdrawal returned error: %v", err)
	}
	if req.Status != domain.WithdrawalStatusRejected {
		t.Fatalf("expected rejected status, got %s", req.Status)
	}
	if req.Notes == nil || *req.Notes != "destination flagged" {
		t.Fatal("expected rejection notes persisted on the request")
	}
}
