package app

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hackkaliboi/ofs-sub001/internal/domain"
	"github.com/hackkaliboi/ofs-sub001/internal/store"
)

type transitionRepoStub struct {
	store.Repository

	wallet        *domain.WalletConnection
	walletApplied bool
	walletErr     error
	walletTo      domain.WalletStatus

	doc          *domain.KycDocument
	docApplied   bool
	docErr       error
	docTo        domain.KycStatus
	gotInitCoins []string

	history []domain.ValidationHistoryEntry
}

func (s *transitionRepoStub) TransitionWalletStatus(ctx context.Context, walletID uuid.UUID, to domain.WalletStatus, actorID uuid.UUID, notes *string) (*domain.WalletConnection, bool, error) {
	s.walletTo = to
	if s.walletErr != nil {
		return nil, false, s.walletErr
	}
	return s.wallet, s.walletApplied, nil
}

func (s *transitionRepoStub) TransitionKycStatus(ctx context.Context, docID uuid.UUID, to domain.KycStatus, actorID uuid.UUID, notes *string, initCoins []string) (*domain.KycDocument, bool, error) {
	s.docTo = to
	s.gotInitCoins = initCoins
	if s.docErr != nil {
		return nil, false, s.docErr
	}
	return s.doc, s.docApplied, nil
}

func (s *transitionRepoStub) HistoryFor(ctx context.Context, subjectType domain.SubjectType, subjectID uuid.UUID) ([]domain.ValidationHistoryEntry, error) {
	return s.history, nil
}

func admin() domain.Actor { return domain.Actor{ID: uuid.New(), Role: domain.RoleAdmin} }

func TestTransitionRequiresAdmin(t *testing.T) {
	svc := NewService(&transitionRepoStub{}, &recordingPublisher{}, testCoins(), 0)

	_, err := svc.Transition(context.Background(), domain.Actor{ID: uuid.New(), Role: domain.RoleUser}, domain.TransitionRequest{
		SubjectType: domain.SubjectWallet,
		SubjectID:   uuid.New(),
		NewStatus:   string(domain.WalletStatusValidated),
	})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestTransitionWalletValidatePublishes(t *testing.T) {
	repo := &transitionRepoStub{
		wallet:        &domain.WalletConnection{ID: uuid.New(), Status: domain.WalletStatusValidated},
		walletApplied: true,
	}
	publisher := &recordingPublisher{}
	svc := NewService(repo, publisher, testCoins(), 0)

	outcome, err := svc.Transition(context.Background(), admin(), domain.TransitionRequest{
		SubjectType: domain.SubjectWallet,
		SubjectID:   repo.wallet.ID,
		NewStatus:   string(domain.WalletStatusValidated),
	})
	if err != nil {
		t.Fatalf("Transition returned error: %v", err)
	}
	if !outcome.Applied || outcome.Wallet == nil {
		t.Fatalf("expected an applied wallet outcome, got %+v", outcome)
	}
	if repo.walletTo != domain.WalletStatusValidated {
		t.Fatalf("expected validated target, got %s", repo.walletTo)
	}
	if len(publisher.routingKeys) != 1 || publisher.routingKeys[0] != domain.EventValidationTransition {
		t.Fatalf("expected one %s event, got %v", domain.EventValidationTransition, publisher.routingKeys)
	}
}

func TestTransitionReplayDoesNotPublish(t *testing.T) {
	repo := &transitionRepoStub{
		wallet:        &domain.WalletConnection{ID: uuid.New(), Status: domain.WalletStatusValidated},
		walletApplied: false,
	}
	publisher := &recordingPublisher{}
	svc := NewService(repo, publisher, testCoins(), 0)

	outcome, err := svc.Transition(context.Background(), admin(), domain.TransitionRequest{
		SubjectType: domain.SubjectWallet,
		SubjectID:   repo.wallet.ID,
		NewStatus:   string(domain.WalletStatusValidated),
	})
	if err != nil {
		t.Fatalf("Transition returned error: %v", err)
	}
	if outcome.Applied {
		t.Fatal("replay should report Applied=false")
	}
	if len(publisher.routingKeys) != 0 {
		t.Fatalf("replay should not publish, got %v", publisher.routingKeys)
	}
}

func TestTransitionFromTerminalStateRejected(t *testing.T) {
	repo := &transitionRepoStub{walletErr: store.ErrInvalidState}
	svc := NewService(repo, &recordingPublisher{}, testCoins(), 0)

	_, err := svc.Transition(context.Background(), admin(), domain.TransitionRequest{
		SubjectType: domain.SubjectWallet,
		SubjectID:   uuid.New(),
		NewStatus:   string(domain.WalletStatusRejected),
	})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestTransitionRejectsIllegalTargetStatus(t *testing.T) {
	svc := NewService(&transitionRepoStub{}, &recordingPublisher{}, testCoins(), 0)

	_, err := svc.Transition(context.Background(), admin(), domain.TransitionRequest{
		SubjectType: domain.SubjectWallet,
		SubjectID:   uuid.New(),
		NewStatus:   "pending",
	})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for pending target, got %v", err)
	}
}

func TestTransitionKycApprovalPassesSupportedCoins(t *testing.T) {
	repo := &transitionRepoStub{
		doc:        &domain.KycDocument{ID: uuid.New(), Status: domain.KycStatusApproved},
		docApplied: true,
	}
	svc := NewService(repo, &recordingPublisher{}, testCoins(), 0)

	if _, err := svc.Transition(context.Background(), admin(), domain.TransitionRequest{
		SubjectType: domain.SubjectKyc,
		SubjectID:   repo.doc.ID,
		NewStatus:   string(domain.KycStatusApproved),
	}); err != nil {
		t.Fatalf("Transition returned error: %v", err)
	}
	if len(repo.gotInitCoins) != len(testCoins()) {
		t.Fatalf("expected supported coins to be initialized, got %v", repo.gotInitCoins)
	}
}

func TestTransitionKycRejectionSkipsBalanceInit(t *testing.T) {
	repo := &transitionRepoStub{
		doc:        &domain.KycDocument{ID: uuid.New(), Status: domain.KycStatusRejected},
		docApplied: true,
	}
	svc := NewService(repo, &recordingPublisher{}, testCoins(), 0)

	notes := "document illegible"
	if _, err := svc.Transition(context.Background(), admin(), domain.TransitionRequest{
		SubjectType: domain.SubjectKyc,
		SubjectID:   repo.doc.ID,
		NewStatus:   string(domain.KycStatusRejected),
		Notes:       &notes,
	}); err != nil {
		t.Fatalf("Transition returned error: %v", err)
	}
	if repo.gotInitCoins != nil {
		t.Fatalf("rejection must not initialize balances, got %v", repo.gotInitCoins)
	}
}

// ledgerTouchDetector fails the test if any balance mutation reaches the
// repository during a wallet transition.
type ledgerTouchDetector struct {
	transitionRepoStub
	t *testing.T
}

func (s *ledgerTouchDetector) CreditBalance(ctx context.Context, userID uuid.UUID, coinSymbol string, amount decimal.Decimal, actorID uuid.UUID) (*domain.CoinBalance, error) {
	s.t.Fatal("wallet transition must not credit the ledger")
	return nil, nil
}

func (s *ledgerTouchDetector) DebitBalance(ctx context.Context, userID uuid.UUID, coinSymbol string, amount decimal.Decimal, actorID uuid.UUID) (*domain.CoinBalance, error) {
	s.t.Fatal("wallet transition must not debit the ledger")
	return nil, nil
}

func (s *ledgerTouchDetector) SetBalance(ctx context.Context, userID uuid.UUID, coinSymbol string, value decimal.Decimal, actorID uuid.UUID, notes *string) (*domain.CoinBalance, error) {
	s.t.Fatal("wallet transition must not overwrite the ledger")
	return nil, nil
}

func TestWalletRejectionNeverClawsBackBalances(t *testing.T) {
	repo := &ledgerTouchDetector{t: t}
	repo.wallet = &domain.WalletConnection{ID: uuid.New(), Status: domain.WalletStatusRejected}
	repo.walletApplied = true
	svc := NewService(repo, &recordingPublisher{}, testCoins(), 0)

	notes := "address reported stolen"
	outcome, err := svc.Transition(context.Background(), admin(), domain.TransitionRequest{
		SubjectType: domain.SubjectWallet,
		SubjectID:   repo.wallet.ID,
		NewStatus:   string(domain.WalletStatusRejected),
		Notes:       &notes,
	})
	if err != nil {
		t.Fatalf("Transition returned error: %v", err)
	}
	if outcome.Wallet.Status != domain.WalletStatusRejected {
		t.Fatalf("expected rejected wallet, got %s", outcome.Wallet.Status)
	}
}

func TestTransitionRejectsNonReviewSubjects(t *testing.T) {
	svc := NewService(&transitionRepoStub{}, &recordingPublisher{}, testCoins(), 0)

	for _, subject := range []domain.SubjectType{domain.SubjectBalance, domain.SubjectWithdrawal} {
		_, err := svc.Transition(context.Background(), admin(), domain.TransitionRequest{
			SubjectType: subject,
			SubjectID:   uuid.New(),
			NewStatus:   "completed",
		})
		if !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("subject %s: expected ErrInvalidTransition, got %v", subject, err)
		}
	}

	_, err := svc.Transition(context.Background(), admin(), domain.TransitionRequest{
		SubjectType: "unknown",
		SubjectID:   uuid.New(),
		NewStatus:   "validated",
	})
	if !errors.Is(err, ErrUnknownSubjectType) {
		t.Fatalf("expected ErrUnknownSubjectType, got %v", err)
	}
}

func TestHistoryRequiresAdminAndKnownSubject(t *testing.T) {
	repo := &transitionRepoStub{history: []domain.ValidationHistoryEntry{{Seq: 1}, {Seq: 2}}}
	svc := NewService(repo, &recordingPublisher{}, testCoins(), 0)

	if _, err := svc.History(context.Background(), domain.Actor{Role: domain.RoleUser}, domain.SubjectWallet, uuid.New()); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := svc.History(context.Background(), admin(), "mystery", uuid.New()); !errors.Is(err, ErrUnknownSubjectType) {
		t.Fatalf("expected ErrUnknownSubjectType, got %v", err)
	}

	entries, err := svc.History(context.Background(), admin(), domain.SubjectWallet, uuid.New())
	if err != nil {
		t.Fatalf("History returned error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
}
