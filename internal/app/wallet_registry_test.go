package app

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/hackkaliboi/ofs-sub001/internal/domain"
	"github.com/hackkaliboi/ofs-sub001/internal/store"
)

// recordingPublisher captures published events for assertions.
type recordingPublisher struct {
	routingKeys []string
}

func (p *recordingPublisher) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	p.routingKeys = append(p.routingKeys, routingKey)
	return nil
}

func (p *recordingPublisher) Close() {}

func testCoins() []string { return []string{"BTC", "ETH", "USDC"} }

type walletRepoStub struct {
	store.Repository

	created   *domain.WalletConnection
	createErr error

	userWallets    []domain.WalletConnection
	pendingWallets []domain.WalletConnection
}

func (s *walletRepoStub) CreateWalletConnection(ctx context.Context, wallet *domain.WalletConnection) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.created = wallet
	return nil
}

func (s *walletRepoStub) ListWalletConnectionsByUser(ctx context.Context, userID uuid.UUID) ([]domain.WalletConnection, error) {
	return s.userWallets, nil
}

func (s *walletRepoStub) ListPendingWalletConnections(ctx context.Context) ([]domain.WalletConnection, error) {
	return s.pendingWallets, nil
}

func TestSubmitWalletCreatesPendingAndPublishes(t *testing.T) {
	repo := &walletRepoStub{}
	publisher := &recordingPublisher{}
	svc := NewService(repo, publisher, testCoins(), 0)

	userID := uuid.New()
	wallet, err := svc.SubmitWallet(context.Background(), userID, domain.SubmitWalletRequest{
		Address:    "0x52908400098527886E0F7030069857D2E4169EE7",
		ChainType:  "Ethereum",
		WalletType: "metamask",
	})
	if err != nil {
		t.Fatalf("SubmitWallet returned error: %v", err)
	}
	if wallet.Status != domain.WalletStatusPending {
		t.Fatalf("expected pending status, got %s", wallet.Status)
	}
	if wallet.ChainType != "ethereum" {
		t.Fatalf("expected normalized chain type, got %q", wallet.ChainType)
	}
	if repo.created == nil || repo.created.UserID != userID {
		t.Fatalf("expected wallet persisted for user %s", userID)
	}
	if len(publisher.routingKeys) != 1 || publisher.routingKeys[0] != domain.EventWalletSubmitted {
		t.Fatalf("expected one %s event, got %v", domain.EventWalletSubmitted, publisher.routingKeys)
	}
}

func TestSubmitWalletRejectsMalformedAddress(t *testing.T) {
	repo := &walletRepoStub{}
	svc := NewService(repo, &recordingPublisher{}, testCoins(), 0)

	cases := []domain.SubmitWalletRequest{
		{Address: "0x123", ChainType: "ethereum"},
		{Address: "52908400098527886E0F7030069857D2E4169EE7", ChainType: "ethereum"},
		{Address: "0x52908400098527886E0F7030069857D2E4169EE7", ChainType: "dogecoin"},
		{Address: "", ChainType: "bitcoin"},
	}
	for _, req := range cases {
		if _, err := svc.SubmitWallet(context.Background(), uuid.New(), req); !errors.Is(err, ErrInvalidAddress) {
			t.Fatalf("address %q chain %q: expected ErrInvalidAddress, got %v", req.Address, req.ChainType, err)
		}
	}
	if repo.created != nil {
		t.Fatal("no wallet should be persisted on validation failure")
	}
}

func TestSubmitWalletSurfacesDuplicatePending(t *testing.T) {
	repo := &walletRepoStub{createErr: store.ErrDuplicatePending}
	publisher := &recordingPublisher{}
	svc := NewService(repo, publisher, testCoins(), 0)

	_, err := svc.SubmitWallet(context.Background(), uuid.New(), domain.SubmitWalletRequest{
		Address:   "0x52908400098527886E0F7030069857D2E4169EE7",
		ChainType: "ethereum",
	})
	if !errors.Is(err, store.ErrDuplicatePending) {
		t.Fatalf("expected ErrDuplicatePending, got %v", err)
	}
	if len(publisher.routingKeys) != 0 {
		t.Fatal("no event should be published when the insert fails")
	}
}

func TestListPendingWalletsRequiresAdmin(t *testing.T) {
	repo := &walletRepoStub{pendingWallets: []domain.WalletConnection{{ID: uuid.New()}}}
	svc := NewService(repo, &recordingPublisher{}, testCoins(), 0)

	if _, err := svc.ListPendingWallets(context.Background(), domain.Actor{ID: uuid.New(), Role: domain.RoleUser}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-admin, got %v", err)
	}

	wallets, err := svc.ListPendingWallets(context.Background(), domain.Actor{ID: uuid.New(), Role: domain.RoleAdmin})
	if err != nil {
		t.Fatalf("ListPendingWallets returned error: %v", err)
	}
	if len(wallets) != 1 {
		t.Fatalf("expected 1 pending wallet, got %d", len(wallets))
	}
}
