package app

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/hackkaliboi/ofs-sub001/internal/domain"
	"github.com/hackkaliboi/ofs-sub001/internal/store"
)

type kycRepoStub struct {
	store.Repository

	created   *domain.KycDocument
	createErr error

	pendingDocs []domain.KycDocument
}

func (s *kycRepoStub) CreateKycDocument(ctx context.Context, doc *domain.KycDocument) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.created = doc
	return nil
}

func (s *kycRepoStub) ListPendingKycDocuments(ctx context.Context) ([]domain.KycDocument, error) {
	return s.pendingDocs, nil
}

func TestValidateKycUpload(t *testing.T) {
	svc := NewService(&kycRepoStub{}, &recordingPublisher{}, testCoins(), 1024)

	if err := svc.ValidateKycUpload("image/jpeg", 512); err != nil {
		t.Fatalf("jpeg within limit should pass, got %v", err)
	}
	if err := svc.ValidateKycUpload("application/pdf", 1024); err != nil {
		t.Fatalf("pdf at limit should pass, got %v", err)
	}
	if err := svc.ValidateKycUpload("image/gif", 512); !errors.Is(err, ErrUnsupportedFileType) {
		t.Fatalf("expected ErrUnsupportedFileType for gif, got %v", err)
	}
	if err := svc.ValidateKycUpload("image/png", 2048); !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("expected ErrFileTooLarge, got %v", err)
	}
}

func TestSubmitKycDocumentRequiresFrontRef(t *testing.T) {
	repo := &kycRepoStub{}
	svc := NewService(repo, &recordingPublisher{}, testCoins(), 0)

	_, err := svc.SubmitKycDocument(context.Background(), uuid.New(), domain.SubmitKycRequest{
		DocumentType:   "passport",
		DocumentNumber: "P1234567",
	})
	if !errors.Is(err, ErrMissingRequiredFile) {
		t.Fatalf("expected ErrMissingRequiredFile, got %v", err)
	}
	if repo.created != nil {
		t.Fatal("no document should be persisted without a front ref")
	}
}

func TestSubmitKycDocumentCreatesPendingAndPublishes(t *testing.T) {
	repo := &kycRepoStub{}
	publisher := &recordingPublisher{}
	svc := NewService(repo, publisher, testCoins(), 0)

	userID := uuid.New()
	selfie := "blob/selfie-1"
	doc, err := svc.SubmitKycDocument(context.Background(), userID, domain.SubmitKycRequest{
		DocumentType:   "drivers_license",
		DocumentNumber: "DL-99001",
		Files: domain.KycFileRefs{
			FrontRef:  "blob/front-1",
			SelfieRef: &selfie,
		},
	})
	if err != nil {
		t.Fatalf("SubmitKycDocument returned error: %v", err)
	}
	if doc.Status != domain.KycStatusPending {
		t.Fatalf("expected pending status, got %s", doc.Status)
	}
	if repo.created == nil || repo.created.FrontRef != "blob/front-1" {
		t.Fatal("expected the document persisted with its front ref")
	}
	if len(publisher.routingKeys) != 1 || publisher.routingKeys[0] != domain.EventKycSubmitted {
		t.Fatalf("expected one %s event, got %v", domain.EventKycSubmitted, publisher.routingKeys)
	}
}

func TestSubmitKycDocumentSurfacesDuplicatePending(t *testing.T) {
	repo := &kycRepoStub{createErr: store.ErrDuplicatePending}
	svc := NewService(repo, &recordingPublisher{}, testCoins(), 0)

	_, err := svc.SubmitKycDocument(context.Background(), uuid.New(), domain.SubmitKycRequest{
		DocumentType: "passport",
		Files:        domain.KycFileRefs{FrontRef: "blob/front-2"},
	})
	if !errors.Is(err, store.ErrDuplicatePending) {
		t.Fatalf("expected ErrDuplicatePending, got %v", err)
	}
}

func TestListPendingKycDocumentsRequiresAdmin(t *testing.T) {
	repo := &kycRepoStub{pendingDocs: []domain.KycDocument{{ID: uuid.New()}}}
	svc := NewService(repo, &recordingPublisher{}, testCoins(), 0)

	if _, err := svc.ListPendingKycDocuments(context.Background(), domain.Actor{Role: domain.RoleUser}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-admin, got %v", err)
	}
	docs, err := svc.ListPendingKycDocuments(context.Background(), domain.Actor{Role: domain.RoleAdmin})
	if err != nil {
		t.Fatalf("ListPendingKycDocuments returned error: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 pending document, got %d", len(docs))
	}
}
