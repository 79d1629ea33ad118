/**
 * @description
 * KYC review queue: document submission and reviewer-facing listings. Upload
 * constraints (MIME type, size) are validated here before the blob storage
 * handoff so storage never sees an illegal file, and a missing front image
 * rejects the submission before any row is written. Resubmission after a
 * rejection creates a new record; rejected documents are never mutated.
 */

package app

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackkaliboi/ofs-sub001/internal/domain"
)

// ValidateKycUpload checks an upload against the configured constraints ahead
// of the storage collaborator's own enforcement.
func (s *Service) ValidateKycUpload(contentType string, size int64) error {
	if !domain.AllowedKycContentTypes[strings.ToLower(strings.TrimSpace(contentType))] {
		return ErrUnsupportedFileType
	}
	if size > s.maxKycFileSize {
		return ErrFileTooLarge
	}
	return nil
}

// SubmitKycDocument records a KYC submission whose files are already in blob
// storage. The front image reference is mandatory.
func (s *Service) SubmitKycDocument(ctx context.Context, userID uuid.UUID, req domain.SubmitKycRequest) (*domain.KycDocument, error) {
	if strings.TrimSpace(req.Files.FrontRef) == "" {
		return nil, ErrMissingRequiredFile
	}
	documentType := strings.TrimSpace(req.DocumentType)
	if documentType == "" {
		return nil, ErrMissingRequiredFile
	}

	doc := &domain.KycDocument{
		ID:             uuid.New(),
		UserID:         userID,
		DocumentType:   documentType,
		DocumentNumber: strings.TrimSpace(req.DocumentNumber),
		FrontRef:       strings.TrimSpace(req.Files.FrontRef),
		BackRef:        req.Files.BackRef,
		SelfieRef:      req.Files.SelfieRef,
		Status:         domain.KycStatusPending,
	}
	if err := s.repo.CreateKycDocument(ctx, doc); err != nil {
		return nil, err
	}

	s.publish(ctx, domain.EventKycSubmitted, domain.KycSubmittedEvent{
		DocumentID:   doc.ID,
		UserID:       doc.UserID,
		DocumentType: doc.DocumentType,
		Timestamp:    time.Now().UTC(),
	})

	return doc, nil
}

// ListKycDocumentsForUser returns the user's own submissions, newest first.
func (s *Service) ListKycDocumentsForUser(ctx context.Context, userID uuid.UUID) ([]domain.KycDocument, error) {
	return s.repo.ListKycDocumentsByUser(ctx, userID)
}

// ListPendingKycDocuments returns the reviewer queue, oldest first.
func (s *Service) ListPendingKycDocuments(ctx context.Context, actor domain.Actor) ([]domain.KycDocument, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	return s.repo.ListPendingKycDocuments(ctx)
}
