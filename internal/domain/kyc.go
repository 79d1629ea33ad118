/**
 * @description
 * This file defines the KYC document entity. A document bundles the identity
 * claim (type + number) with storage references to the uploaded files. The
 * front image is mandatory; back and selfie are optional. One pending
 * document is allowed per (user, document_type); a rejected document is never
 * mutated — resubmission creates a new record so review history survives.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// KycStatus is the closed set of KYC document states.
type KycStatus string

const (
	KycStatusPending  KycStatus = "pending"
	KycStatusApproved KycStatus = "approved"
	KycStatusRejected KycStatus = "rejected"
)

// Terminal reports whether the status admits no further transition.
func (s KycStatus) Terminal() bool {
	return s == KycStatusApproved || s == KycStatusRejected
}

// KycDocument maps to the `kyc_documents` table.
type KycDocument struct {
	ID              uuid.UUID  `json:"id"`
	UserID          uuid.UUID  `json:"user_id"`
	DocumentType    string     `json:"document_type"`
	DocumentNumber  string     `json:"document_number"`
	FrontRef        string     `json:"front_ref"`
	BackRef         *string    `json:"back_ref,omitempty"`
	SelfieRef       *string    `json:"selfie_ref,omitempty"`
	Status          KycStatus  `json:"status"`
	SubmittedAt     time.Time  `json:"submitted_at"`
	ReviewedAt      *time.Time `json:"reviewed_at,omitempty"`
	ReviewerID      *uuid.UUID `json:"reviewer_id,omitempty"`
	RejectionReason *string    `json:"rejection_reason,omitempty"`
}

// KycFileRefs carries the storage references handed back by the blob storage
// collaborator after upload.
type KycFileRefs struct {
	FrontRef  string  `json:"front_ref"`
	BackRef   *string `json:"back_ref,omitempty"`
	SelfieRef *string `json:"selfie_ref,omitempty"`
}

// SubmitKycRequest is the DTO for incoming KYC submissions.
type SubmitKycRequest struct {
	DocumentType   string      `json:"document_type"`
	DocumentNumber string      `json:"document_number"`
	Files          KycFileRefs `json:"files"`
}

// AllowedKycContentTypes are the MIME types the storage collaborator accepts.
// The core validates uploads against this set before handoff.
var AllowedKycContentTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"application/pdf": true,
}

// MaxKycFileSizeBytes is the upload ceiling enforced ahead of the storage
// collaborator's own limit.
const MaxKycFileSizeBytes = 5 * 1024 * 1024
