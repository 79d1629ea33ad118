/**
 * @description
 * This file contains the HTTP handlers for the custody service's API endpoints.
 * Handlers are responsible for parsing incoming requests, calling the appropriate
 * methods on the application service, and writing the HTTP response. They act as the
 * bridge between the web layer and the business logic layer.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 * - pkg/storageclient: Hands uploaded KYC files to the document storage service.
 */

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackkaliboi/ofs-sub001/internal/app"
	"github.com/hackkaliboi/ofs-sub001/internal/domain"
	"github.com/hackkaliboi/ofs-sub001/internal/store"
	"github.com/hackkaliboi/ofs-sub001/pkg/storageclient"
)

// CustodyHandlers holds the collaborators that handlers will use.
type CustodyHandlers struct {
	service *app.Service
	storage *storageclient.Client
}

// NewCustodyHandlers creates a new instance of CustodyHandlers.
func NewCustodyHandlers(service *app.Service, storage *storageclient.Client) *CustodyHandlers {
	return &CustodyHandlers{service: service, storage: storage}
}

// requireActor retrieves the authenticated actor or writes a 500 response.
// The auth middleware guarantees an actor on every protected route, so a miss
// here is a wiring bug, not a client error.
func (h *CustodyHandlers) requireActor(w http.ResponseWriter, r *http.Request) (domain.Actor, bool) {
	actor, ok := GetActor(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get actor from context")
		return domain.Actor{}, false
	}
	return actor, true
}

// SubmitWalletHandler handles requests to register a wallet for review.
func (h *CustodyHandlers) SubmitWalletHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}

	var req domain.SubmitWalletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=submit_wallet outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	wallet, err := h.service.SubmitWallet(r.Context(), actor.ID, req)
	if err != nil {
		log.Printf("level=warn component=api endpoint=submit_wallet outcome=failed user_id=%s err=%v", actor.ID, err)
		switch {
		case errors.Is(err, app.ErrInvalidAddress):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrDuplicatePending):
			h.writeError(w, http.StatusConflict, "A pending submission for this wallet already exists")
		default:
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, wallet)
}

// ListWalletsHandler returns the caller's wallet connections.
func (h *CustodyHandlers) ListWalletsHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}

	wallets, err := h.service.ListWalletsForUser(r.Context(), actor.ID)
	if err != nil {
		log.Printf("level=error component=api endpoint=list_wallets user_id=%s err=%v", actor.ID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"wallets": wallets})
}

// SubmitKycDocumentHandler accepts a multipart KYC submission. The document
// files are validated and streamed to the storage service first; only the
// returned references enter the review queue.
func (h *CustodyHandlers) SubmitKycDocumentHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		log.Printf("level=warn component=api endpoint=submit_kyc outcome=reject reason=invalid_multipart err=%v", err)
		h.writeError(w, http.StatusBadRequest, "Invalid multipart request")
		return
	}

	req := domain.SubmitKycRequest{
		DocumentType:   r.FormValue("document_type"),
		DocumentNumber: r.FormValue("document_number"),
	}

	frontRef, err := h.storeUploadedFile(w, r, "front")
	if err != nil {
		return
	}
	if frontRef == "" {
		h.writeError(w, http.StatusBadRequest, "Front document image is required")
		return
	}
	req.Files.FrontRef = frontRef

	if backRef, err := h.storeUploadedFile(w, r, "back"); err != nil {
		return
	} else if backRef != "" {
		req.Files.BackRef = &backRef
	}
	if selfieRef, err := h.storeUploadedFile(w, r, "selfie"); err != nil {
		return
	} else if selfieRef != "" {
		req.Files.SelfieRef = &selfieRef
	}

	doc, err := h.service.SubmitKycDocument(r.Context(), actor.ID, req)
	if err != nil {
		log.Printf("level=warn component=api endpoint=submit_kyc outcome=failed user_id=%s err=%v", actor.ID, err)
		switch {
		case errors.Is(err, app.ErrMissingRequiredFile):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrDuplicatePending):
			h.writeError(w, http.StatusConflict, "A pending submission for this document already exists")
		default:
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, doc)
}

// storeUploadedFile validates and uploads one named form file. A missing part
// is not an error; it returns an empty reference. When an error response has
// already been written the returned error is non-nil.
func (h *CustodyHandlers) storeUploadedFile(w http.ResponseWriter, r *http.Request, field string) (string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", nil
		}
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid %s file upload", field))
		return "", err
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if err := h.service.ValidateKycUpload(contentType, header.Size); err != nil {
		log.Printf("level=warn component=api endpoint=submit_kyc outcome=reject field=%s reason=upload_validation err=%v", field, err)
		switch {
		case errors.Is(err, app.ErrUnsupportedFileType):
			h.writeError(w, http.StatusUnsupportedMediaType, err.Error())
		case errors.Is(err, app.ErrFileTooLarge):
			h.writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		default:
			h.writeError(w, http.StatusBadRequest, err.Error())
		}
		return "", err
	}

	stored, err := h.storage.StoreDocument(r.Context(), header.Filename, contentType, file)
	if err != nil {
		log.Printf("level=error component=api endpoint=submit_kyc outcome=failed field=%s reason=storage err=%v", field, err)
		var transient *storageclient.TransientError
		if errors.As(err, &transient) {
			h.writeError(w, http.StatusServiceUnavailable, "Document storage is temporarily unavailable, please retry")
		} else {
			h.writeError(w, http.StatusBadGateway, "Document storage rejected the upload")
		}
		return "", err
	}

	return stored.Data.Reference, nil
}

// ListKycDocumentsHandler returns the caller's KYC submissions.
func (h *CustodyHandlers) ListKycDocumentsHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}

	docs, err := h.service.ListKycDocumentsForUser(r.Context(), actor.ID)
	if err != nil {
		log.Printf("level=error component=api endpoint=list_kyc user_id=%s err=%v", actor.ID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"documents": docs})
}

// ListBalancesHandler returns the caller's coin balances. A degraded snapshot
// still returns 200 with the degraded flag set.
func (h *CustodyHandlers) ListBalancesHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}

	snapshot, err := h.service.ListBalances(r.Context(), actor.ID)
	if err != nil {
		log.Printf("level=error component=api endpoint=list_balances user_id=%s err=%v", actor.ID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, snapshot)
}

// RequestWithdrawalHandler handles user withdrawal requests.
func (h *CustodyHandlers) RequestWithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}

	var req domain.SubmitWithdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=request_withdrawal outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	request, err := h.service.RequestWithdrawal(r.Context(), actor.ID, req)
	if err != nil {
		log.Printf("level=warn component=api endpoint=request_withdrawal outcome=failed user_id=%s err=%v", actor.ID, err)
		var rateLimited *app.RateLimitedError
		var insufficient *store.InsufficientBalanceError
		switch {
		case errors.As(err, &rateLimited):
			w.Header().Set("Retry-After", strconv.Itoa(rateLimited.RetryAfterSeconds))
			h.writeError(w, http.StatusTooManyRequests, "Too many withdrawal requests, please wait and try again")
		case errors.As(err, &insufficient):
			h.writeError(w, http.StatusPaymentRequired, insufficient.Error())
		case errors.Is(err, app.ErrInvalidAmount), errors.Is(err, app.ErrUnsupportedCoin), errors.Is(err, app.ErrInvalidAddress):
			h.writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, request)
}

// ListWithdrawalsHandler returns the caller's withdrawal requests.
func (h *CustodyHandlers) ListWithdrawalsHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}

	requests, err := h.service.ListWithdrawalsForUser(r.Context(), actor.ID)
	if err != nil {
		log.Printf("level=error component=api endpoint=list_withdrawals user_id=%s err=%v", actor.ID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"withdrawals": requests})
}

// ListPendingWalletsHandler returns every wallet awaiting review.
func (h *CustodyHandlers) ListPendingWalletsHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}

	wallets, err := h.service.ListPendingWallets(r.Context(), actor)
	if err != nil {
		h.writeServiceError(w, "list_pending_wallets", err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"wallets": wallets})
}

// ListPendingKycDocumentsHandler returns every KYC document awaiting review.
func (h *CustodyHandlers) ListPendingKycDocumentsHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}

	docs, err := h.service.ListPendingKycDocuments(r.Context(), actor)
	if err != nil {
		h.writeServiceError(w, "list_pending_kyc", err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"documents": docs})
}

// TransitionHandler applies an admin review decision to a wallet or KYC document.
func (h *CustodyHandlers) TransitionHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}

	var req domain.TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=transition outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	log.Printf("level=info component=api endpoint=transition subject_type=%s subject_id=%s new_status=%s actor_id=%s",
		req.SubjectType, req.SubjectID, req.NewStatus, actor.ID)

	outcome, err := h.service.Transition(r.Context(), actor, req)
	if err != nil {
		log.Printf("level=warn component=api endpoint=transition outcome=failed subject_id=%s err=%v", req.SubjectID, err)
		switch {
		case errors.Is(err, app.ErrForbidden):
			h.writeError(w, http.StatusForbidden, "Admin role required")
		case errors.Is(err, app.ErrInvalidTransition), errors.Is(err, app.ErrUnknownSubjectType), errors.Is(err, app.ErrMissingRejectionNotes):
			h.writeError(w, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, store.ErrWalletNotFound), errors.Is(err, store.ErrDocumentNotFound):
			h.writeError(w, http.StatusNotFound, "Subject not found")
		default:
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, outcome)
}

// HistoryHandler returns the audit history for one subject.
func (h *CustodyHandlers) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}

	subjectType := domain.SubjectType(chi.URLParam(r, "subjectType"))
	subjectID, err := uuid.Parse(chi.URLParam(r, "subjectID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid subject ID format")
		return
	}

	entries, err := h.service.History(r.Context(), actor, subjectType, subjectID)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrForbidden):
			h.writeError(w, http.StatusForbidden, "Admin role required")
		case errors.Is(err, app.ErrUnknownSubjectType):
			h.writeError(w, http.StatusBadRequest, err.Error())
		default:
			log.Printf("level=error component=api endpoint=history subject_id=%s err=%v", subjectID, err)
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"history": entries})
}

// balanceMutationTarget is the admin payload for ledger adjustments.
type balanceMutationTarget struct {
	UserID uuid.UUID `json:"user_id"`
	domain.BalanceMutationRequest
}

// CreditBalanceHandler credits a user's coin balance.
func (h *CustodyHandlers) CreditBalanceHandler(w http.ResponseWriter, r *http.Request) {
	h.handleBalanceMutation(w, r, "credit_balance", func(r *http.Request, actor domain.Actor, req balanceMutationTarget) (*domain.CoinBalance, error) {
		return h.service.Credit(r.Context(), actor, req.UserID, req.CoinSymbol, req.Amount)
	})
}

// DebitBalanceHandler debits a user's coin balance.
func (h *CustodyHandlers) DebitBalanceHandler(w http.ResponseWriter, r *http.Request) {
	h.handleBalanceMutation(w, r, "debit_balance", func(r *http.Request, actor domain.Actor, req balanceMutationTarget) (*domain.CoinBalance, error) {
		return h.service.Debit(r.Context(), actor, req.UserID, req.CoinSymbol, req.Amount)
	})
}

// SetBalanceHandler overwrites a user's coin balance with an audited correction.
func (h *CustodyHandlers) SetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	h.handleBalanceMutation(w, r, "set_balance", func(r *http.Request, actor domain.Actor, req balanceMutationTarget) (*domain.CoinBalance, error) {
		return h.service.SetBalance(r.Context(), actor, req.UserID, req.CoinSymbol, req.Amount, req.Notes)
	})
}

func (h *CustodyHandlers) handleBalanceMutation(w http.ResponseWriter, r *http.Request, endpoint string, mutate func(*http.Request, domain.Actor, balanceMutationTarget) (*domain.CoinBalance, error)) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}

	var req balanceMutationTarget
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=%s outcome=reject reason=invalid_json err=%v", endpoint, err)
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	balance, err := mutate(r, actor, req)
	if err != nil {
		log.Printf("level=warn component=api endpoint=%s outcome=failed user_id=%s coin=%s err=%v", endpoint, req.UserID, req.CoinSymbol, err)
		var insufficient *store.InsufficientBalanceError
		switch {
		case errors.Is(err, app.ErrForbidden):
			h.writeError(w, http.StatusForbidden, "Admin role required")
		case errors.As(err, &insufficient):
			h.writeError(w, http.StatusUnprocessableEntity, insufficient.Error())
		case errors.Is(err, app.ErrInvalidAmount), errors.Is(err, app.ErrNegativeBalance), errors.Is(err, app.ErrUnsupportedCoin):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrBalanceNotFound):
			h.writeError(w, http.StatusNotFound, "Balance not found; the user may not be validated yet")
		default:
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, balance)
}

// ListPendingWithdrawalsHandler returns every withdrawal awaiting review.
func (h *CustodyHandlers) ListPendingWithdrawalsHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}

	requests, err := h.service.ListPendingWithdrawals(r.Context(), actor)
	if err != nil {
		h.writeServiceError(w, "list_pending_withdrawals", err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"withdrawals": requests})
}

// ApproveWithdrawalHandler approves a pending withdrawal, debiting the ledger.
func (h *CustodyHandlers) ApproveWithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}

	requestID, err := uuid.Parse(chi.URLParam(r, "requestID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request ID format")
		return
	}

	request, err := h.service.ApproveWithdrawal(r.Context(), actor, requestID)
	if err != nil {
		h.writeWithdrawalReviewError(w, "approve_withdrawal", requestID, err)
		return
	}

	h.writeJSON(w, http.StatusOK, request)
}

// CompleteWithdrawalHandler marks a processing withdrawal as completed.
func (h *CustodyHandlers) CompleteWithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}

	requestID, err := uuid.Parse(chi.URLParam(r, "requestID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request ID format")
		return
	}

	var body struct {
		TransactionRef string `json:"transaction_ref"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	request, err := h.service.CompleteWithdrawal(r.Context(), actor, requestID, body.TransactionRef)
	if err != nil {
		if errors.Is(err, app.ErrMissingTransactionRef) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.writeWithdrawalReviewError(w, "complete_withdrawal", requestID, err)
		return
	}

	h.writeJSON(w, http.StatusOK, request)
}

// RejectWithdrawalHandler rejects a pending withdrawal.
func (h *CustodyHandlers) RejectWithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}

	requestID, err := uuid.Parse(chi.URLParam(r, "requestID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request ID format")
		return
	}

	var body struct {
		Notes string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	request, err := h.service.RejectWithdrawal(r.Context(), actor, requestID, body.Notes)
	if err != nil {
		if errors.Is(err, app.ErrMissingRejectionNotes) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.writeWithdrawalReviewError(w, "reject_withdrawal", requestID, err)
		return
	}

	h.writeJSON(w, http.StatusOK, request)
}

func (h *CustodyHandlers) writeWithdrawalReviewError(w http.ResponseWriter, endpoint string, requestID uuid.UUID, err error) {
	log.Printf("level=warn component=api endpoint=%s outcome=failed request_id=%s err=%v", endpoint, requestID, err)
	switch {
	case errors.Is(err, app.ErrForbidden):
		h.writeError(w, http.StatusForbidden, "Admin role required")
	case errors.Is(err, app.ErrInvalidTransition):
		h.writeError(w, http.StatusUnprocessableEntity, "Withdrawal is not in a state that allows this action")
	case errors.Is(err, store.ErrWithdrawalNotFound):
		h.writeError(w, http.StatusNotFound, "Withdrawal request not found")
	default:
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// writeServiceError maps common admin-listing failures.
func (h *CustodyHandlers) writeServiceError(w http.ResponseWriter, endpoint string, err error) {
	if errors.Is(err, app.ErrForbidden) {
		h.writeError(w, http.StatusForbidden, "Admin role required")
		return
	}
	log.Printf("level=error component=api endpoint=%s err=%v", endpoint, err)
	h.writeError(w, http.StatusInternalServerError, "Internal server error")
}

// writeJSON is a helper for writing JSON responses.
func (h *CustodyHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *CustodyHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
