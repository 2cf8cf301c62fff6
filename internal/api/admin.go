package api

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/neadvenduro/advenduro/internal/database"
	"github.com/neadvenduro/advenduro/internal/namefilter"
	"github.com/neadvenduro/advenduro/internal/realtime"
)

const (
	adminDocumentLimit    = 300
	adminPaymentLimit     = 200
	adminBannedNamesLimit = 200
)

// teamUserIDs lists the accounts on a team's roster, for notifications.
func (s *Server) teamUserIDs(ctx context.Context, teamID int64) ([]int64, error) {
	members, err := s.db.ListTeamMembers(ctx, teamID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(members))
	for i, m := range members {
		ids[i] = m.UserID
	}
	return ids, nil
}

// documentRecipients resolves who should hear about a review of doc.
func (s *Server) documentRecipients(ctx context.Context, doc *database.Document) ([]int64, error) {
	switch doc.OwnerType {
	case database.OwnerUser:
		return []int64{doc.OwnerID}, nil
	case database.OwnerTeamMember:
		member, err := s.db.GetTeamMemberByID(ctx, doc.OwnerID)
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return []int64{member.UserID}, nil
	case database.OwnerTeam:
		return s.teamUserIDs(ctx, doc.OwnerID)
	}
	return nil, nil
}

func (s *Server) handleAdminListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.db.ListDocumentsForReview(r.Context(), adminDocumentLimit)
	if err != nil {
		s.serverError(w, r, "list_documents", err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{"documents": toReviewDocumentResponses(docs)})
}

type reviewPayload struct {
	ID     int64  `json:"id" validate:"required,gt=0"`
	Action string `json:"action" validate:"required,oneof=verify reject"`
	Note   string `json:"note" validate:"omitempty,max=500"`
}

// handleAdminReviewDocument verifies or rejects a document and tells its
// owner.
func (s *Server) handleAdminReviewDocument(w http.ResponseWriter, r *http.Request) {
	var payload reviewPayload
	if err := s.readJSON(w, r, &payload); err != nil {
		s.errorJSON(w, err, http.StatusBadRequest)
		return
	}
	admin := s.mustUser(w, r)
	if admin == nil {
		return
	}
	note := strings.TrimSpace(payload.Note)

	var doc *database.Document
	err := s.db.WriteTx(r.Context(), func(tx *sql.Tx) error {
		var err error
		if payload.Action == "verify" {
			err = s.db.VerifyDocument(r.Context(), tx, payload.ID, admin.ID, note)
		} else {
			err = s.db.RejectDocument(r.Context(), tx, payload.ID, note)
		}
		if err != nil {
			return err
		}
		doc, err = s.db.GetDocumentByID(r.Context(), tx, payload.ID)
		return err
	})
	if errors.Is(err, database.ErrNotFound) {
		s.errorJSON(w, errors.New("document not found"), http.StatusNotFound)
		return
	}
	if err != nil {
		s.serverError(w, r, "review_document", err)
		return
	}

	resp := toDocumentResponse(doc)
	recipients, err := s.documentRecipients(r.Context(), doc)
	if err != nil {
		s.serverError(w, r, "document_recipients", err)
		return
	}
	s.notifier.Users(recipients, realtime.Message{
		Type:    realtime.TypeDocumentReviewed,
		Payload: envelope{"action": payload.Action, "document": resp},
	})
	s.writeJSON(w, http.StatusOK, envelope{"ok": true, "document": resp})
}

func (s *Server) handleAdminListPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := s.db.ListPaymentsForReview(r.Context(), adminPaymentLimit)
	if err != nil {
		s.serverError(w, r, "list_payments", err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{"payments": toPaymentResponses(payments)})
}

// handleAdminReviewPayment verifies or rejects a payment. A verified payment
// approves the team.
func (s *Server) handleAdminReviewPayment(w http.ResponseWriter, r *http.Request) {
	var payload reviewPayload
	if err := s.readJSON(w, r, &payload); err != nil {
		s.errorJSON(w, err, http.StatusBadRequest)
		return
	}

	status := database.PaymentRejected
	if payload.Action == "verify" {
		status = database.PaymentVerified
	}

	var payment *database.Payment
	err := s.db.WriteTx(r.Context(), func(tx *sql.Tx) error {
		if err := s.db.UpdatePaymentStatus(r.Context(), tx, payload.ID, status); err != nil {
			return err
		}
		var err error
		payment, err = s.db.GetPaymentByID(r.Context(), tx, payload.ID)
		if err != nil {
			return err
		}
		if status == database.PaymentVerified {
			return s.db.UpdateTeamStatus(r.Context(), tx, payment.TeamID, database.TeamStatusApproved)
		}
		return nil
	})
	if errors.Is(err, database.ErrNotFound) {
		s.errorJSON(w, errors.New("payment not found"), http.StatusNotFound)
		return
	}
	if err != nil {
		s.serverError(w, r, "review_payment", err)
		return
	}

	resp := toPaymentResponse(payment)
	recipients, err := s.teamUserIDs(r.Context(), payment.TeamID)
	if err != nil {
		s.serverError(w, r, "payment_recipients", err)
		return
	}
	s.notifier.Users(recipients, realtime.Message{Type: realtime.TypePaymentReviewed, Payload: resp})
	s.writeJSON(w, http.StatusOK, envelope{"ok": true, "payment": resp})
}

type importBannedPayload struct {
	Words      []string `json:"words"`
	SourceFile string   `json:"sourceFile" validate:"omitempty,max=200"`
}

// handleAdminImportBannedNames replaces the normalized forms of the given
// words with fresh rows.
func (s *Server) handleAdminImportBannedNames(w http.ResponseWriter, r *http.Request) {
	var payload importBannedPayload
	if err := s.readJSON(w, r, &payload); err != nil {
		s.errorJSON(w, err, http.StatusBadRequest)
		return
	}

	inserted, err := s.importer.Import(r.Context(), payload.Words, payload.SourceFile)
	if errors.Is(err, namefilter.ErrNoWords) {
		s.errorJSON(w, err, http.StatusBadRequest)
		return
	}
	if err != nil {
		s.serverError(w, r, "import_banned_names", err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{"inserted": inserted})
}

// handleAdminListBannedNames lists banned names, newest first, optionally
// filtered by a substring of the normalized form.
func (s *Server) handleAdminListBannedNames(w http.ResponseWriter, r *http.Request) {
	pattern := "%"
	if q := namefilter.Normalize(r.URL.Query().Get("q")); q != "" {
		pattern = "%" + namefilter.EscapeLike(q) + "%"
	}

	names, err := s.db.SearchBannedNames(r.Context(), pattern, adminBannedNamesLimit)
	if err != nil {
		s.serverError(w, r, "search_banned_names", err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{"bannedNames": toBannedNameResponses(names)})
}

type getURLPayload struct {
	Key string `json:"key" validate:"required,max=500"`
}

// handleAdminGetObjectURL returns a short-lived download URL for a stored
// file.
func (s *Server) handleAdminGetObjectURL(w http.ResponseWriter, r *http.Request) {
	if s.presigner == nil {
		s.errorJSON(w, errStorageDisabled, http.StatusServiceUnavailable)
		return
	}
	var payload getURLPayload
	if err := s.readJSON(w, r, &payload); err != nil {
		s.errorJSON(w, err, http.StatusBadRequest)
		return
	}

	req, err := s.presigner.PresignGet(r.Context(), payload.Key)
	if err != nil {
		s.serverError(w, r, "presign_get", err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{"url": req.URL})
}
