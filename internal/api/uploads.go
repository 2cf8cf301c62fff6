package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/neadvenduro/advenduro/internal/database"
	"github.com/neadvenduro/advenduro/internal/logging"
	"github.com/neadvenduro/advenduro/internal/ratelimit"
	"github.com/neadvenduro/advenduro/internal/realtime"
	"github.com/neadvenduro/advenduro/internal/storage"
)

var errStorageDisabled = errors.New("file uploads are not configured")

// canManageOwner reports whether user may attach documents to the owner.
// Administrators may attach to anything; team leads to their team and its
// members; members to themselves.
func (s *Server) canManageOwner(ctx context.Context, user *database.User, ownerType string, ownerID int64) (bool, error) {
	if user.IsAdmin() {
		return true, nil
	}
	switch ownerType {
	case database.OwnerUser:
		return ownerID == user.ID, nil
	case database.OwnerTeam:
		return s.db.IsTeamLeadOf(ctx, ownerID, user.ID)
	case database.OwnerTeamMember:
		member, err := s.db.GetTeamMemberByID(ctx, ownerID)
		if errors.Is(err, database.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if member.UserID == user.ID {
			return true, nil
		}
		return s.db.IsTeamLeadOf(ctx, member.TeamID, user.ID)
	}
	return false, nil
}

// authorizeOwner writes 403 or 500 and returns false unless the user may
// manage the owner.
func (s *Server) authorizeOwner(w http.ResponseWriter, r *http.Request, user *database.User, ownerType string, ownerID int64) bool {
	ok, err := s.canManageOwner(r.Context(), user, ownerType, ownerID)
	if err != nil {
		s.serverError(w, r, "authorize_owner", err)
		return false
	}
	if !ok {
		s.errorJSON(w, errors.New("forbidden"), http.StatusForbidden)
		return false
	}
	return true
}

type presignPayload struct {
	FileName    string `json:"fileName" validate:"required,max=200"`
	ContentType string `json:"contentType" validate:"required,max=100"`
	OwnerType   string `json:"ownerType" validate:"required,oneof=team team_member user"`
	OwnerID     int64  `json:"ownerId" validate:"required,gt=0"`
}

// handlePresignUpload returns a presigned PUT the browser uses to upload a
// file straight to the bucket.
func (s *Server) handlePresignUpload(w http.ResponseWriter, r *http.Request) {
	if s.presigner == nil {
		s.errorJSON(w, errStorageDisabled, http.StatusServiceUnavailable)
		return
	}

	var payload presignPayload
	if err := s.readJSON(w, r, &payload); err != nil {
		s.errorJSON(w, err, http.StatusBadRequest)
		return
	}
	user := s.mustUser(w, r)
	if user == nil {
		return
	}
	if !s.authorizeOwner(w, r, user, payload.OwnerType, payload.OwnerID) {
		return
	}

	key := storage.UploadKey(payload.OwnerType, payload.OwnerID, payload.FileName, time.Now())
	req, err := s.presigner.PresignPut(r.Context(), key, payload.ContentType)
	if err != nil {
		s.serverError(w, r, "presign_put", err)
		return
	}
	s.writeJSON(w, http.StatusOK, req)
}

type createDocumentPayload struct {
	OwnerID     int64  `json:"ownerId" validate:"required,gt=0"`
	OwnerType   string `json:"ownerType" validate:"required,oneof=team team_member user"`
	DocType     string `json:"docType" validate:"required,oneof=license medical rc pucc waiver"`
	FilePath    string `json:"filePath" validate:"required,max=500"`
	FileName    string `json:"fileName" validate:"omitempty,max=200"`
	ContentType string `json:"contentType" validate:"omitempty,max=100"`
	Size        int64  `json:"size" validate:"omitempty,gt=0"`
}

// handleCreateDocument records a file the client has uploaded. The path must
// be a key issued for the same owner.
func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	var payload createDocumentPayload
	if err := s.readJSON(w, r, &payload); err != nil {
		s.errorJSON(w, err, http.StatusBadRequest)
		return
	}
	prefix := fmt.Sprintf("uploads/%s/%d/", payload.OwnerType, payload.OwnerID)
	if !strings.HasPrefix(payload.FilePath, prefix) || strings.Contains(payload.FilePath, "..") {
		s.errorJSON(w, errors.New("filePath does not belong to this owner"), http.StatusBadRequest)
		return
	}

	user := s.mustUser(w, r)
	if user == nil {
		return
	}
	if !s.authorizeOwner(w, r, user, payload.OwnerType, payload.OwnerID) {
		return
	}

	var doc *database.Document
	err := s.db.WriteTx(r.Context(), func(tx *sql.Tx) error {
		var err error
		doc, err = s.db.CreateDocument(r.Context(), tx, database.NewDocument{
			OwnerID:     payload.OwnerID,
			OwnerType:   payload.OwnerType,
			DocType:     payload.DocType,
			FilePath:    payload.FilePath,
			FileName:    payload.FileName,
			ContentType: payload.ContentType,
			Size:        payload.Size,
		})
		return err
	})
	if err != nil {
		s.serverError(w, r, "create_document", err)
		return
	}

	resp := toDocumentResponse(doc)
	s.notifier.Admins(
		realtime.Message{Type: realtime.TypeDocumentUploaded, Payload: resp},
		fmt.Sprintf("New %s document uploaded by %s (%s #%d)", doc.DocType, user.DisplayName(), doc.OwnerType, doc.OwnerID),
	)
	s.writeJSON(w, http.StatusCreated, envelope{"document": resp})
}

var amountPattern = regexp.MustCompile(`^\d{1,8}(\.\d{1,2})?$`)

type upiPaymentPayload struct {
	TeamID   int64       `json:"teamId" validate:"required,gt=0"`
	Amount   json.Number `json:"amount" validate:"required"`
	TxnRef   string      `json:"txnRef" validate:"omitempty,max=100"`
	ProofURL string      `json:"proofUrl" validate:"omitempty,max=500"`
}

// handleSubmitUPIPayment records a pending UPI payment for a team the caller
// belongs to.
func (s *Server) handleSubmitUPIPayment(w http.ResponseWriter, r *http.Request) {
	var payload upiPaymentPayload
	if err := s.readJSON(w, r, &payload); err != nil {
		s.errorJSON(w, err, http.StatusBadRequest)
		return
	}
	amount := payload.Amount.String()
	if !amountPattern.MatchString(amount) {
		s.errorJSON(w, errors.New("amount must be a positive number with at most 2 decimals"), http.StatusBadRequest)
		return
	}
	if v, err := strconv.ParseFloat(amount, 64); err != nil || v <= 0 {
		s.errorJSON(w, errors.New("amount must be greater than 0"), http.StatusBadRequest)
		return
	}

	user := s.mustUser(w, r)
	if user == nil {
		return
	}
	if !user.IsAdmin() {
		memberships, err := s.db.GetMemberships(r.Context(), payload.TeamID, user.ID)
		if err != nil {
			s.serverError(w, r, "load_memberships", err)
			return
		}
		if len(memberships) == 0 {
			s.errorJSON(w, errors.New("forbidden"), http.StatusForbidden)
			return
		}
	}

	var payment *database.Payment
	err := s.db.WriteTx(r.Context(), func(tx *sql.Tx) error {
		var err error
		payment, err = s.db.CreatePayment(r.Context(), tx, payload.TeamID, amount, database.PaymentMethodUPI, payload.TxnRef, payload.ProofURL)
		if err != nil {
			return err
		}
		return s.db.LogActivity(r.Context(), tx, payload.TeamID, user.ID, database.ActivitySubmitPayment, ratelimit.ClientIP(r))
	})
	if err != nil {
		s.serverError(w, r, "create_payment", err)
		return
	}

	logging.Event("payment_submitted", map[string]interface{}{"team_id": payment.TeamID, "payment_id": payment.ID})
	resp := toPaymentResponse(payment)
	s.notifier.Admins(
		realtime.Message{Type: realtime.TypePaymentSubmitted, Payload: resp},
		fmt.Sprintf("UPI payment of %s submitted for team #%d (ref %s)", payment.Amount, payment.TeamID, payload.TxnRef),
	)
	s.writeJSON(w, http.StatusCreated, envelope{"payment": resp})
}
