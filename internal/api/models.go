package api

import (
	"database/sql"
	"time"

	"github.com/neadvenduro/advenduro/internal/database"
)

// UserResponse is the public view of an account. Password hashes never leave
// the database layer.
type UserResponse struct {
	ID        int64     `json:"id"`
	Name      *string   `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

func toUserResponse(user *database.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Name:      nullableString(user.Name),
		Email:     user.Email,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
	}
}

type DocumentResponse struct {
	ID          int64      `json:"id"`
	OwnerID     int64      `json:"ownerId"`
	OwnerType   string     `json:"ownerType"`
	DocType     string     `json:"docType"`
	FilePath    string     `json:"filePath"`
	FileName    *string    `json:"fileName"`
	ContentType *string    `json:"contentType"`
	Size        *int64     `json:"size"`
	UploadedAt  time.Time  `json:"uploadedAt"`
	VerifiedAt  *time.Time `json:"verifiedAt"`
	Notes       *string    `json:"notes"`
}

func toDocumentResponse(d *database.Document) DocumentResponse {
	resp := DocumentResponse{
		ID:          d.ID,
		OwnerID:     d.OwnerID,
		OwnerType:   d.OwnerType,
		DocType:     d.DocType,
		FilePath:    d.FilePath,
		FileName:    nullableString(d.FileName),
		ContentType: nullableString(d.ContentType),
		UploadedAt:  d.UploadedAt,
		Notes:       nullableString(d.Notes),
	}
	if d.Size.Valid {
		resp.Size = &d.Size.Int64
	}
	if d.VerifiedAt.Valid {
		resp.VerifiedAt = &d.VerifiedAt.Time
	}
	return resp
}

// ReviewDocumentResponse is a document as listed for administrators, with
// the team and rider it belongs to when the owner is a team member.
type ReviewDocumentResponse struct {
	DocumentResponse
	TeamID     *int64  `json:"teamId"`
	TeamName   *string `json:"teamName"`
	RiderName  *string `json:"riderName"`
	RiderEmail *string `json:"riderEmail"`
}

func toReviewDocumentResponses(docs []database.ReviewDocument) []ReviewDocumentResponse {
	out := make([]ReviewDocumentResponse, len(docs))
	for i := range docs {
		d := &docs[i]
		out[i] = ReviewDocumentResponse{
			DocumentResponse: toDocumentResponse(&d.Document),
			TeamName:         nullableString(d.TeamName),
			RiderName:        nullableString(d.RiderName),
			RiderEmail:       nullableString(d.RiderEmail),
		}
		if d.TeamID.Valid {
			out[i].TeamID = &d.TeamID.Int64
		}
	}
	return out
}

type PaymentResponse struct {
	ID        int64     `json:"id"`
	TeamID    int64     `json:"teamId"`
	Amount    string    `json:"amount"`
	Method    string    `json:"method"`
	Status    string    `json:"status"`
	TxnRef    *string   `json:"txnRef"`
	ProofURL  *string   `json:"proofUrl"`
	CreatedAt time.Time `json:"createdAt"`
	TeamName  *string   `json:"teamName,omitempty"`
}

func toPaymentResponse(p *database.Payment) PaymentResponse {
	return PaymentResponse{
		ID:        p.ID,
		TeamID:    p.TeamID,
		Amount:    p.Amount,
		Method:    p.Method,
		Status:    p.Status,
		TxnRef:    nullableString(p.TxnRef),
		ProofURL:  nullableString(p.ProofURL),
		CreatedAt: p.CreatedAt,
		TeamName:  nullableString(p.TeamName),
	}
}

func toPaymentResponses(payments []database.Payment) []PaymentResponse {
	out := make([]PaymentResponse, len(payments))
	for i := range payments {
		out[i] = toPaymentResponse(&payments[i])
	}
	return out
}

type BannedNameResponse struct {
	ID         int64     `json:"id"`
	Word       string    `json:"word"`
	Normalized string    `json:"normalized"`
	SourceFile *string   `json:"sourceFile"`
	CreatedAt  time.Time `json:"createdAt"`
}

func toBannedNameResponses(names []database.BannedName) []BannedNameResponse {
	out := make([]BannedNameResponse, len(names))
	for i, b := range names {
		out[i] = BannedNameResponse{
			ID:         b.ID,
			Word:       b.Word,
			Normalized: b.Normalized,
			SourceFile: nullableString(b.SourceFile),
			CreatedAt:  b.CreatedAt,
		}
	}
	return out
}

// nullableString maps NULL to a JSON null.
func nullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}
