package database

import (
	"context"
	"database/sql"
)

const documentColumns = `d.id, d.owner_id, d.owner_type, d.doc_type, d.file_path, d.file_name,
	d.content_type, d.size, d.uploaded_at, d.verified_by, d.verified_at, d.notes`

func (d *Document) scanTargets() []interface{} {
	return []interface{}{
		&d.ID, &d.OwnerID, &d.OwnerType, &d.DocType, &d.FilePath, &d.FileName,
		&d.ContentType, &d.Size, &d.UploadedAt, &d.VerifiedBy, &d.VerifiedAt, &d.Notes,
	}
}

// NewDocument holds the metadata recorded after a file reached storage.
type NewDocument struct {
	OwnerID     int64
	OwnerType   string
	DocType     string
	FilePath    string
	FileName    string
	ContentType string
	Size        int64
}

// CreateDocument records an uploaded, not yet verified document.
func (s *Service) CreateDocument(ctx context.Context, db DBorTx, in NewDocument) (*Document, error) {
	query := `INSERT INTO documents (owner_id, owner_type, doc_type, file_path, file_name, content_type, size, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`
	size := sql.NullInt64{Int64: in.Size, Valid: in.Size > 0}
	id, err := s.insertID(ctx, db, query,
		in.OwnerID, in.OwnerType, in.DocType, in.FilePath,
		nullString(in.FileName), nullString(in.ContentType), size, s.now())
	if err != nil {
		return nil, err
	}
	return s.GetDocumentByID(ctx, db, id)
}

func (s *Service) GetDocumentByID(ctx context.Context, db DBorTx, id int64) (*Document, error) {
	doc := &Document{}
	err := s.queryRow(ctx, db, `SELECT `+documentColumns+` FROM documents d WHERE d.id = ?`, id).Scan(doc.scanTargets()...)
	if err != nil {
		return nil, notFound(err)
	}
	return doc, nil
}

// ListMemberDocuments returns every document owned by one of the given team
// members.
func (s *Service) ListMemberDocuments(ctx context.Context, memberIDs []int64) ([]Document, error) {
	if len(memberIDs) == 0 {
		return nil, nil
	}

	args := make([]interface{}, 0, len(memberIDs)+1)
	args = append(args, OwnerTeamMember)
	for _, id := range memberIDs {
		args = append(args, id)
	}
	query := `SELECT ` + documentColumns + ` FROM documents d
		WHERE d.owner_type = ? AND d.owner_id IN (` + placeholders(len(memberIDs)) + `)
		ORDER BY d.id`

	rows, err := s.query(ctx, s.db, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(d.scanTargets()...); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// ListDocumentsForReview returns the most recently uploaded documents with
// the team and rider they belong to.
func (s *Service) ListDocumentsForReview(ctx context.Context, limit int) ([]ReviewDocument, error) {
	query := `
		SELECT ` + documentColumns + `, t.id, t.name, u.name, u.email
		FROM documents d
		LEFT JOIN team_members tm ON d.owner_type = ? AND tm.id = d.owner_id
		LEFT JOIN teams t ON t.id = tm.team_id
		LEFT JOIN users u ON u.id = tm.user_id
		ORDER BY d.uploaded_at DESC, d.id DESC
		LIMIT ?`

	rows, err := s.query(ctx, s.db, query, OwnerTeamMember, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []ReviewDocument
	for rows.Next() {
		var d ReviewDocument
		targets := append(d.scanTargets(), &d.TeamID, &d.TeamName, &d.RiderName, &d.RiderEmail)
		if err := rows.Scan(targets...); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// VerifyDocument marks a document verified by the given administrator.
func (s *Service) VerifyDocument(ctx context.Context, db DBorTx, id, adminID int64, note string) error {
	query := `UPDATE documents SET verified_by = ?, verified_at = ?, notes = ? WHERE id = ?`
	return expectRow(s.exec(ctx, db, query, adminID, s.now(), nullString(note), id))
}

// RejectDocument records a rejection in the notes and leaves the document
// unverified.
func (s *Service) RejectDocument(ctx context.Context, db DBorTx, id int64, note string) error {
	notes := "REJECTED"
	if note != "" {
		notes = "REJECTED: " + note
	}
	query := `UPDATE documents SET notes = ? WHERE id = ?`
	return expectRow(s.exec(ctx, db, query, notes, id))
}
