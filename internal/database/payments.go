package database

import (
	"context"
)

const paymentColumns = `p.id, p.team_id, CAST(p.amount AS TEXT), p.method, p.status, p.txn_ref, p.proof_url, p.created_at, p.updated_at`

func (p *Payment) scanTargets() []interface{} {
	return []interface{}{
		&p.ID, &p.TeamID, &p.Amount, &p.Method, &p.Status, &p.TxnRef, &p.ProofURL, &p.CreatedAt, &p.UpdatedAt,
	}
}

// CreatePayment records a pending payment claim for a team.
func (s *Service) CreatePayment(ctx context.Context, db DBorTx, teamID int64, amount, method, txnRef, proofURL string) (*Payment, error) {
	now := s.now()
	query := `INSERT INTO payments (team_id, amount, method, status, txn_ref, proof_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`
	id, err := s.insertID(ctx, db, query,
		teamID, amount, method, PaymentPending, nullString(txnRef), nullString(proofURL), now, now)
	if err != nil {
		return nil, err
	}
	return s.GetPaymentByID(ctx, db, id)
}

func (s *Service) GetPaymentByID(ctx context.Context, db DBorTx, id int64) (*Payment, error) {
	p := &Payment{}
	err := s.queryRow(ctx, db, `SELECT `+paymentColumns+` FROM payments p WHERE p.id = ?`, id).Scan(p.scanTargets()...)
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

// GetLatestPayment returns the team's most recently created payment. Payments
// created at the same instant are ordered by id, the highest winning. It
// returns ErrNotFound when the team has no payment.
func (s *Service) GetLatestPayment(ctx context.Context, teamID int64) (*Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments p
		WHERE p.team_id = ?
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT 1`
	p := &Payment{}
	if err := s.queryRow(ctx, s.db, query, teamID).Scan(p.scanTargets()...); err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

// ListPaymentsForReview returns the most recent payments with their team name.
func (s *Service) ListPaymentsForReview(ctx context.Context, limit int) ([]Payment, error) {
	query := `SELECT ` + paymentColumns + `, t.name
		FROM payments p
		LEFT JOIN teams t ON t.id = p.team_id
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT ?`

	rows, err := s.query(ctx, s.db, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(append(p.scanTargets(), &p.TeamName)...); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// UpdatePaymentStatus sets the status of a payment.
func (s *Service) UpdatePaymentStatus(ctx context.Context, db DBorTx, id int64, status string) error {
	query := `UPDATE payments SET status = ?, updated_at = ? WHERE id = ?`
	return expectRow(s.exec(ctx, db, query, status, s.now(), id))
}
