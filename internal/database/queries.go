package database

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

// --- User Queries ---

const userColumns = `id, name, email, password_hash, role, created_at, updated_at`

func scanUser(row interface{ Scan(...interface{}) error }) (*User, error) {
	user := &User{}
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return user, nil
}

// CreateUser inserts a member account. An empty name or password hash is
// stored as NULL.
func (s *Service) CreateUser(ctx context.Context, db DBorTx, name, email, passwordHash string) (*User, error) {
	now := s.now()
	query := `INSERT INTO users (name, email, password_hash, role, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?) RETURNING id`
	id, err := s.insertID(ctx, db, query, nullString(name), email, nullString(passwordHash), UserRoleMember, now, now)
	if err != nil {
		return nil, err
	}
	return s.GetUserByID(ctx, db, id)
}

func (s *Service) GetUserByEmail(ctx context.Context, db DBorTx, email string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ?`
	return scanUser(s.queryRow(ctx, db, query, email))
}

func (s *Service) GetUserByID(ctx context.Context, db DBorTx, id int64) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return scanUser(s.queryRow(ctx, db, query, id))
}

// SetUserPassword sets the password hash (and the name when given) of an
// existing account, used when a placeholder rider accepts an invitation.
func (s *Service) SetUserPassword(ctx context.Context, db DBorTx, userID int64, name, passwordHash string) error {
	query := `UPDATE users SET password_hash = ?, name = COALESCE(?, name), updated_at = ? WHERE id = ?`
	return expectRow(s.exec(ctx, db, query, passwordHash, nullString(name), s.now(), userID))
}

// UpdateUserName changes the display name of an account.
func (s *Service) UpdateUserName(ctx context.Context, db DBorTx, userID int64, name string) error {
	query := `UPDATE users SET name = ?, updated_at = ? WHERE id = ?`
	return expectRow(s.exec(ctx, db, query, nullString(name), s.now(), userID))
}

// SetUserRoleByEmail changes the role of the account with the given email.
func (s *Service) SetUserRoleByEmail(ctx context.Context, db DBorTx, email, role string) error {
	query := `UPDATE users SET role = ?, updated_at = ? WHERE email = ?`
	return expectRow(s.exec(ctx, db, query, role, s.now(), email))
}

// --- Team & Membership Queries ---

const teamColumns = `id, name, status, slots_paid, created_at, updated_at`

func scanTeam(row interface{ Scan(...interface{}) error }) (*Team, error) {
	team := &Team{}
	err := row.Scan(&team.ID, &team.Name, &team.Status, &team.SlotsPaid, &team.CreatedAt, &team.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return team, nil
}

// CreateTeam inserts a pending team with no paid slots.
func (s *Service) CreateTeam(ctx context.Context, db DBorTx, name string) (*Team, error) {
	now := s.now()
	query := `INSERT INTO teams (name, status, slots_paid, created_at, updated_at)
		VALUES (?, ?, 0, ?, ?) RETURNING id`
	id, err := s.insertID(ctx, db, query, name, TeamStatusPending, now, now)
	if err != nil {
		return nil, err
	}
	return s.GetTeamByID(ctx, db, id)
}

func (s *Service) GetTeamByID(ctx context.Context, db DBorTx, id int64) (*Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams WHERE id = ?`
	return scanTeam(s.queryRow(ctx, db, query, id))
}

// GetTeam is GetTeamByID outside a transaction.
func (s *Service) GetTeam(ctx context.Context, id int64) (*Team, error) {
	return s.GetTeamByID(ctx, s.db, id)
}

// GetTeamForUser returns the team of the user's earliest membership, or
// ErrNotFound when the user belongs to no team.
func (s *Service) GetTeamForUser(ctx context.Context, userID int64) (*Team, error) {
	query := `
		SELECT t.id, t.name, t.status, t.slots_paid, t.created_at, t.updated_at
		FROM teams t
		JOIN team_members tm ON tm.team_id = t.id
		WHERE tm.user_id = ?
		ORDER BY tm.id
		LIMIT 1`
	return scanTeam(s.queryRow(ctx, s.db, query, userID))
}

// UpdateTeamStatus sets a team's status.
func (s *Service) UpdateTeamStatus(ctx context.Context, db DBorTx, teamID int64, status string) error {
	query := `UPDATE teams SET status = ?, updated_at = ? WHERE id = ?`
	return expectRow(s.exec(ctx, db, query, status, s.now(), teamID))
}

// AddTeamMember links a user to a team with the given role.
func (s *Service) AddTeamMember(ctx context.Context, db DBorTx, teamID, userID int64, role string) (*TeamMember, error) {
	joinedAt := s.now()
	query := `INSERT INTO team_members (team_id, user_id, role, joined_at) VALUES (?, ?, ?, ?) RETURNING id`
	id, err := s.insertID(ctx, db, query, teamID, userID, role, joinedAt)
	if err != nil {
		return nil, err
	}
	return &TeamMember{ID: id, TeamID: teamID, UserID: userID, Role: role, JoinedAt: joinedAt}, nil
}

// GetTeamMemberByID returns a single roster entry.
func (s *Service) GetTeamMemberByID(ctx context.Context, id int64) (*TeamMember, error) {
	query := `SELECT id, team_id, user_id, role, joined_at FROM team_members WHERE id = ?`
	m := &TeamMember{}
	if err := s.queryRow(ctx, s.db, query, id).Scan(&m.ID, &m.TeamID, &m.UserID, &m.Role, &m.JoinedAt); err != nil {
		return nil, notFound(err)
	}
	return m, nil
}

// ListTeamMembers returns the roster of a team, joined with each member's
// user name and email, in joining order.
func (s *Service) ListTeamMembers(ctx context.Context, teamID int64) ([]TeamMember, error) {
	query := `
		SELECT tm.id, tm.team_id, tm.user_id, tm.role, tm.joined_at, u.name, u.email
		FROM team_members tm
		JOIN users u ON u.id = tm.user_id
		WHERE tm.team_id = ?
		ORDER BY tm.id`

	rows, err := s.query(ctx, s.db, query, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []TeamMember
	for rows.Next() {
		var m TeamMember
		if err := rows.Scan(&m.ID, &m.TeamID, &m.UserID, &m.Role, &m.JoinedAt, &m.UserName, &m.UserEmail); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// IsTeamMember reports whether the user is on the team's roster. It takes a
// DBorTx so roster checks can run inside the write that extends the roster.
func (s *Service) IsTeamMember(ctx context.Context, db DBorTx, teamID, userID int64) (bool, error) {
	var n int
	err := s.queryRow(ctx, db, `SELECT COUNT(*) FROM team_members WHERE team_id = ? AND user_id = ?`, teamID, userID).Scan(&n)
	return n > 0, err
}

// CountTeamMembers returns the number of roster entries of a team.
func (s *Service) CountTeamMembers(ctx context.Context, db DBorTx, teamID int64) (int, error) {
	var n int
	err := s.queryRow(ctx, db, `SELECT COUNT(*) FROM team_members WHERE team_id = ?`, teamID).Scan(&n)
	return n, err
}

// GetMemberships returns the roster entries of the user in the team. The
// (team_id, user_id) index allows at most one.
func (s *Service) GetMemberships(ctx context.Context, teamID, userID int64) ([]TeamMember, error) {
	query := `SELECT id, team_id, user_id, role, joined_at FROM team_members WHERE team_id = ? AND user_id = ?`
	rows, err := s.query(ctx, s.db, query, teamID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []TeamMember
	for rows.Next() {
		var m TeamMember
		if err := rows.Scan(&m.ID, &m.TeamID, &m.UserID, &m.Role, &m.JoinedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// IsTeamLeadOf reports whether the user holds a team-lead role in the team.
func (s *Service) IsTeamLeadOf(ctx context.Context, teamID, userID int64) (bool, error) {
	memberships, err := s.GetMemberships(ctx, teamID, userID)
	if err != nil {
		return false, err
	}
	for _, m := range memberships {
		if IsTeamLead(m.Role) {
			return true, nil
		}
	}
	return false, nil
}

// --- Invitation Queries ---

const invitationColumns = `id, team_id, email, role, invited_by, invited_at, token, status`

func scanInvitation(row interface{ Scan(...interface{}) error }) (*Invitation, error) {
	inv := &Invitation{}
	var token sql.NullString
	err := row.Scan(&inv.ID, &inv.TeamID, &inv.Email, &inv.Role, &inv.InvitedBy, &inv.InvitedAt, &token, &inv.Status)
	if err != nil {
		return nil, notFound(err)
	}
	inv.Token = token.String
	return inv, nil
}

func (s *Service) CreateInvitation(ctx context.Context, db DBorTx, teamID, invitedBy int64, email, role, token string) (*Invitation, error) {
	query := `INSERT INTO invitations (team_id, email, role, invited_by, invited_at, token, status)
		VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`
	id, err := s.insertID(ctx, db, query, teamID, email, role, invitedBy, s.now(), token, InvitationPending)
	if err != nil {
		return nil, err
	}
	return scanInvitation(s.queryRow(ctx, db, `SELECT `+invitationColumns+` FROM invitations WHERE id = ?`, id))
}

func (s *Service) GetInvitationByToken(ctx context.Context, db DBorTx, token string) (*Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM invitations WHERE token = ?`
	return scanInvitation(s.queryRow(ctx, db, query, token))
}

// AcceptInvitation moves a pending invitation to accepted. It returns
// ErrNotFound when the invitation does not exist or was already used.
func (s *Service) AcceptInvitation(ctx context.Context, db DBorTx, invitationID int64) error {
	query := `UPDATE invitations SET status = ? WHERE id = ? AND status = ?`
	return expectRow(s.exec(ctx, db, query, InvitationAccepted, invitationID, InvitationPending))
}

// --- Activity Log ---

// Activity types recorded in activity_logs.
const (
	ActivityCreateTeam       = "CREATE_TEAM"
	ActivityAddTeamMember    = "ADD_TEAM_MEMBER"
	ActivityInviteTeamMember = "INVITE_TEAM_MEMBER"
	ActivityAcceptInvitation = "ACCEPT_INVITATION"
	ActivitySubmitPayment    = "SUBMIT_PAYMENT"
)

// LogActivity appends an entry to the team's activity log.
func (s *Service) LogActivity(ctx context.Context, db DBorTx, teamID, userID int64, action, ipAddress string) error {
	query := `INSERT INTO activity_logs (team_id, user_id, action, timestamp, ip_address) VALUES (?, ?, ?, ?, ?)`
	_, err := s.exec(ctx, db, query, teamID, userID, action, s.now(), nullString(ipAddress))
	return err
}

// --- helpers ---

// insertID runs an INSERT ... RETURNING id statement.
func (s *Service) insertID(ctx context.Context, db DBorTx, query string, args ...interface{}) (int64, error) {
	var id int64
	if err := s.queryRow(ctx, db, query, args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

// expectRow turns an UPDATE/DELETE that touched no row into ErrNotFound.
func expectRow(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// IsUniqueViolation reports whether err came from a UNIQUE constraint in
// either dialect.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var coded interface{ SQLState() string }
	if errors.As(err, &coded) {
		return coded.SQLState() == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
