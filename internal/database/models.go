package database

import (
	"database/sql"
	"time"
)

// User roles.
const (
	UserRoleAdmin  = "admin"
	UserRoleMember = "member"
)

// Team member roles. Any role other than owner or captain is a rider.
const (
	RoleOwner   = "owner"
	RoleCaptain = "captain"
	RoleRider   = "rider"
)

// IsTeamLead reports whether a team member role leads the team. Team leads
// manage the roster and are exempt from the rider document requirements.
func IsTeamLead(role string) bool {
	return role == RoleOwner || role == RoleCaptain
}

// Team statuses.
const (
	TeamStatusPending  = "pending"
	TeamStatusApproved = "approved"
)

// Document owner types and document types.
const (
	OwnerTeam       = "team"
	OwnerTeamMember = "team_member"
	OwnerUser       = "user"

	DocLicense = "license"
	DocMedical = "medical"
	DocRC      = "rc"
	DocPUCC    = "pucc"
	DocWaiver  = "waiver"
)

// Payment statuses and methods.
const (
	PaymentPending  = "pending"
	PaymentVerified = "verified"
	PaymentRejected = "rejected"

	PaymentMethodUPI = "UPI_QR"
)

// Invitation statuses.
const (
	InvitationPending  = "pending"
	InvitationAccepted = "accepted"
)

// User represents a record in the 'users' table. PasswordHash is NULL for
// placeholder riders and Google-only accounts.
type User struct {
	ID           int64          `json:"id"`
	Name         sql.NullString `json:"-"`
	Email        string         `json:"email"`
	PasswordHash sql.NullString `json:"-"`
	Role         string         `json:"role"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// DisplayName is the user's name, falling back to the email address.
func (u *User) DisplayName() string {
	if u.Name.Valid && u.Name.String != "" {
		return u.Name.String
	}
	return u.Email
}

// IsAdmin reports whether the user may use the administration endpoints.
func (u *User) IsAdmin() bool {
	return u.Role == UserRoleAdmin
}

// Team represents a record in the 'teams' table.
type Team struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	SlotsPaid int       `json:"slotsPaid"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TeamMember represents a record in the 'team_members' table. UserName and
// UserEmail are populated by roster queries that join the users table.
type TeamMember struct {
	ID       int64     `json:"id"`
	TeamID   int64     `json:"teamId"`
	UserID   int64     `json:"userId"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`

	UserName  sql.NullString `json:"-"`
	UserEmail string         `json:"-"`
}

// DisplayName is the member's user name, falling back to the email address.
func (m *TeamMember) DisplayName() string {
	if m.UserName.Valid && m.UserName.String != "" {
		return m.UserName.String
	}
	return m.UserEmail
}

// Invitation represents a record in the 'invitations' table.
type Invitation struct {
	ID        int64     `json:"id"`
	TeamID    int64     `json:"teamId"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	InvitedBy int64     `json:"invitedBy"`
	InvitedAt time.Time `json:"invitedAt"`
	Token     string    `json:"-"`
	Status    string    `json:"status"`
}

// Document represents a record in the 'documents' table. A document counts
// as complete only once VerifiedAt is set.
type Document struct {
	ID          int64
	OwnerID     int64
	OwnerType   string
	DocType     string
	FilePath    string
	FileName    sql.NullString
	ContentType sql.NullString
	Size        sql.NullInt64
	UploadedAt  time.Time
	VerifiedBy  sql.NullInt64
	VerifiedAt  sql.NullTime
	Notes       sql.NullString
}

// ReviewDocument is a document joined with the team and rider it belongs to,
// as listed for administrators. The joined fields are NULL for documents not
// owned by a team member.
type ReviewDocument struct {
	Document
	TeamID     sql.NullInt64
	TeamName   sql.NullString
	RiderName  sql.NullString
	RiderEmail sql.NullString
}

// Payment represents a record in the 'payments' table. TeamName is only
// populated by the administrator listing.
type Payment struct {
	ID        int64
	TeamID    int64
	Amount    string
	Method    string
	Status    string
	TxnRef    sql.NullString
	ProofURL  sql.NullString
	CreatedAt time.Time
	UpdatedAt time.Time

	TeamName sql.NullString
}

// BannedName represents a record in the 'banned_names' table.
type BannedName struct {
	ID         int64          `json:"id"`
	Word       string         `json:"word"`
	Normalized string         `json:"normalized"`
	SourceFile sql.NullString `json:"-"`
	CreatedAt  time.Time      `json:"createdAt"`
}
