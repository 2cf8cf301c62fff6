// Package readiness summarizes whether a team is ready to compete: enough
// riders, every rider's documents verified and the entry fee paid.
package readiness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/neadvenduro/advenduro/internal/database"
)

// RequiredDocs lists, in display order, the documents every rider must have
// verified.
var RequiredDocs = []string{
	database.DocLicense,
	database.DocMedical,
	database.DocRC,
	database.DocPUCC,
	database.DocWaiver,
}

const (
	// MinRiders is the number of riders a team needs to compete.
	MinRiders = 3
	// MaxMembers caps the roster, team leads included.
	MaxMembers = 5
)

// Store is the slice of the datastore the aggregator reads from.
type Store interface {
	GetTeamForUser(ctx context.Context, userID int64) (*database.Team, error)
	GetTeam(ctx context.Context, id int64) (*database.Team, error)
	ListTeamMembers(ctx context.Context, teamID int64) ([]database.TeamMember, error)
	ListMemberDocuments(ctx context.Context, memberIDs []int64) ([]database.Document, error)
	GetLatestPayment(ctx context.Context, teamID int64) (*database.Payment, error)
}

type TeamInfo struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

type PaymentInfo struct {
	ID        int64     `json:"id"`
	Status    string    `json:"status"`
	Amount    string    `json:"amount"`
	CreatedAt time.Time `json:"createdAt"`
}

// Rider is one row of the per-rider document table.
type Rider struct {
	MemberID      int64           `json:"memberId"`
	Name          string          `json:"name"`
	Role          string          `json:"role"`
	Docs          map[string]bool `json:"docs"`
	CompleteCount int             `json:"completeCount"`
	RequiredCount int             `json:"requiredCount"`
}

// Status is the readiness summary of a team. When HasTeam is false every
// other field is empty and omitted from the JSON form.
type Status struct {
	HasTeam      bool
	Team         TeamInfo
	RidersCount  int
	MinRequired  int
	MaxAllowed   int
	Payment      *PaymentInfo
	Riders       []Rider
	RequiredDocs []string
}

// MeetsMinimum reports whether the team has at least MinRequired riders.
func (s Status) MeetsMinimum() bool {
	return s.HasTeam && s.RidersCount >= s.MinRequired
}

// PaymentOK reports whether the latest payment has been verified.
func (s Status) PaymentOK() bool {
	return s.Payment != nil && s.Payment.Status == database.PaymentVerified
}

func (s Status) MarshalJSON() ([]byte, error) {
	if !s.HasTeam {
		return []byte(`{"hasTeam":false}`), nil
	}
	riders := s.Riders
	if riders == nil {
		riders = []Rider{}
	}
	return json.Marshal(struct {
		HasTeam      bool         `json:"hasTeam"`
		Team         TeamInfo     `json:"team"`
		RidersCount  int          `json:"ridersCount"`
		MinRequired  int          `json:"minRequired"`
		MaxAllowed   int          `json:"maxAllowed"`
		Payment      *PaymentInfo `json:"payment"`
		Riders       []Rider      `json:"riders"`
		RequiredDocs []string     `json:"requiredDocs"`
	}{
		HasTeam:      true,
		Team:         s.Team,
		RidersCount:  s.RidersCount,
		MinRequired:  s.MinRequired,
		MaxAllowed:   s.MaxAllowed,
		Payment:      s.Payment,
		Riders:       riders,
		RequiredDocs: s.RequiredDocs,
	})
}

// Summarize combines a team's roster, the documents owned by its members and
// its latest payment (nil when none) into a Status. Only verified documents
// of a required type count; one verified copy is enough when a member
// uploaded several. Team leads are left out of the rider table and count.
func Summarize(team *database.Team, members []database.TeamMember, docs []database.Document, payment *database.Payment) Status {
	byOwner := make(map[int64][]database.Document, len(members))
	for _, d := range docs {
		if d.OwnerType != database.OwnerTeamMember {
			continue
		}
		byOwner[d.OwnerID] = append(byOwner[d.OwnerID], d)
	}

	riders := make([]Rider, 0, len(members))
	for _, m := range members {
		if database.IsTeamLead(m.Role) {
			continue
		}
		docMap := make(map[string]bool, len(RequiredDocs))
		for _, t := range RequiredDocs {
			docMap[t] = false
		}
		for _, d := range byOwner[m.ID] {
			if _, required := docMap[d.DocType]; required && d.VerifiedAt.Valid {
				docMap[d.DocType] = true
			}
		}
		complete := 0
		for _, ok := range docMap {
			if ok {
				complete++
			}
		}
		riders = append(riders, Rider{
			MemberID:      m.ID,
			Name:          m.DisplayName(),
			Role:          m.Role,
			Docs:          docMap,
			CompleteCount: complete,
			RequiredCount: len(RequiredDocs),
		})
	}

	st := Status{
		HasTeam:      true,
		Team:         TeamInfo{ID: team.ID, Name: team.Name, Status: team.Status},
		RidersCount:  len(riders),
		MinRequired:  MinRiders,
		MaxAllowed:   MaxMembers,
		Riders:       riders,
		RequiredDocs: append([]string(nil), RequiredDocs...),
	}
	if payment != nil {
		st.Payment = &PaymentInfo{
			ID:        payment.ID,
			Status:    payment.Status,
			Amount:    payment.Amount,
			CreatedAt: payment.CreatedAt,
		}
	}
	return st
}

// Aggregator reads a team's current rows and summarizes them. The reads are
// independent, so the result is a point-in-time view, not a snapshot.
type Aggregator struct {
	store Store
}

func NewAggregator(store Store) *Aggregator {
	return &Aggregator{store: store}
}

// ForUser summarizes the team the user belongs to. A user without a team
// yields a Status with HasTeam false and a nil error.
func (a *Aggregator) ForUser(ctx context.Context, userID int64) (Status, error) {
	team, err := a.store.GetTeamForUser(ctx, userID)
	if errors.Is(err, database.ErrNotFound) {
		return Status{}, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("team for user: %w", err)
	}
	return a.summarizeTeam(ctx, team)
}

// ForTeam summarizes the given team, returning HasTeam false when it does
// not exist.
func (a *Aggregator) ForTeam(ctx context.Context, teamID int64) (Status, error) {
	team, err := a.store.GetTeam(ctx, teamID)
	if errors.Is(err, database.ErrNotFound) {
		return Status{}, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("team %d: %w", teamID, err)
	}
	return a.summarizeTeam(ctx, team)
}

func (a *Aggregator) summarizeTeam(ctx context.Context, team *database.Team) (Status, error) {
	members, err := a.store.ListTeamMembers(ctx, team.ID)
	if err != nil {
		return Status{}, fmt.Errorf("team members: %w", err)
	}

	ids := make([]int64, len(members))
	for i, m := range members {
		ids[i] = m.ID
	}
	docs, err := a.store.ListMemberDocuments(ctx, ids)
	if err != nil {
		return Status{}, fmt.Errorf("member documents: %w", err)
	}

	payment, err := a.store.GetLatestPayment(ctx, team.ID)
	if errors.Is(err, database.ErrNotFound) {
		payment, err = nil, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("latest payment: %w", err)
	}

	return Summarize(team, members, docs, payment), nil
}
