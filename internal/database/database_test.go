package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	s, err := NewService(DriverSQLite, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(s.Close)
	if err := s.InitSchema(context.Background()); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	return s
}

func mustUser(t *testing.T, s *Service, email string) *User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), s.DB(), "", email, "")
	if err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return u
}

func mustTeam(t *testing.T, s *Service, name string) *Team {
	t.Helper()
	team, err := s.CreateTeam(context.Background(), s.DB(), name)
	if err != nil {
		t.Fatalf("create team: %v", err)
	}
	return team
}

func TestInitSchemaIsIdempotent(t *testing.T) {
	s := newTestService(t)
	if err := s.InitSchema(context.Background()); err != nil {
		t.Fatalf("second InitSchema: %v", err)
	}
}

func TestRebind(t *testing.T) {
	s := &Service{driver: DriverPostgres}
	got := s.rebind(`SELECT 1 FROM t WHERE a = ? AND b IN (?, ?)`)
	want := `SELECT 1 FROM t WHERE a = $1 AND b IN ($2, $3)`
	if got != want {
		t.Errorf("rebind = %q, want %q", got, want)
	}

	s.driver = DriverSQLite
	if got := s.rebind(`a = ?`); got != `a = ?` {
		t.Errorf("sqlite rebind changed the query: %q", got)
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	mustUser(t, s, "rider@example.com")
	_, err := s.CreateUser(ctx, s.DB(), "", "rider@example.com", "")
	if !IsUniqueViolation(err) {
		t.Fatalf("expected unique violation, got %v", err)
	}

	if _, err := s.GetUserByEmail(ctx, s.DB(), "nobody@example.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetUserByEmail(unknown) err = %v, want ErrNotFound", err)
	}
}

func TestTeamMembership(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	owner := mustUser(t, s, "owner@example.com")
	rider := mustUser(t, s, "rider@example.com")
	team := mustTeam(t, s, "Dust Devils")

	if _, err := s.AddTeamMember(ctx, s.DB(), team.ID, owner.ID, RoleOwner); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddTeamMember(ctx, s.DB(), team.ID, rider.ID, RoleRider); err != nil {
		t.Fatal(err)
	}

	n, err := s.CountTeamMembers(ctx, s.DB(), team.ID)
	if err != nil || n != 2 {
		t.Fatalf("CountTeamMembers = %d, %v; want 2", n, err)
	}

	lead, err := s.IsTeamLeadOf(ctx, team.ID, owner.ID)
	if err != nil || !lead {
		t.Errorf("owner IsTeamLeadOf = %v, %v; want true", lead, err)
	}
	lead, err = s.IsTeamLeadOf(ctx, team.ID, rider.ID)
	if err != nil || lead {
		t.Errorf("rider IsTeamLeadOf = %v, %v; want false", lead, err)
	}

	got, err := s.GetTeamForUser(ctx, rider.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != team.ID || got.Status != TeamStatusPending {
		t.Errorf("GetTeamForUser = %+v", got)
	}

	members, err := s.ListTeamMembers(ctx, team.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 2 || members[1].DisplayName() != "rider@example.com" {
		t.Errorf("ListTeamMembers = %+v", members)
	}

	if byID, err := s.GetTeam(ctx, team.ID); err != nil || byID.Name != "Dust Devils" {
		t.Errorf("GetTeam = %+v, %v", byID, err)
	}
	if _, err := s.GetTeam(ctx, 9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetTeam(unknown) err = %v, want ErrNotFound", err)
	}
}

func TestTeamMemberIsUniquePerTeam(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	rider := mustUser(t, s, "rider@example.com")
	team := mustTeam(t, s, "Dust Devils")
	other := mustTeam(t, s, "Gravel Kings")

	ok, err := s.IsTeamMember(ctx, s.DB(), team.ID, rider.ID)
	if err != nil || ok {
		t.Fatalf("IsTeamMember before joining = %v, %v", ok, err)
	}
	if _, err := s.AddTeamMember(ctx, s.DB(), team.ID, rider.ID, RoleRider); err != nil {
		t.Fatal(err)
	}
	ok, err = s.IsTeamMember(ctx, s.DB(), team.ID, rider.ID)
	if err != nil || !ok {
		t.Fatalf("IsTeamMember after joining = %v, %v", ok, err)
	}

	_, err = s.AddTeamMember(ctx, s.DB(), team.ID, rider.ID, RoleCaptain)
	if !IsUniqueViolation(err) {
		t.Fatalf("second membership err = %v, want unique violation", err)
	}
	if n, _ := s.CountTeamMembers(ctx, s.DB(), team.ID); n != 1 {
		t.Errorf("roster size = %d, want 1", n)
	}

	// Another team is fine.
	if _, err := s.AddTeamMember(ctx, s.DB(), other.ID, rider.ID, RoleRider); err != nil {
		t.Errorf("membership of a second team: %v", err)
	}
}

func TestLatestPaymentBreaksTiesByID(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	team := mustTeam(t, s, "Mud Larks")

	if _, err := s.GetLatestPayment(ctx, team.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("no payments: err = %v, want ErrNotFound", err)
	}

	fixed := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	var last *Payment
	for _, ref := range []string{"a", "b", "c"} {
		p, err := s.CreatePayment(ctx, s.DB(), team.ID, "3000.00", PaymentMethodUPI, ref, "")
		if err != nil {
			t.Fatal(err)
		}
		last = p
	}

	got, err := s.GetLatestPayment(ctx, team.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != last.ID {
		t.Errorf("latest payment id = %d, want %d", got.ID, last.ID)
	}
	if got.Amount != "3000.00" {
		t.Errorf("amount = %q", got.Amount)
	}

	s.now = func() time.Time { return fixed.Add(-time.Hour) }
	if _, err := s.CreatePayment(ctx, s.DB(), team.ID, "10.00", PaymentMethodUPI, "older", ""); err != nil {
		t.Fatal(err)
	}
	got, err = s.GetLatestPayment(ctx, team.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != last.ID {
		t.Errorf("an older payment with a higher id won: got %d, want %d", got.ID, last.ID)
	}
}

func TestDocumentsReview(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	admin := mustUser(t, s, "admin@example.com")
	rider := mustUser(t, s, "rider@example.com")
	team := mustTeam(t, s, "Gravel Kings")
	m, err := s.AddTeamMember(ctx, s.DB(), team.ID, rider.ID, RoleRider)
	if err != nil {
		t.Fatal(err)
	}

	doc, err := s.CreateDocument(ctx, s.DB(), NewDocument{
		OwnerID:   m.ID,
		OwnerType: OwnerTeamMember,
		DocType:   DocLicense,
		FilePath:  "uploads/team_member/1/license.pdf",
	})
	if err != nil {
		t.Fatal(err)
	}
	if doc.VerifiedAt.Valid {
		t.Fatal("new document is already verified")
	}

	if err := s.VerifyDocument(ctx, s.DB(), doc.ID, admin.ID, ""); err != nil {
		t.Fatal(err)
	}
	docs, err := s.ListMemberDocuments(ctx, []int64{m.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || !docs[0].VerifiedAt.Valid || docs[0].VerifiedBy.Int64 != admin.ID {
		t.Errorf("ListMemberDocuments = %+v", docs)
	}

	if err := s.RejectDocument(ctx, s.DB(), doc.ID, "blurry"); err != nil {
		t.Fatal(err)
	}
	review, err := s.ListDocumentsForReview(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(review) != 1 {
		t.Fatalf("review list has %d entries", len(review))
	}
	if review[0].Notes.String != "REJECTED: blurry" || review[0].TeamName.String != "Gravel Kings" {
		t.Errorf("review entry = %+v", review[0])
	}

	if err := s.VerifyDocument(ctx, s.DB(), 9999, admin.ID, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("verify unknown document err = %v", err)
	}
}

func TestReplaceBannedNames(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	src := sql.NullString{String: "list.txt", Valid: true}

	n, err := s.ReplaceBannedNames(ctx, []BannedName{
		{Word: "Bad", Normalized: "bad", SourceFile: src},
		{Word: "Worse", Normalized: "worse", SourceFile: src},
	})
	if err != nil || n != 2 {
		t.Fatalf("first import = %d, %v", n, err)
	}

	n, err = s.ReplaceBannedNames(ctx, []BannedName{
		{Word: "BAD", Normalized: "bad", SourceFile: src},
		{Word: "b.a.d", Normalized: "bad", SourceFile: src},
	})
	if err != nil || n != 2 {
		t.Fatalf("second import = %d, %v", n, err)
	}

	all, err := s.SearchBannedNames(ctx, "", 100)
	if err != nil {
		t.Fatal(err)
	}
	counts := map[string]int{}
	for _, b := range all {
		counts[b.Normalized]++
	}
	if counts["bad"] != 2 || counts["worse"] != 1 {
		t.Errorf("counts after replace = %v", counts)
	}
}

func TestReplaceBannedNamesLargeBatch(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	batch := make([]BannedName, 1201)
	for i := range batch {
		w := fmt.Sprintf("word%d", i)
		batch[i] = BannedName{Word: w, Normalized: w}
	}
	n, err := s.ReplaceBannedNames(ctx, batch)
	if err != nil || n != len(batch) {
		t.Fatalf("import = %d, %v", n, err)
	}
	n, err = s.ReplaceBannedNames(ctx, batch)
	if err != nil || n != len(batch) {
		t.Fatalf("re-import = %d, %v", n, err)
	}
	all, err := s.SearchBannedNames(ctx, "", 5000)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != len(batch) {
		t.Errorf("rows after re-import = %d, want %d", len(all), len(batch))
	}
}

func TestFindBannedIsLiteral(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	if _, err := s.ReplaceBannedNames(ctx, []BannedName{
		{Word: "ass", Normalized: "ass"},
		{Word: "%", Normalized: "%"},
		{Word: "   ", Normalized: ""},
	}); err != nil {
		t.Fatal(err)
	}

	if b, err := s.FindBannedExact(ctx, "ass"); err != nil || b.Word != "ass" {
		t.Errorf("FindBannedExact(ass) = %+v, %v", b, err)
	}
	if b, err := s.FindBannedContainedIn(ctx, "badasscrew"); err != nil || b.Normalized != "ass" {
		t.Errorf("FindBannedContainedIn(badasscrew) = %+v, %v", b, err)
	}
	if _, err := s.FindBannedContainedIn(ctx, "thunderwolves"); !errors.Is(err, ErrNotFound) {
		t.Errorf("FindBannedContainedIn(thunderwolves) err = %v", err)
	}
	if _, err := s.FindBannedExact(ctx, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("empty normalized entries must never match, err = %v", err)
	}
	// "%" is only contained in a text that has a literal percent sign.
	if _, err := s.FindBannedContainedIn(ctx, "fullthrottle"); !errors.Is(err, ErrNotFound) {
		t.Errorf("percent sign matched as a wildcard, err = %v", err)
	}
}

func TestSearchBannedNamesEscapedPattern(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	if _, err := s.ReplaceBannedNames(ctx, []BannedName{
		{Word: "a_b", Normalized: "a_b"},
		{Word: "axb", Normalized: "axb"},
	}); err != nil {
		t.Fatal(err)
	}

	got, err := s.SearchBannedNames(ctx, `%a\_b%`, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Normalized != "a_b" {
		t.Errorf("escaped search = %+v", got)
	}
}
