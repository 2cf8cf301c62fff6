package namefilter

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/neadvenduro/advenduro/internal/database"
)

// memStore keeps banned names in a slice, in insertion order.
type memStore struct {
	rows    []database.BannedName
	batches [][]database.BannedName
	fail    error
}

func (m *memStore) FindBannedExact(_ context.Context, normalized string) (*database.BannedName, error) {
	if m.fail != nil {
		return nil, m.fail
	}
	for i := range m.rows {
		if m.rows[i].Normalized != "" && m.rows[i].Normalized == normalized {
			return &m.rows[i], nil
		}
	}
	return nil, database.ErrNotFound
}

func (m *memStore) FindBannedContainedIn(_ context.Context, text string) (*database.BannedName, error) {
	if m.fail != nil {
		return nil, m.fail
	}
	for i := range m.rows {
		if m.rows[i].Normalized != "" && strings.Contains(text, m.rows[i].Normalized) {
			return &m.rows[i], nil
		}
	}
	return nil, database.ErrNotFound
}

func (m *memStore) ReplaceBannedNames(_ context.Context, batch []database.BannedName) (int, error) {
	if m.fail != nil {
		return 0, m.fail
	}
	m.batches = append(m.batches, batch)
	drop := map[string]bool{}
	for _, b := range batch {
		drop[b.Normalized] = true
	}
	kept := m.rows[:0]
	for _, r := range m.rows {
		if !drop[r.Normalized] {
			kept = append(kept, r)
		}
	}
	m.rows = append(kept, batch...)
	return len(batch), nil
}

func storeWith(words ...string) *memStore {
	s := &memStore{}
	for _, w := range words {
		s.rows = append(s.rows, database.BannedName{Word: w, Normalized: Normalize(w)})
	}
	return s
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"T3am", "team"},
		{"TEAM", "team"},
		{"Team-X!", "teamx"},
		{"  Thunder   Wolves  ", "thunder wolves"},
		{"B4d4ss Cr3w", "badass crew"},
		{"R0ck 5t4r", "rock star"},
		{"Team 7", "team 7"},
		{"tab\tand\nnewline", "tab and newline"},
		{"Straße", "strae"},
		{"a - b", "a b"},
		{"100%_off", "ioooff"},
		{"", ""},
		{"!!!", ""},
		{"a\u00a0b", "a b"},
		{"a\u2028b", "a b"},
		{"a\ufeffb", "a b"},
		{"a\u0085b", "ab"},
		{"a\u200bb", "ab"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	inputs := []string{
		"T3am", "Team-X!", "  a  b  ", "L33T 5P34K", "x y", "мотокросс 2025", "__%%\\\\", "Dust  Devils 9",
	}
	for _, s := range inputs {
		once := Normalize(s)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize not idempotent for %q: %q then %q", s, once, twice)
		}
	}
}

func TestEscapeLike(t *testing.T) {
	got := EscapeLike(`50%_a\b`)
	want := `50\%\_a\\b`
	if got != want {
		t.Errorf("EscapeLike = %q, want %q", got, want)
	}
}

func TestCheck(t *testing.T) {
	ctx := context.Background()
	m := NewMatcher(storeWith("damn", "Ass"))

	tests := []struct {
		name      string
		candidate string
		blocked   bool
		reason    string
	}{
		{"exact", "damn", true, "Matched banned word: damn"},
		{"exact after normalizing", "D4MN!", true, "Matched banned word: damn"},
		{"partial", "badass crew", true, "Blocked (partial match): Ass"},
		{"clean", "Thunder Wolves", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := m.Check(ctx, tt.candidate)
			if err != nil {
				t.Fatalf("Check(%q): %v", tt.candidate, err)
			}
			if res.Blocked != tt.blocked || res.Reason != tt.reason {
				t.Errorf("Check(%q) = %+v, want blocked=%v reason=%q", tt.candidate, res, tt.blocked, tt.reason)
			}
		})
	}
}

func TestCheckExactWinsOverPartial(t *testing.T) {
	// "dam" is contained in "damn", but the exact entry must be reported.
	m := NewMatcher(storeWith("dam", "damn"))
	res, err := m.Check(context.Background(), "damn")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(res.Reason, "Matched banned word") {
		t.Errorf("reason = %q, want an exact match", res.Reason)
	}
}

func TestCheckEmptyCandidate(t *testing.T) {
	m := NewMatcher(storeWith("damn"))
	for _, c := range []string{"", "   ", "\t\n"} {
		if _, err := m.Check(context.Background(), c); !errors.Is(err, ErrEmptyName) {
			t.Errorf("Check(%q) err = %v, want ErrEmptyName", c, err)
		}
	}
}

func TestCheckPropagatesStoreErrors(t *testing.T) {
	boom := errors.New("connection reset")
	m := NewMatcher(&memStore{fail: boom})
	if _, err := m.Check(context.Background(), "anything"); !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped store error", err)
	}
}

func TestImport(t *testing.T) {
	ctx := context.Background()
	store := storeWith("B4d")
	im := NewImporter(store)

	n, err := im.Import(ctx, []string{" bad ", "", "B.A.D", "worse", "   "}, "")
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("inserted = %d, want 3", n)
	}

	batch := store.batches[0]
	if batch[0].Word != "bad" || batch[0].Normalized != "bad" {
		t.Errorf("first row = %+v", batch[0])
	}
	if batch[1].Normalized != "bad" {
		t.Errorf("duplicates within a batch must be kept, got %+v", batch[1])
	}
	for _, b := range batch {
		if b.SourceFile.String != DefaultSource {
			t.Errorf("source = %q, want %q", b.SourceFile.String, DefaultSource)
		}
	}

	// The pre-existing "B4d" row was replaced by the batch.
	for _, r := range store.rows {
		if r.Word == "B4d" {
			t.Error("existing entry with the same normalized value survived the import")
		}
	}
}

func TestImportNoWords(t *testing.T) {
	im := NewImporter(&memStore{})
	if _, err := im.Import(context.Background(), nil, "list.txt"); !errors.Is(err, ErrNoWords) {
		t.Errorf("err = %v, want ErrNoWords", err)
	}
}
