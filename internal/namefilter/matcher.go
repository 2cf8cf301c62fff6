package namefilter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/neadvenduro/advenduro/internal/database"
)

var (
	// ErrEmptyName is returned by Check when the candidate is empty or only
	// whitespace.
	ErrEmptyName = errors.New("name is required")
	// ErrNoWords is returned by Import when no words were supplied.
	ErrNoWords = errors.New("no words provided")
)

// DefaultSource labels imported words when the caller gives no source.
const DefaultSource = "upload"

// Store is the slice of the datastore the name filter needs.
type Store interface {
	FindBannedExact(ctx context.Context, normalized string) (*database.BannedName, error)
	FindBannedContainedIn(ctx context.Context, text string) (*database.BannedName, error)
	ReplaceBannedNames(ctx context.Context, batch []database.BannedName) (int, error)
}

// Result is the outcome of a name check.
type Result struct {
	Blocked bool   `json:"blocked"`
	Reason  string `json:"reason,omitempty"`
}

// Matcher checks candidate names against the banned list.
type Matcher struct {
	store Store
}

func NewMatcher(store Store) *Matcher {
	return &Matcher{store: store}
}

// Check reports whether candidate is blocked. An exact match on the
// normalized form takes priority over a banned form contained in it.
func (m *Matcher) Check(ctx context.Context, candidate string) (Result, error) {
	if strings.TrimSpace(candidate) == "" {
		return Result{}, ErrEmptyName
	}
	normalized := Normalize(candidate)

	exact, err := m.store.FindBannedExact(ctx, normalized)
	switch {
	case err == nil:
		return Result{Blocked: true, Reason: "Matched banned word: " + exact.Word}, nil
	case !errors.Is(err, database.ErrNotFound):
		return Result{}, fmt.Errorf("exact lookup: %w", err)
	}

	partial, err := m.store.FindBannedContainedIn(ctx, normalized)
	switch {
	case err == nil:
		return Result{Blocked: true, Reason: "Blocked (partial match): " + partial.Word}, nil
	case !errors.Is(err, database.ErrNotFound):
		return Result{}, fmt.Errorf("partial lookup: %w", err)
	}

	return Result{Blocked: false}, nil
}

// Importer loads banned words into the store.
type Importer struct {
	store Store
}

func NewImporter(store Store) *Importer {
	return &Importer{store: store}
}

// Import trims and normalizes words and replaces every stored entry that
// shares a normalized value with the batch. Blank words are skipped and
// duplicates within the batch are kept as separate rows. It returns the
// number of rows inserted.
func (im *Importer) Import(ctx context.Context, words []string, source string) (int, error) {
	if len(words) == 0 {
		return 0, ErrNoWords
	}
	if source = strings.TrimSpace(source); source == "" {
		source = DefaultSource
	}

	batch := make([]database.BannedName, 0, len(words))
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		batch = append(batch, database.BannedName{
			Word:       w,
			Normalized: Normalize(w),
			SourceFile: sql.NullString{String: source, Valid: true},
		})
	}

	n, err := im.store.ReplaceBannedNames(ctx, batch)
	if err != nil {
		return 0, fmt.Errorf("replace banned names: %w", err)
	}
	logrus.WithFields(logrus.Fields{"source": source, "inserted": n}).Info("banned names imported")
	return n, nil
}
