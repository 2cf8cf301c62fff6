package database

import (
	"context"
	"database/sql"
	"strings"
)

// bannedChunk bounds the number of rows per DELETE ... IN and multi-row
// INSERT statement.
const bannedChunk = 500

const bannedColumns = `id, word, normalized, source_file, created_at`

func scanBanned(row interface{ Scan(...interface{}) error }) (*BannedName, error) {
	b := &BannedName{}
	if err := row.Scan(&b.ID, &b.Word, &b.Normalized, &b.SourceFile, &b.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	return b, nil
}

// FindBannedExact returns a banned entry whose normalized form equals
// normalized, or ErrNotFound.
func (s *Service) FindBannedExact(ctx context.Context, normalized string) (*BannedName, error) {
	query := `SELECT ` + bannedColumns + ` FROM banned_names
		WHERE normalized = ? AND normalized <> ''
		ORDER BY id
		LIMIT 1`
	return scanBanned(s.queryRow(ctx, s.db, query, normalized))
}

// FindBannedContainedIn returns a banned entry whose non-empty normalized
// form occurs literally inside text, or ErrNotFound. Containment uses
// instr/strpos so no character in text acts as a wildcard.
func (s *Service) FindBannedContainedIn(ctx context.Context, text string) (*BannedName, error) {
	contains := `instr(?, normalized) > 0`
	if s.driver == DriverPostgres {
		contains = `strpos(?, normalized) > 0`
	}
	query := `SELECT ` + bannedColumns + ` FROM banned_names
		WHERE normalized <> '' AND ` + contains + `
		ORDER BY id
		LIMIT 1`
	return scanBanned(s.queryRow(ctx, s.db, query, text))
}

// ReplaceBannedNames removes every existing entry sharing a normalized value
// with the batch and inserts the batch, all in one transaction. Every delete
// runs before the first insert. It returns the number of inserted rows.
func (s *Service) ReplaceBannedNames(ctx context.Context, batch []BannedName) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	seen := make(map[string]struct{}, len(batch))
	var normals []interface{}
	for _, b := range batch {
		if _, ok := seen[b.Normalized]; ok {
			continue
		}
		seen[b.Normalized] = struct{}{}
		normals = append(normals, b.Normalized)
	}

	inserted := 0
	err := s.WriteTx(ctx, func(tx *sql.Tx) error {
		for start := 0; start < len(normals); start += bannedChunk {
			end := min(start+bannedChunk, len(normals))
			chunk := normals[start:end]
			query := `DELETE FROM banned_names WHERE normalized IN (` + placeholders(len(chunk)) + `)`
			if _, err := s.exec(ctx, tx, query, chunk...); err != nil {
				return err
			}
		}

		now := s.now()
		for start := 0; start < len(batch); start += bannedChunk {
			end := min(start+bannedChunk, len(batch))
			rows := batch[start:end]

			values := make([]string, len(rows))
			args := make([]interface{}, 0, len(rows)*4)
			for i, b := range rows {
				values[i] = "(?, ?, ?, ?)"
				args = append(args, b.Word, b.Normalized, b.SourceFile, now)
			}
			query := `INSERT INTO banned_names (word, normalized, source_file, created_at) VALUES ` + strings.Join(values, ", ")
			if _, err := s.exec(ctx, tx, query, args...); err != nil {
				return err
			}
			inserted += len(rows)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// SearchBannedNames lists banned entries, newest first. A non-empty
// likePattern is matched against the normalized column with LIKE and a
// backslash escape character; callers escape their input accordingly.
func (s *Service) SearchBannedNames(ctx context.Context, likePattern string, limit int) ([]BannedName, error) {
	query := `SELECT ` + bannedColumns + ` FROM banned_names`
	var args []interface{}
	if likePattern != "" {
		query += ` WHERE normalized LIKE ? ESCAPE '\'`
		args = append(args, likePattern)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.query(ctx, s.db, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []BannedName
	for rows.Next() {
		b, err := scanBanned(rows)
		if err != nil {
			return nil, err
		}
		names = append(names, *b)
	}
	return names, rows.Err()
}
