// Package profile keeps saved control files in SQLite, keyed by dataset id
// and a fingerprint of the CSV header row. Reopening the same kind of file
// for the same dataset then starts from the last saved mapping.
package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zeebo/xxh3"
	"golang.org/x/text/unicode/norm"
	_ "modernc.org/sqlite"

	"datasync/internal/controlfile"
)

// Fingerprint identifies a header shape. Headers are trimmed, NFC-normalised
// and case-folded, so cosmetic differences map to the same profile; order
// and count matter.
func Fingerprint(headers []string) string {
	parts := make([]string, len(headers))
	for i, h := range headers {
		parts[i] = strings.ToLower(norm.NFC.String(strings.TrimSpace(h)))
	}
	return fmt.Sprintf("%016x", xxh3.HashString(strings.Join(parts, "\x1f")))
}

const createSQL = `
CREATE TABLE IF NOT EXISTS profiles (
	dataset_id   TEXT NOT NULL,
	fingerprint  TEXT NOT NULL,
	control_file TEXT NOT NULL,
	updated_at   TEXT NOT NULL,
	PRIMARY KEY (dataset_id, fingerprint)
)`

// Store is a profile database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the SQLite database at dsn, e.g.
// "profiles.db" or "file:profiles.db?_pragma=busy_timeout(5000)".
func Open(ctx context.Context, dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("profile: dsn must not be empty")
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("profile: open: %w", err)
	}
	// One writer; SQLite serialises anyway.
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("profile: ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, createSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("profile: create table: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Save stores cf under (datasetID, fingerprint), replacing any earlier one.
func (s *Store) Save(ctx context.Context, datasetID, fingerprint string, cf *controlfile.ControlFile) error {
	b, err := cf.Marshal()
	if err != nil {
		return fmt.Errorf("profile: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO profiles (dataset_id, fingerprint, control_file, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (dataset_id, fingerprint)
DO UPDATE SET control_file = excluded.control_file, updated_at = excluded.updated_at`,
		datasetID, fingerprint, string(b), s.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("profile: save %s/%s: %w", datasetID, fingerprint, err)
	}
	return nil
}

// Load returns the control file saved under (datasetID, fingerprint). The
// boolean is false when there is none.
func (s *Store) Load(ctx context.Context, datasetID, fingerprint string) (*controlfile.ControlFile, bool, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT control_file FROM profiles WHERE dataset_id = ? AND fingerprint = ?`,
		datasetID, fingerprint).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("profile: load %s/%s: %w", datasetID, fingerprint, err)
	}
	cf, err := controlfile.Parse([]byte(doc))
	if err != nil {
		return nil, false, fmt.Errorf("profile: stored control file %s/%s: %w", datasetID, fingerprint, err)
	}
	return cf, true, nil
}

// Delete removes one profile. Deleting a missing profile is not an error.
func (s *Store) Delete(ctx context.Context, datasetID, fingerprint string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM profiles WHERE dataset_id = ? AND fingerprint = ?`, datasetID, fingerprint); err != nil {
		return fmt.Errorf("profile: delete %s/%s: %w", datasetID, fingerprint, err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }
