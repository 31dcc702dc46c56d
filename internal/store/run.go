package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

// Run is one recorded dsl or gems invocation.
type Run struct {
	Seq            int64           `json:"seq"`
	ID             string          `json:"id"`
	Command        string          `json:"command"`
	Outdir         string          `json:"outdir"`
	SnapshotDigest string          `json:"snapshot_digest"`
	ToolVersion    string          `json:"tool_version"`
	FormatVersion  string          `json:"format_version"`
	Stubs          []StubRecord    `json:"stubs"`
	Failures       []FailureRecord `json:"failures,omitempty"`
}

// StubRecord is one written stub file. Subject is the entity or
// package the file declares.
type StubRecord struct {
	Path       string   `json:"path"`
	Subject    string   `json:"subject"`
	PassID     string   `json:"pass_id"`
	Digest     string   `json:"digest"`
	Generators []string `json:"generators,omitempty"`
}

// FailureRecord is one pass that produced no file.
type FailureRecord struct {
	Subject   string `json:"subject"`
	Generator string `json:"generator,omitempty"`
	PassID    string `json:"pass_id,omitempty"`
	Message   string `json:"message"`
}

// ErrNoRuns is returned by LatestRun when nothing has been recorded.
var ErrNoRuns = errors.New("no runs recorded")

// RecordRun writes r and its rows in one transaction. r.Seq is ignored
// and assigned by the database.
func (s *Store) RecordRun(ctx context.Context, r Run) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("record run: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, command, outdir, snapshot_digest, tool_version, format_version)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.ID, r.Command, r.Outdir, r.SnapshotDigest, r.ToolVersion, r.FormatVersion)
	if err != nil {
		return 0, fmt.Errorf("record run: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("record run: %w", err)
	}

	for _, st := range r.Stubs {
		gens, err := marshalGenerators(st.Generators)
		if err != nil {
			return 0, fmt.Errorf("record run: stub %s: %w", st.Path, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO stubs (run_id, path, subject, pass_id, digest, generators)
			VALUES (?, ?, ?, ?, ?, ?)
		`, r.ID, st.Path, st.Subject, st.PassID, st.Digest, gens); err != nil {
			return 0, fmt.Errorf("record run: stub %s: %w", st.Path, err)
		}
	}

	for _, f := range r.Failures {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO failures (run_id, subject, generator, pass_id, message)
			VALUES (?, ?, ?, ?, ?)
		`, r.ID, f.Subject, f.Generator, f.PassID, f.Message); err != nil {
			return 0, fmt.Errorf("record run: failure %s: %w", f.Subject, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("record run: %w", err)
	}
	return seq, nil
}

// LatestRun returns the most recent run of command, or any command when
// command is empty.
func (s *Store) LatestRun(ctx context.Context, command string) (*Run, error) {
	query := `
		SELECT seq, id, command, outdir, snapshot_digest, tool_version, format_version
		FROM runs
		WHERE (? = '' OR command = ?)
		ORDER BY seq DESC
		LIMIT 1
	`
	var r Run
	err := s.db.QueryRowContext(ctx, query, command, command).
		Scan(&r.Seq, &r.ID, &r.Command, &r.Outdir, &r.SnapshotDigest, &r.ToolVersion, &r.FormatVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoRuns
	}
	if err != nil {
		return nil, fmt.Errorf("latest run: %w", err)
	}
	if err := s.loadRows(ctx, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// ReadRun returns the run with the given ID.
func (s *Store) ReadRun(ctx context.Context, id string) (*Run, error) {
	var r Run
	err := s.db.QueryRowContext(ctx, `
		SELECT seq, id, command, outdir, snapshot_digest, tool_version, format_version
		FROM runs WHERE id = ?
	`, id).Scan(&r.Seq, &r.ID, &r.Command, &r.Outdir, &r.SnapshotDigest, &r.ToolVersion, &r.FormatVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("read run: %w", err)
	}
	if err := s.loadRows(ctx, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) loadRows(ctx context.Context, r *Run) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT path, subject, pass_id, digest, generators
		FROM stubs WHERE run_id = ?
		ORDER BY path COLLATE BINARY ASC
	`, r.ID)
	if err != nil {
		return fmt.Errorf("query stubs: %w", err)
	}
	defer rows.Close()

	r.Stubs = []StubRecord{}
	for rows.Next() {
		var st StubRecord
		var gens string
		if err := rows.Scan(&st.Path, &st.Subject, &st.PassID, &st.Digest, &gens); err != nil {
			return fmt.Errorf("scan stub: %w", err)
		}
		if st.Generators, err = unmarshalGenerators(gens); err != nil {
			return fmt.Errorf("stub %s: %w", st.Path, err)
		}
		r.Stubs = append(r.Stubs, st)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate stubs: %w", err)
	}

	frows, err := s.db.QueryContext(ctx, `
		SELECT subject, generator, pass_id, message
		FROM failures WHERE run_id = ?
		ORDER BY subject COLLATE BINARY ASC, generator COLLATE BINARY ASC
	`, r.ID)
	if err != nil {
		return fmt.Errorf("query failures: %w", err)
	}
	defer frows.Close()

	for frows.Next() {
		var f FailureRecord
		if err := frows.Scan(&f.Subject, &f.Generator, &f.PassID, &f.Message); err != nil {
			return fmt.Errorf("scan failure: %w", err)
		}
		r.Failures = append(r.Failures, f)
	}
	if err := frows.Err(); err != nil {
		return fmt.Errorf("iterate failures: %w", err)
	}
	return nil
}

// StubByPath finds the most recent record of a file under outdir.
func (s *Store) StubByPath(ctx context.Context, outdir, path string) (*StubRecord, string, error) {
	var st StubRecord
	var runID, gens string
	err := s.db.QueryRowContext(ctx, `
		SELECT s.run_id, s.path, s.subject, s.pass_id, s.digest, s.generators
		FROM stubs s JOIN runs r ON r.id = s.run_id
		WHERE r.outdir = ? AND s.path = ?
		ORDER BY r.seq DESC
		LIMIT 1
	`, outdir, path).Scan(&runID, &st.Path, &st.Subject, &st.PassID, &st.Digest, &gens)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", fmt.Errorf("no record of %s under %s", path, outdir)
	}
	if err != nil {
		return nil, "", fmt.Errorf("stub by path: %w", err)
	}
	if st.Generators, err = unmarshalGenerators(gens); err != nil {
		return nil, "", err
	}
	return &st, runID, nil
}

func marshalGenerators(gens []string) (string, error) {
	if gens == nil {
		gens = []string{}
	}
	data, err := json.Marshal(gens)
	if err != nil {
		return "", fmt.Errorf("marshal generators: %w", err)
	}
	return string(data), nil
}

func unmarshalGenerators(s string) ([]string, error) {
	var gens []string
	if err := json.Unmarshal([]byte(s), &gens); err != nil {
		return nil, fmt.Errorf("unmarshal generators: %w", err)
	}
	if len(gens) == 0 {
		return nil, nil
	}
	return gens, nil
}
