package store

import (
	"context"
	"database/sql"
	"time"
)

// StartSession records the beginning of a native play session and
// returns the stored row. The ID is generated when empty.
func (s *Store) StartSession(ctx context.Context, sess PlaySession) (PlaySession, error) {
	if sess.ID == "" {
		sess.ID = NewID()
	}
	if sess.StartedAt.IsZero() {
		sess.StartedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO play_sessions (id, system, core, rom, started_at)
		 VALUES (?, ?, ?, ?, ?)`,
		sess.ID, sess.System, sess.Core, sess.Rom, encodeTime(sess.StartedAt),
	)
	return sess, err
}

// FinishSession closes an open play session with the process outcome.
// exitCode and exitSignal may be nil when unknown.
func (s *Store) FinishSession(ctx context.Context, id string, exitCode *int, exitSignal *string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE play_sessions
		 SET ended_at = ?, exit_code = ?, exit_signal = ?
		 WHERE id = ? AND ended_at IS NULL`,
		encodeTime(time.Now()), nullInt(exitCode), nullString(exitSignal), id,
	)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// GetSession returns one play session by ID.
func (s *Store) GetSession(ctx context.Context, id string) (*PlaySession, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, system, core, rom, started_at, ended_at, exit_code, exit_signal
		 FROM play_sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// RecentSessions lists play sessions newest first.
func (s *Store) RecentSessions(ctx context.Context, limit int) ([]PlaySession, error) {
	limit = clampLimit(limit, 20, 200)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, system, core, rom, started_at, ended_at, exit_code, exit_signal
		 FROM play_sessions ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PlaySession
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sess)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(r rowScanner) (*PlaySession, error) {
	var (
		sess       PlaySession
		startedAt  string
		endedAt    sql.NullString
		exitCode   sql.NullInt64
		exitSignal sql.NullString
	)
	if err := r.Scan(&sess.ID, &sess.System, &sess.Core, &sess.Rom,
		&startedAt, &endedAt, &exitCode, &exitSignal); err != nil {
		return nil, err
	}
	sess.StartedAt = decodeTime(startedAt)
	if endedAt.Valid {
		t := decodeTime(endedAt.String)
		sess.EndedAt = &t
	}
	if exitCode.Valid {
		c := int(exitCode.Int64)
		sess.ExitCode = &c
	}
	if exitSignal.Valid {
		sig := exitSignal.String
		sess.ExitSignal = &sig
	}
	return &sess, nil
}

func nullInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullString(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
