package store

import (
	"context"
	"database/sql"
	"time"
)

// OpenPairing records a controller joining a screen and returns the
// stored row. The ID is generated when empty.
func (s *Store) OpenPairing(ctx context.Context, p Pairing) (Pairing, error) {
	if p.ID == "" {
		p.ID = NewID()
	}
	if p.ConnectedAt.IsZero() {
		p.ConnectedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pairings (id, controller_id, screen_id, player_num, connected_at)
		 VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.ControllerID, p.ScreenID, p.PlayerNum, encodeTime(p.ConnectedAt),
	)
	return p, err
}

// ClosePairing marks one pairing as disconnected.
func (s *Store) ClosePairing(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE pairings SET disconnected_at = ?
		 WHERE id = ? AND disconnected_at IS NULL`,
		encodeTime(time.Now()), id,
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

// CloseOpenPairings closes any still-open pairings for a controller.
// Used on disconnect so a crashed client never leaves dangling rows.
func (s *Store) CloseOpenPairings(ctx context.Context, controllerID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE pairings SET disconnected_at = ?
		 WHERE controller_id = ? AND disconnected_at IS NULL`,
		encodeTime(time.Now()), controllerID,
	)
	return err
}

// RecentPairings lists pairings newest first.
func (s *Store) RecentPairings(ctx context.Context, limit int) ([]Pairing, error) {
	limit = clampLimit(limit, 20, 200)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, controller_id, screen_id, player_num, connected_at, disconnected_at
		 FROM pairings ORDER BY connected_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Pairing
	for rows.Next() {
		var (
			p              Pairing
			connectedAt    string
			disconnectedAt sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.ControllerID, &p.ScreenID, &p.PlayerNum,
			&connectedAt, &disconnectedAt); err != nil {
			return nil, err
		}
		p.ConnectedAt = decodeTime(connectedAt)
		if disconnectedAt.Valid {
			t := decodeTime(disconnectedAt.String)
			p.DisconnectedAt = &t
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
