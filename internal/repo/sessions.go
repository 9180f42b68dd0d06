package repo

import (
	"context"
	"database/sql"

	"nextventure/internal/domain"
)

const sessionColumns = `id,venture_id,player_id,status,x,y,moves_made,patterns_found,time_elapsed,used_hints,discoveries_json,started_at,completed_at`

func scanSession(row rowScanner) (domain.MazeSession, error) {
	var s domain.MazeSession
	var completedAt sql.NullString
	err := row.Scan(&s.ID, &s.VentureID, &s.PlayerID, &s.Status, &s.X, &s.Y, &s.MovesMade, &s.PatternsFound,
		&s.TimeElapsed, &s.UsedHints, &s.DiscoveriesJSON, &s.StartedAt, &completedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	if err != nil {
		return s, err
	}
	s.CompletedAt = optional(completedAt)
	return s, nil
}

func (r Repo) InsertSession(ctx context.Context, tx *sql.Tx, s domain.MazeSession) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO maze_sessions(id,venture_id,player_id,status,x,y,started_at) VALUES (?,?,?,?,?,?,?)`,
		s.ID, s.VentureID, s.PlayerID, s.Status, s.X, s.Y, s.StartedAt)
	return err
}

func (r Repo) GetSession(ctx context.Context, id string) (domain.MazeSession, error) {
	return scanSession(r.DB.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM maze_sessions WHERE id=?`, id))
}

func (r Repo) GetSessionTx(ctx context.Context, tx *sql.Tx, id string) (domain.MazeSession, error) {
	return scanSession(tx.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM maze_sessions WHERE id=?`, id))
}

func (r Repo) GetSessionByPlayer(ctx context.Context, ventureID, playerID string) (domain.MazeSession, error) {
	return scanSession(r.DB.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM maze_sessions WHERE venture_id=? AND player_id=?`, ventureID, playerID))
}

// UpdateSessionProgress persists one move's effect. Guarded on the active
// status so a move never mutates a session that reached a terminal state.
func (r Repo) UpdateSessionProgress(ctx context.Context, tx *sql.Tx, s domain.MazeSession) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE maze_sessions SET status=?, x=?, y=?, moves_made=?, patterns_found=?, time_elapsed=?, discoveries_json=?, completed_at=?
		 WHERE id=? AND status=?`,
		s.Status, s.X, s.Y, s.MovesMade, s.PatternsFound, s.TimeElapsed, s.DiscoveriesJSON, nullablePtr(s.CompletedAt),
		s.ID, domain.SessionActive)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// CloseActiveSessions moves every still-active session of a venture to the
// given terminal status. Used by the timeout settlement.
func (r Repo) CloseActiveSessions(ctx context.Context, tx *sql.Tx, ventureID, status string) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE maze_sessions SET status=? WHERE venture_id=? AND status=?`,
		status, ventureID, domain.SessionActive)
	return err
}

// CountCompletedSessions counts sessions of a venture already completed; used
// to assign completion ranks.
func (r Repo) CountCompletedSessions(ctx context.Context, tx *sql.Tx, ventureID string) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM maze_sessions WHERE venture_id=? AND status=?`, ventureID, domain.SessionCompleted).Scan(&n)
	return n, err
}

// CompletedSessions returns a venture's completed sessions ordered by
// completion instant, ties broken by fewest moves.
func (r Repo) CompletedSessions(ctx context.Context, ventureID string) ([]domain.MazeSession, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM maze_sessions WHERE venture_id=? AND status=? ORDER BY completed_at, moves_made`,
		ventureID, domain.SessionCompleted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.MazeSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

func nullablePtr(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
