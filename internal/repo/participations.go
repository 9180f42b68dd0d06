package repo

import (
	"context"
	"database/sql"

	"nextventure/internal/domain"
)

const participationColumns = `player_id,venture_id,tickets_used,equity_earned,completed_maze,completion_time_seconds,rank,is_ceo,joined_at`

func scanParticipation(row rowScanner) (domain.Participation, error) {
	var p domain.Participation
	var completionTime, rank sql.NullInt64
	err := row.Scan(&p.PlayerID, &p.VentureID, &p.TicketsUsed, &p.EquityEarned, &p.CompletedMaze,
		&completionTime, &rank, &p.IsCEO, &p.JoinedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	if completionTime.Valid {
		v := int(completionTime.Int64)
		p.CompletionTimeSeconds = &v
	}
	if rank.Valid {
		v := int(rank.Int64)
		p.Rank = &v
	}
	return p, nil
}

func (r Repo) InsertParticipation(ctx context.Context, tx *sql.Tx, p domain.Participation) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO participations(player_id,venture_id,tickets_used,joined_at) VALUES (?,?,?,?)`,
		p.PlayerID, p.VentureID, p.TicketsUsed, p.JoinedAt)
	return err
}

func (r Repo) GetParticipation(ctx context.Context, playerID, ventureID string) (domain.Participation, error) {
	return scanParticipation(r.DB.QueryRowContext(ctx,
		`SELECT `+participationColumns+` FROM participations WHERE player_id=? AND venture_id=?`, playerID, ventureID))
}

func (r Repo) HasParticipation(ctx context.Context, tx *sql.Tx, playerID, ventureID string) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx,
		`SELECT 1 FROM participations WHERE player_id=? AND venture_id=?`, playerID, ventureID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func (r Repo) ListParticipations(ctx context.Context, tx *sql.Tx, ventureID string) ([]domain.Participation, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+participationColumns+` FROM participations WHERE venture_id=? ORDER BY joined_at`, ventureID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Participation
	for rows.Next() {
		p, err := scanParticipation(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// SettleParticipation records a participant's settled share exactly once.
// The equity_earned=0 guard keeps a repeated settlement from crediting twice.
func (r Repo) SettleParticipation(ctx context.Context, tx *sql.Tx, playerID, ventureID string, share float64, isCEO bool) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE participations SET equity_earned=?, is_ceo=? WHERE player_id=? AND venture_id=? AND equity_earned=0`,
		share, isCEO, playerID, ventureID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// RecordMazeCompletion marks the participation's maze result when its session
// finishes.
func (r Repo) RecordMazeCompletion(ctx context.Context, tx *sql.Tx, playerID, ventureID string, completionSeconds, rank int) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE participations SET completed_maze=1, completion_time_seconds=?, rank=? WHERE player_id=? AND venture_id=?`,
		completionSeconds, rank, playerID, ventureID)
	return err
}
