package repo

import (
	"context"
	"database/sql"

	"nextventure/internal/domain"
)

const playerColumns = `id,tickets,level,xp,total_equity,ventures_joined,ventures_won,created_at`

func scanPlayer(row rowScanner) (domain.Player, error) {
	var p domain.Player
	err := row.Scan(&p.ID, &p.Tickets, &p.Level, &p.XP, &p.TotalEquity, &p.VenturesJoined, &p.VenturesWon, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

func (r Repo) InsertPlayer(ctx context.Context, tx *sql.Tx, p domain.Player) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO players(id,tickets,level,xp,total_equity,ventures_joined,ventures_won,created_at)
VALUES (?,?,?,?,?,?,?,?)`,
		p.ID, p.Tickets, p.Level, p.XP, p.TotalEquity, p.VenturesJoined, p.VenturesWon, p.CreatedAt)
	return err
}

func (r Repo) GetPlayer(ctx context.Context, id string) (domain.Player, error) {
	return scanPlayer(r.DB.QueryRowContext(ctx, `SELECT `+playerColumns+` FROM players WHERE id=?`, id))
}

func (r Repo) GetPlayerTx(ctx context.Context, tx *sql.Tx, id string) (domain.Player, error) {
	return scanPlayer(tx.QueryRowContext(ctx, `SELECT `+playerColumns+` FROM players WHERE id=?`, id))
}

func (r Repo) ListPlayers(ctx context.Context) ([]domain.Player, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+playerColumns+` FROM players ORDER BY total_equity DESC, level DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// SpendTickets debits tickets as an additive delta, guarded by the balance so
// a concurrent spend can never drive it negative.
func (r Repo) SpendTickets(ctx context.Context, tx *sql.Tx, playerID string, count int) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE players SET tickets=tickets-? WHERE id=? AND tickets>=?`, count, playerID, count)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r Repo) AddTickets(ctx context.Context, tx *sql.Tx, playerID string, count int) error {
	_, err := tx.ExecContext(ctx, `UPDATE players SET tickets=tickets+? WHERE id=?`, count, playerID)
	return err
}

// CreditEquity adds to a player's cumulative equity. Always a delta, never an
// absolute write, so settlements for different ventures compose.
func (r Repo) CreditEquity(ctx context.Context, tx *sql.Tx, playerID string, amount float64) error {
	_, err := tx.ExecContext(ctx, `UPDATE players SET total_equity=total_equity+? WHERE id=?`, amount, playerID)
	return err
}

func (r Repo) RecordVentureJoined(ctx context.Context, tx *sql.Tx, playerID string) error {
	_, err := tx.ExecContext(ctx, `UPDATE players SET ventures_joined=ventures_joined+1 WHERE id=?`, playerID)
	return err
}

func (r Repo) RecordVentureWon(ctx context.Context, tx *sql.Tx, playerID string) error {
	_, err := tx.ExecContext(ctx, `UPDATE players SET ventures_won=ventures_won+1 WHERE id=?`, playerID)
	return err
}

// SetProgression stores the outcome of a level-up pass. The caller computes
// it from a read inside the same transaction, so the write stays scoped to
// the player row.
func (r Repo) SetProgression(ctx context.Context, tx *sql.Tx, playerID string, level, xp, bonusTickets int) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE players SET level=?, xp=?, tickets=tickets+? WHERE id=?`,
		level, xp, bonusTickets, playerID)
	return err
}
