package repo

import (
	"context"
	"database/sql"
	"errors"

	"nextventure/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

const ventureColumns = `id,name,venture_type,COALESCE(icon,''),COALESCE(description,''),ceo_equity,participant_equity,
ticket_cost,min_level,max_participants,current_participants,complexity,time_limit_seconds,required_patterns,
status,seed,maze_json,start_time,end_time,completion_time,winning_player,created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVenture(row rowScanner) (domain.Venture, error) {
	var v domain.Venture
	var mazeJSON, startTime, endTime, completionTime, winner sql.NullString
	err := row.Scan(&v.ID, &v.Name, &v.VentureType, &v.Icon, &v.Description, &v.CEOEquity, &v.ParticipantEquity,
		&v.TicketCost, &v.MinLevel, &v.MaxParticipants, &v.CurrentParticipants, &v.Complexity, &v.TimeLimitSeconds,
		&v.RequiredPatterns, &v.Status, &v.Seed, &mazeJSON, &startTime, &endTime, &completionTime, &winner, &v.CreatedAt)
	if err == sql.ErrNoRows {
		return v, ErrNotFound
	}
	if err != nil {
		return v, err
	}
	v.MazeJSON = optional(mazeJSON)
	v.StartTime = optional(startTime)
	v.EndTime = optional(endTime)
	v.CompletionTime = optional(completionTime)
	v.WinningPlayer = optional(winner)
	return v, nil
}

func (r Repo) InsertVenture(ctx context.Context, tx *sql.Tx, v domain.Venture) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO ventures(id,name,venture_type,icon,description,ceo_equity,participant_equity,
ticket_cost,min_level,max_participants,current_participants,complexity,time_limit_seconds,required_patterns,status,seed,created_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		v.ID, v.Name, v.VentureType, nullable(v.Icon), nullable(v.Description), v.CEOEquity, v.ParticipantEquity,
		v.TicketCost, v.MinLevel, v.MaxParticipants, v.CurrentParticipants, v.Complexity, v.TimeLimitSeconds,
		v.RequiredPatterns, v.Status, v.Seed, v.CreatedAt)
	return err
}

func (r Repo) GetVenture(ctx context.Context, id string) (domain.Venture, error) {
	return scanVenture(r.DB.QueryRowContext(ctx, `SELECT `+ventureColumns+` FROM ventures WHERE id=?`, id))
}

func (r Repo) GetVentureTx(ctx context.Context, tx *sql.Tx, id string) (domain.Venture, error) {
	return scanVenture(tx.QueryRowContext(ctx, `SELECT `+ventureColumns+` FROM ventures WHERE id=?`, id))
}

// ListVentures returns ventures filtered by status; all when status is empty.
func (r Repo) ListVentures(ctx context.Context, status string) ([]domain.Venture, error) {
	query := `SELECT ` + ventureColumns + ` FROM ventures ORDER BY created_at DESC`
	args := []any{}
	if status != "" {
		query = `SELECT ` + ventureColumns + ` FROM ventures WHERE status=? ORDER BY created_at DESC`
		args = append(args, status)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Venture
	for rows.Next() {
		v, err := scanVenture(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, v)
	}
	return res, rows.Err()
}

// MarkRunning promotes an active venture to running in a single guarded
// update. Returns false when the venture was not in the active state.
func (r Repo) MarkRunning(ctx context.Context, tx *sql.Tx, id string, seed int64, mazeJSON, startTime, endTime string) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE ventures SET status=?, seed=?, maze_json=?, start_time=?, end_time=? WHERE id=? AND status=?`,
		domain.VentureRunning, seed, mazeJSON, startTime, endTime, id, domain.VentureActive)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// MarkCompleted is the winner-arbitration compare-and-swap: it only succeeds
// while the venture is still running with no winner recorded, so exactly one
// completion claims the venture.
func (r Repo) MarkCompleted(ctx context.Context, tx *sql.Tx, id string, winner *string, completionTime string) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE ventures SET status=?, winning_player=?, completion_time=? WHERE id=? AND status=? AND winning_player IS NULL`,
		domain.VentureCompleted, winner, completionTime, id, domain.VentureRunning)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// AddParticipant bumps the participant counter, guarded by capacity so
// concurrent joins cannot overshoot max_participants.
func (r Repo) AddParticipant(ctx context.Context, tx *sql.Tx, id string) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE ventures SET current_participants=current_participants+1
		 WHERE id=? AND status=? AND current_participants < max_participants`,
		id, domain.VentureActive)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r Repo) CancelVenture(ctx context.Context, tx *sql.Tx, id string) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE ventures SET status=? WHERE id=? AND status IN (?,?)`,
		domain.VentureCancelled, id, domain.VentureUpcoming, domain.VentureActive)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func optional(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
