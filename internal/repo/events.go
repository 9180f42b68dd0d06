package repo

import (
	"context"

	"nextventure/internal/domain"
)

const eventColumns = `id,ts,update_type,COALESCE(venture_id,''),entity_kind,COALESCE(entity_id,''),player_id,payload_json`

func (r Repo) scanEvents(ctx context.Context, query string, args ...any) ([]domain.Event, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.UpdateType, &e.VentureID, &e.EntityKind, &e.EntityID, &e.PlayerID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// EventsAfter returns up to limit events with id greater than cursor, oldest
// first. The webhook dispatcher pages through the log with it.
func (r Repo) EventsAfter(ctx context.Context, limit int, cursor int64) ([]domain.Event, error) {
	return r.scanEvents(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id>? ORDER BY id LIMIT ?`, cursor, limit)
}

// LatestEvents returns the newest events, optionally filtered.
func (r Repo) LatestEvents(ctx context.Context, limit int, updateType, ventureID string) ([]domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events`
	var (
		conds []string
		args  []any
	)
	if updateType != "" {
		conds = append(conds, "update_type=?")
		args = append(args, updateType)
	}
	if ventureID != "" {
		conds = append(conds, "venture_id=?")
		args = append(args, ventureID)
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)
	return r.scanEvents(ctx, query, args...)
}

// LatestEventID returns the id of the newest event, zero when the log is
// empty.
func (r Repo) LatestEventID(ctx context.Context) (int64, error) {
	var id int64
	err := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM events`).Scan(&id)
	return id, err
}
