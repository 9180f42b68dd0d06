package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"nextventure/internal/domain"
	"nextventure/internal/events"
	"nextventure/internal/maze"
)

// StartVenture runs the active→running transition: generate the maze once,
// stamp the clock window and open one session per current participant. The
// guarded status update makes repeated calls no-ops, so the sweep and the
// join-triggered start can race safely. Returns true when this call started
// the venture.
func (e Engine) StartVenture(ctx context.Context, ventureID string) (bool, error) {
	lock := e.locks.venture(ventureID)
	lock.Lock()
	defer lock.Unlock()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	v, err := e.Repo.GetVentureTx(ctx, tx, ventureID)
	if err != nil {
		return false, mapNotFound(err)
	}
	if v.Status != domain.VentureActive || v.CurrentParticipants < 1 {
		return false, nil
	}
	seed := e.randSeed()
	cfg, err := maze.Generate(v.Complexity, v.RequiredPatterns, seed)
	if err != nil {
		return false, fmt.Errorf("generate maze: %w", err)
	}
	mazeJSON, err := json.Marshal(cfg)
	if err != nil {
		return false, fmt.Errorf("marshal maze: %w", err)
	}
	now := e.now().UTC()
	startTime := now.Format(time.RFC3339)
	endTime := now.Add(time.Duration(v.TimeLimitSeconds) * time.Second).Format(time.RFC3339)
	ok, err := e.Repo.MarkRunning(ctx, tx, ventureID, seed, string(mazeJSON), startTime, endTime)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	parts, err := e.Repo.ListParticipations(ctx, tx, ventureID)
	if err != nil {
		return false, err
	}
	for _, p := range parts {
		s := domain.MazeSession{
			ID:        uuid.New().String(),
			VentureID: ventureID,
			PlayerID:  p.PlayerID,
			Status:    domain.SessionActive,
			X:         cfg.Start.X,
			Y:         cfg.Start.Y,
			StartedAt: startTime,
		}
		if err := e.Repo.InsertSession(ctx, tx, s); err != nil {
			return false, fmt.Errorf("create session for %s: %w", p.PlayerID, err)
		}
	}
	if err := e.Events.Append(ctx, tx, events.VentureLaunched, ventureID, "venture", ventureID, "", events.EventPayload{
		"participants": len(parts),
		"end_time":     endTime,
		"maze_side":    cfg.Side,
	}); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// SweepResult reports what one scheduler pass did.
type SweepResult struct {
	Started int `json:"started"`
	Settled int `json:"settled"`
}

// Sweep is the externally triggered scheduler pass: it starts every active
// venture with at least one participant and force-completes running ventures
// whose wall-clock window has passed. Safe to invoke repeatedly.
func (e Engine) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	active, err := e.Repo.ListVentures(ctx, domain.VentureActive)
	if err != nil {
		return res, err
	}
	for _, v := range active {
		if v.CurrentParticipants < 1 {
			continue
		}
		started, err := e.StartVenture(ctx, v.ID)
		if err != nil {
			return res, err
		}
		if started {
			res.Started++
		}
	}
	running, err := e.Repo.ListVentures(ctx, domain.VentureRunning)
	if err != nil {
		return res, err
	}
	now := e.now().UTC()
	for _, v := range running {
		if v.EndTime == nil || v.WinningPlayer != nil {
			continue
		}
		end, err := time.Parse(time.RFC3339, *v.EndTime)
		if err != nil {
			return res, fmt.Errorf("venture %s end time: %w", v.ID, err)
		}
		if end.After(now) {
			continue
		}
		settled, err := e.settleTimeout(ctx, v.ID)
		if err != nil {
			return res, err
		}
		if settled {
			res.Settled++
		}
	}
	return res, nil
}

// settleTimeout completes an expired venture with no CEO: even split only.
func (e Engine) settleTimeout(ctx context.Context, ventureID string) (bool, error) {
	lock := e.locks.venture(ventureID)
	lock.Lock()
	defer lock.Unlock()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	v, err := e.Repo.GetVentureTx(ctx, tx, ventureID)
	if err != nil {
		return false, mapNotFound(err)
	}
	completionTime := e.now().UTC().Format(time.RFC3339)
	ok, err := e.Repo.MarkCompleted(ctx, tx, ventureID, nil, completionTime)
	if err != nil {
		return false, err
	}
	if !ok {
		// Already settled through either path.
		return false, nil
	}
	if err := e.Repo.CloseActiveSessions(ctx, tx, ventureID, domain.SessionTimeout); err != nil {
		return false, err
	}
	if err := e.settle(ctx, tx, v, nil); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// settle distributes the venture's equity pool. Runs inside the transaction
// that won the completion compare-and-swap, so it executes at most once per
// venture. The winner additionally receives the CEO stake.
func (e Engine) settle(ctx context.Context, tx *sql.Tx, v domain.Venture, winner *string) error {
	parts, err := e.Repo.ListParticipations(ctx, tx, v.ID)
	if err != nil {
		return err
	}
	divisor := len(parts)
	if divisor < 1 {
		divisor = 1
	}
	share := v.ParticipantEquity / float64(divisor)
	for _, p := range parts {
		isCEO := winner != nil && p.PlayerID == *winner
		credited, err := e.Repo.SettleParticipation(ctx, tx, p.PlayerID, v.ID, share, isCEO)
		if err != nil {
			return err
		}
		if !credited {
			continue
		}
		amount := share
		if isCEO {
			amount += v.CEOEquity
			if err := e.Repo.RecordVentureWon(ctx, tx, p.PlayerID); err != nil {
				return err
			}
		}
		if err := e.Repo.CreditEquity(ctx, tx, p.PlayerID, amount); err != nil {
			return err
		}
	}
	payload := events.EventPayload{
		"participants":      len(parts),
		"participant_share": share,
	}
	actor := ""
	if winner != nil {
		actor = *winner
		payload["winning_player"] = *winner
		payload["ceo_equity"] = v.CEOEquity
		if err := e.Events.Append(ctx, tx, events.CEOSelected, v.ID, "venture", v.ID, *winner, events.EventPayload{
			"ceo_equity": v.CEOEquity,
		}); err != nil {
			return err
		}
	}
	return e.Events.Append(ctx, tx, events.VentureCompleted, v.ID, "venture", v.ID, actor, payload)
}
