package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"nextventure/internal/domain"
	"nextventure/internal/events"
	"nextventure/internal/maze"
	"nextventure/internal/repo"
)

// discoverProbability is the per-move chance of finding a pattern. Discovery
// is a Bernoulli draw decoupled from the generated pattern locations, as in
// the original game.
const discoverProbability = 0.20

// MoveResult is the outcome of one processed move.
type MoveResult struct {
	SessionID     string            `json:"session_id"`
	Status        string            `json:"status"`
	X             int               `json:"x"`
	Y             int               `json:"y"`
	MovesMade     int               `json:"moves_made"`
	PatternsFound int               `json:"patterns_found"`
	TimeElapsed   int               `json:"time_elapsed"`
	TimeRemaining int               `json:"time_remaining"`
	Completed     bool              `json:"completed"`
	Discovery     *domain.Discovery `json:"discovery,omitempty"`
}

// MakeMove advances one session by a single step. A session that reaches the
// end cell with enough patterns completes and enters winner arbitration; the
// whole decision, including equity settlement for a first completion, commits
// in one transaction keyed on the venture.
func (e Engine) MakeMove(ctx context.Context, sessionID, direction string) (MoveResult, error) {
	dir, err := maze.ParseDirection(direction)
	if err != nil {
		return MoveResult{}, domain.ErrInvalidDirection
	}
	// Resolve the venture before locking so locks are always taken in
	// session-then-venture order with no transaction open.
	peek, err := e.Repo.GetSession(ctx, sessionID)
	if err != nil {
		return MoveResult{}, mapNotFound(err)
	}
	sessionLock := e.locks.session(sessionID)
	sessionLock.Lock()
	defer sessionLock.Unlock()
	ventureLock := e.locks.venture(peek.VentureID)
	ventureLock.Lock()
	defer ventureLock.Unlock()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return MoveResult{}, err
	}
	defer tx.Rollback()

	s, err := e.Repo.GetSessionTx(ctx, tx, sessionID)
	if err != nil {
		return MoveResult{}, mapNotFound(err)
	}
	v, err := e.Repo.GetVentureTx(ctx, tx, s.VentureID)
	if err != nil {
		return MoveResult{}, mapNotFound(err)
	}
	if s.Status != domain.SessionActive || s.TimeElapsed >= v.TimeLimitSeconds {
		return MoveResult{}, domain.ErrSessionNotActive
	}
	cfg, err := ventureMaze(v)
	if err != nil {
		return MoveResult{}, err
	}

	dx, dy, _ := dir.Delta()
	s.MovesMade++
	s.TimeElapsed = min(s.TimeElapsed+1, v.TimeLimitSeconds)
	// Legacy behavior: walls are scenery, positions are unrestricted.
	s.X += dx
	s.Y += dy

	var found *domain.Discovery
	if s.PatternsFound < v.RequiredPatterns && e.randFloat() < discoverProbability {
		pattern := cfg.Patterns[s.PatternsFound]
		s.PatternsFound++
		found = &domain.Discovery{
			ID:   pattern.ID,
			Type: pattern.Type,
			TS:   e.now().UTC().Format(time.RFC3339),
		}
		if err := appendDiscovery(&s, *found); err != nil {
			return MoveResult{}, err
		}
	}

	completed := s.X == cfg.End.X && s.Y == cfg.End.Y && s.PatternsFound >= v.RequiredPatterns
	now := e.now().UTC().Format(time.RFC3339)
	if completed {
		s.Status = domain.SessionCompleted
		s.CompletedAt = &now
	} else if s.TimeElapsed >= v.TimeLimitSeconds {
		s.Status = domain.SessionTimeout
	}

	ok, err := e.Repo.UpdateSessionProgress(ctx, tx, s)
	if err != nil {
		return MoveResult{}, err
	}
	if !ok {
		return MoveResult{}, domain.ErrSessionNotActive
	}

	if completed {
		rank, err := e.Repo.CountCompletedSessions(ctx, tx, s.VentureID)
		if err != nil {
			return MoveResult{}, err
		}
		if err := e.Repo.RecordMazeCompletion(ctx, tx, s.PlayerID, s.VentureID, s.TimeElapsed, rank); err != nil {
			return MoveResult{}, err
		}
		if err := e.Events.Append(ctx, tx, events.SessionCompleted, s.VentureID, "session", s.ID, s.PlayerID, events.EventPayload{
			"moves":    s.MovesMade,
			"patterns": s.PatternsFound,
			"rank":     rank,
		}); err != nil {
			return MoveResult{}, err
		}
		// Winner arbitration: the compare-and-swap admits exactly one
		// completion per venture; later completions keep their session
		// result but change nothing on the venture.
		won, err := e.Repo.MarkCompleted(ctx, tx, s.VentureID, &s.PlayerID, now)
		if err != nil {
			return MoveResult{}, err
		}
		if won {
			if err := e.settle(ctx, tx, v, &s.PlayerID); err != nil {
				return MoveResult{}, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return MoveResult{}, err
	}
	return MoveResult{
		SessionID:     s.ID,
		Status:        s.Status,
		X:             s.X,
		Y:             s.Y,
		MovesMade:     s.MovesMade,
		PatternsFound: s.PatternsFound,
		TimeElapsed:   s.TimeElapsed,
		TimeRemaining: max(0, v.TimeLimitSeconds-s.TimeElapsed),
		Completed:     completed,
		Discovery:     found,
	}, nil
}

func appendDiscovery(s *domain.MazeSession, d domain.Discovery) error {
	var log []domain.Discovery
	if s.DiscoveriesJSON != "" {
		if err := json.Unmarshal([]byte(s.DiscoveriesJSON), &log); err != nil {
			return fmt.Errorf("discovery log: %w", err)
		}
	}
	log = append(log, d)
	data, err := json.Marshal(log)
	if err != nil {
		return err
	}
	s.DiscoveriesJSON = string(data)
	return nil
}

func ventureMaze(v domain.Venture) (maze.Configuration, error) {
	if v.MazeJSON == nil {
		return maze.Configuration{}, domain.ErrMazeNotAvailable
	}
	var cfg maze.Configuration
	if err := json.Unmarshal([]byte(*v.MazeJSON), &cfg); err != nil {
		return maze.Configuration{}, fmt.Errorf("maze config: %w", err)
	}
	return cfg, nil
}

// GetMaze returns the shared maze configuration of a started venture.
func (e Engine) GetMaze(ctx context.Context, ventureID string) (maze.Configuration, error) {
	v, err := e.Repo.GetVenture(ctx, ventureID)
	if err != nil {
		return maze.Configuration{}, mapNotFound(err)
	}
	return ventureMaze(v)
}

// LeaderboardEntry is one row of a venture leaderboard.
type LeaderboardEntry struct {
	Position      int    `json:"position"`
	PlayerID      string `json:"player_id"`
	Status        string `json:"status"`
	MovesMade     int    `json:"moves_made"`
	PatternsFound int    `json:"patterns_found"`
	TimeElapsed   int    `json:"time_elapsed"`
	CompletedAt   string `json:"completed_at,omitempty"`
	IsCEO         bool   `json:"is_ceo"`
}

// Leaderboard lists completed sessions by completion instant. When
// requesterID has an unfinished session, its in-progress entry is appended.
func (e Engine) Leaderboard(ctx context.Context, ventureID, requesterID string) ([]LeaderboardEntry, error) {
	v, err := e.Repo.GetVenture(ctx, ventureID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	sessions, err := e.Repo.CompletedSessions(ctx, ventureID)
	if err != nil {
		return nil, err
	}
	board := make([]LeaderboardEntry, 0, len(sessions)+1)
	for i, s := range sessions {
		entry := LeaderboardEntry{
			Position:      i + 1,
			PlayerID:      s.PlayerID,
			Status:        s.Status,
			MovesMade:     s.MovesMade,
			PatternsFound: s.PatternsFound,
			TimeElapsed:   s.TimeElapsed,
			IsCEO:         v.WinningPlayer != nil && *v.WinningPlayer == s.PlayerID,
		}
		if s.CompletedAt != nil {
			entry.CompletedAt = *s.CompletedAt
		}
		board = append(board, entry)
	}
	if requesterID != "" {
		own, err := e.Repo.GetSessionByPlayer(ctx, ventureID, requesterID)
		if err != nil && !isNotFound(err) {
			return nil, err
		}
		if err == nil && own.Status != domain.SessionCompleted {
			board = append(board, LeaderboardEntry{
				PlayerID:      own.PlayerID,
				Status:        own.Status,
				MovesMade:     own.MovesMade,
				PatternsFound: own.PatternsFound,
				TimeElapsed:   own.TimeElapsed,
			})
		}
	}
	return board, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, repo.ErrNotFound) || errors.Is(err, domain.ErrNotFound)
}
