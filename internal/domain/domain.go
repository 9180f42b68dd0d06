package domain

import "errors"

// Venture statuses.
const (
	VentureUpcoming  = "upcoming"
	VentureActive    = "active"
	VentureRunning   = "running"
	VentureCompleted = "completed"
	VentureCancelled = "cancelled"
)

// Session statuses.
const (
	SessionActive    = "active"
	SessionCompleted = "completed"
	SessionFailed    = "failed"
	SessionTimeout   = "timeout"
)

// TotalEquity is the fixed equity pool of every venture.
const TotalEquity = 100.0

var (
	ErrNotFound            = errors.New("not found")
	ErrInsufficientTickets = errors.New("not enough tickets")
	ErrLevelTooLow         = errors.New("player level too low")
	ErrVentureFull         = errors.New("venture is full")
	ErrAlreadyJoined       = errors.New("already joined this venture")
	ErrVentureNotJoinable  = errors.New("venture is not joinable")
	ErrSessionNotActive    = errors.New("session is not active")
	ErrInvalidDirection    = errors.New("invalid direction")
	ErrEquitySplit         = errors.New("ceo and participant equity must sum to total equity")
	ErrInvalidComplexity   = errors.New("complexity must be between 1 and 10")
	ErrMazeNotAvailable    = errors.New("maze not generated yet")
)

type Venture struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	VentureType string `json:"venture_type"`
	Icon        string `json:"icon,omitempty"`
	Description string `json:"description,omitempty"`

	CEOEquity         float64 `json:"ceo_equity"`
	ParticipantEquity float64 `json:"participant_equity"`

	TicketCost          int `json:"ticket_cost"`
	MinLevel            int `json:"min_level"`
	MaxParticipants     int `json:"max_participants"`
	CurrentParticipants int `json:"current_participants"`

	Complexity       int `json:"complexity"`
	TimeLimitSeconds int `json:"time_limit_seconds"`
	RequiredPatterns int `json:"required_patterns"`

	Status         string  `json:"status" enum:"upcoming,active,running,completed,cancelled"`
	Seed           int64   `json:"-"`
	MazeJSON       *string `json:"-"`
	StartTime      *string `json:"start_time,omitempty" format:"date-time"`
	EndTime        *string `json:"end_time,omitempty" format:"date-time"`
	CompletionTime *string `json:"completion_time,omitempty" format:"date-time"`
	WinningPlayer  *string `json:"winning_player,omitempty"`
	CreatedAt      string  `json:"created_at" format:"date-time"`
}

// Joinable reports whether a player may still enter the venture.
func (v Venture) Joinable() bool {
	return v.Status == VentureActive && v.CurrentParticipants < v.MaxParticipants
}

type Participation struct {
	PlayerID              string  `json:"player_id"`
	VentureID             string  `json:"venture_id"`
	TicketsUsed           int     `json:"tickets_used"`
	EquityEarned          float64 `json:"equity_earned"`
	CompletedMaze         bool    `json:"completed_maze"`
	CompletionTimeSeconds *int    `json:"completion_time_seconds,omitempty"`
	Rank                  *int    `json:"rank,omitempty"`
	IsCEO                 bool    `json:"is_ceo"`
	JoinedAt              string  `json:"joined_at" format:"date-time"`
}

type MazeSession struct {
	ID              string  `json:"id"`
	VentureID       string  `json:"venture_id"`
	PlayerID        string  `json:"player_id"`
	Status          string  `json:"status" enum:"active,completed,failed,timeout"`
	X               int     `json:"x"`
	Y               int     `json:"y"`
	MovesMade       int     `json:"moves_made"`
	PatternsFound   int     `json:"patterns_found"`
	TimeElapsed     int     `json:"time_elapsed"`
	UsedHints       int     `json:"used_hints"`
	DiscoveriesJSON string  `json:"-"`
	StartedAt       string  `json:"started_at" format:"date-time"`
	CompletedAt     *string `json:"completed_at,omitempty" format:"date-time"`
}

// Discovery is one entry of a session's ordered pattern discovery log.
type Discovery struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	TS   string `json:"ts" format:"date-time"`
}

type Player struct {
	ID             string  `json:"id"`
	Tickets        int     `json:"tickets"`
	Level          int     `json:"level"`
	XP             int     `json:"xp"`
	TotalEquity    float64 `json:"total_equity"`
	VenturesJoined int     `json:"ventures_joined"`
	VenturesWon    int     `json:"ventures_won"`
	CreatedAt      string  `json:"created_at" format:"date-time"`
}

// XPForNextLevel returns the XP required to advance past the given level.
func XPForNextLevel(level int) int {
	return 100 * level * level
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	UpdateType string `json:"update_type"`
	VentureID  string `json:"venture_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	PlayerID   string `json:"player_id"`
	Payload    string `json:"payload_json"`
}
