package server

import (
	"nextventure/internal/domain"
	"nextventure/internal/engine"
	"nextventure/internal/maze"
)

type CreateVentureRequest struct {
	ID                string  `json:"id,omitempty"`
	Name              string  `json:"name"`
	VentureType       string  `json:"venture_type,omitempty"`
	Icon              string  `json:"icon,omitempty"`
	Description       string  `json:"description,omitempty"`
	CEOEquity         float64 `json:"ceo_equity"`
	ParticipantEquity float64 `json:"participant_equity"`
	TicketCost        int     `json:"ticket_cost,omitempty"`
	MinLevel          int     `json:"min_level,omitempty"`
	MaxParticipants   int     `json:"max_participants,omitempty"`
	Complexity        int     `json:"complexity"`
	TimeLimitSeconds  int     `json:"time_limit_seconds,omitempty"`
	RequiredPatterns  int     `json:"required_patterns"`
	Upcoming          bool    `json:"upcoming,omitempty"`
}

type VentureResponse struct {
	domain.Venture
	AvailableSlots int  `json:"available_slots"`
	Joinable       bool `json:"is_joinable"`
}

func ventureResponse(v domain.Venture) VentureResponse {
	return VentureResponse{
		Venture:        v,
		AvailableSlots: v.MaxParticipants - v.CurrentParticipants,
		Joinable:       v.Joinable(),
	}
}

type CreatePlayerRequest struct {
	ID string `json:"id"`
}

type BuyTicketsRequest struct {
	Count int `json:"count" minimum:"1" maximum:"100"`
}

type JoinVentureResponse struct {
	Participation domain.Participation `json:"participation"`
	Venture       VentureResponse      `json:"venture"`
}

type MoveRequest struct {
	Direction string `json:"direction" enum:"up,down,left,right"`
}

type MazeResponse struct {
	Configuration maze.Configuration `json:"configuration"`
}

type DevLoginRequest struct {
	PlayerID string `json:"player_id"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

type LeaderboardResponse struct {
	VentureID string                    `json:"venture_id"`
	Entries   []engine.LeaderboardEntry `json:"entries"`
}
