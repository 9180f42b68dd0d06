package nextventuresdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal NextVenture HTTP API client.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Venture represents the API venture model (partial).
type Venture struct {
	ID                  string  `json:"id"`
	Name                string  `json:"name"`
	Status              string  `json:"status"`
	CEOEquity           float64 `json:"ceo_equity"`
	ParticipantEquity   float64 `json:"participant_equity"`
	TicketCost          int     `json:"ticket_cost"`
	CurrentParticipants int     `json:"current_participants"`
	MaxParticipants     int     `json:"max_participants"`
	Complexity          int     `json:"complexity"`
	WinningPlayer       *string `json:"winning_player,omitempty"`
}

// Player represents the API player model.
type Player struct {
	ID             string  `json:"id"`
	Tickets        int     `json:"tickets"`
	Level          int     `json:"level"`
	XP             int     `json:"xp"`
	TotalEquity    float64 `json:"total_equity"`
	VenturesJoined int     `json:"ventures_joined"`
	VenturesWon    int     `json:"ventures_won"`
}

// Participation represents a player's stake in a venture.
type Participation struct {
	PlayerID     string  `json:"player_id"`
	VentureID    string  `json:"venture_id"`
	TicketsUsed  int     `json:"tickets_used"`
	EquityEarned float64 `json:"equity_earned"`
	IsCEO        bool    `json:"is_ceo"`
}

// MoveResult is the outcome of one maze move.
type MoveResult struct {
	SessionID     string         `json:"session_id"`
	Status        string         `json:"status"`
	X             int            `json:"x"`
	Y             int            `json:"y"`
	MovesMade     int            `json:"moves_made"`
	PatternsFound int            `json:"patterns_found"`
	TimeElapsed   int            `json:"time_elapsed"`
	TimeRemaining int            `json:"time_remaining"`
	Completed     bool           `json:"completed"`
	Discovery     map[string]any `json:"discovery,omitempty"`
}

// MazeSession is a player's run through a venture maze.
type MazeSession struct {
	ID            string `json:"id"`
	VentureID     string `json:"venture_id"`
	PlayerID      string `json:"player_id"`
	Status        string `json:"status"`
	X             int    `json:"x"`
	Y             int    `json:"y"`
	MovesMade     int    `json:"moves_made"`
	PatternsFound int    `json:"patterns_found"`
	TimeElapsed   int    `json:"time_elapsed"`
}

// LeaderboardEntry is one row of a venture leaderboard.
type LeaderboardEntry struct {
	Position      int    `json:"position"`
	PlayerID      string `json:"player_id"`
	Status        string `json:"status"`
	MovesMade     int    `json:"moves_made"`
	PatternsFound int    `json:"patterns_found"`
	TimeElapsed   int    `json:"time_elapsed"`
	IsCEO         bool   `json:"is_ceo"`
}

// Event represents a log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	UpdateType string         `json:"update_type"`
	VentureID  string         `json:"venture_id"`
	EntityID   string         `json:"entity_id"`
	EntityKind string         `json:"entity_kind"`
	PlayerID   string         `json:"player_id"`
	Payload    map[string]any `json:"payload"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// DevLogin mints a JWT via the dev login endpoint and stores it on the client.
func (c *Client) DevLogin(ctx context.Context, playerID string) error {
	var resp struct {
		Token string `json:"token"`
	}
	body := map[string]any{"player_id": playerID}
	if err := c.do(ctx, http.MethodPost, "v0/auth/dev/login", body, &resp); err != nil {
		return err
	}
	c.BearerToken = resp.Token
	return nil
}

// CreatePlayer registers a player.
func (c *Client) CreatePlayer(ctx context.Context, id string) (Player, error) {
	var resp Player
	err := c.do(ctx, http.MethodPost, "v0/players", map[string]any{"id": id}, &resp)
	return resp, err
}

// Me returns the authenticated player's profile.
func (c *Client) Me(ctx context.Context) (Player, error) {
	var resp Player
	err := c.do(ctx, http.MethodGet, "v0/me", nil, &resp)
	return resp, err
}

// BuyTickets purchases tickets for the authenticated player.
func (c *Client) BuyTickets(ctx context.Context, count int) (Player, error) {
	var resp Player
	err := c.do(ctx, http.MethodPost, "v0/me/tickets", map[string]any{"count": count}, &resp)
	return resp, err
}

// Ventures lists ventures, optionally filtered by status.
func (c *Client) Ventures(ctx context.Context, status string) ([]Venture, error) {
	endpoint := "v0/ventures"
	if status != "" {
		endpoint = fmt.Sprintf("%s?status=%s", endpoint, url.QueryEscape(status))
	}
	var resp []Venture
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// GetVenture fetches a venture by id.
func (c *Client) GetVenture(ctx context.Context, id string) (Venture, error) {
	var resp Venture
	err := c.do(ctx, http.MethodGet, venturePath(id, ""), nil, &resp)
	return resp, err
}

// JoinVenture spends tickets to enter a venture.
func (c *Client) JoinVenture(ctx context.Context, id string) (Participation, error) {
	var resp struct {
		Participation Participation `json:"participation"`
	}
	err := c.do(ctx, http.MethodPost, venturePath(id, "join"), map[string]any{}, &resp)
	return resp.Participation, err
}

// StartVenture launches a venture.
func (c *Client) StartVenture(ctx context.Context, id string) (Venture, error) {
	var resp Venture
	err := c.do(ctx, http.MethodPost, venturePath(id, "start"), map[string]any{}, &resp)
	return resp, err
}

// MySession returns the authenticated player's session in a venture.
func (c *Client) MySession(ctx context.Context, ventureID string) (MazeSession, error) {
	var resp MazeSession
	err := c.do(ctx, http.MethodGet, venturePath(ventureID, "session"), nil, &resp)
	return resp, err
}

// Move makes one maze move in a session.
func (c *Client) Move(ctx context.Context, sessionID, direction string) (MoveResult, error) {
	var resp MoveResult
	endpoint := fmt.Sprintf("v0/sessions/%s/moves", url.PathEscape(sessionID))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{"direction": direction}, &resp)
	return resp, err
}

// Leaderboard returns venture standings.
func (c *Client) Leaderboard(ctx context.Context, ventureID string) ([]LeaderboardEntry, error) {
	var resp struct {
		Entries []LeaderboardEntry `json:"entries"`
	}
	err := c.do(ctx, http.MethodGet, venturePath(ventureID, "leaderboard"), nil, &resp)
	return resp.Entries, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	endpoint := "v0/events"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?n=%d", endpoint, limit)
	}
	var resp []Event
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func venturePath(id, sub string) string {
	p := fmt.Sprintf("v0/ventures/%s", url.PathEscape(id))
	if sub != "" {
		p += "/" + sub
	}
	return p
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
