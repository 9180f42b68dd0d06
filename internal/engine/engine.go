package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"nextventure/internal/config"
	"nextventure/internal/domain"
	"nextventure/internal/events"
	"nextventure/internal/repo"
)

// Engine runs the venture lifecycle: joins, maze sessions, winner arbitration
// and equity settlement. Every operation is one transaction; the keyed locks
// serialize sessions and venture settlements beyond what SQLite gives us.
type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time
	Rand   *rand.Rand

	locks *keyedLocks
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
		Rand:   rand.New(rand.NewSource(time.Now().UnixNano())),
		locks:  newKeyedLocks(),
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// randFloat draws from the engine RNG under the shared lock; the RNG itself
// is not safe for concurrent use.
func (e Engine) randFloat() float64 {
	e.locks.rngMu.Lock()
	defer e.locks.rngMu.Unlock()
	return e.Rand.Float64()
}

func (e Engine) randSeed() int64 {
	e.locks.rngMu.Lock()
	defer e.locks.rngMu.Unlock()
	return e.Rand.Int63()
}

// VentureCreateOptions are parameters for creating a venture.
type VentureCreateOptions struct {
	ID                string
	Name              string
	VentureType       string
	Icon              string
	Description       string
	CEOEquity         float64
	ParticipantEquity float64
	TicketCost        int
	MinLevel          int
	MaxParticipants   int
	Complexity        int
	TimeLimitSeconds  int
	RequiredPatterns  int
	Upcoming          bool
	ActorID           string
}

const equityEpsilon = 1e-9

func (e Engine) CreateVenture(ctx context.Context, opts VentureCreateOptions) (domain.Venture, error) {
	if e.Config == nil {
		return domain.Venture{}, errors.New("config not loaded")
	}
	if opts.Name == "" {
		return domain.Venture{}, errors.New("name is required")
	}
	if opts.VentureType == "" {
		opts.VentureType = "standard"
	}
	if math.Abs(opts.CEOEquity+opts.ParticipantEquity-domain.TotalEquity) > equityEpsilon {
		return domain.Venture{}, domain.ErrEquitySplit
	}
	if opts.CEOEquity < 0 || opts.ParticipantEquity < 0 {
		return domain.Venture{}, domain.ErrEquitySplit
	}
	if opts.Complexity < 1 || opts.Complexity > 10 {
		return domain.Venture{}, domain.ErrInvalidComplexity
	}
	if opts.RequiredPatterns < 0 {
		return domain.Venture{}, errors.New("required patterns must not be negative")
	}
	if opts.TicketCost == 0 {
		opts.TicketCost = e.Config.Ventures.DefaultTicketCost
	}
	if opts.TicketCost < 0 {
		return domain.Venture{}, errors.New("ticket cost must not be negative")
	}
	if opts.MinLevel < 1 {
		opts.MinLevel = 1
	}
	if opts.MaxParticipants == 0 {
		opts.MaxParticipants = e.Config.Ventures.DefaultMaxParticipants
	}
	if opts.MaxParticipants < 1 {
		return domain.Venture{}, errors.New("max participants must be at least 1")
	}
	if opts.TimeLimitSeconds == 0 {
		opts.TimeLimitSeconds = e.Config.Ventures.DefaultTimeLimit
	}
	if opts.TimeLimitSeconds < 1 {
		return domain.Venture{}, errors.New("time limit must be at least 1 second")
	}
	id := opts.ID
	if id == "" {
		id = uuid.New().String()
	}
	status := domain.VentureActive
	if opts.Upcoming {
		status = domain.VentureUpcoming
	}
	v := domain.Venture{
		ID:                id,
		Name:              opts.Name,
		VentureType:       opts.VentureType,
		Icon:              opts.Icon,
		Description:       opts.Description,
		CEOEquity:         opts.CEOEquity,
		ParticipantEquity: opts.ParticipantEquity,
		TicketCost:        opts.TicketCost,
		MinLevel:          opts.MinLevel,
		MaxParticipants:   opts.MaxParticipants,
		Complexity:        opts.Complexity,
		TimeLimitSeconds:  opts.TimeLimitSeconds,
		RequiredPatterns:  opts.RequiredPatterns,
		Status:            status,
		CreatedAt:         e.now().UTC().Format(time.RFC3339),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Venture{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertVenture(ctx, tx, v); err != nil {
		return domain.Venture{}, fmt.Errorf("insert venture: %w", err)
	}
	if err := e.Events.Append(ctx, tx, events.VentureCreated, v.ID, "venture", v.ID, opts.ActorID, events.EventPayload{
		"name":       v.Name,
		"status":     v.Status,
		"ceo_equity": v.CEOEquity,
	}); err != nil {
		return domain.Venture{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Venture{}, err
	}
	return v, nil
}

// CreatePlayer seeds a player record with the configured starting balance.
// Replaces the legacy implicit profile-on-signup hook with an explicit
// factory.
func (e Engine) CreatePlayer(ctx context.Context, playerID string) (domain.Player, error) {
	if e.Config == nil {
		return domain.Player{}, errors.New("config not loaded")
	}
	if playerID == "" {
		return domain.Player{}, errors.New("player id is required")
	}
	p := domain.Player{
		ID:        playerID,
		Tickets:   e.Config.Economy.StartingTickets,
		Level:     1,
		CreatedAt: e.now().UTC().Format(time.RFC3339),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Player{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertPlayer(ctx, tx, p); err != nil {
		return domain.Player{}, fmt.Errorf("insert player: %w", err)
	}
	if err := e.Events.Append(ctx, tx, events.PlayerCreated, "", "player", p.ID, p.ID, events.EventPayload{
		"tickets": p.Tickets,
	}); err != nil {
		return domain.Player{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Player{}, err
	}
	return p, nil
}

// JoinVenture enters a player into an active venture, debiting tickets and
// crediting join XP in one transaction. When the join fills the venture the
// active→running transition fires immediately; otherwise the sweep starts it.
func (e Engine) JoinVenture(ctx context.Context, playerID, ventureID string) (domain.Participation, error) {
	if e.Config == nil {
		return domain.Participation{}, errors.New("config not loaded")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Participation{}, err
	}
	defer tx.Rollback()

	v, err := e.Repo.GetVentureTx(ctx, tx, ventureID)
	if err != nil {
		return domain.Participation{}, mapNotFound(err)
	}
	if v.Status != domain.VentureActive {
		return domain.Participation{}, domain.ErrVentureNotJoinable
	}
	if v.CurrentParticipants >= v.MaxParticipants {
		return domain.Participation{}, domain.ErrVentureFull
	}
	joined, err := e.Repo.HasParticipation(ctx, tx, playerID, ventureID)
	if err != nil {
		return domain.Participation{}, err
	}
	if joined {
		return domain.Participation{}, domain.ErrAlreadyJoined
	}
	p, err := e.Repo.GetPlayerTx(ctx, tx, playerID)
	if err != nil {
		return domain.Participation{}, mapNotFound(err)
	}
	if p.Level < v.MinLevel {
		return domain.Participation{}, domain.ErrLevelTooLow
	}
	if p.Tickets < v.TicketCost {
		return domain.Participation{}, domain.ErrInsufficientTickets
	}
	ok, err := e.Repo.SpendTickets(ctx, tx, playerID, v.TicketCost)
	if err != nil {
		return domain.Participation{}, err
	}
	if !ok {
		return domain.Participation{}, domain.ErrInsufficientTickets
	}
	ok, err = e.Repo.AddParticipant(ctx, tx, ventureID)
	if err != nil {
		return domain.Participation{}, err
	}
	if !ok {
		return domain.Participation{}, domain.ErrVentureFull
	}
	part := domain.Participation{
		PlayerID:    playerID,
		VentureID:   ventureID,
		TicketsUsed: v.TicketCost,
		JoinedAt:    e.now().UTC().Format(time.RFC3339),
	}
	if err := e.Repo.InsertParticipation(ctx, tx, part); err != nil {
		return domain.Participation{}, err
	}
	if err := e.Repo.RecordVentureJoined(ctx, tx, playerID); err != nil {
		return domain.Participation{}, err
	}
	if err := e.grantXP(ctx, tx, p, e.Config.Economy.JoinXP); err != nil {
		return domain.Participation{}, err
	}
	if err := e.Events.Append(ctx, tx, events.PlayerJoined, ventureID, "participation", playerID, playerID, events.EventPayload{
		"venture_name": v.Name,
		"tickets_used": v.TicketCost,
	}); err != nil {
		return domain.Participation{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Participation{}, err
	}
	if v.CurrentParticipants+1 >= v.MaxParticipants {
		if _, err := e.StartVenture(ctx, ventureID); err != nil {
			return part, err
		}
	}
	return part, nil
}

// grantXP applies XP with the level-up loop: each level needs 100*level^2 XP
// and pays out bonus tickets.
func (e Engine) grantXP(ctx context.Context, tx *sql.Tx, p domain.Player, amount int) error {
	if amount <= 0 {
		return nil
	}
	xp := p.XP + amount
	level := p.Level
	bonusTickets := 0
	for xp >= domain.XPForNextLevel(level) {
		xp -= domain.XPForNextLevel(level)
		level++
		bonusTickets += e.Config.Economy.LevelUpTickets
	}
	return e.Repo.SetProgression(ctx, tx, p.ID, level, xp, bonusTickets)
}

// BuyTickets credits purchased tickets. Bulk purchases get the tiered price
// recorded on the event; the currency debit itself lives in the external
// wallet service.
func (e Engine) BuyTickets(ctx context.Context, playerID string, count int) (domain.Player, error) {
	if count <= 0 {
		return domain.Player{}, errors.New("ticket count must be positive")
	}
	if count > 100 {
		return domain.Player{}, errors.New("cannot purchase more than 100 tickets at once")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Player{}, err
	}
	defer tx.Rollback()
	p, err := e.Repo.GetPlayerTx(ctx, tx, playerID)
	if err != nil {
		return domain.Player{}, mapNotFound(err)
	}
	if err := e.Repo.AddTickets(ctx, tx, playerID, count); err != nil {
		return domain.Player{}, err
	}
	if err := e.Events.Append(ctx, tx, events.TicketsPurchased, "", "player", playerID, playerID, events.EventPayload{
		"count":      count,
		"star_price": TicketPrice(count),
	}); err != nil {
		return domain.Player{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Player{}, err
	}
	p.Tickets += count
	return p, nil
}

// TicketPrice returns the star price for a bulk ticket purchase.
func TicketPrice(count int) float64 {
	const basePrice = 20.0
	switch {
	case count >= 50:
		return float64(count) * basePrice * 0.7
	case count >= 20:
		return float64(count) * basePrice * 0.8
	case count >= 10:
		return float64(count) * basePrice * 0.9
	default:
		return float64(count) * basePrice
	}
}

func mapNotFound(err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return domain.ErrNotFound
	}
	return err
}
