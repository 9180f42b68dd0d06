package engine_test

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"

	"nextventure/internal/config"
	"nextventure/internal/db"
	"nextventure/internal/domain"
	"nextventure/internal/engine"
	"nextventure/internal/migrate"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
	Now    time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	env := &testEnv{
		Ctx: context.Background(),
		Now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	eng := engine.New(conn, config.Default())
	eng.Now = func() time.Time { return env.Now }
	eng.Rand = rand.New(rand.NewSource(42))
	env.Engine = eng
	return env
}

func (env *testEnv) player(t *testing.T, id string) domain.Player {
	t.Helper()
	p, err := env.Engine.CreatePlayer(env.Ctx, id)
	if err != nil {
		t.Fatalf("create player %s: %v", id, err)
	}
	return p
}

func (env *testEnv) venture(t *testing.T, opts engine.VentureCreateOptions) domain.Venture {
	t.Helper()
	if opts.Name == "" {
		opts.Name = "Test Venture"
	}
	if opts.CEOEquity == 0 && opts.ParticipantEquity == 0 {
		opts.CEOEquity = 40
		opts.ParticipantEquity = 60
	}
	if opts.Complexity == 0 {
		opts.Complexity = 1
	}
	v, err := env.Engine.CreateVenture(env.Ctx, opts)
	if err != nil {
		t.Fatalf("create venture: %v", err)
	}
	return v
}

// walkToEnd drives a session from the start corner to the end corner, then
// bounces on the end cell until the completion condition is met or the move
// budget runs out.
func (env *testEnv) walkToEnd(t *testing.T, ventureID, playerID string) engine.MoveResult {
	t.Helper()
	s, err := env.Engine.Repo.GetSessionByPlayer(env.Ctx, ventureID, playerID)
	if err != nil {
		t.Fatalf("session for %s: %v", playerID, err)
	}
	cfg, err := env.Engine.GetMaze(env.Ctx, ventureID)
	if err != nil {
		t.Fatalf("maze: %v", err)
	}
	var res engine.MoveResult
	for x := 0; x < cfg.End.X; x++ {
		res = env.move(t, s.ID, "right")
	}
	for y := 0; y < cfg.End.Y; y++ {
		res = env.move(t, s.ID, "down")
	}
	for i := 0; i < 500 && !res.Completed; i++ {
		env.move(t, s.ID, "up")
		res = env.move(t, s.ID, "down")
	}
	if !res.Completed {
		t.Fatalf("session %s did not complete within move budget", s.ID)
	}
	return res
}

func (env *testEnv) move(t *testing.T, sessionID, direction string) engine.MoveResult {
	t.Helper()
	res, err := env.Engine.MakeMove(env.Ctx, sessionID, direction)
	if err != nil {
		t.Fatalf("move %s: %v", direction, err)
	}
	return res
}

func TestCreateVentureValidation(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateVenture(env.Ctx, engine.VentureCreateOptions{
		Name: "bad split", CEOEquity: 50, ParticipantEquity: 60, Complexity: 1,
	})
	if !errors.Is(err, domain.ErrEquitySplit) {
		t.Fatalf("expected equity split error, got %v", err)
	}
	_, err = env.Engine.CreateVenture(env.Ctx, engine.VentureCreateOptions{
		Name: "bad complexity", CEOEquity: 40, ParticipantEquity: 60, Complexity: 11,
	})
	if !errors.Is(err, domain.ErrInvalidComplexity) {
		t.Fatalf("expected complexity error, got %v", err)
	}
}

func TestJoinVentureSpendsTicketsAndGrantsXP(t *testing.T) {
	env := newTestEnv(t)
	env.player(t, "p1")
	v := env.venture(t, engine.VentureCreateOptions{TicketCost: 2, MaxParticipants: 5})

	part, err := env.Engine.JoinVenture(env.Ctx, "p1", v.ID)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if part.TicketsUsed != 2 {
		t.Fatalf("tickets used %d, want 2", part.TicketsUsed)
	}
	p, err := env.Engine.Repo.GetPlayer(env.Ctx, "p1")
	if err != nil {
		t.Fatalf("get player: %v", err)
	}
	if p.Tickets != 3 {
		t.Fatalf("tickets %d, want 3", p.Tickets)
	}
	if p.XP != env.Engine.Config.Economy.JoinXP {
		t.Fatalf("xp %d, want %d", p.XP, env.Engine.Config.Economy.JoinXP)
	}
	if p.VenturesJoined != 1 {
		t.Fatalf("ventures joined %d, want 1", p.VenturesJoined)
	}
	got, err := env.Engine.Repo.GetVenture(env.Ctx, v.ID)
	if err != nil {
		t.Fatalf("get venture: %v", err)
	}
	if got.CurrentParticipants != 1 {
		t.Fatalf("participants %d, want 1", got.CurrentParticipants)
	}

	if _, err := env.Engine.JoinVenture(env.Ctx, "p1", v.ID); !errors.Is(err, domain.ErrAlreadyJoined) {
		t.Fatalf("expected already joined, got %v", err)
	}
}

func TestJoinVenturePreconditions(t *testing.T) {
	env := newTestEnv(t)
	env.player(t, "poor")

	costly := env.venture(t, engine.VentureCreateOptions{TicketCost: 99, MaxParticipants: 5})
	if _, err := env.Engine.JoinVenture(env.Ctx, "poor", costly.ID); !errors.Is(err, domain.ErrInsufficientTickets) {
		t.Fatalf("expected insufficient tickets, got %v", err)
	}

	gated := env.venture(t, engine.VentureCreateOptions{MinLevel: 5, MaxParticipants: 5})
	if _, err := env.Engine.JoinVenture(env.Ctx, "poor", gated.ID); !errors.Is(err, domain.ErrLevelTooLow) {
		t.Fatalf("expected level too low, got %v", err)
	}

	upcoming := env.venture(t, engine.VentureCreateOptions{Upcoming: true, MaxParticipants: 5})
	if _, err := env.Engine.JoinVenture(env.Ctx, "poor", upcoming.ID); !errors.Is(err, domain.ErrVentureNotJoinable) {
		t.Fatalf("expected not joinable, got %v", err)
	}

	if _, err := env.Engine.JoinVenture(env.Ctx, "ghost", gated.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for unknown player, got %v", err)
	}
}

func TestJoinXPCanLevelUp(t *testing.T) {
	env := newTestEnv(t)
	env.Engine.Config.Economy.JoinXP = 120
	env.player(t, "p1")
	v := env.venture(t, engine.VentureCreateOptions{TicketCost: 1, MaxParticipants: 5})

	if _, err := env.Engine.JoinVenture(env.Ctx, "p1", v.ID); err != nil {
		t.Fatalf("join: %v", err)
	}
	p, err := env.Engine.Repo.GetPlayer(env.Ctx, "p1")
	if err != nil {
		t.Fatalf("get player: %v", err)
	}
	// 120 XP clears the 100 XP bar for level 1 with 20 left over.
	if p.Level != 2 {
		t.Fatalf("level %d, want 2", p.Level)
	}
	if p.XP != 20 {
		t.Fatalf("xp %d, want 20", p.XP)
	}
	// 5 starting - 1 join cost + 2 level-up bonus.
	if p.Tickets != 6 {
		t.Fatalf("tickets %d, want 6", p.Tickets)
	}
}

func TestAutoStartWhenFull(t *testing.T) {
	env := newTestEnv(t)
	env.player(t, "p1")
	v := env.venture(t, engine.VentureCreateOptions{MaxParticipants: 1})

	if _, err := env.Engine.JoinVenture(env.Ctx, "p1", v.ID); err != nil {
		t.Fatalf("join: %v", err)
	}
	got, err := env.Engine.Repo.GetVenture(env.Ctx, v.ID)
	if err != nil {
		t.Fatalf("get venture: %v", err)
	}
	if got.Status != domain.VentureRunning {
		t.Fatalf("status %s, want running", got.Status)
	}
	if got.StartTime == nil || got.EndTime == nil {
		t.Fatalf("expected clock window to be stamped")
	}
	cfg, err := env.Engine.GetMaze(env.Ctx, v.ID)
	if err != nil {
		t.Fatalf("get maze: %v", err)
	}
	if cfg.Side != 12 {
		t.Fatalf("maze side %d, want 12 for complexity 1", cfg.Side)
	}
	s, err := env.Engine.Repo.GetSessionByPlayer(env.Ctx, v.ID, "p1")
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if s.Status != domain.SessionActive || s.X != 0 || s.Y != 0 {
		t.Fatalf("session %+v, want active at origin", s)
	}

	// A running venture accepts no more joins.
	env.player(t, "late")
	if _, err := env.Engine.JoinVenture(env.Ctx, "late", v.ID); !errors.Is(err, domain.ErrVentureNotJoinable) {
		t.Fatalf("expected not joinable after start, got %v", err)
	}
}

func TestStartVentureRequiresParticipant(t *testing.T) {
	env := newTestEnv(t)
	v := env.venture(t, engine.VentureCreateOptions{MaxParticipants: 5})
	started, err := env.Engine.StartVenture(env.Ctx, v.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if started {
		t.Fatalf("venture started with no participants")
	}
}

func TestSweepStartsPartiallyFilledVentures(t *testing.T) {
	env := newTestEnv(t)
	env.player(t, "p1")
	v := env.venture(t, engine.VentureCreateOptions{MaxParticipants: 10})
	if _, err := env.Engine.JoinVenture(env.Ctx, "p1", v.ID); err != nil {
		t.Fatalf("join: %v", err)
	}

	res, err := env.Engine.Sweep(env.Ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if res.Started != 1 {
		t.Fatalf("started %d, want 1", res.Started)
	}
	got, _ := env.Engine.Repo.GetVenture(env.Ctx, v.ID)
	if got.Status != domain.VentureRunning {
		t.Fatalf("status %s, want running", got.Status)
	}
}

func TestWinnerBecomesCEO(t *testing.T) {
	env := newTestEnv(t)
	for _, id := range []string{"p1", "p2", "p3"} {
		env.player(t, id)
	}
	v := env.venture(t, engine.VentureCreateOptions{MaxParticipants: 3})
	for _, id := range []string{"p1", "p2", "p3"} {
		if _, err := env.Engine.JoinVenture(env.Ctx, id, v.ID); err != nil {
			t.Fatalf("join %s: %v", id, err)
		}
	}

	res := env.walkToEnd(t, v.ID, "p1")
	if res.Status != domain.SessionCompleted {
		t.Fatalf("session status %s, want completed", res.Status)
	}

	got, err := env.Engine.Repo.GetVenture(env.Ctx, v.ID)
	if err != nil {
		t.Fatalf("get venture: %v", err)
	}
	if got.Status != domain.VentureCompleted {
		t.Fatalf("venture status %s, want completed", got.Status)
	}
	if got.WinningPlayer == nil || *got.WinningPlayer != "p1" {
		t.Fatalf("winning player %v, want p1", got.WinningPlayer)
	}

	winner, _ := env.Engine.Repo.GetPlayer(env.Ctx, "p1")
	if math.Abs(winner.TotalEquity-60) > 1e-9 { // 60/3 share + 40 CEO stake
		t.Fatalf("winner equity %f, want 60", winner.TotalEquity)
	}
	if winner.VenturesWon != 1 {
		t.Fatalf("ventures won %d, want 1", winner.VenturesWon)
	}
	for _, id := range []string{"p2", "p3"} {
		p, _ := env.Engine.Repo.GetPlayer(env.Ctx, id)
		if math.Abs(p.TotalEquity-20) > 1e-9 {
			t.Fatalf("%s equity %f, want 20", id, p.TotalEquity)
		}
	}

	part, err := env.Engine.Repo.GetParticipation(env.Ctx, "p1", v.ID)
	if err != nil {
		t.Fatalf("participation: %v", err)
	}
	if !part.IsCEO || !part.CompletedMaze {
		t.Fatalf("participation %+v, want CEO with completed maze", part)
	}
	if part.Rank == nil || *part.Rank != 1 {
		t.Fatalf("rank %v, want 1", part.Rank)
	}
}

func TestLateCompletionRecordsButChangesNothing(t *testing.T) {
	env := newTestEnv(t)
	env.player(t, "p1")
	env.player(t, "p2")
	v := env.venture(t, engine.VentureCreateOptions{MaxParticipants: 2})
	for _, id := range []string{"p1", "p2"} {
		if _, err := env.Engine.JoinVenture(env.Ctx, id, v.ID); err != nil {
			t.Fatalf("join %s: %v", id, err)
		}
	}

	env.walkToEnd(t, v.ID, "p1")
	before, _ := env.Engine.Repo.GetPlayer(env.Ctx, "p2")

	// The race is over but p2's maze run still records its result.
	res := env.walkToEnd(t, v.ID, "p2")
	if res.Status != domain.SessionCompleted {
		t.Fatalf("late session status %s, want completed", res.Status)
	}
	got, _ := env.Engine.Repo.GetVenture(env.Ctx, v.ID)
	if got.WinningPlayer == nil || *got.WinningPlayer != "p1" {
		t.Fatalf("winning player changed: %v", got.WinningPlayer)
	}
	after, _ := env.Engine.Repo.GetPlayer(env.Ctx, "p2")
	if math.Abs(after.TotalEquity-before.TotalEquity) > 1e-9 {
		t.Fatalf("late completion changed equity: %f -> %f", before.TotalEquity, after.TotalEquity)
	}
	if after.VenturesWon != 0 {
		t.Fatalf("late completion counted as a win")
	}
	part, _ := env.Engine.Repo.GetParticipation(env.Ctx, "p2", v.ID)
	if part.Rank == nil || *part.Rank != 2 {
		t.Fatalf("late rank %v, want 2", part.Rank)
	}

	board, err := env.Engine.Leaderboard(env.Ctx, v.ID, "")
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(board) != 2 {
		t.Fatalf("leaderboard size %d, want 2", len(board))
	}
	if board[0].PlayerID != "p1" || !board[0].IsCEO {
		t.Fatalf("leaderboard head %+v, want p1 as CEO", board[0])
	}
	if board[1].PlayerID != "p2" || board[1].IsCEO {
		t.Fatalf("leaderboard second %+v, want p2 without CEO flag", board[1])
	}
}

func TestTimeoutSettlesEvenlyWithNoCEO(t *testing.T) {
	env := newTestEnv(t)
	env.player(t, "p1")
	env.player(t, "p2")
	v := env.venture(t, engine.VentureCreateOptions{MaxParticipants: 2, TimeLimitSeconds: 60})
	for _, id := range []string{"p1", "p2"} {
		if _, err := env.Engine.JoinVenture(env.Ctx, id, v.ID); err != nil {
			t.Fatalf("join %s: %v", id, err)
		}
	}

	env.Now = env.Now.Add(2 * time.Minute)
	res, err := env.Engine.Sweep(env.Ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if res.Settled != 1 {
		t.Fatalf("settled %d, want 1", res.Settled)
	}

	got, _ := env.Engine.Repo.GetVenture(env.Ctx, v.ID)
	if got.Status != domain.VentureCompleted {
		t.Fatalf("status %s, want completed", got.Status)
	}
	if got.WinningPlayer != nil {
		t.Fatalf("timeout settlement picked a CEO: %v", got.WinningPlayer)
	}
	for _, id := range []string{"p1", "p2"} {
		p, _ := env.Engine.Repo.GetPlayer(env.Ctx, id)
		if math.Abs(p.TotalEquity-30) > 1e-9 {
			t.Fatalf("%s equity %f, want 30", id, p.TotalEquity)
		}
		s, _ := env.Engine.Repo.GetSessionByPlayer(env.Ctx, v.ID, id)
		if s.Status != domain.SessionTimeout {
			t.Fatalf("%s session status %s, want timeout", id, s.Status)
		}
	}

	// Settlement is exactly-once: another sweep changes nothing.
	res, err = env.Engine.Sweep(env.Ctx)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if res.Settled != 0 {
		t.Fatalf("second sweep settled %d, want 0", res.Settled)
	}
	p, _ := env.Engine.Repo.GetPlayer(env.Ctx, "p1")
	if math.Abs(p.TotalEquity-30) > 1e-9 {
		t.Fatalf("equity drifted after repeat sweep: %f", p.TotalEquity)
	}
}

func TestMoveRejectedAfterTimeout(t *testing.T) {
	env := newTestEnv(t)
	env.player(t, "p1")
	v := env.venture(t, engine.VentureCreateOptions{MaxParticipants: 1, TimeLimitSeconds: 60})
	if _, err := env.Engine.JoinVenture(env.Ctx, "p1", v.ID); err != nil {
		t.Fatalf("join: %v", err)
	}
	s, _ := env.Engine.Repo.GetSessionByPlayer(env.Ctx, v.ID, "p1")

	if _, err := env.Engine.MakeMove(env.Ctx, s.ID, "diagonal"); !errors.Is(err, domain.ErrInvalidDirection) {
		t.Fatalf("expected invalid direction, got %v", err)
	}

	env.Now = env.Now.Add(2 * time.Minute)
	if _, err := env.Engine.Sweep(env.Ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if _, err := env.Engine.MakeMove(env.Ctx, s.ID, "right"); !errors.Is(err, domain.ErrSessionNotActive) {
		t.Fatalf("expected session not active, got %v", err)
	}
}

func TestPatternDiscoveryGatesCompletion(t *testing.T) {
	env := newTestEnv(t)
	env.player(t, "p1")
	v := env.venture(t, engine.VentureCreateOptions{MaxParticipants: 1, RequiredPatterns: 2})
	if _, err := env.Engine.JoinVenture(env.Ctx, "p1", v.ID); err != nil {
		t.Fatalf("join: %v", err)
	}

	res := env.walkToEnd(t, v.ID, "p1")
	if res.PatternsFound != 2 {
		t.Fatalf("patterns found %d, want exactly the required 2", res.PatternsFound)
	}
	s, _ := env.Engine.Repo.GetSessionByPlayer(env.Ctx, v.ID, "p1")
	var log []domain.Discovery
	if err := json.Unmarshal([]byte(s.DiscoveriesJSON), &log); err != nil {
		t.Fatalf("discovery log: %v", err)
	}
	if len(log) != 2 {
		t.Fatalf("discovery log size %d, want 2", len(log))
	}
	if log[0].Type != "quantum" || log[1].Type != "neural" {
		t.Fatalf("discovery order %s,%s, want quantum,neural", log[0].Type, log[1].Type)
	}
}

func TestConcurrentCompletionElectsOneCEO(t *testing.T) {
	env := newTestEnv(t)
	players := []string{"p1", "p2", "p3", "p4"}
	for _, id := range players {
		env.player(t, id)
	}
	v := env.venture(t, engine.VentureCreateOptions{MaxParticipants: len(players)})
	for _, id := range players {
		if _, err := env.Engine.JoinVenture(env.Ctx, id, v.ID); err != nil {
			t.Fatalf("join %s: %v", id, err)
		}
	}
	cfg, err := env.Engine.GetMaze(env.Ctx, v.ID)
	if err != nil {
		t.Fatalf("maze: %v", err)
	}

	var wg sync.WaitGroup
	for _, id := range players {
		s, err := env.Engine.Repo.GetSessionByPlayer(env.Ctx, v.ID, id)
		if err != nil {
			t.Fatalf("session %s: %v", id, err)
		}
		wg.Add(1)
		go func(sessionID string) {
			defer wg.Done()
			for x := 0; x < cfg.End.X; x++ {
				if _, err := env.Engine.MakeMove(env.Ctx, sessionID, "right"); err != nil {
					return
				}
			}
			for y := 0; y < cfg.End.Y; y++ {
				if _, err := env.Engine.MakeMove(env.Ctx, sessionID, "down"); err != nil {
					return
				}
			}
		}(s.ID)
	}
	wg.Wait()

	got, err := env.Engine.Repo.GetVenture(env.Ctx, v.ID)
	if err != nil {
		t.Fatalf("get venture: %v", err)
	}
	if got.Status != domain.VentureCompleted {
		t.Fatalf("status %s, want completed", got.Status)
	}
	if got.WinningPlayer == nil {
		t.Fatalf("no winner elected")
	}

	ceoCount := 0
	var total float64
	for _, id := range players {
		p, err := env.Engine.Repo.GetPlayer(env.Ctx, id)
		if err != nil {
			t.Fatalf("get player %s: %v", id, err)
		}
		total += p.TotalEquity
		part, err := env.Engine.Repo.GetParticipation(env.Ctx, id, v.ID)
		if err != nil {
			t.Fatalf("participation %s: %v", id, err)
		}
		if part.IsCEO {
			ceoCount++
			if id != *got.WinningPlayer {
				t.Fatalf("CEO flag on %s but winner is %s", id, *got.WinningPlayer)
			}
		}
	}
	if ceoCount != 1 {
		t.Fatalf("CEO count %d, want exactly 1", ceoCount)
	}
	if math.Abs(total-domain.TotalEquity) > 1e-6 {
		t.Fatalf("equity sum %f, want %f", total, domain.TotalEquity)
	}
}

func TestBuyTicketsTieredPricing(t *testing.T) {
	env := newTestEnv(t)
	env.player(t, "p1")

	cases := []struct {
		count int
		price float64
	}{
		{1, 20},
		{9, 180},
		{10, 180},
		{20, 320},
		{50, 700},
	}
	for _, tc := range cases {
		if got := engine.TicketPrice(tc.count); math.Abs(got-tc.price) > 1e-9 {
			t.Fatalf("price for %d tickets: %f, want %f", tc.count, got, tc.price)
		}
	}

	p, err := env.Engine.BuyTickets(env.Ctx, "p1", 10)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if p.Tickets != 15 {
		t.Fatalf("tickets %d, want 15", p.Tickets)
	}
	if _, err := env.Engine.BuyTickets(env.Ctx, "p1", 101); err == nil {
		t.Fatalf("expected bulk limit error")
	}
	if _, err := env.Engine.BuyTickets(env.Ctx, "p1", 0); err == nil {
		t.Fatalf("expected positive count error")
	}
}

func TestLeaderboardIncludesRequesterProgress(t *testing.T) {
	env := newTestEnv(t)
	env.player(t, "p1")
	env.player(t, "p2")
	v := env.venture(t, engine.VentureCreateOptions{MaxParticipants: 2})
	for _, id := range []string{"p1", "p2"} {
		if _, err := env.Engine.JoinVenture(env.Ctx, id, v.ID); err != nil {
			t.Fatalf("join %s: %v", id, err)
		}
	}
	env.walkToEnd(t, v.ID, "p1")

	s, _ := env.Engine.Repo.GetSessionByPlayer(env.Ctx, v.ID, "p2")
	env.move(t, s.ID, "right")

	board, err := env.Engine.Leaderboard(env.Ctx, v.ID, "p2")
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(board) != 2 {
		t.Fatalf("board size %d, want 2", len(board))
	}
	if board[0].PlayerID != "p1" || board[0].Position != 1 {
		t.Fatalf("head %+v, want p1 at position 1", board[0])
	}
	if board[1].PlayerID != "p2" || board[1].Status != domain.SessionActive || board[1].MovesMade != 1 {
		t.Fatalf("tail %+v, want p2 in progress with 1 move", board[1])
	}
}
