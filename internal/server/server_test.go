package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"

	"nextventure/internal/config"
	"nextventure/internal/db"
	"nextventure/internal/domain"
	"nextventure/internal/engine"
	"nextventure/internal/migrate"
)

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default())
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v0",
		Auth:     AuthConfig{JWTSecret: "test-secret", AllowPlayerHeader: true},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func asPlayer(id string) map[string]string {
	return map[string]string{"X-Player-Id": id}
}

func TestJoinAndWinOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/players", map[string]any{"id": "alice"}, asPlayer("alice"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create player status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/ventures", map[string]any{
		"name":               "Quantum Garage",
		"ceo_equity":         40,
		"participant_equity": 60,
		"complexity":         1,
		"required_patterns":  0,
		"max_participants":   1,
	}, asPlayer("alice"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create venture status %d: %s", res.StatusCode, string(data))
	}
	var created struct {
		domain.Venture
	}
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal venture: %v", err)
	}
	ventureID := created.ID

	// Joining the single slot auto-starts the venture.
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/ventures/"+ventureID+"/join", map[string]any{}, asPlayer("alice"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("join status %d: %s", res.StatusCode, string(data))
	}
	var joined JoinVentureResponse
	if err := json.Unmarshal(data, &joined); err != nil {
		t.Fatalf("unmarshal join: %v", err)
	}
	if joined.Venture.Status != domain.VentureRunning {
		t.Fatalf("venture status %s, want running", joined.Venture.Status)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/ventures/"+ventureID+"/maze", nil, asPlayer("alice"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get maze status %d: %s", res.StatusCode, string(data))
	}
	var mazeRes MazeResponse
	if err := json.Unmarshal(data, &mazeRes); err != nil {
		t.Fatalf("unmarshal maze: %v", err)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/ventures/"+ventureID+"/session", nil, asPlayer("alice"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get session status %d: %s", res.StatusCode, string(data))
	}
	var session domain.MazeSession
	if err := json.Unmarshal(data, &session); err != nil {
		t.Fatalf("unmarshal session: %v", err)
	}

	var move engine.MoveResult
	for x := 0; x < mazeRes.Configuration.End.X; x++ {
		res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/sessions/"+session.ID+"/moves", map[string]any{"direction": "right"}, asPlayer("alice"))
		if res.StatusCode != http.StatusOK {
			t.Fatalf("move status %d: %s", res.StatusCode, string(data))
		}
	}
	for y := 0; y < mazeRes.Configuration.End.Y; y++ {
		res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/sessions/"+session.ID+"/moves", map[string]any{"direction": "down"}, asPlayer("alice"))
		if res.StatusCode != http.StatusOK {
			t.Fatalf("move status %d: %s", res.StatusCode, string(data))
		}
	}
	if err := json.Unmarshal(data, &move); err != nil {
		t.Fatalf("unmarshal move: %v", err)
	}
	if !move.Completed {
		t.Fatalf("expected final move to complete the maze: %+v", move)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/me", nil, asPlayer("alice"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me status %d: %s", res.StatusCode, string(data))
	}
	var me domain.Player
	if err := json.Unmarshal(data, &me); err != nil {
		t.Fatalf("unmarshal me: %v", err)
	}
	if me.TotalEquity != 100 {
		t.Fatalf("solo winner equity %f, want 100", me.TotalEquity)
	}
	if me.VenturesWon != 1 {
		t.Fatalf("ventures won %d, want 1", me.VenturesWon)
	}
}

func TestJoinConflictsMapToHTTPCodes(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	doJSON(t, client, http.MethodPost, srv.URL+"/v0/players", map[string]any{"id": "bob"}, asPlayer("bob"))
	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/ventures", map[string]any{
		"name":               "Pricey",
		"ceo_equity":         40,
		"participant_equity": 60,
		"complexity":         1,
		"required_patterns":  0,
		"ticket_cost":        99,
	}, asPlayer("bob"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create venture: %d %s", res.StatusCode, string(data))
	}
	var v domain.Venture
	_ = json.Unmarshal(data, &v)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/ventures/"+v.ID+"/join", map[string]any{}, asPlayer("bob"))
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected conflict for insufficient tickets, got %d %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal error envelope: %v", err)
	}
	if envelope.Error.Code != "insufficient_tickets" {
		t.Fatalf("error code %q, want insufficient_tickets", envelope.Error.Code)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/ventures/nope", nil, asPlayer("bob"))
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown venture, got %d %s", res.StatusCode, string(data))
	}
}

func TestAuthRequired(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, _ := doJSON(t, client, http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health should not need auth, got %d", res.StatusCode)
	}

	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/ventures", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", res.StatusCode)
	}

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/auth/dev/login", map[string]any{"player_id": "carol"}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("dev login: %d %s", res.StatusCode, string(data))
	}
	var login DevLoginResponse
	if err := json.Unmarshal(data, &login); err != nil {
		t.Fatalf("unmarshal token: %v", err)
	}
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/ventures", nil, map[string]string{
		"Authorization": "Bearer " + login.Token,
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with bearer token, got %d", res.StatusCode)
	}
}
