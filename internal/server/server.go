package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"nextventure/internal/domain"
	"nextventure/internal/engine"
	"nextventure/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"venture_full"`
	Message string         `json:"message" example:"venture has no available slots"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true" example:"{\"venture_id\":\"vnt_1\"}"`
}

type requestKey struct{}
type bodyBytesKey struct{}

// apiError models the required error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the NextVenture API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the required envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors should be 400 bad_request
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			ctx := context.WithValue(r.Context(), requestKey{}, r)
			ctx = context.WithValue(ctx, bodyBytesKey{}, bodyBytes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("NextVenture API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerVentures(group, cfg.Engine)
	registerPlayers(group, cfg.Engine)
	registerSessions(group, cfg.Engine)
	registerSweep(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerDevAuth(group, cfg.Engine, cfg.Auth)
	registerOpenAPI(router, api, basePath)

	startWebhookDispatcher(cfg.Engine)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, repo.ErrNotFound), errors.Is(err, domain.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, domain.ErrInsufficientTickets):
		return newAPIError(http.StatusConflict, "insufficient_tickets", err.Error(), nil)
	case errors.Is(err, domain.ErrLevelTooLow):
		return newAPIError(http.StatusConflict, "level_too_low", err.Error(), nil)
	case errors.Is(err, domain.ErrVentureFull):
		return newAPIError(http.StatusConflict, "venture_full", err.Error(), nil)
	case errors.Is(err, domain.ErrAlreadyJoined):
		return newAPIError(http.StatusConflict, "already_joined", err.Error(), nil)
	case errors.Is(err, domain.ErrVentureNotJoinable):
		return newAPIError(http.StatusConflict, "venture_not_joinable", err.Error(), nil)
	case errors.Is(err, domain.ErrSessionNotActive):
		return newAPIError(http.StatusConflict, "session_not_active", err.Error(), nil)
	case errors.Is(err, domain.ErrMazeNotAvailable):
		return newAPIError(http.StatusConflict, "maze_not_available", err.Error(), nil)
	case errors.Is(err, domain.ErrInvalidDirection),
		errors.Is(err, domain.ErrEquitySplit),
		errors.Is(err, domain.ErrInvalidComplexity):
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	if strings.Contains(lowered, "invalid") || strings.Contains(lowered, "missing") || strings.Contains(lowered, "required") {
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	security := []map[string][]string{
		{"bearerAuth": {}},
	}
	oas.Security = security
	healthPath := path.Join(basePath, "health")
	devLoginPath := path.Join(basePath, "auth/dev/login")
	if !strings.HasPrefix(healthPath, "/") {
		healthPath = "/" + healthPath
	}
	if !strings.HasPrefix(devLoginPath, "/") {
		devLoginPath = "/" + devLoginPath
	}
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if route == healthPath || route == devLoginPath {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>NextVenture API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt;.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerVentures(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-venture",
		Method:        http.MethodPost,
		Path:          "/ventures",
		Summary:       "Create venture",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateVentureRequest `json:"body"`
	}) (*struct {
		Body VentureResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if input.Body.Name == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "name is required", nil)
		}
		playerID, authErr := playerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		v, err := e.CreateVenture(ctx, engine.VentureCreateOptions{
			ID:                input.Body.ID,
			Name:              input.Body.Name,
			VentureType:       input.Body.VentureType,
			Icon:              input.Body.Icon,
			Description:       input.Body.Description,
			CEOEquity:         input.Body.CEOEquity,
			ParticipantEquity: input.Body.ParticipantEquity,
			TicketCost:        input.Body.TicketCost,
			MinLevel:          input.Body.MinLevel,
			MaxParticipants:   input.Body.MaxParticipants,
			Complexity:        input.Body.Complexity,
			TimeLimitSeconds:  input.Body.TimeLimitSeconds,
			RequiredPatterns:  input.Body.RequiredPatterns,
			Upcoming:          input.Body.Upcoming,
			ActorID:           playerID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body VentureResponse `json:"body"`
		}{Body: ventureResponse(v)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-ventures",
		Method:      http.MethodGet,
		Path:        "/ventures",
		Summary:     "List ventures",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Status string `query:"status" enum:"upcoming,active,running,completed,cancelled,"`
	}) (*struct {
		Body []VentureResponse `json:"body"`
	}, error) {
		items, err := e.Repo.ListVentures(ctx, input.Status)
		if err != nil {
			return nil, handleError(err)
		}
		out := make([]VentureResponse, 0, len(items))
		for _, v := range items {
			out = append(out, ventureResponse(v))
		}
		return &struct {
			Body []VentureResponse `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-venture",
		Method:      http.MethodGet,
		Path:        "/ventures/{venture_id}",
		Summary:     "Get venture",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		VentureID string `path:"venture_id"`
	}) (*struct {
		Body VentureResponse `json:"body"`
	}, error) {
		v, err := e.Repo.GetVenture(ctx, input.VentureID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body VentureResponse `json:"body"`
		}{Body: ventureResponse(v)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "start-venture",
		Method:      http.MethodPost,
		Path:        "/ventures/{venture_id}/start",
		Summary:     "Launch a venture and open its maze sessions",
		Errors: []int{
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		VentureID string `path:"venture_id"`
	}) (*struct {
		Body VentureResponse `json:"body"`
	}, error) {
		if _, authErr := playerIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		started, err := e.StartVenture(ctx, input.VentureID)
		if err != nil {
			return nil, handleError(err)
		}
		if !started {
			return nil, newAPIError(http.StatusConflict, "venture_not_startable", "venture cannot start", nil)
		}
		v, err := e.Repo.GetVenture(ctx, input.VentureID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body VentureResponse `json:"body"`
		}{Body: ventureResponse(v)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "join-venture",
		Method:        http.MethodPost,
		Path:          "/ventures/{venture_id}/join",
		Summary:       "Join a venture by spending tickets",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		VentureID string `path:"venture_id"`
	}) (*struct {
		Body JoinVentureResponse `json:"body"`
	}, error) {
		playerID, authErr := playerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		part, err := e.JoinVenture(ctx, playerID, input.VentureID)
		if err != nil {
			return nil, handleError(err)
		}
		v, err := e.Repo.GetVenture(ctx, input.VentureID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body JoinVentureResponse `json:"body"`
		}{Body: JoinVentureResponse{Participation: part, Venture: ventureResponse(v)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-maze",
		Method:      http.MethodGet,
		Path:        "/ventures/{venture_id}/maze",
		Summary:     "Get the generated maze configuration",
		Errors: []int{
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		VentureID string `path:"venture_id"`
	}) (*struct {
		Body MazeResponse `json:"body"`
	}, error) {
		cfg, err := e.GetMaze(ctx, input.VentureID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body MazeResponse `json:"body"`
		}{Body: MazeResponse{Configuration: cfg}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "venture-leaderboard",
		Method:      http.MethodGet,
		Path:        "/ventures/{venture_id}/leaderboard",
		Summary:     "Leaderboard of maze completions",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		VentureID string `path:"venture_id"`
	}) (*struct {
		Body LeaderboardResponse `json:"body"`
	}, error) {
		playerID, authErr := playerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		entries, err := e.Leaderboard(ctx, input.VentureID, playerID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body LeaderboardResponse `json:"body"`
		}{Body: LeaderboardResponse{VentureID: input.VentureID, Entries: entries}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-my-session",
		Method:      http.MethodGet,
		Path:        "/ventures/{venture_id}/session",
		Summary:     "Get the caller's maze session in a venture",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		VentureID string `path:"venture_id"`
	}) (*struct {
		Body domain.MazeSession `json:"body"`
	}, error) {
		playerID, authErr := playerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		s, err := e.Repo.GetSessionByPlayer(ctx, input.VentureID, playerID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.MazeSession `json:"body"`
		}{Body: s}, nil
	})
}

func registerPlayers(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-player",
		Method:        http.MethodPost,
		Path:          "/players",
		Summary:       "Create player",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusConflict,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CreatePlayerRequest `json:"body"`
	}) (*struct {
		Body domain.Player `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if input.Body.ID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "id is required", nil)
		}
		p, err := e.CreatePlayer(ctx, input.Body.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Player `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-players",
		Method:      http.MethodGet,
		Path:        "/players",
		Summary:     "List players",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Player `json:"body"`
	}, error) {
		items, err := e.Repo.ListPlayers(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Player `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-player",
		Method:      http.MethodGet,
		Path:        "/players/{player_id}",
		Summary:     "Get player",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		PlayerID string `path:"player_id"`
	}) (*struct {
		Body domain.Player `json:"body"`
	}, error) {
		p, err := e.Repo.GetPlayer(ctx, input.PlayerID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Player `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current player profile",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body domain.Player `json:"body"`
	}, error) {
		playerID, authErr := playerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.Repo.GetPlayer(ctx, playerID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Player `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "buy-tickets",
		Method:      http.MethodPost,
		Path:        "/me/tickets",
		Summary:     "Buy tickets for the current player",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		Body BuyTicketsRequest `json:"body"`
	}) (*struct {
		Body domain.Player `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		playerID, authErr := playerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.BuyTickets(ctx, playerID, input.Body.Count)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Player `json:"body"`
		}{Body: p}, nil
	})
}

func registerSessions(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "make-move",
		Method:      http.MethodPost,
		Path:        "/sessions/{session_id}/moves",
		Summary:     "Make a maze move",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		SessionID string      `path:"session_id"`
		Body      MoveRequest `json:"body"`
	}) (*struct {
		Body engine.MoveResult `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		playerID, authErr := playerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		s, err := e.Repo.GetSession(ctx, input.SessionID)
		if err != nil {
			return nil, handleError(err)
		}
		if s.PlayerID != playerID {
			return nil, newAPIError(http.StatusForbidden, "forbidden", "session belongs to another player", nil)
		}
		res, err := e.MakeMove(ctx, input.SessionID, input.Body.Direction)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.MoveResult `json:"body"`
		}{Body: res}, nil
	})
}

func registerSweep(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "sweep",
		Method:      http.MethodPost,
		Path:        "/sweep",
		Summary:     "Start due ventures and settle expired ones",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body engine.SweepResult `json:"body"`
	}, error) {
		if _, authErr := playerIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		res, err := e.Sweep(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.SweepResult `json:"body"`
		}{Body: res}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent events",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		N          int    `query:"n" minimum:"1" maximum:"500"`
		UpdateType string `query:"update_type"`
		VentureID  string `query:"venture_id"`
	}) (*struct {
		Body []domain.Event `json:"body"`
	}, error) {
		limit := input.N
		if limit <= 0 {
			limit = 50
		}
		items, err := e.Repo.LatestEvents(ctx, limit, input.UpdateType, input.VentureID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Event `json:"body"`
		}{Body: items}, nil
	})
}

func registerDevAuth(api huma.API, e engine.Engine, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "dev-login",
		Method:      http.MethodPost,
		Path:        "/auth/dev/login",
		Summary:     "DEV ONLY: mint a JWT for local testing",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body DevLoginRequest `json:"body"`
	}) (*struct {
		Body DevLoginResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		playerID := strings.TrimSpace(input.Body.PlayerID)
		if playerID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "player_id is required", nil)
		}
		token, err := signPlayerToken(authCfg.JWTSecret, playerID, 0)
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
		}
		return &struct {
			Body DevLoginResponse `json:"body"`
		}{Body: DevLoginResponse{Token: token}}, nil
	})
}

func bodyBytes(ctx context.Context) []byte {
	if buf, ok := ctx.Value(bodyBytesKey{}).([]byte); ok {
		return buf
	}
	req, ok := ctx.Value(requestKey{}).(*http.Request)
	if !ok || req == nil {
		return nil
	}
	data, _ := io.ReadAll(req.Body)
	return data
}
