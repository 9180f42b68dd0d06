package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"nextventure/internal/config"
	"nextventure/internal/db"
	"nextventure/internal/engine"
	"nextventure/internal/migrate"
	"nextventure/internal/repo"
	"nextventure/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "nv",
	Short: "NextVenture CLI",
	Long: `NextVenture runs time-boxed venture competitions over procedural mazes.
Core concepts:
- Players spend tickets to join a venture and earn XP for every join.
- When a venture launches, a seeded maze is generated and each participant
  gets a maze session starting at the entrance.
- Moving through the maze can discover patterns; reaching the end cell with
  enough patterns completes the maze.
- The first player to complete the maze becomes CEO and takes the CEO equity
  stake on top of the evenly split participant equity.
- Expired ventures settle evenly with no CEO.
- Event log: diary of changes, view with 'nv log tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("NEXTVENTURE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("player-id", "local-player", "player identifier")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("player-id", rootCmd.PersistentFlags().Lookup("player-id"))
}

func registerCommands() {
	rootCmd.AddCommand(ventureCmd())
	rootCmd.AddCommand(playerCmd())
	rootCmd.AddCommand(moveCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func ventureCmd() *cobra.Command {
	v := &cobra.Command{
		Use:   "venture",
		Short: "Manage ventures",
		Long:  "Ventures are time-boxed competitions: players join with tickets, race through a shared maze, and split equity when the venture completes.",
	}
	v.AddCommand(ventureCreateCmd())
	v.AddCommand(ventureListCmd())
	v.AddCommand(ventureShowCmd())
	v.AddCommand(ventureStartCmd())
	v.AddCommand(ventureJoinCmd())
	v.AddCommand(ventureMazeCmd())
	v.AddCommand(ventureLeaderboardCmd())
	return v
}

func ventureCreateCmd() *cobra.Command {
	var opts engine.VentureCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a venture",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("player-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				v, err := e.CreateVenture(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(v)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "venture id (optional, random UUID if omitted)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "venture name")
	cmd.Flags().StringVar(&opts.VentureType, "type", "startup", "venture type")
	cmd.Flags().StringVar(&opts.Icon, "icon", "", "icon")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().Float64Var(&opts.CEOEquity, "ceo-equity", 40, "CEO equity share")
	cmd.Flags().Float64Var(&opts.ParticipantEquity, "participant-equity", 60, "participant equity pool")
	cmd.Flags().IntVar(&opts.TicketCost, "ticket-cost", 0, "tickets needed to join (config default if omitted)")
	cmd.Flags().IntVar(&opts.MinLevel, "min-level", 0, "minimum player level")
	cmd.Flags().IntVar(&opts.MaxParticipants, "max-participants", 0, "participant cap (config default if omitted)")
	cmd.Flags().IntVar(&opts.Complexity, "complexity", 1, "maze complexity (1-10)")
	cmd.Flags().IntVar(&opts.TimeLimitSeconds, "time-limit", 0, "maze time limit in seconds (config default if omitted)")
	cmd.Flags().IntVar(&opts.RequiredPatterns, "required-patterns", 3, "patterns needed to complete the maze")
	cmd.Flags().BoolVar(&opts.Upcoming, "upcoming", false, "create as upcoming instead of active")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func ventureListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List ventures",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListVentures(ctx, status)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Status", "Players", "Cost", "Complexity"})
				for _, v := range items {
					tw.AppendRow(table.Row{
						v.ID, v.Name, v.Status,
						fmt.Sprintf("%d/%d", v.CurrentParticipants, v.MaxParticipants),
						v.TicketCost, v.Complexity,
					})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	return cmd
}

func ventureShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a venture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				v, err := r.GetVenture(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(v)
			})
		},
	}
	return cmd
}

func ventureStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start <id>",
		Short: "Launch a venture and open its maze sessions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				started, err := e.StartVenture(ctx, id)
				if err != nil {
					return err
				}
				if !started {
					return fmt.Errorf("venture %s cannot start (not active or no participants)", id)
				}
				v, err := e.Repo.GetVenture(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(v)
			})
		},
	}
	return cmd
}

func ventureJoinCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "join <id>",
		Short: "Join a venture by spending tickets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				part, err := e.JoinVenture(ctx, viper.GetString("player-id"), id)
				if err != nil {
					return err
				}
				return printJSONOrTable(part)
			})
		},
	}
	return cmd
}

func ventureMazeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "maze <id>",
		Short: "Show the generated maze configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				cfg, err := e.GetMaze(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(cfg)
			})
		},
	}
	return cmd
}

func ventureLeaderboardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leaderboard <id>",
		Short: "Show maze completion standings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				entries, err := e.Leaderboard(ctx, id, viper.GetString("player-id"))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(entries)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"#", "Player", "Status", "Moves", "Patterns", "Time", "CEO"})
				for _, entry := range entries {
					ceo := ""
					if entry.IsCEO {
						ceo = "yes"
					}
					tw.AppendRow(table.Row{
						entry.Position, entry.PlayerID, entry.Status,
						entry.MovesMade, entry.PatternsFound, entry.TimeElapsed, ceo,
					})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func playerCmd() *cobra.Command {
	p := &cobra.Command{
		Use:   "player",
		Short: "Manage players",
	}
	p.AddCommand(playerCreateCmd())
	p.AddCommand(playerListCmd())
	p.AddCommand(playerShowCmd())
	p.AddCommand(playerBuyTicketsCmd())
	return p
}

func playerCreateCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a player",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				id = viper.GetString("player-id")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.CreatePlayer(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "player id (defaults to --player-id)")
	return cmd
}

func playerListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List players",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListPlayers(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Level", "XP", "Tickets", "Equity", "Joined", "Won"})
				for _, p := range items {
					tw.AppendRow(table.Row{
						p.ID, p.Level, p.XP, p.Tickets,
						fmt.Sprintf("%.2f", p.TotalEquity),
						p.VenturesJoined, p.VenturesWon,
					})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func playerShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show [id]",
		Short: "Show a player",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := viper.GetString("player-id")
			if len(args) == 1 {
				id = args[0]
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				p, err := r.GetPlayer(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	return cmd
}

func playerBuyTicketsCmd() *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "buy-tickets",
		Short: "Buy tickets for the current player",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.BuyTickets(ctx, viper.GetString("player-id"), count)
				if err != nil {
					return err
				}
				if !viper.GetBool("json") {
					fmt.Printf("Price paid: %.2f stars\n", engine.TicketPrice(count))
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().IntVar(&count, "count", 1, "number of tickets (1-100)")
	return cmd
}

func moveCmd() *cobra.Command {
	var direction string
	cmd := &cobra.Command{
		Use:   "move <venture_id>",
		Short: "Make a maze move in the current player's session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ventureID := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.Repo.GetSessionByPlayer(ctx, ventureID, viper.GetString("player-id"))
				if err != nil {
					return err
				}
				res, err := e.MakeMove(ctx, s.ID, direction)
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	}
	cmd.Flags().StringVar(&direction, "direction", "", "up, down, left or right")
	_ = cmd.MarkFlagRequired("direction")
	return cmd
}

func sweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Start due ventures and settle expired ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.Sweep(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	}
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect workspace config",
		Long:  "Config is the rulebook: economy values (starting tickets, join XP), venture defaults, and webhook sinks. Stored in .nextventure/nextventure.yml.",
	}
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show loaded config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSONOrTable(cfg)
		},
	}
	return cmd
}

func configInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file to the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("config already exists at %s", path)
			}
			data, err := config.Default().ToYAML()
			if err != nil {
				return err
			}
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote default config to %s\n", path)
			return nil
		},
	}
	return cmd
}

func configValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate workspace config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err == nil {
				err = cfg.Validate()
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "The diary of everything that happened: ventures created, players joined, mazes launched, CEOs selected, settlements.",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var updateType, ventureID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				events, err := r.LatestEvents(ctx, n, updateType, ventureID)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&updateType, "type", "", "update type filter")
	cmd.Flags().StringVar(&ventureID, "venture", "", "venture id filter")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var allowPlayerHeader bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfg, err := config.Load(workspace)
			if err != nil {
				return err
			}
			e := engine.New(conn, cfg)
			authCfg := server.AuthConfig{
				JWTSecret:         os.Getenv("NEXTVENTURE_JWT_SECRET"),
				AllowPlayerHeader: allowPlayerHeader,
			}
			if authCfg.JWTSecret == "" && !allowPlayerHeader {
				return fmt.Errorf("NEXTVENTURE_JWT_SECRET is required for bearer auth (or pass --allow-player-header for local development)")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving NextVenture API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	cmd.Flags().BoolVar(&allowPlayerHeader, "allow-player-header", false, "accept X-Player-Id without auth (dev only)")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	cfg, err := config.Load(workspace)
	if err != nil {
		return err
	}
	e := engine.New(conn, cfg)
	return fn(ctx, e)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
