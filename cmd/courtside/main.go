package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/courtside/courtside-cli/internal/api"
	"github.com/courtside/courtside-cli/internal/config"
	"github.com/courtside/courtside-cli/internal/console"
	"github.com/courtside/courtside-cli/internal/daemon"
	"github.com/courtside/courtside-cli/internal/fx"
	"github.com/courtside/courtside-cli/internal/mcpserver"
	"github.com/courtside/courtside-cli/internal/nba"
	"github.com/courtside/courtside-cli/internal/observe"
	"github.com/courtside/courtside-cli/internal/tools"
	"github.com/courtside/courtside-cli/internal/web"
)

// Set at build time via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// errReported is returned after a failure has already been printed.
var errReported = errors.New("reported")

func main() {
	api.SetVersion(version)

	root := &cobra.Command{
		Use:           "courtside",
		Short:         "Courtside: NBA match predictor and assistant tools",
		Long:          "Courtside looks up NBA schedules, predicts match winners from recent form, and serves the assistant's tools over MCP and HTTP.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")

	root.AddCommand(predictCmd(), teamsCmd(), fxCmd(), serveCmd(), mcpCmd(), statusCmd(), configCmd(), versionCmd(),
		installCmd(), uninstallCmd(), startCmd(), stopCmd(), restartCmd())

	if err := root.Execute(); err != nil {
		if !errors.Is(err, errReported) {
			console.DisplayError(os.Stderr, err.Error())
		}
		os.Exit(1)
	}
}

// app holds the components every command builds from config.
type app struct {
	cfg       *config.Config
	predictor *nba.Predictor
	exchange  *fx.Converter
	registry  *tools.Registry
	logs      io.Closer
}

func setup(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logLevel := cfg.Logging.Level
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		logLevel = "debug"
	}
	logs := console.SetupLogger(logLevel, cfg.Logging.File)

	loc, err := cfg.Location()
	if err != nil {
		logs.Close()
		return nil, fmt.Errorf("predictor.timezone: %w", err)
	}

	b := cfg.Balldontlie
	client := api.New(api.Options{
		APIKey:            b.APIKey,
		BaseURL:           b.BaseURL,
		AuthScheme:        b.AuthScheme,
		Timeout:           b.Timeout.Duration,
		MaxRetries:        b.MaxRetries,
		RetryBackoff:      b.RetryBackoff.Duration,
		RequestsPerMinute: b.RequestsPerMinute,
	})
	predictor := nba.NewPredictor(client, nba.Config{
		Season:        b.Season,
		LastNGames:    cfg.Predictor.LastNGames,
		LookaheadDays: cfg.Predictor.LookaheadDays,
		FinishedOnly:  cfg.Predictor.FinishedOnly,
		Location:      loc,
	})
	exchange := fx.New(fx.Options{
		Sources: cfg.Exchange.Sources,
		Timeout: cfg.Exchange.Timeout.Duration,
	})
	registry := tools.NewRegistry(tools.Defaults(tools.Deps{
		Predictor: predictor,
		Exchange:  exchange,
		Desktop:   cfg.Tools.Desktop,
		Workdir:   cfg.Tools.Workdir,
	})...)

	return &app{cfg: cfg, predictor: predictor, exchange: exchange, registry: registry, logs: logs}, nil
}

// httpRegistry is the tool set served over HTTP. Desktop tools stay on MCP
// stdio only, never on the network.
func (a *app) httpRegistry() *tools.Registry {
	return tools.NewRegistry(tools.Defaults(tools.Deps{
		Predictor: a.predictor,
		Exchange:  a.exchange,
	})...)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ── predict command ──

func predictCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Show today's games, a team's next game, or a match prediction",
		Long: `Without flags, lists today's games.
With --team, finds the team's next game and predicts it (unless --no-prediction).
With --home and --away, predicts that fixed pairing.`,
		Example: `  courtside predict
  courtside predict --team lakers
  courtside predict --home 14 --away 13 --last-n 20
  courtside predict --input input.json`,
		RunE: runPredict,
	}
	cmd.Flags().Int("home", 0, "Home team ID (1-30)")
	cmd.Flags().Int("away", 0, "Away team ID (1-30)")
	cmd.Flags().StringP("team", "t", "", "Team name, city or abbreviation")
	cmd.Flags().IntP("last-n", "n", 0, "Recent games per team (default from config)")
	cmd.Flags().Bool("no-prediction", false, "With --team, show the next game only")
	cmd.Flags().StringP("input", "i", "", "Read the request from a JSON file")
	cmd.Flags().Bool("json", false, "Print the raw JSON result")
	return cmd
}

func runPredict(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.logs.Close()

	if err := a.cfg.RequireAPIKey(); err != nil {
		return err
	}

	var req nba.Request
	if path, _ := cmd.Flags().GetString("input"); path != "" {
		if req, err = readRequest(path); err != nil {
			return err
		}
	} else {
		req = requestFromFlags(cmd)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res := a.predictor.Predict(ctx, req)
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		if err := printJSON(res); err != nil {
			return err
		}
	} else {
		console.DisplayResult(os.Stdout, res)
	}
	if !res.OK() {
		return errReported
	}
	return nil
}

func requestFromFlags(cmd *cobra.Command) nba.Request {
	var req nba.Request
	f := cmd.Flags()
	if f.Changed("home") {
		v, _ := f.GetInt("home")
		req.HomeTeamID = nba.Ptr(v)
	}
	if f.Changed("away") {
		v, _ := f.GetInt("away")
		req.AwayTeamID = nba.Ptr(v)
	}
	if f.Changed("team") {
		v, _ := f.GetString("team")
		req.TeamName = nba.Ptr(v)
	}
	if f.Changed("last-n") {
		v, _ := f.GetInt("last-n")
		req.LastNGames = nba.Ptr(v)
	}
	if noPred, _ := f.GetBool("no-prediction"); noPred {
		req.GetPrediction = nba.Ptr(false)
	}
	return req
}

// readRequest loads a one-shot request such as
// {"home_team_id": 14, "away_team_id": 13, "last_n_games": 10}.
func readRequest(path string) (nba.Request, error) {
	var req nba.Request
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return req, fmt.Errorf("%s not found", path)
		}
		return req, fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return req, fmt.Errorf("failed to parse %s, make sure it is valid JSON: %w", path, err)
	}
	return req, nil
}

// ── teams command ──

func teamsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "teams",
		Short: "List team IDs, names and accepted aliases",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return printJSON(nba.Teams())
			}
			console.DisplayTeams(os.Stdout, nba.Teams())
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "Print as JSON")
	return cmd
}

// ── fx command ──

func fxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fx",
		Short: "Convert between USD and DOP at the live rate",
		Example: `  courtside fx --amount 100
  courtside fx --amount 5000 --direction dop_to_usd`,
		RunE: runFX,
	}
	cmd.Flags().StringP("amount", "a", "1", "Amount to convert")
	cmd.Flags().StringP("direction", "d", string(fx.USDToDOP), "usd_to_dop or dop_to_usd")
	cmd.Flags().Bool("json", false, "Print the raw JSON result")
	return cmd
}

func runFX(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.logs.Close()

	rawAmount, _ := cmd.Flags().GetString("amount")
	amount, err := fx.ParseAmount(rawAmount)
	if err != nil {
		return errors.New(fx.Message(err))
	}
	rawDir, _ := cmd.Flags().GetString("direction")
	dir, err := fx.ParseDirection(rawDir)
	if err != nil {
		return errors.New(fx.Message(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conv, err := a.exchange.Convert(ctx, amount, dir)
	if err != nil {
		return errors.New(fx.Message(err))
	}
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return printJSON(conv)
	}
	console.DisplayConversion(os.Stdout, amount, conv)
	return nil
}

// ── serve command ──

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP JSON server",
		RunE:  runServe,
	}
	cmd.Flags().String("addr", "", "Listen address (default from config, auto-increments the port if busy)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.logs.Close()

	if err := a.cfg.RequireAPIKey(); err != nil {
		fmt.Printf("Warning: %s (predictions will fail)\n", err)
	}

	release, err := daemon.AcquireLock()
	if err != nil {
		return err
	}
	defer release()

	metricsHandler, shutdownMetrics, err := observe.InitProvider(context.Background(), version)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	defer func() { _ = shutdownMetrics(context.Background()) }()

	addr := a.cfg.Server.Addr
	pinned := cmd.Flags().Changed("addr")
	if pinned {
		addr, _ = cmd.Flags().GetString("addr")
	}

	httpTools := a.httpRegistry()
	srv := web.New(web.Options{
		Addr:      addr,
		Predictor: a.predictor,
		Exchange:  a.exchange,
		Registry:  httpTools,
		Metrics:   metricsHandler,
	})
	actual, err := srv.Start(pinned)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Courtside %s\n", version)
	fmt.Printf("Listening: http://%s\n", actual)
	fmt.Printf("Tools:     %d\n", len(httpTools.Tools()))

	<-ctx.Done()
	fmt.Println("\nShutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// ── mcp command ──

func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the assistant tools over MCP on stdin/stdout",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.logs.Close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return mcpserver.Run(ctx, a.registry, version)
		},
	}
}

// ── status command ──

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show service and configuration status",
		RunE:  runStatus,
	}
}

func runStatus(_ *cobra.Command, _ []string) error {
	if mgr, err := daemon.New(); err == nil {
		st, _ := mgr.Status()
		if st != nil {
			switch {
			case st.Running:
				fmt.Printf("Service:      running (PID %d)\n", st.PID)
			case !st.Installed:
				fmt.Println("Service:      not installed")
			default:
				fmt.Println("Service:      stopped")
			}
			fmt.Printf("Log file:     %s\n", st.LogPath)
			fmt.Println()
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	season := cfg.Balldontlie.Season
	seasonNote := ""
	if season == 0 {
		season = nba.CurrentSeason(time.Now())
		seasonNote = " (auto)"
	}
	key := "set"
	if cfg.RequireAPIKey() != nil {
		key = "missing"
	}

	fmt.Printf("Config:       %s\n", config.Path())
	fmt.Printf("API:          %s (key %s)\n", cfg.Balldontlie.BaseURL, key)
	fmt.Printf("Season:       %d%s\n", season, seasonNote)
	fmt.Printf("Last N games: %d\n", cfg.Predictor.LastNGames)
	fmt.Printf("Desktop:      %v\n", cfg.Tools.Desktop)
	return nil
}

// ── config command ──

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE:  runConfigInit,
	}
	initCmd.Flags().Bool("force", false, "Overwrite an existing config")
	cmd.AddCommand(
		initCmd,
		&cobra.Command{
			Use:   "show",
			Short: "Show current config (API key redacted)",
			RunE:  runConfigShow,
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print config file path",
			Run: func(_ *cobra.Command, _ []string) {
				fmt.Println(config.Path())
			},
		},
	)
	return cmd
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	force, _ := cmd.Flags().GetBool("force")
	if _, err := os.Stat(config.Path()); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", config.Path())
	}
	if err := config.DefaultConfig().Save(); err != nil {
		return err
	}
	fmt.Printf("Config written to %s\n", config.Path())
	fmt.Printf("Set your balldontlie key in the file or export %s.\n", config.EnvAPIKey)
	return nil
}

func runConfigShow(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	return toml.NewEncoder(os.Stdout).Encode(cfg.Redact())
}

// ── version command ──

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("courtside %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}
