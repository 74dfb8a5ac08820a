package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"reactango/internal/app"
	"reactango/internal/config"
	"reactango/internal/db"
	"reactango/internal/logging"
	"reactango/internal/repo"
	"reactango/internal/server"
	"reactango/internal/ui"
	reactangosdk "reactango/sdk/go"
	"reactango/sdk/go/users"
)

var rootCmd = &cobra.Command{
	Use:   "rt",
	Short: "Reactango CLI",
	Long: `Reactango serves a small User REST API and ships the client data layer that talks to it.
- serve: run the API over the workspace SQLite database.
- users: list, show, create, update and delete users through the API.
- browse: interactive terminal UI over the same client hooks.
- log tail: read the audit events recorded for each mutation.`,
	SilenceUsage: true,
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
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func initConfig() {
	// A workspace .env fills in REACTANGO_* variables that are not already set.
	if err := godotenv.Load(filepath.Join(viper.GetString("workspace"), ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "warning: load .env:", err)
	}
	viper.SetEnvPrefix("REACTANGO")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides config client.base_url)")
	rootCmd.PersistentFlags().Duration("timeout", 0, "client request timeout (overrides config client.timeout)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "log format: text or json")
	for _, name := range []string{"workspace", "json", "api-url", "timeout", "log-level", "log-format"} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(usersCmd())
	rootCmd.AddCommand(browseCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(configCmd())
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}
			if basePath == "" {
				basePath = cfg.Server.BasePath
			}
			logger := newLogger(cfg)
			return app.With(cmd.Context(), viper.GetString("workspace"), logger, func(ctx context.Context, env *app.Env) error {
				handler, err := server.New(server.Config{
					Engine:   env.Engine,
					BasePath: basePath,
					Logger:   logger,
					RateLimit: server.RateLimitConfig{
						RequestsPerSecond: cfg.Server.RateLimit.RequestsPerSecond,
						Burst:             cfg.Server.RateLimit.Burst,
					},
				})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				logger.Info("serving reactango api", "addr", addr, "base_path", basePath, "db", db.Path(env.Workspace))
				fmt.Printf("Serving Reactango API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config server.addr)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (overrides config server.base_path)")
	return cmd
}

func usersCmd() *cobra.Command {
	u := &cobra.Command{Use: "users", Short: "Manage users through the API"}
	u.AddCommand(usersListCmd())
	u.AddCommand(usersShowCmd())
	u.AddCommand(usersCreateCmd())
	u.AddCommand(usersUpdateCmd())
	u.AddCommand(usersDeleteCmd())
	return u
}

func usersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withList(cmd.Context(), func(ctx context.Context, l *users.List) error {
				if err := l.Err(); err != nil {
					return err
				}
				return printUsers(l.Users())
			})
		},
	}
}

func usersShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withDetails(cmd.Context(), id, func(ctx context.Context, d *users.Details) error {
				if err := d.Err(); err != nil {
					return err
				}
				return printUser(*d.User())
			})
		},
	}
}

func usersCreateCmd() *cobra.Command {
	var name, email, food string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user (prompts when --name and --email are omitted)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("name") && !cmd.Flags().Changed("email") {
				if err := promptNewUser(&name, &email, &food); err != nil {
					return err
				}
			}
			in := reactangosdk.CreateUserInput{Name: name, Email: email}
			if cmd.Flags().Changed("favorite-food") || food != "" {
				in.FavoriteFood = &food
			}
			return withList(cmd.Context(), func(ctx context.Context, l *users.List) error {
				created, err := l.CreateUser(ctx, in)
				if err != nil {
					return err
				}
				return printUser(created)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "unique email address")
	cmd.Flags().StringVar(&food, "favorite-food", "", "favorite food")
	cmd.MarkFlagsRequiredTogether("name", "email")
	return cmd
}

// promptNewUser asks for the create fields interactively.
func promptNewUser(name, email, food *string) error {
	required := func(field string) func(string) error {
		return func(s string) error {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("%s is required", field)
			}
			return nil
		}
	}
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Name").
				Placeholder("Jane Doe").
				CharLimit(100).
				Value(name).
				Validate(required("name")),
			huh.NewInput().
				Title("Email").
				Placeholder("jane@example.com").
				Value(email).
				Validate(required("email")),
			huh.NewInput().
				Title("Favorite food").
				Placeholder("optional").
				CharLimit(100).
				Value(food),
		),
	)
	return form.Run()
}

func usersUpdateCmd() *cobra.Command {
	var name, email, food string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a user; only the flags given are sent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var in reactangosdk.UpdateUserInput
			if cmd.Flags().Changed("name") {
				in.Name = &name
			}
			if cmd.Flags().Changed("email") {
				in.Email = &email
			}
			if cmd.Flags().Changed("favorite-food") {
				in.FavoriteFood = &food
			}
			if in == (reactangosdk.UpdateUserInput{}) {
				return fmt.Errorf("nothing to update; pass --name, --email or --favorite-food")
			}
			return withDetails(cmd.Context(), id, func(ctx context.Context, d *users.Details) error {
				if _, err := d.UpdateUser(ctx, in); err != nil {
					return err
				}
				if err := d.Err(); err != nil {
					return err
				}
				return printUser(*d.User())
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "unique email address")
	cmd.Flags().StringVar(&food, "favorite-food", "", "favorite food; empty clears it")
	return cmd
}

func usersDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withList(cmd.Context(), func(ctx context.Context, l *users.List) error {
				if err := l.DeleteUser(ctx, id); err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"deleted": id})
				}
				fmt.Printf("deleted user %d\n", id)
				return nil
			})
		},
	}
}

func browseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Browse and edit users in a terminal UI",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig()
			if err != nil {
				return err
			}
			// The alt screen owns stdout; keep logs off it.
			logger := logging.Nop()
			return ui.Run(ui.Options{
				Context: cmd.Context(),
				Client:  newClient(cfg, logger),
				Logger:  logger,
			})
		},
	}
}

func logCmd() *cobra.Command {
	l := &cobra.Command{Use: "log", Short: "Inspect the audit event log"}
	l.AddCommand(logTailCmd())
	return l
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, entityID string
	var remote bool
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if remote {
				cfg, err := resolveConfig()
				if err != nil {
					return err
				}
				evts, err := newClient(cfg, newLogger(cfg)).Events(cmd.Context(), n, evtType)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(evts)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Time", "Type", "Entity", "Request"})
				for _, e := range evts {
					tw.AppendRow(table.Row{e.ID, e.TS, e.Type, e.EntityID, e.RequestID})
				}
				tw.Render()
				return nil
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				evts, err := r.LatestEvents(ctx, repo.EventFilters{Type: evtType, EntityID: entityID, Limit: n})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(evts)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Time", "Type", "Entity", "Request"})
				for _, e := range evts {
					tw.AppendRow(table.Row{e.ID, e.TS, e.Type, e.EntityID, e.RequestID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id filter (local only)")
	cmd.Flags().BoolVar(&remote, "remote", false, "read events through the API instead of the workspace database")
	return cmd
}

func configCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "config",
		Short: "Manage reactango.yml",
		Long:  "reactango.yml lives in the workspace root and configures the server, the client base URL and logging. Flags and REACTANGO_* environment variables override it.",
	}
	c.AddCommand(configInitCmd())
	c.AddCommand(configShowCmd())
	c.AddCommand(configValidateCmd())
	return c
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default reactango.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; pass --force to overwrite", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig()
			if err != nil {
				return err
			}
			return printJSON(cfg)
		},
	}
}

func configValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate reactango.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := config.Load(viper.GetString("workspace"))
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
}

// --- helpers ---

// resolveConfig loads the workspace config and applies flag and environment
// overrides on top of it.
func resolveConfig() (*config.Config, error) {
	cfg, err := config.LoadOptional(viper.GetString("workspace"))
	if err != nil {
		return nil, err
	}
	applyOverrides(cfg, viper.GetViper())
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyOverrides(cfg *config.Config, v *viper.Viper) {
	if s := v.GetString("api-url"); s != "" {
		cfg.Client.BaseURL = s
	}
	if d := v.GetDuration("timeout"); d > 0 {
		cfg.Client.Timeout = d
	}
	if s := v.GetString("log-level"); s != "" {
		cfg.Log.Level = s
	}
	if s := v.GetString("log-format"); s != "" {
		cfg.Log.Format = s
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	return logging.New(logging.Config{
		Level:  logging.ParseLevel(cfg.Log.Level),
		Format: logging.ParseFormat(cfg.Log.Format),
		Output: os.Stderr,
	})
}

func newClient(cfg *config.Config, logger *slog.Logger) *reactangosdk.Client {
	c := reactangosdk.New(cfg.Client.BaseURL)
	if cfg.Client.Timeout > 0 {
		c.Timeout = cfg.Client.Timeout
	}
	c.UserAgent = "rt-cli"
	c.Logger = logger
	return c
}

// withList mounts a users list hook, waits for its first load and runs fn.
func withList(ctx context.Context, fn func(context.Context, *users.List) error) error {
	cfg, err := resolveConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	l := users.NewList(ctx, newClient(cfg, logger), users.WithLogger(logger))
	defer l.Close()
	if _, err := l.Latest().Wait(ctx); err != nil {
		return err
	}
	return fn(ctx, l)
}

// withDetails mounts a user details hook for id, waits for its first load and
// runs fn.
func withDetails(ctx context.Context, id int64, fn func(context.Context, *users.Details) error) error {
	cfg, err := resolveConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	d := users.NewDetails(ctx, newClient(cfg, logger), id, users.WithLogger(logger))
	defer d.Close()
	if _, err := d.Latest().Wait(ctx); err != nil {
		return err
	}
	return fn(ctx, d)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	cfg, err := resolveConfig()
	if err != nil {
		return err
	}
	return app.With(ctx, viper.GetString("workspace"), newLogger(cfg), func(ctx context.Context, env *app.Env) error {
		return fn(ctx, env.Engine.Repo)
	})
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid user id %q", s)
	}
	return id, nil
}

func newTable() table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	return tw
}

func printUsers(items []reactangosdk.User) error {
	if viper.GetBool("json") {
		return printJSON(items)
	}
	tw := newTable()
	tw.AppendHeader(table.Row{"ID", "Name", "Email", "Favorite food", "Created"})
	for _, u := range items {
		tw.AppendRow(table.Row{u.ID, u.Name, u.Email, food(u.FavoriteFood), u.CreatedAt.Local().Format(time.DateTime)})
	}
	tw.AppendFooter(table.Row{"", "", "", "Total", len(items)})
	tw.Render()
	return nil
}

func printUser(u reactangosdk.User) error {
	if viper.GetBool("json") {
		return printJSON(u)
	}
	tw := newTable()
	tw.AppendRows([]table.Row{
		{"ID", u.ID},
		{"Name", u.Name},
		{"Email", u.Email},
		{"Favorite food", food(u.FavoriteFood)},
		{"Created", u.CreatedAt.Local().Format(time.DateTime)},
		{"Updated", u.UpdatedAt.Local().Format(time.DateTime)},
	})
	tw.Render()
	return nil
}

func food(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
