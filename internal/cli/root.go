package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/existflow/quizdesk/internal/api"
	"github.com/existflow/quizdesk/internal/auth"
	"github.com/existflow/quizdesk/internal/config"
	"github.com/existflow/quizdesk/internal/db"
	"github.com/existflow/quizdesk/internal/logger"
	"github.com/existflow/quizdesk/internal/session"
	"github.com/existflow/quizdesk/internal/tokenstore"
)

var (
	logLevel   string
	logFile    string
	logConsole bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "quizdesk",
	Short: "quizdesk - terminal client for the assessment platform",
	Long: `quizdesk signs you in to the assessment platform, runs timed tests in
the terminal and reads the question bank and dashboard reports.

Start with 'quizdesk auth login', then 'quizdesk test start'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Load config from file (or defaults if not exists)
		loaded, err := config.Load()
		if err != nil {
			logger.Warn("Failed to load config, using defaults", logger.F("error", err))
			loaded = config.DefaultConfig()
		}
		cfg = loaded

		// Override with CLI flags if provided
		configChanged := false
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = logLevel
			configChanged = true
		}
		if cmd.Flags().Changed("log-file") {
			cfg.LogFile = logFile
			configChanged = true
		}
		if cmd.Flags().Changed("log-console") {
			cfg.LogConsole = logConsole
			configChanged = true
		}

		// Save config if changed via CLI flags
		if configChanged {
			if err := cfg.Save(); err != nil {
				logger.Warn("Failed to save config", logger.F("error", err))
			}
		}

		logConfig := logger.Config{
			Level:      logger.ParseLevel(cfg.LogLevel),
			FilePath:   cfg.LogFile,
			MaxSize:    10 * 1024 * 1024, // 10MB
			MaxAge:     7,
			MaxBackups: 5,
			Console:    cfg.LogConsole,
		}

		if err := logger.Init(logConfig); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		logger.Info("quizdesk started", logger.F("command", cmd.Name()))
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Info("quizdesk exiting", logger.F("command", cmd.Name()))
		_ = logger.Close()
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Add logging flags
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (DEBUG, INFO, WARN, ERROR)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Path to log file")
	rootCmd.PersistentFlags().BoolVar(&logConsole, "log-console", false, "Enable console logging")

	// Add subcommands
	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(testCmd)
	rootCmd.AddCommand(questionCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(gateCmd)
}

// app is the wired client for one command run
type app struct {
	db      *db.DB
	store   *tokenstore.Store
	session *session.Session
	api     *api.Client
	auth    *auth.Service
}

// openApp opens the token store and builds the API client and auth service
// around it. The session is not loaded yet.
func openApp(c *config.Config) (*app, error) {
	database, err := db.Open(c.Storage.Path)
	if err != nil {
		logger.Error("Failed to open database", logger.F("error", err))
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	var opts []tokenstore.Option
	if c.Storage.Encrypt {
		sealer, err := tokenstore.LoadOrCreateSealer(filepath.Join(filepath.Dir(c.Storage.Path), "store.key"))
		if err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("failed to load store key: %w", err)
		}
		opts = append(opts, tokenstore.WithSealer(sealer))
	}

	store := tokenstore.New(database, opts...)
	sess := session.New(store)
	client := api.NewClient(c.API.BaseURL, c.API.Timeout, api.WithTokenSource(sess))
	svc := auth.NewService(client, sess)
	client.OnTokenRejected(svc.RefreshRejected)

	return &app{
		db:      database,
		store:   store,
		session: sess,
		api:     client,
		auth:    svc,
	}, nil
}

func (a *app) Close() {
	_ = a.db.Close()
	logger.Debug("Database closed")
}

// requireLogin restores the stored session and proves it against the server,
// refreshing once if needed
func (a *app) requireLogin(ctx context.Context) error {
	ok, err := a.auth.Bootstrap(ctx)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	if !ok {
		return fmt.Errorf("not logged in or session expired: run 'quizdesk auth login'")
	}
	return nil
}

// withApp opens the app for the duration of fn
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(cmd.Context(), a)
}

// withLogin is withApp for commands that need a signed-in user
func withLogin(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		if err := a.requireLogin(ctx); err != nil {
			return err
		}
		return fn(ctx, a)
	})
}

// ExecuteContext runs the root command with ctx
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
