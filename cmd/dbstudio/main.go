// Dbstudio is a terminal workbench for databases connected to a
// data-analysis backend.
//
// It lists the databases belonging to the current session, lazily loads
// and caches their metadata, and drives the connect / upload / delete
// flows against the backend.
//
// Configuration is loaded from ~/.config/dbstudio/config.yaml with
// DBSTUDIO_* environment overrides. See internal/config for details.
//
// Usage:
//
//	# Start the UI
//	dbstudio
//
//	# Point at a different backend
//	DBSTUDIO_API_BASE_URL=https://api.example.com dbstudio
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/dbstudio/internal/api"
	"github.com/fyrsmithlabs/dbstudio/internal/config"
	"github.com/fyrsmithlabs/dbstudio/internal/logging"
	"github.com/fyrsmithlabs/dbstudio/internal/notify"
	"github.com/fyrsmithlabs/dbstudio/internal/registry"
	"github.com/fyrsmithlabs/dbstudio/internal/selection"
	"github.com/fyrsmithlabs/dbstudio/internal/session"
	"github.com/fyrsmithlabs/dbstudio/internal/telemetry"
	"github.com/fyrsmithlabs/dbstudio/internal/tui"
	"github.com/fyrsmithlabs/dbstudio/internal/uploader"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "dbstudio",
	Short: "Terminal workbench for your connected databases",
	Long: `dbstudio lists the databases connected to your account, shows their
tables, files, and connection status, and lets you connect new databases,
upload data files, and delete projects.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runRoot,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("dbstudio by Fyrsmith Labs\n")
		fmt.Printf("Version:    %s\n", version)
		fmt.Printf("Commit:     %s\n", gitCommit)
		fmt.Printf("Build Date: %s\n", buildDate)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"config file path (default ~/.config/dbstudio/config.yaml)")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loginNavigator receives the deferred sign-out target from the session
// guard so the process can print it before exiting.
type loginNavigator chan string

func (n loginNavigator) NavigateToLogin(loginURL string) {
	select {
	case n <- loginURL:
	default:
	}
}

// runRoot wires every component and runs the UI until quit:
//  1. Loads and validates configuration
//  2. Initializes the logger
//  3. Checks the session token (a missing token ends the run)
//  4. Creates the backend client, registry, and upload dispatcher
//  5. Optionally starts the local diagnostics server
//  6. Runs the bubbletea program
func runRoot(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	logger, err := logging.New(logging.Config{
		Level:  level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	logger.Info(ctx, "starting dbstudio",
		zap.String("version", version),
		zap.String("backend", cfg.API.BaseURL))

	nav := make(loginNavigator, 1)
	guard := session.NewGuard(cfg.Auth, nav, logger)
	if guard.Check("/databases") == session.Unauthenticated {
		target := <-nav
		fmt.Fprintf(os.Stderr, "You are not signed in. Visit %s to continue.\n", target)
		return fmt.Errorf("no session token configured (set DBSTUDIO_AUTH_TOKEN or auth.token_file)")
	}
	token := guard.Token()

	client := api.NewClient(cfg.API.BaseURL, token, cfg.API.Timeout.Duration(), logger)
	metrics := telemetry.NewMetrics()
	reg := registry.New(client, logger, metrics)
	notes := notify.NewCenter(logger)

	disp := uploader.NewDispatcher(uploader.Options{
		Uploader: client,
		Registry: reg,
		Notify:   notes,
		Logger:   logger,
		Metrics:  metrics,
		Token:    token.Value(),
	})
	defer disp.Close()

	app := tui.NewApp(client, reg, disp, notes, logger)

	if cfg.Diagnostics.Enabled {
		diag, err := telemetry.NewServer(cfg.Diagnostics.Host, cfg.Diagnostics.Port,
			metrics, snapshotFunc(app, reg, disp, notes), logger)
		if err != nil {
			return fmt.Errorf("failed to create diagnostics server: %w", err)
		}
		go func() {
			if err := diag.Start(); err != nil {
				logger.Error(ctx, "diagnostics server failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := diag.Shutdown(shutdownCtx); err != nil {
				logger.Warn(ctx, "diagnostics shutdown failed", zap.Error(err))
			}
		}()
	}

	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("ui error: %w", err)
	}

	logger.Info(ctx, "dbstudio shutdown complete")
	return nil
}

// snapshotFunc builds the read-only state view served by the diagnostics
// endpoint. The session is authenticated by the time this is wired.
func snapshotFunc(app *tui.App, reg *registry.Registry, disp *uploader.Dispatcher, notes *notify.Center) telemetry.StateFunc {
	return func() telemetry.StateSnapshot {
		dbs := make(map[string]string)
		for _, name := range reg.Names() {
			if meta, ok := reg.Get(name); ok {
				dbs[name] = meta.DetailLevel.String()
			}
		}

		var sel string
		switch cur := app.Selection(); cur.Kind {
		case selection.Existing:
			sel = cur.Name
		case selection.NewProject:
			sel = "(new project)"
		default:
			sel = "(none)"
		}

		var recent []telemetry.StateNote
		for _, n := range notes.History() {
			recent = append(recent, telemetry.StateNote{
				Level: n.Level.String(),
				Text:  n.Text,
				At:    n.At,
			})
		}

		return telemetry.StateSnapshot{
			Session:       session.Authenticated.String(),
			Selection:     sel,
			Databases:     dbs,
			UploadBusy:    disp.Busy(),
			Notifications: recent,
		}
	}
}
