// Package cli implements the lp2jira command tree.
package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ALT-F4-LLC/lp2jira/internal/config"
	"github.com/ALT-F4-LLC/lp2jira/internal/db"
	"github.com/ALT-F4-LLC/lp2jira/internal/logging"
	"github.com/ALT-F4-LLC/lp2jira/internal/output"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

type contextKey string

const (
	cfgKey    contextKey = "cfg"
	loggerKey contextKey = "logger"
	ledgerKey contextKey = "ledger"
)

// closers releases resources opened by PersistentPreRunE.
var closers []func() error

// CmdError wraps an error with a machine-readable error code for structured output.
type CmdError struct {
	Err  error
	Code output.ErrorCode
}

func (e *CmdError) Error() string { return e.Err.Error() }

func (e *CmdError) Unwrap() error { return e.Err }

func cmdErr(err error, code output.ErrorCode) *CmdError {
	return &CmdError{Err: err, Code: code}
}

var rootCmd = &cobra.Command{
	Use:   "lp2jira",
	Short: "Migrate a Launchpad project to a Jira import bundle",
	Long: `lp2jira exports the subscribers, bugs and blueprints of a Launchpad project
into the Jira JSON importer format, one fragment per entity, and compiles the
fragments into import bundles. With --update-bugs the export is reconciled
against an existing Jira project; --verify-update checks a finished import.`,
	Version:     fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	Annotations: map[string]string{"ledger": "true"},
	Args:        cobra.NoArgs,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !cmd.HasParent() {
			if _, err := selectMode(cmd); err != nil {
				return err
			}
		}

		path, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(path)
		if err != nil {
			return cmdErr(err, output.ErrValidation)
		}
		ctx := context.WithValue(cmd.Context(), cfgKey, cfg)

		if _, ok := cmd.Annotations["skipLogger"]; !ok {
			logger, closeLog, err := logging.Open(cfg.Logging.Filename, cfg.Logging.Level, cfg.Logging.Format)
			if err != nil {
				return cmdErr(err, output.ErrValidation)
			}
			closers = append(closers, closeLog)
			ctx = context.WithValue(ctx, loggerKey, logger)
		}

		if _, ok := cmd.Annotations["ledger"]; ok {
			conn, err := db.OpenLedger(cfg.Ledger.Path)
			if err != nil {
				return fmt.Errorf("failed to open ledger: %w", err)
			}
			closers = append(closers, conn.Close)
			ctx = context.WithValue(ctx, ledgerKey, conn)
		}

		cmd.SetContext(ctx)
		return nil
	},
	RunE: runMigration,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Configuration file (default export.yaml, or $LP2JIRA_CONFIG)")
	rootCmd.PersistentFlags().Bool("json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress non-essential output")

	rootCmd.Flags().Bool("only-bugs", false, "Export only bugs")
	rootCmd.Flags().Bool("only-blueprints", false, "Export only blueprints")
	rootCmd.Flags().Bool("update-bugs", false, "Reconcile the export with Jira and write the update bundle")
	rootCmd.Flags().Bool("verify-update", false, "Check that exported issues exist in Jira with the expected status")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return cmdErr(err, output.ErrUsage)
	})
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
}

func closeAll() error {
	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		errs = append(errs, closers[i]())
	}
	closers = nil
	return errors.Join(errs...)
}

func getWriter(cmd *cobra.Command) *output.Writer {
	jsonMode, _ := cmd.Flags().GetBool("json")
	quietMode, _ := cmd.Flags().GetBool("quiet")
	return output.New(jsonMode, quietMode)
}

func getCfg(cmd *cobra.Command) *config.Config {
	cfg, _ := cmd.Context().Value(cfgKey).(*config.Config)
	return cfg
}

func getLogger(cmd *cobra.Command) *slog.Logger {
	if logger, ok := cmd.Context().Value(loggerKey).(*slog.Logger); ok {
		return logger
	}
	return logging.Discard()
}

func getLedger(cmd *cobra.Command) *sql.DB {
	conn, _ := cmd.Context().Value(ledgerKey).(*sql.DB)
	return conn
}

// Execute runs the root command and returns an exit code. SIGINT and SIGTERM
// cancel the command context; batch loops stop after the item in flight.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if cerr := closeAll(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		jsonMode, _ := rootCmd.PersistentFlags().GetBool("json")
		quietMode, _ := rootCmd.PersistentFlags().GetBool("quiet")
		w := output.New(jsonMode, quietMode)

		var ce *CmdError
		if errors.As(err, &ce) {
			return w.Error(ce.Err, ce.Code)
		}
		return w.Error(err, output.ErrGeneral)
	}
	return 0
}
