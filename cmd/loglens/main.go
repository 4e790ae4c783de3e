// Command loglens answers questions about network telemetry logs by running
// query plans over a CSV corpus.
//
// Logging:
//   - Base logger is created here from config and flags
//   - Logger is passed to all components via dependency injection
//   - Components scope loggers with Named/With
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/0xcro3dile/loglens-go/internal/config"
	"github.com/0xcro3dile/loglens-go/internal/domain/entities"
	"github.com/0xcro3dile/loglens-go/internal/logging"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "loglens",
		Short:         "Query plans over network telemetry logs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("config", "loglens.yaml", "config file")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format override (json, console)")

	execCmd := &cobra.Command{
		Use:   "exec",
		Short: "Run a JSON plan against a corpus file",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			planPath, _ := cmd.Flags().GetString("plan")
			raw, err := readPlan(cmd.InOrStdin(), planPath)
			if err != nil {
				return err
			}
			if err := a.loadCorpus(cmd); err != nil {
				return err
			}

			res, err := a.query.Execute(cmd.Context(), a.cfg.Corpus.Name, raw)
			if err != nil {
				return reportError(cmd.ErrOrStderr(), err)
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	execCmd.Flags().String("corpus", "", "corpus file (default: corpus.path from config)")
	execCmd.Flags().String("plan", "-", "plan file, or - for stdin")

	askCmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question; the model writes the plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.loadCorpus(cmd); err != nil {
				return err
			}

			answer, err := a.query.Ask(cmd.Context(), a.cfg.Corpus.Name, args[0])
			if answer != nil && len(answer.Plan) > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "plan: %s\n", answer.Plan)
			}
			if err != nil {
				return reportError(cmd.ErrOrStderr(), err)
			}
			return printJSON(cmd.OutOrStdout(), answer.Result)
		},
	}
	askCmd.Flags().String("corpus", "", "corpus file (default: corpus.path from config)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				a.cfg.Server.Addr = addr
			}
			return a.serve(cmd.Context())
		},
	}
	serveCmd.Flags().String("addr", "", "listen address (default: server.addr from config)")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}

	rootCmd.AddCommand(execCmd, askCmd, serveCmd, versionCmd)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// setup loads config, applies flag overrides and builds the logger and app.
func setup(cmd *cobra.Command) (*app, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.Logging.Level = v
	}
	if v, _ := cmd.Flags().GetString("log-format"); v != "" {
		cfg.Logging.Format = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return newApp(cfg, logger)
}

func readPlan(stdin io.Reader, path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// reportError prints plan and execution diagnostics before returning err.
func reportError(w io.Writer, err error) error {
	var (
		planErr *entities.PlanError
		execErr *entities.ExecError
	)
	switch {
	case errors.As(err, &planErr):
		for _, is := range planErr.Issues {
			fmt.Fprintf(w, "  %s: %s\n", is.Rule, is.Message)
		}
	case errors.As(err, &execErr):
		fmt.Fprintf(w, "  failed at operation %d (%s) with %d records in the working set\n",
			execErr.Index, execErr.Op, execErr.WorkingSetSize())
	}
	return err
}
