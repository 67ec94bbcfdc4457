package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"branchsweep/internal/bitbucket"
	"branchsweep/internal/config"
	"branchsweep/internal/engine"
	"branchsweep/internal/output"
	"branchsweep/internal/state"
)

var cfg = config.New()

// phase selects which half of the retention cycle a subcommand runs.
type phase int

const (
	phaseScan phase = iota
	phaseReconcile
)

func newLogger(verbose bool) *zap.Logger {
	encoderCfg := zap.NewDevelopmentEncoderConfig()
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderCfg),
		zapcore.Lock(os.Stderr),
		level,
	)
	return zap.New(core)
}

func setupSinks(cfg *config.Config, p phase) (*output.Manager, error) {
	outMgr := output.NewManager()

	if !cfg.Output.NoConsole {
		if err := outMgr.AddSink(output.NewConsoleSink(nil)); err != nil {
			_ = outMgr.Close()
			return nil, err
		}
	}

	if cfg.Output.LogFile != "" {
		ls, err := output.NewLogFileSink(cfg.Output.LogFile)
		if err != nil {
			_ = outMgr.Close()
			return nil, err
		}
		if err := outMgr.AddSink(ls); err != nil {
			_ = outMgr.Close()
			return nil, err
		}
	}

	if cfg.Output.Report != "" {
		actionLabel := "marked for deletion"
		if p == phaseReconcile && !cfg.Runtime.DryRun {
			actionLabel = "deleted"
		}
		rs, err := output.NewHTMLReportSink(cfg.Output.Report, actionLabel)
		if err != nil {
			_ = outMgr.Close()
			return nil, err
		}
		if err := outMgr.AddSink(rs); err != nil {
			_ = outMgr.Close()
			return nil, err
		}
	}

	return outMgr, nil
}

// runPhase wires config, policy, client, store and sinks together and runs
// one phase of the retention cycle. It exits the process with the engine's
// exit code; fatal setup errors exit 3 before any remote call.
func runPhase(cmd *cobra.Command, p phase) {
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(3)
	}

	pol, err := config.LoadPolicy(cfg.Paths.Policy)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(3)
	}

	token, _ := bitbucket.ResolveAuthToken(cfg.Auth.Token)
	if token == "" {
		fmt.Fprintln(os.Stderr, "Error: a Bitbucket auth token is required (set --token or BITBUCKET_TOKEN)")
		os.Exit(3)
	}

	logger := newLogger(cfg.Runtime.Verbose)

	client, err := bitbucket.NewClient(pol.BaseURL, cfg.Auth.Username, token,
		bitbucket.WithVerbose(cfg.Runtime.Verbose, nil))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(3)
	}

	outMgr, err := setupSinks(cfg, p)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to create output sinks: %v\n", err)
		os.Exit(3)
	}

	store := state.NewFileStore(cfg.Paths.State, logger)
	eng := engine.New(client, store, outMgr, logger)

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Runtime.Timeout)
	defer cancel()

	var code int
	switch p {
	case phaseReconcile:
		code = eng.Reconcile(ctx, cfg, pol)
	default:
		code = eng.Scan(ctx, cfg, pol)
	}

	if err := outMgr.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if code == 0 {
			code = 2
		}
	}

	// os.Exit skips deferred calls, so flush explicitly.
	_ = logger.Sync()
	os.Exit(code)
}
