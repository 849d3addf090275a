package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/contriboss/sdkbuild"
	"github.com/contriboss/sdkbuild/internal/config"
	"github.com/contriboss/sdkbuild/internal/observability"
	"github.com/spf13/cobra"
)

// exitUsage is returned for a malformed command line.
const exitUsage = 2

// usageError marks errors that come from the command line itself.
type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the CLI and returns the process exit status.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	var uerr *usageError
	if errors.As(err, &uerr) {
		fmt.Fprintf(stderr, "sdkbuild: %v\n\n%s", uerr, cmd.UsageString())
		return exitUsage
	}

	fmt.Fprintf(stderr, "sdkbuild: %v\n", err)
	return sdkbuild.ExitCode(err)
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var (
		configPath string
		platforms  []sdkbuild.Platform
	)

	cmd := &cobra.Command{
		Use:   "sdkbuild <ios|android|python|all>",
		Short: "Build distributable UniFFI bindings for mobile and Python",
		Long: `sdkbuild compiles the Rust crate for every target of a platform, generates
the foreign-language bindings and assembles the platform package:

  ios      XCFramework with device and simulator slices plus Swift sources
  android  jniLibs/<abi> shared libraries plus Kotlin sources
  python   importable package with setup.py for the host platform
  all      ios, android and python in order, stopping at the first failure`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return &usageError{fmt.Errorf("expected exactly one platform, got %d", len(args))}
			}
			selected, err := sdkbuild.ParseSelector(args[0])
			if err != nil {
				return &usageError{err}
			}
			platforms = selected
			return nil
		},
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return build(cmd, configPath, platforms, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err}
	})

	flags := cmd.Flags()
	flags.StringVar(&configPath, "config", config.DefaultPath, "Config file path")
	flags.String("manifest-path", "Cargo.toml", "Path to the crate's Cargo.toml")
	flags.String("output", "bindings", "Output root directory")
	flags.Bool("release", true, "Build with the release profile")
	flags.Int("jobs", 1, "Targets compiled concurrently")
	flags.Bool("skip-toolchain-setup", false, "Don't install rust targets or cargo-ndk")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("log-format", "text", "Log format (text, json)")

	return cmd
}

func build(cmd *cobra.Command, configPath string, platforms []sdkbuild.Platform, stderr io.Writer) error {
	ctx := cmd.Context()

	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := observability.NewLogger(cfg.Log, stderr)
	if err != nil {
		return &usageError{err}
	}
	for _, warning := range cfg.Validate(platforms) {
		logger.Warn(warning)
	}

	tp, err := observability.InitTracing(ctx, &cfg.Tracing)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		if err := tp.Shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("Tracing shutdown failed", "error", err)
		}
	}()

	pipeline := sdkbuild.New(&cfg.Build, logger)
	results, err := pipeline.RunAll(ctx, platforms)
	if err != nil {
		return err
	}

	for _, result := range results {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", result.Platform, result.Package.Entry)
	}
	return nil
}
