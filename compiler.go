package sdkbuild

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
)

// CompileRequest is one target build.
type CompileRequest struct {
	Target        Target
	Configuration BuildConfiguration
}

// Compiler produces the libraries of one target.
//
// Implementations must be safe for concurrent use: the compile stage may
// build several targets at once.
type Compiler interface {
	// Compile builds the crate for req.Target and returns one artifact per
	// output kind in req.Configuration, in the same order.
	//
	// On failure no file is left at an artifact path that a later stage could
	// mistake for fresh output.
	Compile(ctx context.Context, req CompileRequest) ([]CompiledArtifact, error)
}

// CargoCompiler builds the crate with cargo.
//
// Host and Apple targets use "cargo rustc" with an explicit --crate-type.
// Android targets go through cargo-ndk, which supplies the NDK linker and the
// --target flag.
type CargoCompiler struct {
	Config *Config
	Runner CommandRunner
	Logger *slog.Logger
}

// Compile builds the crate for one target.
func (c *CargoCompiler) Compile(ctx context.Context, req CompileRequest) ([]CompiledArtifact, error) {
	artifacts := c.ExpectedArtifacts(req)

	// Remove stale outputs so only this build can satisfy the existence check
	if err := removeArtifacts(artifacts); err != nil {
		return nil, err
	}

	cmd := c.command(req)
	c.logger().Info("Compiling", "target", req.Target.String(), "crate_type", req.Configuration.CrateTypes())
	c.logger().Debug("Cargo invocation", "cmd", cmd.String())

	output, err := c.Runner.Run(ctx, cmd)
	if err != nil {
		_ = removeArtifacts(artifacts)
		return nil, toolFailure(ErrCompileFailure, cmd, output, err)
	}

	for _, a := range artifacts {
		info, statErr := os.Stat(a.Path)
		if statErr != nil || !info.Mode().IsRegular() {
			_ = removeArtifacts(artifacts)
			return nil, &StageError{
				Kind: ErrCompileFailure,
				Tool: cmd.Name,
				Path: a.Path,
				Err:  BuildError(cmd.Name, output, fmt.Errorf("expected %s library not produced", a.Kind)),
			}
		}
	}

	return artifacts, nil
}

func removeArtifacts(artifacts []CompiledArtifact) error {
	for _, a := range artifacts {
		if err := os.Remove(a.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return failure(ErrCompileFailure, a.Path, fmt.Errorf("failed to remove stale artifact: %w", err))
		}
	}
	return nil
}

// ExpectedArtifacts returns the deterministic library paths of a build.
func (c *CargoCompiler) ExpectedArtifacts(req CompileRequest) []CompiledArtifact {
	dir := c.Config.CargoTargetDir()
	if !req.Target.IsHost() {
		dir = filepath.Join(dir, req.Target.Triple)
	}
	dir = filepath.Join(dir, c.Config.ProfileDir())

	artifacts := make([]CompiledArtifact, 0, len(req.Configuration.OutputKinds))
	for _, kind := range req.Configuration.OutputKinds {
		artifacts = append(artifacts, CompiledArtifact{
			Target: req.Target,
			Kind:   kind,
			Path:   filepath.Join(dir, LibraryFileName(c.Config.LibraryName(), kind, req.Target.OS)),
		})
	}
	return artifacts
}

// command builds the cargo invocation for a request.
func (c *CargoCompiler) command(req CompileRequest) Command {
	var args []string

	if req.Target.OS == osAndroid {
		args = append(args, "ndk", "-t", req.Target.ABI)
		if c.Config.AndroidAPILevel > 0 {
			args = append(args, "--platform", strconv.Itoa(c.Config.AndroidAPILevel))
		}
	}

	args = append(args, "rustc", "--manifest-path", c.Config.ManifestPath, "--lib")
	if c.Config.Release {
		args = append(args, "--release")
	}
	args = append(args, "--target-dir", c.Config.CargoTargetDir())
	if !req.Target.IsHost() && req.Target.OS != osAndroid {
		args = append(args, "--target", req.Target.Triple)
	}
	args = append(args, "--crate-type", req.Configuration.CrateTypes())

	env := map[string]string{}
	if req.Target.OS == osIOS && c.Config.DeploymentTarget != "" {
		env["IPHONEOS_DEPLOYMENT_TARGET"] = c.Config.DeploymentTarget
	}

	return Command{Name: c.cargoPath(), Args: args, Env: env}
}

// cargoPath returns the path to the cargo executable
func (c *CargoCompiler) cargoPath() string {
	if cargoPath := os.Getenv("CARGO"); cargoPath != "" {
		return cargoPath
	}
	return "cargo"
}

func (c *CargoCompiler) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
