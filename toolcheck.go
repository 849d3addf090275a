package sdkbuild

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// ToolRequirement describes an external tool a platform build needs.
//
// Required tool:
//
//	ToolRequirement{Name: "cargo", Purpose: "Rust package manager"}
//
// Tool with alternatives:
//
//	ToolRequirement{Name: "xcodebuild", Alternatives: []string{"xcrun"}, Purpose: "XCFramework bundler"}
type ToolRequirement struct {
	// Name is the primary tool binary name (e.g., "cargo", "xcodebuild").
	Name string

	// Alternatives are tool names that also satisfy this requirement.
	Alternatives []string

	// Optional tools are checked but never fail the build.
	Optional bool

	// Purpose is a human-readable description of why this tool is needed.
	Purpose string
}

// CheckToolAvailable checks if a tool is available in the system PATH.
func CheckToolAvailable(tool string) error {
	if _, err := execLookPath(tool); err != nil {
		return fmt.Errorf("%s not found in PATH", tool)
	}
	return nil
}

// CheckRequiredTools verifies all required tools are available.
//
// The primary name is tried first, then each alternative in order. Optional
// tools never cause an error. All missing required tools are reported in a
// single error:
//
//	cargo-ndk (Android cross-compilation) not found in PATH
//	missing required tools: cargo (Rust package manager), rustup (Rust target installer)
func CheckRequiredTools(requirements []ToolRequirement) error {
	var missingTools []string

	for _, req := range requirements {
		found := CheckToolAvailable(req.Name) == nil

		if !found {
			for _, alt := range req.Alternatives {
				if CheckToolAvailable(alt) == nil {
					found = true
					break
				}
			}
		}

		if !found && !req.Optional {
			if req.Purpose != "" {
				missingTools = append(missingTools, fmt.Sprintf("%s (%s)", req.Name, req.Purpose))
			} else {
				missingTools = append(missingTools, req.Name)
			}
		}
	}

	if len(missingTools) == 0 {
		return nil
	}

	if len(missingTools) == 1 {
		return fmt.Errorf("%s not found in PATH", missingTools[0])
	}

	return fmt.Errorf("missing required tools: %s", strings.Join(missingTools, ", "))
}

// RequiredTools returns the tools a platform build invokes.
func RequiredTools(profile PlatformProfile, generatorCommand []string) []ToolRequirement {
	reqs := []ToolRequirement{
		{Name: "cargo", Purpose: "Rust package manager"},
	}
	if len(generatorCommand) > 0 && generatorCommand[0] != "cargo" {
		reqs = append(reqs, ToolRequirement{Name: generatorCommand[0], Purpose: "binding generator"})
	}

	switch profile.Platform {
	case PlatformIOS:
		reqs = append(reqs, ToolRequirement{Name: "xcodebuild", Purpose: "XCFramework bundler"})
	case PlatformAndroid:
		reqs = append(reqs, ToolRequirement{Name: "cargo-ndk", Purpose: "Android cross-compilation"})
	}

	return reqs
}

// Toolchain prepares the cross-compilation toolchain before a platform build.
type Toolchain struct {
	Runner CommandRunner
	Logger *slog.Logger

	// Install adds missing rust targets and cargo-ndk. When false the
	// toolchain is only checked.
	Install bool
}

// Ensure makes the toolchain for the given targets available.
//
// Installation is idempotent: rustup ignores targets that are already
// installed, and cargo-ndk is only installed when it is absent from PATH.
func (t *Toolchain) Ensure(ctx context.Context, profile PlatformProfile, targets []Target, generatorCommand []string) error {
	logger := t.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if err := CheckRequiredTools([]ToolRequirement{{Name: "cargo", Purpose: "Rust package manager"}}); err != nil {
		return failure(ErrToolchainMissing, "", err)
	}

	if t.Install {
		if err := t.addTargets(ctx, logger, targets); err != nil {
			return err
		}
		if profile.UsesNDK && CheckToolAvailable("cargo-ndk") != nil {
			if err := t.run(ctx, logger, Command{Name: "cargo", Args: []string{"install", "cargo-ndk"}}); err != nil {
				return err
			}
		}
	}

	if err := CheckRequiredTools(RequiredTools(profile, generatorCommand)); err != nil {
		return failure(ErrToolchainMissing, "", err)
	}
	return nil
}

func (t *Toolchain) addTargets(ctx context.Context, logger *slog.Logger, targets []Target) error {
	args := []string{"target", "add"}
	for _, target := range targets {
		if !target.IsHost() {
			args = append(args, target.Triple)
		}
	}
	if len(args) == 2 {
		return nil
	}

	if err := CheckRequiredTools([]ToolRequirement{{Name: "rustup", Purpose: "Rust target installer"}}); err != nil {
		return failure(ErrToolchainMissing, "", err)
	}
	return t.run(ctx, logger, Command{Name: "rustup", Args: args})
}

func (t *Toolchain) run(ctx context.Context, logger *slog.Logger, cmd Command) error {
	logger.Info("Preparing toolchain", "cmd", cmd.String())
	output, err := t.Runner.Run(ctx, cmd)
	if err != nil {
		// Installer failures count as a missing toolchain.
		e := toolFailure(ErrToolchainMissing, cmd, output, err)
		e.Kind = ErrToolchainMissing
		return e
	}
	return nil
}
