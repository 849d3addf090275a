package sdkbuild

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/mod/semver"
)

// Platform identifies one consumer platform of the generated bindings.
type Platform string

// Supported platforms, in the order "all" builds them.
const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
	PlatformPython  Platform = "python"
)

// OutputKind is the form of a compiled library.
type OutputKind string

const (
	// OutputDynamic is a loadable shared library (cargo "cdylib").
	OutputDynamic OutputKind = "dynamic"
	// OutputStatic is a link-time static archive (cargo "staticlib").
	OutputStatic OutputKind = "static"
)

// CrateType returns the cargo crate type that produces this output kind.
func (k OutputKind) CrateType() string {
	if k == OutputStatic {
		return "staticlib"
	}
	return "cdylib"
}

// BuildConfiguration describes which library forms the crate is compiled into.
//
// A configuration is a plain value handed to every Compile call. Nothing is
// written back into Cargo.toml, so one platform's run can never observe the
// configuration left behind by another.
type BuildConfiguration struct {
	OutputKinds []OutputKind
}

// Has reports whether the configuration produces the given output kind.
func (c BuildConfiguration) Has(kind OutputKind) bool {
	for _, k := range c.OutputKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// CrateTypes renders the configuration as the value of cargo's --crate-type flag.
func (c BuildConfiguration) CrateTypes() string {
	types := make([]string, 0, len(c.OutputKinds))
	for _, k := range c.OutputKinds {
		types = append(types, k.CrateType())
	}
	return strings.Join(types, ",")
}

func (c BuildConfiguration) String() string {
	return "[" + c.CrateTypes() + "]"
}

// Target is one compilation target of a platform: a rust triple plus the
// names the platform packaging uses for it.
type Target struct {
	Triple string // rust target triple; empty means the host toolchain
	Name   string // architecture label, e.g. "device-arm64"
	ABI    string // platform directory tag, e.g. "arm64-v8a" or "ios-arm64"
	OS     string // target operating system, used for library file names
}

// IsHost reports whether the target is built by the native host toolchain.
func (t Target) IsHost() bool {
	return t.Triple == ""
}

func (t Target) String() string {
	if t.IsHost() {
		return "host"
	}
	return t.Triple
}

// CompiledArtifact is a library file produced for one target.
type CompiledArtifact struct {
	Target Target
	Kind   OutputKind
	Path   string
}

// BindingSet is the output of one binding generator run.
type BindingSet struct {
	Language  string
	Dir       string
	Source    string   // generated source file in the binding language
	Header    string   // C ABI header, swift only
	ModuleMap string   // clang module map, swift only
	Nested    []string // generator scratch directories removed after relocation
}

// Package is an assembled, per-platform distributable.
type Package struct {
	Platform Platform
	Dir      string   // platform output root
	Entry    string   // top-level entry whose presence marks a usable package
	Files    []string // every file the assembler placed
	Scratch  []string // intermediate paths that must be gone once assembly finishes
}

// PythonMetadata is the package metadata written into setup.py.
type PythonMetadata struct {
	Author       string   `mapstructure:"author"`
	Description  string   `mapstructure:"description"`
	License      string   `mapstructure:"license"`
	Dependencies []string `mapstructure:"dependencies"`
}

// Config contains configuration for a pipeline run.
//
// Source:
//   - Crate: crate name; with dashes replaced by underscores it names the compiled library
//   - ManifestPath: path to the crate's Cargo.toml
//   - TargetDir: cargo target directory (defaults to $CARGO_TARGET_DIR, then "target" next to the manifest)
//
// Output:
//   - OutputRoot: directory holding one subdirectory per platform
//   - Version: fixed version string stamped into package metadata
//   - FrameworkName: name of the iOS bundle
//
// Build behavior:
//   - Release: build with --release
//   - Jobs: concurrent target builds inside the compile stage (0 or 1 = sequential)
//   - DeploymentTarget: IPHONEOS_DEPLOYMENT_TARGET for iOS builds
//   - AndroidAPILevel: minimum API level handed to cargo-ndk (0 = cargo-ndk default)
//   - InstallToolchains: add missing rust targets and cargo-ndk before compiling
type Config struct {
	Crate        string `mapstructure:"crate"`
	ManifestPath string `mapstructure:"manifest_path"`
	TargetDir    string `mapstructure:"target_dir"`

	OutputRoot    string `mapstructure:"output"`
	Version       string `mapstructure:"version"`
	FrameworkName string `mapstructure:"framework_name"`

	Release           bool   `mapstructure:"release"`
	Jobs              int    `mapstructure:"jobs"`
	DeploymentTarget  string `mapstructure:"deployment_target"`
	AndroidAPILevel   int    `mapstructure:"android_api_level"`
	InstallToolchains bool   `mapstructure:"install_toolchains"`

	// GeneratorCommand is the command prefix that runs uniffi-bindgen,
	// e.g. ["cargo", "run", "--bin", "uniffi-bindgen", "--"].
	GeneratorCommand []string `mapstructure:"generator_command"`

	Python PythonMetadata `mapstructure:"python"`
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		Crate:             "pubkycore",
		ManifestPath:      "Cargo.toml",
		OutputRoot:        "bindings",
		Version:           "0.1.0",
		FrameworkName:     "PubkyCore",
		Release:           true,
		Jobs:              1,
		DeploymentTarget:  "13.4",
		InstallToolchains: true,
		GeneratorCommand:  []string{"uniffi-bindgen"},
		Python: PythonMetadata{
			Author:      "Pubky",
			Description: "Python bindings for the Pubky Mobile SDK",
			License:     "MIT License",
		},
	}
}

// Validate checks the configuration for values the pipeline cannot work with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Crate) == "" {
		return fmt.Errorf("crate name is empty")
	}
	if c.ManifestPath == "" {
		return fmt.Errorf("manifest path is empty")
	}
	if c.OutputRoot == "" {
		return fmt.Errorf("output root is empty")
	}
	if strings.TrimSpace(c.FrameworkName) == "" {
		return fmt.Errorf("framework name is empty")
	}
	if !semver.IsValid("v" + c.Version) {
		return fmt.Errorf("version %q is not a semantic version", c.Version)
	}
	if c.Jobs < 0 {
		return fmt.Errorf("jobs must not be negative, got %d", c.Jobs)
	}
	if len(c.GeneratorCommand) == 0 {
		return fmt.Errorf("generator command is empty")
	}
	return nil
}

// LibraryName returns the crate's library name as cargo spells it in file
// names. Cargo only replaces dashes; case is kept.
func (c *Config) LibraryName() string {
	return strings.ReplaceAll(c.Crate, "-", "_")
}

// PlatformDir returns the output root of one platform.
func (c *Config) PlatformDir(p Platform) string {
	return filepath.Join(c.OutputRoot, string(p))
}

// CargoTargetDir returns the cargo target directory. The compiler always
// passes it to cargo as --target-dir.
func (c *Config) CargoTargetDir() string {
	if c.TargetDir != "" {
		return c.TargetDir
	}
	if dir := os.Getenv("CARGO_TARGET_DIR"); dir != "" {
		return dir
	}
	return filepath.Join(filepath.Dir(c.ManifestPath), "target")
}

// ProfileDir returns the cargo profile directory name.
func (c *Config) ProfileDir() string {
	if c.Release {
		return "release"
	}
	return "debug"
}

// Command is one external tool invocation.
type Command struct {
	Name string
	Args []string
	Dir  string
	Env  map[string]string
}

func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// CommandRunner executes external tools. The pipeline never starts a process
// without going through one, so tests can substitute every toolchain.
type CommandRunner interface {
	// Run executes the command and returns its combined output split into lines.
	// The error is the unwrapped error from os/exec.
	Run(ctx context.Context, cmd Command) ([]string, error)
}
