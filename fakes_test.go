package sdkbuild

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
)

// fakeRunner records commands and answers them through handle.
type fakeRunner struct {
	mu     sync.Mutex
	calls  []Command
	handle func(cmd Command) ([]string, error)
}

func (f *fakeRunner) Run(_ context.Context, cmd Command) ([]string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	f.mu.Unlock()

	if f.handle == nil {
		return nil, nil
	}
	return f.handle(cmd)
}

func (f *fakeRunner) commands() []Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Command{}, f.calls...)
}

// named returns the recorded commands of one tool.
func (f *fakeRunner) named(name string) []Command {
	var out []Command
	for _, c := range f.commands() {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// argValue returns the value following flag in args.
func argValue(args []string, flag string) string {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func hasArg(args []string, arg string) bool {
	for _, a := range args {
		if a == arg {
			return true
		}
	}
	return false
}

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// toolchainSim imitates cargo, cargo-ndk, uniffi-bindgen and xcodebuild by
// writing the files they would produce.
type toolchainSim struct {
	lib       string // library name, e.g. "pubkycore"
	targetDir string

	// failCompile makes the build of this triple exit with status 101.
	failCompile string
	// skipArtifact makes cargo succeed without writing this triple's libraries.
	skipArtifact string
	// skipGenerated makes uniffi-bindgen succeed without writing this file.
	skipGenerated string
	// flatKotlin writes kotlin output directly into the out dir.
	flatKotlin bool
}

var errExit101 = &exitStatusError{code: 101}

type exitStatusError struct{ code int }

func (e *exitStatusError) Error() string   { return fmt.Sprintf("exit status %d", e.code) }
func (e *exitStatusError) ExitStatus() int { return e.code }

func (s *toolchainSim) handle(cmd Command) ([]string, error) {
	switch {
	case cmd.Name == "cargo" && hasArg(cmd.Args, "rustc"):
		return s.cargo(cmd)
	case hasArg(cmd.Args, "generate"):
		return s.generate(cmd)
	case cmd.Name == "xcodebuild":
		return s.xcodebuild(cmd)
	default:
		return nil, nil
	}
}

func (s *toolchainSim) cargo(cmd Command) ([]string, error) {
	triple := argValue(cmd.Args, "--target")
	if abi := argValue(cmd.Args, "-t"); abi != "" {
		for _, t := range androidTargets {
			if t.ABI == abi {
				triple = t.Triple
			}
		}
	}
	if triple == s.failCompile && triple != "" {
		return []string{"error[E0425]: cannot find value `x` in this scope"}, errExit101
	}
	if triple == s.skipArtifact && triple != "" {
		return []string{"Finished release"}, nil
	}

	goos := runtime.GOOS
	switch {
	case strings.Contains(triple, "apple-ios"):
		goos = osIOS
	case strings.Contains(triple, "android"):
		goos = osAndroid
	}

	profile := "debug"
	if hasArg(cmd.Args, "--release") {
		profile = "release"
	}
	root := s.targetDir
	if dir := argValue(cmd.Args, "--target-dir"); dir != "" {
		root = dir
	}
	dir := filepath.Join(root, triple, profile)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	for _, crateType := range strings.Split(argValue(cmd.Args, "--crate-type"), ",") {
		kind := OutputDynamic
		if crateType == "staticlib" {
			kind = OutputStatic
		}
		name := LibraryFileName(s.lib, kind, goos)
		if err := os.WriteFile(filepath.Join(dir, name), []byte(crateType+" "+triple), 0o644); err != nil {
			return nil, err
		}
	}
	return []string{"Finished release"}, nil
}

func (s *toolchainSim) generate(cmd Command) ([]string, error) {
	outDir := argValue(cmd.Args, "--out-dir")
	files := map[string]string{}

	switch argValue(cmd.Args, "--language") {
	case "swift":
		files[s.lib+".swift"] = "import Foundation"
		files[s.lib+"FFI.h"] = "#pragma once"
		files[s.lib+"FFI.modulemap"] = "module " + s.lib + "FFI { header \"" + s.lib + "FFI.h\" }"
	case "kotlin":
		if s.flatKotlin {
			files[s.lib+".kt"] = "package uniffi." + s.lib
		} else {
			files[filepath.Join("uniffi", s.lib, s.lib+".kt")] = "package uniffi." + s.lib
		}
	case "python":
		files[s.lib+".py"] = "import ctypes"
	default:
		return []string{"unknown language"}, errors.New("exit status 1")
	}

	for name, content := range files {
		if filepath.Base(name) == s.skipGenerated {
			continue
		}
		path := filepath.Join(outDir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func (s *toolchainSim) xcodebuild(cmd Command) ([]string, error) {
	output := argValue(cmd.Args, "-output")
	for i := 0; i+1 < len(cmd.Args); i++ {
		if cmd.Args[i] == "-headers" {
			if _, err := os.Stat(filepath.Join(cmd.Args[i+1], moduleMapName)); err != nil {
				return []string{"error: headers missing module map"}, errors.New("exit status 70")
			}
		}
	}
	if err := os.MkdirAll(output, 0o755); err != nil {
		return nil, err
	}
	return []string{"xcframework successfully written out to: " + output},
		os.WriteFile(filepath.Join(output, "Info.plist"), []byte("<plist/>"), 0o644)
}

// newTestPipeline returns a pipeline over a temp directory whose tools are
// simulated by sim.
func newTestPipeline(t *testing.T) (*Pipeline, *toolchainSim, *fakeRunner) {
	t.Helper()
	root := t.TempDir()
	t.Setenv("CARGO", "")

	cfg := DefaultConfig()
	cfg.ManifestPath = filepath.Join(root, "Cargo.toml")
	cfg.TargetDir = filepath.Join(root, "target")
	cfg.OutputRoot = filepath.Join(root, "bindings")

	sim := &toolchainSim{lib: cfg.LibraryName(), targetDir: cfg.TargetDir}
	runner := &fakeRunner{}
	runner.handle = func(cmd Command) ([]string, error) { return sim.handle(cmd) }

	p := New(&cfg, nil)
	p.Compiler = &CargoCompiler{Config: &cfg, Runner: runner}
	p.Generator = &UniffiGenerator{Command: cfg.GeneratorCommand, Runner: runner}
	p.Assemblers = NewAssemblerRegistry(&XcodebuildBundler{Runner: runner})
	p.Toolchain = nil

	return p, sim, runner
}
