package sdkbuild

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// recordingBundler captures XCFramework requests.
type recordingBundler struct {
	slices []FrameworkSlice
	output string
	err    error
}

func (b *recordingBundler) CreateXCFramework(_ context.Context, slices []FrameworkSlice, output string) error {
	b.slices = slices
	b.output = output
	for _, s := range slices {
		if _, err := os.Stat(filepath.Join(s.Headers, moduleMapName)); err != nil {
			return err
		}
	}
	if b.err != nil {
		return b.err
	}
	return os.MkdirAll(output, 0o755)
}

// fakeArtifacts writes a library file for every target and kind.
func fakeArtifacts(t *testing.T, root string, p Platform) []CompiledArtifact {
	t.Helper()
	var artifacts []CompiledArtifact
	for _, target := range TargetsFor(p) {
		for _, kind := range Profile(p).Configuration.OutputKinds {
			path := filepath.Join(root, "target", target.Triple, "release", LibraryFileName("pubkycore", kind, target.OS))
			writeTestFile(t, path, string(kind)+" "+target.ABI)
			artifacts = append(artifacts, CompiledArtifact{Target: target, Kind: kind, Path: path})
		}
	}
	return artifacts
}

func swiftBindings(t *testing.T, dir string) *BindingSet {
	t.Helper()
	set := &BindingSet{
		Language:  "swift",
		Dir:       dir,
		Source:    filepath.Join(dir, "pubkycore.swift"),
		Header:    filepath.Join(dir, "pubkycoreFFI.h"),
		ModuleMap: filepath.Join(dir, "pubkycoreFFI.modulemap"),
	}
	writeTestFile(t, set.Source, "import Foundation")
	writeTestFile(t, set.Header, "#pragma once")
	writeTestFile(t, set.ModuleMap, "module pubkycoreFFI {}")
	return set
}

func TestIOSAssembler(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "bindings", "ios")
	cfg := DefaultConfig()
	bundler := &recordingBundler{}

	pkg, err := (&IOSAssembler{Bundler: bundler}).Assemble(context.Background(), &AssemblyInput{
		Config:    &cfg,
		Dir:       dir,
		Artifacts: fakeArtifacts(t, root, PlatformIOS),
		Bindings:  swiftBindings(t, dir),
	})
	require.NoError(t, err)

	require.Equal(t, filepath.Join(dir, "PubkyCore.xcframework"), pkg.Entry)
	require.Equal(t, pkg.Entry, bundler.output)
	require.Len(t, bundler.slices, 2)
	for _, s := range bundler.slices {
		require.True(t, strings.HasSuffix(s.Library, "libpubkycore.a"), "slices use static libraries, got %s", s.Library)
	}
	require.Contains(t, bundler.slices[0].Library, "aarch64-apple-ios"+string(filepath.Separator))
	require.Contains(t, bundler.slices[1].Library, "aarch64-apple-ios-sim")

	require.FileExists(t, filepath.Join(dir, "module.modulemap"))
	require.NoFileExists(t, filepath.Join(dir, "pubkycoreFFI.modulemap"))
	require.FileExists(t, filepath.Join(dir, "pubkycore.swift"))
	require.FileExists(t, filepath.Join(dir, "pubkycoreFFI.h"))

	require.NotEmpty(t, pkg.Scratch)
	for _, s := range pkg.Scratch {
		require.NoDirExists(t, s)
	}
}

func TestIOSAssembler_BundlerFailureCleansScratch(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "bindings", "ios")
	cfg := DefaultConfig()
	bundler := &recordingBundler{err: &StageError{Kind: ErrAssemblyFailure, Tool: "xcodebuild", Err: errors.New("exit status 70")}}

	pkg, err := (&IOSAssembler{Bundler: bundler}).Assemble(context.Background(), &AssemblyInput{
		Config:    &cfg,
		Dir:       dir,
		Artifacts: fakeArtifacts(t, root, PlatformIOS),
		Bindings:  swiftBindings(t, dir),
	})
	require.ErrorIs(t, err, ErrAssemblyFailure)
	require.Nil(t, pkg)

	for _, target := range TargetsFor(PlatformIOS) {
		require.NoDirExists(t, filepath.Join(dir, target.ABI))
	}
}

func TestIOSAssembler_MissingStaticLibrary(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "bindings", "ios")
	cfg := DefaultConfig()

	var dynamicOnly []CompiledArtifact
	for _, a := range fakeArtifacts(t, root, PlatformIOS) {
		if a.Kind == OutputDynamic {
			dynamicOnly = append(dynamicOnly, a)
		}
	}

	_, err := (&IOSAssembler{Bundler: &recordingBundler{}}).Assemble(context.Background(), &AssemblyInput{
		Config:    &cfg,
		Dir:       dir,
		Artifacts: dynamicOnly,
		Bindings:  swiftBindings(t, dir),
	})
	require.ErrorIs(t, err, ErrAssemblyFailure)
	require.Contains(t, err.Error(), "no static library")
}

func TestXcodebuildBundler(t *testing.T) {
	output := filepath.Join(t.TempDir(), "PubkyCore.xcframework")
	runner := &fakeRunner{handle: (&toolchainSim{}).handle}
	headers := filepath.Join(t.TempDir(), "Headers")
	writeTestFile(t, filepath.Join(headers, moduleMapName), "module x {}")

	err := (&XcodebuildBundler{Runner: runner}).CreateXCFramework(context.Background(),
		[]FrameworkSlice{{Library: "a/libpubkycore.a", Headers: headers}, {Library: "b/libpubkycore.a", Headers: headers}}, output)
	require.NoError(t, err)
	require.DirExists(t, output)
	require.Equal(t, []string{
		"-create-xcframework",
		"-library", "a/libpubkycore.a", "-headers", headers,
		"-library", "b/libpubkycore.a", "-headers", headers,
		"-output", output,
	}, runner.commands()[0].Args)

	silent := &fakeRunner{}
	err = (&XcodebuildBundler{Runner: silent}).CreateXCFramework(context.Background(), nil, filepath.Join(t.TempDir(), "X.xcframework"))
	require.ErrorIs(t, err, ErrAssemblyFailure, "a bundle that was never written is a failure")
}

func TestAndroidAssembler(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "bindings", "android")
	cfg := DefaultConfig()
	source := filepath.Join(dir, "pubkycore.kt")
	writeTestFile(t, source, "package uniffi.pubkycore")

	pkg, err := (&AndroidAssembler{}).Assemble(context.Background(), &AssemblyInput{
		Config:    &cfg,
		Dir:       dir,
		Artifacts: fakeArtifacts(t, root, PlatformAndroid),
		Bindings:  &BindingSet{Language: "kotlin", Dir: dir, Source: source},
	})
	require.NoError(t, err)
	require.Equal(t, source, pkg.Entry)

	for _, abi := range []string{"armeabi-v7a", "arm64-v8a", "x86", "x86_64"} {
		lib := filepath.Join(dir, "jniLibs", abi, "libpubkycore.so")
		require.FileExists(t, lib)
		content, err := os.ReadFile(lib)
		require.NoError(t, err)
		require.Equal(t, "dynamic "+abi, string(content), "each ABI directory holds its own build")
	}
	require.Len(t, pkg.Files, 5)
}

func TestAndroidAssembler_MissingABI(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "bindings", "android")
	cfg := DefaultConfig()
	source := filepath.Join(dir, "pubkycore.kt")
	writeTestFile(t, source, "package uniffi.pubkycore")

	artifacts := fakeArtifacts(t, root, PlatformAndroid)[:3]
	_, err := (&AndroidAssembler{}).Assemble(context.Background(), &AssemblyInput{
		Config:    &cfg,
		Dir:       dir,
		Artifacts: artifacts,
		Bindings:  &BindingSet{Language: "kotlin", Dir: dir, Source: source},
	})
	require.ErrorIs(t, err, ErrAssemblyFailure)
	require.Contains(t, err.Error(), "x86_64-linux-android")
}

func TestPythonAssembler(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "bindings", "python")
	cfg := DefaultConfig()
	cfg.Python.Dependencies = []string{"cffi>=1.15"}

	a := &PythonAssembler{HostOS: "linux"}
	pkgDir := a.BindingsDir(&cfg, dir)
	require.Equal(t, filepath.Join(dir, "pubkycore"), pkgDir)

	source := filepath.Join(pkgDir, "pubkycore.py")
	writeTestFile(t, source, "import ctypes")

	host := TargetsFor(PlatformPython)[0]
	lib := filepath.Join(root, "target", "release", "libpubkycore.so")
	writeTestFile(t, lib, "cdylib")

	pkg, err := a.Assemble(context.Background(), &AssemblyInput{
		Config:    &cfg,
		Dir:       dir,
		Artifacts: []CompiledArtifact{{Target: host, Kind: OutputDynamic, Path: lib}},
		Bindings:  &BindingSet{Language: "python", Dir: pkgDir, Source: source},
	})
	require.NoError(t, err)

	require.Equal(t, filepath.Join(pkgDir, "__init__.py"), pkg.Entry)
	require.FileExists(t, filepath.Join(pkgDir, "libpubkycore.so"))

	initPy, err := os.ReadFile(pkg.Entry)
	require.NoError(t, err)
	require.Contains(t, string(initPy), "from .pubkycore import *")

	setup, err := os.ReadFile(filepath.Join(dir, "setup.py"))
	require.NoError(t, err)
	for _, want := range []string{
		`name="pubkycore"`,
		`version="0.1.0"`,
		`"pubkycore": ["*.so", "*.dylib", "*.dll"]`,
		`install_requires=["cffi>=1.15"]`,
		`author="Pubky"`,
		`python_requires=">=3.6"`,
		`License :: OSI Approved :: MIT License`,
	} {
		require.Contains(t, string(setup), want)
	}

	require.FileExists(t, filepath.Join(dir, "README.md"))
}

func TestPythonAssembler_LibraryNameFollowsHost(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "bindings", "python")
	cfg := DefaultConfig()

	a := &PythonAssembler{HostOS: "darwin"}
	source := filepath.Join(a.BindingsDir(&cfg, dir), "pubkycore.py")
	writeTestFile(t, source, "import ctypes")
	lib := filepath.Join(root, "target", "release", "libpubkycore.dylib")
	writeTestFile(t, lib, "cdylib")

	_, err := a.Assemble(context.Background(), &AssemblyInput{
		Config:    &cfg,
		Dir:       dir,
		Artifacts: []CompiledArtifact{{Target: TargetsFor(PlatformPython)[0], Kind: OutputDynamic, Path: lib}},
		Bindings:  &BindingSet{Language: "python", Source: source},
	})
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(dir, "pubkycore", "libpubkycore.dylib"))
}
