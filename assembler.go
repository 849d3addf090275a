package sdkbuild

import (
	"context"
	"fmt"
)

// AssemblyInput is everything an assembler needs to lay out a package.
type AssemblyInput struct {
	Config    *Config
	Dir       string // platform output root, already created and empty of old output
	Artifacts []CompiledArtifact
	Bindings  *BindingSet
}

// artifact returns the artifact of the given target and kind.
func (in *AssemblyInput) artifact(target Target, kind OutputKind) (CompiledArtifact, error) {
	for _, a := range in.Artifacts {
		if a.Target.Triple == target.Triple && a.Target.ABI == target.ABI && a.Kind == kind {
			return a, nil
		}
	}
	return CompiledArtifact{}, fmt.Errorf("no %s library for target %s", kind, target)
}

// Assembler lays out the distributable package of one platform.
//
// # Contract
//
// The pipeline calls BindingsDir before generating bindings, then Assemble
// with the compiled artifacts and generated bindings. Assemble either returns
// a complete Package or an error; the pipeline removes the platform output
// after an error, so assemblers need not undo their own partial work, but they
// must clean up scratch directories on every path.
type Assembler interface {
	// Platform returns the platform this assembler packages.
	Platform() Platform

	// BindingsDir returns where the generator should write, given the
	// platform output root.
	BindingsDir(cfg *Config, dir string) string

	// Assemble builds the package.
	Assemble(ctx context.Context, in *AssemblyInput) (*Package, error)
}

// Bundler merges per-architecture static libraries into one XCFramework.
type Bundler interface {
	CreateXCFramework(ctx context.Context, slices []FrameworkSlice, output string) error
}

// FrameworkSlice is one architecture of an XCFramework.
type FrameworkSlice struct {
	Library string // static library
	Headers string // directory holding the slice's headers and module map
}

// XcodebuildBundler creates XCFrameworks with xcodebuild.
type XcodebuildBundler struct {
	Runner CommandRunner
}

// CreateXCFramework runs xcodebuild -create-xcframework.
func (b *XcodebuildBundler) CreateXCFramework(ctx context.Context, slices []FrameworkSlice, output string) error {
	args := []string{"-create-xcframework"}
	for _, s := range slices {
		args = append(args, "-library", s.Library, "-headers", s.Headers)
	}
	args = append(args, "-output", output)

	cmd := Command{Name: "xcodebuild", Args: args}
	out, err := b.Runner.Run(ctx, cmd)
	if err != nil {
		e := toolFailure(ErrAssemblyFailure, cmd, out, err)
		e.Path = output
		return e
	}
	if !exists(output) {
		return &StageError{Kind: ErrAssemblyFailure, Tool: cmd.Name, Path: output,
			Err: BuildError(cmd.Name, out, fmt.Errorf("bundle not created"))}
	}
	return nil
}

// placeFile copies src to dst and records dst in the package.
func placeFile(pkg *Package, src, dst string) error {
	if err := copyFile(src, dst); err != nil {
		return failure(ErrAssemblyFailure, dst, fmt.Errorf("failed to copy %s: %w", src, err))
	}
	pkg.Files = append(pkg.Files, dst)
	return nil
}

func bindingSourceIn(in *AssemblyInput) (string, error) {
	if in.Bindings == nil || in.Bindings.Source == "" {
		return "", failure(ErrAssemblyFailure, in.Dir, fmt.Errorf("no generated binding source"))
	}
	return in.Bindings.Source, nil
}
