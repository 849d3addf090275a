package sdkbuild

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
)

// moduleMapName is the file name clang looks up inside a Headers directory.
const moduleMapName = "module.modulemap"

// IOSAssembler packages the static device and simulator libraries into an
// XCFramework next to the generated Swift source.
//
// Layout:
//
//	ios/
//	├── <lib>.swift
//	├── <lib>FFI.h
//	├── module.modulemap
//	└── <Framework>.xcframework
type IOSAssembler struct {
	Bundler Bundler
}

// Platform returns PlatformIOS.
func (a *IOSAssembler) Platform() Platform { return PlatformIOS }

// BindingsDir returns dir: Swift bindings live at the package root.
func (a *IOSAssembler) BindingsDir(_ *Config, dir string) string { return dir }

// Assemble builds the XCFramework.
func (a *IOSAssembler) Assemble(ctx context.Context, in *AssemblyInput) (pkg *Package, err error) {
	source, err := bindingSourceIn(in)
	if err != nil {
		return nil, err
	}
	if in.Bindings.Header == "" || in.Bindings.ModuleMap == "" {
		return nil, failure(ErrAssemblyFailure, in.Dir, fmt.Errorf("swift bindings lack a header or module map"))
	}

	pkg = &Package{Platform: PlatformIOS, Dir: in.Dir}
	pkg.Files = append(pkg.Files, source, in.Bindings.Header)

	// Step 1: the module map must carry the name clang looks for
	moduleMap := filepath.Join(in.Dir, moduleMapName)
	if in.Bindings.ModuleMap != moduleMap {
		if err := moveFile(in.Bindings.ModuleMap, moduleMap); err != nil {
			return nil, failure(ErrAssemblyFailure, moduleMap, fmt.Errorf("failed to rename module map: %w", err))
		}
	}
	pkg.Files = append(pkg.Files, moduleMap)

	// Step 2: one Headers directory per architecture, each with its own copies
	targets := TargetsFor(PlatformIOS)
	var scratch []string
	for _, t := range targets {
		scratch = append(scratch, filepath.Join(in.Dir, t.ABI))
	}
	pkg.Scratch = append(append([]string{}, scratch...), in.Bindings.Nested...)

	defer func() {
		if rmErr := removeAll(scratch...); rmErr != nil {
			rmErr = failure(ErrAssemblyFailure, in.Dir, fmt.Errorf("failed to remove scratch headers: %w", rmErr))
			err = errors.Join(err, rmErr)
			pkg = nil
		}
	}()

	slices := make([]FrameworkSlice, 0, len(targets))
	for i, t := range targets {
		lib, err := in.artifact(t, OutputStatic)
		if err != nil {
			return nil, failure(ErrAssemblyFailure, in.Dir, err)
		}

		headers := filepath.Join(scratch[i], "Headers")
		for _, src := range []string{in.Bindings.Header, moduleMap} {
			dst := filepath.Join(headers, filepath.Base(src))
			if err := copyFile(src, dst); err != nil {
				return nil, failure(ErrAssemblyFailure, dst, fmt.Errorf("failed to copy %s: %w", src, err))
			}
		}
		slices = append(slices, FrameworkSlice{Library: lib.Path, Headers: headers})
	}

	// Step 3: merge both architectures
	bundle := filepath.Join(in.Dir, in.Config.FrameworkName+".xcframework")
	if err := a.Bundler.CreateXCFramework(ctx, slices, bundle); err != nil {
		return nil, err
	}
	pkg.Entry = bundle
	pkg.Files = append(pkg.Files, bundle)

	// Step 4 runs in the deferred cleanup
	return pkg, nil
}
