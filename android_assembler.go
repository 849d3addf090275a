package sdkbuild

import (
	"context"
	"path/filepath"
)

// jniLibsDir is the native-library root Android's Gradle plugin picks up.
const jniLibsDir = "jniLibs"

// AndroidAssembler places one shared library per ABI under jniLibs and keeps
// the Kotlin source at the package root.
//
// Layout:
//
//	android/
//	├── <lib>.kt
//	└── jniLibs/
//	    ├── armeabi-v7a/lib<lib>.so
//	    ├── arm64-v8a/lib<lib>.so
//	    ├── x86/lib<lib>.so
//	    └── x86_64/lib<lib>.so
type AndroidAssembler struct{}

// Platform returns PlatformAndroid.
func (a *AndroidAssembler) Platform() Platform { return PlatformAndroid }

// BindingsDir returns dir: the Kotlin source lives at the package root.
func (a *AndroidAssembler) BindingsDir(_ *Config, dir string) string { return dir }

// Assemble copies each ABI's library into its jniLibs directory.
func (a *AndroidAssembler) Assemble(_ context.Context, in *AssemblyInput) (*Package, error) {
	source, err := bindingSourceIn(in)
	if err != nil {
		return nil, err
	}

	pkg := &Package{
		Platform: PlatformAndroid,
		Dir:      in.Dir,
		Entry:    source,
		Files:    []string{source},
		Scratch:  in.Bindings.Nested,
	}

	for _, t := range TargetsFor(PlatformAndroid) {
		lib, err := in.artifact(t, OutputDynamic)
		if err != nil {
			return nil, failure(ErrAssemblyFailure, in.Dir, err)
		}
		dst := filepath.Join(in.Dir, jniLibsDir, t.ABI, filepath.Base(lib.Path))
		if err := placeFile(pkg, lib.Path, dst); err != nil {
			return nil, err
		}
	}

	return pkg, nil
}
