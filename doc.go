// Package sdkbuild builds distributable foreign-language bindings for a Rust
// crate that exposes its API through UniFFI.
//
// One platform run compiles the crate for every target of the platform,
// generates the bindings from a compiled dynamic library and lays out the
// package a consumer of that platform expects.
//
// # Supported Platforms
//
// The package includes assemblers for:
//   - ios - XCFramework with device and simulator static libraries, plus Swift
//   - android - jniLibs/<abi>/ shared libraries for four ABIs, plus Kotlin
//   - python - an importable package with setup.py for the host platform
//
// # Basic Usage
//
// Create a pipeline and run one or more platforms:
//
//	cfg := sdkbuild.DefaultConfig()
//	cfg.ManifestPath = "/path/to/crate/Cargo.toml"
//	cfg.OutputRoot = "/path/to/bindings"
//
//	pipeline := sdkbuild.New(&cfg, slog.Default())
//	results, err := pipeline.RunAll(ctx, sdkbuild.Platforms())
//
// # Architecture
//
//	Pipeline
//	├── Toolchain (rustup targets, cargo-ndk, tool checks)
//	├── Compiler (cargo rustc --crate-type per BuildConfiguration)
//	├── Generator (uniffi-bindgen generate --library)
//	└── AssemblerRegistry
//	    ├── IOSAssembler (xcodebuild -create-xcframework)
//	    ├── AndroidAssembler
//	    └── PythonAssembler
//
// Every external tool is started through a CommandRunner, so each stage can
// be exercised without a Rust or Xcode installation.
//
// # Errors
//
// A failed run returns a *StageError naming the platform, the stage and one
// of the failure kinds (ErrToolchainMissing, ErrCompileFailure,
// ErrGenerationFailure, ErrAssemblyFailure, ErrVerificationFailure). The
// platform output directory is removed before the error is returned.
//
// # Requirements
//
// Requires Go 1.25 or later. iOS packaging requires macOS with Xcode.
package sdkbuild
