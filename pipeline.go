package sdkbuild

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/contriboss/sdkbuild/internal/observability"
)

// State is where a platform run ended up.
type State string

const (
	StatePending State = "pending"
	StateDone    State = "done"
	StateFailed  State = "failed"
)

// StageResult records one executed stage.
type StageResult struct {
	Stage    Stage
	Duration time.Duration
	Err      error
}

// RunResult contains the outcome of one platform run.
//
// After a run completes, it provides:
//   - Success and the final State (done or failed)
//   - FailedStage naming the stage that failed, if any
//   - Configuration that was applied to every compile of this run
//   - Artifacts, Bindings and Package produced along the way
//   - Stages in execution order with their durations
type RunResult struct {
	Platform      Platform
	Success       bool
	State         State
	FailedStage   Stage
	Configuration BuildConfiguration
	Artifacts     []CompiledArtifact
	Bindings      *BindingSet
	Package       *Package
	Stages        []StageResult
	Error         error
}

// Pipeline builds distributable bindings for one platform at a time.
//
// # Stages
//
//  1. Clean: delete the platform output directory
//  2. Configure: select the build configuration and prepare the toolchain
//  3. Compile: build every target of the platform
//  4. Generate: run the binding generator once against a dynamic library
//  5. Assemble: lay out the platform package
//  6. Verify: check the package entry exists and no scratch output remains
//
// A failing stage stops the run; the platform output directory is then
// removed so no partial package stays behind.
//
// # Thread Safety
//
// Run and RunAll may be called concurrently; platform runs are serialized.
type Pipeline struct {
	Config     *Config
	Compiler   Compiler
	Generator  Generator
	Assemblers *AssemblerRegistry

	// Toolchain prepares cross-compilers during Configure. Nil skips
	// preparation.
	Toolchain *Toolchain

	Logger *slog.Logger

	mu sync.Mutex
}

// New creates a pipeline that drives the real toolchains.
func New(cfg *Config, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	runner := &ExecRunner{Logger: logger}

	return &Pipeline{
		Config:     cfg,
		Compiler:   &CargoCompiler{Config: cfg, Runner: runner, Logger: logger},
		Generator:  &UniffiGenerator{Command: cfg.GeneratorCommand, Runner: runner, Logger: logger},
		Assemblers: NewAssemblerRegistry(&XcodebuildBundler{Runner: runner}),
		Toolchain:  &Toolchain{Runner: runner, Logger: logger, Install: cfg.InstallToolchains},
		Logger:     logger,
	}
}

// RunAll runs the platforms in order and stops after the first failure.
//
// The returned slice holds a result for every platform that was started,
// including the failed one.
func (p *Pipeline) RunAll(ctx context.Context, platforms []Platform) ([]*RunResult, error) {
	var results []*RunResult

	for _, platform := range platforms {
		result, err := p.Run(ctx, platform)
		if result != nil {
			results = append(results, result)
		}
		if err != nil {
			return results, err
		}
	}

	return results, nil
}

// Run executes every stage for one platform.
func (p *Pipeline) Run(ctx context.Context, platform Platform) (*RunResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	assembler, err := p.Assemblers.AssemblerFor(platform)
	if err != nil {
		return nil, err
	}

	run := &platformRun{
		pipeline:  p,
		platform:  platform,
		profile:   Profile(platform),
		targets:   TargetsFor(platform),
		assembler: assembler,
		dir:       p.Config.PlatformDir(platform),
		logger:    p.logger().With("platform", string(platform)),
		result:    &RunResult{Platform: platform, State: StatePending},
	}

	ctx, span := observability.StartRunSpan(ctx, string(platform))
	defer span.End()

	err = run.execute(ctx)
	observability.RecordError(span, err)
	return run.result, err
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}
