package sdkbuild

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/contriboss/sdkbuild/internal/observability"
	"golang.org/x/sync/errgroup"
)

// stage is one step of a platform run.
type stage struct {
	name Stage
	kind error // failure kind for errors that don't carry their own
	run  func(ctx context.Context) error
}

// platformRun carries the state of one Pipeline.Run call.
type platformRun struct {
	pipeline  *Pipeline
	platform  Platform
	profile   PlatformProfile
	targets   []Target
	assembler Assembler
	dir       string
	logger    *slog.Logger
	result    *RunResult
}

// execute runs the stages in order, stopping at the first failure.
func (r *platformRun) execute(ctx context.Context) error {
	stages := []stage{
		{StageClean, ErrAssemblyFailure, r.clean},
		{StageConfigure, ErrToolchainMissing, r.configure},
		{StageCompile, ErrCompileFailure, r.compileAll},
		{StageGenerate, ErrGenerationFailure, r.generate},
		{StageAssemble, ErrAssemblyFailure, r.assemble},
		{StageVerify, ErrVerificationFailure, r.verify},
	}

	start := time.Now()
	r.logger.Info("Build started", "targets", len(r.targets))

	for _, s := range stages {
		err := ctx.Err()
		if err == nil {
			err = r.runStage(ctx, s)
		}
		if err != nil {
			return r.fail(s, err)
		}
	}

	r.result.State = StateDone
	r.result.Success = true
	r.logger.Info("Build finished", "entry", r.result.Package.Entry, "duration", time.Since(start))
	return nil
}

func (r *platformRun) runStage(ctx context.Context, s stage) error {
	ctx, span := observability.StartStageSpan(ctx, string(r.platform), string(s.name))
	defer span.End()

	r.logger.Debug("Stage started", "stage", s.name)
	start := time.Now()
	err := s.run(ctx)
	r.result.Stages = append(r.result.Stages, StageResult{Stage: s.name, Duration: time.Since(start), Err: err})

	observability.RecordError(span, err)
	return err
}

// fail records the failure and removes whatever the run left in the output directory.
func (r *platformRun) fail(s stage, err error) error {
	stageErr := annotate(err, r.platform, s.name, s.kind)

	r.result.State = StateFailed
	r.result.FailedStage = s.name
	r.result.Error = stageErr
	r.result.Package = nil

	if rmErr := removeAll(r.dir); rmErr != nil {
		r.logger.Warn("Failed to remove partial output", "dir", r.dir, "error", rmErr)
	}

	r.logger.Error("Build failed", "stage", s.name, "error", stageErr)
	return stageErr
}

func (r *platformRun) clean(_ context.Context) error {
	if err := removeAll(r.dir); err != nil {
		return failure(ErrAssemblyFailure, r.dir, fmt.Errorf("failed to remove previous output: %w", err))
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return failure(ErrAssemblyFailure, r.dir, err)
	}
	return nil
}

// configure selects the build configuration for this platform explicitly;
// nothing carries over from an earlier run.
func (r *platformRun) configure(ctx context.Context) error {
	r.result.Configuration = r.profile.Configuration
	r.logger.Info("Build configuration", "crate_type", r.result.Configuration.CrateTypes())

	if r.pipeline.Toolchain == nil {
		return nil
	}
	return r.pipeline.Toolchain.Ensure(ctx, r.profile, r.targets, r.pipeline.Config.GeneratorCommand)
}

// compileAll builds every target. Up to Config.Jobs builds run at once; the
// first failure cancels the rest and fails the stage.
func (r *platformRun) compileAll(ctx context.Context) error {
	jobs := r.pipeline.Config.Jobs
	if jobs < 1 {
		jobs = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)

	built := make([][]CompiledArtifact, len(r.targets))
	for i, target := range r.targets {
		g.Go(func() error {
			cctx, span := observability.StartCompileSpan(gctx, target.String(), r.result.Configuration.CrateTypes())
			defer span.End()

			artifacts, err := r.pipeline.Compiler.Compile(cctx, CompileRequest{
				Target:        target,
				Configuration: r.result.Configuration,
			})
			observability.RecordError(span, err)
			if err != nil {
				return err
			}
			if len(artifacts) != len(r.result.Configuration.OutputKinds) {
				return failure(ErrCompileFailure, "", fmt.Errorf("target %s produced %d artifacts, want %d",
					target, len(artifacts), len(r.result.Configuration.OutputKinds)))
			}
			built[i] = artifacts
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	for _, artifacts := range built {
		r.result.Artifacts = append(r.result.Artifacts, artifacts...)
	}
	return nil
}

// generate runs the binding generator against the first target's dynamic
// library; the exported surface is the same for every target.
func (r *platformRun) generate(ctx context.Context) error {
	var library *CompiledArtifact
	for i := range r.result.Artifacts {
		if r.result.Artifacts[i].Kind == OutputDynamic {
			library = &r.result.Artifacts[i]
			break
		}
	}
	if library == nil {
		return failure(ErrGenerationFailure, r.dir, fmt.Errorf("no dynamic library to generate bindings from"))
	}

	cfg := r.pipeline.Config
	bindings, err := r.pipeline.Generator.Generate(ctx, GenerateRequest{
		Library:  *library,
		Language: r.profile.Language,
		OutDir:   r.assembler.BindingsDir(cfg, r.dir),
		LibName:  cfg.LibraryName(),
	})
	if err != nil {
		return err
	}
	r.result.Bindings = bindings
	return nil
}

func (r *platformRun) assemble(ctx context.Context) error {
	pkg, err := r.assembler.Assemble(ctx, &AssemblyInput{
		Config:    r.pipeline.Config,
		Dir:       r.dir,
		Artifacts: r.result.Artifacts,
		Bindings:  r.result.Bindings,
	})
	if err != nil {
		return err
	}
	r.result.Package = pkg
	return nil
}

// verify checks the assembled package against its own description. A
// failure here means an earlier stage misreported success.
func (r *platformRun) verify(_ context.Context) error {
	pkg := r.result.Package
	if pkg == nil || pkg.Entry == "" {
		return failure(ErrVerificationFailure, r.dir, fmt.Errorf("assembler returned no package entry"))
	}
	if !exists(pkg.Entry) {
		return failure(ErrVerificationFailure, pkg.Entry, fmt.Errorf("package entry missing"))
	}
	for _, f := range pkg.Files {
		if !exists(f) {
			return failure(ErrVerificationFailure, f, fmt.Errorf("package file missing"))
		}
	}

	residue := append([]string{}, pkg.Scratch...)
	if r.result.Bindings != nil {
		residue = append(residue, r.result.Bindings.Nested...)
	}
	for _, s := range residue {
		if exists(s) {
			return failure(ErrVerificationFailure, s, fmt.Errorf("intermediate output left behind"))
		}
	}
	return nil
}
