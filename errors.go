package sdkbuild

import (
	"errors"
	"io/fs"
	"os/exec"
	"strings"

	"github.com/magefile/mage/sh"
)

// Failure kinds. Every error returned by the pipeline matches exactly one of
// them with errors.Is.
var (
	ErrToolchainMissing    = errors.New("toolchain missing")
	ErrCompileFailure      = errors.New("compile failure")
	ErrGenerationFailure   = errors.New("generation failure")
	ErrAssemblyFailure     = errors.New("assembly failure")
	ErrVerificationFailure = errors.New("verification failure")
)

// Stage names one step of a platform run.
type Stage string

const (
	StageClean     Stage = "clean"
	StageConfigure Stage = "configure"
	StageCompile   Stage = "compile"
	StageGenerate  Stage = "generate"
	StageAssemble  Stage = "assemble"
	StageVerify    Stage = "verify"
)

// StageError is the error returned when a stage fails.
//
// Components fill in Kind, Tool, Path and Err. The pipeline adds Platform and
// Stage before the error leaves Run.
type StageError struct {
	Platform Platform
	Stage    Stage
	Kind     error  // one of the Err* failure kinds
	Tool     string // external tool involved, if any
	Path     string // file or directory the failure is about, if any
	Err      error
}

func (e *StageError) Error() string {
	var parts []string
	if e.Platform != "" {
		parts = append(parts, string(e.Platform))
	}
	if e.Stage != "" {
		parts = append(parts, string(e.Stage))
	}
	if e.Kind != nil {
		parts = append(parts, e.Kind.Error())
	}
	if e.Tool != "" {
		parts = append(parts, e.Tool)
	}
	if e.Path != "" {
		parts = append(parts, e.Path)
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	return strings.Join(parts, ": ")
}

// Unwrap exposes both the failure kind and the cause to errors.Is and errors.As.
func (e *StageError) Unwrap() []error {
	var errs []error
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// ExitStatus returns the exit status of the failing tool when it exited with
// one, or 1. It satisfies the interface mage's sh.ExitStatus looks for.
func (e *StageError) ExitStatus() int {
	var status interface{ ExitStatus() int }
	if errors.As(e.Err, &status) && status.ExitStatus() > 0 {
		return status.ExitStatus()
	}
	var exitErr *exec.ExitError
	if errors.As(e.Err, &exitErr) && exitErr.ExitCode() > 0 {
		return exitErr.ExitCode()
	}
	return 1
}

// ExitCode maps a pipeline error to a process exit status.
func ExitCode(err error) int {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return sh.ExitStatus(stageErr)
	}
	return sh.ExitStatus(err)
}

func failure(kind error, path string, err error) *StageError {
	return &StageError{Kind: kind, Path: path, Err: err}
}

// toolFailure classifies the error of an external tool run. A tool that could
// not be started at all is a missing toolchain. Anything else is a failure of
// the given kind, carrying the captured output.
func toolFailure(kind error, cmd Command, output []string, err error) *StageError {
	e := &StageError{Kind: kind, Tool: cmd.Name, Err: BuildError(cmd.Name, output, err)}
	if !sh.CmdRan(err) && toolNotStarted(err) {
		e.Kind = ErrToolchainMissing
		e.Err = err
	}
	return e
}

func toolNotStarted(err error) bool {
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		return true
	}
	var pathErr *fs.PathError
	return errors.As(err, &pathErr)
}

// annotate attaches the platform and stage to err, defaulting the failure kind
// when a component returned a plain error.
func annotate(err error, p Platform, stage Stage, defaultKind error) *StageError {
	var stageErr *StageError
	if !errors.As(err, &stageErr) {
		stageErr = &StageError{Kind: defaultKind, Err: err}
	}
	if stageErr.Platform == "" {
		stageErr.Platform = p
	}
	if stageErr.Stage == "" {
		stageErr.Stage = stage
	}
	if stageErr.Kind == nil {
		stageErr.Kind = defaultKind
	}
	return stageErr
}
