package sdkbuild

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
)

// GenerateRequest is one binding generator run.
type GenerateRequest struct {
	Library  CompiledArtifact // must be a dynamic library
	Language string           // "swift", "kotlin" or "python"
	OutDir   string
	LibName  string // library name the generated files are named after
}

// Generator emits language bindings for a compiled library.
type Generator interface {
	// Generate writes the binding files for req.Language into req.OutDir and
	// returns where they ended up. Every expected file is guaranteed to exist
	// directly inside req.OutDir when err is nil.
	Generate(ctx context.Context, req GenerateRequest) (*BindingSet, error)
}

// bindingFiles are the file names a language's bindings consist of.
type bindingFiles struct {
	Source    string
	Header    string
	ModuleMap string
}

func (f bindingFiles) names() []string {
	var names []string
	for _, n := range []string{f.Source, f.Header, f.ModuleMap} {
		if n != "" {
			names = append(names, n)
		}
	}
	return names
}

// expectedBindingFiles returns the files uniffi-bindgen writes for a language.
func expectedBindingFiles(language, libName string) (bindingFiles, error) {
	switch language {
	case "swift":
		return bindingFiles{
			Source:    libName + ".swift",
			Header:    libName + "FFI.h",
			ModuleMap: libName + "FFI.modulemap",
		}, nil
	case "kotlin":
		return bindingFiles{Source: libName + ".kt"}, nil
	case "python":
		return bindingFiles{Source: libName + ".py"}, nil
	default:
		return bindingFiles{}, fmt.Errorf("unsupported binding language %q", language)
	}
}

// UniffiGenerator runs uniffi-bindgen in library mode.
//
// uniffi-bindgen nests some outputs under package directories, Kotlin's
// uniffi/<lib>/<lib>.kt for example. The generator moves every expected file
// to the top of the output directory and deletes the nested directories it
// created, so callers only ever see the flat layout.
type UniffiGenerator struct {
	// Command is the prefix that starts uniffi-bindgen.
	Command []string
	Runner  CommandRunner
	Logger  *slog.Logger
}

// Generate runs the generator and normalizes its output layout.
func (g *UniffiGenerator) Generate(ctx context.Context, req GenerateRequest) (*BindingSet, error) {
	files, err := expectedBindingFiles(req.Language, req.LibName)
	if err != nil {
		return nil, failure(ErrGenerationFailure, "", err)
	}
	if req.Library.Kind != OutputDynamic || !isDynamicLibrary(req.Library.Path) {
		return nil, failure(ErrGenerationFailure, req.Library.Path,
			fmt.Errorf("bindings can only be generated from a dynamic library"))
	}
	if len(g.Command) == 0 {
		return nil, failure(ErrToolchainMissing, "", fmt.Errorf("no generator command configured"))
	}

	if err := os.MkdirAll(req.OutDir, 0o755); err != nil {
		return nil, failure(ErrGenerationFailure, req.OutDir, err)
	}
	before, err := dirEntries(req.OutDir)
	if err != nil {
		return nil, failure(ErrGenerationFailure, req.OutDir, err)
	}

	args := append([]string{}, g.Command[1:]...)
	args = append(args, "generate",
		"--library", req.Library.Path,
		"--language", req.Language,
		"--out-dir", req.OutDir)
	cmd := Command{Name: g.Command[0], Args: args}

	g.logger().Info("Generating bindings", "language", req.Language, "library", req.Library.Path)
	output, err := g.Runner.Run(ctx, cmd)
	if err != nil {
		return nil, toolFailure(ErrGenerationFailure, cmd, output, err)
	}

	nested, err := relocateNested(req.OutDir, before, files.names())
	if err != nil {
		return nil, failure(ErrGenerationFailure, req.OutDir, err)
	}

	set := &BindingSet{Language: req.Language, Dir: req.OutDir, Nested: nested}
	for _, f := range []struct {
		name string
		dst  *string
	}{
		{files.Source, &set.Source},
		{files.Header, &set.Header},
		{files.ModuleMap, &set.ModuleMap},
	} {
		if f.name == "" {
			continue
		}
		path := filepath.Join(req.OutDir, f.name)
		if !exists(path) {
			return nil, &StageError{
				Kind: ErrGenerationFailure,
				Tool: cmd.Name,
				Path: path,
				Err:  BuildError(cmd.Name, output, fmt.Errorf("expected output %s missing", f.name)),
			}
		}
		*f.dst = path
	}

	return set, nil
}

func (g *UniffiGenerator) logger() *slog.Logger {
	if g.Logger != nil {
		return g.Logger
	}
	return slog.Default()
}

// relocateNested moves expected files found in directories created by the
// generator up into outDir, then removes those directories. It returns the
// removed directories.
func relocateNested(outDir string, before map[string]bool, names []string) ([]string, error) {
	after, err := dirEntries(outDir)
	if err != nil {
		return nil, err
	}

	var created []string
	for name, isDir := range after {
		if isDir && !before[name] {
			created = append(created, filepath.Join(outDir, name))
		}
	}
	sort.Strings(created)
	if len(created) == 0 {
		return nil, nil
	}

	for _, name := range names {
		flat := filepath.Join(outDir, name)
		if exists(flat) {
			continue
		}
		found, err := findFile(created, name)
		if err != nil {
			return nil, err
		}
		if found == "" {
			continue
		}
		if err := moveFile(found, flat); err != nil {
			return nil, fmt.Errorf("failed to relocate %s: %w", found, err)
		}
	}

	if err := removeAll(created...); err != nil {
		return nil, fmt.Errorf("failed to remove nested generator output: %w", err)
	}
	return created, nil
}

func findFile(roots []string, name string) (string, error) {
	for _, root := range roots {
		var found string
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && d.Name() == name {
				found = path
				return fs.SkipAll
			}
			return nil
		})
		if err != nil {
			return "", err
		}
		if found != "" {
			return found, nil
		}
	}
	return "", nil
}

func dirEntries(dir string) (map[string]bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	m := make(map[string]bool, len(entries))
	for _, e := range entries {
		m[e.Name()] = e.IsDir()
	}
	return m, nil
}
