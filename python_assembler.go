package sdkbuild

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"text/template"

	"github.com/iancoleman/strcase"
)

// PythonAssembler builds an installable setuptools package around the host
// library.
//
// Layout:
//
//	python/
//	├── setup.py
//	├── README.md
//	└── <pkg>/
//	    ├── __init__.py
//	    ├── <lib>.py
//	    └── lib<lib>.<so|dylib|dll>
type PythonAssembler struct {
	// HostOS selects the library file name. It is fixed when the assembler is
	// created; NewPythonAssembler uses runtime.GOOS.
	HostOS string
}

// NewPythonAssembler returns an assembler for the running host.
func NewPythonAssembler() *PythonAssembler {
	return &PythonAssembler{HostOS: runtime.GOOS}
}

// Platform returns PlatformPython.
func (a *PythonAssembler) Platform() Platform { return PlatformPython }

// BindingsDir returns the package directory: the generated module lives
// inside the package.
func (a *PythonAssembler) BindingsDir(cfg *Config, dir string) string {
	return filepath.Join(dir, pythonPackageName(cfg))
}

// pythonPackageName returns the import name of the generated package.
func pythonPackageName(cfg *Config) string {
	return strcase.ToSnake(cfg.Crate)
}

// Assemble writes the package directory, metadata and documentation.
func (a *PythonAssembler) Assemble(_ context.Context, in *AssemblyInput) (*Package, error) {
	source, err := bindingSourceIn(in)
	if err != nil {
		return nil, err
	}

	cfg := in.Config
	pkgName := pythonPackageName(cfg)
	pkgDir := a.BindingsDir(cfg, in.Dir)

	pkg := &Package{
		Platform: PlatformPython,
		Dir:      in.Dir,
		Files:    []string{source},
		Scratch:  in.Bindings.Nested,
	}

	host := TargetsFor(PlatformPython)[0]
	lib, err := in.artifact(host, OutputDynamic)
	if err != nil {
		return nil, failure(ErrAssemblyFailure, in.Dir, err)
	}
	libFile := LibraryFileName(cfg.LibraryName(), OutputDynamic, a.HostOS)
	if err := placeFile(pkg, lib.Path, filepath.Join(pkgDir, libFile)); err != nil {
		return nil, err
	}

	module := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	data := pythonTemplateData{
		Name:         pkgName,
		Module:       module,
		Version:      cfg.Version,
		Author:       cfg.Python.Author,
		Description:  cfg.Python.Description,
		License:      cfg.Python.License,
		Dependencies: cfg.Python.Dependencies,
		DataFiles:    dataFilePatterns(),
		Library:      libFile,
	}

	marker := filepath.Join(pkgDir, "__init__.py")
	files := []struct {
		path string
		tmpl *template.Template
	}{
		{marker, initTemplate},
		{filepath.Join(in.Dir, "setup.py"), setupTemplate},
		{filepath.Join(in.Dir, "README.md"), readmeTemplate},
	}
	for _, f := range files {
		if err := renderFile(f.path, f.tmpl, data); err != nil {
			return nil, failure(ErrAssemblyFailure, f.path, err)
		}
		pkg.Files = append(pkg.Files, f.path)
	}

	pkg.Entry = marker
	return pkg, nil
}

// dataFilePatterns declares every library extension so one setup.py works on
// all hosts.
func dataFilePatterns() []string {
	patterns := make([]string, 0, len(dynamicLibraryExtensions))
	for _, ext := range dynamicLibraryExtensions {
		patterns = append(patterns, "*"+ext)
	}
	return patterns
}

type pythonTemplateData struct {
	Name         string
	Module       string
	Version      string
	Author       string
	Description  string
	License      string
	Dependencies []string
	DataFiles    []string
	Library      string
}

func renderFile(path string, tmpl *template.Template, data any) error {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("render %s: %w", filepath.Base(path), err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

var templateFuncs = template.FuncMap{
	"pylist": func(items []string) string {
		quoted := make([]string, 0, len(items))
		for _, item := range items {
			quoted = append(quoted, fmt.Sprintf("%q", item))
		}
		return "[" + strings.Join(quoted, ", ") + "]"
	},
}

var initTemplate = template.Must(template.New("init").Funcs(templateFuncs).Parse(
	`from .{{.Module}} import *  # noqa: F401,F403
`))

var setupTemplate = template.Must(template.New("setup").Funcs(templateFuncs).Parse(
	`from setuptools import setup, find_packages

setup(
    name="{{.Name}}",
    version="{{.Version}}",
    packages=find_packages(),
    package_data={
        "{{.Name}}": {{pylist .DataFiles}},
    },
    include_package_data=True,
    install_requires={{pylist .Dependencies}},
    author="{{.Author}}",
    author_email="",
    description="{{.Description}}",
    long_description=open("README.md").read(),
    long_description_content_type="text/markdown",
    url="",
    classifiers=[
        "Programming Language :: Python :: 3",
        "License :: OSI Approved :: {{.License}}",
        "Operating System :: OS Independent",
    ],
    python_requires=">=3.6",
)
`))

var readmeTemplate = template.Must(template.New("readme").Funcs(templateFuncs).Parse(
	"# {{.Name}}\n\n" +
		"{{.Description}}\n\n" +
		"Version {{.Version}}. The package bundles the native library `{{.Library}}`.\n\n" +
		"## Installation\n\n" +
		"```bash\npip install .\n```\n\n" +
		"## Usage\n\n" +
		"```python\nimport {{.Name}}\n\n# every exported function of the native library is available on the module\nprint(dir({{.Name}}))\n```\n",
))
