package sdkbuild

import "fmt"

// AssemblerRegistry maps platforms to their assemblers.
//
// # Usage
//
// Create a registry with all standard assemblers:
//
//	registry := sdkbuild.NewAssemblerRegistry(&sdkbuild.XcodebuildBundler{Runner: runner})
//
// Or start empty and register custom ones:
//
//	registry := &sdkbuild.AssemblerRegistry{}
//	registry.Register(&MyAssembler{})
//
// # Thread Safety
//
// AssemblerRegistry is NOT thread-safe for registration.
// Register all assemblers before running a pipeline.
type AssemblerRegistry struct {
	assemblers []Assembler
}

// NewAssemblerRegistry creates a registry with the iOS, Android and Python
// assemblers registered.
func NewAssemblerRegistry(bundler Bundler) *AssemblerRegistry {
	registry := &AssemblerRegistry{}

	registry.Register(&IOSAssembler{Bundler: bundler})
	registry.Register(&AndroidAssembler{})
	registry.Register(NewPythonAssembler())

	return registry
}

// Register adds an assembler. A later registration for the same platform
// replaces the earlier one.
func (r *AssemblerRegistry) Register(assembler Assembler) {
	for i, existing := range r.assemblers {
		if existing.Platform() == assembler.Platform() {
			r.assemblers[i] = assembler
			return
		}
	}
	r.assemblers = append(r.assemblers, assembler)
}

// AssemblerFor returns the assembler of a platform.
func (r *AssemblerRegistry) AssemblerFor(p Platform) (Assembler, error) {
	for _, assembler := range r.assemblers {
		if assembler.Platform() == p {
			return assembler, nil
		}
	}
	return nil, fmt.Errorf("no assembler registered for platform %s", p)
}

// ListAssemblers returns a copy of all registered assemblers.
func (r *AssemblerRegistry) ListAssemblers() []Assembler {
	return append([]Assembler{}, r.assemblers...)
}
