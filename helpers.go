package sdkbuild

import (
	"fmt"
	"strings"
)

// MatchesExtension checks if a filename has any of the given extensions.
//
// The check is case-insensitive and works with or without a leading dot:
//
//	MatchesExtension("libpubkycore.DYLIB", ".dylib") // true
//	MatchesExtension("pubkycore.kt", "kt")           // true
func MatchesExtension(filename string, extensions ...string) bool {
	for _, ext := range extensions {
		if strings.HasSuffix(strings.ToLower(filename), strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

// BuildError creates a standardized tool error with output context.
//
// With error and output:
//
//	cargo failed: exit status 101
//
//	Build output:
//	error[E0432]: unresolved import
//
// With error but no output:
//
//	cargo failed: exit status 101
//
// With output but no error:
//
//	cargo failed
//
//	Build output:
//	... output lines ...
func BuildError(tool string, output []string, err error) error {
	outputStr := strings.TrimSpace(strings.Join(output, "\n"))

	switch {
	case err != nil && outputStr != "":
		return fmt.Errorf("%s failed: %w\n\nBuild output:\n%s", tool, err, outputStr)
	case err != nil:
		return fmt.Errorf("%s failed: %w", tool, err)
	case outputStr != "":
		return fmt.Errorf("%s failed\n\nBuild output:\n%s", tool, outputStr)
	default:
		return fmt.Errorf("%s failed", tool)
	}
}
