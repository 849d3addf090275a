package sdkbuild

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/magefile/mage/sh"
)

// copyFile copies srcPath to destPath, creating parent directories as needed.
func copyFile(srcPath, destPath string) error {
	info, err := os.Stat(srcPath)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", srcPath)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return err
	}

	if err := sh.Copy(destPath, srcPath); err != nil {
		return err
	}
	return os.Chmod(destPath, info.Mode().Perm())
}

// moveFile renames srcPath to destPath, falling back to copy and remove when
// the two are on different filesystems.
func moveFile(srcPath, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return err
	}
	if err := os.Rename(srcPath, destPath); err == nil {
		return nil
	}
	if err := copyFile(srcPath, destPath); err != nil {
		return err
	}
	return os.Remove(srcPath)
}

// exists reports whether path exists.
func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// isDynamicLibrary reports whether path names a loadable library.
func isDynamicLibrary(path string) bool {
	return MatchesExtension(filepath.Base(path), dynamicLibraryExtensions...)
}

// removeAll deletes every path, continuing past failures, and returns the
// first error.
func removeAll(paths ...string) error {
	var first error
	for _, p := range paths {
		if err := sh.Rm(p); err != nil && first == nil {
			first = err
		}
	}
	return first
}
