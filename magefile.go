//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Default target to run when none is specified.
var Default = All

func sdkbuild(platform string) error {
	return sh.RunV("go", "run", "./cmd/sdkbuild", platform)
}

// Ios builds the XCFramework and Swift bindings.
func Ios() error {
	return sdkbuild("ios")
}

// Android builds the jniLibs and Kotlin bindings.
func Android() error {
	return sdkbuild("android")
}

// Python builds the host Python package.
func Python() error {
	return sdkbuild("python")
}

// All builds every platform, stopping at the first failure.
func All() {
	mg.SerialDeps(Ios, Android, Python)
}

// Clean removes all generated bindings.
func Clean() error {
	return sh.Rm("bindings")
}

// Test runs the package tests.
func Test() error {
	return sh.RunV("go", "test", "./...")
}
