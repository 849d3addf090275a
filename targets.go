package sdkbuild

import (
	"fmt"
	"runtime"
)

// Operating systems used for library file naming.
const (
	osIOS     = "ios"
	osAndroid = "android"
	osDarwin  = "darwin"
	osWindows = "windows"
)

var (
	iosTargets = []Target{
		{Triple: "aarch64-apple-ios", Name: "device-arm64", ABI: "ios-arm64", OS: osIOS},
		{Triple: "aarch64-apple-ios-sim", Name: "simulator-arm64", ABI: "ios-arm64-sim", OS: osIOS},
	}

	androidTargets = []Target{
		{Triple: "armv7-linux-androideabi", Name: "armv7", ABI: "armeabi-v7a", OS: osAndroid},
		{Triple: "aarch64-linux-android", Name: "arm64", ABI: "arm64-v8a", OS: osAndroid},
		{Triple: "i686-linux-android", Name: "x86", ABI: "x86", OS: osAndroid},
		{Triple: "x86_64-linux-android", Name: "x86_64", ABI: "x86_64", OS: osAndroid},
	}
)

// PlatformProfile holds the static facts about a platform.
type PlatformProfile struct {
	Platform Platform

	// Language is the binding generator's language tag.
	Language string

	// Configuration is the crate output the platform's packaging needs.
	Configuration BuildConfiguration

	// UsesDeploymentTarget marks platforms whose builds read IPHONEOS_DEPLOYMENT_TARGET.
	UsesDeploymentTarget bool

	// UsesNDK marks platforms compiled through cargo-ndk.
	UsesNDK bool
}

// Platforms returns every supported platform in build order.
func Platforms() []Platform {
	return []Platform{PlatformIOS, PlatformAndroid, PlatformPython}
}

// ParsePlatform converts a platform name into a Platform.
func ParsePlatform(name string) (Platform, error) {
	for _, p := range Platforms() {
		if string(p) == name {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown platform %q", name)
}

// ParseSelector resolves a command-line selector: a platform name or "all".
func ParseSelector(selector string) ([]Platform, error) {
	if selector == "all" {
		return Platforms(), nil
	}
	p, err := ParsePlatform(selector)
	if err != nil {
		return nil, err
	}
	return []Platform{p}, nil
}

// Profile returns the static profile of a platform.
func Profile(p Platform) PlatformProfile {
	switch p {
	case PlatformIOS:
		return PlatformProfile{
			Platform:             p,
			Language:             "swift",
			Configuration:        BuildConfiguration{OutputKinds: []OutputKind{OutputDynamic, OutputStatic}},
			UsesDeploymentTarget: true,
		}
	case PlatformAndroid:
		return PlatformProfile{
			Platform:      p,
			Language:      "kotlin",
			Configuration: BuildConfiguration{OutputKinds: []OutputKind{OutputDynamic}},
			UsesNDK:       true,
		}
	default:
		return PlatformProfile{
			Platform:      p,
			Language:      "python",
			Configuration: BuildConfiguration{OutputKinds: []OutputKind{OutputDynamic}},
		}
	}
}

// TargetsFor returns the fixed, ordered set of targets a platform needs.
// The returned slice is a copy.
func TargetsFor(p Platform) []Target {
	switch p {
	case PlatformIOS:
		return append([]Target{}, iosTargets...)
	case PlatformAndroid:
		return append([]Target{}, androidTargets...)
	default:
		return []Target{{Name: "host", ABI: runtime.GOOS + "-" + runtime.GOARCH, OS: runtime.GOOS}}
	}
}

// LibraryFileName returns the file name cargo gives a library of the given
// kind when compiling for goos. It is the only place library extensions are
// decided.
func LibraryFileName(libName string, kind OutputKind, goos string) string {
	if kind == OutputStatic {
		if goos == osWindows {
			return libName + ".lib"
		}
		return "lib" + libName + ".a"
	}

	switch goos {
	case osDarwin, osIOS:
		return "lib" + libName + ".dylib"
	case osWindows:
		return libName + ".dll"
	default:
		return "lib" + libName + ".so"
	}
}

// dynamicLibraryExtensions lists every extension LibraryFileName produces for
// dynamic libraries.
var dynamicLibraryExtensions = []string{".so", ".dylib", ".dll"}
