// Package config loads sdkbuild settings from a YAML file, the environment
// and command-line flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"strings"

	"github.com/contriboss/sdkbuild"
	"github.com/contriboss/sdkbuild/internal/observability"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DefaultPath is the config file read when no other path is given. It may
// be absent.
const DefaultPath = "sdkbuild.yaml"

// EnvPrefix prefixes every environment override, e.g. SDKBUILD_OUTPUT.
const EnvPrefix = "SDKBUILD"

// File holds all configuration. Build settings sit at the top level of the
// YAML file; logging and tracing have their own sections.
type File struct {
	Build   sdkbuild.Config             `mapstructure:",squash"`
	Log     observability.LogConfig     `mapstructure:"log"`
	Tracing observability.TracingConfig `mapstructure:"tracing"`
}

// flagKeys maps command-line flags onto config keys.
var flagKeys = map[string]string{
	"manifest-path": "manifest_path",
	"output":        "output",
	"release":       "release",
	"jobs":          "jobs",
	"log-level":     "log.level",
	"log-format":    "log.format",
}

// Load reads configuration from path, the environment and flags, in
// increasing order of precedence. A .env file in the working directory is
// loaded into the environment first.
//
// A missing file is an error unless path is DefaultPath. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*File, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("deployment_target", EnvPrefix+"_DEPLOYMENT_TARGET", "IPHONEOS_DEPLOYMENT_TARGET"); err != nil {
		return nil, fmt.Errorf("binding environment: %w", err)
	}

	if path == "" {
		path = DefaultPath
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		if !(errors.Is(err, fs.ErrNotExist) && path == DefaultPath) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag --%s: %w", name, err)
				}
			}
		}
	}

	var cfg File
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if flags != nil {
		if skip, err := flags.GetBool("skip-toolchain-setup"); err == nil && skip {
			cfg.Build.InstallToolchains = false
		}
	}

	if err := cfg.Build.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := sdkbuild.DefaultConfig()
	v.SetDefault("crate", d.Crate)
	v.SetDefault("manifest_path", d.ManifestPath)
	v.SetDefault("target_dir", d.TargetDir)
	v.SetDefault("output", d.OutputRoot)
	v.SetDefault("version", d.Version)
	v.SetDefault("framework_name", d.FrameworkName)
	v.SetDefault("release", d.Release)
	v.SetDefault("jobs", d.Jobs)
	v.SetDefault("deployment_target", d.DeploymentTarget)
	v.SetDefault("android_api_level", d.AndroidAPILevel)
	v.SetDefault("install_toolchains", d.InstallToolchains)
	v.SetDefault("generator_command", d.GeneratorCommand)
	v.SetDefault("python.author", d.Python.Author)
	v.SetDefault("python.description", d.Python.Description)
	v.SetDefault("python.license", d.Python.License)
	v.SetDefault("python.dependencies", d.Python.Dependencies)

	t := observability.DefaultTracingConfig()
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("tracing.service_name", t.ServiceName)
	v.SetDefault("tracing.service_version", t.ServiceVersion)
	v.SetDefault("tracing.endpoint", t.OTLPEndpoint)
	v.SetDefault("tracing.sample_rate", t.SampleRate)
}

// Validate checks configuration for issues that don't stop a build and
// returns warnings.
func (f *File) Validate(platforms []sdkbuild.Platform) []string {
	var warnings []string

	if cpus := runtime.NumCPU(); f.Build.Jobs > cpus {
		warnings = append(warnings, fmt.Sprintf("jobs %d exceeds the %d available CPUs", f.Build.Jobs, cpus))
	}

	if !f.Build.Release {
		warnings = append(warnings, "release is off; packages contain debug builds")
	}

	if f.Tracing.SampleRate < 0 || f.Tracing.SampleRate > 1 {
		warnings = append(warnings, fmt.Sprintf("tracing sample_rate %.2f is outside [0.0, 1.0]", f.Tracing.SampleRate))
	}

	if !contains(platforms, sdkbuild.PlatformIOS) && os.Getenv("IPHONEOS_DEPLOYMENT_TARGET") != "" {
		warnings = append(warnings, "IPHONEOS_DEPLOYMENT_TARGET is set but ios is not being built")
	}

	if !contains(platforms, sdkbuild.PlatformAndroid) && f.Build.AndroidAPILevel != 0 {
		warnings = append(warnings, "android_api_level is set but android is not being built")
	}

	return warnings
}

func contains(platforms []sdkbuild.Platform, p sdkbuild.Platform) bool {
	for _, candidate := range platforms {
		if candidate == p {
			return true
		}
	}
	return false
}
