// Package toolchain turns apps into installable artifacts by shelling out
// to per-platform build commands described in a YAML profile file.
package toolchain

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile describes how to build one platform. Build and Artifact are
// templates; the builder substitutes {{app}}, {{package}}, {{version}} and,
// in Build only, {{artifact}} before running anything.
type Profile struct {
	// Build is the shell command that produces the artifact.
	Build string `yaml:"build"`

	// Artifact is the output path template, relative to the artifact root.
	Artifact string `yaml:"artifact"`

	// Mime is recorded on the app after a confirmed build.
	Mime string `yaml:"mime"`
}

// Config maps platform names to build profiles.
type Config struct {
	Profiles map[string]Profile `yaml:"profiles"`
}

// Parse parses YAML content into a toolchain Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse toolchain config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load reads a toolchain config file and returns the parsed Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Default returns the built-in config used when no profile file is given.
func Default() *Config {
	return &Config{
		Profiles: map[string]Profile{
			"android": {
				Build:    "applyn-gradle assembleRelease --package {{package}} --version-code {{version}} --output {{artifact}}",
				Artifact: "{{app}}/{{version}}.apk",
				Mime:     "application/vnd.android.package-archive",
			},
		},
	}
}

func (c *Config) validate() error {
	if len(c.Profiles) == 0 {
		return fmt.Errorf("toolchain config declares no profiles")
	}
	for platform, p := range c.Profiles {
		if p.Build == "" {
			return fmt.Errorf("toolchain profile %q has no build command", platform)
		}
		if p.Artifact == "" {
			return fmt.Errorf("toolchain profile %q has no artifact template", platform)
		}
	}
	return nil
}
