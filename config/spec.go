package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/debspin/debspin/internal/build"
)

// Spec is the on-disk YAML form of a build configuration.
type Spec struct {
	OSName         string   `yaml:"os_name"`
	VersionCode    string   `yaml:"version_code"`
	DesktopManager string   `yaml:"desktop_manager"`
	Packages       []string `yaml:"packages"`
	LogoPath       string   `yaml:"logo_path"`
	BackgroundPath string   `yaml:"background_path"`
}

// LoadSpec reads a YAML spec file into a build configuration. The desktop
// manager accepts display names and short aliases; an empty value means
// the minimal/server choice.
func LoadSpec(path string) (build.Config, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return build.Config{}, fmt.Errorf("read spec file: %w", err)
	}

	var spec Spec
	if err := yaml.Unmarshal(payload, &spec); err != nil {
		return build.Config{}, fmt.Errorf("parse spec file %s: %w", path, err)
	}

	desktop, err := build.ParseDesktopManager(spec.DesktopManager)
	if err != nil {
		return build.Config{}, fmt.Errorf("spec file %s: %w", path, err)
	}

	return build.Config{
		OSName:         spec.OSName,
		VersionCode:    spec.VersionCode,
		DesktopManager: desktop,
		Packages:       spec.Packages,
		LogoPath:       spec.LogoPath,
		BackgroundPath: spec.BackgroundPath,
		CreatedAt:      time.Now(),
	}, nil
}
