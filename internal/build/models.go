package build

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// DesktopManager identifies the desktop environment installed on the spin.
type DesktopManager string

// Supported desktop environments.
const (
	DesktopKDE      DesktopManager = "KDE Plasma"
	DesktopGNOME    DesktopManager = "GNOME"
	DesktopXFCE     DesktopManager = "XFCE"
	DesktopLXDE     DesktopManager = "LXDE"
	DesktopCinnamon DesktopManager = "Cinnamon"
	DesktopMATE     DesktopManager = "MATE"
	DesktopBudgie   DesktopManager = "Budgie"
	DesktopI3       DesktopManager = "i3"
	DesktopNone     DesktopManager = "None (Server/Minimal)"
)

// DesktopManagers lists the supported desktop environments in menu order.
func DesktopManagers() []DesktopManager {
	return []DesktopManager{
		DesktopKDE,
		DesktopGNOME,
		DesktopXFCE,
		DesktopLXDE,
		DesktopCinnamon,
		DesktopMATE,
		DesktopBudgie,
		DesktopI3,
		DesktopNone,
	}
}

// ParseDesktopManager resolves a user-supplied name, accepting both the
// display name and a short lowercase alias.
func ParseDesktopManager(name string) (DesktopManager, error) {
	trimmed := strings.TrimSpace(name)
	for _, dm := range DesktopManagers() {
		if strings.EqualFold(trimmed, string(dm)) {
			return dm, nil
		}
	}
	switch strings.ToLower(trimmed) {
	case "kde", "plasma", "kde-plasma":
		return DesktopKDE, nil
	case "gnome":
		return DesktopGNOME, nil
	case "xfce", "xfce4":
		return DesktopXFCE, nil
	case "lxde":
		return DesktopLXDE, nil
	case "cinnamon":
		return DesktopCinnamon, nil
	case "mate":
		return DesktopMATE, nil
	case "budgie":
		return DesktopBudgie, nil
	case "i3":
		return DesktopI3, nil
	case "none", "server", "minimal", "":
		return DesktopNone, nil
	}
	return "", fmt.Errorf("unknown desktop manager %q", name)
}

// Config is the immutable input for one build session. It is constructed
// once by the caller and never mutated during a build.
type Config struct {
	OSName         string
	VersionCode    string
	DesktopManager DesktopManager
	Packages       []string
	LogoPath       string
	BackgroundPath string
	CreatedAt      time.Time
}

// Validate rejects configurations the pipeline must not start on. It runs
// before the first progress event is emitted.
func (c Config) Validate() error {
	if strings.TrimSpace(c.OSName) == "" {
		return NewError(ErrInvalidConfig, "os name must not be empty")
	}
	if c.DesktopManager != "" {
		if _, err := ParseDesktopManager(string(c.DesktopManager)); err != nil {
			return WrapError(ErrInvalidConfig, err, "desktop manager")
		}
	}
	for _, asset := range []string{c.LogoPath, c.BackgroundPath} {
		if asset == "" {
			continue
		}
		f, err := os.Open(asset)
		if err != nil {
			return WrapError(ErrInvalidConfig, err, "branding asset %s is not readable", asset)
		}
		f.Close()
	}
	return nil
}

// Desktop returns the configured desktop manager, defaulting to none.
func (c Config) Desktop() DesktopManager {
	if c.DesktopManager == "" {
		return DesktopNone
	}
	return c.DesktopManager
}

// DedupedPackages returns the package list with blanks trimmed and
// duplicates removed, preserving first-occurrence order.
func (c Config) DedupedPackages() []string {
	seen := make(map[string]struct{}, len(c.Packages))
	deduped := make([]string, 0, len(c.Packages))
	for _, pkg := range c.Packages {
		pkg = strings.TrimSpace(pkg)
		if pkg == "" {
			continue
		}
		if _, ok := seen[pkg]; ok {
			continue
		}
		seen[pkg] = struct{}{}
		deduped = append(deduped, pkg)
	}
	return deduped
}

// BaseName is the artifact basename: os name with the version code appended.
func (c Config) BaseName() string {
	name := strings.TrimSpace(c.OSName)
	version := strings.TrimSpace(c.VersionCode)
	if version == "" {
		return name
	}
	return name + "-" + version
}

// PathKind distinguishes which build route produced an artifact.
type PathKind string

const (
	// PathFull is the privileged route producing a bootable image.
	PathFull PathKind = "full"
	// PathStub is the unprivileged fallback producing a demonstration artifact.
	PathStub PathKind = "stub"
)

// Output is what a build path hands back to the orchestrator. All paths are
// still inside the working directory; the orchestrator finalizes them.
type Output struct {
	ArtifactPath string
	SizeBytes    int64
	Companions   []string
}

// Result is the successful outcome of one build invocation, with artifact
// locations already moved to their caller-visible destination.
type Result struct {
	BuildID      string
	Kind         PathKind
	ArtifactPath string
	SizeBytes    int64
	Companions   []string
}
