package build

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRequiresOSName(t *testing.T) {
	err := Config{OSName: ""}.Validate()
	require.Error(t, err)
	assert.Equal(t, ErrInvalidConfig, KindOf(err))

	err = Config{OSName: "   "}.Validate()
	require.Error(t, err)
	assert.Equal(t, ErrInvalidConfig, KindOf(err))
}

func TestValidateChecksBrandingReadability(t *testing.T) {
	dir := t.TempDir()
	logo := filepath.Join(dir, "logo.png")
	require.NoError(t, os.WriteFile(logo, []byte("png"), 0o644))

	assert.NoError(t, Config{OSName: "Spin", LogoPath: logo}.Validate())

	err := Config{OSName: "Spin", LogoPath: filepath.Join(dir, "missing.png")}.Validate()
	require.Error(t, err)
	assert.Equal(t, ErrInvalidConfig, KindOf(err))
}

func TestDedupedPackagesPreservesOrder(t *testing.T) {
	cfg := Config{
		OSName:   "Spin",
		Packages: []string{"vim", "git", "vim", "  ", "htop", "git"},
	}
	assert.Equal(t, []string{"vim", "git", "htop"}, cfg.DedupedPackages())
}

func TestBaseName(t *testing.T) {
	assert.Equal(t, "Furrian-1.0", Config{OSName: "Furrian", VersionCode: "1.0"}.BaseName())
	assert.Equal(t, "Furrian", Config{OSName: "Furrian"}.BaseName())
}

func TestParseDesktopManager(t *testing.T) {
	cases := map[string]DesktopManager{
		"KDE Plasma":            DesktopKDE,
		"kde":                   DesktopKDE,
		"GNOME":                 DesktopGNOME,
		"xfce4":                 DesktopXFCE,
		"i3":                    DesktopI3,
		"None (Server/Minimal)": DesktopNone,
		"none":                  DesktopNone,
		"":                      DesktopNone,
	}
	for input, want := range cases {
		got, err := ParseDesktopManager(input)
		require.NoError(t, err, "input %q", input)
		assert.Equal(t, want, got, "input %q", input)
	}

	_, err := ParseDesktopManager("enlightenment")
	assert.Error(t, err)
}

func TestDesktopPackages(t *testing.T) {
	assert.Contains(t, DesktopPackages(DesktopKDE), "kde-plasma-desktop")
	assert.Contains(t, DesktopPackages(DesktopXFCE), "xfce4")
	assert.Empty(t, DesktopPackages(DesktopNone))

	// Callers get a copy, not the shared table.
	pkgs := DesktopPackages(DesktopI3)
	pkgs[0] = "mutated"
	assert.Contains(t, DesktopPackages(DesktopI3), "i3")
}

func TestMetadataRoundTrip(t *testing.T) {
	cfg := Config{
		OSName:         "Furrian",
		VersionCode:    "1.0",
		DesktopManager: DesktopMATE,
		Packages:       []string{"vim", "vim", "git"},
	}
	meta := NewMetadata(cfg, false)
	assert.Equal(t, ISOType, meta.ISOType)
	assert.False(t, meta.Bootable)
	assert.False(t, meta.LiveBoot)
	assert.False(t, meta.InstallationCapable)
	assert.Equal(t, []string{"vim", "git"}, meta.Packages)

	path := filepath.Join(t.TempDir(), MetadataFilename)
	require.NoError(t, meta.WriteFile(path))

	loaded, err := ReadMetadataFile(path)
	require.NoError(t, err)
	assert.Equal(t, meta, loaded)
}

func TestBootableMetadataImpliesLiveAndInstall(t *testing.T) {
	meta := NewMetadata(Config{OSName: "Spin", VersionCode: "2.0"}, true)
	assert.True(t, meta.Bootable)
	assert.True(t, meta.LiveBoot)
	assert.True(t, meta.InstallationCapable)
}
