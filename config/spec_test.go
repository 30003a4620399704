package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/debspin/debspin/internal/build"
)

func writeSpec(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "spin.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadSpec(t *testing.T) {
	path := writeSpec(t, `
os_name: Furrian
version_code: "1.0"
desktop_manager: xfce
packages:
  - firefox-esr
  - vim
logo_path: /tmp/logo.png
`)

	cfg, err := LoadSpec(path)
	require.NoError(t, err)

	assert.Equal(t, "Furrian", cfg.OSName)
	assert.Equal(t, "1.0", cfg.VersionCode)
	assert.Equal(t, build.DesktopXFCE, cfg.DesktopManager)
	assert.Equal(t, []string{"firefox-esr", "vim"}, cfg.Packages)
	assert.Equal(t, "/tmp/logo.png", cfg.LogoPath)
	assert.False(t, cfg.CreatedAt.IsZero())
}

func TestLoadSpecEmptyDesktopMeansMinimal(t *testing.T) {
	path := writeSpec(t, "os_name: Server\nversion_code: \"2.0\"\n")

	cfg, err := LoadSpec(path)
	require.NoError(t, err)
	assert.Equal(t, build.DesktopNone, cfg.DesktopManager)
}

func TestLoadSpecUnknownDesktop(t *testing.T) {
	path := writeSpec(t, "os_name: Spin\ndesktop_manager: enlightenment\n")

	_, err := LoadSpec(path)
	assert.Error(t, err)
}

func TestLoadSpecMissingFile(t *testing.T) {
	_, err := LoadSpec(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadSpecMalformedYAML(t *testing.T) {
	path := writeSpec(t, "os_name: [unclosed\n")

	_, err := LoadSpec(path)
	assert.Error(t, err)
}
