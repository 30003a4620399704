package probe

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookPathWith(present ...string) func(string) (string, error) {
	return func(name string) (string, error) {
		for _, p := range present {
			if p == name {
				return "/usr/bin/" + name, nil
			}
		}
		return "", errors.New("executable file not found in $PATH")
	}
}

func TestProbeAllCapabilities(t *testing.T) {
	p := &SystemProber{
		EUID:     func() int { return 0 },
		LookPath: lookPathWith(DefaultBootstrapTool, DefaultCompressionTool, DefaultISOTool),
	}

	caps := p.Probe()
	assert.True(t, caps.HasPrivilege)
	assert.True(t, caps.HasBootstrapTool)
	assert.True(t, caps.HasCompressionTool)
	assert.True(t, caps.HasISOTool)
	assert.True(t, caps.FullSupported())
}

func TestProbeWithoutPrivilege(t *testing.T) {
	p := &SystemProber{
		EUID:     func() int { return 1000 },
		LookPath: lookPathWith(DefaultBootstrapTool, DefaultCompressionTool, DefaultISOTool),
	}

	caps := p.Probe()
	assert.False(t, caps.HasPrivilege)
	assert.False(t, caps.FullSupported())
}

func TestProbeMissingToolIsFalseNotError(t *testing.T) {
	p := &SystemProber{
		EUID:     func() int { return 0 },
		LookPath: lookPathWith(DefaultBootstrapTool, DefaultISOTool),
	}

	caps := p.Probe()
	assert.True(t, caps.HasBootstrapTool)
	assert.False(t, caps.HasCompressionTool)
	assert.False(t, caps.FullSupported())
}

func TestProbeHonorsCustomToolNames(t *testing.T) {
	var asked []string
	p := &SystemProber{
		BootstrapTool:   "mmdebstrap",
		CompressionTool: "mksquashfs",
		ISOTool:         "genisoimage",
		EUID:            func() int { return 0 },
		LookPath: func(name string) (string, error) {
			asked = append(asked, name)
			return "/usr/bin/" + name, nil
		},
	}

	caps := p.Probe()
	require.True(t, caps.FullSupported())
	assert.Equal(t, []string{"mmdebstrap", "mksquashfs", "genisoimage"}, asked)
}

func TestProbeReportsDiskSpace(t *testing.T) {
	p := &SystemProber{
		EUID:     func() int { return 1000 },
		LookPath: lookPathWith(),
	}

	caps := p.Probe()
	// Statfs on the real temp dir; any sane host has space there.
	assert.Greater(t, caps.DiskFreeBytes, uint64(0))
}
