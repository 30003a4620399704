package probe

import (
	"os"
	"os/exec"

	"golang.org/x/sys/unix"
)

// Default tool names the full build path delegates to.
const (
	DefaultBootstrapTool   = "debootstrap"
	DefaultCompressionTool = "mksquashfs"
	DefaultISOTool         = "xorriso"
)

// Capabilities describes what the execution environment supports. It is
// derived fresh for every build attempt; the environment may change
// between runs.
type Capabilities struct {
	HasPrivilege       bool
	HasBootstrapTool   bool
	HasCompressionTool bool
	HasISOTool         bool

	// DiskFreeBytes is informational only. It never participates in
	// path selection.
	DiskFreeBytes uint64
}

// FullSupported reports whether the privileged full build path is viable.
func (c Capabilities) FullSupported() bool {
	return c.HasPrivilege && c.HasBootstrapTool && c.HasCompressionTool && c.HasISOTool
}

// SystemProber inspects the host for privilege and the external tools the
// full build path needs. Probing is pure inspection: tools are located but
// never executed. The zero value probes with the default tool names.
type SystemProber struct {
	BootstrapTool   string
	CompressionTool string
	ISOTool         string

	// Overridable seams for tests. Nil values use the real host.
	EUID     func() int
	LookPath func(file string) (string, error)
	Statfs   func(path string, buf *unix.Statfs_t) error
}

// Probe derives the capability descriptor. It never fails; a missing tool
// or privilege is reported as false, not as an error.
func (p *SystemProber) Probe() Capabilities {
	euid := p.EUID
	if euid == nil {
		euid = os.Geteuid
	}
	lookPath := p.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}

	caps := Capabilities{
		HasPrivilege:       euid() == 0,
		HasBootstrapTool:   toolPresent(lookPath, p.BootstrapTool, DefaultBootstrapTool),
		HasCompressionTool: toolPresent(lookPath, p.CompressionTool, DefaultCompressionTool),
		HasISOTool:         toolPresent(lookPath, p.ISOTool, DefaultISOTool),
	}

	statfs := p.Statfs
	if statfs == nil {
		statfs = unix.Statfs
	}
	var stat unix.Statfs_t
	if err := statfs(os.TempDir(), &stat); err == nil {
		caps.DiskFreeBytes = stat.Bavail * uint64(stat.Bsize)
	}

	return caps
}

func toolPresent(lookPath func(string) (string, error), name, fallback string) bool {
	if name == "" {
		name = fallback
	}
	_, err := lookPath(name)
	return err == nil
}
