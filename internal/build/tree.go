package build

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Fixed names inside the artifact tree.
const (
	PackagesFilename   = "packages.list"
	ReadmeFilename     = "README.txt"
	BootConfigFilename = "grub.cfg"
)

// WritePackagesList writes one package per line in config order, duplicates
// removed. The file content matches the metadata packages array exactly.
func WritePackagesList(treeDir string, cfg Config) error {
	var b strings.Builder
	for _, pkg := range cfg.DedupedPackages() {
		b.WriteString(pkg)
		b.WriteByte('\n')
	}
	return os.WriteFile(filepath.Join(treeDir, PackagesFilename), []byte(b.String()), 0o644)
}

// WriteBootConfig writes the GRUB configuration offering Live and Install
// entries. The stub artifact carries the same file as a placeholder.
func WriteBootConfig(bootDir string, cfg Config) error {
	if err := os.MkdirAll(bootDir, 0o755); err != nil {
		return err
	}
	title := cfg.OSName + " " + cfg.VersionCode
	content := fmt.Sprintf(`# GRUB Configuration for %s
set default=0
set timeout=10

menuentry "%s - Live" {
    linux /boot/vmlinuz boot=live
    initrd /boot/initrd.img
}

menuentry "%s - Install" {
    linux /boot/vmlinuz
    initrd /boot/initrd.img
}
`, cfg.OSName, title, title)
	return os.WriteFile(filepath.Join(bootDir, BootConfigFilename), []byte(content), 0o644)
}

// WriteReadme writes the human-readable summary of the configuration,
// stating explicitly whether the artifact is bootable.
func WriteReadme(treeDir string, cfg Config, bootable bool) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s - Custom Debian Spinoff\n", cfg.OSName)
	fmt.Fprintf(&b, "Version: %s\n\n", cfg.VersionCode)
	fmt.Fprintf(&b, "This artifact describes a custom Debian distribution with:\n")
	fmt.Fprintf(&b, "- Desktop Manager: %s\n", cfg.Desktop())
	fmt.Fprintf(&b, "- Custom packages: %d packages included\n\n", len(cfg.DedupedPackages()))

	if bootable {
		b.WriteString(`This image is bootable.

To use this ISO:
1. Write it to a USB drive using tools like:
   - Rufus (Windows)
   - Etcher (Cross-platform)
   - dd command (Linux/Mac)

2. Boot from the USB drive

3. Choose between:
   - Try the live environment
   - Install to your computer
`)
	} else {
		b.WriteString(`This artifact is a demonstration build and is NOT bootable.
It documents what a full build would contain. To produce a real bootable
ISO, run the build with root privileges on a host that provides
debootstrap, mksquashfs and xorriso.
`)
	}

	b.WriteString("\nCreated with Debspin - Debian Spinoff Creator\n")
	return os.WriteFile(filepath.Join(treeDir, ReadmeFilename), []byte(b.String()), 0o644)
}
