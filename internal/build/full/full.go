// Package full implements the privileged build route. Every heavy step is
// delegated to an external tool: debootstrap assembles the base system,
// chroot installs packages and configures the live session, mksquashfs
// compresses the root filesystem and xorriso masters the final ISO.
package full

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/debspin/debspin/internal/branding"
	"github.com/debspin/debspin/internal/build"
	"github.com/debspin/debspin/internal/logging"
	"github.com/debspin/debspin/internal/probe"
	"github.com/debspin/debspin/internal/progress"
)

// Runner executes one external tool invocation. A non-nil error means the
// tool was missing or exited non-zero; the route treats both the same way.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// ExecRunner runs external tools on the host, streaming their output.
type ExecRunner struct {
	Logger *slog.Logger
	Stdout io.Writer
	Stderr io.Writer
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	path, err := exec.LookPath(name)
	if err != nil {
		// The capability probe saw the tool; treat its disappearance
		// as a race, identical to a non-zero exit.
		return build.WrapError(build.ErrExternalTool, err, "tool %s not found", name)
	}

	logging.Ensure(r.Logger).Info("running external tool",
		"tool", name,
		"command", name+" "+strings.Join(args, " "),
	)

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	if err := cmd.Run(); err != nil {
		return build.WrapError(build.ErrExternalTool, err, "%s failed", name)
	}
	return nil
}

// Builder is the full build path. Zero-value tool names and release fall
// back to the defaults used by the capability probe.
type Builder struct {
	Logger *slog.Logger
	Runner Runner

	BootstrapTool   string
	CompressionTool string
	ISOTool         string

	// Release is the Debian suite to bootstrap. Defaults to stable.
	Release string
	// Mirror is the package mirror handed to the bootstrap tool.
	Mirror string
}

// Kind implements build.Path.
func (b *Builder) Kind() build.PathKind {
	return build.PathFull
}

// Run drives the six-step external tool chain. A failing step aborts the
// route; the orchestrator owns the fallback, the route never retries a
// step in place because the tools are not safely re-runnable from partial
// state.
func (b *Builder) Run(ctx context.Context, workDir string, cfg build.Config, pub progress.Publisher) (build.Output, error) {
	logger := logging.Ensure(b.Logger).With("path", "full")
	runner := b.runner()

	rootfsDir := filepath.Join(workDir, "rootfs")
	stagingDir := filepath.Join(workDir, "iso")
	liveDir := filepath.Join(stagingDir, "live")
	bootDir := filepath.Join(stagingDir, "boot", "grub")

	pub.Publish(20, "Bootstrapping base system...")
	if err := runner.Run(ctx, b.bootstrapTool(),
		"--variant=minbase",
		b.release(),
		rootfsDir,
		b.mirror(),
	); err != nil {
		return build.Output{}, err
	}
	if err := build.CheckCancel(ctx); err != nil {
		return build.Output{}, err
	}

	pub.Publish(40, "Installing desktop environment and packages...")
	packages := append(build.DesktopPackages(cfg.Desktop()), cfg.DedupedPackages()...)
	if len(packages) > 0 {
		args := append([]string{rootfsDir, "apt-get", "install", "-y", "--no-install-recommends"}, packages...)
		if err := runner.Run(ctx, "chroot", args...); err != nil {
			return build.Output{}, err
		}
	} else {
		logger.Info("no packages requested, skipping install step")
	}
	if err := build.CheckCancel(ctx); err != nil {
		return build.Output{}, err
	}

	pub.Publish(60, "Configuring live environment...")
	if err := runner.Run(ctx, "chroot", rootfsDir, "/bin/sh", "-c", liveConfigScript(cfg)); err != nil {
		return build.Output{}, err
	}
	brand, err := branding.Apply(rootfsDir, cfg.LogoPath, cfg.BackgroundPath, branding.FullLayout)
	if err != nil {
		return build.Output{}, build.WrapError(build.ErrIO, err, "apply branding")
	}
	if err := build.CheckCancel(ctx); err != nil {
		return build.Output{}, err
	}

	pub.Publish(70, "Compressing filesystem image...")
	if err := os.MkdirAll(liveDir, 0o755); err != nil {
		return build.Output{}, build.WrapError(build.ErrIO, err, "create staging tree")
	}
	if err := runner.Run(ctx, b.compressionTool(),
		rootfsDir,
		filepath.Join(liveDir, "filesystem.squashfs"),
		"-comp", "xz",
		"-noappend",
	); err != nil {
		return build.Output{}, err
	}
	if err := build.CheckCancel(ctx); err != nil {
		return build.Output{}, err
	}

	pub.Publish(85, "Writing bootloader configuration...")
	if err := build.WriteBootConfig(bootDir, cfg); err != nil {
		return build.Output{}, build.WrapError(build.ErrIO, err, "write bootloader configuration")
	}
	meta := build.NewMetadata(cfg, true)
	meta.HasLogo = brand.HasLogo
	meta.LogoFilename = brand.LogoFilename
	meta.HasBackground = brand.HasBackground
	meta.BackgroundFilename = brand.BackgroundFilename
	if err := meta.WriteFile(filepath.Join(stagingDir, build.MetadataFilename)); err != nil {
		return build.Output{}, build.WrapError(build.ErrIO, err, "write metadata")
	}
	if err := build.WritePackagesList(stagingDir, cfg); err != nil {
		return build.Output{}, build.WrapError(build.ErrIO, err, "write package list")
	}
	if err := build.WriteReadme(stagingDir, cfg, true); err != nil {
		return build.Output{}, build.WrapError(build.ErrIO, err, "write README")
	}
	if err := build.CheckCancel(ctx); err != nil {
		return build.Output{}, err
	}

	pub.Publish(90, "Mastering ISO image...")
	isoPath := filepath.Join(workDir, cfg.BaseName()+".iso")
	if err := runner.Run(ctx, b.isoTool(),
		"-as", "mkisofs",
		"-r", "-J", "-joliet-long", "-l",
		"-iso-level", "3",
		"-o", isoPath,
		stagingDir,
	); err != nil {
		return build.Output{}, err
	}

	info, err := os.Stat(isoPath)
	if err != nil {
		// The mastering tool exited zero but left nothing behind.
		return build.Output{}, build.WrapError(build.ErrExternalTool, err, "iso image missing after mastering")
	}
	logger.Info("bootable image mastered", "artifact", isoPath, "size_bytes", info.Size())

	return build.Output{ArtifactPath: isoPath, SizeBytes: info.Size()}, nil
}

// liveConfigScript prepares users, locale and the live-session hooks inside
// the chroot in one invocation.
func liveConfigScript(cfg build.Config) string {
	hostname := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(cfg.OSName), " ", "-"))
	return strings.Join([]string{
		fmt.Sprintf("echo %s > /etc/hostname", hostname),
		"echo 'en_US.UTF-8 UTF-8' > /etc/locale.gen",
		"locale-gen || true",
		"id live >/dev/null 2>&1 || useradd -m -s /bin/bash live",
		"echo 'live:live' | chpasswd",
		"adduser live sudo || true",
		"systemctl enable ssh 2>/dev/null || true",
	}, " && ")
}

func (b *Builder) runner() Runner {
	if b.Runner != nil {
		return b.Runner
	}
	return &ExecRunner{Logger: b.Logger}
}

func (b *Builder) bootstrapTool() string {
	if b.BootstrapTool != "" {
		return b.BootstrapTool
	}
	return probe.DefaultBootstrapTool
}

func (b *Builder) compressionTool() string {
	if b.CompressionTool != "" {
		return b.CompressionTool
	}
	return probe.DefaultCompressionTool
}

func (b *Builder) isoTool() string {
	if b.ISOTool != "" {
		return b.ISOTool
	}
	return probe.DefaultISOTool
}

func (b *Builder) release() string {
	if b.Release != "" {
		return b.Release
	}
	return "stable"
}

func (b *Builder) mirror() string {
	if b.Mirror != "" {
		return b.Mirror
	}
	return "http://deb.debian.org/debian"
}
