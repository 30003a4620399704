// Package stub implements the unprivileged build route. It produces a
// descriptive, non-bootable demonstration artifact with the same metadata
// shape as a real image, so callers and tests can exercise the whole
// pipeline on any host.
package stub

import (
	"archive/tar"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kdomanski/iso9660"
	"github.com/klauspost/compress/gzip"

	"github.com/debspin/debspin/internal/branding"
	"github.com/debspin/debspin/internal/build"
	"github.com/debspin/debspin/internal/logging"
	"github.com/debspin/debspin/internal/progress"
)

// Builder is the stub build path. It needs no privilege and no external
// tools; only disk I/O can make it fail.
type Builder struct {
	Logger *slog.Logger
}

// Kind implements build.Path.
func (b *Builder) Kind() build.PathKind {
	return build.PathStub
}

// Run assembles the demonstration artifact tree inside workDir, masters it
// into an ISO9660 container, compresses the tree into a companion archive
// and writes a checksum sidecar.
func (b *Builder) Run(ctx context.Context, workDir string, cfg build.Config, pub progress.Publisher) (build.Output, error) {
	logger := logging.Ensure(b.Logger).With("path", "stub")

	treeDir := filepath.Join(workDir, "iso")
	bootDir := filepath.Join(treeDir, "boot")

	pub.Publish(15, "Creating artifact skeleton...")
	if err := os.MkdirAll(bootDir, 0o755); err != nil {
		return build.Output{}, build.WrapError(build.ErrIO, err, "create artifact skeleton")
	}
	brand, err := branding.Apply(treeDir, cfg.LogoPath, cfg.BackgroundPath, branding.StubLayout)
	if err != nil {
		return build.Output{}, build.WrapError(build.ErrIO, err, "apply branding")
	}
	if err := build.CheckCancel(ctx); err != nil {
		return build.Output{}, err
	}

	pub.Publish(30, "Writing build metadata...")
	meta := build.NewMetadata(cfg, false)
	meta.Note = "This is a demonstration artifact, not a bootable image. " +
		"To create a real bootable ISO, run as root with debootstrap, " +
		"mksquashfs and xorriso installed."
	meta.HasLogo = brand.HasLogo
	meta.LogoFilename = brand.LogoFilename
	meta.HasBackground = brand.HasBackground
	meta.BackgroundFilename = brand.BackgroundFilename
	if err := meta.WriteFile(filepath.Join(treeDir, build.MetadataFilename)); err != nil {
		return build.Output{}, build.WrapError(build.ErrIO, err, "write metadata")
	}
	if err := build.CheckCancel(ctx); err != nil {
		return build.Output{}, err
	}

	pub.Publish(50, "Writing README...")
	if err := build.WriteReadme(treeDir, cfg, false); err != nil {
		return build.Output{}, build.WrapError(build.ErrIO, err, "write README")
	}

	pub.Publish(65, "Writing boot configuration placeholder...")
	if err := build.WriteBootConfig(bootDir, cfg); err != nil {
		return build.Output{}, build.WrapError(build.ErrIO, err, "write boot configuration")
	}

	pub.Publish(75, "Writing package list...")
	if err := build.WritePackagesList(treeDir, cfg); err != nil {
		return build.Output{}, build.WrapError(build.ErrIO, err, "write package list")
	}
	if err := build.CheckCancel(ctx); err != nil {
		return build.Output{}, err
	}

	base := cfg.BaseName() + "-demo"

	pub.Publish(85, "Packaging demonstration ISO container...")
	isoPath := filepath.Join(workDir, base+".iso")
	if err := writeISO(treeDir, isoPath, volumeLabel(cfg.OSName, cfg.VersionCode)); err != nil {
		return build.Output{}, build.WrapError(build.ErrIO, err, "master demonstration ISO")
	}
	if err := build.CheckCancel(ctx); err != nil {
		return build.Output{}, err
	}

	pub.Publish(90, "Compressing artifact tree...")
	archivePath := filepath.Join(workDir, base+".tar.gz")
	if err := writeTarGz(treeDir, archivePath); err != nil {
		return build.Output{}, build.WrapError(build.ErrIO, err, "compress artifact tree")
	}

	pub.Publish(95, "Writing artifact sidecar...")
	infoPath := filepath.Join(workDir, base+".info.json")
	if err := writeSidecar(infoPath, base, isoPath, archivePath); err != nil {
		return build.Output{}, build.WrapError(build.ErrIO, err, "write artifact sidecar")
	}

	info, err := os.Stat(isoPath)
	if err != nil {
		return build.Output{}, build.WrapError(build.ErrIO, err, "stat demonstration ISO")
	}
	logger.Info("demonstration artifact assembled",
		"artifact", isoPath,
		"size_bytes", info.Size(),
		"packages", len(cfg.DedupedPackages()),
	)

	return build.Output{
		ArtifactPath: isoPath,
		SizeBytes:    info.Size(),
		Companions:   []string{archivePath, infoPath},
	}, nil
}

// writeISO masters sourceDir into an ISO9660 volume at imagePath.
func writeISO(sourceDir, imagePath, label string) error {
	writer, err := iso9660.NewWriter()
	if err != nil {
		return fmt.Errorf("create iso writer: %w", err)
	}
	defer writer.Cleanup()

	if err := writer.AddLocalDirectory(sourceDir, "/"); err != nil {
		return fmt.Errorf("stage directory: %w", err)
	}

	out, err := os.OpenFile(imagePath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create image file: %w", err)
	}
	if err := writer.WriteTo(out, label); err != nil {
		out.Close()
		os.Remove(imagePath)
		return fmt.Errorf("write iso: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(imagePath)
		return fmt.Errorf("finalize iso: %w", err)
	}
	return nil
}

// volumeLabel squeezes the name and version into the ISO9660 volume id
// character set.
func volumeLabel(parts ...string) string {
	const maxLen = 32

	var b strings.Builder
	for _, r := range strings.Join(parts, "_") {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r - ('a' - 'A'))
		case (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
		if b.Len() >= maxLen {
			break
		}
	}
	if b.Len() == 0 {
		return "DEBSPIN"
	}
	return b.String()
}

// writeTarGz packs sourceDir into a gzip-compressed tar archive. Entry
// names are rooted at the directory's base name.
func writeTarGz(sourceDir, archivePath string) error {
	out, err := os.Create(archivePath)
	if err != nil {
		return err
	}
	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)

	root := filepath.Base(sourceDir)
	err = filepath.WalkDir(sourceDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(sourceDir, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(filepath.Join(root, rel))
		if d.IsDir() {
			header.Name += "/"
		}
		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		tw.Close()
		gz.Close()
		out.Close()
		os.Remove(archivePath)
		return err
	}

	if err := tw.Close(); err != nil {
		return err
	}
	if err := gz.Close(); err != nil {
		return err
	}
	return out.Close()
}

type sidecarFile struct {
	Name      string `json:"name"`
	SizeBytes int64  `json:"size_bytes"`
	SHA256    string `json:"sha256"`
}

type sidecar struct {
	Artifact  string        `json:"artifact"`
	CreatedAt string        `json:"created_at"`
	Files     []sidecarFile `json:"files"`
}

// writeSidecar records the real size and checksum of every produced file.
func writeSidecar(infoPath, artifact string, files ...string) error {
	doc := sidecar{
		Artifact:  artifact,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	for _, path := range files {
		entry, err := describeFile(path)
		if err != nil {
			return err
		}
		doc.Files = append(doc.Files, entry)
	}
	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(infoPath, payload, 0o644)
}

func describeFile(path string) (sidecarFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return sidecarFile{}, err
	}
	defer f.Close()

	hash := sha256.New()
	size, err := io.Copy(hash, f)
	if err != nil {
		return sidecarFile{}, err
	}
	return sidecarFile{
		Name:      filepath.Base(path),
		SizeBytes: size,
		SHA256:    hex.EncodeToString(hash.Sum(nil)),
	}, nil
}
