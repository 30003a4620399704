package branding

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Layout selects where branding assets land inside the artifact tree.
type Layout int

const (
	// StubLayout places assets under a branding/ subtree of the
	// demonstration artifact.
	StubLayout Layout = iota
	// FullLayout places assets at the usual desktop locations inside an
	// assembled root filesystem.
	FullLayout
)

// Result records which assets were integrated, for the metadata file.
type Result struct {
	HasLogo            bool
	LogoFilename       string
	HasBackground      bool
	BackgroundFilename string
}

// Apply copies the optional logo and background assets into the tree rooted
// at root. An unset asset path is a no-op, not an error. A target file that
// already exists is overwritten; assets are caller-supplied and their target
// path is deterministic, so the newest copy always wins.
func Apply(root, logoPath, backgroundPath string, layout Layout) (Result, error) {
	var res Result

	if logoPath != "" {
		dir := filepath.Join(root, "branding")
		if layout == FullLayout {
			dir = filepath.Join(root, "usr", "share", "pixmaps")
		}
		name, err := install(logoPath, dir)
		if err != nil {
			return Result{}, fmt.Errorf("install logo: %w", err)
		}
		res.HasLogo = true
		res.LogoFilename = name
	}

	if backgroundPath != "" {
		dir := filepath.Join(root, "branding")
		if layout == FullLayout {
			dir = filepath.Join(root, "usr", "share", "backgrounds")
		}
		name, err := install(backgroundPath, dir)
		if err != nil {
			return Result{}, fmt.Errorf("install background: %w", err)
		}
		res.HasBackground = true
		res.BackgroundFilename = name
	}

	return res, nil
}

func install(assetPath, targetDir string) (string, error) {
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return "", err
	}
	name := filepath.Base(assetPath)
	if err := copyFile(assetPath, filepath.Join(targetDir, name)); err != nil {
		return "", err
	}
	return name, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
