package build

import (
	"encoding/json"
	"os"
	"time"
)

// ISOType identifies the artifact kind in every metadata file.
const ISOType = "Debian Custom Spinoff"

// Metadata mirrors the debspin_metadata.json document embedded in every
// artifact tree.
type Metadata struct {
	ISOType             string   `json:"iso_type"`
	Name                string   `json:"name"`
	Version             string   `json:"version"`
	DesktopManager      string   `json:"desktop_manager"`
	Packages            []string `json:"packages"`
	CreatedAt           string   `json:"created_at,omitempty"`
	Bootable            bool     `json:"bootable"`
	LiveBoot            bool     `json:"live_boot"`
	InstallationCapable bool     `json:"installation_capable"`
	Note                string   `json:"note,omitempty"`
	HasLogo             bool     `json:"has_logo"`
	LogoFilename        string   `json:"logo_filename,omitempty"`
	HasBackground       bool     `json:"has_background"`
	BackgroundFilename  string   `json:"background_filename,omitempty"`
}

// MetadataFilename is the fixed name of the metadata document.
const MetadataFilename = "debspin_metadata.json"

// NewMetadata derives the metadata document from a build configuration.
// Bootable implies live boot and installation capability; the demonstration
// artifact has neither.
func NewMetadata(cfg Config, bootable bool) Metadata {
	created := ""
	if !cfg.CreatedAt.IsZero() {
		created = cfg.CreatedAt.UTC().Format(time.RFC3339)
	}
	return Metadata{
		ISOType:             ISOType,
		Name:                cfg.OSName,
		Version:             cfg.VersionCode,
		DesktopManager:      string(cfg.Desktop()),
		Packages:            cfg.DedupedPackages(),
		CreatedAt:           created,
		Bootable:            bootable,
		LiveBoot:            bootable,
		InstallationCapable: bootable,
	}
}

// WriteFile persists the metadata document as indented JSON.
func (m Metadata) WriteFile(path string) error {
	payload, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o644)
}

// ReadMetadataFile loads a metadata document from disk.
func ReadMetadataFile(path string) (Metadata, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, err
	}
	var m Metadata
	if err := json.Unmarshal(payload, &m); err != nil {
		return Metadata{}, err
	}
	return m, nil
}
