package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/debspin/debspin/config"
	"github.com/debspin/debspin/internal/build"
	"github.com/debspin/debspin/internal/logging"
	"github.com/debspin/debspin/internal/probe"
	"github.com/debspin/debspin/internal/progress"
)

const defaultLogLevel = "warning"

func main() {
	var levelVar slog.LevelVar
	levelVar.Set(slog.LevelInfo)

	logger := logging.NewCLI(os.Stderr, &levelVar)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCommand(logger, &levelVar)
	if err := root.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("command interrupted", "error", err)
			os.Exit(130)
		}
		logger.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func newRootCommand(logger *slog.Logger, levelVar *slog.LevelVar) *cobra.Command {
	logLevel := defaultLogLevel

	root := &cobra.Command{
		Use:           "debspin",
		Short:         "Create custom Debian spinoff ISO images",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", defaultLogLevel, "Set log verbosity (debug, info, warning, error)")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		level, err := logging.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		if levelVar != nil {
			levelVar.Set(level)
		}
		return nil
	}

	root.AddCommand(
		newBuildCommand(logger),
		newProbeCommand(logger),
		newDesktopsCommand(),
	)
	return root
}

func newBuildCommand(logger *slog.Logger) *cobra.Command {
	var (
		specFile    string
		osName      string
		versionCode string
		desktop     string
		packages    []string
		logoPath    string
		background  string
		outputDir   string
		tempDir     string
		quiet       bool
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build a custom Debian spin ISO (or a demonstration artifact without privileges)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdLogger := logger.With("command", "build")

			cfg, err := resolveConfig(specFile, osName, versionCode, desktop, packages, logoPath, background, cmd.Flags().Changed)
			if err != nil {
				return err
			}

			publisher, finish := renderProgress(cmd.OutOrStdout(), quiet)

			result, err := config.Build(cmd.Context(), cfg, config.Options{
				OutputDir: outputDir,
				TempDir:   tempDir,
				Logger:    cmdLogger,
				Progress:  publisher,
			})
			finish()

			if err != nil {
				cmdLogger.Error("build failed", "error", err)
				return err
			}

			fmt.Printf("Artifact: %s (%.2f MB, %s path)\n",
				result.ArtifactPath,
				float64(result.SizeBytes)/(1024*1024),
				result.Kind,
			)
			for _, companion := range result.Companions {
				fmt.Printf("Companion: %s\n", companion)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&specFile, "spec", "", "YAML spec file describing the build")
	cmd.Flags().StringVar(&osName, "name", "", "Distribution name (artifact basename)")
	cmd.Flags().StringVar(&versionCode, "version-code", "1.0", "Version code appended to the basename")
	cmd.Flags().StringVar(&desktop, "desktop", "kde", "Desktop environment (see 'debspin desktops')")
	cmd.Flags().StringArrayVar(&packages, "package", nil, "Additional package to install (repeatable)")
	cmd.Flags().StringVar(&logoPath, "logo", "", "Path to a logo image to brand the spin with")
	cmd.Flags().StringVar(&background, "background", "", "Path to a desktop background image")
	cmd.Flags().StringVar(&outputDir, "output-dir", config.DefaultOutputDir, "Directory where the finished artifact is placed")
	cmd.Flags().StringVar(&tempDir, "temp-dir", "", "Directory for the transient working tree")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "Suppress progress output")

	return cmd
}

// renderProgress returns the publisher handed to the build and a finish
// function that must be called once the build returns. Quiet builds get the
// discarding publisher so no reporter sits undrained behind them; otherwise
// events render on their own goroutine and the build never blocks on the
// terminal.
func renderProgress(out io.Writer, quiet bool) (progress.Publisher, func()) {
	if quiet {
		return progress.Discard, func() {}
	}

	reporter := progress.NewReporter(0)
	var render sync.WaitGroup
	render.Add(1)
	go func() {
		defer render.Done()
		for event := range reporter.Events() {
			fmt.Fprintf(out, "[%3d%%] %s\n", event.Percentage, event.Message)
		}
	}()
	return reporter, func() {
		reporter.Close()
		render.Wait()
	}
}

// resolveConfig merges the optional spec file with flag overrides. Flags
// that were set explicitly win over spec file values.
func resolveConfig(specFile, osName, versionCode, desktop string, packages []string, logoPath, background string, changed func(string) bool) (build.Config, error) {
	var cfg build.Config
	if specFile != "" {
		loaded, err := config.LoadSpec(specFile)
		if err != nil {
			return build.Config{}, err
		}
		cfg = loaded
	} else {
		cfg.CreatedAt = time.Now()
	}

	if osName != "" {
		cfg.OSName = osName
	}
	if changed("version-code") || cfg.VersionCode == "" {
		cfg.VersionCode = versionCode
	}
	if changed("desktop") || cfg.DesktopManager == "" {
		dm, err := build.ParseDesktopManager(desktop)
		if err != nil {
			return build.Config{}, err
		}
		cfg.DesktopManager = dm
	}
	if len(packages) > 0 {
		cfg.Packages = append(cfg.Packages, packages...)
	}
	if logoPath != "" {
		cfg.LogoPath = logoPath
	}
	if background != "" {
		cfg.BackgroundPath = background
	}

	if strings.TrimSpace(cfg.OSName) == "" {
		return build.Config{}, fmt.Errorf("a distribution name is required (--name or spec file)")
	}
	return cfg, nil
}

func newProbeCommand(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Report whether this host can produce a real bootable image",
		RunE: func(cmd *cobra.Command, args []string) error {
			prober := &probe.SystemProber{}
			caps := prober.Probe()

			logger.Debug("probe finished", "full_supported", caps.FullSupported())

			fmt.Printf("root privilege:     %v\n", caps.HasPrivilege)
			fmt.Printf("bootstrap tool:     %v (%s)\n", caps.HasBootstrapTool, probe.DefaultBootstrapTool)
			fmt.Printf("compression tool:   %v (%s)\n", caps.HasCompressionTool, probe.DefaultCompressionTool)
			fmt.Printf("iso mastering tool: %v (%s)\n", caps.HasISOTool, probe.DefaultISOTool)
			fmt.Printf("free disk space:    %.2f MB\n", float64(caps.DiskFreeBytes)/(1024*1024))
			if caps.FullSupported() {
				fmt.Println("full build path available")
			} else {
				fmt.Println("full build path unavailable, builds fall back to a demonstration artifact")
			}
			return nil
		},
	}
}

func newDesktopsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "desktops",
		Short: "List supported desktop environments",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, dm := range build.DesktopManagers() {
				fmt.Println(dm)
			}
			return nil
		},
	}
}
