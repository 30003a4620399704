package build

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/debspin/debspin/internal/logging"
	"github.com/debspin/debspin/internal/probe"
	"github.com/debspin/debspin/internal/progress"
)

// Service orchestrates one build session: it probes the environment, picks
// the full or stub route, supervises execution, applies the one-shot
// fallback policy and finalizes the artifact.
type Service struct {
	Logger   *slog.Logger
	Prober   Prober
	FullPath Path
	StubPath Path

	// OutputDir is where finalized artifacts land. Empty means the
	// current directory.
	OutputDir string
	// TempDir overrides where working directories are created. Empty
	// means the system default.
	TempDir string
}

// Run executes a single build session. sink may be nil, which suppresses
// notifications without changing behavior. Exactly one outcome is produced:
// a Result with nil error, or a typed *Error.
func (s *Service) Run(ctx context.Context, cfg Config, sink progress.Publisher) (*Result, error) {
	logger := logging.Ensure(s.Logger).With("component", "build.service")

	if s.StubPath == nil {
		return nil, NewError(ErrEnvironment, "stub build path is not configured")
	}
	// Validation failures surface before any progress event.
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	buildID := uuid.NewString()
	logger = logger.With("build_id", buildID, "os_name", cfg.OSName, "version", cfg.VersionCode)

	track := newTracker(sink)
	track.Publish(0, "Starting ISO build...")

	kind, out, err := s.execute(ctx, cfg, track, logger)
	if err != nil {
		// Terminal event capped at the last known percentage so an
		// observer relying solely on events sees the build end.
		track.Publish(track.Current(), fmt.Sprintf("Build failed: %v", err))
		logger.Error("build failed", "kind", KindOf(err), "error", err)
		return nil, err
	}

	sizeMB := float64(out.SizeBytes) / (1024 * 1024)
	label := "ISO build complete"
	if kind == PathStub {
		label = "Demonstration build complete"
	}
	track.Publish(100, fmt.Sprintf("%s: %s (%.2f MB)", label, filepath.Base(out.ArtifactPath), sizeMB))
	logger.Info("build succeeded",
		"path", kind,
		"artifact", out.ArtifactPath,
		"size_bytes", out.SizeBytes,
	)

	return &Result{
		BuildID:      buildID,
		Kind:         kind,
		ArtifactPath: out.ArtifactPath,
		SizeBytes:    out.SizeBytes,
		Companions:   out.Companions,
	}, nil
}

// execute runs the selected path, falling back to the stub route at most
// once when the full route loses an external tool mid-pipeline.
func (s *Service) execute(ctx context.Context, cfg Config, track *tracker, logger *slog.Logger) (PathKind, Output, error) {
	selected := PathStub
	out, err := s.attempt(ctx, cfg, track, func() Path {
		track.Publish(10, "Checking system requirements...")
		caps := s.prober().Probe()
		logger.Info("probed environment",
			"privilege", caps.HasPrivilege,
			"bootstrap_tool", caps.HasBootstrapTool,
			"compression_tool", caps.HasCompressionTool,
			"iso_tool", caps.HasISOTool,
			"disk_free_bytes", caps.DiskFreeBytes,
		)
		if caps.FullSupported() && s.FullPath != nil {
			selected = PathFull
			return s.FullPath
		}
		return s.StubPath
	})
	if err == nil || selected != PathFull {
		return selected, out, err
	}
	if KindOf(err) != ErrExternalTool || ctx.Err() != nil {
		return selected, out, err
	}

	// The failed full attempt's working directory was discarded in its
	// entirety; the stub retry starts from a fresh one. There is no
	// second fallback: the stub route has no external dependency that
	// can fail this way.
	logger.Warn("full build failed, falling back to demonstration build", "error", err)
	track.Publish(track.Current(), "Full build failed; falling back to demonstration build...")

	out, err = s.attempt(ctx, cfg, track, func() Path { return s.StubPath })
	return PathStub, out, err
}

// attempt creates a working directory, runs the chosen path inside it and
// finalizes the output. The working directory is removed on every exit,
// including cancellation.
func (s *Service) attempt(ctx context.Context, cfg Config, track *tracker, choose func() Path) (Output, error) {
	workDir, err := os.MkdirTemp(s.TempDir, "debspin-build-*")
	if err != nil {
		return Output{}, WrapError(ErrEnvironment, err, "create working directory")
	}
	defer os.RemoveAll(workDir)

	track.Publish(5, "Creating temporary working directory...")
	if err := CheckCancel(ctx); err != nil {
		return Output{}, err
	}

	path := choose()
	if err := CheckCancel(ctx); err != nil {
		return Output{}, err
	}

	out, err := path.Run(ctx, workDir, cfg, track)
	if err != nil {
		return Output{}, err
	}
	return s.finalize(out)
}

// finalize moves the artifact and its companions out of the working
// directory into the caller-visible output directory.
func (s *Service) finalize(out Output) (Output, error) {
	outputDir := s.OutputDir
	if outputDir == "" {
		outputDir = "."
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return Output{}, WrapError(ErrIO, err, "create output directory %s", outputDir)
	}

	final := Output{SizeBytes: out.SizeBytes}

	dest := filepath.Join(outputDir, filepath.Base(out.ArtifactPath))
	if err := moveFile(out.ArtifactPath, dest); err != nil {
		return Output{}, WrapError(ErrIO, err, "finalize artifact")
	}
	final.ArtifactPath = dest

	if info, err := os.Stat(dest); err == nil {
		final.SizeBytes = info.Size()
	}

	for _, companion := range out.Companions {
		companionDest := filepath.Join(outputDir, filepath.Base(companion))
		if err := moveFile(companion, companionDest); err != nil {
			return Output{}, WrapError(ErrIO, err, "finalize companion artifact")
		}
		final.Companions = append(final.Companions, companionDest)
	}

	return final, nil
}

func (s *Service) prober() Prober {
	if s.Prober != nil {
		return s.Prober
	}
	return &probe.SystemProber{}
}

// moveFile renames src to dst, copying when rename is not possible (the
// working directory usually lives on a different filesystem than the
// output directory).
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

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
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return err
	}
	return os.Remove(src)
}

// tracker guards the caller's sink: it serializes publication and clamps
// percentages so every consumer observes a non-decreasing sequence, even
// across a fallback restart.
type tracker struct {
	mu   sync.Mutex
	sink progress.Publisher
	last int
}

func newTracker(sink progress.Publisher) *tracker {
	if sink == nil {
		sink = progress.Discard
	}
	return &tracker{sink: sink}
}

// Publish implements progress.Publisher. The sink is called under the lock
// so concurrent publishers cannot deliver clamped events out of order.
func (t *tracker) Publish(percentage int, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if percentage < t.last {
		percentage = t.last
	}
	if percentage > 100 {
		percentage = 100
	}
	t.last = percentage
	t.sink.Publish(percentage, message)
}

// Current reports the highest percentage published so far.
func (t *tracker) Current() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}
