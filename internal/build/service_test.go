package build

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/debspin/debspin/internal/probe"
	"github.com/debspin/debspin/internal/progress"
)

type fakeProber struct {
	caps probe.Capabilities
}

func (f fakeProber) Probe() probe.Capabilities {
	return f.caps
}

var allCaps = probe.Capabilities{
	HasPrivilege:       true,
	HasBootstrapTool:   true,
	HasCompressionTool: true,
	HasISOTool:         true,
}

// fakePath emits its milestones and either fails or drops an artifact file
// into the working directory.
type fakePath struct {
	kind       PathKind
	milestones []int
	err        error
	runs       int
	workDirs   []string
	onRun      func(workDir string)
}

func (p *fakePath) Kind() PathKind {
	return p.kind
}

func (p *fakePath) Run(ctx context.Context, workDir string, cfg Config, pub progress.Publisher) (Output, error) {
	p.runs++
	p.workDirs = append(p.workDirs, workDir)
	if p.onRun != nil {
		p.onRun(workDir)
	}
	for _, m := range p.milestones {
		pub.Publish(m, fmt.Sprintf("milestone %d", m))
	}
	if p.err != nil {
		return Output{}, p.err
	}
	artifact := filepath.Join(workDir, cfg.BaseName()+".iso")
	if err := os.WriteFile(artifact, []byte("payload"), 0o644); err != nil {
		return Output{}, err
	}
	return Output{ArtifactPath: artifact, SizeBytes: int64(len("payload"))}, nil
}

type eventSink struct {
	mu     sync.Mutex
	events []progress.Event
}

func (s *eventSink) Publish(percentage int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, progress.Event{Percentage: percentage, Message: message})
}

func (s *eventSink) list() []progress.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]progress.Event(nil), s.events...)
}

func newService(t *testing.T, caps probe.Capabilities, fullPath, stubPath Path) *Service {
	t.Helper()
	return &Service{
		Prober:    fakeProber{caps: caps},
		FullPath:  fullPath,
		StubPath:  stubPath,
		OutputDir: t.TempDir(),
		TempDir:   t.TempDir(),
	}
}

func validConfig() Config {
	return Config{
		OSName:         "Furrian",
		VersionCode:    "1.0",
		DesktopManager: DesktopXFCE,
		Packages:       []string{"vim", "git"},
	}
}

func requireMonotonic(t *testing.T, events []progress.Event) {
	t.Helper()
	for i := 1; i < len(events); i++ {
		require.GreaterOrEqual(t, events[i].Percentage, events[i-1].Percentage,
			"percentage regressed at event %d: %v", i, events)
	}
}

func TestRunSelectsStubWithoutCapabilities(t *testing.T) {
	full := &fakePath{kind: PathFull, milestones: []int{20, 90}}
	stub := &fakePath{kind: PathStub, milestones: []int{15, 95}}
	svc := newService(t, probe.Capabilities{}, full, stub)

	result, err := svc.Run(context.Background(), validConfig(), nil)
	require.NoError(t, err)

	assert.Equal(t, PathStub, result.Kind)
	assert.Equal(t, 0, full.runs)
	assert.Equal(t, 1, stub.runs)
	assert.FileExists(t, result.ArtifactPath)
	assert.NotEmpty(t, result.BuildID)
}

func TestRunSelectsFullWithCapabilities(t *testing.T) {
	full := &fakePath{kind: PathFull, milestones: []int{20, 90}}
	stub := &fakePath{kind: PathStub, milestones: []int{15, 95}}
	svc := newService(t, allCaps, full, stub)

	result, err := svc.Run(context.Background(), validConfig(), nil)
	require.NoError(t, err)

	assert.Equal(t, PathFull, result.Kind)
	assert.Equal(t, 1, full.runs)
	assert.Equal(t, 0, stub.runs)
}

func TestRunProgressSequence(t *testing.T) {
	stub := &fakePath{kind: PathStub, milestones: []int{15, 30, 50, 65, 75, 85, 90, 95}}
	svc := newService(t, probe.Capabilities{}, nil, stub)

	sink := &eventSink{}
	_, err := svc.Run(context.Background(), validConfig(), sink)
	require.NoError(t, err)

	events := sink.list()
	require.NotEmpty(t, events)
	assert.Equal(t, 0, events[0].Percentage)
	assert.Equal(t, "Starting ISO build...", events[0].Message)
	assert.Equal(t, 100, events[len(events)-1].Percentage)
	requireMonotonic(t, events)
}

func TestRunFinalMessageReportsSizeInMB(t *testing.T) {
	stub := &fakePath{kind: PathStub, milestones: []int{15}}
	svc := newService(t, probe.Capabilities{}, nil, stub)

	sink := &eventSink{}
	_, err := svc.Run(context.Background(), validConfig(), sink)
	require.NoError(t, err)

	events := sink.list()
	last := events[len(events)-1]
	assert.Contains(t, last.Message, "MB")
	assert.Regexp(t, `\d+\.\d\d MB`, last.Message)
}

func TestInvalidConfigEmitsNoEvents(t *testing.T) {
	stub := &fakePath{kind: PathStub}
	svc := newService(t, probe.Capabilities{}, nil, stub)

	sink := &eventSink{}
	result, err := svc.Run(context.Background(), Config{OSName: "  "}, sink)

	require.Error(t, err)
	assert.Equal(t, ErrInvalidConfig, KindOf(err))
	assert.Nil(t, result)
	assert.Empty(t, sink.list())
	assert.Equal(t, 0, stub.runs)
}

func TestUnreadableBrandingAssetIsInvalidConfig(t *testing.T) {
	stub := &fakePath{kind: PathStub}
	svc := newService(t, probe.Capabilities{}, nil, stub)

	cfg := validConfig()
	cfg.LogoPath = filepath.Join(t.TempDir(), "missing.png")

	sink := &eventSink{}
	_, err := svc.Run(context.Background(), cfg, sink)
	require.Error(t, err)
	assert.Equal(t, ErrInvalidConfig, KindOf(err))
	assert.Empty(t, sink.list())
}

func TestFallbackAfterExternalToolFailure(t *testing.T) {
	full := &fakePath{
		kind:       PathFull,
		milestones: []int{20, 40},
		err:        NewError(ErrExternalTool, "debootstrap exited 1"),
	}
	stub := &fakePath{kind: PathStub, milestones: []int{15, 50, 95}}
	svc := newService(t, allCaps, full, stub)

	sink := &eventSink{}
	result, err := svc.Run(context.Background(), validConfig(), sink)
	require.NoError(t, err)

	assert.Equal(t, PathStub, result.Kind)
	assert.Equal(t, 1, full.runs)
	assert.Equal(t, 1, stub.runs)

	events := sink.list()
	requireMonotonic(t, events)
	assert.Equal(t, 100, events[len(events)-1].Percentage)

	var sawTransition bool
	for _, event := range events {
		if strings.Contains(event.Message, "falling back") {
			sawTransition = true
		}
	}
	assert.True(t, sawTransition, "expected a fallback transition message in %v", events)
}

func TestFallbackDiscardsFullWorkingDirectory(t *testing.T) {
	full := &fakePath{
		kind: PathFull,
		err:  NewError(ErrExternalTool, "debootstrap exited 1"),
	}
	stub := &fakePath{kind: PathStub, milestones: []int{15}}

	var fullDirGone, stubDirFresh bool
	stub.onRun = func(workDir string) {
		_, err := os.Stat(full.workDirs[0])
		fullDirGone = os.IsNotExist(err)

		entries, err := os.ReadDir(workDir)
		stubDirFresh = err == nil && len(entries) == 0
	}

	svc := newService(t, allCaps, full, stub)
	result, err := svc.Run(context.Background(), validConfig(), nil)
	require.NoError(t, err)
	assert.Equal(t, PathStub, result.Kind)

	require.Len(t, full.workDirs, 1)
	require.Len(t, stub.workDirs, 1)
	assert.NotEqual(t, full.workDirs[0], stub.workDirs[0])
	assert.True(t, fullDirGone, "failed full attempt's working directory must be removed before the stub attempt starts")
	assert.True(t, stubDirFresh, "stub attempt must start from an empty working directory")
}

func TestFallbackHappensAtMostOnce(t *testing.T) {
	full := &fakePath{kind: PathFull, err: NewError(ErrExternalTool, "tool lost")}
	stub := &fakePath{kind: PathStub, err: NewError(ErrIO, "disk full")}
	svc := newService(t, allCaps, full, stub)

	sink := &eventSink{}
	_, err := svc.Run(context.Background(), validConfig(), sink)

	require.Error(t, err)
	assert.Equal(t, ErrIO, KindOf(err))
	assert.Equal(t, 1, full.runs)
	assert.Equal(t, 1, stub.runs)
}

func TestNoFallbackForIOError(t *testing.T) {
	full := &fakePath{
		kind:       PathFull,
		milestones: []int{20},
		err:        NewError(ErrIO, "write failed"),
	}
	stub := &fakePath{kind: PathStub}
	svc := newService(t, allCaps, full, stub)

	sink := &eventSink{}
	_, err := svc.Run(context.Background(), validConfig(), sink)

	require.Error(t, err)
	assert.Equal(t, ErrIO, KindOf(err))
	assert.Equal(t, 0, stub.runs)

	events := sink.list()
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Contains(t, last.Message, "Build failed")
	assert.Less(t, last.Percentage, 100)
	requireMonotonic(t, events)
}

func TestCancelledContext(t *testing.T) {
	full := &fakePath{kind: PathFull}
	stub := &fakePath{kind: PathStub}
	svc := newService(t, probe.Capabilities{}, full, stub)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := &eventSink{}
	_, err := svc.Run(ctx, validConfig(), sink)

	require.Error(t, err)
	assert.Equal(t, ErrCancelled, KindOf(err))
	assert.Equal(t, 0, full.runs)
	assert.Equal(t, 0, stub.runs)

	events := sink.list()
	require.NotEmpty(t, events)
	assert.Contains(t, events[len(events)-1].Message, "Build failed")
}

func TestArtifactMovedToOutputDir(t *testing.T) {
	stub := &fakePath{kind: PathStub, milestones: []int{15}}
	svc := newService(t, probe.Capabilities{}, nil, stub)

	result, err := svc.Run(context.Background(), validConfig(), nil)
	require.NoError(t, err)

	assert.Equal(t, svc.OutputDir, filepath.Dir(result.ArtifactPath))
	assert.Equal(t, "Furrian-1.0.iso", filepath.Base(result.ArtifactPath))
	info, err := os.Stat(result.ArtifactPath)
	require.NoError(t, err)
	assert.Equal(t, info.Size(), result.SizeBytes)
}

func TestTrackerDeliversMonotonicallyUnderConcurrentPublishers(t *testing.T) {
	sink := &eventSink{}
	track := newTracker(sink)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := 0; p <= 100; p += 5 {
				track.Publish(p, "step")
			}
		}()
	}
	wg.Wait()

	requireMonotonic(t, sink.list())
	assert.Equal(t, 100, track.Current())
}

func TestMoveFileCopyFailureLeavesNoPartialFile(t *testing.T) {
	// A directory source defeats both the rename (destination is a file)
	// and the byte copy, exercising the fallback's error path.
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "artifact.iso")
	require.NoError(t, os.WriteFile(dst, []byte("stale"), 0o644))

	err := moveFile(src, dst)
	require.Error(t, err)

	_, statErr := os.Stat(dst)
	assert.True(t, os.IsNotExist(statErr), "failed move must not leave a truncated destination behind")
}

func TestMissingStubPathIsEnvironmentError(t *testing.T) {
	svc := &Service{OutputDir: t.TempDir()}
	_, err := svc.Run(context.Background(), validConfig(), nil)
	require.Error(t, err)
	assert.Equal(t, ErrEnvironment, KindOf(err))
}
