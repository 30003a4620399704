package build

import (
	"context"

	"github.com/debspin/debspin/internal/probe"
	"github.com/debspin/debspin/internal/progress"
)

// Prober reports environment capabilities ahead of path selection.
type Prober interface {
	Probe() probe.Capabilities
}

// Path executes one build route inside an exclusively owned working
// directory, emitting its own progress milestones through pub.
type Path interface {
	Kind() PathKind
	Run(ctx context.Context, workDir string, cfg Config, pub progress.Publisher) (Output, error)
}
