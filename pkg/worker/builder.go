package worker

import (
	"context"

	"github.com/techwithparamesh/applyn-sub004/pkg/core"
)

// Builder turns an app definition into an installable artifact. The build
// context is cancelled when the job's lease is lost or the build timeout
// elapses; implementations must stop work when that happens.
//
// A failed build may still return a result carrying captured logs; the
// worker mirrors them onto the app record alongside the error.
type Builder interface {
	Build(ctx context.Context, app *core.App, job *core.BuildJob) (*core.BuildResult, error)
}

// BuilderFunc adapts a function to the Builder interface.
type BuilderFunc func(ctx context.Context, app *core.App, job *core.BuildJob) (*core.BuildResult, error)

// Build calls f.
func (f BuilderFunc) Build(ctx context.Context, app *core.App, job *core.BuildJob) (*core.BuildResult, error) {
	return f(ctx, app, job)
}
