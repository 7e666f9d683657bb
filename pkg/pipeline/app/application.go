package app

import (
	"context"

	"go.uber.org/fx"

	config "github.com/karstlab/mofpipe/pkg/pipeline/core/config"
)

// Application wraps a started Fx container. Commands build one with the
// targets they need populated, run, then Stop it.
type Application struct {
	fxApp *fx.App
}

// New assembles the container, populates the given targets (pointers to the
// components the caller needs), and starts the lifecycle. Only constructors
// reachable from the targets run.
func New(ctx context.Context, envFilePath string, embeddedConfig config.EmbeddedConfig, targets ...interface{}) (*Application, error) {
	fxApp := fx.New(
		fx.Supply(
			embeddedConfig,
			fx.Annotate(envFilePath, fx.ResultTags(`name:"envFilePath"`)),
		),
		Module,
		fx.Populate(targets...),
	)
	if err := fxApp.Err(); err != nil {
		return nil, err
	}
	if err := fxApp.Start(ctx); err != nil {
		return nil, err
	}
	return &Application{fxApp: fxApp}, nil
}

// Stop runs the container's shutdown hooks (store and storage handles close
// here).
func (a *Application) Stop(ctx context.Context) error {
	return a.fxApp.Stop(ctx)
}
