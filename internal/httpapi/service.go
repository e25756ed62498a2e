package httpapi

import (
	"context"

	"tierd/internal/orchestrator"
	"tierd/internal/pipeline"
	"tierd/internal/registry"
	"tierd/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Query(ctx context.Context, q pipeline.Query) types.QueryResponse
	ListModels(ctx context.Context) ([]types.ModelDescriptor, error)
	Status() types.StatusResponse
	Ready(ctx context.Context) bool
}

// App is the production Service: a pipeline, its orchestrator and the
// registry they read.
type App struct {
	Registry     registry.Source
	Pipeline     *pipeline.Pipeline
	Orchestrator *orchestrator.Orchestrator
}

func (a *App) Query(ctx context.Context, q pipeline.Query) types.QueryResponse {
	return a.Pipeline.Handle(ctx, q)
}

func (a *App) ListModels(ctx context.Context) ([]types.ModelDescriptor, error) {
	reg, err := a.Registry.Load(ctx)
	if err != nil {
		return nil, err
	}
	return reg.All(), nil
}

// Status reports orchestrator state; a registry read failure is surfaced in
// the Error field.
func (a *App) Status() types.StatusResponse {
	st := a.Orchestrator.Status()
	if _, err := a.Registry.Load(context.Background()); err != nil {
		st.Error = err.Error()
	}
	return st
}

// Ready reports whether the registry loads and names a gatekeeper.
func (a *App) Ready(ctx context.Context) bool {
	reg, err := a.Registry.Load(ctx)
	if err != nil {
		return false
	}
	_, ok := reg.First(types.RoleGatekeeper)
	return ok
}
