package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/chaptermark/chaptermark-server/internal/service"
)

func (s *Server) registerModelRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listModels",
		Method:      http.MethodGet,
		Path:        "/api/v1/models",
		Summary:     "List models",
		Description: "Returns the model catalog with each model's cache state",
		Tags:        []string{"Models"},
	}, s.handleListModels)

	huma.Register(s.api, huma.Operation{
		OperationID: "reloadModel",
		Method:      http.MethodPost,
		Path:        "/api/v1/models/{id}/reload",
		Summary:     "Reload model",
		Description: "Evicts the cached model and loads it again",
		Tags:        []string{"Models"},
	}, s.handleReloadModel)
}

// ListModelsResponse is the model catalog.
type ListModelsResponse struct {
	Default string              `json:"default" doc:"Default model identifier"`
	Models  []service.ModelInfo `json:"models" doc:"Catalog models in order"`
}

// ListModelsOutput wraps the catalog for Huma.
type ListModelsOutput struct {
	Body ListModelsResponse
}

// ModelIDInput addresses a single model.
type ModelIDInput struct {
	ID string `path:"id" doc:"Model ID"`
}

// ModelOutput wraps a single model for Huma.
type ModelOutput struct {
	Body service.ModelInfo
}

func (s *Server) handleListModels(_ context.Context, _ *struct{}) (*ListModelsOutput, error) {
	return &ListModelsOutput{
		Body: ListModelsResponse{
			Default: s.services.Models.Default(),
			Models:  s.services.Models.List(),
		},
	}, nil
}

func (s *Server) handleReloadModel(ctx context.Context, input *ModelIDInput) (*ModelOutput, error) {
	info, err := s.services.Models.Reload(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &ModelOutput{Body: info}, nil
}
