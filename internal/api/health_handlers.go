package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

func (s *Server) registerHealthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "healthCheck",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns server health, the inference backend and loaded models",
		Tags:        []string{"Health"},
	}, s.handleHealthCheck)
}

// ComponentHealth describes the health of a single component.
type ComponentHealth struct {
	Status  string `json:"status" doc:"Component status: healthy, degraded, or unhealthy"`
	Latency string `json:"latency,omitempty" doc:"Response time for this component"`
	Message string `json:"message,omitempty" doc:"Additional status information"`
}

// HealthResponse contains health check data.
type HealthResponse struct {
	Status       string                     `json:"status" doc:"Overall status: healthy, degraded, or unhealthy"`
	Backend      string                     `json:"backend" doc:"Inference backend"`
	DefaultModel string                     `json:"defaultModel" doc:"Model used when a request names none"`
	LoadedModels []string                   `json:"loadedModels" doc:"Models currently in memory"`
	Components   map[string]ComponentHealth `json:"components" doc:"Individual component statuses"`
}

// HealthOutput wraps the health response for Huma.
type HealthOutput struct {
	Body HealthResponse
}

func (s *Server) handleHealthCheck(_ context.Context, _ *struct{}) (*HealthOutput, error) {
	components := map[string]ComponentHealth{
		"database": s.checkDatabase(),
		"search":   s.checkSearchIndex(),
	}

	overall := "healthy"
	for _, c := range components {
		switch c.Status {
		case "unhealthy":
			overall = "unhealthy"
		case "degraded":
			if overall == "healthy" {
				overall = "degraded"
			}
		}
	}

	loaded := s.services.Models.Loaded()
	if loaded == nil {
		loaded = []string{}
	}

	return &HealthOutput{
		Body: HealthResponse{
			Status:       overall,
			Backend:      s.services.Models.Backend(),
			DefaultModel: s.services.Models.Default(),
			LoadedModels: loaded,
			Components:   components,
		},
	}, nil
}

// checkDatabase verifies Badger accepts reads.
func (s *Server) checkDatabase() ComponentHealth {
	if s.services.Store == nil {
		return ComponentHealth{Status: "degraded", Message: "job history disabled"}
	}

	start := time.Now()
	err := s.services.Store.Ping()
	latency := time.Since(start)

	if err != nil {
		return ComponentHealth{
			Status:  "unhealthy",
			Latency: latency.String(),
			Message: "database read failed",
		}
	}
	return ComponentHealth{Status: "healthy", Latency: latency.String()}
}

// checkSearchIndex verifies the Bleve index is accessible.
func (s *Server) checkSearchIndex() ComponentHealth {
	if s.services.Jobs == nil {
		return ComponentHealth{Status: "degraded", Message: "search not configured"}
	}

	start := time.Now()
	_, err := s.services.Jobs.DocumentCount()
	latency := time.Since(start)

	if err != nil {
		return ComponentHealth{
			Status:  "unhealthy",
			Latency: latency.String(),
			Message: "search index unreachable",
		}
	}
	return ComponentHealth{Status: "healthy", Latency: latency.String()}
}
