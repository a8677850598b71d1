package api

import "github.com/chaptermark/chaptermark-server/internal/service"

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping() error
}

// Services groups the services used by HTTP handlers.
type Services struct {
	Chapters *service.ChapterService
	Jobs     *service.JobService
	Models   *service.ModelService
	Store    Pinger
}
