package controller

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/anisahjamin/CPC357-Assignment2/internal/modules/rain/repository"
	"github.com/anisahjamin/CPC357-Assignment2/internal/modules/rain/summary"
)

// SummaryProvider returns the current dashboard summary.
type SummaryProvider interface {
	Summary(ctx context.Context) (summary.Summary, error)
}

type RainController interface {
	RegisterRoutes(mux *http.ServeMux)
}

// PageOptions configures the rendered dashboard.
type PageOptions struct {
	Title   string
	Refresh time.Duration
}

type rainControllerImpl struct {
	summaries  SummaryProvider
	repository repository.RainRepository
	page       PageOptions
	logger     *slog.Logger
}

func NewRainController(summaries SummaryProvider, repo repository.RainRepository, page PageOptions, logger *slog.Logger) RainController {
	if page.Title == "" {
		page.Title = "Rain Sensor Dashboard"
	}
	return &rainControllerImpl{
		summaries:  summaries,
		repository: repo,
		page:       page,
		logger:     logger,
	}
}

func (c *rainControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /", c.handleDashboard)
	mux.HandleFunc("GET /partials/summary", c.handleSummaryPartial)
	mux.HandleFunc("GET /api/v1/summary", c.handleSummary)
	mux.HandleFunc("GET /api/v1/readings", c.handleReadings)
}
