package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrymomot/statuscast/pkg/handler"
	"github.com/dmitrymomot/statuscast/pkg/logger"
	"github.com/dmitrymomot/statuscast/pkg/status"
)

const createTaskName = "analysis-created"

type analysisRequest struct {
	ID string `path:"id"`
}

type createAnalysisRequest struct {
	AnalysisID string `json:"analysisId"`
	UserID     string `json:"userId"`
}

type createAnalysisResponse struct {
	Success    bool          `json:"success"`
	Message    string        `json:"message"`
	AnalysisID string        `json:"analysisId"`
	Status     status.Status `json:"status"`
}

// createAnalysis registers a queued record that the analysis pipeline moves
// forward through PATCH /api/analysis/{id}.
func (s *Server) createAnalysis(ctx handler.Context, req createAnalysisRequest) handler.Response {
	id := strings.TrimSpace(req.AnalysisID)
	if id == "" {
		id = s.newID()
	}

	rec, err := s.statuses.Create(ctx, status.Record{
		AnalysisID: id,
		UserID:     strings.TrimSpace(req.UserID),
		Status:     status.Queued,
	})
	switch {
	case errors.Is(err, status.ErrAlreadyExists):
		return handler.Error(handler.Conflict("Analysis already exists"))
	case err != nil:
		return handler.Error(handler.Internal("Failed to create analysis", err))
	}

	s.afterCreate(ctx, rec)

	return handler.JSON(createAnalysisResponse{
		Success:    true,
		Message:    "Analysis queued",
		AnalysisID: rec.AnalysisID,
		Status:     rec.Status,
	}, handler.WithStatus(http.StatusAccepted))
}

// afterCreate hands rec to the OnCreate hook. A full or closed task group
// drops the hook run; the record itself is already stored.
func (s *Server) afterCreate(ctx context.Context, rec status.Record) {
	if s.onCreate == nil {
		return
	}
	err := s.tasks.Go(createTaskName, func(taskCtx context.Context) error {
		return s.onCreate(taskCtx, rec)
	})
	if err != nil {
		s.log.LogAttrs(ctx, slog.LevelWarn, "analysis hook not started",
			slog.String("analysis_id", rec.AnalysisID),
			logger.Error(err),
		)
	}
}

type analysisStatusResponse struct {
	Success      bool          `json:"success"`
	AnalysisID   string        `json:"analysisId"`
	Status       status.Status `json:"status"`
	Progress     int           `json:"progress"`
	CurrentStage string        `json:"currentStage"`
	UpdatedAt    time.Time     `json:"updatedAt"`
	Error        string        `json:"error,omitempty"`
}

func (s *Server) analysisStatus(ctx handler.Context, req analysisRequest) handler.Response {
	rec, err := s.statuses.FindByID(ctx, req.ID)
	if err != nil {
		return handler.Error(statusError(err))
	}
	return handler.JSON(analysisStatusResponse{
		Success:      true,
		AnalysisID:   rec.AnalysisID,
		Status:       rec.Status,
		Progress:     rec.Progress,
		CurrentStage: rec.CurrentStage,
		UpdatedAt:    rec.UpdatedAt,
		Error:        rec.Error,
	})
}

type analysisResultsResponse struct {
	Success     bool           `json:"success"`
	AnalysisID  string         `json:"analysisId"`
	Status      status.Status  `json:"status"`
	Results     map[string]any `json:"results"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
}

func (s *Server) analysisResults(ctx handler.Context, req analysisRequest) handler.Response {
	rec, err := s.statuses.FindByID(ctx, req.ID)
	if err != nil {
		return handler.Error(statusError(err))
	}
	if rec.Status != status.Completed {
		return handler.Error(handler.BadRequest(
			fmt.Sprintf("Analysis not completed. Current status: %s", rec.Status),
		).WithDetails(map[string]any{"status": rec.Status, "progress": rec.Progress}))
	}
	return handler.JSON(analysisResultsResponse{
		Success:     true,
		AnalysisID:  rec.AnalysisID,
		Status:      rec.Status,
		Results:     rec.Results,
		CompletedAt: rec.CompletedAt,
	})
}

type cancelResponse struct {
	Success    bool          `json:"success"`
	Message    string        `json:"message"`
	AnalysisID string        `json:"analysisId"`
	Status     status.Status `json:"status"`
}

func (s *Server) cancelAnalysis(ctx handler.Context, req analysisRequest) handler.Response {
	rec, err := s.statuses.Cancel(ctx, req.ID)
	if errors.Is(err, status.ErrNotCancellable) {
		current, findErr := s.statuses.FindByID(ctx, req.ID)
		if findErr != nil {
			return handler.Error(statusError(findErr))
		}
		return handler.Error(handler.BadRequest(
			fmt.Sprintf("Cannot cancel analysis. Current status: %s", current.Status)))
	}
	if err != nil {
		return handler.Error(statusError(err))
	}
	return handler.JSON(cancelResponse{
		Success:    true,
		Message:    "Analysis cancelled",
		AnalysisID: rec.AnalysisID,
		Status:     rec.Status,
	})
}

type patchRequest struct {
	ID           string         `path:"id" json:"-"`
	Status       status.Status  `path:"-" json:"status"`
	CurrentStage string         `path:"-" json:"currentStage"`
	Progress     *int           `path:"-" json:"progress"`
	Results      map[string]any `path:"-" json:"results"`
	Error        string         `path:"-" json:"error"`
}

type patchResponse struct {
	Success bool          `json:"success"`
	Data    status.Record `json:"data"`
}

// applyAnalysis records a pipeline transition. The change feed then pushes it
// to subscribers.
func (s *Server) applyAnalysis(ctx handler.Context, req patchRequest) handler.Response {
	p := status.Patch{
		Status:       req.Status,
		CurrentStage: req.CurrentStage,
		Progress:     req.Progress,
		Results:      req.Results,
		Error:        req.Error,
	}
	if err := p.Validate(); err != nil {
		return handler.Error(handler.BadRequest("Invalid status update"))
	}

	rec, err := s.statuses.Apply(ctx, req.ID, p)
	if err != nil {
		return handler.Error(statusError(err))
	}
	return handler.JSON(patchResponse{Success: true, Data: rec})
}

func statusError(err error) *handler.HTTPError {
	switch {
	case errors.Is(err, status.ErrNotFound):
		return handler.NotFound("Analysis not found")
	case errors.Is(err, status.ErrTerminal):
		return handler.Conflict("Analysis already reached a terminal state")
	case errors.Is(err, status.ErrInvalidPatch):
		return handler.BadRequest("Invalid status update")
	}
	return handler.Internal("Internal server error", err)
}
