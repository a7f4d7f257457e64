package api

import (
	"errors"

	"github.com/google/uuid"

	"github.com/dmitrymomot/statuscast/pkg/handler"
	"github.com/dmitrymomot/statuscast/pkg/notifications"
	"github.com/dmitrymomot/statuscast/pkg/queue"
)

type enqueueResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	JobID   string       `json:"jobId"`
	Data    enqueuedData `json:"data"`
}

type enqueuedData struct {
	UserID   string   `json:"userId"`
	Channels []string `json:"channels"`
	Message  string   `json:"message"`
}

func (s *Server) enqueueNotification(ctx handler.Context, req notifications.Request) handler.Response {
	id, err := s.notifications.Enqueue(ctx, req)
	switch {
	case errors.Is(err, notifications.ErrInvalidRequest):
		return handler.Error(handler.BadRequest(notifications.ValidationMessage(err)))
	case err != nil:
		return handler.Error(handler.Internal("Failed to add notification to queue", err))
	}

	return handler.JSON(enqueueResponse{
		Success: true,
		Message: "Notification added to queue successfully",
		JobID:   id.String(),
		Data: enqueuedData{
			UserID:   req.Recipient,
			Channels: req.Channels,
			Message:  req.Message,
		},
	})
}

type jobRequest struct {
	ID string `path:"id"`
}

type jobResponse struct {
	Success bool       `json:"success"`
	Data    *queue.Job `json:"data"`
}

func (s *Server) notificationJob(ctx handler.Context, req jobRequest) handler.Response {
	id, err := uuid.Parse(req.ID)
	if err != nil {
		return handler.Error(handler.BadRequest("Invalid job id"))
	}

	job, err := s.notifications.Job(ctx, id)
	switch {
	case errors.Is(err, queue.ErrJobNotFound):
		return handler.Error(handler.NotFound("Job not found"))
	case errors.Is(err, notifications.ErrHistoryDisabled):
		return handler.Error(handler.ServiceUnavailable("Job history is not available", err))
	case err != nil:
		return handler.Error(handler.Internal("Failed to load job", err))
	}
	return handler.JSON(jobResponse{Success: true, Data: job})
}

type historyRequest struct {
	Status string `query:"status"`
	Limit  int    `query:"limit"`
}

type historyResponse struct {
	Success bool        `json:"success"`
	Data    historyData `json:"data"`
}

type historyData struct {
	Status queue.JobStatus `json:"status"`
	Count  int             `json:"count"`
	Jobs   []queue.Job     `json:"jobs"`
}

func (s *Server) notificationHistory(ctx handler.Context, req historyRequest) handler.Response {
	st := queue.JobStatus(req.Status)
	if st == "" {
		st = queue.JobStatusCompleted
	}
	if !st.IsTerminal() {
		return handler.Error(handler.BadRequest("status must be completed or failed"))
	}

	limit := req.Limit
	switch {
	case limit < 0:
		return handler.Error(handler.BadRequest("limit must not be negative"))
	case limit == 0:
		limit = s.cfg.HistoryLimit
	case limit > s.cfg.MaxHistoryLimit:
		limit = s.cfg.MaxHistoryLimit
	}

	jobs, err := s.notifications.History(ctx, st, limit)
	switch {
	case errors.Is(err, notifications.ErrHistoryDisabled):
		return handler.Error(handler.ServiceUnavailable("Job history is not available", err))
	case err != nil:
		return handler.Error(handler.Internal("Failed to load job history", err))
	}
	if jobs == nil {
		jobs = []queue.Job{}
	}

	return handler.JSON(historyResponse{
		Success: true,
		Data:    historyData{Status: st, Count: len(jobs), Jobs: jobs},
	})
}
