package service

import (
	"context"
	"fmt"

	"github.com/buildforge/api/internal/model"
	"github.com/buildforge/api/internal/queue"
	"github.com/buildforge/api/internal/security"
)

// ModifyService accepts code modification requests against an existing
// project file set.
type ModifyService struct {
	guard *security.Guard
	queue *queue.Queue
}

func NewModifyService(guard *security.Guard, q *queue.Queue) *ModifyService {
	return &ModifyService{guard: guard, queue: q}
}

// Start validates the request and queues a modification job. A non-nil
// RejectedResponse means the request was refused; it is not an error.
func (s *ModifyService) Start(ctx context.Context, userID string, req *model.ModifyRequest) (*model.JobAcceptedResponse, *model.RejectedResponse, error) {
	if !s.guard.FeatureEnabled(string(model.JobTypeModification)) {
		return nil, &model.RejectedResponse{Reason: "Code modification is temporarily disabled"}, nil
	}

	vr := s.guard.ValidateModificationRequest(ctx, userID, req.Description)
	if !vr.Valid {
		return nil, &model.RejectedResponse{Reason: vr.Reason}, nil
	}

	payload := model.ModificationPayload{
		Description: vr.Sanitized,
		Files:       req.Files,
		RepoName:    req.RepoName,
		UserID:      userID,
		ProjectID:   req.ProjectID,
	}

	jobID, err := s.queue.Create(model.JobTypeModification, payload)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to queue job: %w", err)
	}

	job, _ := s.queue.Get(jobID)
	return &model.JobAcceptedResponse{
		JobID:     jobID,
		Type:      model.JobTypeModification,
		Status:    job.Status,
		CreatedAt: job.CreatedAt,
	}, nil, nil
}
