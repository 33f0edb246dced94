package service

import (
	"context"
	"fmt"

	"github.com/buildforge/api/internal/model"
	"github.com/buildforge/api/internal/queue"
	"github.com/buildforge/api/internal/security"
)

// GenerateService accepts code generation requests: it screens the prompt,
// honors the feature kill switch, and enqueues the job.
type GenerateService struct {
	guard *security.Guard
	queue *queue.Queue
}

func NewGenerateService(guard *security.Guard, q *queue.Queue) *GenerateService {
	return &GenerateService{guard: guard, queue: q}
}

// Start validates the request and queues a generation job. A non-nil
// RejectedResponse means the request was refused; it is not an error.
func (s *GenerateService) Start(ctx context.Context, userID string, req *model.GenerateRequest) (*model.JobAcceptedResponse, *model.RejectedResponse, error) {
	if !s.guard.FeatureEnabled(string(model.JobTypeGeneration)) {
		return nil, &model.RejectedResponse{Reason: "Code generation is temporarily disabled"}, nil
	}

	vr := s.guard.ValidateModificationRequest(ctx, userID, req.Description)
	if !vr.Valid {
		return nil, &model.RejectedResponse{Reason: vr.Reason}, nil
	}

	payload := model.GenerationPayload{
		ProjectName:         req.ProjectName,
		Description:         vr.Sanitized,
		TemplateID:          req.TemplateID,
		ConversationHistory: req.ConversationHistory,
	}

	jobID, err := s.queue.Create(model.JobTypeGeneration, payload)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to queue job: %w", err)
	}

	job, _ := s.queue.Get(jobID)
	return &model.JobAcceptedResponse{
		JobID:     jobID,
		Type:      model.JobTypeGeneration,
		Status:    job.Status,
		CreatedAt: job.CreatedAt,
	}, nil, nil
}
