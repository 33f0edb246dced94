package service

import (
	"github.com/buildforge/api/internal/model"
	"github.com/buildforge/api/internal/queue"
)

// JobService exposes poll-based job status lookup.
type JobService struct {
	queue *queue.Queue
}

func NewJobService(q *queue.Queue) *JobService {
	return &JobService{queue: q}
}

// GetStatus returns the poll response for a job. The second return value is
// false when the job is unknown or was already reaped by the retention
// sweep.
func (s *JobService) GetStatus(jobID string) (*model.JobStatusResponse, bool) {
	job, ok := s.queue.Get(jobID)
	if !ok {
		return nil, false
	}

	resp := &model.JobStatusResponse{
		ID:          job.ID,
		Type:        job.Type,
		Status:      job.Status,
		Progress:    job.Progress,
		CurrentStep: job.CurrentStep,
		CreatedAt:   job.CreatedAt,
		UpdatedAt:   job.UpdatedAt,
	}
	if job.Status == model.JobStatusCompleted {
		resp.Result = job.Result
	}
	if job.Status == model.JobStatusFailed {
		resp.Error = job.Error
	}
	return resp, true
}
