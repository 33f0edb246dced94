package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/buildforge/api/internal/service"
	"github.com/buildforge/api/pkg/response"
)

type JobHandler struct {
	service *service.JobService
}

func NewJobHandler(svc *service.JobService) *JobHandler {
	return &JobHandler{service: svc}
}

// Status handles GET /api/jobs/:jobId
func (h *JobHandler) Status(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, ok := h.service.GetStatus(jobID)
	if !ok {
		return response.NotFound(c, "Job not found")
	}

	return response.OK(c, result)
}
