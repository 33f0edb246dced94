package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/buildforge/api/internal/middleware"
	"github.com/buildforge/api/internal/model"
	"github.com/buildforge/api/internal/service"
	"github.com/buildforge/api/pkg/response"
)

type AnalyzeHandler struct {
	service   *service.AnalyzeService
	validator *validator.Validate
}

func NewAnalyzeHandler(svc *service.AnalyzeService, v *validator.Validate) *AnalyzeHandler {
	return &AnalyzeHandler{
		service:   svc,
		validator: v,
	}
}

// Analyze handles POST /api/analyze
func (h *AnalyzeHandler) Analyze(c *fiber.Ctx) error {
	var req model.AnalyzeRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, rejected, err := h.service.Analyze(c.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		return response.AIError(c, err.Error())
	}
	if rejected != nil {
		return response.Rejected(c, rejected.Reason)
	}

	return response.OK(c, result)
}
