package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/buildforge/api/internal/middleware"
	"github.com/buildforge/api/internal/model"
	"github.com/buildforge/api/internal/service"
	"github.com/buildforge/api/pkg/response"
)

type ModifyHandler struct {
	service   *service.ModifyService
	validator *validator.Validate
}

func NewModifyHandler(svc *service.ModifyService, v *validator.Validate) *ModifyHandler {
	return &ModifyHandler{
		service:   svc,
		validator: v,
	}
}

// Start handles POST /api/modify
func (h *ModifyHandler) Start(c *fiber.Ctx) error {
	var req model.ModifyRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	accepted, rejected, err := h.service.Start(c.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}
	if rejected != nil {
		return response.Rejected(c, rejected.Reason)
	}

	return response.Accepted(c, accepted)
}
