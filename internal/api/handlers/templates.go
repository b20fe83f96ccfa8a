package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/acme/linkedin-outreach/internal/domain"
	templatesvc "github.com/acme/linkedin-outreach/internal/service/template"
)

type createTemplateRequest struct {
	Name    string `json:"name" validate:"required,max=200"`
	Type    string `json:"type" validate:"required,oneof=invitation message"`
	Content string `json:"content" validate:"required"`
}

type updateTemplateRequest struct {
	Name    *string `json:"name"`
	Type    *string `json:"type"`
	Content *string `json:"content"`
}

type templateResponse struct {
	ID        uuid.UUID           `json:"id"`
	Name      string              `json:"name"`
	Type      domain.TemplateType `json:"type"`
	Content   string              `json:"content"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

type idsRequest struct {
	IDs []string `json:"ids" validate:"required,min=1"`
}

func (h *HandlerSet) createTemplate(ctx *fiber.Ctx) error {
	owner, err := ownerID(ctx)
	if err != nil {
		return err
	}

	var req createTemplateRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	template, err := h.templates.Create(ctx.Context(), templatesvc.CreateTemplateInput{
		OwnerID: owner,
		Name:    req.Name,
		Type:    domain.TemplateType(req.Type),
		Content: req.Content,
	})
	if err != nil {
		return translateError(err)
	}

	return ctx.Status(http.StatusCreated).JSON(toTemplateResponse(template))
}

func (h *HandlerSet) listTemplates(ctx *fiber.Ctx) error {
	owner, err := ownerID(ctx)
	if err != nil {
		return err
	}

	limit, _ := strconv.Atoi(ctx.Query("limit", "50"))
	templateType := domain.TemplateType(ctx.Query("type"))

	templates, err := h.templates.List(ctx.Context(), owner, templateType, limit)
	if err != nil {
		return translateError(err)
	}

	resp := make([]templateResponse, 0, len(templates))
	for _, t := range templates {
		resp = append(resp, toTemplateResponse(t))
	}
	return ctx.Status(http.StatusOK).JSON(fiber.Map{"templates": resp})
}

func (h *HandlerSet) getTemplate(ctx *fiber.Ctx) error {
	owner, err := ownerID(ctx)
	if err != nil {
		return err
	}
	id, err := parseUUID(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid template id")
	}

	template, err := h.templates.Get(ctx.Context(), owner, id)
	if err != nil {
		return translateError(err)
	}
	return ctx.Status(http.StatusOK).JSON(toTemplateResponse(template))
}

func (h *HandlerSet) updateTemplate(ctx *fiber.Ctx) error {
	owner, err := ownerID(ctx)
	if err != nil {
		return err
	}
	id, err := parseUUID(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid template id")
	}

	var req updateTemplateRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}

	input := templatesvc.UpdateTemplateInput{
		ID:      id,
		OwnerID: owner,
		Name:    req.Name,
		Content: req.Content,
	}
	if req.Type != nil {
		t := domain.TemplateType(*req.Type)
		input.Type = &t
	}

	template, err := h.templates.Update(ctx.Context(), input)
	if err != nil {
		return translateError(err)
	}
	return ctx.Status(http.StatusOK).JSON(toTemplateResponse(template))
}

func (h *HandlerSet) deleteTemplates(ctx *fiber.Ctx) error {
	owner, err := ownerID(ctx)
	if err != nil {
		return err
	}

	var req idsRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	ids, err := parseUUIDList(req.IDs)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid template id")
	}

	deleted, err := h.templates.Delete(ctx.Context(), owner, ids)
	if err != nil {
		return translateError(err)
	}
	return ctx.Status(http.StatusOK).JSON(fiber.Map{"deleted": deleted})
}

func toTemplateResponse(template *domain.MessageTemplate) templateResponse {
	return templateResponse{
		ID:        template.ID,
		Name:      template.Name,
		Type:      template.Type,
		Content:   template.Content,
		CreatedAt: template.CreatedAt,
		UpdatedAt: template.UpdatedAt,
	}
}
