package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/acme/linkedin-outreach/internal/domain"
	"github.com/acme/linkedin-outreach/internal/repository"
	prospectsvc "github.com/acme/linkedin-outreach/internal/service/prospect"
)

type prospectRequest struct {
	LinkedInID      string `json:"linkedin_id"`
	FullName        string `json:"full_name" validate:"required"`
	Headline        string `json:"headline"`
	ProfileURL      string `json:"profile_url" validate:"required,url"`
	ProfileImageURL string `json:"profile_image_url"`
}

type importProspectsRequest struct {
	Prospects []prospectRequest `json:"prospects" validate:"required,min=1,dive"`
}

type setConnectionRequest struct {
	ConnectionStatus string `json:"connection_status" validate:"required"`
}

type prospectResponse struct {
	ID               uuid.UUID               `json:"id"`
	LinkedInID       string                  `json:"linkedin_id,omitempty"`
	FullName         string                  `json:"full_name"`
	Headline         string                  `json:"headline,omitempty"`
	ProfileURL       string                  `json:"profile_url"`
	ProfileImageURL  string                  `json:"profile_image_url,omitempty"`
	ConnectionStatus domain.ConnectionStatus `json:"connection_status"`
	CreatedAt        time.Time               `json:"created_at"`
	UpdatedAt        time.Time               `json:"updated_at"`
}

func (h *HandlerSet) createProspect(ctx *fiber.Ctx) error {
	owner, err := ownerID(ctx)
	if err != nil {
		return err
	}

	var req prospectRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	prospect, err := h.prospects.Create(ctx.Context(), owner, toProspectInput(req))
	if err != nil {
		return translateError(err)
	}
	return ctx.Status(http.StatusCreated).JSON(toProspectResponse(prospect))
}

func (h *HandlerSet) importProspects(ctx *fiber.Ctx) error {
	owner, err := ownerID(ctx)
	if err != nil {
		return err
	}

	var req importProspectsRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	inputs := make([]prospectsvc.ProspectInput, 0, len(req.Prospects))
	for _, p := range req.Prospects {
		inputs = append(inputs, toProspectInput(p))
	}

	imported, err := h.prospects.Import(ctx.Context(), owner, inputs)
	if err != nil {
		return translateError(err)
	}
	return ctx.Status(http.StatusOK).JSON(fiber.Map{
		"imported": imported,
		"skipped":  int64(len(inputs)) - imported,
	})
}

func (h *HandlerSet) listProspects(ctx *fiber.Ctx) error {
	owner, err := ownerID(ctx)
	if err != nil {
		return err
	}

	limit, _ := strconv.Atoi(ctx.Query("limit", "50"))
	offset, _ := strconv.Atoi(ctx.Query("offset", "0"))
	filter := repository.ProspectFilter{
		ConnectionStatus: domain.ConnectionStatus(ctx.Query("connection_status")),
		Search:           ctx.Query("search"),
		Limit:            limit,
		Offset:           offset,
	}

	prospects, err := h.prospects.List(ctx.Context(), owner, filter)
	if err != nil {
		return translateError(err)
	}

	resp := make([]prospectResponse, 0, len(prospects))
	for _, p := range prospects {
		resp = append(resp, toProspectResponse(p))
	}
	return ctx.Status(http.StatusOK).JSON(fiber.Map{"prospects": resp})
}

func (h *HandlerSet) prospectStats(ctx *fiber.Ctx) error {
	owner, err := ownerID(ctx)
	if err != nil {
		return err
	}

	stats, err := h.prospects.Stats(ctx.Context(), owner)
	if err != nil {
		return translateError(err)
	}
	return ctx.Status(http.StatusOK).JSON(fiber.Map{
		"total":         stats.Total,
		"not_connected": stats.NotConnected,
		"pending":       stats.Pending,
		"connected":     stats.Connected,
		"withdrawn":     stats.Withdrawn,
	})
}

func (h *HandlerSet) getProspect(ctx *fiber.Ctx) error {
	owner, err := ownerID(ctx)
	if err != nil {
		return err
	}
	id, err := parseUUID(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid prospect id")
	}

	prospect, err := h.prospects.Get(ctx.Context(), owner, id)
	if err != nil {
		return translateError(err)
	}
	return ctx.Status(http.StatusOK).JSON(toProspectResponse(prospect))
}

func (h *HandlerSet) setConnectionStatus(ctx *fiber.Ctx) error {
	owner, err := ownerID(ctx)
	if err != nil {
		return err
	}
	id, err := parseUUID(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid prospect id")
	}

	var req setConnectionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	prospect, err := h.prospects.SetConnectionStatus(ctx.Context(), owner, id, domain.ConnectionStatus(req.ConnectionStatus))
	if err != nil {
		return translateError(err)
	}
	return ctx.Status(http.StatusOK).JSON(toProspectResponse(prospect))
}

func (h *HandlerSet) deleteProspects(ctx *fiber.Ctx) error {
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
		return fiber.NewError(http.StatusBadRequest, "invalid prospect id")
	}

	deleted, err := h.prospects.Delete(ctx.Context(), owner, ids)
	if err != nil {
		return translateError(err)
	}
	return ctx.Status(http.StatusOK).JSON(fiber.Map{"deleted": deleted})
}

func toProspectInput(req prospectRequest) prospectsvc.ProspectInput {
	return prospectsvc.ProspectInput{
		LinkedInID:      req.LinkedInID,
		FullName:        req.FullName,
		Headline:        req.Headline,
		ProfileURL:      req.ProfileURL,
		ProfileImageURL: req.ProfileImageURL,
	}
}

func toProspectResponse(prospect *domain.Prospect) prospectResponse {
	return prospectResponse{
		ID:               prospect.ID,
		LinkedInID:       prospect.LinkedInID,
		FullName:         prospect.FullName,
		Headline:         prospect.Headline,
		ProfileURL:       prospect.ProfileURL,
		ProfileImageURL:  prospect.ProfileImageURL,
		ConnectionStatus: prospect.ConnectionStatus,
		CreatedAt:        prospect.CreatedAt,
		UpdatedAt:        prospect.UpdatedAt,
	}
}
