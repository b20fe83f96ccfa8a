package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/acme/linkedin-outreach/internal/domain"
	campaignsvc "github.com/acme/linkedin-outreach/internal/service/campaign"
)

type createCampaignRequest struct {
	Name        string        `json:"name" validate:"required,max=200"`
	Description string        `json:"description"`
	TimeZone    string        `json:"time_zone"`
	DailyLimit  int           `json:"daily_limit" validate:"gte=0"`
	Steps       []stepRequest `json:"steps" validate:"required,min=1,dive"`
}

type stepRequest struct {
	Order      int    `json:"order" validate:"required,gte=1"`
	Action     string `json:"action" validate:"required"`
	DelayDays  int    `json:"delay_days" validate:"gte=0"`
	TemplateID string `json:"template_id"`
}

type updateCampaignRequest struct {
	Name        *string        `json:"name"`
	Description *string        `json:"description"`
	TimeZone    *string        `json:"time_zone"`
	DailyLimit  *int           `json:"daily_limit"`
	Steps       *[]stepRequest `json:"steps"`
}

type campaignResponse struct {
	ID                 uuid.UUID             `json:"id"`
	Name               string                `json:"name"`
	Description        string                `json:"description"`
	TimeZone           string                `json:"time_zone"`
	Status             domain.CampaignStatus `json:"status"`
	DailyLimit         int                   `json:"daily_limit"`
	TotalProspects     int                   `json:"total_prospects"`
	ProcessedProspects int                   `json:"processed_prospects"`
	SuccessCount       int                   `json:"success_count"`
	FailureCount       int                   `json:"failure_count"`
	Steps              []stepResponse        `json:"steps,omitempty"`
	CreatedAt          time.Time             `json:"created_at"`
	UpdatedAt          time.Time             `json:"updated_at"`
	StartedAt          *time.Time            `json:"started_at,omitempty"`
	CompletedAt        *time.Time            `json:"completed_at,omitempty"`
}

type stepResponse struct {
	ID         uuid.UUID  `json:"id"`
	Order      int        `json:"order"`
	Action     string     `json:"action"`
	DelayDays  int        `json:"delay_days"`
	TemplateID *uuid.UUID `json:"template_id,omitempty"`
}

type campaignStatsResponse struct {
	TotalProspects     int `json:"total_prospects"`
	ProcessedProspects int `json:"processed_prospects"`
	SuccessCount       int `json:"success_count"`
	FailureCount       int `json:"failure_count"`
	PendingProspects   int `json:"pending_prospects"`
	ActionsToday       int `json:"actions_today"`
}

type listCampaignsResponse struct {
	Campaigns []campaignResponse `json:"campaigns"`
}

type prospectIDsRequest struct {
	ProspectIDs []string `json:"prospect_ids" validate:"required,min=1"`
}

func (h *HandlerSet) createCampaign(ctx *fiber.Ctx) error {
	owner, err := ownerID(ctx)
	if err != nil {
		return err
	}

	var req createCampaignRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	steps, err := toStepInputs(req.Steps)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid step template id")
	}

	campaign, err := h.campaigns.Create(ctx.Context(), campaignsvc.CreateCampaignInput{
		OwnerID:     owner,
		Name:        req.Name,
		Description: req.Description,
		TimeZone:    req.TimeZone,
		DailyLimit:  req.DailyLimit,
		Steps:       steps,
	})
	if err != nil {
		return translateError(err)
	}

	return ctx.Status(http.StatusCreated).JSON(h.toCampaignResponse(ctx, campaign, true))
}

func (h *HandlerSet) listCampaigns(ctx *fiber.Ctx) error {
	owner, err := ownerID(ctx)
	if err != nil {
		return err
	}

	limit, _ := strconv.Atoi(ctx.Query("limit", "50"))
	status := domain.CampaignStatus(ctx.Query("status"))

	campaigns, err := h.campaigns.List(ctx.Context(), owner, status, limit)
	if err != nil {
		return translateError(err)
	}

	resp := listCampaignsResponse{Campaigns: make([]campaignResponse, 0, len(campaigns))}
	for _, c := range campaigns {
		resp.Campaigns = append(resp.Campaigns, h.toCampaignResponse(ctx, c, false))
	}

	return ctx.Status(http.StatusOK).JSON(resp)
}

func (h *HandlerSet) getCampaign(ctx *fiber.Ctx) error {
	id, err := parseUUID(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid campaign id")
	}

	campaign, err := h.campaigns.Get(ctx.Context(), id)
	if err != nil {
		return translateError(err)
	}

	return ctx.Status(http.StatusOK).JSON(h.toCampaignResponse(ctx, campaign, true))
}

func (h *HandlerSet) updateCampaign(ctx *fiber.Ctx) error {
	id, err := parseUUID(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid campaign id")
	}

	var req updateCampaignRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}

	input := campaignsvc.UpdateCampaignInput{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		TimeZone:    req.TimeZone,
		DailyLimit:  req.DailyLimit,
	}
	if req.Steps != nil {
		steps, err := toStepInputs(*req.Steps)
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid step template id")
		}
		input.Steps = &steps
	}

	campaign, err := h.campaigns.Update(ctx.Context(), input)
	if err != nil {
		return translateError(err)
	}

	return ctx.Status(http.StatusOK).JSON(h.toCampaignResponse(ctx, campaign, true))
}

func (h *HandlerSet) deleteCampaign(ctx *fiber.Ctx) error {
	id, err := parseUUID(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid campaign id")
	}
	if err := h.campaigns.Delete(ctx.Context(), id); err != nil {
		return translateError(err)
	}
	return ctx.SendStatus(http.StatusNoContent)
}

func (h *HandlerSet) startCampaign(ctx *fiber.Ctx) error {
	id, err := parseUUID(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid campaign id")
	}
	if err := h.campaigns.Start(ctx.Context(), id); err != nil {
		return translateError(err)
	}
	return ctx.SendStatus(http.StatusNoContent)
}

func (h *HandlerSet) pauseCampaign(ctx *fiber.Ctx) error {
	id, err := parseUUID(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid campaign id")
	}
	if err := h.campaigns.Pause(ctx.Context(), id); err != nil {
		return translateError(err)
	}
	return ctx.SendStatus(http.StatusNoContent)
}

func (h *HandlerSet) archiveCampaign(ctx *fiber.Ctx) error {
	id, err := parseUUID(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid campaign id")
	}
	if err := h.campaigns.Archive(ctx.Context(), id); err != nil {
		return translateError(err)
	}
	return ctx.SendStatus(http.StatusNoContent)
}

func (h *HandlerSet) campaignStats(ctx *fiber.Ctx) error {
	id, err := parseUUID(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid campaign id")
	}

	stats, err := h.campaigns.Stats(ctx.Context(), id)
	if err != nil {
		return translateError(err)
	}

	return ctx.Status(http.StatusOK).JSON(campaignStatsResponse{
		TotalProspects:     stats.TotalProspects,
		ProcessedProspects: stats.ProcessedProspects,
		SuccessCount:       stats.SuccessCount,
		FailureCount:       stats.FailureCount,
		PendingProspects:   stats.PendingProspects,
		ActionsToday:       stats.ActionsToday,
	})
}

func (h *HandlerSet) addCampaignProspects(ctx *fiber.Ctx) error {
	id, err := parseUUID(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid campaign id")
	}

	var req prospectIDsRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	ids, err := parseUUIDList(req.ProspectIDs)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid prospect id")
	}

	added, err := h.campaigns.AddProspects(ctx.Context(), id, ids)
	if err != nil {
		return translateError(err)
	}

	return ctx.Status(http.StatusOK).JSON(fiber.Map{"added": added})
}

func (h *HandlerSet) removeCampaignProspects(ctx *fiber.Ctx) error {
	id, err := parseUUID(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid campaign id")
	}

	var req prospectIDsRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	ids, err := parseUUIDList(req.ProspectIDs)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid prospect id")
	}

	removed, err := h.campaigns.RemoveProspects(ctx.Context(), id, ids)
	if err != nil {
		return translateError(err)
	}

	return ctx.Status(http.StatusOK).JSON(fiber.Map{"removed": removed})
}

func (h *HandlerSet) toCampaignResponse(ctx *fiber.Ctx, campaign *domain.Campaign, withSteps bool) campaignResponse {
	resp := campaignResponse{
		ID:                 campaign.ID,
		Name:               campaign.Name,
		Description:        campaign.Description,
		TimeZone:           campaign.TimeZone,
		Status:             campaign.Status,
		DailyLimit:         campaign.DailyLimit,
		TotalProspects:     campaign.TotalProspects,
		ProcessedProspects: campaign.ProcessedProspects,
		SuccessCount:       campaign.SuccessCount,
		FailureCount:       campaign.FailureCount,
		CreatedAt:          campaign.CreatedAt,
		UpdatedAt:          campaign.UpdatedAt,
		StartedAt:          campaign.StartedAt,
		CompletedAt:        campaign.CompletedAt,
	}

	if withSteps {
		plan, err := h.campaigns.Steps(ctx.Context(), campaign.ID)
		if err == nil {
			resp.Steps = make([]stepResponse, 0, len(plan))
			for _, step := range plan {
				resp.Steps = append(resp.Steps, stepResponse{
					ID:         step.ID,
					Order:      step.Order,
					Action:     string(step.Kind),
					DelayDays:  step.DelayDays,
					TemplateID: step.TemplateID,
				})
			}
		}
	}

	return resp
}

func toStepInputs(reqs []stepRequest) ([]campaignsvc.StepInput, error) {
	steps := make([]campaignsvc.StepInput, 0, len(reqs))
	for _, req := range reqs {
		step := campaignsvc.StepInput{
			Order:     req.Order,
			Kind:      domain.ActionKind(req.Action),
			DelayDays: req.DelayDays,
		}
		if req.TemplateID != "" {
			id, err := uuid.Parse(req.TemplateID)
			if err != nil {
				return nil, err
			}
			step.TemplateID = &id
		}
		steps = append(steps, step)
	}
	return steps, nil
}
