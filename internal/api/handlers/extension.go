package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/acme/linkedin-outreach/internal/domain"
)

type completeActionRequest struct {
	Outcome string `json:"outcome" validate:"required,oneof=success failure"`
	Reason  string `json:"reason"`
}

// nextAction hands the polling extension its next claimed action, or 204
// when nothing is due.
func (h *HandlerSet) nextAction(ctx *fiber.Ctx) error {
	identity := executorIdentity(ctx)
	if identity == "" {
		return fiber.NewError(http.StatusBadRequest, "missing extension identity")
	}

	action, err := h.scheduler.NextAction(ctx.Context(), identity)
	if err != nil {
		return translateError(err)
	}
	if action == nil {
		return ctx.SendStatus(http.StatusNoContent)
	}
	return ctx.Status(http.StatusOK).JSON(action)
}

func (h *HandlerSet) completeAction(ctx *fiber.Ctx) error {
	id, err := parseUUID(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid action id")
	}

	var req completeActionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	applied, err := h.execution.Complete(ctx.Context(), id, domain.ActionOutcome(req.Outcome), req.Reason)
	if err != nil {
		return translateError(err)
	}
	return ctx.Status(http.StatusOK).JSON(fiber.Map{"applied": applied})
}

func (h *HandlerSet) actionStats(ctx *fiber.Ctx) error {
	stats, err := h.execution.Stats(ctx.Context())
	if err != nil {
		return translateError(err)
	}
	return ctx.Status(http.StatusOK).JSON(fiber.Map{
		"pending_actions":  stats.PendingActions,
		"claimed_actions":  stats.ClaimedActions,
		"completed_today":  stats.CompletedToday,
		"succeeded_today":  stats.SucceededToday,
		"failed_today":     stats.FailedToday,
		"active_campaigns": stats.ActiveCampaigns,
	})
}

func (h *HandlerSet) activeCampaigns(ctx *fiber.Ctx) error {
	campaigns, err := h.campaigns.ListActive(ctx.Context(), 100)
	if err != nil {
		return translateError(err)
	}

	resp := make([]campaignResponse, 0, len(campaigns))
	for _, c := range campaigns {
		resp = append(resp, h.toCampaignResponse(ctx, c, false))
	}
	return ctx.Status(http.StatusOK).JSON(fiber.Map{"campaigns": resp})
}
