package handlers

import (
	"encoding/base64"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/acme/linkedin-outreach/internal/domain"
)

type actionSpecResponse struct {
	Kind               domain.ActionKind   `json:"kind"`
	Name               string              `json:"name"`
	Description        string              `json:"description"`
	Icon               string              `json:"icon"`
	RequiresTemplate   bool                `json:"requires_template"`
	RequiresConnection bool                `json:"requires_connection"`
	TemplateType       domain.TemplateType `json:"template_type,omitempty"`
}

type actionRecordResponse struct {
	EntryID    uuid.UUID `json:"entry_id"`
	ProspectID uuid.UUID `json:"prospect_id"`
	StepOrder  int       `json:"step_order"`
	Action     string    `json:"action"`
	Outcome    string    `json:"outcome"`
	Reason     string    `json:"reason,omitempty"`
	Identity   string    `json:"identity,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// actionCatalog serves the closed set of supported action kinds.
func (h *HandlerSet) actionCatalog(ctx *fiber.Ctx) error {
	resp := make([]actionSpecResponse, 0, len(domain.Catalog))
	for _, spec := range domain.Catalog {
		resp = append(resp, actionSpecResponse{
			Kind:               spec.Kind,
			Name:               spec.Name,
			Description:        spec.Description,
			Icon:               spec.Icon,
			RequiresTemplate:   spec.RequiresTemplate,
			RequiresConnection: spec.RequiresConnection,
			TemplateType:       spec.TemplateType,
		})
	}
	return ctx.Status(http.StatusOK).JSON(fiber.Map{"actions": resp})
}

// listCampaignActions serves the campaign's action history from the
// append-only log, paginated with an opaque token.
func (h *HandlerSet) listCampaignActions(ctx *fiber.Ctx) error {
	id, err := parseUUID(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid campaign id")
	}

	limit, _ := strconv.Atoi(ctx.Query("limit", "100"))
	paging, err := decodePageToken(ctx.Query("page_token", ""))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid page token")
	}

	records, next, err := h.container.Repositories().ActionLog.ListByCampaign(ctx.Context(), id, limit, paging)
	if err != nil {
		return translateError(err)
	}

	resp := make([]actionRecordResponse, 0, len(records))
	for _, record := range records {
		resp = append(resp, actionRecordResponse{
			EntryID:    record.EntryID,
			ProspectID: record.ProspectID,
			StepOrder:  record.StepOrder,
			Action:     string(record.Kind),
			Outcome:    string(record.Outcome),
			Reason:     record.Reason,
			Identity:   record.Identity,
			OccurredAt: record.OccurredAt,
		})
	}

	return ctx.Status(http.StatusOK).JSON(fiber.Map{
		"actions":         resp,
		"next_page_token": encodePageToken(next),
	})
}

func encodePageToken(state []byte) string {
	if len(state) == 0 {
		return ""
	}
	return base64.URLEncoding.EncodeToString(state)
}

func decodePageToken(token string) ([]byte, error) {
	if token == "" {
		return nil, nil
	}
	return base64.URLEncoding.DecodeString(token)
}
