package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/acme/linkedin-outreach/internal/app"
	"github.com/acme/linkedin-outreach/internal/scheduler"
	campaignsvc "github.com/acme/linkedin-outreach/internal/service/campaign"
	executionsvc "github.com/acme/linkedin-outreach/internal/service/execution"
	prospectsvc "github.com/acme/linkedin-outreach/internal/service/prospect"
	templatesvc "github.com/acme/linkedin-outreach/internal/service/template"
)

// HandlerSet bundles all HTTP handlers.
type HandlerSet struct {
	container *app.Container
	campaigns *campaignsvc.Service
	templates *templatesvc.Service
	prospects *prospectsvc.Service
	execution *executionsvc.Service
	scheduler *scheduler.Scheduler
	validate  *validator.Validate
}

// NewHandlerSet creates a new handler bundle.
func NewHandlerSet(container *app.Container) *HandlerSet {
	services := container.Services()
	return &HandlerSet{
		container: container,
		campaigns: services.Campaign,
		templates: services.Template,
		prospects: services.Prospect,
		execution: services.Execution,
		scheduler: container.Scheduler(),
		validate:  validator.New(),
	}
}

// Register wires all routes onto the fiber app.
func (h *HandlerSet) Register(app *fiber.App) {
	app.Get("/healthz", h.health)

	api := app.Group("/api")
	v1 := api.Group("/v1")

	campaigns := v1.Group("/campaigns")
	campaigns.Post("/", h.createCampaign)
	campaigns.Get("/", h.listCampaigns)
	campaigns.Get("/:id", h.getCampaign)
	campaigns.Put("/:id", h.updateCampaign)
	campaigns.Delete("/:id", h.deleteCampaign)
	campaigns.Post("/:id/start", h.startCampaign)
	campaigns.Post("/:id/pause", h.pauseCampaign)
	campaigns.Post("/:id/archive", h.archiveCampaign)
	campaigns.Get("/:id/stats", h.campaignStats)
	campaigns.Post("/:id/prospects", h.addCampaignProspects)
	campaigns.Delete("/:id/prospects", h.removeCampaignProspects)
	campaigns.Get("/:id/actions", h.listCampaignActions)

	templates := v1.Group("/templates")
	templates.Post("/", h.createTemplate)
	templates.Get("/", h.listTemplates)
	templates.Get("/:id", h.getTemplate)
	templates.Put("/:id", h.updateTemplate)
	templates.Delete("/", h.deleteTemplates)

	prospects := v1.Group("/prospects")
	prospects.Post("/", h.createProspect)
	prospects.Post("/import", h.importProspects)
	prospects.Get("/", h.listProspects)
	prospects.Get("/stats", h.prospectStats)
	prospects.Get("/:id", h.getProspect)
	prospects.Put("/:id/connection", h.setConnectionStatus)
	prospects.Delete("/", h.deleteProspects)

	v1.Get("/campaign-actions", h.actionCatalog)

	extension := v1.Group("/extension")
	extension.Get("/actions/next", h.nextAction)
	extension.Post("/actions/:id/complete", h.completeAction)
	extension.Get("/actions/stats", h.actionStats)
	extension.Get("/campaigns/active", h.activeCampaigns)
}

// ErrorHandler provides centralized error responses.
func (h *HandlerSet) ErrorHandler(ctx *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := err.Error()

	if fiberErr, ok := err.(*fiber.Error); ok {
		code = fiberErr.Code
		message = fiberErr.Message
	}

	if code == fiber.StatusInternalServerError {
		h.container.Logger.Error("request failed", zap.Error(err))
	}

	return ctx.Status(code).JSON(fiber.Map{
		"error":    message,
		"trace_id": ctx.GetRespHeader("Trace-Id"),
	})
}

func (h *HandlerSet) health(ctx *fiber.Ctx) error {
	healthCtx, cancel := context.WithTimeout(ctx.Context(), 2*time.Second)
	defer cancel()

	errs := make(map[string]string)

	if err := h.container.Postgres.DB().PingContext(healthCtx); err != nil {
		errs["postgres"] = err.Error()
	}

	if err := h.container.Redis.Inner().Ping(healthCtx).Err(); err != nil {
		errs["redis"] = err.Error()
	}

	if err := h.container.Scylla.Session().Query("SELECT now() FROM system.local").WithContext(healthCtx).Exec(); err != nil {
		errs["scylla"] = err.Error()
	}

	status := fiber.StatusOK
	if len(errs) > 0 {
		status = fiber.StatusServiceUnavailable
	}

	return ctx.Status(status).JSON(fiber.Map{"status": "ok", "errors": errs})
}

// ownerID resolves the authenticated user from the gateway-injected
// header.
func ownerID(ctx *fiber.Ctx) (uuid.UUID, error) {
	raw := ctx.Get("X-User-ID")
	if raw == "" {
		return uuid.Nil, fiber.NewError(http.StatusUnauthorized, "missing user identity")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fiber.NewError(http.StatusUnauthorized, "invalid user identity")
	}
	return id, nil
}

// executorIdentity names the polling browser extension instance.
func executorIdentity(ctx *fiber.Ctx) string {
	if id := ctx.Get("X-Extension-ID"); id != "" {
		return id
	}
	return ctx.Query("extension_id")
}

func parseUUID(value string) (uuid.UUID, error) {
	return uuid.Parse(value)
}

func parseUUIDList(values []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(values))
	for _, value := range values {
		id, err := uuid.Parse(value)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
