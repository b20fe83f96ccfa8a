package audit

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/acme/linkedin-outreach/internal/app"
	"github.com/acme/linkedin-outreach/internal/domain"
	"github.com/acme/linkedin-outreach/internal/queue"
)

// Worker consumes action outcome events and appends them to the
// Scylla-backed action log.
type Worker struct {
	container *app.Container
}

// New creates a new audit worker.
func New(container *app.Container) *Worker {
	return &Worker{container: container}
}

// Run processes outcome events until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	cfg := w.container.Config
	reader := w.container.Kafka.NewReader(cfg.Kafka.OutcomeTopic, cfg.Kafka.AuditGroupID)
	defer reader.Close()

	store := w.container.Repositories().ActionLog
	logger := w.container.Logger

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Error("audit worker: fetch", zap.Error(err))
			continue
		}

		var outcome queue.OutcomeMessage
		if err := json.Unmarshal(msg.Value, &outcome); err != nil {
			logger.Error("audit worker: unmarshal", zap.Error(err))
			_ = reader.CommitMessages(ctx, msg)
			continue
		}

		tracer := otel.Tracer("outreach.auditworker")
		sctx, span := tracer.Start(ctx, "action.outcome", trace.WithAttributes(
			attribute.String("entry.id", outcome.EntryID.String()),
			attribute.String("campaign.id", outcome.CampaignID.String()),
			attribute.String("outcome", outcome.Outcome),
		))

		record := domain.ActionRecord{
			EntryID:    outcome.EntryID,
			CampaignID: outcome.CampaignID,
			ProspectID: outcome.ProspectID,
			StepOrder:  outcome.StepOrder,
			Kind:       domain.ActionKind(outcome.Action),
			Outcome:    domain.ActionOutcome(outcome.Outcome),
			Reason:     outcome.Reason,
			Identity:   outcome.Identity,
			OccurredAt: outcome.OccurredAt,
		}
		if err := store.Append(sctx, record); err != nil {
			span.RecordError(err)
			logger.Error("audit worker: append record", zap.Error(err))
		}

		if err := reader.CommitMessages(sctx, msg); err != nil {
			span.RecordError(err)
			logger.Error("audit worker: commit", zap.Error(err))
		}
		span.End()
	}
}
