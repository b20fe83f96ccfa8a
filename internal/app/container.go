package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/acme/linkedin-outreach/internal/config"
	"github.com/acme/linkedin-outreach/internal/infra/db"
	"github.com/acme/linkedin-outreach/internal/infra/redis"
	"github.com/acme/linkedin-outreach/internal/queue"
	"github.com/acme/linkedin-outreach/internal/repository"
	pgrepo "github.com/acme/linkedin-outreach/internal/repository/postgres"
	scyllarepo "github.com/acme/linkedin-outreach/internal/repository/scylla"
	"github.com/acme/linkedin-outreach/internal/scheduler"
	campaignsvc "github.com/acme/linkedin-outreach/internal/service/campaign"
	"github.com/acme/linkedin-outreach/internal/service/concurrency"
	executionsvc "github.com/acme/linkedin-outreach/internal/service/execution"
	prospectsvc "github.com/acme/linkedin-outreach/internal/service/prospect"
	templatesvc "github.com/acme/linkedin-outreach/internal/service/template"
	"github.com/acme/linkedin-outreach/pkg/logger"
)

// Container wires together shared infrastructure dependencies.
type Container struct {
	Config *config.Config
	Logger *logger.Logger

	Postgres *db.Postgres
	Scylla   *db.Scylla
	Redis    *redis.Client
	Kafka    *queue.Kafka

	// lazily initialised components
	components struct {
		once         sync.Once
		repositories *repositories
		services     *services
		publishers   *publishers
		limiters     *limiters
		scheduler    *scheduler.Scheduler
	}
}

type repositories struct {
	Campaigns   repository.CampaignRepository
	Steps       repository.StepRepository
	Enrollments repository.EnrollmentRepository
	Queue       repository.QueueRepository
	Prospects   repository.ProspectRepository
	Templates   repository.TemplateRepository
	ActionLog   repository.ActionLogStore
}

type services struct {
	Campaign  *campaignsvc.Service
	Template  *templatesvc.Service
	Prospect  *prospectsvc.Service
	Execution *executionsvc.Service
}

type publishers struct {
	Outcome *queue.OutcomePublisher
}

type limiters struct {
	Concurrency *concurrency.Limiter
}

// Build constructs a container for the given configuration path.
func Build(ctx context.Context, configPath string) (*Container, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	lg, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, err
	}

	pg, err := db.NewPostgres(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("bootstrap postgres: %w", err)
	}

	scylla, err := db.NewScylla(cfg.Scylla)
	if err != nil {
		return nil, fmt.Errorf("bootstrap scylla: %w", err)
	}

	redisClient, err := redis.NewClient(cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("bootstrap redis: %w", err)
	}

	kafka, err := queue.NewKafka(cfg.Kafka)
	if err != nil {
		return nil, fmt.Errorf("bootstrap kafka: %w", err)
	}

	container := &Container{
		Config:   cfg,
		Logger:   lg,
		Postgres: pg,
		Scylla:   scylla,
		Redis:    redisClient,
		Kafka:    kafka,
	}

	return container, nil
}

func (c *Container) initComponents() {
	c.components.once.Do(func() {
		repos := &repositories{
			Campaigns:   pgrepo.NewCampaignRepository(c.Postgres.DB()),
			Steps:       pgrepo.NewStepRepository(c.Postgres.DB()),
			Enrollments: pgrepo.NewEnrollmentRepository(c.Postgres.DB()),
			Queue:       pgrepo.NewQueueRepository(c.Postgres.DB()),
			Prospects:   pgrepo.NewProspectRepository(c.Postgres.DB()),
			Templates:   pgrepo.NewTemplateRepository(c.Postgres.DB()),
			ActionLog:   scyllarepo.NewActionLog(c.Scylla.Session()),
		}

		pubs := &publishers{
			Outcome: queue.NewOutcomePublisher(c.Kafka, c.Config.Kafka.OutcomeTopic),
		}

		lims := &limiters{
			Concurrency: concurrency.NewLimiter(c.Redis.Inner(), c.Config.Limits.MaxInFlightClaims, c.Config.Queue.ClaimTTL),
		}

		svcs := &services{
			Campaign: campaignsvc.NewService(
				repos.Campaigns,
				repos.Steps,
				repos.Enrollments,
				repos.Queue,
				repos.Templates,
				c.Config.Limits.DefaultDailyLimit,
			),
			Template: templatesvc.NewService(repos.Templates),
			Prospect: prospectsvc.NewService(repos.Prospects),
		}
		svcs.Execution = executionsvc.NewService(
			repos.Campaigns,
			repos.Steps,
			repos.Enrollments,
			repos.Queue,
			lims.Concurrency,
			pubs.Outcome,
			c.Logger,
		)

		c.components.repositories = repos
		c.components.publishers = pubs
		c.components.limiters = lims
		c.components.services = svcs
		c.components.scheduler = scheduler.New(
			repos.Campaigns,
			repos.Steps,
			repos.Enrollments,
			repos.Queue,
			repos.Prospects,
			repos.Templates,
			lims.Concurrency,
			c.Logger,
			c.Config.Queue.CandidateBatchSize,
		)
	})
}

// Repositories exposes initialized repositories.
func (c *Container) Repositories() *repositories {
	c.initComponents()
	return c.components.repositories
}

// Services exposes initialized services.
func (c *Container) Services() *services {
	c.initComponents()
	return c.components.services
}

// Scheduler exposes the action scheduler.
func (c *Container) Scheduler() *scheduler.Scheduler {
	c.initComponents()
	return c.components.scheduler
}

// EnsureTopics ensures required Kafka topics exist.
func (c *Container) EnsureTopics(ctx context.Context) error {
	return c.Kafka.EnsureTopics(ctx, []string{c.Config.Kafka.OutcomeTopic}, 12, 1)
}

// Close releases all held resources.
func (c *Container) Close(ctx context.Context) error {
	var errs []error
	if c.components.publishers != nil && c.components.publishers.Outcome != nil {
		if err := c.components.publishers.Outcome.Close(); err != nil {
			errs = append(errs, fmt.Errorf("outcome publisher close: %w", err))
		}
	}
	if c.Kafka != nil {
		if err := c.Kafka.Close(); err != nil {
			errs = append(errs, fmt.Errorf("kafka close: %w", err))
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	if c.Scylla != nil {
		if err := c.Scylla.Close(); err != nil {
			errs = append(errs, fmt.Errorf("scylla close: %w", err))
		}
	}
	if c.Postgres != nil {
		if err := c.Postgres.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("postgres close: %w", err))
		}
	}
	if c.Logger != nil {
		c.Logger.Sync()
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
