package app

import (
	"fmt"

	outboxRepository "github.com/careops/scheduling/internal/outbox/repository"
	outboxUsecase "github.com/careops/scheduling/internal/outbox/usecase"
)

// OutboxRepository returns the outbox event repository.
func (c *Container) OutboxRepository() (*outboxRepository.PostgreSQLOutboxEventRepository, error) {
	c.outboxRepoInit.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.initErrors["outboxRepository"] = fmt.Errorf("failed to get database for outbox repository: %w", err)
			return
		}
		c.outboxRepo = outboxRepository.NewPostgreSQLOutboxEventRepository(db)
	})
	if storedErr, exists := c.initErrors["outboxRepository"]; exists {
		return nil, storedErr
	}
	return c.outboxRepo, nil
}

// OutboxUseCase returns the outbox dispatch use case.
func (c *Container) OutboxUseCase() (outboxUsecase.UseCase, error) {
	var err error
	c.outboxUseCaseInit.Do(func() {
		c.outboxUseCase, err = c.initOutboxUseCase()
		if err != nil {
			c.initErrors["outboxUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["outboxUseCase"]; exists {
		return nil, storedErr
	}
	return c.outboxUseCase, nil
}

// initOutboxUseCase creates the outbox use case with all its dependencies.
func (c *Container) initOutboxUseCase() (outboxUsecase.UseCase, error) {
	outboxRepo, err := c.OutboxRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox repository for outbox use case: %w", err)
	}

	outboxMetrics, err := c.OutboxMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox metrics for outbox use case: %w", err)
	}

	logger := c.Logger()

	return outboxUsecase.NewOutboxUseCase(
		outboxUsecase.Config{
			Interval:    c.config.WorkerInterval,
			BatchSize:   c.config.WorkerBatchSize,
			MaxAttempts: c.config.WorkerMaxAttempts,
			LeaseTTL:    c.config.WorkerLeaseTTL,
		},
		outboxRepo,
		outboxUsecase.NewDefaultEventProcessor(logger),
		outboxMetrics,
		logger,
	), nil
}
