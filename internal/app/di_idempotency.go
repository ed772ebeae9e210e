package app

import (
	"fmt"

	idempotencyRepository "github.com/careops/scheduling/internal/idempotency/repository"
	idempotencyUsecase "github.com/careops/scheduling/internal/idempotency/usecase"
)

// IdempotencyRepository returns the idempotency record repository.
func (c *Container) IdempotencyRepository() (*idempotencyRepository.PostgreSQLIdempotencyRepository, error) {
	c.idempotencyRepoInit.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.initErrors["idempotencyRepository"] = fmt.Errorf("failed to get database for idempotency repository: %w", err)
			return
		}
		c.idempotencyRepo = idempotencyRepository.NewPostgreSQLIdempotencyRepository(db)
	})
	if storedErr, exists := c.initErrors["idempotencyRepository"]; exists {
		return nil, storedErr
	}
	return c.idempotencyRepo, nil
}

// IdempotencyUseCase returns the idempotency ledger use case.
func (c *Container) IdempotencyUseCase() (idempotencyUsecase.UseCase, error) {
	var err error
	c.idempotencyUseCaseInit.Do(func() {
		c.idempotencyUseCase, err = c.initIdempotencyUseCase()
		if err != nil {
			c.initErrors["idempotencyUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["idempotencyUseCase"]; exists {
		return nil, storedErr
	}
	return c.idempotencyUseCase, nil
}

// initIdempotencyUseCase creates the idempotency use case with all its dependencies.
func (c *Container) initIdempotencyUseCase() (idempotencyUsecase.UseCase, error) {
	recordRepo, err := c.IdempotencyRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get idempotency repository for idempotency use case: %w", err)
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for idempotency use case: %w", err)
	}

	return idempotencyUsecase.NewIdempotencyUseCase(
		idempotencyUsecase.Config{
			PendingTTL:    c.config.IdempotencyPendingTTL,
			SweepInterval: c.config.IdempotencySweepInterval,
			SweepLimit:    c.config.IdempotencySweepLimit,
		},
		recordRepo,
		businessMetrics,
		c.Logger(),
	), nil
}
