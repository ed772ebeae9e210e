package app

import (
	"fmt"

	schedulingHTTP "github.com/careops/scheduling/internal/scheduling/http"
	schedulingRepository "github.com/careops/scheduling/internal/scheduling/repository"
	schedulingUsecase "github.com/careops/scheduling/internal/scheduling/usecase"
)

// AppointmentRepository returns the appointment repository.
func (c *Container) AppointmentRepository() (*schedulingRepository.PostgreSQLAppointmentRepository, error) {
	c.appointmentRepoInit.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.initErrors["appointmentRepository"] = fmt.Errorf("failed to get database for appointment repository: %w", err)
			return
		}
		c.appointmentRepo = schedulingRepository.NewPostgreSQLAppointmentRepository(db)
	})
	if storedErr, exists := c.initErrors["appointmentRepository"]; exists {
		return nil, storedErr
	}
	return c.appointmentRepo, nil
}

// SchedulingUseCase returns the scheduling use case.
func (c *Container) SchedulingUseCase() (schedulingUsecase.UseCase, error) {
	var err error
	c.schedulingUseCaseInit.Do(func() {
		c.schedulingUseCase, err = c.initSchedulingUseCase()
		if err != nil {
			c.initErrors["schedulingUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["schedulingUseCase"]; exists {
		return nil, storedErr
	}
	return c.schedulingUseCase, nil
}

// AppointmentHandler returns the HTTP handler for appointment operations.
func (c *Container) AppointmentHandler() (*schedulingHTTP.AppointmentHandler, error) {
	c.appointmentHandlerInit.Do(func() {
		schedulingUseCase, err := c.SchedulingUseCase()
		if err != nil {
			c.initErrors["appointmentHandler"] = fmt.Errorf("failed to get scheduling use case for appointment handler: %w", err)
			return
		}
		c.appointmentHandler = schedulingHTTP.NewAppointmentHandler(schedulingUseCase, c.Logger())
	})
	if storedErr, exists := c.initErrors["appointmentHandler"]; exists {
		return nil, storedErr
	}
	return c.appointmentHandler, nil
}

// initSchedulingUseCase creates the scheduling use case with all its dependencies.
func (c *Container) initSchedulingUseCase() (schedulingUsecase.UseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for scheduling use case: %w", err)
	}

	appointmentRepo, err := c.AppointmentRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment repository for scheduling use case: %w", err)
	}

	outboxRepo, err := c.OutboxRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox repository for scheduling use case: %w", err)
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for scheduling use case: %w", err)
	}

	return schedulingUsecase.NewSchedulingUseCase(
		txManager,
		appointmentRepo,
		outboxRepo,
		businessMetrics,
	), nil
}
