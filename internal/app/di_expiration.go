package app

import (
	"fmt"

	expirationUseCase "github.com/allisson/consents/internal/expiration/usecase"
)

// ExpirationUseCase returns the expiration sweeps use case.
func (c *Container) ExpirationUseCase() (expirationUseCase.UseCase, error) {
	var err error
	c.expirationUseCaseInit.Do(func() {
		c.expirationUseCase, err = c.initExpirationUseCase()
		if err != nil {
			c.initErrors["expirationUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["expirationUseCase"]; exists {
		return nil, storedErr
	}
	return c.expirationUseCase, nil
}

// initExpirationUseCase creates the expiration use case with all its dependencies.
func (c *Container) initExpirationUseCase() (expirationUseCase.UseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for expiration use case: %w", err)
	}

	repository, err := c.ConsentRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get consent repository for expiration use case: %w", err)
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for expiration use case: %w", err)
	}

	return expirationUseCase.NewExpirationUseCase(
		expirationUseCase.Config{
			Interval:               c.config.ExpirationSweepInterval,
			BatchSize:              c.config.ExpirationSweepBatchSize,
			NotConfirmedExpiration: c.config.ConsentNotConfirmedExpiration,
		},
		txManager,
		repository,
		businessMetrics,
		c.Logger(),
	), nil
}
