package app

import (
	"fmt"

	consentHTTP "github.com/allisson/consents/internal/consent/http"
	consentRepository "github.com/allisson/consents/internal/consent/repository"
	consentUseCase "github.com/allisson/consents/internal/consent/usecase"
)

// ConsentRepository returns the consent repository based on database driver.
func (c *Container) ConsentRepository() (consentUseCase.ConsentRepository, error) {
	var err error
	c.consentRepositoryInit.Do(func() {
		c.consentRepository, err = c.initConsentRepository()
		if err != nil {
			c.initErrors["consentRepository"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["consentRepository"]; exists {
		return nil, storedErr
	}
	return c.consentRepository, nil
}

// ConsentUseCase returns the consent use case.
func (c *Container) ConsentUseCase() (consentUseCase.ConsentUseCase, error) {
	var err error
	c.consentUseCaseInit.Do(func() {
		c.consentUseCase, err = c.initConsentUseCase()
		if err != nil {
			c.initErrors["consentUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["consentUseCase"]; exists {
		return nil, storedErr
	}
	return c.consentUseCase, nil
}

// ConsentHandler returns the HTTP handler for consent operations.
func (c *Container) ConsentHandler() (*consentHTTP.ConsentHandler, error) {
	var err error
	c.consentHandlerInit.Do(func() {
		c.consentHandler, err = c.initConsentHandler()
		if err != nil {
			c.initErrors["consentHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["consentHandler"]; exists {
		return nil, storedErr
	}
	return c.consentHandler, nil
}

// initConsentRepository creates the consent repository based on the database driver.
func (c *Container) initConsentRepository() (consentUseCase.ConsentRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for consent repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return consentRepository.NewPostgreSQLConsentRepository(db), nil
	case "mysql":
		return consentRepository.NewMySQLConsentRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initConsentUseCase creates the consent use case with all its dependencies.
func (c *Container) initConsentUseCase() (consentUseCase.ConsentUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for consent use case: %w", err)
	}

	repository, err := c.ConsentRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get consent repository for consent use case: %w", err)
	}

	protector, err := c.DataProtector()
	if err != nil {
		return nil, fmt.Errorf("failed to get data protector for consent use case: %w", err)
	}

	baseUseCase := consentUseCase.NewConsentUseCase(
		txManager,
		repository,
		protector,
		consentUseCase.Config{
			MaxLifetimeDays:        c.config.ConsentMaxLifetimeDays,
			NotConfirmedExpiration: c.config.ConsentNotConfirmedExpiration,
		},
		c.Logger(),
	)

	// Wrap with metrics if enabled
	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for consent use case: %w", err)
		}
		return consentUseCase.NewConsentUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}

// initConsentHandler creates the consent HTTP handler.
func (c *Container) initConsentHandler() (*consentHTTP.ConsentHandler, error) {
	useCase, err := c.ConsentUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get consent use case for consent handler: %w", err)
	}
	return consentHTTP.NewConsentHandler(useCase, c.config.ScaLinksBaseURL, c.Logger()), nil
}
