package app

import (
	"crypto/rand"
	"fmt"
	"log/slog"

	authorisationHTTP "github.com/allisson/consents/internal/authorisation/http"
	authorisationService "github.com/allisson/consents/internal/authorisation/service"
	authorisationUseCase "github.com/allisson/consents/internal/authorisation/usecase"
	consentDomain "github.com/allisson/consents/internal/consent/domain"
)

// Processor returns the SCA state machine wired to the built-in ASPSP connector.
func (c *Container) Processor() (*authorisationService.Processor, error) {
	var err error
	c.processorInit.Do(func() {
		c.processor, err = c.initProcessor()
		if err != nil {
			c.initErrors["processor"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["processor"]; exists {
		return nil, storedErr
	}
	return c.processor, nil
}

// AuthorisationUseCase returns the authorisation use case.
func (c *Container) AuthorisationUseCase() (authorisationUseCase.AuthorisationUseCase, error) {
	var err error
	c.authorisationUseCaseInit.Do(func() {
		c.authorisationUseCase, err = c.initAuthorisationUseCase()
		if err != nil {
			c.initErrors["authorisationUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["authorisationUseCase"]; exists {
		return nil, storedErr
	}
	return c.authorisationUseCase, nil
}

// AuthorisationHandler returns the HTTP handler for authorisation operations.
func (c *Container) AuthorisationHandler() (*authorisationHTTP.AuthorisationHandler, error) {
	var err error
	c.authorisationHandlerInit.Do(func() {
		c.authorisationHandler, err = c.initAuthorisationHandler()
		if err != nil {
			c.initErrors["authorisationHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["authorisationHandler"]; exists {
		return nil, storedErr
	}
	return c.authorisationHandler, nil
}

// initProcessor creates the processor, its built-in connector and the hashers they share.
func (c *Container) initProcessor() (*authorisationService.Processor, error) {
	logger := c.Logger()

	credentials, err := authorisationService.ParseCredentialStore(c.config.ScaPsuCredentials)
	if err != nil {
		return nil, fmt.Errorf("failed to parse psu credentials: %w", err)
	}
	if credentials.Len() == 0 {
		logger.Warn("no psu credentials configured, every embedded authorisation will fail")
	}

	methods, err := authorisationService.ParseScaMethods(c.config.ScaMethods)
	if err != nil {
		return nil, fmt.Errorf("failed to parse sca methods: %w", err)
	}

	passwordHasher, err := authorisationService.NewPsuPasswordHasher()
	if err != nil {
		return nil, err
	}
	secretHasher, err := authorisationService.NewScaSecretHasher()
	if err != nil {
		return nil, err
	}

	fingerprinter, err := authorisationService.NewRequestFingerprinter(c.fingerprintSecret())
	if err != nil {
		return nil, fmt.Errorf("failed to create request fingerprinter: %w", err)
	}

	connector := authorisationService.NewBuiltinConnector(credentials, methods, passwordHasher, secretHasher, nil, logger)
	links := authorisationService.NewLinkBuilder(c.config.ScaLinksBaseURL, c.config.ScaRedirectURLTemplate)

	return authorisationService.NewProcessor(
		connector,
		secretHasher,
		fingerprinter,
		links,
		authorisationService.ProcessorConfig{
			MaxFailedAttempts:       c.config.ScaMaxFailedAttempts,
			ConfirmationRequired:    c.config.ScaConfirmationRequired,
			ConfirmationCheckByCore: c.config.ScaConfirmationCheckByCore,
		},
		logger,
	)
}

// fingerprintSecret returns the configured secret or a random one. A random
// secret makes replays across restarts look like new requests.
func (c *Container) fingerprintSecret() []byte {
	if c.config.CryptoFingerprintSecret != "" {
		return []byte(c.config.CryptoFingerprintSecret)
	}

	c.Logger().Warn("CRYPTO_FINGERPRINT_SECRET is not set, using a random secret",
		slog.String("impact", "idempotent replays do not survive restarts"))
	secret := make([]byte, 32)
	_, _ = rand.Read(secret)
	return secret
}

// initAuthorisationUseCase creates the authorisation use case with all its dependencies.
func (c *Container) initAuthorisationUseCase() (authorisationUseCase.AuthorisationUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for authorisation use case: %w", err)
	}

	repository, err := c.ConsentRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get consent repository for authorisation use case: %w", err)
	}

	processor, err := c.Processor()
	if err != nil {
		return nil, fmt.Errorf("failed to get processor for authorisation use case: %w", err)
	}

	protector, err := c.DataProtector()
	if err != nil {
		return nil, fmt.Errorf("failed to get data protector for authorisation use case: %w", err)
	}

	baseUseCase := authorisationUseCase.NewAuthorisationUseCase(
		txManager,
		repository,
		processor,
		protector,
		authorisationUseCase.Config{
			DefaultApproach:        consentDomain.ScaApproach(c.config.ScaApproach),
			RedirectURLExpiration:  c.config.ScaRedirectURLExpiration,
			NotConfirmedExpiration: c.config.ConsentNotConfirmedExpiration,
		},
		c.Logger(),
	)

	// Wrap with metrics if enabled
	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for authorisation use case: %w", err)
		}
		return authorisationUseCase.NewAuthorisationUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}

// initAuthorisationHandler creates the authorisation HTTP handler. Consent ids
// in paths are resolved by the consent use case.
func (c *Container) initAuthorisationHandler() (*authorisationHTTP.AuthorisationHandler, error) {
	useCase, err := c.AuthorisationUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get authorisation use case for authorisation handler: %w", err)
	}

	consentUseCase, err := c.ConsentUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get consent use case for authorisation handler: %w", err)
	}

	return authorisationHTTP.NewAuthorisationHandler(useCase, consentUseCase, c.Logger()), nil
}
