package app

import (
	"context"
	"fmt"

	consentService "github.com/allisson/consents/internal/consent/service"
	cryptoService "github.com/allisson/consents/internal/crypto/service"
)

// AEADManager returns the AEAD manager service.
func (c *Container) AEADManager() cryptoService.AEADManager {
	c.aeadManagerInit.Do(func() {
		c.aeadManager = cryptoService.NewAEADManager()
	})
	return c.aeadManager
}

// KMSService returns the KMS service.
func (c *Container) KMSService() cryptoService.KMSService {
	c.kmsServiceInit.Do(func() {
		c.kmsService = cryptoService.NewKMSService(c.config.KMSProvider)
	})
	return c.kmsService
}

// CryptoRegistry returns the crypto provider registry loaded from configuration.
func (c *Container) CryptoRegistry() (*cryptoService.Registry, error) {
	var err error
	c.cryptoRegistryInit.Do(func() {
		c.cryptoRegistry, err = c.initCryptoRegistry()
		if err != nil {
			c.initErrors["cryptoRegistry"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["cryptoRegistry"]; exists {
		return nil, storedErr
	}
	return c.cryptoRegistry, nil
}

// DataProtector returns the consent data protector.
func (c *Container) DataProtector() (*consentService.DataProtector, error) {
	var err error
	c.dataProtectorInit.Do(func() {
		c.dataProtector, err = c.initDataProtector()
		if err != nil {
			c.initErrors["dataProtector"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["dataProtector"]; exists {
		return nil, storedErr
	}
	return c.dataProtector, nil
}

// initCryptoRegistry loads the providers, unwrapping their passwords with KMS when configured.
func (c *Container) initCryptoRegistry() (*cryptoService.Registry, error) {
	registry, err := cryptoService.LoadRegistry(
		context.Background(),
		c.config,
		c.AEADManager(),
		c.KMSService(),
		c.Logger(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load crypto providers: %w", err)
	}
	return registry, nil
}

// initDataProtector creates the data protector on top of the crypto registry.
func (c *Container) initDataProtector() (*consentService.DataProtector, error) {
	registry, err := c.CryptoRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to get crypto registry for data protector: %w", err)
	}
	return consentService.NewDataProtector(registry, c.Logger()), nil
}
