package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/allisson/consents/internal/config"
	cryptoDomain "github.com/allisson/consents/internal/crypto/domain"
)

// LoadRegistry builds the provider registry from configuration.
//
// Every provider listed in CRYPTO_PROVIDERS needs a password in CRYPTO_PASSWORDS.
// When KMS_KEY_URI is set the passwords are KMS ciphertexts and are decrypted
// before use. Both default providers must resolve, otherwise startup fails.
func LoadRegistry(
	ctx context.Context,
	cfg *config.Config,
	aeadManager AEADManager,
	kmsService KMSService,
	logger *slog.Logger,
) (*Registry, error) {
	specs, err := cryptoDomain.ParseProviderSpecs(cfg.CryptoProviders)
	if err != nil {
		return nil, err
	}

	passwords, err := cryptoDomain.ParsePasswords(cfg.CryptoPasswords)
	if err != nil {
		return nil, err
	}
	defer func() {
		for _, p := range passwords {
			cryptoDomain.Zero(p)
		}
	}()

	if cfg.KMSKeyURI != "" {
		if err := unwrapPasswords(ctx, kmsService, cfg.KMSKeyURI, passwords); err != nil {
			return nil, err
		}
	}

	registry := NewRegistry(aeadManager)
	for _, spec := range specs {
		password, ok := passwords[spec.ID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", cryptoDomain.ErrMissingPassword, spec.ID)
		}
		if err := registry.Register(spec.ID, spec.Params, password); err != nil {
			return nil, fmt.Errorf("failed to register crypto provider %s: %w", spec.ID, err)
		}
	}

	if err := registry.SetDefaults(cfg.CryptoDataProviderID, cfg.CryptoIDProviderID); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("crypto providers loaded",
			slog.Any("provider_ids", registry.IDs()),
			slog.String("data_provider_id", cfg.CryptoDataProviderID),
			slog.String("id_provider_id", cfg.CryptoIDProviderID),
			slog.Bool("kms", cfg.KMSKeyURI != ""),
		)
	}

	return registry, nil
}

// unwrapPasswords replaces every KMS ciphertext in passwords with its plaintext.
func unwrapPasswords(
	ctx context.Context,
	kmsService KMSService,
	keyURI string,
	passwords map[string][]byte,
) error {
	keeper, err := kmsService.OpenKeeper(ctx, keyURI)
	if err != nil {
		return err
	}
	defer func() {
		_ = keeper.Close()
	}()

	for id, ciphertext := range passwords {
		plaintext, err := keeper.Decrypt(ctx, ciphertext)
		if err != nil {
			return fmt.Errorf("failed to decrypt password of crypto provider %s: %w", id, err)
		}
		passwords[id] = plaintext
	}
	return nil
}
