package service

import (
	"context"
	"fmt"
	"net/url"
	"slices"

	"gocloud.dev/secrets"

	cryptoDomain "github.com/allisson/consents/internal/crypto/domain"

	_ "gocloud.dev/secrets/awskms"
	_ "gocloud.dev/secrets/azurekeyvault"
	_ "gocloud.dev/secrets/gcpkms"
	_ "gocloud.dev/secrets/hashivault"
	_ "gocloud.dev/secrets/localsecrets"
)

// kmsSchemes lists the key URI schemes accepted for each KMS_PROVIDER value.
var kmsSchemes = map[string][]string{
	"localsecrets":  {"base64key"},
	"gcpkms":        {"gcpkms"},
	"awskms":        {"awskms"},
	"azurekeyvault": {"azurekeyvault"},
	"hashivault":    {"hashivault"},
}

// KMSService opens the keeper that wraps crypto provider passwords.
type KMSService interface {
	OpenKeeper(ctx context.Context, keyURI string) (cryptoDomain.KMSKeeper, error)
}

type kmsService struct {
	provider string
}

// NewKMSService returns a KMSService restricted to provider's URI schemes.
// An empty provider accepts any registered driver.
func NewKMSService(provider string) KMSService {
	return &kmsService{provider: provider}
}

// OpenKeeper rejects a keyURI whose scheme does not belong to the configured
// provider before reaching out to the KMS.
func (k *kmsService) OpenKeeper(ctx context.Context, keyURI string) (cryptoDomain.KMSKeeper, error) {
	if err := k.checkScheme(keyURI); err != nil {
		return nil, fmt.Errorf("failed to open KMS keeper: %w", err)
	}
	keeper, err := secrets.OpenKeeper(ctx, keyURI)
	if err != nil {
		return nil, fmt.Errorf("failed to open KMS keeper: %w", err)
	}
	return keeper, nil
}

func (k *kmsService) checkScheme(keyURI string) error {
	if k.provider == "" {
		return nil
	}
	schemes, ok := kmsSchemes[k.provider]
	if !ok {
		return fmt.Errorf("unsupported KMS provider %q", k.provider)
	}
	u, err := url.Parse(keyURI)
	if err != nil {
		return fmt.Errorf("invalid KMS key URI: %w", err)
	}
	if !slices.Contains(schemes, u.Scheme) {
		return fmt.Errorf("KMS key URI scheme %q does not match provider %s", u.Scheme, k.provider)
	}
	return nil
}
