package commands

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	validation "github.com/jellydator/validation"

	cryptoDomain "github.com/allisson/consents/internal/crypto/domain"
	cryptoService "github.com/allisson/consents/internal/crypto/service"
	customValidation "github.com/allisson/consents/internal/validation"
)

const (
	cryptoPasswordSize = 32
	minPasswordBytes   = 8
)

// CryptoPasswordOptions describes the crypto provider to create.
type CryptoPasswordOptions struct {
	// ProviderID defaults to "<algorithm>-YYYY-MM-DD".
	ProviderID string
	Params     cryptoDomain.ProviderParams
	// Password is a base64 password to reuse. A random one is generated when empty.
	Password string
	// KMSKeyURI wraps the password with KMS when set.
	KMSKeyURI string
	// ExistingProviders and ExistingPasswords are the current CRYPTO_PROVIDERS
	// and CRYPTO_PASSWORDS values; the new provider is appended to them.
	ExistingProviders string
	ExistingPasswords string
}

// RunCreateCryptoPassword creates a crypto provider entry and its password and
// prints the environment variables that register it as the default provider.
// Consents protected by older providers stay readable as long as their
// entries are kept. Password material is zeroed after encoding.
func RunCreateCryptoPassword(
	ctx context.Context,
	kmsService cryptoService.KMSService,
	logger *slog.Logger,
	writer io.Writer,
	opts CryptoPasswordOptions,
) error {
	if err := opts.Params.Validate(); err != nil {
		return err
	}

	if opts.ProviderID == "" {
		opts.ProviderID = fmt.Sprintf("%s-%s", opts.Params.Algorithm, time.Now().Format("2006-01-02"))
	}
	if strings.ContainsAny(opts.ProviderID, ":,") {
		return fmt.Errorf("provider id must not contain ':' or ','")
	}
	if err := ensureNewProviderID(opts.ExistingProviders, opts.ProviderID); err != nil {
		return err
	}

	password, err := cryptoPassword(opts.Password)
	if err != nil {
		return err
	}
	defer cryptoDomain.Zero(password)

	stored := password
	if opts.KMSKeyURI != "" {
		stored, err = wrapWithKMS(ctx, kmsService, logger, opts.KMSKeyURI, password)
		if err != nil {
			return err
		}
	}

	entry := strings.Join([]string{
		opts.ProviderID,
		string(opts.Params.Algorithm),
		string(opts.Params.KDF),
		strconv.Itoa(opts.Params.Iterations),
		strconv.Itoa(opts.Params.KeyLength),
	}, ":")
	passwordEntry := opts.ProviderID + ":" + base64.StdEncoding.EncodeToString(stored)

	_, _ = fmt.Fprintln(writer, "# Crypto Provider Configuration")
	if opts.KMSKeyURI != "" {
		_, _ = fmt.Fprintln(writer, "# Password encrypted with KMS")
		_, _ = fmt.Fprintf(writer, "KMS_KEY_URI=\"%s\"\n", opts.KMSKeyURI)
	}
	_, _ = fmt.Fprintf(writer, "CRYPTO_PROVIDERS=\"%s\"\n", appendEntry(opts.ExistingProviders, entry))
	_, _ = fmt.Fprintf(writer, "CRYPTO_PASSWORDS=\"%s\"\n", appendEntry(opts.ExistingPasswords, passwordEntry))
	_, _ = fmt.Fprintf(writer, "CRYPTO_DATA_PROVIDER_ID=\"%s\"\n", opts.ProviderID)
	_, _ = fmt.Fprintf(writer, "CRYPTO_ID_PROVIDER_ID=\"%s\"\n", opts.ProviderID)
	_, _ = fmt.Fprintln(writer)
	_, _ = fmt.Fprintln(writer, "# Keep previous provider entries until no stored consent references them.")

	logger.Info("crypto provider created",
		slog.String("provider_id", opts.ProviderID),
		slog.String("algorithm", string(opts.Params.Algorithm)),
		slog.Bool("kms", opts.KMSKeyURI != ""),
	)
	return nil
}

// cryptoPassword decodes a supplied base64 password or generates a random one.
func cryptoPassword(encoded string) ([]byte, error) {
	if encoded == "" {
		password := make([]byte, cryptoPasswordSize)
		if _, err := rand.Read(password); err != nil {
			return nil, fmt.Errorf("failed to generate password: %w", err)
		}
		return password, nil
	}

	if err := validation.Validate(encoded, validation.Required, customValidation.Base64Bytes(minPasswordBytes)); err != nil {
		return nil, customValidation.WrapValidationError(err)
	}
	password, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode password: %w", err)
	}
	return password, nil
}

func wrapWithKMS(
	ctx context.Context,
	kmsService cryptoService.KMSService,
	logger *slog.Logger,
	keyURI string,
	password []byte,
) ([]byte, error) {
	keeperInterface, err := kmsService.OpenKeeper(ctx, keyURI)
	if err != nil {
		return nil, fmt.Errorf("failed to open KMS keeper: %w", err)
	}
	defer func() {
		if closeErr := keeperInterface.Close(); closeErr != nil {
			logger.Warn("failed to close KMS keeper", slog.Any("error", closeErr))
		}
	}()

	keeper, ok := keeperInterface.(interface {
		Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	})
	if !ok {
		return nil, fmt.Errorf("KMS keeper does not support encryption")
	}

	ciphertext, err := keeper.Encrypt(ctx, password)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt password with KMS: %w", err)
	}
	return ciphertext, nil
}

func ensureNewProviderID(existingProviders, providerID string) error {
	if strings.TrimSpace(existingProviders) == "" {
		return nil
	}
	specs, err := cryptoDomain.ParseProviderSpecs(existingProviders)
	if err != nil {
		return err
	}
	for _, spec := range specs {
		if spec.ID == providerID {
			return fmt.Errorf("crypto provider %s already exists", providerID)
		}
	}
	return nil
}

func appendEntry(existing, entry string) string {
	existing = strings.TrimSpace(existing)
	if existing == "" {
		return entry
	}
	return existing + "," + entry
}
