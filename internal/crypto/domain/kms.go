package domain

import "context"

// KMSKeeper decrypts provider passwords that were encrypted by a KMS.
// *secrets.Keeper from gocloud.dev satisfies it.
type KMSKeeper interface {
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
	Close() error
}
