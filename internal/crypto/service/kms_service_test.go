package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocloud.dev/secrets"
)

func localKeyURI(t *testing.T) string {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return "base64key://" + base64.URLEncoding.EncodeToString(key)
}

func TestKMSService_OpenKeeper(t *testing.T) {
	ctx := context.Background()
	keyURI := localKeyURI(t)

	tests := []struct {
		name     string
		provider string
		keyURI   string
		errPart  string
	}{
		{name: "any driver without provider", provider: "", keyURI: keyURI},
		{name: "matching provider", provider: "localsecrets", keyURI: keyURI},
		{name: "scheme of another provider", provider: "gcpkms", keyURI: keyURI, errPart: `scheme "base64key"`},
		{name: "unknown provider", provider: "vault9000", keyURI: keyURI, errPart: "unsupported KMS provider"},
		{name: "unregistered scheme", provider: "", keyURI: "invalid://uri", errPart: "failed to open KMS keeper"},
		{name: "empty uri", provider: "", keyURI: "", errPart: "failed to open KMS keeper"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keeper, err := NewKMSService(tt.provider).OpenKeeper(ctx, tt.keyURI)
			if tt.errPart != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errPart)
				assert.Nil(t, keeper)
				return
			}
			require.NoError(t, err)
			assert.NoError(t, keeper.Close())
		})
	}
}

func TestKMSService_UnwrapsProviderPassword(t *testing.T) {
	ctx := context.Background()
	keyURI := localKeyURI(t)

	writer, err := secrets.OpenKeeper(ctx, keyURI)
	require.NoError(t, err)
	wrapped, err := writer.Encrypt(ctx, []byte("provider-password"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	keeper, err := NewKMSService("localsecrets").OpenKeeper(ctx, keyURI)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, keeper.Close()) })

	plaintext, err := keeper.Decrypt(ctx, wrapped)
	require.NoError(t, err)
	assert.Equal(t, []byte("provider-password"), plaintext)
}
