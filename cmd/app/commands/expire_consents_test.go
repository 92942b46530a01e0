package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	consentDomain "github.com/allisson/consents/internal/consent/domain"
	expirationUseCase "github.com/allisson/consents/internal/expiration/usecase"
	"github.com/allisson/consents/internal/expiration/usecase/mocks"
)

func TestRunExpireConsents(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	results := []expirationUseCase.SweepResult{
		{Kind: consentDomain.ExpirableUsedNonRecurring, Candidates: 3, Expired: 2, Skipped: 1},
		{Kind: consentDomain.ExpirableUnconfirmed, Candidates: 1, Expired: 1},
	}

	t.Run("text output", func(t *testing.T) {
		useCase := &mocks.MockExpirationUseCase{}
		useCase.On("RunOnce", ctx).Return(results, nil)

		var out bytes.Buffer
		err := RunExpireConsents(ctx, useCase, logger, &out, false, "text")

		require.NoError(t, err)
		assert.Contains(t, out.String(), "used_non_recurring: 3 candidates, 2 expired, 1 skipped")
		assert.Contains(t, out.String(), "unconfirmed: 1 candidates, 1 expired, 0 skipped")
		useCase.AssertExpectations(t)
	})

	t.Run("dry run uses preview", func(t *testing.T) {
		useCase := &mocks.MockExpirationUseCase{}
		useCase.On("Preview", ctx).Return(results, nil)

		var out bytes.Buffer
		err := RunExpireConsents(ctx, useCase, logger, &out, true, "text")

		require.NoError(t, err)
		assert.Contains(t, out.String(), "Dry run mode")
		assert.Contains(t, out.String(), "2 would expire")
		useCase.AssertNotCalled(t, "RunOnce", ctx)
	})

	t.Run("json output", func(t *testing.T) {
		useCase := &mocks.MockExpirationUseCase{}
		useCase.On("RunOnce", ctx).Return(results, nil)

		var out bytes.Buffer
		err := RunExpireConsents(ctx, useCase, logger, &out, false, "json")
		require.NoError(t, err)

		var decoded expireConsentsOutput
		require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
		assert.False(t, decoded.DryRun)
		assert.Equal(t, results, decoded.Results)
		assert.Empty(t, decoded.Error)
	})

	t.Run("partial results are printed with the error", func(t *testing.T) {
		useCase := &mocks.MockExpirationUseCase{}
		useCase.On("RunOnce", ctx).Return(results[:1], errors.New("connection reset"))

		var out bytes.Buffer
		err := RunExpireConsents(ctx, useCase, logger, &out, false, "json")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection reset")

		var decoded expireConsentsOutput
		require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
		assert.Len(t, decoded.Results, 1)
		assert.Equal(t, "connection reset", decoded.Error)
	})

	t.Run("invalid format", func(t *testing.T) {
		useCase := &mocks.MockExpirationUseCase{}

		err := RunExpireConsents(ctx, useCase, logger, io.Discard, false, "yaml")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid format")
		useCase.AssertExpectations(t)
	})
}
