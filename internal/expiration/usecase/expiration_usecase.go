package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/allisson/consents/internal/consent/domain"
	"github.com/allisson/consents/internal/database"
	apperrors "github.com/allisson/consents/internal/errors"
	"github.com/allisson/consents/internal/metrics"
)

// ExpirationUseCase implements UseCase.
type ExpirationUseCase struct {
	config    Config
	txManager database.TxManager
	repo      ConsentRepository
	metrics   metrics.BusinessMetrics
	logger    *slog.Logger
}

// NewExpirationUseCase creates a new ExpirationUseCase.
func NewExpirationUseCase(
	config Config,
	txManager database.TxManager,
	repo ConsentRepository,
	businessMetrics metrics.BusinessMetrics,
	logger *slog.Logger,
) *ExpirationUseCase {
	if config.Now == nil {
		config.Now = time.Now
	}
	if businessMetrics == nil {
		businessMetrics = metrics.NewNoOpBusinessMetrics()
	}
	return &ExpirationUseCase{
		config:    config,
		txManager: txManager,
		repo:      repo,
		metrics:   businessMetrics,
		logger:    logger,
	}
}

// Start runs the sweeps every configured interval. A non-positive interval is
// rejected with ErrInvalidInput.
func (uc *ExpirationUseCase) Start(ctx context.Context) error {
	if uc.config.Interval <= 0 {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "expiration sweep interval must be positive")
	}

	uc.logger.Info("starting consent expiration sweeps",
		slog.Duration("interval", uc.config.Interval),
		slog.Int("batch_size", uc.config.BatchSize),
	)

	ticker := time.NewTicker(uc.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			uc.logger.Info("stopping consent expiration sweeps")
			return ctx.Err()
		case <-ticker.C:
			if _, err := uc.RunOnce(ctx); err != nil {
				uc.logger.Error("consent expiration sweep failed", slog.Any("error", err))
			}
		}
	}
}

// RunOnce runs the exhaustion sweep and then the unconfirmed sweep.
func (uc *ExpirationUseCase) RunOnce(ctx context.Context) ([]SweepResult, error) {
	used, usedErr := uc.ExpireUsedNonRecurring(ctx)
	unconfirmed, unconfirmedErr := uc.ExpireUnconfirmed(ctx)
	return []SweepResult{used, unconfirmed}, apperrors.Join(usedErr, unconfirmedErr)
}

// ExpireUsedNonRecurring expires one-off consents used before today.
func (uc *ExpirationUseCase) ExpireUsedNonRecurring(ctx context.Context) (SweepResult, error) {
	return uc.sweep(ctx, domain.ExpirableUsedNonRecurring, false)
}

// ExpireUnconfirmed expires RECEIVED consents older than the confirmation
// window and fails their open authorisations.
func (uc *ExpirationUseCase) ExpireUnconfirmed(ctx context.Context) (SweepResult, error) {
	if uc.config.NotConfirmedExpiration <= 0 {
		return SweepResult{Kind: domain.ExpirableUnconfirmed}, nil
	}
	return uc.sweep(ctx, domain.ExpirableUnconfirmed, false)
}

// Preview runs both sweeps without saving.
func (uc *ExpirationUseCase) Preview(ctx context.Context) ([]SweepResult, error) {
	used, err := uc.sweep(ctx, domain.ExpirableUsedNonRecurring, true)
	if err != nil {
		return nil, err
	}
	results := []SweepResult{used}

	if uc.config.NotConfirmedExpiration > 0 {
		unconfirmed, err := uc.sweep(ctx, domain.ExpirableUnconfirmed, true)
		if err != nil {
			return nil, err
		}
		results = append(results, unconfirmed)
	}
	return results, nil
}

// sweep expires the candidates of kind one by one. Each candidate is
// rechecked against the expiry rules and saved with its own optimistic check,
// so a consent changed since the query is skipped and a storage error leaves
// the consents already saved expired.
func (uc *ExpirationUseCase) sweep(ctx context.Context, kind domain.ExpirableKind, dryRun bool) (SweepResult, error) {
	start := time.Now()
	now := uc.config.Now().UTC()
	result := SweepResult{Kind: kind}

	criteria := domain.ExpirableCriteria{
		Kind:  kind,
		Today: domain.Day(now),
		Limit: uc.config.BatchSize,
	}
	if kind == domain.ExpirableUnconfirmed {
		criteria.CreatedBefore = now.Add(-uc.config.NotConfirmedExpiration)
	}

	candidates, err := uc.repo.FindExpirable(ctx, criteria)
	if err != nil {
		uc.record(ctx, kind, dryRun, start, err)
		return result, apperrors.Wrap(err, "failed to find expirable consents")
	}
	result.Candidates = len(candidates)

	for _, candidate := range candidates {
		expired, changed := candidate.Refresh(now, uc.config.NotConfirmedExpiration)
		if !changed || expired.Status != domain.StatusExpired {
			result.Skipped++
			continue
		}
		if dryRun {
			result.Expired++
			continue
		}

		err := uc.txManager.WithTx(ctx, func(ctx context.Context) error {
			return uc.repo.Save(ctx, &expired, candidate.Version)
		})
		if apperrors.Is(err, domain.ErrConcurrentModification) {
			uc.logger.Warn("consent changed during expiration sweep, skipped",
				slog.String("consent_id", candidate.ID.String()),
				slog.String("kind", string(kind)),
			)
			result.Skipped++
			continue
		}
		if err != nil {
			uc.record(ctx, kind, dryRun, start, err)
			uc.logger.Error("consent expiration sweep abandoned",
				slog.String("kind", string(kind)),
				slog.String("consent_id", candidate.ID.String()),
				slog.Int("expired", result.Expired),
				slog.Any("error", err),
			)
			return result, apperrors.Wrap(err, "failed to expire consent")
		}
		uc.metrics.RecordStatusTransition(ctx, "expiration", string(candidate.Status), string(expired.Status))
		result.Expired++
	}

	uc.record(ctx, kind, dryRun, start, nil)
	if result.Expired > 0 && !dryRun {
		uc.logger.Info("consents expired",
			slog.String("kind", string(kind)),
			slog.Int("expired", result.Expired),
			slog.Int("skipped", result.Skipped),
		)
	}
	return result, nil
}

func (uc *ExpirationUseCase) record(
	ctx context.Context,
	kind domain.ExpirableKind,
	dryRun bool,
	start time.Time,
	err error,
) {
	if dryRun {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}

	operation := "expire_" + string(kind)
	uc.metrics.RecordOperation(ctx, "expiration", operation, status)
	uc.metrics.RecordDuration(ctx, "expiration", operation, time.Since(start), status)
}
