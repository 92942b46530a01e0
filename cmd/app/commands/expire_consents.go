package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	expirationUseCase "github.com/allisson/consents/internal/expiration/usecase"
)

// expireConsentsOutput is the JSON document printed by expire-consents.
type expireConsentsOutput struct {
	DryRun  bool                            `json:"dry_run"`
	Results []expirationUseCase.SweepResult `json:"results"`
	Error   string                          `json:"error,omitempty"`
}

// RunExpireConsents runs both expiration sweeps once. With dryRun only the
// consents that would be expired are counted. Results of sweeps that
// completed are printed even when another sweep failed.
func RunExpireConsents(
	ctx context.Context,
	useCase expirationUseCase.UseCase,
	logger *slog.Logger,
	writer io.Writer,
	dryRun bool,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	logger.Info("running consent expiration sweeps", slog.Bool("dry_run", dryRun))

	var (
		results []expirationUseCase.SweepResult
		runErr  error
	)
	if dryRun {
		results, runErr = useCase.Preview(ctx)
	} else {
		results, runErr = useCase.RunOnce(ctx)
	}

	if format == "json" {
		out := expireConsentsOutput{DryRun: dryRun, Results: results}
		if runErr != nil {
			out.Error = runErr.Error()
		}
		if err := writeJSON(writer, out); err != nil {
			return err
		}
	} else {
		writeSweepResultsText(writer, results, dryRun)
	}

	if runErr != nil {
		return fmt.Errorf("failed to expire consents: %w", runErr)
	}

	logger.Info("consent expiration sweeps completed", slog.Bool("dry_run", dryRun))
	return nil
}

func writeSweepResultsText(writer io.Writer, results []expirationUseCase.SweepResult, dryRun bool) {
	verb := "expired"
	if dryRun {
		_, _ = fmt.Fprintln(writer, "Dry run mode: no consents were changed")
		verb = "would expire"
	}
	for _, r := range results {
		_, _ = fmt.Fprintf(
			writer,
			"%s: %d candidates, %d %s, %d skipped\n",
			r.Kind,
			r.Candidates,
			r.Expired,
			verb,
			r.Skipped,
		)
	}
}
