package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/allisson/maildispatch/internal/database"
	"github.com/allisson/maildispatch/internal/email/domain"
	"github.com/allisson/maildispatch/internal/email/provider"
	apperrors "github.com/allisson/maildispatch/internal/errors"
	"github.com/allisson/maildispatch/internal/metrics"
)

// Config holds delivery use case configuration.
type Config struct {
	// BatchSize is used when RunBatch is called with a non-positive size.
	BatchSize int
	// MaxBatchSize caps any requested batch size.
	MaxBatchSize int
	// RecordDelay is the pause between two records of the same batch.
	RecordDelay time.Duration
	// RetryBaseDelay enables exponential next_attempt_at scheduling when positive.
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
}

// Option customizes a delivery use case.
type Option func(*deliveryUseCase)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(d *deliveryUseCase) {
		d.now = now
	}
}

// WithSleeper replaces the context-aware inter-record wait.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(d *deliveryUseCase) {
		d.sleep = sleep
	}
}

// WithDeliveryMetrics records per-record and per-provider results.
func WithDeliveryMetrics(m metrics.DeliveryMetrics) Option {
	return func(d *deliveryUseCase) {
		d.metrics = m
	}
}

// deliveryUseCase implements DeliveryUseCase.
type deliveryUseCase struct {
	config      Config
	txManager   database.TxManager
	emailRepo   EmailRepository
	attemptRepo DeliveryAttemptRepository
	chain       *provider.Chain
	logger      *slog.Logger
	metrics     metrics.DeliveryMetrics
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
}

// NewDeliveryUseCase creates a DeliveryUseCase that sends through chain.
func NewDeliveryUseCase(
	config Config,
	txManager database.TxManager,
	emailRepo EmailRepository,
	attemptRepo DeliveryAttemptRepository,
	chain *provider.Chain,
	logger *slog.Logger,
	opts ...Option,
) DeliveryUseCase {
	d := &deliveryUseCase{
		config:      config,
		txManager:   txManager,
		emailRepo:   emailRepo,
		attemptRepo: attemptRepo,
		chain:       chain,
		logger:      logger,
		metrics:     metrics.NewNoOpDeliveryMetrics(),
		now:         func() time.Time { return time.Now().UTC() },
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// RunBatch selects up to batchSize eligible records and drives each one through the
// provider chain. Records are handled one at a time; each is claimed before any send
// so overlapping runs never deliver the same record twice from the same state.
// Cancellation of ctx is observed between records only: a claimed record is always
// sent and completed, so it never stays in processing because the caller went away.
func (d *deliveryUseCase) RunBatch(ctx context.Context, batchSize int) (*domain.BatchSummary, error) {
	limit := d.batchLimit(batchSize)

	records, err := d.emailRepo.ListEligible(ctx, limit, d.now())
	if err != nil {
		return nil, storeError(err)
	}

	summary := domain.NewBatchSummary()
	for i, record := range records {
		if i > 0 && d.config.RecordDelay > 0 {
			if err := d.sleep(ctx, d.config.RecordDelay); err != nil {
				d.logger.Warn("email batch interrupted",
					slog.Int("remaining", len(records)-i),
					slog.Any("error", err),
				)
				break
			}
		}
		if ctx.Err() != nil {
			break
		}

		processed, err := d.deliver(ctx, record)
		if err != nil {
			return nil, storeError(err)
		}
		if !processed {
			summary.Skip()
			d.metrics.RecordDelivery(ctx, "none", metrics.DeliveryResultSkipped)
			continue
		}
		summary.Add(record)
	}

	if summary.Processed > 0 || summary.Skipped > 0 {
		d.logger.Info("email batch finished",
			slog.Int("processed", summary.Processed),
			slog.Int("successful", summary.Successful),
			slog.Int("failed", summary.Failed),
			slog.Int("skipped", summary.Skipped),
		)
	}

	return summary, nil
}

// deliver claims and sends one record. It returns false when the record was taken
// by a concurrent run, in which case nothing was sent.
func (d *deliveryUseCase) deliver(parent context.Context, record *domain.EmailRecord) (bool, error) {
	// Providers bound each send with their own timeout.
	ctx := context.WithoutCancel(parent)

	claimedAt := d.now()
	claimed, err := d.emailRepo.Claim(ctx, record, claimedAt)
	if err != nil {
		return false, err
	}
	if !claimed {
		d.logger.Debug("email already claimed", slog.String("email_id", record.ID.String()))
		return false, nil
	}
	record.MarkProcessing(claimedAt)

	outcomes := d.send(ctx, record)
	now := d.now()
	detail := domain.NewOutcomeDetail(outcomes)

	last := outcomes[len(outcomes)-1]
	if last.Success {
		record.MarkSent(now, detail)
	} else {
		record.MarkFailed(now, detail, d.nextAttempt(now, record.AttemptCount+1))
	}

	attempts := domain.NewDeliveryAttempts(record.ID, record.AttemptCount, outcomes, now)
	err = d.txManager.WithTx(ctx, func(txCtx context.Context) error {
		if err := d.emailRepo.Complete(txCtx, record); err != nil {
			return err
		}
		for _, attempt := range attempts {
			if err := d.attemptRepo.Create(txCtx, attempt); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, domain.ErrClaimLost) {
		d.logger.Warn("email claim lost before completion", slog.String("email_id", record.ID.String()))
		return false, nil
	}
	if err != nil {
		return false, err
	}

	d.record(ctx, record)
	return true, nil
}

// send asks each provider in chain order and stops at the first success. The
// returned slice always holds at least one outcome.
func (d *deliveryUseCase) send(ctx context.Context, record *domain.EmailRecord) []domain.Outcome {
	msg := record.Message()
	providers := d.chain.Providers()
	outcomes := make([]domain.Outcome, 0, len(providers))

	for _, p := range providers {
		outcome := safeSend(ctx, p, msg)
		outcomes = append(outcomes, outcome)
		d.metrics.RecordProviderCall(ctx, outcome.Provider, outcome.Success, string(outcome.ErrorClass))

		if outcome.Success {
			break
		}
		d.logger.Warn("email provider failed",
			slog.String("email_id", record.ID.String()),
			slog.String("provider", outcome.Provider),
			slog.String("error_class", string(outcome.ErrorClass)),
			slog.String("reason", outcome.Reason),
		)
	}

	if len(outcomes) == 0 {
		outcomes = append(outcomes, domain.Failed("none", domain.ErrorClassUnknown, "no providers configured"))
	}
	return outcomes
}

func (d *deliveryUseCase) record(ctx context.Context, record *domain.EmailRecord) {
	providerName := "none"
	if record.LastOutcomeDetail != nil && record.LastOutcomeDetail.Provider != "" {
		providerName = record.LastOutcomeDetail.Provider
	}

	switch {
	case record.Status == domain.StatusSent:
		d.metrics.RecordDelivery(ctx, providerName, metrics.DeliveryResultSent)
		d.logger.Info("email sent",
			slog.String("email_id", record.ID.String()),
			slog.String("provider", providerName),
			slog.Int("attempt", record.AttemptCount),
		)
	case record.IsExhausted():
		d.metrics.RecordDelivery(ctx, providerName, metrics.DeliveryResultExhausted)
		d.logger.Error("email retry budget exhausted",
			slog.String("email_id", record.ID.String()),
			slog.Int("attempts", record.AttemptCount),
			slog.String("reason", record.LastOutcomeDetail.Reason),
		)
	default:
		d.metrics.RecordDelivery(ctx, providerName, metrics.DeliveryResultFailed)
	}
}

// RecoverStale fails records whose claim is older than olderThan.
func (d *deliveryUseCase) RecoverStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, apperrors.Wrap(apperrors.ErrInvalidInput, "stale threshold must be positive")
	}

	now := d.now()
	count, err := d.emailRepo.RecoverStale(ctx, now.Add(-olderThan), now)
	if err != nil {
		return 0, storeError(err)
	}
	if count > 0 {
		d.logger.Warn("recovered stale email claims",
			slog.Int64("count", count),
			slog.Duration("older_than", olderThan),
		)
	}
	return count, nil
}

func (d *deliveryUseCase) batchLimit(requested int) int {
	limit := requested
	if limit <= 0 {
		limit = d.config.BatchSize
	}
	if d.config.MaxBatchSize > 0 && limit > d.config.MaxBatchSize {
		limit = d.config.MaxBatchSize
	}
	if limit <= 0 {
		limit = 1
	}
	return limit
}

// nextAttempt returns when a record that just failed its attempt-th try becomes
// eligible again, or nil for immediate eligibility.
func (d *deliveryUseCase) nextAttempt(now time.Time, attempt int) *time.Time {
	base := d.config.RetryBaseDelay
	if base <= 0 {
		return nil
	}

	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if d.config.RetryMaxDelay > 0 && delay >= d.config.RetryMaxDelay {
			delay = d.config.RetryMaxDelay
			break
		}
	}
	if d.config.RetryMaxDelay > 0 && delay > d.config.RetryMaxDelay {
		delay = d.config.RetryMaxDelay
	}

	next := now.Add(delay)
	return &next
}

// safeSend contains a panicking provider to a failed outcome.
func safeSend(ctx context.Context, p provider.Provider, msg domain.Message) (outcome domain.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = domain.Failed(p.Name(), domain.ErrorClassUnknown, fmt.Sprintf("provider panic: %v", r))
		}
	}()
	return p.Send(ctx, msg)
}

func storeError(err error) error {
	if errors.Is(err, domain.ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
