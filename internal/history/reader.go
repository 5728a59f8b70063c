// Package history enumerates on-chain donation records with bounded effort.
package history

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ombima56/TranspaCharity/internal/domain"
	"github.com/ombima56/TranspaCharity/internal/metrics"
)

const (
	DefaultMaxRecords       = 100
	DefaultFailureThreshold = 5
)

// Stop reasons reported by a scan.
const (
	ReasonCompleted   = "completed"
	ReasonUnreachable = "unreachable"
	ReasonNoRecords   = "no_records"
	ReasonFailures    = "failure_threshold"
	ReasonCancelled   = "cancelled"
)

// Source is the read side of the donation contract.
type Source interface {
	CharityCount(ctx context.Context) (uint64, error)
	DonationCount(ctx context.Context) (uint64, error)
	Donation(ctx context.Context, id uint64) (*domain.DonationRecord, error)
}

// Limits bounds the work of one scan.
type Limits struct {
	// MaxRecords caps the number of indices fetched.
	MaxRecords uint64
	// FailureThreshold stops the scan when this many fetches were attempted
	// and none succeeded.
	FailureThreshold int
}

func (l Limits) withDefaults() Limits {
	if l.MaxRecords == 0 {
		l.MaxRecords = DefaultMaxRecords
	}
	if l.FailureThreshold <= 0 {
		l.FailureThreshold = DefaultFailureThreshold
	}
	return l
}

// ScanReport describes how a scan went.
type ScanReport struct {
	Reason    string
	Count     uint64
	Bound     uint64
	Attempted int
	Succeeded int
	Failed    int
}

// Partial reports whether the scan left readable indices behind. It returns
// nil when every index up to Bound was read, and domain.ErrPartialEnumeration
// otherwise.
func (r ScanReport) Partial() error {
	switch {
	case r.Failed > 0:
		return fmt.Errorf("%w: %d of %d reads failed (%s)", domain.ErrPartialEnumeration, r.Failed, r.Attempted, r.Reason)
	case r.Reason == ReasonCancelled:
		return fmt.Errorf("%w: cancelled after %d of %d", domain.ErrPartialEnumeration, r.Attempted, r.Bound)
	}
	return nil
}

// Reader lists donation history from a Source.
type Reader struct {
	limits  Limits
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewReader(limits Limits, logger *zap.Logger, m *metrics.Metrics) *Reader {
	return &Reader{
		limits:  limits.withDefaults(),
		logger:  logger,
		metrics: m,
	}
}

// Donations returns the readable donation records in ascending index order.
// It never fails: an unreachable contract or an unusable deployment yields
// an empty list, and records that cannot be read are skipped.
func (r *Reader) Donations(ctx context.Context, src Source) []domain.DonationRecord {
	records, _ := r.Scan(ctx, src)
	return records
}

// Scan is Donations plus a report of what happened.
func (r *Reader) Scan(ctx context.Context, src Source) ([]domain.DonationRecord, ScanReport) {
	records, report := r.scan(ctx, src)

	r.metrics.ObserveScan(report.Reason, report.Succeeded, report.Failed)
	r.logger.Info("Donation history scan finished",
		zap.String("reason", report.Reason),
		zap.Uint64("count", report.Count),
		zap.Uint64("bound", report.Bound),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed))
	if err := report.Partial(); err != nil {
		r.logger.Warn("Donation history incomplete", zap.Error(err))
	}

	return records, report
}

func (r *Reader) scan(ctx context.Context, src Source) ([]domain.DonationRecord, ScanReport) {
	records := []domain.DonationRecord{}

	// 1. Reachability probe
	if _, err := src.CharityCount(ctx); err != nil {
		r.logger.Warn("Donation contract unreachable, returning empty history", zap.Error(err))
		return records, ScanReport{Reason: ReasonUnreachable}
	}

	// 2. Determine how many records exist
	count, err := src.DonationCount(ctx)
	if err != nil {
		r.logger.Debug("getDonationCount unavailable, probing first record", zap.Error(err))
		first, probeErr := src.Donation(ctx, 0)
		if probeErr != nil {
			return records, ScanReport{Reason: ReasonNoRecords}
		}
		// Only the first record is known to exist.
		return append(records, *first), ScanReport{Reason: ReasonCompleted, Count: 1, Bound: 1, Attempted: 1, Succeeded: 1}
	}

	report := ScanReport{Count: count, Bound: min(count, r.limits.MaxRecords)}
	if report.Bound < count {
		r.logger.Info("Donation history truncated",
			zap.Uint64("count", count),
			zap.Uint64("max_records", r.limits.MaxRecords))
	}

	// 3. Sequential fetch with a circuit breaker on total failure
	for i := uint64(0); i < report.Bound; i++ {
		if err := ctx.Err(); err != nil {
			report.Reason = ReasonCancelled
			return records, report
		}
		if report.Succeeded == 0 && report.Attempted >= r.limits.FailureThreshold {
			r.logger.Warn("Too many failed donation reads, stopping scan",
				zap.Int("attempted", report.Attempted))
			report.Reason = ReasonFailures
			return records, report
		}

		report.Attempted++
		record, err := src.Donation(ctx, i)
		if err != nil {
			report.Failed++
			r.logger.Debug("Skipping unreadable donation", zap.Uint64("index", i), zap.Error(err))
			continue
		}
		report.Succeeded++
		records = append(records, *record)
	}

	report.Reason = ReasonCompleted
	return records, report
}
