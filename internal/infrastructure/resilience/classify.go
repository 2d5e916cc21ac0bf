package resilience

import (
	"context"
	"errors"

	"github.com/kirillkom/dataset-analytics/internal/core/domain"
)

var (
	Transient = ErrorClassification{Retryable: true, RecordFailure: true}
	Permanent = ErrorClassification{Retryable: false, RecordFailure: true}
	Ignored   = ErrorClassification{Retryable: false, RecordFailure: false}
)

// ClassifyDomain retries errors tagged domain.ErrTemporary. Cancellation is
// neither retried nor held against the breaker.
func ClassifyDomain(err error) ErrorClassification {
	switch {
	case err == nil:
		return ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return Ignored
	case domain.IsKind(err, domain.ErrTemporary), IsCircuitOpen(err):
		return Transient
	default:
		return Permanent
	}
}
