package nats

import (
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/dataset-analytics/internal/core/domain"
	"github.com/kirillkom/dataset-analytics/internal/infrastructure/resilience"
)

var connectionErrors = []error{
	nats.ErrNoServers,
	nats.ErrTimeout,
	nats.ErrConnectionClosed,
	nats.ErrDisconnected,
	nats.ErrConnectionReconnecting,
}

func isConnectionError(err error) bool {
	for _, target := range connectionErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// classifyNATSError treats lost connectivity as transient and falls back to
// the domain classification for everything else.
func classifyNATSError(err error) resilience.ErrorClassification {
	if err != nil && isConnectionError(err) {
		return resilience.Transient
	}
	return resilience.ClassifyDomain(err)
}

func wrapTemporaryIfNeeded(err error) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if isConnectionError(err) || resilience.IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrTemporary, "publish dataset id", err)
	}
	return err
}
