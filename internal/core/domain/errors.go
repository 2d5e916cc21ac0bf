package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDatasetNotFound    = errors.New("dataset not found")
	ErrProjectNotFound    = errors.New("project not found")
	ErrDatasetNotReady    = errors.New("dataset not ready")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrTemporary          = errors.New("temporary failure")
	ErrUnparseableFile    = errors.New("unparseable file")
	ErrDuplicateColumn    = errors.New("duplicate column")
	ErrInvalidIdentifier  = errors.New("invalid identifier")
	ErrInvalidFilterValue = errors.New("invalid filter value")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// IsClientError reports whether err belongs to a kind caused by request input
// rather than by the service or its dependencies.
func IsClientError(err error) bool {
	return IsKind(err, ErrInvalidInput) ||
		IsKind(err, ErrInvalidFilterValue) ||
		IsKind(err, ErrInvalidIdentifier) ||
		IsKind(err, ErrDatasetNotFound) ||
		IsKind(err, ErrProjectNotFound) ||
		IsKind(err, ErrDatasetNotReady) ||
		IsKind(err, ErrUnauthorized)
}

// NotReadyError reports the current status of a dataset that cannot be read yet.
type NotReadyError struct {
	Status DatasetStatus
}

func (e *NotReadyError) Error() string {
	return "dataset not ready, status=" + string(e.Status)
}

func (e *NotReadyError) Is(target error) bool {
	return target == ErrDatasetNotReady
}
