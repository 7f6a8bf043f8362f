package srs

import (
	"errors"
	"fmt"

	"github.com/conorfennell/revise/internal/storage"
)

// Sentinel errors of the scheduler.
// Use errors.Is to check: errors.Is(err, srs.ErrNotFound)
var (
	ErrInvalidInput = errors.New("srs: invalid input")
	ErrNotFound     = errors.New("srs: not found")
	ErrStorage      = errors.New("srs: storage failure")
)

// classify maps a storage error onto the scheduler's sentinels. An error that
// already carries one of them is returned untouched.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrNotFound), errors.Is(err, ErrStorage):
		return err
	case errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	default:
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
