package grid

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	ErrNetwork         = errors.New("network error")
	ErrTimeout         = errors.New("request timed out")
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation failed")
	ErrInvalidNumber   = fmt.Errorf("%w: value is not a number", ErrValidation)
	ErrEmptyColumnName = fmt.Errorf("%w: column name cannot be empty", ErrValidation)
	ErrStalePage       = errors.New("stale page discarded")
	ErrNoEdit          = errors.New("no edit in progress for cell")
	ErrUnknownColumn   = errors.New("unknown column")
)

// Kind is the coarse classification used to decide how an error is surfaced.
type Kind int

const (
	KindUnknown Kind = iota
	KindNetwork
	KindTimeout
	KindNotFound
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// Classify maps an error onto the grid's error taxonomy.
func Classify(err error) Kind {
	var netErr net.Error
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNetwork), errors.As(err, &netErr):
		return KindNetwork
	default:
		return KindUnknown
	}
}

// Retryable reports whether re-triggering the same action may succeed.
// Timeouts count as network errors.
func Retryable(err error) bool {
	switch Classify(err) {
	case KindNetwork, KindTimeout:
		return true
	default:
		return false
	}
}

// normalizeErr tags context deadline failures as ErrTimeout so callers can
// treat them like network errors.
func normalizeErr(ctx context.Context, err error) error {
	if err == nil || errors.Is(err, ErrTimeout) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || (ctx != nil && errors.Is(ctx.Err(), context.DeadlineExceeded)) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return err
}
