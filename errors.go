package gridfilter

import (
	"errors"
	"fmt"

	"github.com/hupe1980/gridfilter/rule"
	"github.com/hupe1980/gridfilter/valuecache"
)

var (
	// ErrCacheNotBuilt is returned when a column's value cache was never
	// built.
	ErrCacheNotBuilt = errors.New("value cache not built")

	// ErrCacheBuildCancelled is returned when a cache build was superseded
	// or its context cancelled before committing.
	ErrCacheBuildCancelled = errors.New("value cache build cancelled")

	// ErrClosed is returned on operations against a closed engine.
	ErrClosed = errors.New("engine closed")
)

// ErrInvalidCondition indicates a condition whose operator is missing its
// required operand.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrInvalidCondition struct {
	Operator rule.SearchType
	cause    error
}

func (e *ErrInvalidCondition) Error() string {
	return fmt.Sprintf("invalid condition: operator %q missing operand", e.Operator)
}

func (e *ErrInvalidCondition) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, valuecache.ErrNotBuilt) {
		return fmt.Errorf("%w: %w", ErrCacheNotBuilt, err)
	}
	if errors.Is(err, valuecache.ErrBuildCancelled) {
		return fmt.Errorf("%w: %w", ErrCacheBuildCancelled, err)
	}
	if errors.Is(err, valuecache.ErrClosed) {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}

	var io *rule.ErrInvalidOperand
	if errors.As(err, &io) {
		return &ErrInvalidCondition{Operator: io.Operator, cause: err}
	}

	return err
}
