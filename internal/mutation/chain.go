package mutation

import (
	"context"
	"fmt"
	"strings"

	"github.com/cinemate/client/internal/logging"
	"github.com/cinemate/client/internal/query"
)

// Step is one remote mutation followed by the cache work it requires.
// Invalidate keys are marked stale; Refetch keys are refetched and awaited
// before the next step starts.
type Step struct {
	Name       string
	Mutate     func(ctx context.Context) error
	Invalidate []query.Key
	Refetch    []query.Key
}

// Chain is an ordered list of dependent steps implementing one user action.
type Chain struct {
	Name  string
	Key   query.Key
	Steps []Step
}

// ChainError reports the step a chain halted at. Steps listed in Completed
// were applied remotely and are not rolled back.
type ChainError struct {
	Chain     string
	Step      string
	Completed []string
	Err       error
}

func (e *ChainError) Error() string {
	if len(e.Completed) == 0 {
		return fmt.Sprintf("%s: %s failed: %v", e.Chain, e.Step, e.Err)
	}
	return fmt.Sprintf("%s: %s failed after %s: %v", e.Chain, e.Step, strings.Join(e.Completed, ", "), e.Err)
}

func (e *ChainError) Unwrap() error {
	return e.Err
}

// Partial reports whether some steps were applied before the failure, leaving
// remote state in an intermediate but individually valid shape.
func (e *ChainError) Partial() bool {
	return len(e.Completed) > 0
}

// Run executes chain strictly in order under the chain's mutation key. It
// halts at the first failing step and returns a *ChainError.
func (r *Runner) Run(ctx context.Context, chain Chain) error {
	key := chain.Key
	if len(key) == 0 {
		key = query.NewKey(chain.Name)
	}

	return r.Do(ctx, key, func(ctx context.Context) error {
		ctx = logging.With(ctx, "chain", chain.Name, "mutation", key.String())
		ctx, span := logging.StartSpan(ctx, "chain "+chain.Name)
		defer span.End()

		completed := make([]string, 0, len(chain.Steps))
		for _, step := range chain.Steps {
			applied, err := r.runStep(ctx, step)
			if applied {
				completed = append(completed, step.Name)
			}
			if err != nil {
				chainErr := &ChainError{
					Chain:     chain.Name,
					Step:      step.Name,
					Completed: completed,
					Err:       err,
				}
				span.Fail(chainErr)
				return chainErr
			}
		}
		return nil
	})
}

// runStep reports whether the step's mutation was applied, which may be true
// even when awaiting its refetches failed.
func (r *Runner) runStep(ctx context.Context, step Step) (applied bool, err error) {
	ctx, span := logging.StartSpan(ctx, "step "+step.Name)
	defer func() {
		span.Fail(err)
		span.End()
	}()

	if step.Mutate != nil {
		if err := step.Mutate(ctx); err != nil {
			return false, err
		}
	}

	for _, key := range step.Invalidate {
		r.cache.Invalidate(key)
	}

	for _, key := range step.Refetch {
		result, err := r.cache.Refetch(ctx, key).Wait(ctx)
		if err != nil {
			return true, fmt.Errorf("refetch %s: %w", key, err)
		}
		if result.Status == query.StatusError {
			logging.FromContext(ctx).Warn("refetch after mutation failed", "key", key.String(), "error", result.Err)
		}
	}
	return true, nil
}
