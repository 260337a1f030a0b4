// Package scoring resolves action types to score deltas.
//
// Weights are read live from a Source (the score_config table in production)
// so operators can tune them without a restart; a configured fallback map
// keeps score accumulation working when the source is unreachable.
package scoring

import (
	"context"

	"github.com/ucmao/parse-ucmao-backend/pkg/logger"
)

// Source supplies the live action->weight table. Implementations return only
// enabled entries.
type Source interface {
	ActionWeights(ctx context.Context) (map[string]int, error)
}

// Resolver maps action types to positive score deltas.
type Resolver struct {
	source   Source
	fallback map[string]int
	log      logger.Logger
}

// Option applies a configuration option to the Resolver.
type Option func(*Resolver)

// WithSource sets the live weight source.
func WithSource(src Source) Option {
	return func(r *Resolver) {
		if src != nil {
			r.source = src
		}
	}
}

// WithFallback sets the weights used when the source fails.
func WithFallback(weights map[string]int) Option {
	return func(r *Resolver) {
		if len(weights) > 0 {
			r.fallback = make(map[string]int, len(weights))
			for action, w := range weights {
				if w > 0 {
					r.fallback[action] = w
				}
			}
		}
	}
}

// WithLogger sets a custom logger for the resolver.
func WithLogger(log logger.Logger) Option {
	return func(r *Resolver) {
		if log != nil {
			r.log = log
		}
	}
}

// NewResolver creates a Resolver with configuration options.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		fallback: make(map[string]int),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Weights returns the current action->weight table: the live source when it
// answers, the fallback otherwise. Single attempt, no retry.
func (r *Resolver) Weights(ctx context.Context) map[string]int {
	if r.source == nil {
		return r.fallback
	}
	weights, err := r.source.ActionWeights(ctx)
	if err != nil || len(weights) == 0 {
		if err != nil && r.log != nil {
			r.log.Warn(ctx, "score weight source failed; using fallback", logger.Error(err))
		}
		return r.fallback
	}
	return weights
}

// Weight resolves a single action type. Unknown actions are a caller error.
func (r *Resolver) Weight(ctx context.Context, action string) (int, error) {
	weights := r.Weights(ctx)
	w, ok := weights[action]
	if !ok || w <= 0 {
		return 0, ErrUnknownAction
	}
	return w, nil
}
