package llm

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// MaxInFlightCeiling is the upper bound accepted for concurrent model requests.
const MaxInFlightCeiling = 3

// Gate bounds concurrent requests to a backend and optionally paces them.
// Callers beyond the in-flight limit block until a slot frees or their
// context is done; they never fail because the backend is busy.
type Gate struct {
	sem     *semaphore.Weighted
	limiter *rate.Limiter
}

// NewGate creates a gate allowing maxInFlight concurrent requests, clamped
// to [1, MaxInFlightCeiling]. rps <= 0 disables pacing.
func NewGate(maxInFlight int, rps float64) *Gate {
	maxInFlight = max(1, min(maxInFlight, MaxInFlightCeiling))
	g := &Gate{sem: semaphore.NewWeighted(int64(maxInFlight))}
	if rps > 0 {
		burst := max(1, int(rps))
		g.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return g
}

// Acquire waits for a slot. The returned release must be called exactly once.
func (g *Gate) Acquire(ctx context.Context) (func(), error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for model slot: %w", err)
	}
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			g.sem.Release(1)
			return nil, fmt.Errorf("waiting for rate limit: %w", err)
		}
	}
	return func() { g.sem.Release(1) }, nil
}

// LimitedCompleter routes every request through a Gate.
type LimitedCompleter struct {
	next Completer
	gate *Gate
}

// NewLimitedCompleter wraps next with gate.
func NewLimitedCompleter(next Completer, gate *Gate) *LimitedCompleter {
	return &LimitedCompleter{next: next, gate: gate}
}

// ChatWithMessages waits for a slot, then forwards to the wrapped Completer.
func (c *LimitedCompleter) ChatWithMessages(ctx context.Context, messages []Message, params ChatParams) (string, error) {
	release, err := c.gate.Acquire(ctx)
	if err != nil {
		return "", err
	}
	defer release()
	return c.next.ChatWithMessages(ctx, messages, params)
}

// LimitedEmbedder routes every request through a Gate.
type LimitedEmbedder struct {
	next Embedder
	gate *Gate
}

// NewLimitedEmbedder wraps next with gate.
func NewLimitedEmbedder(next Embedder, gate *Gate) *LimitedEmbedder {
	return &LimitedEmbedder{next: next, gate: gate}
}

// EmbedTexts waits for a slot, then forwards to the wrapped Embedder.
func (e *LimitedEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	release, err := e.gate.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return e.next.EmbedTexts(ctx, texts)
}
