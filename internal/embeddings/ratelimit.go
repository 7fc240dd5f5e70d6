package embeddings

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/time/rate"
)

// rateLimited throttles calls to a remote provider. A request that cannot
// get a slot before its context ends fails with ErrModelUnavailable.
type rateLimited struct {
	Provider
	limiter *rate.Limiter
}

// RateLimited wraps p so that at most perSecond Embed calls start each
// second. perSecond <= 0 returns p unchanged.
func RateLimited(p Provider, perSecond float64) Provider {
	if perSecond <= 0 {
		return p
	}
	burst := int(math.Ceil(perSecond))
	return &rateLimited{Provider: p, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (p *rateLimited) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %v", ErrModelUnavailable, err)
	}
	return p.Provider.Embed(ctx, texts)
}
