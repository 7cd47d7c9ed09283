package llm

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/apigen/apigen/internal/observability"
)

// CachingGenerator memoizes replies by prompt text. Only successful replies
// are stored.
type CachingGenerator struct {
	next  Generator
	cache *gocache.Cache
}

// NewCachingGenerator returns next unchanged when ttl is not positive.
func NewCachingGenerator(next Generator, ttl time.Duration) Generator {
	if next == nil || ttl <= 0 {
		return next
	}
	return &CachingGenerator{
		next:  next,
		cache: gocache.New(ttl, 2*ttl),
	}
}

func (c *CachingGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if cached, ok := c.cache.Get(prompt); ok {
		if text, ok := cached.(string); ok {
			observability.IncrementTranslationCacheHit()
			return text, nil
		}
	}
	text, err := c.next.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	c.cache.SetDefault(prompt, text)
	return text, nil
}
