package logs

import (
	"context"
	"time"

	"github.com/compozy/logscout/engine/llm/orchestrator"
	"github.com/compozy/logscout/pkg/logger"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// cachedTool memoizes successful results per strategy signature, so a
// retry that repeats an identical call inside the TTL does not hit the store.
type cachedTool struct {
	*Tool
	cache *expirable.LRU[string, any]
}

func newCachedTool(tool *Tool, size int, ttl time.Duration) *cachedTool {
	return &cachedTool{
		Tool:  tool,
		cache: expirable.NewLRU[string, any](size, nil, ttl),
	}
}

func (c *cachedTool) Call(ctx context.Context, args map[string]any) (any, error) {
	key := orchestrator.StrategySignature(c.Name(), args)
	if cached, ok := c.cache.Get(key); ok {
		logger.FromContext(ctx).Debug("Tool cache hit", "tool_name", c.Name())
		return cached, nil
	}
	out, err := c.Tool.Call(ctx, args)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, out)
	return out, nil
}
