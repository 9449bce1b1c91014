package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/ahrav/go-covenant/internal/ports"
)

// LRUCache is an in-process ports.CacheStore with a store-wide TTL.
type LRUCache struct {
	lru *expirable.LRU[string, any]
}

// NewLRUCache returns a cache holding at most size entries for ttl each.
// A zero ttl disables expiry.
func NewLRUCache(size int, ttl time.Duration) *LRUCache {
	if size <= 0 {
		size = 256
	}
	return &LRUCache{lru: expirable.NewLRU[string, any](size, nil, ttl)}
}

// Get implements ports.CacheStore.
func (c *LRUCache) Get(_ context.Context, key string) (any, bool, error) {
	v, ok := c.lru.Get(key)
	return v, ok, nil
}

// Set implements ports.CacheStore. Per-entry expiration is not supported;
// the store TTL always applies.
func (c *LRUCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	c.lru.Add(key, value)
	return nil
}

// Delete implements ports.CacheStore.
func (c *LRUCache) Delete(_ context.Context, key string) error {
	c.lru.Remove(key)
	return nil
}

// Clear implements ports.CacheStore.
func (c *LRUCache) Clear(context.Context) error {
	c.lru.Purge()
	return nil
}

// Len reports the number of live entries.
func (c *LRUCache) Len() int { return c.lru.Len() }

var _ ports.CacheStore = (*LRUCache)(nil)

type cachedResponse struct {
	response  string
	tokensIn  int
	tokensOut int
}

type cachedLLM struct {
	next  CoreLLM
	store ports.CacheStore
	ttl   time.Duration
}

// CacheMiddleware serves repeated identical requests from store. Only
// successful responses are cached, so a failure never masks a later
// retry. A request carrying ports.OptionNoCache always reaches the model
// and overwrites the stored entry. Cache backend errors degrade to a
// cache miss.
func CacheMiddleware(store ports.CacheStore, ttl time.Duration) Middleware {
	return func(next CoreLLM) CoreLLM {
		if store == nil {
			return next
		}
		return &cachedLLM{next: next, store: store, ttl: ttl}
	}
}

// DoRequest implements CoreLLM.
func (c *cachedLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	key := CacheKey(ParseRequestOptions(opts, c.next.GetModel()), prompt)

	if bypass, _ := opts[ports.OptionNoCache].(bool); !bypass {
		if v, ok, err := c.store.Get(ctx, key); err == nil && ok {
			if hit, ok := v.(cachedResponse); ok {
				return hit.response, hit.tokensIn, hit.tokensOut, nil
			}
		}
	}

	response, tokensIn, tokensOut, err := c.next.DoRequest(ctx, prompt, opts)
	if err != nil {
		return response, tokensIn, tokensOut, err
	}

	// A failed write is not worth failing a successful completion over.
	_ = c.store.Set(ctx, key, cachedResponse{response, tokensIn, tokensOut}, c.ttl)
	return response, tokensIn, tokensOut, nil
}

// CacheKey hashes every request field that can change a completion.
func CacheKey(options RequestOptions, prompt string) string {
	h := sha256.New()
	temp := "default"
	if options.Temperature != nil {
		temp = strconv.FormatFloat(*options.Temperature, 'f', -1, 64)
	}
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00%d\x00", options.Model, options.System, temp, options.MaxTokens)
	h.Write([]byte(prompt))
	return "llm:" + hex.EncodeToString(h.Sum(nil))
}

func (c *cachedLLM) GetModel() string  { return c.next.GetModel() }
func (c *cachedLLM) SetModel(m string) { c.next.SetModel(m) }
