package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"

	"github.com/rshade/rowprompt/internal/llm"
	"github.com/rshade/rowprompt/internal/logging"
	"github.com/rshade/rowprompt/internal/metrics"
)

// Key derives the cache key for one request.
func Key(provider, prompt string, params llm.Params) string {
	h := sha256.New()
	for _, part := range []string{
		strings.ToLower(provider),
		params.Model,
		strconv.FormatFloat(params.Temperature, 'g', -1, 64),
		strconv.FormatFloat(params.TopP, 'g', -1, 64),
		params.SystemPrompt,
		prompt,
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Invoker answers from the store when it can and records fresh responses.
// Errors are never cached.
type Invoker struct {
	next     llm.Invoker
	store    *FileStore
	provider string
}

// Wrap returns next unchanged when store is nil.
func Wrap(next llm.Invoker, store *FileStore, provider string) llm.Invoker {
	if store == nil {
		return next
	}
	return &Invoker{next: next, store: store, provider: provider}
}

// Invoke implements llm.Invoker.
func (c *Invoker) Invoke(ctx context.Context, prompt string, params llm.Params) (string, error) {
	log := logging.FromContext(ctx)
	key := Key(c.provider, prompt, params)

	entry, err := c.store.Get(key)
	switch {
	case err == nil:
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		return entry.Response, nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrExpired):
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	default:
		metrics.CacheLookups.WithLabelValues("error").Inc()
		log.Warn().Ctx(ctx).Str("component", "cache").Err(err).Msg("cache read failed")
	}

	text, err := c.next.Invoke(ctx, prompt, params)
	if err != nil {
		return "", err
	}
	if setErr := c.store.Set(key, params.Model, text); setErr != nil {
		log.Warn().Ctx(ctx).Str("component", "cache").Err(setErr).Msg("cache write failed")
	}
	return text, nil
}
