package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/rowprompt/internal/llm"
)

func TestEntry(t *testing.T) {
	entry := NewEntry("k", "gpt-4o", "hello", time.Minute)

	assert.Equal(t, "hello", entry.Response)
	assert.False(t, entry.IsExpired())
	assert.LessOrEqual(t, entry.Age(), time.Second)

	entry.ExpiresAt = time.Now().Add(-time.Second)
	assert.True(t, entry.IsExpired())
}

func TestKey(t *testing.T) {
	params := llm.Params{Model: "gpt-4o", Temperature: 0.2, TopP: 0.9}

	base := Key("openai", "prompt", params)
	assert.Len(t, base, 64)
	assert.Equal(t, base, Key("OpenAI", "prompt", params), "provider is case-insensitive")

	variants := map[string]string{
		"provider":    Key("gemini", "prompt", params),
		"prompt":      Key("openai", "other", params),
		"model":       Key("openai", "prompt", llm.Params{Model: "gpt-4o-mini", Temperature: 0.2, TopP: 0.9}),
		"temperature": Key("openai", "prompt", llm.Params{Model: "gpt-4o", Temperature: 0.3, TopP: 0.9}),
		"system":      Key("openai", "prompt", llm.Params{Model: "gpt-4o", Temperature: 0.2, TopP: 0.9, SystemPrompt: "s"}),
	}
	for name, k := range variants {
		assert.NotEqual(t, base, k, name)
	}

	// Field boundaries are delimited.
	assert.NotEqual(t,
		Key("openai", "b", llm.Params{SystemPrompt: "a"}),
		Key("openai", "", llm.Params{SystemPrompt: "ab"}))
}

func TestFileStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	store, err := NewFileStore(dir, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, dir, store.Directory())
	assert.Equal(t, time.Hour, store.TTL())

	_, err = store.Get("missing")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = store.Get("")
	require.ErrorIs(t, err, ErrInvalidKey)
	require.ErrorIs(t, store.Set("", "", "x"), ErrInvalidKey)

	require.NoError(t, store.Set("abc", "gpt-4o", "answer"))
	entry, err := store.Get("abc")
	require.NoError(t, err)
	assert.Equal(t, "answer", entry.Response)
	assert.Equal(t, "gpt-4o", entry.Model)

	stats, err := store.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Entries)
	assert.Positive(t, stats.Bytes)

	n, err := store.Clear()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = store.Get("abc")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFileStore_DefaultTTL(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultTTL, store.TTL())

	_, err = NewFileStore("", time.Hour)
	require.Error(t, err)
}

func TestFileStore_Expiry(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), time.Millisecond)
	require.NoError(t, err)

	require.NoError(t, store.Set("old", "", "stale"))
	time.Sleep(5 * time.Millisecond)

	_, err = store.Get("old")
	require.ErrorIs(t, err, ErrExpired)
	_, statErr := os.Stat(filepath.Join(store.Directory(), "old.json"))
	assert.True(t, os.IsNotExist(statErr), "expired entry is removed on read")

	require.NoError(t, store.Set("a", "", "1"))
	require.NoError(t, store.Set("b", "", "2"))
	require.NoError(t, os.WriteFile(filepath.Join(store.Directory(), "junk.json"), []byte("{"), 0o600))
	time.Sleep(5 * time.Millisecond)

	n, err := store.CleanupExpired()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	stats, err := store.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Entries, "unparseable files are left alone")
}

func TestParseTTL(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"3600", time.Hour, false},
		{"90m", 90 * time.Minute, false},
		{"1h30m", 90 * time.Minute, false},
		{"30", 0, true},
		{"200h", 0, true},
		{"soon", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTTL(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "30s", FormatDuration(30*time.Second))
	assert.Equal(t, "5m", FormatDuration(5*time.Minute))
	assert.Equal(t, "2h", FormatDuration(2*time.Hour))
	assert.Equal(t, "1h30m", FormatDuration(90*time.Minute))
	assert.Equal(t, "1d", FormatDuration(24*time.Hour))
	assert.Equal(t, "7d", FormatDuration(MaxTTL))
	assert.Equal(t, "1d6h", FormatDuration(30*time.Hour))
}

func TestInvoker(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), time.Hour)
	require.NoError(t, err)

	var calls atomic.Int32
	next := llm.Func(func(_ context.Context, prompt string, _ llm.Params) (string, error) {
		calls.Add(1)
		if prompt == "fail" {
			return "", errors.New("rate limited")
		}
		return "answer to " + prompt, nil
	})
	inv := Wrap(next, store, "openai")
	params := llm.Params{Model: "gpt-4o"}
	ctx := context.Background()

	got, err := inv.Invoke(ctx, "q", params)
	require.NoError(t, err)
	assert.Equal(t, "answer to q", got)

	got, err = inv.Invoke(ctx, "q", params)
	require.NoError(t, err)
	assert.Equal(t, "answer to q", got)
	assert.Equal(t, int32(1), calls.Load(), "second call is served from the cache")

	_, err = inv.Invoke(ctx, "q", llm.Params{Model: "gpt-4o", Temperature: 1})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load(), "different params miss")

	_, err = inv.Invoke(ctx, "fail", params)
	require.Error(t, err)
	_, err = inv.Invoke(ctx, "fail", params)
	require.Error(t, err)
	assert.Equal(t, int32(4), calls.Load(), "errors are not cached")
}

func TestWrap_NilStore(t *testing.T) {
	next := llm.EchoInvoker{}
	assert.Equal(t, llm.Invoker(next), Wrap(next, nil, "echo"))
}
