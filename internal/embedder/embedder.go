package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Common errors
var (
	ErrEmptyText         = errors.New("text cannot be empty")
	ErrInvalidInput      = errors.New("invalid input")
	ErrBatchTooLarge     = errors.New("batch size exceeds limit")
	ErrProviderFailed    = errors.New("embedding provider failed")
	ErrUnknownProvider   = errors.New("unknown embedding provider")
	ErrNoProviderEnabled = errors.New("no embedding provider configured")
)

// Embedder turns text into dense vectors suitable for similarity search.
// All vectors from one Embedder share the same dimension.
type Embedder interface {
	// Embed generates a vector for a single text
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates vectors for multiple texts in one provider call.
	// The returned slice is index-aligned with texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the vector dimension this provider produces
	Dimension() int

	// Provider returns the provider name
	Provider() string

	// Model returns the model name
	Model() string

	// Close releases any resources held by the embedder
	Close() error
}

// hashText computes the SHA-256 cache key for a text
func hashText(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

func validateTexts(texts []string) error {
	if len(texts) == 0 {
		return fmt.Errorf("%w: no texts provided", ErrInvalidInput)
	}
	for i, text := range texts {
		if text == "" {
			return fmt.Errorf("%w: text at index %d is empty", ErrInvalidInput, i)
		}
	}
	return nil
}

// Cached wraps an Embedder with an in-memory LRU cache keyed by content hash.
// Repeated queries and re-ingested content skip the provider round trip.
type Cached struct {
	inner Embedder
	cache *lru.Cache[string, []float32]
}

// DefaultCacheSize bounds the number of vectors kept in memory
const DefaultCacheSize = 10000

// NewCached wraps inner with an LRU cache of at most size vectors
func NewCached(inner Embedder, size int) *Cached {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		// Only reachable with a non-positive size, which we just excluded
		cache, _ = lru.New[string, []float32](DefaultCacheSize)
	}
	return &Cached{inner: inner, cache: cache}
}

func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	hash := hashText(text)
	if vec, ok := c.cache.Get(hash); ok {
		return copyVector(vec), nil
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(hash, copyVector(vec))
	return vec, nil
}

func (c *Cached) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := validateTexts(texts); err != nil {
		return nil, err
	}

	results := make([][]float32, len(texts))

	// Partition into cached hits and texts that still need the provider
	var missing []string
	var missingIdx []int
	for i, text := range texts {
		if vec, ok := c.cache.Get(hashText(text)); ok {
			results[i] = copyVector(vec)
		} else {
			missing = append(missing, text)
			missingIdx = append(missingIdx, i)
		}
	}

	if len(missing) > 0 {
		vectors, err := c.inner.EmbedBatch(ctx, missing)
		if err != nil {
			return nil, err
		}
		for j, vec := range vectors {
			results[missingIdx[j]] = vec
			c.cache.Add(hashText(missing[j]), copyVector(vec))
		}
	}

	return results, nil
}

func (c *Cached) Dimension() int   { return c.inner.Dimension() }
func (c *Cached) Provider() string { return c.inner.Provider() }
func (c *Cached) Model() string    { return c.inner.Model() }
func (c *Cached) Close() error     { return c.inner.Close() }

// CacheLen returns the number of cached vectors
func (c *Cached) CacheLen() int { return c.cache.Len() }

// PurgeCache empties the cache
func (c *Cached) PurgeCache() { c.cache.Purge() }

// copyVector returns a copy so cached values are isolated from caller mutation
func copyVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
