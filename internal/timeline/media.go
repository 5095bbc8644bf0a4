package timeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"
)

// Resolver turns a media reference into a comparable content signature.
type Resolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

// HashResolver signs media by hashing its bytes with xxhash. References may be
// http(s) URLs or file paths; relative paths resolve against BaseDir.
type HashResolver struct {
	baseDir string
	opts    options
}

var _ Resolver = (*HashResolver)(nil)

// NewHashResolver creates a content-hashing resolver.
func NewHashResolver(baseDir string, opts ...Option) *HashResolver {
	return &HashResolver{baseDir: strings.TrimSpace(baseDir), opts: applyOptions(opts)}
}

// Resolve downloads or opens ref and returns its signature.
func (r *HashResolver) Resolve(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", errors.New("media reference empty")
	}

	var body io.ReadCloser
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		if err := r.opts.limiter.Wait(ctx); err != nil {
			return "", err
		}
		rc, err := getBody(ctx, r.opts, ref)
		if err != nil {
			return "", fmt.Errorf("fetch media: %w", err)
		}
		body = rc
	} else {
		path := ref
		if !filepath.IsAbs(path) && r.baseDir != "" {
			path = filepath.Join(r.baseDir, path)
		}
		f, err := os.Open(path)
		if err != nil {
			return "", fmt.Errorf("open media: %w", err)
		}
		body = f
	}
	defer body.Close()

	digest := xxhash.New()
	if _, err := io.Copy(digest, body); err != nil {
		return "", fmt.Errorf("hash media %s: %w", ref, err)
	}
	return fmt.Sprintf("xxh64:%016x", digest.Sum64()), nil
}

// CachingResolver memoizes another resolver for the lifetime of a run.
// Concurrent lookups of the same reference share a single resolution.
type CachingResolver struct {
	next  Resolver
	group singleflight.Group

	mu      sync.Mutex
	entries map[string]cachedSignature
}

type cachedSignature struct {
	signature string
	err       error
}

var _ Resolver = (*CachingResolver)(nil)

// NewCachingResolver wraps next with an in-memory cache.
func NewCachingResolver(next Resolver) *CachingResolver {
	return &CachingResolver{next: next, entries: make(map[string]cachedSignature)}
}

// Resolve returns the cached signature for ref, resolving it on first use.
// Failures are cached too so a broken reference is attempted once per run.
func (c *CachingResolver) Resolve(ctx context.Context, ref string) (string, error) {
	c.mu.Lock()
	entry, ok := c.entries[ref]
	c.mu.Unlock()
	if ok {
		return entry.signature, entry.err
	}

	v, err, _ := c.group.Do(ref, func() (any, error) {
		sig, err := c.next.Resolve(ctx, ref)
		if ctx.Err() == nil {
			c.mu.Lock()
			c.entries[ref] = cachedSignature{signature: sig, err: err}
			c.mu.Unlock()
		}
		return sig, err
	})
	sig, _ := v.(string)
	return sig, err
}

// Len reports how many references have been resolved.
func (c *CachingResolver) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
