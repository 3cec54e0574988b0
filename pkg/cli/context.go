package cli

import (
	"path/filepath"
	"sync"

	"github.com/PurpleSec/logx"
)

// Context caches parsed Assembly handles by canonicalized path so the
// same image is never mapped and parsed twice.
type Context struct {
	mu    sync.RWMutex
	cache map[string]*Assembly
	log   logx.Log
}

// NewContext creates an empty Context. If log is nil, assemblies it
// loads use a default stderr console logger.
func NewContext(log logx.Log) *Context {
	if log == nil {
		log = logx.Console(logx.Info)
	}
	return &Context{cache: make(map[string]*Assembly), log: log}
}

func canonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}

// LoadAssembly returns the cached Assembly for path if already loaded,
// otherwise parses and caches it. A parse error is never cached: the
// next call retries from scratch.
//
// The parse itself (disk I/O plus the full eager header/heap/table
// decode) runs without holding the lock, so a lookup of an
// already-cached path never waits on an unrelated slow load; it only
// ever blocks for the duration of a map read. Two concurrent first
// loads of the same new path race harmlessly: both parse, the loser's
// Assembly is closed immediately and discarded, and every caller ends
// up with the single Assembly that won the insert.
func (ctx *Context) LoadAssembly(path string) (*Assembly, error) {
	key, err := canonical(path)
	if err != nil {
		return nil, err
	}

	ctx.mu.RLock()
	if a, ok := ctx.cache[key]; ok {
		ctx.mu.RUnlock()
		return a, nil
	}
	ctx.mu.RUnlock()

	a, err := LoadFile(key, WithLogger(ctx.log))
	if err != nil {
		return nil, err
	}

	ctx.mu.Lock()
	if existing, ok := ctx.cache[key]; ok {
		ctx.mu.Unlock()
		a.Close()
		return existing, nil
	}
	ctx.cache[key] = a
	ctx.mu.Unlock()
	return a, nil
}

// Get returns the cached Assembly for path without loading it, and
// whether it was found.
func (ctx *Context) Get(path string) (*Assembly, bool) {
	key, err := canonical(path)
	if err != nil {
		return nil, false
	}
	ctx.mu.RLock()
	defer ctx.mu.RUnlock()
	a, ok := ctx.cache[key]
	return a, ok
}

// Evict closes and removes the cached Assembly for path, if any.
func (ctx *Context) Evict(path string) error {
	key, err := canonical(path)
	if err != nil {
		return err
	}
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	a, ok := ctx.cache[key]
	if !ok {
		return nil
	}
	delete(ctx.cache, key)
	return a.Close()
}

// Close releases every cached assembly. The Context must not be used
// afterward.
func (ctx *Context) Close() error {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	var first error
	for key, a := range ctx.cache {
		if err := a.Close(); err != nil && first == nil {
			first = err
		}
		delete(ctx.cache, key)
	}
	return first
}

// Len returns the number of currently cached assemblies.
func (ctx *Context) Len() int {
	ctx.mu.RLock()
	defer ctx.mu.RUnlock()
	return len(ctx.cache)
}
