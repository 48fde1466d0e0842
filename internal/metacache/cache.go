// Package metacache stores finalized per-method effect aggregates in their
// compact wire encoding, keyed by method identity. It backs both the local
// snapshot persisted between compilations and the shared remote cache
// service, and invalidates entries when their source files change.
package metacache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"
	"sync"

	"github.com/vela-lang/vela/internal/effects"
)

// MethodID identifies one analyzed method.
type MethodID string

// Entry is one cached method record. Only the nine persisted effect bits are
// retained; the transient inbounds taint never reaches the cache.
type Entry struct {
	Method  MethodID `json:"method"`
	Effects uint32   `json:"effects"`
	Source  string   `json:"source,omitempty"`
	SHA256  string   `json:"sha256,omitempty"`
}

// Cache is a concurrency-safe store of finalized effect aggregates.
type Cache struct {
	mu      sync.RWMutex
	entries map[MethodID]Entry
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{entries: make(map[MethodID]Entry)}
}

// Store records the finalized aggregate for a method. The value is encoded
// on the way in. When the defining source is supplied, its path and content
// hash are recorded so the entry can be invalidated on change.
func (c *Cache) Store(id MethodID, e effects.Effects, sourcePath string, source []byte) {
	entry := Entry{
		Method:  id,
		Effects: e.Encode(),
		Source:  sourcePath,
	}

	if len(source) > 0 {
		sum := sha256.Sum256(source)
		entry.SHA256 = hex.EncodeToString(sum[:])
	}

	c.mu.Lock()
	c.entries[id] = entry
	c.mu.Unlock()
}

// Put inserts an already-encoded record, as received from a snapshot or a
// remote peer. The entry must name a method.
func (c *Cache) Put(entry Entry) error {
	if entry.Method == "" {
		return errors.New("metacache: entry missing method id")
	}

	c.mu.Lock()
	c.entries[entry.Method] = entry
	c.mu.Unlock()

	return nil
}

// Lookup returns the decoded aggregate for a method.
func (c *Cache) Lookup(id MethodID) (effects.Effects, bool) {
	c.mu.RLock()
	entry, ok := c.entries[id]
	c.mu.RUnlock()

	if !ok {
		return effects.Effects{}, false
	}

	return effects.DecodeEffects(entry.Effects), true
}

// Entry returns the raw cached record for a method.
func (c *Cache) Entry(id MethodID) (Entry, bool) {
	c.mu.RLock()
	entry, ok := c.entries[id]
	c.mu.RUnlock()

	return entry, ok
}

// Invalidate drops the record for one method.
func (c *Cache) Invalidate(id MethodID) {
	c.mu.Lock()
	delete(c.entries, id)
	c.mu.Unlock()
}

// InvalidateSource drops every record tied to the given source path and
// returns how many were dropped.
func (c *Cache) InvalidateSource(path string) int {
	if path == "" {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0

	for id, entry := range c.entries {
		if entry.Source == path {
			delete(c.entries, id)
			n++
		}
	}

	return n
}

// Len returns the number of cached records.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// Entries returns all records ordered by method for deterministic output.
func (c *Cache) Entries() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Entry, 0, len(c.entries))
	for _, entry := range c.entries {
		out = append(out, entry)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Method < out[j].Method })

	return out
}
