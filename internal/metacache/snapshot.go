package metacache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	semver "github.com/Masterminds/semver/v3"
)

// FormatVersion is the snapshot format written by this build. Loaders accept
// any snapshot within the same major series.
const FormatVersion = "1.2.0"

// formatConstraint gates which snapshot versions this build can read.
var formatConstraint = mustConstraint("^1.0")

func mustConstraint(s string) *semver.Constraints {
	c, err := semver.NewConstraint(s)
	if err != nil {
		panic(err)
	}

	return c
}

// Snapshot is the persisted form of a cache: a format version plus the
// entries in deterministic method order.
type Snapshot struct {
	FormatVersion string  `json:"format_version"`
	Entries       []Entry `json:"entries"`
}

// Snapshot captures the current cache contents.
func (c *Cache) Snapshot() Snapshot {
	return Snapshot{
		FormatVersion: FormatVersion,
		Entries:       c.Entries(),
	}
}

// Save writes the cache to path as canonical indented JSON. Entries are
// sorted, so byte-identical caches produce byte-identical snapshots.
func (c *Cache) Save(path string) error {
	b, err := json.MarshalIndent(c.Snapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	return nil
}

// Load reads a snapshot from path into a fresh cache, rejecting snapshots
// from an incompatible format series or with malformed entries.
func Load(path string) (*Cache, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}

	return Restore(snap)
}

// Restore builds a cache from an in-memory snapshot after validating it.
func Restore(snap Snapshot) (*Cache, error) {
	if err := checkFormatVersion(snap.FormatVersion); err != nil {
		return nil, err
	}

	if !sort.SliceIsSorted(snap.Entries, func(i, j int) bool {
		return snap.Entries[i].Method < snap.Entries[j].Method
	}) {
		return nil, errors.New("snapshot entries not sorted by method")
	}

	c := New()

	for _, entry := range snap.Entries {
		if entry.Method == "" {
			return nil, errors.New("snapshot entry missing method id")
		}

		if _, dup := c.entries[entry.Method]; dup {
			return nil, fmt.Errorf("duplicate snapshot entry for %q", entry.Method)
		}

		c.entries[entry.Method] = entry
	}

	return c, nil
}

func checkFormatVersion(v string) error {
	ver, err := semver.NewVersion(v)
	if err != nil {
		return fmt.Errorf("snapshot format version %q: %w", v, err)
	}

	if !formatConstraint.Check(ver) {
		return fmt.Errorf("snapshot format %s outside supported range %s", v, formatConstraint)
	}

	return nil
}
