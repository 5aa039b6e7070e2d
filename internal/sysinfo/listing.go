package sysinfo

import (
	"cmp"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"
)

// SortOrder selects how List orders directory entries.
type SortOrder string

const (
	SortName SortOrder = "name"
	SortTime SortOrder = "time" // newest first
	SortSize SortOrder = "size" // largest first
)

// ListOptions filters and orders a directory listing.
type ListOptions struct {
	// Filters are shell globs; an entry is kept if it matches any. No
	// filters keeps everything.
	Filters []string
	Sort    SortOrder
	Reverse bool
}

type entry struct {
	name  string
	size  int64
	mtime time.Time
}

// List returns the names in dir. The "." and ".." entries are never
// reported. Unknown sort orders fall back to name order.
func List(dir string, opts ListOptions) ([]string, error) {
	des, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}

	entries := make([]entry, 0, len(des))
	for _, de := range des {
		if !matchAny(opts.Filters, de.Name()) {
			continue
		}
		e := entry{name: de.Name()}
		if info, err := de.Info(); err == nil {
			e.size = info.Size()
			e.mtime = info.ModTime()
		}
		entries = append(entries, e)
	}

	slices.SortStableFunc(entries, compareBy(opts.Sort))
	if opts.Reverse {
		slices.Reverse(entries)
	}

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.name
	}
	return names, nil
}

func compareBy(order SortOrder) func(a, b entry) int {
	switch order {
	case SortTime:
		return func(a, b entry) int {
			return cmp.Or(b.mtime.Compare(a.mtime), cmp.Compare(a.name, b.name))
		}
	case SortSize:
		return func(a, b entry) int {
			return cmp.Or(cmp.Compare(b.size, a.size), cmp.Compare(a.name, b.name))
		}
	default:
		return func(a, b entry) int { return cmp.Compare(a.name, b.name) }
	}
}

func matchAny(patterns []string, name string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		if ok, err := filepath.Match(p, name); err == nil && ok {
			return true
		}
	}
	return false
}
