// Package metadata describes the descriptive fields shown next to each file
// on the review page and composes the collaborators that supply them.
package metadata

import (
	"context"
	"errors"
	"sync"

	"sieve/internal/media/ffprobe"
)

// Info is what the review page knows about one file. Zero values mean unknown.
type Info struct {
	Title      string  `json:"title,omitempty"`
	Artist     string  `json:"artist,omitempty"`
	Codec      string  `json:"codec,omitempty"`
	SampleRate int     `json:"sample_rate,omitempty"`
	BitRate    int64   `json:"bit_rate,omitempty"`
	Size       int64   `json:"size,omitempty"`
	Duration   float64 `json:"duration,omitempty"`
}

// Merge fills the unknown fields of i from other.
func (i Info) Merge(other Info) Info {
	if i.Title == "" {
		i.Title = other.Title
	}
	if i.Artist == "" {
		i.Artist = other.Artist
	}
	if i.Codec == "" {
		i.Codec = other.Codec
	}
	if i.SampleRate == 0 {
		i.SampleRate = other.SampleRate
	}
	if i.BitRate == 0 {
		i.BitRate = other.BitRate
	}
	if i.Size == 0 {
		i.Size = other.Size
	}
	if i.Duration == 0 {
		i.Duration = other.Duration
	}
	return i
}

// Complete reports whether every field is known.
func (i Info) Complete() bool {
	return i.Title != "" && i.Artist != "" && i.Codec != "" &&
		i.SampleRate > 0 && i.BitRate > 0 && i.Size > 0 && i.Duration > 0
}

// Lookup resolves Info for a file on disk.
type Lookup interface {
	Lookup(ctx context.Context, path string) (Info, error)
}

// LookupFunc adapts a function to Lookup.
type LookupFunc func(ctx context.Context, path string) (Info, error)

func (f LookupFunc) Lookup(ctx context.Context, path string) (Info, error) { return f(ctx, path) }

// Chain asks each lookup in order and merges what they return, stopping once
// the Info is complete. An error is returned only when no lookup produced
// anything.
type Chain []Lookup

func (c Chain) Lookup(ctx context.Context, path string) (Info, error) {
	var (
		info  Info
		errs  []error
		found bool
	)
	for _, lookup := range c {
		if err := ctx.Err(); err != nil {
			return info, err
		}
		got, err := lookup.Lookup(ctx, path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		found = true
		info = info.Merge(got)
		if info.Complete() {
			break
		}
	}
	if !found && len(errs) > 0 {
		return Info{}, errors.Join(errs...)
	}
	return info, nil
}

// Cache memoizes a lookup per path. A file appears in many pairs, so each is
// probed once per export.
type Cache struct {
	next    Lookup
	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	info Info
	err  error
}

// NewCache wraps next.
func NewCache(next Lookup) *Cache {
	return &Cache{next: next, entries: make(map[string]cacheEntry)}
}

func (c *Cache) Lookup(ctx context.Context, path string) (Info, error) {
	c.mu.Lock()
	entry, ok := c.entries[path]
	c.mu.Unlock()
	if ok {
		return entry.info, entry.err
	}
	info, err := c.next.Lookup(ctx, path)
	if ctx.Err() != nil {
		return info, err
	}
	c.mu.Lock()
	c.entries[path] = cacheEntry{info: info, err: err}
	c.mu.Unlock()
	return info, err
}

// FFprobe reads Info by running ffprobe.
type FFprobe struct {
	Binary string
	// Run overrides command execution in tests.
	Run ffprobe.Runner
}

func (f FFprobe) Lookup(ctx context.Context, path string) (Info, error) {
	var (
		result ffprobe.Result
		err    error
	)
	if f.Run != nil {
		result, err = ffprobe.InspectWith(ctx, f.Run, f.Binary, path)
	} else {
		result, err = ffprobe.Inspect(ctx, f.Binary, path)
	}
	if err != nil {
		return Info{}, err
	}
	info := Info{
		Title:      result.Tag("title"),
		Artist:     result.Tag("artist"),
		SampleRate: result.SampleRate(),
		BitRate:    result.BitRate(),
		Size:       result.SizeBytes(),
	}
	if d := result.DurationSeconds(); d > 0 {
		info.Duration = d
	}
	if stream, ok := result.AudioStream(); ok {
		info.Codec = stream.CodecLongName
		if info.Codec == "" {
			info.Codec = stream.CodecName
		}
	}
	return info, nil
}
