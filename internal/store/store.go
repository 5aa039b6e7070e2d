// Package store persists the recorder state the device simulator exposes
// over the link: recorded events and their metadata, bookmarks, and small
// settings such as microphone mute and volume levels. The implementation
// uses SQLite (pure Go, no CGO).
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a named record does not exist.
var ErrNotFound = errors.New("store: not found")

// Event is a recording and its metadata fields.
type Event struct {
	Name      string            `json:"name"`
	Camera    int               `json:"camera"`
	Fields    map[string]string `json:"fields"`
	Pending   bool              `json:"pending"` // not yet uploaded
	CreatedAt time.Time         `json:"created_at"`
}

// Bookmark marks a moment of interest on a camera, optionally within an
// event.
type Bookmark struct {
	ID        int64     `json:"id"`
	Camera    int       `json:"camera"`
	Event     string    `json:"event,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the simulator's storage interface. All methods are safe for
// concurrent use.
type Store interface {
	// Events.
	EventCreate(ctx context.Context, ev Event) error
	EventGet(ctx context.Context, name string) (*Event, error)
	// EventModify merges fields into an existing event.
	EventModify(ctx context.Context, name string, fields map[string]string) error
	EventList(ctx context.Context) ([]string, error)
	EventPending(ctx context.Context) ([]string, error)
	EventMarkUploaded(ctx context.Context, name string) error

	// Bookmarks.
	BookmarkAdd(ctx context.Context, b Bookmark) (int64, error)
	BookmarkList(ctx context.Context, camera int) ([]Bookmark, error)

	// Settings, grouped by namespace.
	SettingSet(ctx context.Context, namespace, key, value string) error
	SettingGet(ctx context.Context, namespace, key string) (string, bool, error)
	SettingList(ctx context.Context, namespace string) (map[string]string, error)

	// Close releases resources (e.g. closes the database).
	Close() error
}
