// Package users looks up recipient contact details and channel preferences.
//
// Directory has three backends: HTTPDirectory calls the user service,
// PostgresDirectory reads a local replica table, StaticDirectory serves a
// fixed set of profiles. CachedDirectory fronts any of them with a short TTL
// cache so a burst of notifications for one user costs a single lookup.
package users

import (
	"context"
	"errors"
	"sync"

	"github.com/dmitrymomot/courier/pkg/notification"
)

var (
	ErrUserNotFound = errors.New("users: user not found")
	ErrLookupFailed = errors.New("users: lookup failed")
)

// Profile is a recipient's contact details and channel preferences.
type Profile struct {
	ID          string                        `json:"id"`
	Email       string                        `json:"email,omitempty"`
	Name        string                        `json:"name,omitempty"`
	PushTokens  []string                      `json:"push_tokens,omitempty"`
	Preferences map[notification.Channel]bool `json:"preferences,omitempty"`
}

// Enabled reports whether the user accepts notifications on ch. Channels
// without an explicit preference are enabled.
func (p Profile) Enabled(ch notification.Channel) bool {
	enabled, ok := p.Preferences[ch]
	return !ok || enabled
}

// Directory resolves user profiles.
type Directory interface {
	Lookup(ctx context.Context, userID string) (Profile, error)
}

// StaticDirectory serves profiles from memory.
type StaticDirectory struct {
	mu       sync.RWMutex
	profiles map[string]Profile
	lookups  int
}

// NewStaticDirectory creates a directory holding profiles.
func NewStaticDirectory(profiles ...Profile) *StaticDirectory {
	d := &StaticDirectory{profiles: make(map[string]Profile, len(profiles))}
	for _, p := range profiles {
		d.profiles[p.ID] = p
	}
	return d
}

// Put adds or replaces a profile.
func (d *StaticDirectory) Put(p Profile) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.profiles[p.ID] = p
}

func (d *StaticDirectory) Lookup(ctx context.Context, userID string) (Profile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lookups++

	p, ok := d.profiles[userID]
	if !ok {
		return Profile{}, ErrUserNotFound
	}
	return p, nil
}

// Lookups returns how many lookups were served.
func (d *StaticDirectory) Lookups() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lookups
}
