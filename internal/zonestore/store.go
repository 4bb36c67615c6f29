// Package zonestore holds the operator's saved zones. The vision backend is
// the system of record; the local cache is a fallback used when the backend
// is unreachable or no credential is available.
package zonestore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rewired-gh/zonewatch/internal/logger"
	"github.com/rewired-gh/zonewatch/internal/models"
	"go.uber.org/multierr"
)

// Backend is the subset of the vision client the store needs.
type Backend interface {
	HasCredential() bool
	ListZones(ctx context.Context) ([]models.Zone, error)
	SaveZone(ctx context.Context, zone models.Zone) (string, error)
	DeleteZone(ctx context.Context, id models.ZoneID) error
}

// Cache persists the last known zone list locally.
type Cache interface {
	SaveZones(zones []models.Zone) error
	LoadZones() ([]models.Zone, error)
	ClearZones() error
}

// ChangeListener is called with a copy of the collection after every change.
type ChangeListener func(zones []models.Zone)

// Origin tells where the current collection was loaded from.
type Origin int

const (
	OriginEmpty Origin = iota
	OriginRemote
	OriginCache
)

func (o Origin) String() string {
	switch o {
	case OriginRemote:
		return "remote"
	case OriginCache:
		return "cache"
	default:
		return "empty"
	}
}

// Store is the ordered zone collection. It is safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	backend   Backend
	cache     Cache
	zones     []models.Zone
	listeners []ChangeListener
}

// New creates a Store. The collection stays empty until Load is called.
func New(backend Backend, cache Cache) *Store {
	return &Store{
		backend: backend,
		cache:   cache,
		zones:   []models.Zone{},
	}
}

// OnChange registers a listener for collection changes.
func (s *Store) OnChange(fn ChangeListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Load refreshes the collection. With a credential the remote list wins and
// is written through to the cache; otherwise, or when the remote call fails,
// the cached list is used. A failing cache degrades to an empty collection.
func (s *Store) Load(ctx context.Context) (Origin, error) {
	if s.backend.HasCredential() {
		zones, err := s.backend.ListZones(ctx)
		if err == nil {
			s.replace(zones)
			if err := s.cache.SaveZones(zones); err != nil {
				logger.Warn("Failed to write zone cache: %v", err)
			}
			return OriginRemote, nil
		}
		if errors.Is(err, context.Canceled) {
			return OriginEmpty, err
		}
		logger.Warn("Failed to load zones from backend, using cache: %v", err)
	}

	zones, err := s.cache.LoadZones()
	if err != nil {
		s.replace(nil)
		return OriginEmpty, fmt.Errorf("failed to load cached zones: %w", err)
	}
	s.replace(zones)
	if len(zones) == 0 {
		return OriginEmpty, nil
	}
	return OriginCache, nil
}

// Save persists a new zone on the backend and reloads the collection. On
// failure the collection is left unchanged.
func (s *Store) Save(ctx context.Context, zone models.Zone) (string, error) {
	if err := zone.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrIncompleteZone, err)
	}
	if !s.backend.HasCredential() {
		return "", models.ErrAuthRequired
	}

	zone.ID = ""
	msg, err := s.backend.SaveZone(ctx, zone)
	if err != nil {
		return "", err
	}

	if _, err := s.Load(ctx); err != nil {
		logger.Warn("Zone saved but reload failed: %v", err)
	}
	return msg, nil
}

// Delete removes a zone locally and, best effort, on the backend. Zones
// without an id are matched by name.
func (s *Store) Delete(ctx context.Context, zone models.Zone) error {
	if zone.Persisted() && s.backend.HasCredential() {
		if err := s.backend.DeleteZone(ctx, zone.ID); err != nil {
			logger.Warn("Failed to delete zone %s on backend: %v", zone.ID, err)
		}
	}

	s.mu.Lock()
	kept := make([]models.Zone, 0, len(s.zones))
	removed := false
	for _, z := range s.zones {
		if !removed && sameZone(z, zone) {
			removed = true
			continue
		}
		kept = append(kept, z)
	}
	s.zones = kept
	s.mu.Unlock()

	if !removed {
		logger.Debug("Zone %q not in local collection", zone.Name)
	}
	s.notify()
	return s.cache.SaveZones(kept)
}

// ClearAll deletes every zone. Remote deletes are best effort; their
// failures are combined into the returned error, but the local collection
// and cache are cleared regardless.
func (s *Store) ClearAll(ctx context.Context) error {
	zones := s.Snapshot()

	var remoteErr error
	if s.backend.HasCredential() {
		for _, z := range zones {
			if !z.Persisted() {
				continue
			}
			if err := s.backend.DeleteZone(ctx, z.ID); err != nil {
				remoteErr = multierr.Append(remoteErr, fmt.Errorf("zone %s: %w", z.ID, err))
			}
		}
		if remoteErr != nil {
			logger.Warn("Some zones could not be deleted on backend: %v", remoteErr)
		}
	}

	s.replace(nil)
	if err := s.cache.ClearZones(); err != nil {
		return multierr.Append(remoteErr, fmt.Errorf("failed to clear zone cache: %w", err))
	}
	return remoteErr
}

// Snapshot returns a copy of the collection.
func (s *Store) Snapshot() []models.Zone {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneZones(s.zones)
}

// Len returns the number of zones.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.zones)
}

// NameFor resolves a backend zone id to the zone's name.
func (s *Store) NameFor(id models.ZoneID) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, z := range s.zones {
		if z.ID == id {
			return z.Name, true
		}
	}
	return "", false
}

// replace swaps in a new collection, dropping duplicate ids, and notifies.
func (s *Store) replace(zones []models.Zone) {
	seen := make(map[models.ZoneID]bool, len(zones))
	next := make([]models.Zone, 0, len(zones))
	for _, z := range zones {
		if z.Persisted() {
			if seen[z.ID] {
				logger.Warn("Duplicate zone id %s ignored", z.ID)
				continue
			}
			seen[z.ID] = true
		}
		next = append(next, z.Clone())
	}

	s.mu.Lock()
	s.zones = next
	s.mu.Unlock()
	s.notify()
}

func (s *Store) notify() {
	s.mu.RLock()
	listeners := make([]ChangeListener, len(s.listeners))
	copy(listeners, s.listeners)
	zones := cloneZones(s.zones)
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn(cloneZones(zones))
	}
}

func sameZone(a, b models.Zone) bool {
	if a.Persisted() || b.Persisted() {
		return a.ID == b.ID
	}
	return a.Name == b.Name
}

func cloneZones(zones []models.Zone) []models.Zone {
	out := make([]models.Zone, len(zones))
	for i, z := range zones {
		out[i] = z.Clone()
	}
	return out
}
