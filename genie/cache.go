package genie

import "sync"

type bindingKey struct {
	parentID  string
	profileID string
}

// SessionCache maps (parent session, profile) pairs to remote slave session
// ids. It is the one piece of state shared across concurrent coordinators,
// so creation is synchronized per key: two near-simultaneous first
// invocations of the same pair converge on a single remote session.
type SessionCache struct {
	mu      sync.Mutex
	entries map[bindingKey]*cacheEntry
}

type cacheEntry struct {
	mu sync.Mutex
	id string
}

func NewSessionCache() *SessionCache {
	return &SessionCache{entries: make(map[bindingKey]*cacheEntry)}
}

// GetOrCreate returns the cached session id for the pair, or calls create
// exactly once to establish it. Concurrent callers for the same key block
// until the winner's result is available and then observe it. If create
// fails, nothing is stored and a later call may retry.
func (c *SessionCache) GetOrCreate(parentID, profileID string, create func() (string, error)) (string, error) {
	key := bindingKey{parentID: parentID, profileID: profileID}

	c.mu.Lock()
	entry, ok := c.entries[key]
	if !ok {
		entry = &cacheEntry{}
		c.entries[key] = entry
	}
	c.mu.Unlock()

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.id != "" {
		return entry.id, nil
	}

	id, err := create()
	if err != nil {
		return "", err
	}
	entry.id = id
	return id, nil
}

// Preload seeds the cache from persisted bindings so a new coordinator for
// the same parent session reuses prior slave sessions. Established ids are
// never overwritten, including one an in-flight GetOrCreate is about to
// store: seeding goes through the entry's own lock rather than swapping the
// map slot, so a creation racing a preload still converges on one session.
func (c *SessionCache) Preload(parentID string, bindings map[string]string) {
	seeds := make(map[*cacheEntry]string, len(bindings))

	c.mu.Lock()
	for profileID, sessionID := range bindings {
		if sessionID == "" {
			continue
		}
		key := bindingKey{parentID: parentID, profileID: profileID}
		entry, ok := c.entries[key]
		if !ok {
			entry = &cacheEntry{}
			c.entries[key] = entry
		}
		seeds[entry] = sessionID
	}
	c.mu.Unlock()

	for entry, sessionID := range seeds {
		entry.mu.Lock()
		if entry.id == "" {
			entry.id = sessionID
		}
		entry.mu.Unlock()
	}
}

// Snapshot returns a read-only copy of the bindings for one parent session.
func (c *SessionCache) Snapshot(parentID string) map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]string)
	for key, entry := range c.entries {
		if key.parentID != parentID {
			continue
		}
		entry.mu.Lock()
		id := entry.id
		entry.mu.Unlock()
		if id != "" {
			out[key.profileID] = id
		}
	}
	return out
}

// Clear drops all bindings for a parent session.
func (c *SessionCache) Clear(parentID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.entries {
		if key.parentID == parentID {
			delete(c.entries, key)
		}
	}
}
