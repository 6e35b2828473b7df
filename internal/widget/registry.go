package widget

import "sync"

// The instance registry maps instance IDs to live calendars. It replaces
// ambient per-node attachment with an explicit arena: entries are created by
// New and deleted by Destroy.
var (
	regMu    sync.RWMutex
	registry = make(map[string]*Calendar)
)

func register(c *Calendar) {
	regMu.Lock()
	registry[c.id] = c
	regMu.Unlock()
}

func unregister(id string) {
	regMu.Lock()
	delete(registry, id)
	regMu.Unlock()
}

// Lookup returns the live instance with the given ID.
func Lookup(id string) (*Calendar, bool) {
	regMu.RLock()
	defer regMu.RUnlock()
	c, ok := registry[id]
	return c, ok
}

// Count reports the number of live instances.
func Count() int {
	regMu.RLock()
	defer regMu.RUnlock()
	return len(registry)
}
