package formation

import "sync"

// Cache remembers the last applied formation for display and quality
// analysis. Physics never reads it.
type Cache struct {
	mu   sync.RWMutex
	last Formation
	set  bool
}

// Store replaces the cached formation with a copy of f
func (c *Cache) Store(f Formation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = f.Clone()
	c.set = true
}

// Last returns a copy of the cached formation and whether one exists
func (c *Cache) Last() (Formation, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.set {
		return Formation{}, false
	}
	return c.last.Clone(), true
}

// Reset forgets the cached formation
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = Formation{}
	c.set = false
}
