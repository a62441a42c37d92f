package analysis

import (
	"sort"
	"sync"
)

// ModuleCache holds compiled modules keyed by path. It is owned by the
// orchestrator: engines load through it, changes invalidate it.
type ModuleCache struct {
	graph *Graph

	mu         sync.Mutex
	entries    map[string]any
	loading    map[string]bool
	onDiscover func(path string)
}

// NewModuleCache creates an empty cache.
func NewModuleCache() *ModuleCache {
	return &ModuleCache{
		graph:   NewGraph(),
		entries: make(map[string]any),
		loading: make(map[string]bool),
	}
}

// OnDiscover registers fn to be told about every module path loaded.
func (c *ModuleCache) OnDiscover(fn func(path string)) {
	c.mu.Lock()
	c.onDiscover = fn
	c.mu.Unlock()
}

// Graph exposes the recorded caller to callee edges.
func (c *ModuleCache) Graph() *Graph {
	return c.graph
}

// Load returns the cached module for path, compiling it on a miss. A non-empty
// caller records the caller to path edge. Import cycles resolve to nil for the
// module already being compiled.
func (c *ModuleCache) Load(caller, path string, compile func(path string) (any, error)) (any, error) {
	if caller != "" {
		c.graph.AddEdge(caller, path)
	}

	c.mu.Lock()
	discover := c.onDiscover
	v, cached := c.entries[path]
	inProgress := c.loading[path]
	if !cached && !inProgress {
		c.loading[path] = true
	}
	c.mu.Unlock()

	if discover != nil {
		discover(path)
	}
	if cached || inProgress {
		return v, nil
	}

	c.graph.ClearDependencies(path)
	v, err := compile(path)

	c.mu.Lock()
	delete(c.loading, path)
	if err == nil {
		c.entries[path] = v
	}
	c.mu.Unlock()

	return v, err
}

// Cached reports whether path currently holds a compiled entry.
func (c *ModuleCache) Cached(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[path]
	return ok
}

// Invalidate drops path and walks up through its callers, dropping every
// entry for which walkable returns true. The walk does not continue past an
// entry walkable rejects. It returns the dropped paths, sorted.
func (c *ModuleCache) Invalidate(path string, walkable func(string) bool) []string {
	visited := map[string]bool{path: true}
	queue := []string{path}
	var dropped []string

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if !walkable(current) {
			continue
		}

		c.mu.Lock()
		if _, ok := c.entries[current]; ok {
			delete(c.entries, current)
			dropped = append(dropped, current)
		}
		c.mu.Unlock()

		for _, caller := range c.graph.Callers(current) {
			if !visited[caller] {
				visited[caller] = true
				queue = append(queue, caller)
			}
		}
	}

	sort.Strings(dropped)
	return dropped
}
