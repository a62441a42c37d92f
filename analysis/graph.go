package analysis

import (
	"sync"
)

// Graph represents the module dependency graph recorded during compilation.
type Graph struct {
	// Forward: File -> [Dependencies]
	Forward map[string][]string
	// Reverse: File -> [Dependents] (Files that import this file)
	Reverse map[string][]string

	mu sync.RWMutex
}

// NewGraph creates a new dependency graph.
func NewGraph() *Graph {
	return &Graph{
		Forward: make(map[string][]string),
		Reverse: make(map[string][]string),
	}
}

// AddEdge records that caller imports callee.
func (g *Graph) AddEdge(caller, callee string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, d := range g.Forward[caller] {
		if d == callee {
			return
		}
	}
	g.Forward[caller] = append(g.Forward[caller], callee)
	g.addReverseDependency(callee, caller)
}

// ClearDependencies drops every outgoing edge of path so a fresh compilation
// can record them again.
func (g *Graph) ClearDependencies(path string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, dep := range g.Forward[path] {
		g.removeReverseDependency(dep, path)
	}
	delete(g.Forward, path)
}

// Callers returns the files that directly import path.
func (g *Graph) Callers(path string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return append([]string(nil), g.Reverse[path]...)
}

func (g *Graph) addReverseDependency(dependency, dependent string) {
	for _, d := range g.Reverse[dependency] {
		if d == dependent {
			return
		}
	}
	g.Reverse[dependency] = append(g.Reverse[dependency], dependent)
}

func (g *Graph) removeReverseDependency(dependency, dependent string) {
	deps := g.Reverse[dependency]
	for i, d := range deps {
		if d == dependent {
			g.Reverse[dependency] = append(deps[:i], deps[i+1:]...)
			if len(g.Reverse[dependency]) == 0 {
				delete(g.Reverse, dependency)
			}
			return
		}
	}
}
