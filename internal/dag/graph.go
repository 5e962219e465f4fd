package dag

import (
	"fmt"
	"strings"

	"github.com/specialistvlad/releasegrid/internal/node"
)

// New creates and returns an initialized, empty Graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]*node.Node),
		byJob: make(map[string][]*node.Node),
	}
}

// AddNode adds a job instance. Instance IDs must be unique.
func (g *Graph) AddNode(n *node.Node) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if _, ok := g.nodes[n.ID()]; ok {
		return fmt.Errorf("duplicate job instance: %s", n.ID())
	}
	g.nodes[n.ID()] = n
	g.order = append(g.order, n.ID())
	g.byJob[n.Job.Name] = append(g.byJob[n.Job.Name], n)
	return nil
}

// AddEdge records that toID needs fromID.
func (g *Graph) AddEdge(fromID, toID string) error {
	if fromID == toID {
		return fmt.Errorf("self-referential edge not allowed: %s -> %s", fromID, fromID)
	}

	g.mutex.Lock()
	defer g.mutex.Unlock()

	from, ok := g.nodes[fromID]
	if !ok {
		return fmt.Errorf("source node not found: %s", fromID)
	}
	to, ok := g.nodes[toID]
	if !ok {
		return fmt.Errorf("destination node not found: %s", toID)
	}
	for _, d := range to.Deps {
		if d == from {
			return nil
		}
	}
	to.Deps = append(to.Deps, from)
	from.Dependents = append(from.Dependents, to)
	return nil
}

// Node returns the instance with the given ID.
func (g *Graph) Node(id string) (*node.Node, bool) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns all instances in insertion order.
func (g *Graph) Nodes() []*node.Node {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	out := make([]*node.Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// Instances returns the instances of a job in matrix order.
func (g *Graph) Instances(job string) []*node.Node {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return append([]*node.Node(nil), g.byJob[job]...)
}

// DetectCycles returns an error naming the nodes of the first cycle found.
func (g *Graph) DetectCycles() error {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	permanent := make(map[*node.Node]bool)
	temporary := make(map[*node.Node]bool)
	var stack []string

	var visit func(n *node.Node) error
	visit = func(n *node.Node) error {
		if permanent[n] {
			return nil
		}
		if temporary[n] {
			start := 0
			for i, id := range stack {
				if id == n.ID() {
					start = i
				}
			}
			path := append(append([]string(nil), stack[start:]...), n.ID())
			return fmt.Errorf("cycle detected: %s", strings.Join(path, " -> "))
		}

		temporary[n] = true
		stack = append(stack, n.ID())
		for _, dependent := range n.Dependents {
			if err := visit(dependent); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		delete(temporary, n)
		permanent[n] = true
		return nil
	}

	for _, id := range g.order {
		if err := visit(g.nodes[id]); err != nil {
			return err
		}
	}
	return nil
}
