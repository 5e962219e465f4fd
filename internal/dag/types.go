package dag

import (
	"sync"

	"github.com/specialistvlad/releasegrid/internal/node"
)

// Graph is the set of job instances and their dependencies. All operations
// on the graph are concurrency-safe.
type Graph struct {
	// mutex protects the maps during concurrent access.
	mutex sync.RWMutex
	// nodes stores all nodes keyed by instance ID.
	nodes map[string]*node.Node
	// order keeps insertion order, which follows the pipeline file.
	order []string
	// byJob lists the instances of each job.
	byJob map[string][]*node.Node
}
