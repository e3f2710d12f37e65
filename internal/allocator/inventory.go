// Package allocator implements the resource-broker's fit algorithm:
// Normalize, Rank, Fit, Reserve, and Bind over an in-memory inventory of
// nodes. resource.TreeNode serves for both request items and bound
// results, since an allocation result mirrors the shape of the request
// that produced it.
package allocator

import (
	"sync"

	"github.com/vizstack/broker/internal/logging"
	"github.com/vizstack/broker/internal/resource"
)

var log = logging.L("allocator")

// Node is one host's full resource inventory.
type Node struct {
	Name      string
	GPUs      []*resource.GPU
	SLIs      []*resource.SLI
	Servers   []*resource.Server
	Keyboards []*resource.Keyboard
	Mice      []*resource.Mouse
}

// itemsOfClass returns this node's concrete resources of class c.
func (n *Node) itemsOfClass(c resource.Class) []resource.Item {
	switch c {
	case resource.ClassGPU:
		items := make([]resource.Item, len(n.GPUs))
		for i, g := range n.GPUs {
			items[i] = g
		}
		return items
	case resource.ClassSLI:
		items := make([]resource.Item, len(n.SLIs))
		for i, s := range n.SLIs {
			items[i] = s
		}
		return items
	case resource.ClassServer:
		items := make([]resource.Item, len(n.Servers))
		for i, s := range n.Servers {
			items[i] = s
		}
		return items
	case resource.ClassKeyboard:
		items := make([]resource.Item, len(n.Keyboards))
		for i, k := range n.Keyboards {
			items[i] = k
		}
		return items
	case resource.ClassMouse:
		items := make([]resource.Item, len(n.Mice))
		for i, m := range n.Mice {
			items[i] = m
		}
		return items
	default:
		return nil
	}
}

// resourceKey is the (class, host, index) identity used to track which
// concrete resources are currently held by some allocation.
type resourceKey struct {
	Class resource.Class
	Host  string
	Index int
}

func keyOf(item resource.Item) resourceKey {
	idx := 0
	if p := item.GetIndex(); p != nil {
		idx = *p
	}
	return resourceKey{item.ResClass(), item.GetHost(), idx}
}

// Inventory is the broker's single authoritative view of nodes and
// resource groups, built once at startup from configuration and mutated
// only by successful allocate/deallocate calls under the caller's lock
// (the broker package, not this one, owns the global mutex).
type Inventory struct {
	mu        sync.Mutex
	order     []string // configured node order, for deterministic Fit walks
	nodes     map[string]*Node
	rgCatalog map[string]*resource.ResourceGroup
	held      map[resourceKey]int // resource identity -> owning allocation id
}

// NewInventory builds an inventory from configured nodes (in configured
// order) and a resource-group template catalog keyed by group name.
func NewInventory(nodes []*Node, rgCatalog map[string]*resource.ResourceGroup) *Inventory {
	inv := &Inventory{
		nodes:     make(map[string]*Node, len(nodes)),
		rgCatalog: rgCatalog,
		held:      make(map[resourceKey]int),
	}
	for _, n := range nodes {
		inv.nodes[n.Name] = n
		inv.order = append(inv.order, n.Name)
	}
	return inv
}

// SetResourceGroupCatalog atomically replaces the named resource-group
// templates the normalize step expands, for refresh_resource_groups.
func (inv *Inventory) SetResourceGroupCatalog(catalog map[string]*resource.ResourceGroup) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.rgCatalog = catalog
}

// NodeNames returns every node in configured order.
func (inv *Inventory) NodeNames() []string {
	return append([]string(nil), inv.order...)
}

// orderedNodes returns nodes restricted to allowed (if non-empty), in
// configured order, breaking ties by node name (the order is already a
// total order, so this is just a filtered copy).
func (inv *Inventory) orderedNodes(allowed []string) []*Node {
	var names []string
	if len(allowed) == 0 {
		names = inv.order
	} else {
		set := make(map[string]bool, len(allowed))
		for _, a := range allowed {
			set[a] = true
		}
		for _, n := range inv.order {
			if set[n] {
				names = append(names, n)
			}
		}
	}
	out := make([]*Node, 0, len(names))
	for _, n := range names {
		out = append(out, inv.nodes[n])
	}
	return out
}

func (inv *Inventory) commit(items []resource.Item, allocID int) {
	for _, it := range items {
		inv.held[keyOf(it)] = allocID
	}
}

// Release frees every resource held by allocID.
func (inv *Inventory) Release(allocID int) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	for k, id := range inv.held {
		if id == allocID {
			delete(inv.held, k)
		}
	}
}

// allClasses enumerates every concrete resource class a node carries,
// in the order query_resource results are returned.
var allClasses = []resource.Class{
	resource.ClassGPU, resource.ClassSLI, resource.ClassServer,
	resource.ClassKeyboard, resource.ClassMouse,
}

// QueryResources returns every concrete resource matching template, or
// every resource in the inventory if template is nil, backing
// query_resource. Walked in configured node order for determinism.
func (inv *Inventory) QueryResources(template resource.Item) []resource.Item {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	var out []resource.Item
	for _, name := range inv.order {
		n := inv.nodes[name]
		for _, c := range allClasses {
			for _, it := range n.itemsOfClass(c) {
				if template == nil || template.Match(it) {
					out = append(out, it)
				}
			}
		}
	}
	return out
}

// FindServer returns the live Server resource at (host, display), for
// get_serverconfig/update_serverconfig/stop_x_server/wait_x_state to
// mutate or inspect in place.
func (inv *Inventory) FindServer(host string, display int) (*resource.Server, bool) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	n, ok := inv.nodes[host]
	if !ok {
		return nil, false
	}
	for _, s := range n.Servers {
		if s.Index != nil && *s.Index == display {
			return s, true
		}
	}
	return nil, false
}

// HeldBy returns the allocation id currently holding item, or 0 if free.
func (inv *Inventory) HeldBy(item resource.Item) int {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.held[keyOf(item)]
}
