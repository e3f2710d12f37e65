package resource

// TreeNode is one item of an allocation's resource tree, mirroring the
// shape of the request item it was bound from: a single resource, a list
// of resources that co-locate on one node, or an aggregate (VizNode or
// ResourceGroup) acting as a co-location/handler hint.
type TreeNode struct {
	Single    Item
	List      []Item
	Aggregate Item
}

// Flatten returns every concrete resource referenced by this node.
func (n TreeNode) Flatten() []Item {
	switch {
	case n.Single != nil:
		return []Item{n.Single}
	case n.List != nil:
		return append([]Item(nil), n.List...)
	case n.Aggregate != nil:
		if vn, ok := n.Aggregate.(*VizNode); ok {
			var items []Item
			for _, g := range vn.GPUs {
				items = append(items, g)
			}
			for _, s := range vn.SLIs {
				items = append(items, s)
			}
			for _, s := range vn.Servers {
				items = append(items, s)
			}
			for _, k := range vn.Keyboards {
				items = append(items, k)
			}
			for _, m := range vn.Mice {
				items = append(items, m)
			}
			return items
		}
		if rg, ok := n.Aggregate.(*ResourceGroup); ok {
			var items []Item
			for _, list := range rg.Resources {
				items = append(items, list...)
			}
			return items
		}
		return []Item{n.Aggregate}
	default:
		return nil
	}
}

// Allocation is a handle to a set of resources granted to a session.
type Allocation struct {
	ID             int
	OwnerSessionID string
	Tree           []TreeNode
}

// Resources returns every concrete resource held by this allocation.
func (a *Allocation) Resources() []Item {
	var out []Item
	for _, node := range a.Tree {
		out = append(out, node.Flatten()...)
	}
	return out
}

// Holds reports whether this allocation holds the given resource,
// compared by (class, host, index) identity.
func (a *Allocation) Holds(r Item) bool {
	for _, held := range a.Resources() {
		if Equal(held, r) {
			return true
		}
	}
	return false
}
