package allocator

import (
	"fmt"

	"github.com/vizstack/broker/internal/resource"
)

// fit satisfies one ranked request item against the inventory, walking
// candidate nodes in deterministic order and never reusing a resource
// already committed (inv.held) or tentatively claimed by this
// allocation attempt. Returns every node name the result touches.
func (a *Allocator) fit(item resource.TreeNode, searchNodes []string, tentative map[resourceKey]bool) ([]string, resource.TreeNode, error) {
	switch {
	case item.Single != nil:
		return a.fitSingle(item.Single, searchNodes, tentative)
	case item.List != nil:
		return a.fitList(item.List, searchNodes, tentative)
	case item.Aggregate != nil:
		switch agg := item.Aggregate.(type) {
		case *resource.VizNode:
			return a.fitVizNode(agg, searchNodes, tentative)
		case *resource.ResourceGroup:
			return a.fitResourceGroup(agg, searchNodes, tentative)
		}
	}
	return nil, resource.TreeNode{}, fmt.Errorf("empty or unrecognized request item")
}

func (a *Allocator) fitSingle(tmpl resource.Item, searchNodes []string, tentative map[resourceKey]bool) ([]string, resource.TreeNode, error) {
	for _, node := range a.inv.orderedNodes(searchNodes) {
		if tmpl.GetHost() != "" && tmpl.GetHost() != node.Name {
			continue
		}
		pool := node.itemsOfClass(tmpl.ResClass())
		if picked := a.pickFree(tmpl, pool, tentative); picked != nil {
			bound := picked.Clone()
			return []string{node.Name}, resource.TreeNode{Single: bound}, nil
		}
	}
	return nil, resource.TreeNode{}, fmt.Errorf("no node satisfies template %s", tmpl.ResClass())
}

// fitList requires every sub-template to be satisfiable on the same
// node, sub-resources tried in ascending-DOF order so fully-specified
// ones claim their exact match first.
func (a *Allocator) fitList(tmpl []resource.Item, searchNodes []string, tentative map[resourceKey]bool) ([]string, resource.TreeNode, error) {
	ordered := ascendingDOF(tmpl)
	for _, node := range a.inv.orderedNodes(searchNodes) {
		claimed := make(map[resourceKey]bool)
		resolved := make([]resource.Item, 0, len(ordered))
		ok := true
		for _, sub := range ordered {
			if sub.GetHost() != "" && sub.GetHost() != node.Name {
				ok = false
				break
			}
			pool := node.itemsOfClass(sub.ResClass())
			picked := a.pickFreeExcluding(sub, pool, tentative, claimed)
			if picked == nil {
				ok = false
				break
			}
			claimed[keyOf(picked)] = true
			resolved = append(resolved, picked.Clone())
		}
		if ok {
			// restore input order rather than ascending-DOF order
			return []string{node.Name}, resource.TreeNode{List: reorderLike(tmpl, resolved)}, nil
		}
	}
	return nil, resource.TreeNode{}, fmt.Errorf("no single node satisfies all %d co-located templates", len(tmpl))
}

// reorderLike maps resolved items (in ascending-DOF order) back onto the
// class sequence of the original template list.
func reorderLike(tmpl []resource.Item, resolved []resource.Item) []resource.Item {
	remaining := append([]resource.Item(nil), resolved...)
	out := make([]resource.Item, len(tmpl))
	for i, t := range tmpl {
		for j, r := range remaining {
			if r == nil {
				continue
			}
			if r.ResClass() == t.ResClass() {
				out[i] = r
				remaining[j] = nil
				break
			}
		}
	}
	return out
}

func (a *Allocator) fitVizNode(tmpl *resource.VizNode, searchNodes []string, tentative map[resourceKey]bool) ([]string, resource.TreeNode, error) {
	for _, node := range a.inv.orderedNodes(searchNodes) {
		if tmpl.Host != "" && tmpl.Host != node.Name {
			continue
		}
		claimed := make(map[resourceKey]bool)
		resolved := &resource.VizNode{Host: node.Name, RemoteHostname: tmpl.RemoteHostname}

		ok := true
		ok = ok && fitSubset(node, resource.ClassGPU, itemsToInterface(tmpl.GPUs), tentative, claimed, func(items []resource.Item) {
			for _, it := range items {
				resolved.GPUs = append(resolved.GPUs, it.(*resource.GPU))
			}
		})
		ok = ok && fitSubset(node, resource.ClassSLI, itemsToInterface(tmpl.SLIs), tentative, claimed, func(items []resource.Item) {
			for _, it := range items {
				resolved.SLIs = append(resolved.SLIs, it.(*resource.SLI))
			}
		})
		ok = ok && fitSubset(node, resource.ClassServer, itemsToInterface(tmpl.Servers), tentative, claimed, func(items []resource.Item) {
			for _, it := range items {
				resolved.Servers = append(resolved.Servers, it.(*resource.Server))
			}
		})
		ok = ok && fitSubset(node, resource.ClassKeyboard, itemsToInterface(tmpl.Keyboards), tentative, claimed, func(items []resource.Item) {
			for _, it := range items {
				resolved.Keyboards = append(resolved.Keyboards, it.(*resource.Keyboard))
			}
		})
		ok = ok && fitSubset(node, resource.ClassMouse, itemsToInterface(tmpl.Mice), tentative, claimed, func(items []resource.Item) {
			for _, it := range items {
				resolved.Mice = append(resolved.Mice, it.(*resource.Mouse))
			}
		})
		if ok {
			return []string{node.Name}, resource.TreeNode{Aggregate: resolved}, nil
		}
	}
	return nil, resource.TreeNode{}, fmt.Errorf("no node satisfies the VizNode request")
}

// fitSubset tries to satisfy every template in want against node's free
// pool of its class, recording claims so other classes on the same
// fitVizNode attempt don't double-book, and reports success via onOK.
func fitSubset(node *Node, class resource.Class, want []resource.Item, tentative, claimed map[resourceKey]bool, onOK func([]resource.Item)) bool {
	if len(want) == 0 {
		return true
	}
	pool := node.itemsOfClass(class)
	resolved := make([]resource.Item, 0, len(want))
	for _, w := range ascendingDOF(want) {
		picked := pickFreeShared(w, pool, tentative, claimed)
		if picked == nil {
			return false
		}
		claimed[keyOf(picked)] = true
		resolved = append(resolved, picked.Clone())
	}
	onOK(resolved)
	return true
}

func itemsToInterface[T resource.Item](items []T) []resource.Item {
	out := make([]resource.Item, len(items))
	for i, it := range items {
		out[i] = it
	}
	return out
}

// fitResourceGroup fits each of a group's inner co-location lists
// independently (possibly landing on different nodes), and reassembles
// the group with its Resources replaced by the resolved lists.
func (a *Allocator) fitResourceGroup(tmpl *resource.ResourceGroup, searchNodes []string, tentative map[resourceKey]bool) ([]string, resource.TreeNode, error) {
	resolved := &resource.ResourceGroup{Name: tmpl.Name, Handler: tmpl.Handler, HandlerParams: tmpl.HandlerParams}
	var allNodes []string

	for _, list := range tmpl.Resources {
		nodes, bound, err := a.fitList(list, searchNodes, tentative)
		if err != nil {
			return nil, resource.TreeNode{}, fmt.Errorf("resource group %q: %w", tmpl.Name, err)
		}
		resolved.Resources = append(resolved.Resources, bound.List)
		allNodes = append(allNodes, nodes...)
		for _, it := range bound.List {
			tentative[keyOf(it)] = true
		}
	}
	return allNodes, resource.TreeNode{Aggregate: resolved}, nil
}

// pickFree returns the first free item in pool matching tmpl, in
// pool order (the node's configured inventory order), preferring a scanout-capable
// GPU when the template asks for useScanOut=true.
func (a *Allocator) pickFree(tmpl resource.Item, pool []resource.Item, tentative map[resourceKey]bool) resource.Item {
	return pickFreeShared(tmpl, pool, tentative, nil)
}

func (a *Allocator) pickFreeExcluding(tmpl resource.Item, pool []resource.Item, tentative, claimed map[resourceKey]bool) resource.Item {
	return pickFreeShared(tmpl, pool, tentative, claimed)
}

func pickFreeShared(tmpl resource.Item, pool []resource.Item, tentative, claimed map[resourceKey]bool) resource.Item {
	candidates := make([]resource.Item, 0, len(pool))
	for _, c := range pool {
		k := keyOf(c)
		if claimed != nil && claimed[k] {
			continue
		}
		if tentative[k] {
			continue
		}
		if !tmpl.Match(c) {
			continue
		}
		candidates = append(candidates, c)
	}
	if len(candidates) == 0 {
		return nil
	}

	if gpuTmpl, ok := tmpl.(*resource.GPU); ok {
		wantsScanOut := gpuTmpl.UseScanOut != nil && *gpuTmpl.UseScanOut
		if wantsScanOut {
			for _, c := range candidates {
				if g, ok := c.(*resource.GPU); ok && len(g.ScanOutCaps) > 0 {
					return g
				}
			}
		}
	}
	return candidates[0]
}
