package allocator

import (
	"sort"

	"github.com/vizstack/broker/internal/resource"
)

// rankedItem pairs a request item with its original position, so that
// ties in the ranking fall back to input order, and bound results can
// be written back to the right slot.
type rankedItem struct {
	item  resource.TreeNode
	index int
}

// rank orders request items by descending constraint strength: lowest
// total DOF first, ties broken by item-count descending, then input
// order.
func (a *Allocator) rank(items []resource.TreeNode) []rankedItem {
	ranked := make([]rankedItem, len(items))
	for i, it := range items {
		ranked[i] = rankedItem{item: it, index: i}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		dofI, countI := rankMetrics(ranked[i].item)
		dofJ, countJ := rankMetrics(ranked[j].item)
		if dofI != dofJ {
			return dofI < dofJ
		}
		if countI != countJ {
			return countI > countJ
		}
		return ranked[i].index < ranked[j].index
	})
	return ranked
}

// rankMetrics returns total DOF and sub-resource count for item, using
// TreeNode.Flatten so the same logic applies to single, list, and
// aggregate items uniformly.
func rankMetrics(it resource.TreeNode) (totalDOF, count int) {
	sub := it.Flatten()
	count = len(sub)
	for _, r := range sub {
		totalDOF += r.DOF()
	}
	return
}

// ascendingDOF returns items sorted by ascending DOF, so fully-specified
// sub-resources within a list are satisfied first.
func ascendingDOF(items []resource.Item) []resource.Item {
	out := append([]resource.Item(nil), items...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].DOF() < out[j].DOF() })
	return out
}
