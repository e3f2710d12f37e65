package allocator

import (
	"github.com/vizstack/broker/internal/resource"
	"github.com/vizstack/broker/internal/vserr"
)

// normalize expands named ResourceGroup requests whose Resources are
// unspecified into their canonical template lists from the catalog, and
// rejects list items that smuggle an aggregate (ResourceGroup or
// VizNode) in among plain resources.
func (a *Allocator) normalize(items []resource.TreeNode) ([]resource.TreeNode, error) {
	out := make([]resource.TreeNode, len(items))
	for i, it := range items {
		if it.List != nil {
			for _, sub := range it.List {
				switch sub.ResClass() {
				case resource.ClassResourceGroup, resource.ClassVizNode:
					return nil, vserr.Newf(vserr.UserError, "request item %d: aggregates cannot appear inside a co-location list", i)
				}
			}
		}
		if rg, ok := it.Aggregate.(*resource.ResourceGroup); ok && len(rg.Resources) == 0 {
			tmpl, ok := a.inv.rgCatalog[rg.Name]
			if !ok {
				return nil, vserr.Newf(vserr.BadResource, "request item %d: no resource group named %q", i, rg.Name)
			}
			expanded := tmpl.Clone().(*resource.ResourceGroup)
			expanded.Handler = rg.Handler
			if rg.HandlerParams != nil {
				expanded.HandlerParams = rg.HandlerParams
			}
			it.Aggregate = expanded
		}
		out[i] = it
	}
	return out, nil
}
