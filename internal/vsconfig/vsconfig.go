// Package vsconfig loads the VizStack domain inventory — master, node,
// and resource-group XML configuration files plus the shipped/override
// template catalog — into the resource model defined by internal/resource.
// This is the "domain inventory configuration" layer distinguished from
// internal/config's ambient daemon settings: masterConfig names the
// node and resource-group documents, and GPU/display/keyboard/mouse
// templates layer a local override directory over the shipped one.
package vsconfig

import (
	"github.com/vizstack/broker/internal/allocator"
	"github.com/vizstack/broker/internal/resource"
)

// Default filesystem locations.
const (
	DefaultMasterConfigFile = "/etc/vizstack/masterConfig.xml"
	DefaultNodeConfigFile   = "/etc/vizstack/nodeConfig.xml"
	DefaultRGConfigFile     = "/etc/vizstack/resourceGroups.xml"

	ShippedTemplateRoot  = "/opt/vizstack/share/templates"
	OverrideTemplateRoot = "/etc/vizstack/templates"
)

// TemplateCatalog is the merged (shipped, then locally overridden) set of
// hardware templates used to validate and enrich resources as they are
// loaded and allocated.
type TemplateCatalog struct {
	GPUs           map[string]*resource.GPU
	DisplayDevices map[string]*resource.DisplayDevice
	Keyboards      map[string]*resource.Keyboard
	Mice           map[string]*resource.Mouse
}

// Query returns every template in the catalog matching tmpl (or every
// template if tmpl is nil), for get_templates.
func (c TemplateCatalog) Query(tmpl resource.Item) []resource.Item {
	var out []resource.Item
	for _, g := range c.GPUs {
		if tmpl == nil || tmpl.Match(g) {
			out = append(out, g)
		}
	}
	for _, d := range c.DisplayDevices {
		if tmpl == nil || tmpl.Match(d) {
			out = append(out, d)
		}
	}
	for _, k := range c.Keyboards {
		if tmpl == nil || tmpl.Match(k) {
			out = append(out, k)
		}
	}
	for _, m := range c.Mice {
		if tmpl == nil || tmpl.Match(m) {
			out = append(out, m)
		}
	}
	return out
}

// Inventory is everything loaded at daemon start: the node inventory (as
// allocator.Node, ready to hand to allocator.NewInventory), the
// resource-group catalog, and the template catalog used to validate both.
type Inventory struct {
	Nodes     []*allocator.Node
	VizNodes  []*resource.VizNode
	RGCatalog map[string]*resource.ResourceGroup
	Templates TemplateCatalog
}

// nodeToAllocatorNode converts a fully-loaded VizNode into the flat
// per-class shape allocator.Inventory expects.
func nodeToAllocatorNode(n *resource.VizNode) *allocator.Node {
	return &allocator.Node{
		Name:      n.Host,
		GPUs:      n.GPUs,
		SLIs:      n.SLIs,
		Servers:   n.Servers,
		Keyboards: n.Keyboards,
		Mice:      n.Mice,
	}
}

// Load reads the master config at masterConfigPath, then the node and
// resource-group documents it names (falling back to the default
// locations when the master config leaves them blank), plus
// the shipped/override template catalog, and returns everything the
// broker needs to build its inventory.
func Load(masterConfigPath string) (*MasterConfig, *Inventory, error) {
	master, err := LoadMasterConfig(masterConfigPath)
	if err != nil {
		return nil, nil, err
	}

	vizNodes, err := LoadNodeConfig(master.NodeConfigFile)
	if err != nil {
		return nil, nil, err
	}

	rgCatalog, err := LoadResourceGroups(master.RGConfigFile)
	if err != nil {
		return nil, nil, err
	}

	templates, err := LoadTemplateCatalog(ShippedTemplateRoot, OverrideTemplateRoot)
	if err != nil {
		return nil, nil, err
	}

	inv := &Inventory{
		Nodes:     AllocatorNodes(vizNodes),
		VizNodes:  vizNodes,
		RGCatalog: rgCatalog,
		Templates: templates,
	}
	return master, inv, nil
}
