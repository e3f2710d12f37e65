package vsconfig

import (
	"encoding/xml"
	"os"

	"github.com/vizstack/broker/internal/allocator"
	"github.com/vizstack/broker/internal/resource"
	"github.com/vizstack/broker/internal/vserr"
)

type nodeConfigDoc struct {
	XMLName xml.Name          `xml:"nodeconfig"`
	Nodes   []resource.VizNode `xml:"node"`
}

// LoadNodeConfig parses the node configuration file into the per-host
// resource inventory.
func LoadNodeConfig(path string) ([]*resource.VizNode, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, vserr.Newf(vserr.BadConfiguration, "read node config %s: %v", path, err)
	}

	var doc nodeConfigDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, vserr.Newf(vserr.BadConfiguration, "parse node config %s: %v", path, err)
	}

	nodes := make([]*resource.VizNode, 0, len(doc.Nodes))
	seen := make(map[string]bool, len(doc.Nodes))
	for i := range doc.Nodes {
		n := &doc.Nodes[i]
		if n.Host == "" {
			return nil, vserr.New(vserr.BadConfiguration, "node config entry missing host attribute")
		}
		if seen[n.Host] {
			return nil, vserr.Newf(vserr.BadConfiguration, "node %q defined more than once", n.Host)
		}
		seen[n.Host] = true
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// AllocatorNodes converts a loaded VizNode list into the allocator's
// per-host inventory shape, preserving file order as the node order
// internal/allocator walks deterministically during Fit.
func AllocatorNodes(nodes []*resource.VizNode) []*allocator.Node {
	out := make([]*allocator.Node, len(nodes))
	for i, n := range nodes {
		out[i] = nodeToAllocatorNode(n)
	}
	return out
}
