package vsconfig

import (
	"encoding/xml"
	"os"

	"github.com/vizstack/broker/internal/resource"
	"github.com/vizstack/broker/internal/vserr"
)

type rgConfigDoc struct {
	XMLName xml.Name                  `xml:"resourcegroupconfig"`
	Groups  []resource.ResourceGroup `xml:"resourceGroup"`
}

// LoadResourceGroups parses the resource-group configuration file into a
// catalog keyed by group name, mirroring vsutil.py's loadResourceGroups.
// Per-handler semantic validation (e.g. tiled_display's geometry
// constraints) is left to internal/rghandler, which is invoked against
// each loaded group's HandlerParams by the caller once the handler
// registry is wired up; this keeps vsconfig ignorant of any specific
// handler's parameter shape, matching the allocator's own opaque
// treatment of HandlerParams.
func LoadResourceGroups(path string) (map[string]*resource.ResourceGroup, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, vserr.Newf(vserr.BadConfiguration, "read resource group config %s: %v", path, err)
	}

	var doc rgConfigDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, vserr.Newf(vserr.BadConfiguration, "parse resource group config %s: %v", path, err)
	}

	catalog := make(map[string]*resource.ResourceGroup, len(doc.Groups))
	for i := range doc.Groups {
		rg := &doc.Groups[i]
		if rg.Name == "" {
			return nil, vserr.New(vserr.BadConfiguration, "resource group entry missing name attribute")
		}
		if _, exists := catalog[rg.Name]; exists {
			return nil, vserr.Newf(vserr.BadConfiguration, "resource group %q defined more than once", rg.Name)
		}
		catalog[rg.Name] = rg
	}
	return catalog, nil
}
