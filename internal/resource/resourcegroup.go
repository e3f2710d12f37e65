package resource

import "encoding/xml"

// ResourceGroup is a named aggregate of resources plus an optional handler
// tag that shapes the group post-allocation. The only defined handler is
// "tiled_display".
type ResourceGroup struct {
	Name    string
	Handler string

	// HandlerParams is a declarative key/value document, never
	// evaluated as code.
	HandlerParams map[string]string

	// Resources is the canonical list-of-lists of resource templates for
	// this group, taken from the resource-group catalog. Nil when the
	// group is referenced by name only and must be expanded by the
	// allocator's Normalize step.
	Resources [][]Item
}

func (r *ResourceGroup) ResClass() Class  { return ClassResourceGroup }
func (r *ResourceGroup) GetIndex() *int   { return nil }
func (r *ResourceGroup) SetIndex(int)     {}
func (r *ResourceGroup) GetHost() string  { return "" }
func (r *ResourceGroup) SetHost(string)   {}
func (r *ResourceGroup) DOF() int         { return 0 }
func (r *ResourceGroup) Resolved() bool   { return len(r.Resources) > 0 }
func (r *ResourceGroup) aggregate()       {}

// Match overrides to match on name and handler only.
func (r *ResourceGroup) Match(ci Item) bool {
	c, ok := ci.(*ResourceGroup)
	if !ok {
		return false
	}
	if r.Name != "" && r.Name != c.Name {
		return false
	}
	if r.Handler != "" && r.Handler != c.Handler {
		return false
	}
	return true
}

func (r *ResourceGroup) Clone() Item {
	cp := &ResourceGroup{Name: r.Name, Handler: r.Handler}
	if r.HandlerParams != nil {
		cp.HandlerParams = make(map[string]string, len(r.HandlerParams))
		for k, v := range r.HandlerParams {
			cp.HandlerParams[k] = v
		}
	}
	for _, list := range r.Resources {
		var clonedList []Item
		for _, it := range list {
			clonedList = append(clonedList, it.Clone())
		}
		cp.Resources = append(cp.Resources, clonedList)
	}
	return cp
}

// --- XML wire shape ---
//
// A resourceGroup element carries name/handler attributes, flattened
// handlerParam key/value elements (never evaluated as code), and zero or
// more list elements, each holding the co-located resource templates for
// one row of Resources.

type xmlHandlerParam struct {
	Key   string `xml:"key,attr"`
	Value string `xml:",chardata"`
}

// MarshalXML implements xml.Marshaler for the map- and interface-valued
// ResourceGroup.
func (r *ResourceGroup) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Name = xml.Name{Local: "resourceGroup"}
	start.Attr = nil
	if r.Name != "" {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "name"}, Value: r.Name})
	}
	if r.Handler != "" {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "handler"}, Value: r.Handler})
	}
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	for k, v := range r.HandlerParams {
		if err := e.Encode(xmlHandlerParam{Key: k, Value: v}); err != nil {
			return err
		}
	}
	for _, list := range r.Resources {
		listStart := xml.StartElement{Name: xml.Name{Local: "list"}}
		if err := e.EncodeToken(listStart); err != nil {
			return err
		}
		for _, item := range list {
			if err := EncodeItem(e, item); err != nil {
				return err
			}
		}
		if err := e.EncodeToken(listStart.End()); err != nil {
			return err
		}
	}
	return e.EncodeToken(start.End())
}

// UnmarshalXML implements xml.Unmarshaler for the map- and
// interface-valued ResourceGroup. It walks tokens directly rather than
// decoding into an auxiliary struct because Resources holds polymorphic
// Item values that only DecodeItem knows how to resolve.
func (r *ResourceGroup) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for _, attr := range start.Attr {
		switch attr.Name.Local {
		case "name":
			r.Name = attr.Value
		case "handler":
			r.Handler = attr.Value
		}
	}

	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "handlerParam":
				var p xmlHandlerParam
				if err := d.DecodeElement(&p, &t); err != nil {
					return err
				}
				if r.HandlerParams == nil {
					r.HandlerParams = make(map[string]string)
				}
				r.HandlerParams[p.Key] = p.Value
			case "list":
				list, err := decodeItemList(d, t)
				if err != nil {
					return err
				}
				r.Resources = append(r.Resources, list)
			default:
				item, err := DecodeItem(d, t)
				if err != nil {
					return err
				}
				r.Resources = append(r.Resources, []Item{item})
			}
		case xml.EndElement:
			return nil
		}
	}
}

// decodeItemList reads the children of a <list> element as a sequence
// of co-located resource items.
func decodeItemList(d *xml.Decoder, start xml.StartElement) ([]Item, error) {
	var items []Item
	for {
		tok, err := d.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			item, err := DecodeItem(d, t)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		case xml.EndElement:
			return items, nil
		}
	}
}

// TiledDisplayParams is the parsed, validated form of HandlerParams for
// the "tiled_display" handler.
type TiledDisplayParams struct {
	NumBlocks          [2]int // e.g. [2,1] for a 2x1 tile grid
	BlockType          string // "gpu" | "quadroplex"
	BlockDisplayLayout [2]int
	DisplayDevice      string
	DisplayMode        string
	TileResolution     [2]int
	Stereo             bool
	Rotate             Rotation
	OutputRemap        map[int]int
	Xinerama           bool
}
