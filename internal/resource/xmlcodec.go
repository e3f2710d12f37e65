package resource

import "encoding/xml"

// DecodeItem reads one normative resource element (gpu, sli,
// serverconfig, keyboard, mouse, displayconfig, node, resourceGroup) and
// returns the typed Item it decodes to. It is the shared entry point
// every resdesc/list/aggregate decoder in internal/protocol uses, so
// the wire-level element names only have to be listed once.
func DecodeItem(d *xml.Decoder, start xml.StartElement) (Item, error) {
	switch start.Name.Local {
	case "gpu":
		var g GPU
		if err := d.DecodeElement(&g, &start); err != nil {
			return nil, err
		}
		return &g, nil
	case "sli":
		var s SLI
		if err := d.DecodeElement(&s, &start); err != nil {
			return nil, err
		}
		return &s, nil
	case "serverconfig":
		var s Server
		if err := d.DecodeElement(&s, &start); err != nil {
			return nil, err
		}
		return &s, nil
	case "keyboard":
		var k Keyboard
		if err := d.DecodeElement(&k, &start); err != nil {
			return nil, err
		}
		return &k, nil
	case "mouse":
		var m Mouse
		if err := d.DecodeElement(&m, &start); err != nil {
			return nil, err
		}
		return &m, nil
	case "displayconfig":
		var dd DisplayDevice
		if err := d.DecodeElement(&dd, &start); err != nil {
			return nil, err
		}
		return &dd, nil
	case "node":
		var n VizNode
		if err := d.DecodeElement(&n, &start); err != nil {
			return nil, err
		}
		return &n, nil
	case "resourceGroup":
		var rg ResourceGroup
		if err := d.DecodeElement(&rg, &start); err != nil {
			return nil, err
		}
		return &rg, nil
	default:
		if err := d.Skip(); err != nil {
			return nil, err
		}
		return nil, errInvalid("unrecognized resource element <" + start.Name.Local + ">")
	}
}

// DecodeTreeNode reads one resdesc element — a single resource, a <list>
// of co-located resources, or an aggregate (node/resourceGroup) — and
// returns the TreeNode it decodes to. Shared by internal/protocol for
// request item and response return_value decoding.
func DecodeTreeNode(d *xml.Decoder, start xml.StartElement) (TreeNode, error) {
	switch start.Name.Local {
	case "list":
		items, err := decodeItemList(d, start)
		if err != nil {
			return TreeNode{}, err
		}
		return TreeNode{List: items}, nil
	case "node", "resourceGroup":
		item, err := DecodeItem(d, start)
		if err != nil {
			return TreeNode{}, err
		}
		return TreeNode{Aggregate: item}, nil
	default:
		item, err := DecodeItem(d, start)
		if err != nil {
			return TreeNode{}, err
		}
		return TreeNode{Single: item}, nil
	}
}

// EncodeTreeNode writes node as its resdesc wire shape, the inverse of
// DecodeTreeNode.
func EncodeTreeNode(e *xml.Encoder, node TreeNode) error {
	switch {
	case node.List != nil:
		start := xml.StartElement{Name: xml.Name{Local: "list"}}
		if err := e.EncodeToken(start); err != nil {
			return err
		}
		for _, it := range node.List {
			if err := EncodeItem(e, it); err != nil {
				return err
			}
		}
		return e.EncodeToken(start.End())
	case node.Aggregate != nil:
		return EncodeItem(e, node.Aggregate)
	case node.Single != nil:
		return EncodeItem(e, node.Single)
	default:
		return nil
	}
}

// EncodeItem writes item as its normative wire element. Types that don't
// implement xml.Marshaler (GPU, SLI, Keyboard, Mouse, DisplayDevice) rely
// on their struct tags and the XMLName field already set in their zero
// value; Server, VizNode, and ResourceGroup implement MarshalXML
// themselves because they hold map- or slice-of-interface-valued fields.
func EncodeItem(e *xml.Encoder, item Item) error {
	switch v := item.(type) {
	case *GPU:
		return e.Encode(v)
	case *SLI:
		return e.Encode(v)
	case *Server:
		return e.Encode(v)
	case *Keyboard:
		return e.Encode(v)
	case *Mouse:
		return e.Encode(v)
	case *DisplayDevice:
		return e.Encode(v)
	case *VizNode:
		return e.Encode(v)
	case *ResourceGroup:
		return e.Encode(v)
	default:
		return errInvalid("unencodable resource item")
	}
}
