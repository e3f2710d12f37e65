package protocol

import (
	"encoding/xml"

	"github.com/vizstack/broker/internal/resource"
	"github.com/vizstack/broker/internal/vserr"
)

// AllocateRequest is the decoded body of <ssm><allocate>...</allocate></ssm>:
// one or more resdesc items plus an optional node restriction.
type AllocateRequest struct {
	Items       []resource.TreeNode
	SearchNodes []string
}

func decodeAllocateRequest(dec *xml.Decoder, start xml.StartElement) (*AllocateRequest, error) {
	req := &AllocateRequest{}
	if err := walkChildren(dec, start, func(d *xml.Decoder, child xml.StartElement) error {
		if child.Name.Local == "search_node" {
			var name string
			if err := d.DecodeElement(&name, &child); err != nil {
				return err
			}
			req.SearchNodes = append(req.SearchNodes, name)
			return nil
		}
		node, err := resource.DecodeTreeNode(d, child)
		if err != nil {
			return err
		}
		req.Items = append(req.Items, node)
		return nil
	}); err != nil {
		return nil, vserr.Newf(vserr.BadProtocol, "protocol: allocate: %v", err)
	}
	if len(req.Items) == 0 {
		return nil, vserr.New(vserr.IncorrectValue, "allocate requires at least one resdesc")
	}
	return req, nil
}

// AllocIDRequest is the decoded body of any command whose only content is
// <allocId>N</allocId>: attach and deallocate.
type AllocIDRequest struct {
	AllocID int
}

func decodeAllocIDRequest(dec *xml.Decoder, start xml.StartElement) (*AllocIDRequest, error) {
	var aux struct {
		AllocID int `xml:"allocId"`
	}
	if err := dec.DecodeElement(&aux, &start); err != nil {
		return nil, vserr.Newf(vserr.BadProtocol, "protocol: %s: %v", start.Name.Local, err)
	}
	return &AllocIDRequest{AllocID: aux.AllocID}, nil
}

// QueryResourceRequest carries an optional resource template to match
// against the live inventory; a nil Template means "every resource".
type QueryResourceRequest struct {
	Template resource.Item
}

func decodeQueryResourceRequest(dec *xml.Decoder, start xml.StartElement) (*QueryResourceRequest, error) {
	tmpl, err := decodeOptionalItem(dec, start)
	if err != nil {
		return nil, vserr.Newf(vserr.BadProtocol, "protocol: query_resource: %v", err)
	}
	return &QueryResourceRequest{Template: tmpl}, nil
}

// QueryAllocationRequest carries an optional allocation id; a nil AllocID
// means "every allocation owned by the caller's session".
type QueryAllocationRequest struct {
	AllocID *int
}

func decodeQueryAllocationRequest(dec *xml.Decoder, start xml.StartElement) (*QueryAllocationRequest, error) {
	var id *int
	if err := walkChildren(dec, start, func(d *xml.Decoder, child xml.StartElement) error {
		if child.Name.Local != "allocId" {
			return d.Skip()
		}
		var n int
		if err := d.DecodeElement(&n, &child); err != nil {
			return err
		}
		id = &n
		return nil
	}); err != nil {
		return nil, vserr.Newf(vserr.BadProtocol, "protocol: query_allocation: %v", err)
	}
	return &QueryAllocationRequest{AllocID: id}, nil
}

// GetTemplatesRequest carries an optional template restricting which
// configured resource templates are returned.
type GetTemplatesRequest struct {
	Template resource.Item
}

func decodeGetTemplatesRequest(dec *xml.Decoder, start xml.StartElement) (*GetTemplatesRequest, error) {
	tmpl, err := decodeOptionalItem(dec, start)
	if err != nil {
		return nil, vserr.Newf(vserr.BadProtocol, "protocol: get_templates: %v", err)
	}
	return &GetTemplatesRequest{Template: tmpl}, nil
}

// GetServerConfigRequest carries the serverconfig template (display
// number required) whose current configuration should be returned.
type GetServerConfigRequest struct {
	Server *resource.Server
}

func decodeGetServerConfigRequest(dec *xml.Decoder, start xml.StartElement) (*GetServerConfigRequest, error) {
	var server *resource.Server
	if err := walkChildren(dec, start, func(d *xml.Decoder, child xml.StartElement) error {
		if child.Name.Local != "serverconfig" {
			return d.Skip()
		}
		var s resource.Server
		if err := d.DecodeElement(&s, &child); err != nil {
			return err
		}
		server = &s
		return nil
	}); err != nil {
		return nil, vserr.Newf(vserr.BadProtocol, "protocol: get_serverconfig: %v", err)
	}
	if server == nil {
		return nil, vserr.New(vserr.IncorrectValue, "get_serverconfig requires a serverconfig element")
	}
	return &GetServerConfigRequest{Server: server}, nil
}

// UpdateServerConfigRequest replaces the runtime configuration of one or
// more servers within an existing allocation.
type UpdateServerConfigRequest struct {
	AllocID int
	Servers []*resource.Server
}

func decodeUpdateServerConfigRequest(dec *xml.Decoder, start xml.StartElement) (*UpdateServerConfigRequest, error) {
	req := &UpdateServerConfigRequest{}
	if err := walkChildren(dec, start, func(d *xml.Decoder, child xml.StartElement) error {
		switch child.Name.Local {
		case "allocId":
			return d.DecodeElement(&req.AllocID, &child)
		case "serverconfig":
			var s resource.Server
			if err := d.DecodeElement(&s, &child); err != nil {
				return err
			}
			req.Servers = append(req.Servers, &s)
			return nil
		default:
			return d.Skip()
		}
	}); err != nil {
		return nil, vserr.Newf(vserr.BadProtocol, "protocol: update_serverconfig: %v", err)
	}
	if len(req.Servers) == 0 {
		return nil, vserr.New(vserr.IncorrectValue, "update_serverconfig requires at least one serverconfig")
	}
	return req, nil
}

// WaitXStateRequest polls server readiness.
type WaitXStateRequest struct {
	AllocID  int
	NewState int // 0 = down, 1 = up
	Timeout  int // seconds
	Servers  []*resource.Server
}

func decodeWaitXStateRequest(dec *xml.Decoder, start xml.StartElement) (*WaitXStateRequest, error) {
	req := &WaitXStateRequest{}
	if err := walkChildren(dec, start, func(d *xml.Decoder, child xml.StartElement) error {
		switch child.Name.Local {
		case "allocId":
			return d.DecodeElement(&req.AllocID, &child)
		case "newState":
			return d.DecodeElement(&req.NewState, &child)
		case "timeout":
			return d.DecodeElement(&req.Timeout, &child)
		case "serverconfig":
			var s resource.Server
			if err := d.DecodeElement(&s, &child); err != nil {
				return err
			}
			req.Servers = append(req.Servers, &s)
			return nil
		default:
			return d.Skip()
		}
	}); err != nil {
		return nil, vserr.Newf(vserr.BadProtocol, "protocol: wait_x_state: %v", err)
	}
	if req.NewState != 0 && req.NewState != 1 {
		return nil, vserr.Newf(vserr.IncorrectValue, "wait_x_state: newState must be 0 or 1, got %d", req.NewState)
	}
	return req, nil
}

// StopXServerRequest kills one or more running servers within an
// allocation; an empty Servers list means every server in the allocation.
type StopXServerRequest struct {
	AllocID int
	Servers []*resource.Server
}

func decodeStopXServerRequest(dec *xml.Decoder, start xml.StartElement) (*StopXServerRequest, error) {
	req := &StopXServerRequest{}
	if err := walkChildren(dec, start, func(d *xml.Decoder, child xml.StartElement) error {
		switch child.Name.Local {
		case "allocId":
			return d.DecodeElement(&req.AllocID, &child)
		case "serverconfig":
			var s resource.Server
			if err := d.DecodeElement(&s, &child); err != nil {
				return err
			}
			req.Servers = append(req.Servers, &s)
			return nil
		default:
			return d.Skip()
		}
	}); err != nil {
		return nil, vserr.Newf(vserr.BadProtocol, "protocol: stop_x_server: %v", err)
	}
	return req, nil
}

// decodeOptionalItem reads at most one resource element nested directly
// inside start, returning nil if the command body was empty.
func decodeOptionalItem(dec *xml.Decoder, start xml.StartElement) (resource.Item, error) {
	var item resource.Item
	err := walkChildren(dec, start, func(d *xml.Decoder, child xml.StartElement) error {
		if item != nil {
			return d.Skip()
		}
		it, err := resource.DecodeItem(d, child)
		if err != nil {
			return err
		}
		item = it
		return nil
	})
	return item, err
}

// walkChildren calls fn for each direct child start element of start,
// consuming start's matching end element itself.
func walkChildren(dec *xml.Decoder, start xml.StartElement, fn func(d *xml.Decoder, child xml.StartElement) error) error {
	depth := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if err := fn(dec, t); err != nil {
				return err
			}
			depth--
		case xml.EndElement:
			if depth == 0 {
				return nil
			}
		}
	}
}
