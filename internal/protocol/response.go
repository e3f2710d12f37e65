package protocol

import (
	"bytes"
	"encoding/xml"
	"strconv"

	"github.com/vizstack/broker/internal/resource"
	"github.com/vizstack/broker/internal/vserr"
)

// Response is every command's result, before wire encoding. Status is 0
// on success; on failure it carries the vserr.Code numeric value and
// Message is non-empty.
type Response struct {
	Status  int
	Message string

	// At most one of the following is populated, depending on command.
	Allocation   *resource.Allocation   // allocate, attach
	Allocations  []*resource.Allocation // query_allocation with no id
	Resources    []resource.Item        // query_resource, get_templates
	ServerConfig *resource.Server       // get_serverconfig
}

// OK builds a success response carrying no return_value.
func OK() Response { return Response{Status: 0} }

// FromError builds a failure response from err, mapping a *vserr.Error
// to its numeric code and message, or any other error to INTERNAL_ERROR.
func FromError(err error) Response {
	if ve, ok := vserr.As(err); ok {
		return Response{Status: int(ve.Code), Message: ve.Message}
	}
	return Response{Status: int(vserr.InternalError), Message: err.Error()}
}

// Encode renders resp as an <ssm><response>...</response></ssm>
// document.
func Encode(resp Response) ([]byte, error) {
	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)

	root := xml.StartElement{Name: xml.Name{Local: "ssm"}}
	if err := enc.EncodeToken(root); err != nil {
		return nil, err
	}
	respStart := xml.StartElement{Name: xml.Name{Local: "response"}}
	if err := enc.EncodeToken(respStart); err != nil {
		return nil, err
	}

	if err := encodeIntElement(enc, "status", resp.Status); err != nil {
		return nil, err
	}
	if resp.Message != "" {
		if err := encodeTextElement(enc, "message", resp.Message); err != nil {
			return nil, err
		}
	}

	if resp.Status == 0 {
		if err := encodeReturnValue(enc, resp); err != nil {
			return nil, err
		}
	}

	if err := enc.EncodeToken(respStart.End()); err != nil {
		return nil, err
	}
	if err := enc.EncodeToken(root.End()); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeReturnValue(enc *xml.Encoder, resp Response) error {
	switch {
	case resp.Allocation != nil:
		rv := xml.StartElement{Name: xml.Name{Local: "return_value"}}
		if err := enc.EncodeToken(rv); err != nil {
			return err
		}
		if err := encodeAllocation(enc, resp.Allocation); err != nil {
			return err
		}
		return enc.EncodeToken(rv.End())
	case resp.Allocations != nil:
		rv := xml.StartElement{Name: xml.Name{Local: "return_value"}}
		if err := enc.EncodeToken(rv); err != nil {
			return err
		}
		for _, a := range resp.Allocations {
			if err := encodeAllocation(enc, a); err != nil {
				return err
			}
		}
		return enc.EncodeToken(rv.End())
	case resp.Resources != nil:
		rv := xml.StartElement{Name: xml.Name{Local: "return_value"}}
		if err := enc.EncodeToken(rv); err != nil {
			return err
		}
		for _, r := range resp.Resources {
			if err := resource.EncodeItem(enc, r); err != nil {
				return err
			}
		}
		return enc.EncodeToken(rv.End())
	case resp.ServerConfig != nil:
		rv := xml.StartElement{Name: xml.Name{Local: "return_value"}}
		if err := enc.EncodeToken(rv); err != nil {
			return err
		}
		if err := resource.EncodeItem(enc, resp.ServerConfig); err != nil {
			return err
		}
		return enc.EncodeToken(rv.End())
	default:
		return nil
	}
}

func encodeAllocation(enc *xml.Encoder, alloc *resource.Allocation) error {
	start := xml.StartElement{Name: xml.Name{Local: "allocation"}}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	if err := encodeIntElement(enc, "allocId", alloc.ID); err != nil {
		return err
	}
	for _, node := range alloc.Tree {
		if err := resource.EncodeTreeNode(enc, node); err != nil {
			return err
		}
	}
	return enc.EncodeToken(start.End())
}

func encodeIntElement(enc *xml.Encoder, name string, v int) error {
	start := xml.StartElement{Name: xml.Name{Local: name}}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	if err := enc.EncodeToken(xml.CharData(strconv.Itoa(v))); err != nil {
		return err
	}
	return enc.EncodeToken(start.End())
}

func encodeTextElement(enc *xml.Encoder, name, v string) error {
	start := xml.StartElement{Name: xml.Name{Local: name}}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	if err := enc.EncodeToken(xml.CharData(v)); err != nil {
		return err
	}
	return enc.EncodeToken(start.End())
}
