// Package protocol implements the XML request/response document shapes
// carried inside each internal/wire frame. It owns only
// the document grammar (the <ssm>...</ssm> wrapper and its command
// children); framing, auth, and dispatch live in internal/wire,
// internal/auth, and internal/dispatcher respectively.
package protocol

import (
	"bytes"
	"encoding/xml"
	"io"

	"github.com/vizstack/broker/internal/vserr"
)

// Command names a recognized <ssm> child element.
type Command string

const (
	CmdClientHello           Command = "client"
	CmdAllocate              Command = "allocate"
	CmdAttach                Command = "attach"
	CmdDeallocate            Command = "deallocate"
	CmdQueryResource         Command = "query_resource"
	CmdQueryAllocation       Command = "query_allocation"
	CmdGetTemplates          Command = "get_templates"
	CmdGetServerConfig       Command = "get_serverconfig"
	CmdUpdateServerConfig    Command = "update_serverconfig"
	CmdWaitXState            Command = "wait_x_state"
	CmdStopXServer           Command = "stop_x_server"
	CmdRefreshResourceGroups Command = "refresh_resource_groups"
)

// Request is a decoded <ssm> document. Exactly one of the typed fields
// below is populated, selected by Command.
type Request struct {
	Command Command

	Hello              *ClientHello
	Allocate           *AllocateRequest
	Attach             *AllocIDRequest
	Deallocate         *AllocIDRequest
	QueryResource      *QueryResourceRequest
	QueryAllocation    *QueryAllocationRequest
	GetTemplates       *GetTemplatesRequest
	GetServerConfig    *GetServerConfigRequest
	UpdateServerConfig *UpdateServerConfigRequest
	WaitXState         *WaitXStateRequest
	StopXServer        *StopXServerRequest
}

// Decode parses one frame payload into a Request. A malformed document
// (unknown root, unknown command, truncated XML) is a *vserr.Error with
// code BadProtocol: the caller should fail the connection rather than
// retry.
func Decode(payload []byte) (*Request, error) {
	dec := xml.NewDecoder(bytes.NewReader(payload))

	root, err := nextStart(dec)
	if err != nil {
		return nil, vserr.Newf(vserr.BadProtocol, "protocol: %v", err)
	}
	if root.Name.Local != "ssm" {
		return nil, vserr.Newf(vserr.BadProtocol, "protocol: expected <ssm> root, got <%s>", root.Name.Local)
	}

	cmdStart, err := nextStart(dec)
	if err != nil {
		return nil, vserr.Newf(vserr.BadProtocol, "protocol: %v", err)
	}

	req := &Request{Command: Command(cmdStart.Name.Local)}
	switch req.Command {
	case CmdClientHello:
		hello, err := decodeClientHello(dec, cmdStart)
		if err != nil {
			return nil, err
		}
		req.Hello = hello
	case CmdAllocate:
		a, err := decodeAllocateRequest(dec, cmdStart)
		if err != nil {
			return nil, err
		}
		req.Allocate = a
	case CmdAttach:
		v, err := decodeAllocIDRequest(dec, cmdStart)
		if err != nil {
			return nil, err
		}
		req.Attach = v
	case CmdDeallocate:
		v, err := decodeAllocIDRequest(dec, cmdStart)
		if err != nil {
			return nil, err
		}
		req.Deallocate = v
	case CmdQueryResource:
		v, err := decodeQueryResourceRequest(dec, cmdStart)
		if err != nil {
			return nil, err
		}
		req.QueryResource = v
	case CmdQueryAllocation:
		v, err := decodeQueryAllocationRequest(dec, cmdStart)
		if err != nil {
			return nil, err
		}
		req.QueryAllocation = v
	case CmdGetTemplates:
		v, err := decodeGetTemplatesRequest(dec, cmdStart)
		if err != nil {
			return nil, err
		}
		req.GetTemplates = v
	case CmdGetServerConfig:
		v, err := decodeGetServerConfigRequest(dec, cmdStart)
		if err != nil {
			return nil, err
		}
		req.GetServerConfig = v
	case CmdUpdateServerConfig:
		v, err := decodeUpdateServerConfigRequest(dec, cmdStart)
		if err != nil {
			return nil, err
		}
		req.UpdateServerConfig = v
	case CmdWaitXState:
		v, err := decodeWaitXStateRequest(dec, cmdStart)
		if err != nil {
			return nil, err
		}
		req.WaitXState = v
	case CmdStopXServer:
		v, err := decodeStopXServerRequest(dec, cmdStart)
		if err != nil {
			return nil, err
		}
		req.StopXServer = v
	case CmdRefreshResourceGroups:
		if err := dec.Skip(); err != nil {
			return nil, vserr.Newf(vserr.BadProtocol, "protocol: refresh_resource_groups: %v", err)
		}
	default:
		_ = dec.Skip()
		return nil, vserr.Newf(vserr.BadProtocol, "protocol: unrecognized command <%s>", cmdStart.Name.Local)
	}
	return req, nil
}

// nextStart advances past any CharData/comment tokens to the next start
// element, or returns the decoder's error (io.EOF on a well-formed empty
// document, which callers treat as malformed since every command expects
// a body).
func nextStart(dec *xml.Decoder) (xml.StartElement, error) {
	for {
		tok, err := dec.Token()
		if err != nil {
			if err == io.EOF {
				return xml.StartElement{}, io.ErrUnexpectedEOF
			}
			return xml.StartElement{}, err
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se, nil
		}
	}
}

// ClientHello is the first message a connection must send.
type ClientHello struct {
	CleanupOnDisconnect bool
}

func decodeClientHello(dec *xml.Decoder, start xml.StartElement) (*ClientHello, error) {
	var aux struct {
		CleanupOnDisconnect boolText `xml:"cleanupOnDisconnect"`
	}
	if err := dec.DecodeElement(&aux, &start); err != nil {
		return nil, vserr.Newf(vserr.BadProtocol, "protocol: client hello: %v", err)
	}
	return &ClientHello{CleanupOnDisconnect: bool(aux.CleanupOnDisconnect)}, nil
}

// boolText decodes the protocol's "0"/"1" boolean element convention.
type boolText bool

func (b *boolText) UnmarshalText(text []byte) error {
	switch string(text) {
	case "1", "true":
		*b = true
	case "0", "false", "":
		*b = false
	default:
		return vserr.Newf(vserr.IncorrectValue, "expected 0 or 1, got %q", text)
	}
	return nil
}

func (b boolText) MarshalText() ([]byte, error) {
	if b {
		return []byte("1"), nil
	}
	return []byte("0"), nil
}
