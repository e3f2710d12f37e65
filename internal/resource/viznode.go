package resource

import "encoding/xml"

// Aggregate marks resource types that act as a co-location and handler
// hint rather than a single resource: VizNode and ResourceGroup.
type Aggregate interface {
	Item
	aggregate()
}

// VizNode aggregates all resources of one host plus host-level
// properties.
type VizNode struct {
	Host           string
	RemoteHostname string

	GPUs      []*GPU
	SLIs      []*SLI
	Servers   []*Server
	Keyboards []*Keyboard
	Mice      []*Mouse
}

func (n *VizNode) ResClass() Class  { return ClassVizNode }
func (n *VizNode) GetIndex() *int   { return nil }
func (n *VizNode) SetIndex(int)     {}
func (n *VizNode) GetHost() string  { return n.Host }
func (n *VizNode) SetHost(h string) { n.Host = h }
func (n *VizNode) DOF() int {
	if n.Host == "" {
		return 1
	}
	return 0
}
func (n *VizNode) Resolved() bool { return n.Host != "" }
func (n *VizNode) aggregate()     {}

func (n *VizNode) Match(ci Item) bool {
	c, ok := ci.(*VizNode)
	if !ok {
		return false
	}
	return matchStr(n.Host, c.Host)
}

func (n *VizNode) Clone() Item {
	cp := &VizNode{Host: n.Host, RemoteHostname: n.RemoteHostname}
	for _, g := range n.GPUs {
		cp.GPUs = append(cp.GPUs, g.Clone().(*GPU))
	}
	for _, s := range n.SLIs {
		cp.SLIs = append(cp.SLIs, s.Clone().(*SLI))
	}
	for _, s := range n.Servers {
		cp.Servers = append(cp.Servers, s.Clone().(*Server))
	}
	for _, k := range n.Keyboards {
		cp.Keyboards = append(cp.Keyboards, k.Clone().(*Keyboard))
	}
	for _, m := range n.Mice {
		cp.Mice = append(cp.Mice, m.Clone().(*Mouse))
	}
	return cp
}

// --- XML wire shape ---
//
// A node element groups its child resources by their own element names;
// each child's own MarshalXML/struct tags handle its content, so node
// only needs to expose the right field order.

type xmlNode struct {
	XMLName xml.Name `xml:"node"`

	Host           string `xml:"host,attr,omitempty"`
	RemoteHostname string `xml:"remoteHostname,attr,omitempty"`

	GPUs      []*GPU      `xml:"gpu,omitempty"`
	SLIs      []*SLI      `xml:"sli,omitempty"`
	Servers   []*Server   `xml:"serverconfig,omitempty"`
	Keyboards []*Keyboard `xml:"keyboard,omitempty"`
	Mice      []*Mouse    `xml:"mouse,omitempty"`
}

// MarshalXML implements xml.Marshaler so field order stays fixed
// regardless of how VizNode's fields are declared.
func (n *VizNode) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	aux := xmlNode{
		Host:           n.Host,
		RemoteHostname: n.RemoteHostname,
		GPUs:           n.GPUs,
		SLIs:           n.SLIs,
		Servers:        n.Servers,
		Keyboards:      n.Keyboards,
		Mice:           n.Mice,
	}
	start.Name = xml.Name{Local: "node"}
	return e.EncodeElement(aux, start)
}

// UnmarshalXML implements xml.Unmarshaler.
func (n *VizNode) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var aux xmlNode
	if err := d.DecodeElement(&aux, &start); err != nil {
		return err
	}
	n.Host = aux.Host
	n.RemoteHostname = aux.RemoteHostname
	n.GPUs = aux.GPUs
	n.SLIs = aux.SLIs
	n.Servers = aux.Servers
	n.Keyboards = aux.Keyboards
	n.Mice = aux.Mice
	return nil
}
