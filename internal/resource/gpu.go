package resource

import "encoding/xml"

// ScanType is a GPU output port's scan-out capability.
type ScanType string

const (
	ScanDVI ScanType = "DVI"
	ScanVGA ScanType = "VGA"
)

// Rect is a framebuffer area: position and size.
type Rect struct {
	X int `xml:"x,attr"`
	Y int `xml:"y,attr"`
	W int `xml:"w,attr"`
	H int `xml:"h,attr"`
}

// ScanOut describes what a GPU port is scanning out: target display
// device, mode, and framebuffer area.
type ScanOut struct {
	Port          int      `xml:"port,attr"`
	PortType      ScanType `xml:"portType,omitempty"`
	DisplayDevice string   `xml:"displayDevice,omitempty"`
	ModeAlias     string   `xml:"modeAlias,omitempty"`
	Area          Rect     `xml:"area"`
}

// GPU is a single graphics accelerator.
type GPU struct {
	XMLName xml.Name `xml:"gpu"`

	Index *int   `xml:"index,attr,omitempty"`
	Host  string `xml:"host,attr,omitempty"`
	Type  string `xml:"type,attr,omitempty"`

	PCIBusID string `xml:"pciBusId,omitempty"`
	Vendor   string `xml:"vendor,omitempty"`
	DeviceID string `xml:"deviceId,omitempty"`

	ScanOutCaps []ScanType `xml:"scanOutCap,omitempty"`
	MaxWidth    int        `xml:"maxWidth,omitempty"`
	MaxHeight   int        `xml:"maxHeight,omitempty"`

	// UseScanOut is tri-state: nil = don't care, else required/forbidden.
	UseScanOut *bool `xml:"useScanOut,omitempty"`

	Ports []ScanOut `xml:"scanout,omitempty"`
}

func (g *GPU) ResClass() Class   { return ClassGPU }
func (g *GPU) GetIndex() *int    { return g.Index }
func (g *GPU) SetIndex(i int)    { g.Index = intPtr(i) }
func (g *GPU) GetHost() string   { return g.Host }
func (g *GPU) SetHost(h string)  { g.Host = h }
func (g *GPU) DOF() int          { return DOF(g.Host, g.Index) }
func (g *GPU) Resolved() bool    { return g.Index != nil && g.Host != "" }

// Match implements tri-state useScanOut matching in addition to the
// standard field-by-field template comparison.
func (g *GPU) Match(ci Item) bool {
	c, ok := ci.(*GPU)
	if !ok {
		return false
	}
	if g.Index != nil {
		if c.Index == nil || *g.Index != *c.Index {
			return false
		}
	}
	if !matchStr(g.Host, c.Host) {
		return false
	}
	if !matchStr(g.Type, c.Type) {
		return false
	}
	if g.PCIBusID != "" && g.PCIBusID != c.PCIBusID {
		return false
	}
	if !matchBoolPtr(g.UseScanOut, c.hasScanOut()) {
		return false
	}
	return true
}

func (g *GPU) hasScanOut() bool { return len(g.ScanOutCaps) > 0 }

// Clone returns a deep copy of g.
func (g *GPU) Clone() Item {
	cp := *g
	if g.Index != nil {
		cp.Index = intPtr(*g.Index)
	}
	if g.UseScanOut != nil {
		cp.UseScanOut = boolPtr(*g.UseScanOut)
	}
	cp.ScanOutCaps = append([]ScanType(nil), g.ScanOutCaps...)
	cp.Ports = append([]ScanOut(nil), g.Ports...)
	return &cp
}

// HasCap reports whether the GPU declares scan-out capability st.
func (g *GPU) HasCap(st ScanType) bool {
	for _, c := range g.ScanOutCaps {
		if c == st {
			return true
		}
	}
	return false
}

// SetScanout validates and attaches a scanout descriptor to port
// portIndex. The number of ports
// a GPU exposes is the length of its declared scan-out capability list.
func (g *GPU) SetScanout(portIndex int, so ScanOut) error {
	if portIndex < 0 || portIndex >= len(g.ScanOutCaps) {
		return errInvalid("port index out of range")
	}
	if so.Area.X+so.Area.W > g.MaxWidth || so.Area.Y+so.Area.H > g.MaxHeight {
		return errInvalid("scanout area exceeds framebuffer bounds")
	}
	if so.PortType != "" && !g.HasCap(so.PortType) {
		return errInvalid("scan type not in declared capability list")
	}
	if g.UseScanOut != nil && !*g.UseScanOut {
		return errInvalid("gpu has useScanOut=false")
	}
	so.Port = portIndex
	g.Ports = append(g.Ports, so)
	return nil
}
