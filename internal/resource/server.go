package resource

import "encoding/xml"

// ServerType is the kind of X-server slot.
type ServerType string

const (
	ServerNormal  ServerType = "normal"
	ServerVirtual ServerType = "virtual"
)

// Server is an X-server slot: a display number, owning user, launch
// options, and a mapping from screen number to Screen.
type Server struct {
	Index *int       // display number
	Host  string
	Type  ServerType
	OwnerUID uint32

	Options          []string
	ExtensionOptions map[string]string
	Modules          []string

	Keyboard *int
	Mouse    *int

	Screens map[int]*Screen
}

func (s *Server) ResClass() Class  { return ClassServer }
func (s *Server) GetIndex() *int   { return s.Index }
func (s *Server) SetIndex(i int)   { s.Index = intPtr(i) }
func (s *Server) GetHost() string  { return s.Host }
func (s *Server) SetHost(h string) { s.Host = h }
func (s *Server) DOF() int         { return DOF(s.Host, s.Index) }
func (s *Server) Resolved() bool   { return s.Index != nil && s.Host != "" }

func (s *Server) Match(ci Item) bool {
	c, ok := ci.(*Server)
	if !ok {
		return false
	}
	if s.Index != nil {
		if c.Index == nil || *s.Index != *c.Index {
			return false
		}
	}
	if !matchStr(s.Host, c.Host) {
		return false
	}
	if s.Type != "" && s.Type != c.Type {
		return false
	}
	return true
}

func (s *Server) Clone() Item {
	cp := &Server{
		Host:     s.Host,
		Type:     s.Type,
		OwnerUID: s.OwnerUID,
	}
	if s.Index != nil {
		cp.Index = intPtr(*s.Index)
	}
	if s.Keyboard != nil {
		cp.Keyboard = intPtr(*s.Keyboard)
	}
	if s.Mouse != nil {
		cp.Mouse = intPtr(*s.Mouse)
	}
	cp.Options = append([]string(nil), s.Options...)
	cp.Modules = append([]string(nil), s.Modules...)
	if s.ExtensionOptions != nil {
		cp.ExtensionOptions = make(map[string]string, len(s.ExtensionOptions))
		for k, v := range s.ExtensionOptions {
			cp.ExtensionOptions[k] = v
		}
	}
	if s.Screens != nil {
		cp.Screens = make(map[int]*Screen, len(s.Screens))
		for k, v := range s.Screens {
			scr := *v
			scr.GPUs = append([]int(nil), v.GPUs...)
			if v.SLICombiner != nil {
				n := *v.SLICombiner
				scr.SLICombiner = &n
			}
			cp.Screens[k] = &scr
		}
	}
	return cp
}

// HasConfiguredScreen reports whether the server has at least one
// configured screen, required before it can be started.
func (s *Server) HasConfiguredScreen() bool {
	return len(s.Screens) > 0
}

// --- XML wire shape ---
//
// serverconfig elements nest screen elements with a "number" attribute,
// each carrying its own framebuffer; extension options and module names
// are flattened lists of key/value and name elements respectively.

type xmlScreen struct {
	Number      int         `xml:"number,attr"`
	GPU         []int       `xml:"gpu"`
	SLICombiner *int        `xml:"sliCombiner,omitempty"`
	Framebuffer Framebuffer `xml:"framebuffer"`
}

type xmlExtOpt struct {
	Key   string `xml:"key,attr"`
	Value string `xml:",chardata"`
}

type xmlServer struct {
	XMLName xml.Name `xml:"serverconfig"`

	Index *int   `xml:"display,attr,omitempty"`
	Host  string `xml:"host,attr,omitempty"`
	Type  ServerType `xml:"type,attr,omitempty"`

	OwnerUID uint32 `xml:"ownerUid,omitempty"`

	Options          []string    `xml:"option,omitempty"`
	ExtensionOptions []xmlExtOpt `xml:"extensionOption,omitempty"`
	Modules          []string    `xml:"module,omitempty"`

	Keyboard *int `xml:"keyboard,omitempty"`
	Mouse    *int `xml:"mouse,omitempty"`

	Screens []xmlScreen `xml:"screen,omitempty"`
}

// MarshalXML implements xml.Marshaler for the map-valued Server.
func (s *Server) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	aux := xmlServer{
		Index:    s.Index,
		Host:     s.Host,
		Type:     s.Type,
		OwnerUID: s.OwnerUID,
		Options:  s.Options,
		Modules:  s.Modules,
		Keyboard: s.Keyboard,
		Mouse:    s.Mouse,
	}
	for k, v := range s.ExtensionOptions {
		aux.ExtensionOptions = append(aux.ExtensionOptions, xmlExtOpt{Key: k, Value: v})
	}
	for num, scr := range s.Screens {
		xs := xmlScreen{Number: num, GPU: scr.GPUs, SLICombiner: scr.SLICombiner, Framebuffer: scr.Framebuffer}
		aux.Screens = append(aux.Screens, xs)
	}
	start.Name = xml.Name{Local: "serverconfig"}
	return e.EncodeElement(aux, start)
}

// UnmarshalXML implements xml.Unmarshaler for the map-valued Server.
func (s *Server) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var aux xmlServer
	if err := d.DecodeElement(&aux, &start); err != nil {
		return err
	}
	s.Index = aux.Index
	s.Host = aux.Host
	s.Type = aux.Type
	s.OwnerUID = aux.OwnerUID
	s.Options = aux.Options
	s.Modules = aux.Modules
	s.Keyboard = aux.Keyboard
	s.Mouse = aux.Mouse
	if len(aux.ExtensionOptions) > 0 {
		s.ExtensionOptions = make(map[string]string, len(aux.ExtensionOptions))
		for _, eo := range aux.ExtensionOptions {
			s.ExtensionOptions[eo.Key] = eo.Value
		}
	}
	if len(aux.Screens) > 0 {
		s.Screens = make(map[int]*Screen, len(aux.Screens))
		for _, xs := range aux.Screens {
			s.Screens[xs.Number] = &Screen{
				Number:      xs.Number,
				GPUs:        xs.GPU,
				SLICombiner: xs.SLICombiner,
				Framebuffer: xs.Framebuffer,
			}
		}
	}
	return nil
}
