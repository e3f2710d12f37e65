package resource

import "encoding/xml"

// Keyboard is an input device slot. PhysAddr is the physical bus
// address, e.g. a USB path.
type Keyboard struct {
	XMLName xml.Name `xml:"keyboard"`

	Index *int   `xml:"index,attr,omitempty"`
	Host  string `xml:"host,attr,omitempty"`
	Type  string `xml:"type,attr,omitempty"`

	PhysAddr string `xml:"physAddr,omitempty"`
}

func (k *Keyboard) ResClass() Class  { return ClassKeyboard }
func (k *Keyboard) GetIndex() *int   { return k.Index }
func (k *Keyboard) SetIndex(i int)   { k.Index = intPtr(i) }
func (k *Keyboard) GetHost() string  { return k.Host }
func (k *Keyboard) SetHost(h string) { k.Host = h }
func (k *Keyboard) DOF() int         { return DOF(k.Host, k.Index) }
func (k *Keyboard) Resolved() bool   { return k.Index != nil && k.Host != "" }

func (k *Keyboard) Match(ci Item) bool {
	c, ok := ci.(*Keyboard)
	if !ok {
		return false
	}
	if k.Index != nil {
		if c.Index == nil || *k.Index != *c.Index {
			return false
		}
	}
	return matchStr(k.Host, c.Host) && matchStr(k.Type, c.Type) &&
		matchStr(k.PhysAddr, c.PhysAddr)
}

func (k *Keyboard) Clone() Item {
	cp := *k
	if k.Index != nil {
		cp.Index = intPtr(*k.Index)
	}
	return &cp
}

// Mouse is an input device slot, identical in shape to Keyboard.
type Mouse struct {
	XMLName xml.Name `xml:"mouse"`

	Index *int   `xml:"index,attr,omitempty"`
	Host  string `xml:"host,attr,omitempty"`
	Type  string `xml:"type,attr,omitempty"`

	PhysAddr string `xml:"physAddr,omitempty"`
}

func (m *Mouse) ResClass() Class  { return ClassMouse }
func (m *Mouse) GetIndex() *int   { return m.Index }
func (m *Mouse) SetIndex(i int)   { m.Index = intPtr(i) }
func (m *Mouse) GetHost() string  { return m.Host }
func (m *Mouse) SetHost(h string) { m.Host = h }
func (m *Mouse) DOF() int         { return DOF(m.Host, m.Index) }
func (m *Mouse) Resolved() bool   { return m.Index != nil && m.Host != "" }

func (m *Mouse) Match(ci Item) bool {
	c, ok := ci.(*Mouse)
	if !ok {
		return false
	}
	if m.Index != nil {
		if c.Index == nil || *m.Index != *c.Index {
			return false
		}
	}
	return matchStr(m.Host, c.Host) && matchStr(m.Type, c.Type) &&
		matchStr(m.PhysAddr, c.PhysAddr)
}

func (m *Mouse) Clone() Item {
	cp := *m
	if m.Index != nil {
		cp.Index = intPtr(*m.Index)
	}
	return &cp
}
