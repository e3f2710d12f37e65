package resource

import "encoding/xml"

// SLIKind is the bridge hardware kind.
type SLIKind string

const (
	SLIDiscrete   SLIKind = "discrete"
	SLIQuadroplex SLIKind = "quadroplex"
)

// SLIMode is the multi-GPU rendering mode.
type SLIMode string

const (
	SLIAuto   SLIMode = "auto"
	SLISFR    SLIMode = "SFR"
	SLIAFR    SLIMode = "AFR"
	SLIAA     SLIMode = "AA"
	SLIMosaic SLIMode = "mosaic"
)

// SLI bridges two GPUs on the same host.
type SLI struct {
	XMLName xml.Name `xml:"sli"`

	Index *int   `xml:"index,attr,omitempty"`
	Host  string `xml:"host,attr,omitempty"`

	Kind SLIKind `xml:"kind,attr,omitempty"`
	Mode SLIMode `xml:"mode,attr,omitempty"`

	GPU0 int `xml:"gpu0"`
	GPU1 int `xml:"gpu1"`
}

func (s *SLI) ResClass() Class  { return ClassSLI }
func (s *SLI) GetIndex() *int   { return s.Index }
func (s *SLI) SetIndex(i int)   { s.Index = intPtr(i) }
func (s *SLI) GetHost() string  { return s.Host }
func (s *SLI) SetHost(h string) { s.Host = h }
func (s *SLI) DOF() int         { return DOF(s.Host, s.Index) }
func (s *SLI) Resolved() bool   { return s.Index != nil && s.Host != "" }

func (s *SLI) Match(ci Item) bool {
	c, ok := ci.(*SLI)
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
	if s.Kind != "" && s.Kind != c.Kind {
		return false
	}
	if s.Mode != "" && s.Mode != c.Mode {
		return false
	}
	return true
}

func (s *SLI) Clone() Item {
	cp := *s
	if s.Index != nil {
		cp.Index = intPtr(*s.Index)
	}
	return &cp
}

// Validate enforces the invariant: mosaic mode requires quadroplex kind.
func (s *SLI) Validate() error {
	if s.Mode == SLIMosaic && s.Kind != SLIQuadroplex {
		return errInvalid("sli mode mosaic requires kind quadroplex")
	}
	return nil
}
