package resource

import "encoding/xml"

// DisplayMode is one entry in a DisplayDevice's mode list.
type DisplayMode struct {
	Type    string  `xml:"type,attr,omitempty"`
	Alias   string  `xml:"alias,attr"`
	Width   int     `xml:"width,attr"`
	Height  int     `xml:"height,attr"`
	Refresh float64 `xml:"refresh,attr"`
}

// DisplayDevice is a template describing a class of monitor: model,
// sync ranges, and supported modes. It is referenced by GPU scanout
// descriptors but is not itself allocated.
type DisplayDevice struct {
	XMLName xml.Name `xml:"displayconfig"`

	Model  string `xml:"model,attr"`
	Vendor string `xml:"vendor,attr,omitempty"`

	HSyncMin    float64 `xml:"hsyncMin,omitempty"`
	HSyncMax    float64 `xml:"hsyncMax,omitempty"`
	VRefreshMin float64 `xml:"vrefreshMin,omitempty"`
	VRefreshMax float64 `xml:"vrefreshMax,omitempty"`

	DefaultModeAlias string        `xml:"defaultMode,omitempty"`
	Modes            []DisplayMode `xml:"mode,omitempty"`
}

// ModeByAlias looks up a mode by its alias.
func (d *DisplayDevice) ModeByAlias(alias string) (DisplayMode, bool) {
	for _, m := range d.Modes {
		if m.Alias == alias {
			return m, true
		}
	}
	return DisplayMode{}, false
}
