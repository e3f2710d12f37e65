package resource

import "encoding/xml"

// Rotation is a screen's framebuffer rotation.
type Rotation string

const (
	RotateNone             Rotation = ""
	RotateLandscape        Rotation = "landscape"
	RotatePortrait         Rotation = "portrait"
	RotateInvertedLandscape Rotation = "inverted_landscape"
	RotateInvertedPortrait Rotation = "inverted_portrait"
)

// Framebuffer is a screen's framebuffer properties.
type Framebuffer struct {
	XMLName    xml.Name `xml:"framebuffer"`
	Width      int      `xml:"resolution>w"`
	Height     int      `xml:"resolution>h"`
	PositionX  int      `xml:"position>x"`
	PositionY  int      `xml:"position>y"`
	Stereo     bool     `xml:"stereo"`
	Rotate     Rotation `xml:"rotate,omitempty"`
}

// Validate enforces the framebuffer resolution bounds:
// 304 <= w,h <= 8192 and w divisible by 8.
func (f *Framebuffer) Validate() error {
	if f.Width < 304 || f.Width > 8192 || f.Height < 304 || f.Height > 8192 {
		return errInvalid("resolution out of range [304,8192]")
	}
	if f.Width%8 != 0 {
		return errInvalid("resolution width must be divisible by 8")
	}
	return nil
}

// ObservedSize returns (width, height) as actually displayed, swapping
// the declared values when rotation is portrait or inverted_portrait.
func (f *Framebuffer) ObservedSize() (int, int) {
	if f.Rotate == RotatePortrait || f.Rotate == RotateInvertedPortrait {
		return f.Height, f.Width
	}
	return f.Width, f.Height
}

// Screen is one screen number inside a Server, owning up to two GPUs
// (for SLI-combined rendering) and an optional SLI combiner.
type Screen struct {
	Number      int
	GPUs        []int // GPU indices on the owning server's host, len 1 or 2
	SLICombiner *int  // index of the SLI bridge combining the GPUs, if any
	Framebuffer Framebuffer
}

// Validate checks Screen invariants: at most two GPUs, valid framebuffer.
func (s *Screen) Validate() error {
	if len(s.GPUs) == 0 || len(s.GPUs) > 2 {
		return errInvalid("screen must own one or two GPUs")
	}
	if len(s.GPUs) == 1 && s.SLICombiner != nil {
		return errInvalid("sli combiner requires two GPUs")
	}
	return s.Framebuffer.Validate()
}
