package vsconfig

import (
	"strconv"
	"strings"

	"github.com/vizstack/broker/internal/vserr"
)

// Display is a parsed X11 DISPLAY string: host (may be empty for the
// local host), display number, and screen number.
type Display struct {
	Host    string
	Number  int
	Screen  int
}

// ParseDisplay parses an X11 DISPLAY value of the form
// "[host]:display[.screen]". Screen defaults to 0 when omitted.
func ParseDisplay(s string) (Display, error) {
	colon := strings.LastIndex(s, ":")
	if colon < 0 {
		return Display{}, vserr.Newf(vserr.IncorrectValue, "invalid DISPLAY %q: missing ':'", s)
	}
	host := s[:colon]
	rest := s[colon+1:]
	if rest == "" {
		return Display{}, vserr.Newf(vserr.IncorrectValue, "invalid DISPLAY %q: missing display number", s)
	}

	numStr, screenStr, hasScreen := strings.Cut(rest, ".")
	num, err := strconv.Atoi(numStr)
	if err != nil {
		return Display{}, vserr.Newf(vserr.IncorrectValue, "invalid DISPLAY %q: display number: %v", s, err)
	}

	screen := 0
	if hasScreen {
		screen, err = strconv.Atoi(screenStr)
		if err != nil {
			return Display{}, vserr.Newf(vserr.IncorrectValue, "invalid DISPLAY %q: screen number: %v", s, err)
		}
	}

	return Display{Host: host, Number: num, Screen: screen}, nil
}

// String renders d back into DISPLAY syntax.
func (d Display) String() string {
	return d.Host + ":" + strconv.Itoa(d.Number) + "." + strconv.Itoa(d.Screen)
}
