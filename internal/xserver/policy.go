package xserver

import "github.com/vizstack/broker/internal/resource"

// defaultExtensionOptions are merged into a newly allocated Server's
// ExtensionOptions: disable Composite, disable DPMS and the screen
// saver, and refuse TCP
// listening. A client that has already set one of these keys (e.g. via
// update_serverconfig) keeps its own value — ApplyDefaultPolicy never
// overwrites an existing entry.
var defaultExtensionOptions = map[string]string{
	"Composite": "Disable",
	"DPMS":      "Disable",
}

// defaultOptions are appended to Options if not already present.
var defaultOptions = []string{"-s", "0", "-nolisten", "tcp"}

// ApplyDefaultPolicy fills in the default server configuration on a
// freshly allocated Server, without disturbing any setting the client
// already specified.
func ApplyDefaultPolicy(s *resource.Server) {
	if s.ExtensionOptions == nil {
		s.ExtensionOptions = make(map[string]string, len(defaultExtensionOptions))
	}
	for k, v := range defaultExtensionOptions {
		if _, set := s.ExtensionOptions[k]; !set {
			s.ExtensionOptions[k] = v
		}
	}
	for _, opt := range defaultOptions {
		if !containsOption(s.Options, opt) {
			s.Options = append(s.Options, opt)
		}
	}
}

func containsOption(opts []string, opt string) bool {
	for _, o := range opts {
		if o == opt {
			return true
		}
	}
	return false
}
