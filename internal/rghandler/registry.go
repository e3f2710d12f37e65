package rghandler

import "github.com/vizstack/broker/internal/allocator"

// Handlers returns the full set of resource-group handlers the broker
// registers with its allocator, keyed by the handler name resource
// groups reference in their "handler" attribute. tiled_display is the
// only defined handler.
func Handlers() map[string]allocator.Handler {
	return map[string]allocator.Handler{
		"tiled_display": TiledDisplay{},
	}
}
