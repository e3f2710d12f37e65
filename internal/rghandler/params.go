// Package rghandler implements the resource-group handler contract
// (allocator.Handler) and the one defined handler, tiled_display, which
// composes a rectangular multi-GPU display out of an allocated
// ResourceGroup's resources. Handler parameters are a constrained
// declarative key/value document, never evaluated as code.
package rghandler

import (
	"strconv"
	"strings"

	"github.com/vizstack/broker/internal/resource"
	"github.com/vizstack/broker/internal/vserr"
)

var validBlockTypes = map[string]bool{"gpu": true, "quadroplex": true}

var validRotations = map[string]bool{
	"":                                 true,
	string(resource.RotateLandscape):        true,
	string(resource.RotatePortrait):         true,
	string(resource.RotateInvertedLandscape): true,
	string(resource.RotateInvertedPortrait):  true,
}

// ParseTiledDisplayParams parses a ResourceGroup's opaque HandlerParams
// into validated tiled_display parameters. Every value is a plain string
// (an int pair as "W,H", a bool as "0"/"1", a remap list as
// "srcPort:dstPort,..."); nothing is evaluated as code.
func ParseTiledDisplayParams(params map[string]string) (*resource.TiledDisplayParams, error) {
	p := &resource.TiledDisplayParams{}

	blockType := params["block_type"]
	if blockType == "" {
		return nil, vserr.New(vserr.IncorrectValue, "tiled_display: block_type is required")
	}
	if !validBlockTypes[blockType] {
		return nil, vserr.Newf(vserr.IncorrectValue, "tiled_display: block_type must be one of gpu, quadroplex, got %q", blockType)
	}
	p.BlockType = blockType

	numBlocks, err := parseIntPair(params["num_blocks"])
	if err != nil {
		return nil, vserr.Newf(vserr.IncorrectValue, "tiled_display: num_blocks: %v", err)
	}
	if numBlocks[0] <= 0 || numBlocks[1] <= 0 {
		return nil, vserr.New(vserr.IncorrectValue, "tiled_display: num_blocks must be positive integers")
	}
	p.NumBlocks = numBlocks

	layout, err := parseIntPair(params["block_display_layout"])
	if err != nil {
		return nil, vserr.Newf(vserr.IncorrectValue, "tiled_display: block_display_layout: %v", err)
	}
	if layout[0] <= 0 || layout[1] <= 0 {
		return nil, vserr.New(vserr.IncorrectValue, "tiled_display: block_display_layout must be positive integers")
	}
	numDisplays := layout[0] * layout[1]
	if blockType == "gpu" {
		if numDisplays < 1 || numDisplays > 2 {
			return nil, vserr.Newf(vserr.IncorrectValue, "tiled_display: for gpu blocks, display layout must be [1,1], [1,2], or [2,1], got %v", layout)
		}
	} else {
		if numDisplays < 2 || numDisplays > 4 {
			return nil, vserr.Newf(vserr.IncorrectValue, "tiled_display: for quadroplex blocks, display layout must multiply to 2..4, got %v", layout)
		}
	}
	p.BlockDisplayLayout = layout

	p.DisplayDevice = params["display_device"]
	if p.DisplayDevice == "" {
		return nil, vserr.New(vserr.IncorrectValue, "tiled_display: display_device is required")
	}
	p.DisplayMode = params["display_mode"]

	if raw, ok := params["tile_resolution"]; ok && raw != "" {
		tr, err := parseIntPair(raw)
		if err != nil {
			return nil, vserr.Newf(vserr.IncorrectValue, "tiled_display: tile_resolution: %v", err)
		}
		p.TileResolution = tr
	}

	if raw, ok := params["stereo"]; ok && raw != "" {
		b, err := parseBool(raw)
		if err != nil {
			return nil, vserr.Newf(vserr.IncorrectValue, "tiled_display: stereo: %v", err)
		}
		p.Stereo = b
	}

	rotate := params["rotate"]
	if !validRotations[rotate] {
		return nil, vserr.Newf(vserr.IncorrectValue, "tiled_display: rotate must be one of landscape, portrait, inverted_landscape, inverted_portrait, got %q", rotate)
	}
	p.Rotate = resource.Rotation(rotate)

	if raw, ok := params["xinerama"]; ok && raw != "" {
		b, err := parseBool(raw)
		if err != nil {
			return nil, vserr.Newf(vserr.IncorrectValue, "tiled_display: xinerama: %v", err)
		}
		p.Xinerama = b
	}

	if raw, ok := params["output_remap"]; ok && raw != "" {
		remap, err := parseRemap(raw)
		if err != nil {
			return nil, vserr.Newf(vserr.IncorrectValue, "tiled_display: output_remap: %v", err)
		}
		p.OutputRemap = remap
	}

	return p, nil
}

func parseIntPair(raw string) ([2]int, error) {
	var out [2]int
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return out, vserr.Newf(vserr.IncorrectValue, "expected two comma-separated integers, got %q", raw)
	}
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return out, vserr.Newf(vserr.IncorrectValue, "not an integer: %q", p)
		}
		out[i] = n
	}
	return out, nil
}

func parseBool(raw string) (bool, error) {
	switch strings.TrimSpace(raw) {
	case "1", "true", "True":
		return true, nil
	case "0", "false", "False", "":
		return false, nil
	default:
		return false, vserr.Newf(vserr.IncorrectValue, "expected a boolean, got %q", raw)
	}
}

// parseRemap parses "srcPort:dstPort,srcPort:dstPort,..." into a map,
// rejecting a port used more than once as a source.
func parseRemap(raw string) (map[int]int, error) {
	out := map[int]int{}
	for _, pair := range strings.Split(raw, ",") {
		kv := strings.SplitN(pair, ":", 2)
		if len(kv) != 2 {
			return nil, vserr.Newf(vserr.IncorrectValue, "expected srcPort:dstPort, got %q", pair)
		}
		src, err := strconv.Atoi(strings.TrimSpace(kv[0]))
		if err != nil {
			return nil, vserr.Newf(vserr.IncorrectValue, "not an integer port: %q", kv[0])
		}
		dst, err := strconv.Atoi(strings.TrimSpace(kv[1]))
		if err != nil {
			return nil, vserr.Newf(vserr.IncorrectValue, "not an integer port: %q", kv[1])
		}
		if _, dup := out[src]; dup {
			return nil, vserr.Newf(vserr.IncorrectValue, "port %d remapped more than once", src)
		}
		out[src] = dst
	}
	return out, nil
}
