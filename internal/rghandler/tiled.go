package rghandler

import (
	"github.com/vizstack/broker/internal/resource"
	"github.com/vizstack/broker/internal/vserr"
)

// TiledDisplay implements allocator.Handler for ResourceGroups tagged
// handler="tiled_display". It configures one Screen per GPU block,
// sized and positioned into a num_blocks[0] x num_blocks[1] grid of
// tile_resolution-sized tiles.
//
// Only block_type "gpu" is fully wired to the grid-position math;
// "quadroplex" blocks are accepted and get SLI mosaic mode plus a single
// combined screen, but do not reproduce the NVIDIA-specific
// 1x3/1x4/2x2 output-port splitting; that level of device-specific
// wiring is outside what the resource-group handler contract commits
// to.
type TiledDisplay struct{}

// Handle shapes group's resources in place. It is idempotent: calling it
// twice on an already-configured group recomputes the same layout.
func (TiledDisplay) Handle(group *resource.ResourceGroup) error {
	params, err := ParseTiledDisplayParams(group.HandlerParams)
	if err != nil {
		return err
	}

	for _, reslist := range group.Resources {
		if err := configureReslist(reslist, params); err != nil {
			return err
		}
	}
	return nil
}

func configureReslist(reslist []resource.Item, params *resource.TiledDisplayParams) error {
	servers := itemsOfType[*resource.Server](reslist)
	if len(servers) != 1 {
		return vserr.New(vserr.BadResource, "tiled_display: each reslist must contain exactly one X server")
	}
	server := servers[0]
	if server.Type != "" && server.Type != resource.ServerNormal {
		return vserr.New(vserr.BadResource, "tiled_display: each reslist must have one normal X server")
	}

	if kbds := itemsOfType[*resource.Keyboard](reslist); len(kbds) == 1 {
		server.Keyboard = kbds[0].Index
	}
	if mice := itemsOfType[*resource.Mouse](reslist); len(mice) == 1 {
		server.Mouse = mice[0].Index
	}

	gpus := itemsOfType[*resource.GPU](reslist)

	tileW, tileH := params.TileResolution[0], params.TileResolution[1]
	if tileW == 0 || tileH == 0 {
		return vserr.New(vserr.BadResource, "tiled_display: tile_resolution is required")
	}

	switch params.BlockType {
	case "gpu":
		return configureGPUBlocks(server, gpus, params, tileW, tileH)
	case "quadroplex":
		return configureQuadroplexBlock(server, reslist, gpus, params, tileW, tileH)
	default:
		return vserr.Newf(vserr.BadResource, "tiled_display: unknown block_type %q", params.BlockType)
	}
}

func configureGPUBlocks(server *resource.Server, gpus []*resource.GPU, params *resource.TiledDisplayParams, tileW, tileH int) error {
	if len(gpus) != params.NumBlocks[0]*params.NumBlocks[1] {
		return vserr.Newf(vserr.BadResource, "tiled_display: expected %d GPUs for a %dx%d block grid, got %d",
			params.NumBlocks[0]*params.NumBlocks[1], params.NumBlocks[0], params.NumBlocks[1], len(gpus))
	}

	layoutW, layoutH := params.BlockDisplayLayout[0], params.BlockDisplayLayout[1]
	fbWidth, fbHeight := tileW*layoutW, tileH*layoutH

	server.Screens = make(map[int]*resource.Screen, len(gpus))
	for i, gpu := range gpus {
		col := i % params.NumBlocks[0]
		row := i / params.NumBlocks[0]
		posX, posY := fbWidth*col, fbHeight*row
		if params.Rotate == resource.RotatePortrait || params.Rotate == resource.RotateInvertedPortrait {
			posX, posY = fbHeight*col, fbWidth*row
		}

		gpu.Ports = nil
		if err := gpu.SetScanout(remappedPort(params, 0), resource.ScanOut{
			DisplayDevice: params.DisplayDevice,
			ModeAlias:     params.DisplayMode,
			Area:          resource.Rect{X: 0, Y: 0, W: tileW, H: tileH},
		}); err != nil {
			return vserr.Newf(vserr.BadResource, "tiled_display: %v", err)
		}
		if layoutW*layoutH > 1 {
			if err := gpu.SetScanout(remappedPort(params, 1), resource.ScanOut{
				DisplayDevice: params.DisplayDevice,
				ModeAlias:     params.DisplayMode,
				Area:          resource.Rect{X: tileW * (layoutW - 1), Y: tileH * (layoutH - 1), W: tileW, H: tileH},
			}); err != nil {
				return vserr.Newf(vserr.BadResource, "tiled_display: %v", err)
			}
		}

		screen := &resource.Screen{
			Number: i,
			GPUs:   []int{derefIndex(gpu.Index)},
			Framebuffer: resource.Framebuffer{
				Width:     fbWidth,
				Height:    fbHeight,
				PositionX: posX,
				PositionY: posY,
				Stereo:    params.Stereo,
				Rotate:    params.Rotate,
			},
		}
		server.Screens[i] = screen
	}
	return nil
}

func configureQuadroplexBlock(server *resource.Server, reslist []resource.Item, gpus []*resource.GPU, params *resource.TiledDisplayParams, tileW, tileH int) error {
	if len(gpus) != 2 {
		return vserr.New(vserr.BadResource, "tiled_display: quadroplex blocks require exactly two GPUs")
	}
	slis := itemsOfType[*resource.SLI](reslist)
	if len(slis) != 1 {
		return vserr.New(vserr.BadResource, "tiled_display: quadroplex blocks require exactly one SLI bridge")
	}
	sli := slis[0]
	if sli.Kind != resource.SLIQuadroplex {
		return vserr.New(vserr.BadResource, "tiled_display: quadroplex blocks require an SLI bridge of kind quadroplex")
	}
	sli.Mode = resource.SLIMosaic

	layoutW, layoutH := params.BlockDisplayLayout[0], params.BlockDisplayLayout[1]
	fbWidth, fbHeight := tileW*layoutW, tileH*layoutH

	combiner := sli.Index
	screen := &resource.Screen{
		Number:      0,
		GPUs:        []int{derefIndex(gpus[0].Index), derefIndex(gpus[1].Index)},
		SLICombiner: combiner,
		Framebuffer: resource.Framebuffer{
			Width:     fbWidth,
			Height:    fbHeight,
			Stereo:    params.Stereo,
			Rotate:    params.Rotate,
		},
	}

	gpus[0].Ports = nil
	gpus[1].Ports = nil
	if err := gpus[0].SetScanout(remappedPort(params, 0), resource.ScanOut{
		DisplayDevice: params.DisplayDevice,
		ModeAlias:     params.DisplayMode,
		Area:          resource.Rect{X: 0, Y: 0, W: tileW, H: tileH},
	}); err != nil {
		return vserr.Newf(vserr.BadResource, "tiled_display: %v", err)
	}
	if err := gpus[1].SetScanout(remappedPort(params, 0), resource.ScanOut{
		DisplayDevice: params.DisplayDevice,
		ModeAlias:     params.DisplayMode,
		Area:          resource.Rect{X: 0, Y: 0, W: tileW, H: tileH},
	}); err != nil {
		return vserr.Newf(vserr.BadResource, "tiled_display: %v", err)
	}

	server.Screens = map[int]*resource.Screen{0: screen}
	return nil
}

// remappedPort applies params.OutputRemap to a logical port index, or
// returns it unchanged when no remap entry exists for it.
func remappedPort(params *resource.TiledDisplayParams, logical int) int {
	if params.OutputRemap == nil {
		return logical
	}
	if mapped, ok := params.OutputRemap[logical]; ok {
		return mapped
	}
	return logical
}

func derefIndex(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

// itemsOfType filters reslist to items of concrete type T, preserving
// order.
func itemsOfType[T resource.Item](reslist []resource.Item) []T {
	var out []T
	for _, it := range reslist {
		if t, ok := it.(T); ok {
			out = append(out, t)
		}
	}
	return out
}
