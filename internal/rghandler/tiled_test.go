package rghandler

import (
	"testing"

	"github.com/vizstack/broker/internal/resource"
)

func intp(v int) *int { return &v }

func gpuTemplate(index int) *resource.GPU {
	return &resource.GPU{
		Index:       intp(index),
		Host:        "n0",
		MaxWidth:    1920,
		MaxHeight:   1200,
		ScanOutCaps: []resource.ScanType{resource.ScanDVI, resource.ScanVGA},
	}
}

// A 2x1 tile grid at 1600x1200 produces two screens at (0,0) and
// (1600,0).
func TestTiledDisplayGPUBlockGrid(t *testing.T) {
	server := &resource.Server{Index: intp(0), Host: "n0"}
	gpu0 := gpuTemplate(0)
	gpu1 := gpuTemplate(1)

	group := &resource.ResourceGroup{
		Name:    "tiled-2x1",
		Handler: "tiled_display",
		HandlerParams: map[string]string{
			"num_blocks":           "2,1",
			"block_type":           "gpu",
			"block_display_layout": "1,1",
			"display_device":       "HP_LP2065",
			"tile_resolution":      "1600,1200",
		},
		Resources: [][]resource.Item{
			{server, gpu0, gpu1},
		},
	}

	if err := (TiledDisplay{}).Handle(group); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if len(server.Screens) != 2 {
		t.Fatalf("expected 2 screens, got %d", len(server.Screens))
	}

	s0, ok := server.Screens[0]
	if !ok {
		t.Fatal("expected screen 0")
	}
	if s0.Framebuffer.Width != 1600 || s0.Framebuffer.Height != 1200 {
		t.Fatalf("unexpected screen 0 resolution: %+v", s0.Framebuffer)
	}
	if s0.Framebuffer.PositionX != 0 || s0.Framebuffer.PositionY != 0 {
		t.Fatalf("unexpected screen 0 position: %+v", s0.Framebuffer)
	}

	s1, ok := server.Screens[1]
	if !ok {
		t.Fatal("expected screen 1")
	}
	if s1.Framebuffer.PositionX != 1600 || s1.Framebuffer.PositionY != 0 {
		t.Fatalf("unexpected screen 1 position: %+v", s1.Framebuffer)
	}

	if len(gpu0.Ports) != 1 || gpu0.Ports[0].DisplayDevice != "HP_LP2065" {
		t.Fatalf("unexpected gpu0 scanout: %+v", gpu0.Ports)
	}
}

func TestTiledDisplayRejectsWrongGPUCount(t *testing.T) {
	server := &resource.Server{Index: intp(0), Host: "n0"}
	gpu0 := gpuTemplate(0)

	group := &resource.ResourceGroup{
		Handler: "tiled_display",
		HandlerParams: map[string]string{
			"num_blocks":           "2,1",
			"block_type":           "gpu",
			"block_display_layout": "1,1",
			"display_device":       "HP_LP2065",
			"tile_resolution":      "1600,1200",
		},
		Resources: [][]resource.Item{
			{server, gpu0},
		},
	}

	if err := (TiledDisplay{}).Handle(group); err == nil {
		t.Fatal("expected error for GPU count mismatch")
	}
}

func TestParseTiledDisplayParamsRejectsBadBlockType(t *testing.T) {
	_, err := ParseTiledDisplayParams(map[string]string{
		"block_type":           "cpu",
		"num_blocks":           "1,1",
		"block_display_layout": "1,1",
		"display_device":       "HP_LP2065",
	})
	if err == nil {
		t.Fatal("expected error for invalid block_type")
	}
}

func TestParseTiledDisplayParamsRejectsMissingDisplayDevice(t *testing.T) {
	_, err := ParseTiledDisplayParams(map[string]string{
		"block_type":           "gpu",
		"num_blocks":           "1,1",
		"block_display_layout": "1,1",
	})
	if err == nil {
		t.Fatal("expected error for missing display_device")
	}
}
