package resource

import "testing"

func TestGPUMatchTemplate(t *testing.T) {
	concrete := &GPU{Index: intPtr(1), Host: "n0", Type: "Quadro FX 5600"}
	concrete.ScanOutCaps = []ScanType{ScanDVI}

	tests := []struct {
		name string
		tmpl *GPU
		want bool
	}{
		{"empty template matches anything", &GPU{}, true},
		{"host match", &GPU{Host: "n0"}, true},
		{"host mismatch", &GPU{Host: "n1"}, false},
		{"index match", &GPU{Index: intPtr(1)}, true},
		{"index mismatch", &GPU{Index: intPtr(2)}, false},
		{"useScanOut required matches", &GPU{UseScanOut: boolPtr(true)}, true},
		{"useScanOut forbidden mismatches", &GPU{UseScanOut: boolPtr(false)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.tmpl.Match(concrete); got != tt.want {
				t.Errorf("Match() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGPUDOF(t *testing.T) {
	if got := (&GPU{}).DOF(); got != 3 {
		t.Errorf("fully unspecified DOF = %d, want 3", got)
	}
	if got := (&GPU{Host: "n0"}).DOF(); got != 2 {
		t.Errorf("host-only DOF = %d, want 2", got)
	}
	if got := (&GPU{Index: intPtr(0)}).DOF(); got != 1 {
		t.Errorf("index-only DOF = %d, want 1", got)
	}
	if got := (&GPU{Host: "n0", Index: intPtr(0)}).DOF(); got != 0 {
		t.Errorf("fully specified DOF = %d, want 0", got)
	}
}

func TestGPUSetScanoutBounds(t *testing.T) {
	g := &GPU{MaxWidth: 1920, MaxHeight: 1080, ScanOutCaps: []ScanType{ScanDVI, ScanVGA}}

	if err := g.SetScanout(-1, ScanOut{}); err == nil {
		t.Error("expected error for negative port index")
	}
	if err := g.SetScanout(2, ScanOut{}); err == nil {
		t.Error("expected error for port index beyond declared ports")
	}
	if err := g.SetScanout(0, ScanOut{Area: Rect{X: 0, Y: 0, W: 2000, H: 1080}}); err == nil {
		t.Error("expected error for area exceeding max width")
	}
	if err := g.SetScanout(0, ScanOut{PortType: "HDMI", Area: Rect{W: 100, H: 100}}); err == nil {
		t.Error("expected error for scan type not in capability list")
	}
	if err := g.SetScanout(0, ScanOut{PortType: ScanDVI, Area: Rect{W: 1920, H: 1080}}); err != nil {
		t.Errorf("expected valid scanout to succeed, got %v", err)
	}
	if len(g.Ports) != 1 {
		t.Fatalf("expected 1 scanout recorded, got %d", len(g.Ports))
	}
}

func TestGPUUseScanOutFalseRejectsScanout(t *testing.T) {
	g := &GPU{MaxWidth: 1920, MaxHeight: 1080, ScanOutCaps: []ScanType{ScanDVI}, UseScanOut: boolPtr(false)}
	if err := g.SetScanout(0, ScanOut{PortType: ScanDVI, Area: Rect{W: 100, H: 100}}); err == nil {
		t.Error("expected error attaching scanout to a useScanOut=false GPU")
	}
}

func TestSLIMosaicRequiresQuadroplex(t *testing.T) {
	s := &SLI{Kind: SLIDiscrete, Mode: SLIMosaic}
	if err := s.Validate(); err == nil {
		t.Error("expected mosaic mode with discrete kind to fail validation")
	}
	s.Kind = SLIQuadroplex
	if err := s.Validate(); err != nil {
		t.Errorf("expected mosaic+quadroplex to validate, got %v", err)
	}
}

func TestFramebufferResolutionBounds(t *testing.T) {
	tests := []struct {
		name    string
		fb      Framebuffer
		wantErr bool
	}{
		{"too small", Framebuffer{Width: 300, Height: 400}, true},
		{"too large", Framebuffer{Width: 8200, Height: 600}, true},
		{"not divisible by 8", Framebuffer{Width: 305, Height: 600}, true},
		{"valid", Framebuffer{Width: 1600, Height: 1200}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fb.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFramebufferObservedSizeSwapsOnPortrait(t *testing.T) {
	fb := Framebuffer{Width: 1600, Height: 1200, Rotate: RotatePortrait}
	w, h := fb.ObservedSize()
	if w != 1200 || h != 1600 {
		t.Errorf("ObservedSize() = (%d,%d), want (1200,1600)", w, h)
	}
}

func TestResourceGroupMatchesOnNameAndHandlerOnly(t *testing.T) {
	tmpl := &ResourceGroup{Name: "wall", Handler: "tiled_display"}
	concrete := &ResourceGroup{Name: "wall", Handler: "tiled_display", Resources: [][]Item{{&GPU{Index: intPtr(0), Host: "n0"}}}}
	if !tmpl.Match(concrete) {
		t.Error("expected name+handler match to succeed")
	}
	other := &ResourceGroup{Name: "other", Handler: "tiled_display"}
	if tmpl.Match(other) {
		t.Error("expected name mismatch to fail")
	}
}

func TestAllocationHolds(t *testing.T) {
	gpu := &GPU{Index: intPtr(0), Host: "n0"}
	alloc := &Allocation{ID: 1, Tree: []TreeNode{{Single: gpu}}}
	if !alloc.Holds(&GPU{Index: intPtr(0), Host: "n0"}) {
		t.Error("expected allocation to hold matching gpu by identity")
	}
	if alloc.Holds(&GPU{Index: intPtr(1), Host: "n0"}) {
		t.Error("expected allocation not to hold a different gpu")
	}
}
