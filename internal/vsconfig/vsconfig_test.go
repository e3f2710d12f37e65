package vsconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/vizstack/broker/internal/vserr"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadMasterConfigAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "masterConfig.xml")
	writeFile(t, path, `<masterconfig><host>broker0</host><port>50000</port></masterconfig>`)

	cfg, err := LoadMasterConfig(path)
	if err != nil {
		t.Fatalf("LoadMasterConfig: %v", err)
	}
	if cfg.Host != "broker0" || cfg.Port != 50000 {
		t.Fatalf("unexpected host/port: %+v", cfg)
	}
	if cfg.LocalSocketPath != "/tmp/vs-ssm-socket" {
		t.Fatalf("expected default socket path, got %q", cfg.LocalSocketPath)
	}
	if cfg.NodeConfigFile != DefaultNodeConfigFile {
		t.Fatalf("expected default node config file, got %q", cfg.NodeConfigFile)
	}
}

func TestLoadNodeConfigRejectsDuplicateHost(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nodeConfig.xml")
	writeFile(t, path, `<nodeconfig>
		<node host="n0"><gpu index="0" host="n0"/></node>
		<node host="n0"><gpu index="1" host="n0"/></node>
	</nodeconfig>`)

	_, err := LoadNodeConfig(path)
	ve, ok := vserr.As(err)
	if !ok || ve.Code != vserr.BadConfiguration {
		t.Fatalf("expected BAD_CONFIGURATION, got %v", err)
	}
}

func TestLoadNodeConfigParsesResources(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nodeConfig.xml")
	writeFile(t, path, `<nodeconfig>
		<node host="n0">
			<gpu index="0" host="n0" type="quadro"/>
			<gpu index="1" host="n0" type="quadro"/>
			<serverconfig display="0" host="n0"/>
		</node>
	</nodeconfig>`)

	nodes, err := LoadNodeConfig(path)
	if err != nil {
		t.Fatalf("LoadNodeConfig: %v", err)
	}
	if len(nodes) != 1 {
		t.Fatalf("expected 1 node, got %d", len(nodes))
	}
	n := nodes[0]
	if n.Host != "n0" || len(n.GPUs) != 2 || len(n.Servers) != 1 {
		t.Fatalf("unexpected node contents: %+v", n)
	}

	allocNodes := AllocatorNodes(nodes)
	if len(allocNodes) != 1 || allocNodes[0].Name != "n0" || len(allocNodes[0].GPUs) != 2 {
		t.Fatalf("unexpected allocator node conversion: %+v", allocNodes)
	}
}

func TestLoadResourceGroupsRejectsDuplicateName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "resourceGroups.xml")
	writeFile(t, path, `<resourcegroupconfig>
		<resourceGroup name="tiled-2x1" handler="tiled_display">
			<handlerParam key="num_blocks">2,1</handlerParam>
		</resourceGroup>
		<resourceGroup name="tiled-2x1" handler="tiled_display"/>
	</resourcegroupconfig>`)

	_, err := LoadResourceGroups(path)
	ve, ok := vserr.As(err)
	if !ok || ve.Code != vserr.BadConfiguration {
		t.Fatalf("expected BAD_CONFIGURATION, got %v", err)
	}
}

func TestLoadResourceGroupsParsesHandlerParams(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "resourceGroups.xml")
	writeFile(t, path, `<resourcegroupconfig>
		<resourceGroup name="tiled-2x1" handler="tiled_display">
			<handlerParam key="num_blocks">2,1</handlerParam>
			<handlerParam key="display_device">HP_LP2065</handlerParam>
		</resourceGroup>
	</resourcegroupconfig>`)

	catalog, err := LoadResourceGroups(path)
	if err != nil {
		t.Fatalf("LoadResourceGroups: %v", err)
	}
	rg, ok := catalog["tiled-2x1"]
	if !ok {
		t.Fatal("expected tiled-2x1 group in catalog")
	}
	if rg.Handler != "tiled_display" {
		t.Fatalf("unexpected handler: %q", rg.Handler)
	}
	if rg.HandlerParams["display_device"] != "HP_LP2065" {
		t.Fatalf("unexpected handler params: %+v", rg.HandlerParams)
	}
}

func TestLoadTemplateCatalogOverrideSupersedesShipped(t *testing.T) {
	shipped := t.TempDir()
	override := t.TempDir()

	writeFile(t, filepath.Join(shipped, "gpus", "quadro.xml"),
		`<gpu type="quadro"><vendor>nvidia</vendor><maxWidth>1920</maxWidth></gpu>`)
	writeFile(t, filepath.Join(override, "gpus", "quadro.xml"),
		`<gpu type="quadro"><vendor>nvidia</vendor><maxWidth>2560</maxWidth></gpu>`)

	cat, err := LoadTemplateCatalog(shipped, override)
	if err != nil {
		t.Fatalf("LoadTemplateCatalog: %v", err)
	}
	g, ok := cat.GPUs["quadro"]
	if !ok {
		t.Fatal("expected quadro template")
	}
	if g.MaxWidth != 2560 {
		t.Fatalf("expected override maxWidth 2560, got %d", g.MaxWidth)
	}
}

func TestParseDisplayRoundTrip(t *testing.T) {
	cases := []struct {
		in   string
		want Display
	}{
		{":0", Display{Host: "", Number: 0, Screen: 0}},
		{":0.1", Display{Host: "", Number: 0, Screen: 1}},
		{"node3:2.0", Display{Host: "node3", Number: 2, Screen: 0}},
	}
	for _, c := range cases {
		got, err := ParseDisplay(c.in)
		if err != nil {
			t.Fatalf("ParseDisplay(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("ParseDisplay(%q) = %+v, want %+v", c.in, got, c.want)
		}
	}
}

func TestParseDisplayRejectsMissingColon(t *testing.T) {
	if _, err := ParseDisplay("node3"); err == nil {
		t.Fatal("expected error for DISPLAY missing ':'")
	}
}
