package vsconfig

import (
	"encoding/xml"
	"os"

	"github.com/vizstack/broker/internal/vserr"
)

// MasterConfig is the parsed masterConfigFile: where the broker listens,
// which auth scheme the TCP endpoint requires, and where its two sibling
// configuration files live.
type MasterConfig struct {
	XMLName xml.Name `xml:"masterconfig"`

	Host string `xml:"host,omitempty"`
	Port int    `xml:"port,omitempty"`

	LocalSocketPath string `xml:"localSocketPath,omitempty"`
	AuthScheme      string `xml:"authScheme,omitempty"`

	NodeConfigFile string `xml:"nodeConfigFile,omitempty"`
	RGConfigFile   string `xml:"rgConfigFile,omitempty"`
}

// defaults fills in the shipped default paths for any field left
// unset in the XML document.
func (c *MasterConfig) defaults() {
	if c.LocalSocketPath == "" {
		c.LocalSocketPath = "/tmp/vs-ssm-socket"
	}
	if c.NodeConfigFile == "" {
		c.NodeConfigFile = DefaultNodeConfigFile
	}
	if c.RGConfigFile == "" {
		c.RGConfigFile = DefaultRGConfigFile
	}
}

// LoadMasterConfig parses the master configuration file.
func LoadMasterConfig(path string) (*MasterConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, vserr.Newf(vserr.BadConfiguration, "read master config %s: %v", path, err)
	}

	var cfg MasterConfig
	if err := xml.Unmarshal(data, &cfg); err != nil {
		return nil, vserr.Newf(vserr.BadConfiguration, "parse master config %s: %v", path, err)
	}
	cfg.defaults()
	return &cfg, nil
}
