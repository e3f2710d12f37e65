// Package config loads the broker's own ambient settings: which
// endpoints to listen on, how to authenticate the TCP one, where the
// domain inventory config files live, logging, and the rate-limit and
// concurrency knobs. This is distinct
// from internal/vsconfig, which loads the VizStack resource inventory
// itself (masterConfigFile/nodeConfigFile/rgConfigFile contents) — this
// package only knows their paths.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/vizstack/broker/internal/logging"
)

var log = logging.L("config")

// Config is the broker daemon's ambient configuration, loaded once at
// startup from a YAML file, environment variables (VIZSTACK_ prefix),
// and flags, in viper's usual precedence order.
type Config struct {
	// Transport endpoints. At least one must be set.
	LocalSocketPath string `mapstructure:"local_socket_path" yaml:"local_socket_path"`
	TCPListenAddr   string `mapstructure:"tcp_listen_addr" yaml:"tcp_listen_addr,omitempty"`

	// AuthScheme names the envelope wrapping frames on the TCP endpoint.
	// The only defined scheme is "munge".
	AuthScheme      string `mapstructure:"auth_scheme" yaml:"auth_scheme"`
	MungeSecretFile string `mapstructure:"munge_secret_file" yaml:"munge_secret_file,omitempty"`

	// Domain inventory configuration (internal/vsconfig).
	MasterConfigFile    string `mapstructure:"master_config_file" yaml:"master_config_file"`
	NodeConfigFile      string `mapstructure:"node_config_file" yaml:"node_config_file"`
	RGConfigFile        string `mapstructure:"rg_config_file" yaml:"rg_config_file"`
	TemplateDir         string `mapstructure:"template_dir" yaml:"template_dir"`
	TemplateOverrideDir string `mapstructure:"template_override_dir" yaml:"template_override_dir"`

	// Logging
	LogLevel      string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat     string `mapstructure:"log_format" yaml:"log_format"`
	LogFile       string `mapstructure:"log_file" yaml:"log_file,omitempty"`
	LogMaxSizeMB  int    `mapstructure:"log_max_size_mb" yaml:"log_max_size_mb"`
	LogMaxBackups int    `mapstructure:"log_max_backups" yaml:"log_max_backups"`

	// SchedulerKind selects how internal/scheduler reserves every
	// configured node: "local" (direct fork/exec), "ssh", or "batch"
	// (salloc/scancel). The resource model has no per-node scheduler
	// attribute, so one kind applies cluster-wide.
	SchedulerKind    string `mapstructure:"scheduler_kind" yaml:"scheduler_kind"`
	SchedulerSSHUser string `mapstructure:"scheduler_ssh_user" yaml:"scheduler_ssh_user,omitempty"`

	// Concurrency and rate limits.
	MaxConcurrentConnections    int `mapstructure:"max_concurrent_connections" yaml:"max_concurrent_connections"`
	CommandQueueSize            int `mapstructure:"command_queue_size" yaml:"command_queue_size"`
	XServerStartIntervalSeconds int `mapstructure:"x_server_start_interval_seconds" yaml:"x_server_start_interval_seconds"`
	WaitXStateMaxTimeoutSeconds int `mapstructure:"wait_x_state_max_timeout_seconds" yaml:"wait_x_state_max_timeout_seconds"`

	// Audit
	AuditEnabled    bool `mapstructure:"audit_enabled" yaml:"audit_enabled"`
	AuditMaxSizeMB  int  `mapstructure:"audit_max_size_mb" yaml:"audit_max_size_mb"`
	AuditMaxBackups int  `mapstructure:"audit_max_backups" yaml:"audit_max_backups"`

	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`
}

// Default returns the configuration the daemon runs with when no file,
// env var, or flag overrides a field.
func Default() *Config {
	return &Config{
		LocalSocketPath: "/tmp/vs-ssm-socket",
		AuthScheme:      "munge",

		MasterConfigFile:    "/etc/vizstack/masterConfig.xml",
		NodeConfigFile:      "/etc/vizstack/nodeConfig.xml",
		RGConfigFile:        "/etc/vizstack/resourceGroups.xml",
		TemplateDir:         "/opt/vizstack/share/templates",
		TemplateOverrideDir: "/etc/vizstack/templates",

		SchedulerKind: "local",

		LogLevel:      "info",
		LogFormat:     "text",
		LogMaxSizeMB:  50,
		LogMaxBackups: 3,

		MaxConcurrentConnections:    256,
		CommandQueueSize:            100,
		XServerStartIntervalSeconds: 5,
		WaitXStateMaxTimeoutSeconds: 600,

		AuditEnabled:    true,
		AuditMaxSizeMB:  50,
		AuditMaxBackups: 3,

		DataDir: GetDataDir(),
	}
}

// Load reads configuration from cfgFile (or the platform default search
// path when cfgFile is empty), overlays environment variables and
// already-set flags, and runs tiered validation. Fatal validation
// errors block startup; warnings are logged and the clamped value is
// kept.
func Load(cfgFile string) (*Config, error) {
	cfg := Default()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("vizstackd")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(configDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("VIZSTACK")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}

	result := cfg.ValidateTiered()
	for _, err := range result.Warnings {
		log.Warn("config validation", "error", err)
	}
	if result.HasFatals() {
		for _, err := range result.Fatals {
			log.Error("config validation fatal", "error", err)
		}
		return nil, fmt.Errorf("config has fatal validation errors: %v", result.Fatals[0])
	}

	return cfg, nil
}

// Save writes cfg as YAML to cfgFile (or the platform default path when
// empty), creating the directory if needed. The file is restricted to
// owner access; it can name the munge secret file.
func Save(cfg *Config, cfgFile string) error {
	cfgPath := cfgFile
	if cfgPath == "" {
		cfgPath = filepath.Join(configDir(), "vizstackd.yaml")
	}
	if dir := filepath.Dir(cfgPath); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return err
		}
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(cfgPath, data, 0600)
}

// GetDataDir returns the platform-specific directory for broker
// runtime state (audit log, pid file).
func GetDataDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "VizStack", "data")
	case "darwin":
		return "/Library/Application Support/VizStack/data"
	default:
		return "/var/lib/vizstack"
	}
}

func configDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "VizStack")
	case "darwin":
		return "/Library/Application Support/VizStack"
	default:
		return "/etc/vizstack"
	}
}
