package config

import (
	"fmt"
	"net"
	"strings"
)

var validAuthSchemes = map[string]bool{
	"munge": true,
}

var validSchedulerKinds = map[string]bool{
	"local": true,
	"ssh":   true,
	"batch": true,
}

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

// Result is the outcome of tiered validation: Fatals block startup;
// Warnings are
// logged, and the offending field is clamped to a safe value in place,
// so the daemon can still start.
type Result struct {
	Fatals   []error
	Warnings []error
}

// HasFatals reports whether any fatal error was recorded.
func (r Result) HasFatals() bool { return len(r.Fatals) > 0 }

// ValidateTiered checks the config and partitions problems into fatal
// and warning-level, clamping warning-level fields to safe values.
func (c *Config) ValidateTiered() Result {
	var r Result

	if c.LocalSocketPath == "" && c.TCPListenAddr == "" {
		r.Fatals = append(r.Fatals, fmt.Errorf("at least one of local_socket_path or tcp_listen_addr must be set"))
	}

	if c.TCPListenAddr != "" {
		if _, _, err := net.SplitHostPort(c.TCPListenAddr); err != nil {
			r.Fatals = append(r.Fatals, fmt.Errorf("tcp_listen_addr %q is not a valid host:port: %w", c.TCPListenAddr, err))
		}
		scheme := strings.ToLower(c.AuthScheme)
		if !validAuthSchemes[scheme] {
			r.Fatals = append(r.Fatals, fmt.Errorf("auth_scheme %q is not a recognized scheme for the TCP endpoint (known: munge)", c.AuthScheme))
		}
	}

	if c.MasterConfigFile == "" {
		r.Fatals = append(r.Fatals, fmt.Errorf("master_config_file must be set"))
	}
	if c.NodeConfigFile == "" {
		r.Fatals = append(r.Fatals, fmt.Errorf("node_config_file must be set"))
	}

	if c.SchedulerKind != "" && !validSchedulerKinds[strings.ToLower(c.SchedulerKind)] {
		r.Warnings = append(r.Warnings, fmt.Errorf("scheduler_kind %q is not valid (use local, ssh, or batch), defaulting to local", c.SchedulerKind))
		c.SchedulerKind = "local"
	}

	if c.LogLevel != "" && !validLogLevels[strings.ToLower(c.LogLevel)] {
		r.Warnings = append(r.Warnings, fmt.Errorf("log_level %q is not valid (use debug, info, warn, error), defaulting to info", c.LogLevel))
		c.LogLevel = "info"
	}
	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		r.Warnings = append(r.Warnings, fmt.Errorf("log_format %q is not valid (use text or json), defaulting to text", c.LogFormat))
		c.LogFormat = "text"
	}

	// Clamp rate limits and timeouts to their fixed bounds:
	// at most one X-server start per host per interval, and
	// wait_x_state never blocks longer than 600s.
	if c.XServerStartIntervalSeconds < 1 {
		r.Warnings = append(r.Warnings, fmt.Errorf("x_server_start_interval_seconds %d is below minimum 1, clamping", c.XServerStartIntervalSeconds))
		c.XServerStartIntervalSeconds = 1
	}
	if c.WaitXStateMaxTimeoutSeconds < 1 {
		r.Warnings = append(r.Warnings, fmt.Errorf("wait_x_state_max_timeout_seconds %d is below minimum 1, clamping", c.WaitXStateMaxTimeoutSeconds))
		c.WaitXStateMaxTimeoutSeconds = 1
	} else if c.WaitXStateMaxTimeoutSeconds > 600 {
		r.Warnings = append(r.Warnings, fmt.Errorf("wait_x_state_max_timeout_seconds %d exceeds the 600s maximum, clamping", c.WaitXStateMaxTimeoutSeconds))
		c.WaitXStateMaxTimeoutSeconds = 600
	}

	if c.MaxConcurrentConnections < 1 {
		r.Warnings = append(r.Warnings, fmt.Errorf("max_concurrent_connections %d is below minimum 1, clamping", c.MaxConcurrentConnections))
		c.MaxConcurrentConnections = 1
	} else if c.MaxConcurrentConnections > 10000 {
		r.Warnings = append(r.Warnings, fmt.Errorf("max_concurrent_connections %d exceeds maximum 10000, clamping", c.MaxConcurrentConnections))
		c.MaxConcurrentConnections = 10000
	}

	if c.CommandQueueSize < 1 {
		r.Warnings = append(r.Warnings, fmt.Errorf("command_queue_size %d is below minimum 1, clamping", c.CommandQueueSize))
		c.CommandQueueSize = 1
	} else if c.CommandQueueSize > 10000 {
		r.Warnings = append(r.Warnings, fmt.Errorf("command_queue_size %d exceeds maximum 10000, clamping", c.CommandQueueSize))
		c.CommandQueueSize = 10000
	}

	if c.AuditMaxSizeMB <= 0 {
		c.AuditMaxSizeMB = 50
	}
	if c.AuditMaxBackups <= 0 {
		c.AuditMaxBackups = 3
	}

	return r
}
