package config

import "testing"

func baseValidConfig() *Config {
	cfg := Default()
	cfg.LocalSocketPath = "/tmp/vs-ssm-socket"
	return cfg
}

func TestValidateTieredNoEndpointIsFatal(t *testing.T) {
	cfg := baseValidConfig()
	cfg.LocalSocketPath = ""
	cfg.TCPListenAddr = ""
	result := cfg.ValidateTiered()
	if !result.HasFatals() {
		t.Fatal("expected fatal with no endpoint configured")
	}
}

func TestValidateTieredBadTCPAddrIsFatal(t *testing.T) {
	cfg := baseValidConfig()
	cfg.TCPListenAddr = "not-a-host-port"
	result := cfg.ValidateTiered()
	if !result.HasFatals() {
		t.Fatal("expected fatal for malformed tcp_listen_addr")
	}
}

func TestValidateTieredUnknownAuthSchemeIsFatal(t *testing.T) {
	cfg := baseValidConfig()
	cfg.TCPListenAddr = "0.0.0.0:5100"
	cfg.AuthScheme = "kerberos"
	result := cfg.ValidateTiered()
	if !result.HasFatals() {
		t.Fatal("expected fatal for unrecognized auth scheme")
	}
}

func TestValidateTieredMissingMasterConfigIsFatal(t *testing.T) {
	cfg := baseValidConfig()
	cfg.MasterConfigFile = ""
	result := cfg.ValidateTiered()
	if !result.HasFatals() {
		t.Fatal("expected fatal for missing master_config_file")
	}
}

func TestValidateTieredXServerIntervalClamping(t *testing.T) {
	cfg := baseValidConfig()
	cfg.XServerStartIntervalSeconds = 0
	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatal("clamped interval should only warn")
	}
	if cfg.XServerStartIntervalSeconds != 1 {
		t.Fatalf("expected clamp to 1, got %d", cfg.XServerStartIntervalSeconds)
	}
}

func TestValidateTieredWaitXStateTimeoutClamping(t *testing.T) {
	cfg := baseValidConfig()
	cfg.WaitXStateMaxTimeoutSeconds = 10000
	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatal("clamped timeout should only warn")
	}
	if cfg.WaitXStateMaxTimeoutSeconds != 600 {
		t.Fatalf("expected clamp to 600, got %d", cfg.WaitXStateMaxTimeoutSeconds)
	}
}

func TestValidateTieredConcurrencyClamping(t *testing.T) {
	cfg := baseValidConfig()
	cfg.MaxConcurrentConnections = 0
	cfg.CommandQueueSize = 99999
	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatal("clamped concurrency should only warn")
	}
	if cfg.MaxConcurrentConnections != 1 {
		t.Fatalf("expected clamp to 1, got %d", cfg.MaxConcurrentConnections)
	}
	if cfg.CommandQueueSize != 10000 {
		t.Fatalf("expected clamp to 10000, got %d", cfg.CommandQueueSize)
	}
}

func TestValidateTieredUnknownLogLevelIsWarning(t *testing.T) {
	cfg := baseValidConfig()
	cfg.LogLevel = "verbose"
	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatal("unknown log level should only warn")
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("expected default to info, got %q", cfg.LogLevel)
	}
}

func TestHasFatals(t *testing.T) {
	var r Result
	if r.HasFatals() {
		t.Fatal("HasFatals() on empty result should be false")
	}
	r.Fatals = append(r.Fatals, nil)
	if !r.HasFatals() {
		t.Fatal("HasFatals() should be true with a fatal error")
	}
}

func TestValidConfigHasNoFatals(t *testing.T) {
	cfg := baseValidConfig()
	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatalf("expected no fatals for a valid config, got %v", result.Fatals)
	}
}
