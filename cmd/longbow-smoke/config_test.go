package main

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestValidateConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := ValidateConfig(&cfg); err != nil {
		t.Errorf("ValidateConfig() error = %v, want nil", err)
	}
}

func TestValidateConfig_Sentinels(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"empty addr", func(c *Config) { c.Addr = "" }, ErrInvalidAddr},
		{"zero nb", func(c *Config) { c.NB = 0 }, ErrInvalidNB},
		{"negative dim", func(c *Config) { c.Dim = -8 }, ErrInvalidDim},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, ErrInvalidTimeout},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, ErrInvalidLogFormat},
		{"bad log level", func(c *Config) { c.LogLevel = "trace" }, ErrInvalidLogLevel},
		{"zero keepalive", func(c *Config) { c.KeepAliveTime = 0 }, ErrInvalidKeepAliveTime},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := ValidateConfig(&cfg); err != tt.want {
				t.Errorf("ValidateConfig() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestValidateConfig_EmbeddedWithoutAddr(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Addr = ""
	cfg.Embedded = true
	if err := ValidateConfig(&cfg); err != nil {
		t.Errorf("ValidateConfig() error = %v, want nil", err)
	}
}

func TestValidateConfig_SmokeSettings(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Only = []string{"no_such_routine"}
	if err := ValidateConfig(&cfg); err == nil {
		t.Error("ValidateConfig() accepted an unknown routine")
	}

	cfg = DefaultConfig()
	cfg.Dim = 12
	if err := ValidateConfig(&cfg); err == nil {
		t.Error("ValidateConfig() accepted a binary run with dim 12")
	}
	cfg.Only = []string{"create_collection"}
	if err := ValidateConfig(&cfg); err != nil {
		t.Errorf("ValidateConfig() error = %v, want nil without the binary routine", err)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	def := DefaultConfig()
	if cfg.Addr != def.Addr || cfg.NB != def.NB || cfg.Dim != def.Dim || cfg.Timeout != def.Timeout {
		t.Errorf("LoadConfig() = %+v, want defaults %+v", cfg, def)
	}
	if cfg.GRPCMaxRecvMsgSize != def.GRPCMaxRecvMsgSize || cfg.KeepAliveTime != def.KeepAliveTime {
		t.Errorf("LoadConfig() gRPC settings = %+v, want defaults", cfg)
	}
}

func TestLoadConfig_Environment(t *testing.T) {
	t.Setenv("LONGBOW_SMOKE_NB", "500")
	t.Setenv("LONGBOW_SMOKE_TIMEOUT", "30s")
	t.Setenv("LONGBOW_SMOKE_ONLY", "create_collection,specify_primary_key")
	t.Setenv("LONGBOW_SMOKE_EMBEDDED", "true")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.NB != 500 {
		t.Errorf("NB = %d, want 500", cfg.NB)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", cfg.Timeout)
	}
	if want := []string{"create_collection", "specify_primary_key"}; !reflect.DeepEqual(cfg.Only, want) {
		t.Errorf("Only = %v, want %v", cfg.Only, want)
	}
	if !cfg.Embedded {
		t.Error("Embedded = false, want true")
	}
}

func TestLoadConfig_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("LONGBOW_SMOKE_DIM=64\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	// Register the variable for restoration, then clear it so the file wins.
	t.Setenv("LONGBOW_SMOKE_DIM", "0")
	if err := os.Unsetenv("LONGBOW_SMOKE_DIM"); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Dim != 64 {
		t.Errorf("Dim = %d, want 64", cfg.Dim)
	}
}

func TestLoadConfig_MissingEnvFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Errorf("LoadConfig() error = %v, want nil for a missing file", err)
	}
}

func TestLoadConfig_BadValue(t *testing.T) {
	t.Setenv("LONGBOW_SMOKE_NB", "many")
	if _, err := LoadConfig(""); err == nil {
		t.Error("LoadConfig() accepted a non-numeric nb")
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"a", []string{"a"}},
		{" a , ,b ", []string{"a", "b"}},
	}
	for _, tt := range tests {
		if got := splitList(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitList(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSmokeConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Seed = 7
	cfg.DumpDir = "/tmp/dumps"
	sc := cfg.SmokeConfig()
	if sc.NB != cfg.NB || sc.Dim != cfg.Dim || sc.Seed != 7 || sc.DumpDir != "/tmp/dumps" || sc.Timeout != cfg.Timeout {
		t.Errorf("SmokeConfig() = %+v, does not mirror %+v", sc, cfg)
	}
}
