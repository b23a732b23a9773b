package config

import (
	"testing"

	"github.com/spf13/viper"

	"github.com/voidworks/bedrockd/internal/bedrock"
)

func TestLoadAppliesDefaults(t *testing.T) {
	v := viper.New()
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BindAddress != "0.0.0.0:19132" {
		t.Errorf("got bind address %q", cfg.BindAddress)
	}
	if cfg.CompressionAlgorithm() != bedrock.CompressionDeflate {
		t.Errorf("got compression %v", cfg.CompressionAlgorithm())
	}
}

func TestLoadHonorsOverrides(t *testing.T) {
	v := viper.New()
	v.Set("bind_address", "127.0.0.1:19133")
	v.Set("compression", "snappy")
	v.Set("compression_threshold", 512)

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BindAddress != "127.0.0.1:19133" {
		t.Errorf("got bind address %q", cfg.BindAddress)
	}
	if cfg.CompressionAlgorithm() != bedrock.CompressionSnappy {
		t.Errorf("got compression %v", cfg.CompressionAlgorithm())
	}
	if cfg.CompressionThreshold != 512 {
		t.Errorf("got threshold %d", cfg.CompressionThreshold)
	}
}

func TestCompressionAlgorithmDefaultsUnknownToDeflate(t *testing.T) {
	cfg := Defaults()
	cfg.Compression = "bogus"
	if cfg.CompressionAlgorithm() != bedrock.CompressionDeflate {
		t.Errorf("expected fallback to deflate, got %v", cfg.CompressionAlgorithm())
	}
}
