package config

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSetDefaults(t *testing.T) {
	var c ServerConfig
	c.SetDefaults()
	if c.Port != 8080 || c.LogLevel != "info" || c.DrainTimeout != 30*time.Second {
		t.Fatalf("unexpected defaults: %#v", c)
	}
	if !strings.HasPrefix(c.InstanceID, "python-script-processor-") || len(c.InstanceID) != len("python-script-processor-")+8 {
		t.Fatalf("instance id = %q", c.InstanceID)
	}
	if !c.MetricsOnAPIPort() {
		t.Fatalf("metrics should default to the API port")
	}
}

func TestPrecedenceFileEnvFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processor.yaml")
	data := "port: 9000\nlog_level: debug\nredis_addr: redis://file:6379/0\ndrain_timeout: 45s\nallowed_origins: [\"http://a\"]\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("REDIS_ADDR", "redis://env:6379/1")
	t.Setenv("METRICS_PORT", "9100")
	t.Setenv("ALLOWED_ORIGINS", "http://b, http://c,")

	var c ServerConfig
	c.SetDefaults()
	c.ApplyEnv()
	if c.ConfigFile != path {
		t.Fatalf("config file = %q", c.ConfigFile)
	}
	if err := c.LoadFile(c.ConfigFile); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if c.Port != 9000 || c.DrainTimeout != 45*time.Second || c.RedisAddr != "redis://file:6379/0" {
		t.Fatalf("file values not applied: %#v", c)
	}
	c.ApplyEnv()
	if c.RedisAddr != "redis://env:6379/1" {
		t.Fatalf("env should override file, got %q", c.RedisAddr)
	}
	if c.MetricsAddr != ":9100" || c.MetricsOnAPIPort() {
		t.Fatalf("metrics addr = %q", c.MetricsAddr)
	}
	if len(c.AllowedOrigins) != 2 || c.AllowedOrigins[0] != "http://b" || c.AllowedOrigins[1] != "http://c" {
		t.Fatalf("allowed origins = %v", c.AllowedOrigins)
	}

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.BindFlags(fs)
	if err := fs.Parse([]string{"--port", "7000", "--log-level", "warn", "--metrics-port", "127.0.0.1:9200"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.Port != 7000 || c.LogLevel != "warn" || c.MetricsAddr != "127.0.0.1:9200" {
		t.Fatalf("flags not applied: %#v", c)
	}
	if c.RedisAddr != "redis://env:6379/1" {
		t.Fatalf("unset flag should keep env value, got %q", c.RedisAddr)
	}
}

func TestLoadFileMissing(t *testing.T) {
	var c ServerConfig
	err := c.LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	if !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestMetricsListenAddrFallback(t *testing.T) {
	c := ServerConfig{Port: 8081}
	if c.MetricsListenAddr() != ":8081" || !c.MetricsOnAPIPort() {
		t.Fatalf("unexpected metrics addr %q", c.MetricsListenAddr())
	}
}
