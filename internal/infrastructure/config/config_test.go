package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_ValidConfig(t *testing.T) {
	// Create a temporary config file
	content := `
bridge:
  camera_id: "bench-camera"
camera:
  address: "192.168.0.69"
  xmlrpc_port: 80
  pcic_port: 50010
  schema_mask: 15
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "tofbridge-test"
  qos: 1
store:
  enabled: false
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Bridge.CameraID != "bench-camera" {
		t.Errorf("Bridge.CameraID = %q, want %q", cfg.Bridge.CameraID, "bench-camera")
	}

	if cfg.Camera.Address != "192.168.0.69" {
		t.Errorf("Camera.Address = %q, want %q", cfg.Camera.Address, "192.168.0.69")
	}

	if cfg.Camera.SchemaMask != 0xf {
		t.Errorf("Camera.SchemaMask = %#x, want 0xf", cfg.Camera.SchemaMask)
	}

	if cfg.MQTT.Broker.Host != "localhost" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "localhost")
	}

	// Unset sections keep their defaults
	if cfg.Camera.TimeoutMillis != 500 {
		t.Errorf("Camera.TimeoutMillis = %d, want default 500", cfg.Camera.TimeoutMillis)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
bridge:
  camera_id: ""
camera:
  address: ""
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected validation error, got nil")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	content := `
camera:
  address: "192.168.0.69"
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	t.Setenv("TOFBRIDGE_CAMERA_ADDRESS", "10.0.0.5")
	t.Setenv("TOFBRIDGE_MQTT_HOST", "broker.local")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Camera.Address != "10.0.0.5" {
		t.Errorf("Camera.Address = %q, want env override %q", cfg.Camera.Address, "10.0.0.5")
	}
	if cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("MQTT.Broker.Host = %q, want env override %q", cfg.MQTT.Broker.Host, "broker.local")
	}
}

func TestValidate_PortRanges(t *testing.T) {
	cfg := Default()
	cfg.Camera.PCICPort = 0

	if err := cfg.Validate(); err == nil {
		t.Error("Validate() expected error for pcic_port 0, got nil")
	}
}

func TestFrameTimeout(t *testing.T) {
	c := CameraConfig{TimeoutMillis: 500, TimeoutToleranceSecs: 4.0}

	got := c.FrameTimeout()
	want := 4500 * time.Millisecond
	if got != want {
		t.Errorf("FrameTimeout() = %v, want %v", got, want)
	}
}
