package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spaghettifunk/anima-forward/engine/renderer/driver"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	fwd := cfg.Forward()
	if fwd.DepthCompare != driver.CompareLess {
		t.Errorf("DepthCompare = %v, want less", fwd.DepthCompare)
	}
	if fwd.FenceTimeout != driver.WaitForever {
		t.Errorf("FenceTimeout = %v, want forever", fwd.FenceTimeout)
	}
}

func TestParseOverridesDefaults(t *testing.T) {
	data := `
[application]
name = "cubes"
start_width = 800
start_height = 600

[renderer]
clear_color = [0.0, 0.0, 0.0, 1.0]
depth_compare = "greater_or_equal"
fence_timeout = "250ms"
max_binding_sets = 8
upload_in_frame = true

[log]
level = "debug"
`
	cfg, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Application.Name != "cubes" || cfg.Application.StartWidth != 800 || cfg.Application.StartHeight != 600 {
		t.Errorf("application = %+v", cfg.Application)
	}
	// Untouched keys keep their defaults.
	if cfg.Application.StartPosX != 100 {
		t.Errorf("StartPosX = %d, want default 100", cfg.Application.StartPosX)
	}
	if cfg.Renderer.VertexShader != Default().Renderer.VertexShader {
		t.Errorf("VertexShader = %q", cfg.Renderer.VertexShader)
	}
	if !cfg.Renderer.UploadInFrame {
		t.Error("UploadInFrame = false")
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}

	fwd := cfg.Forward()
	if fwd.DepthCompare != driver.CompareGreaterOrEqual {
		t.Errorf("DepthCompare = %v", fwd.DepthCompare)
	}
	if got := fwd.DepthCompare.DepthClear(); got != 0 {
		t.Errorf("DepthClear = %v, want 0 for greater_or_equal", got)
	}
	if fwd.FenceTimeout != 250*time.Millisecond {
		t.Errorf("FenceTimeout = %v", fwd.FenceTimeout)
	}
	if fwd.MaxBindingSets != 8 {
		t.Errorf("MaxBindingSets = %d", fwd.MaxBindingSets)
	}
	if fwd.ClearColor != [4]float32{0, 0, 0, 1} {
		t.Errorf("ClearColor = %v", fwd.ClearColor)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"empty window", "[application]\nstart_width = 0\n", "window size"},
		{"unknown compare", "[renderer]\ndepth_compare = \"always\"\n", "always"},
		{"clear out of range", "[renderer]\nclear_color = [2.0, 0.0, 0.0, 1.0]\n", "clear_color[0]"},
		{"no binding sets", "[renderer]\nmax_binding_sets = 0\n", "max_binding_sets"},
		{"no textures", "[renderer]\nmax_textures = 0\n", "max_textures"},
		{"missing shader", "[renderer]\nfragment_shader = \"\"\n", "shader"},
		{"bad timeout", "[renderer]\nfence_timeout = \"soon\"\n", "soon"},
		{"bad syntax", "[renderer\n", "line "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			if err == nil {
				t.Fatal("Parse succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(filepath.Join(dir, "missing.toml"))
	if err != nil {
		t.Fatalf("Load(missing) = %v", err)
	}
	if cfg.Application.Name != Default().Application.Name {
		t.Errorf("missing file did not yield defaults: %+v", cfg.Application)
	}

	path := filepath.Join(dir, "anima.toml")
	if err := os.WriteFile(path, []byte("[assets]\ndir = \"data\"\nwatch = true\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err = Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Assets.Dir != "data" || !cfg.Assets.Watch {
		t.Errorf("assets = %+v", cfg.Assets)
	}
}
