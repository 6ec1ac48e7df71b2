// Package config loads the engine settings from a TOML file. Missing keys
// keep their defaults.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/anima-forward/engine/renderer/driver"
	"github.com/spaghettifunk/anima-forward/engine/renderer/forward"
)

type ApplicationConfig struct {
	// The application name used in windowing, if applicable.
	Name string `toml:"name"`
	// Window starting position x axis, if applicable.
	StartPosX uint32 `toml:"start_pos_x"`
	// Window starting position y axis, if applicable.
	StartPosY uint32 `toml:"start_pos_y"`
	// Window starting width, if applicable.
	StartWidth uint32 `toml:"start_width"`
	// Window starting height, if applicable.
	StartHeight uint32 `toml:"start_height"`
}

type RendererConfig struct {
	VertexShader   string     `toml:"vertex_shader"`
	FragmentShader string     `toml:"fragment_shader"`
	ClearColor     [4]float32 `toml:"clear_color"`
	// less, less_or_equal, greater or greater_or_equal. The depth clear
	// value follows from it.
	DepthCompare string `toml:"depth_compare"`
	// Zero waits forever.
	FenceTimeout   Duration `toml:"fence_timeout"`
	MaxBindingSets uint32   `toml:"max_binding_sets"`
	MaxTextures    uint32   `toml:"max_textures"`
	// Record texture uploads into the next frame instead of waiting for
	// them at load time.
	UploadInFrame bool `toml:"upload_in_frame"`
	Validation    bool `toml:"validation"`
}

type AssetsConfig struct {
	Dir      string   `toml:"dir"`
	Textures []string `toml:"textures"`
	// Reload textures rewritten on disk.
	Watch bool `toml:"watch"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type EngineConfig struct {
	Application ApplicationConfig `toml:"application"`
	Renderer    RendererConfig    `toml:"renderer"`
	Assets      AssetsConfig      `toml:"assets"`
	Log         LogConfig         `toml:"log"`
}

// Duration reads "2s" style strings.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	if len(text) == 0 || string(text) == "0" {
		d.Duration = 0
		return nil
	}
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func Default() *EngineConfig {
	fwd := forward.DefaultConfig()
	return &EngineConfig{
		Application: ApplicationConfig{
			Name:        "Anima Forward",
			StartPosX:   100,
			StartPosY:   100,
			StartWidth:  1280,
			StartHeight: 720,
		},
		Renderer: RendererConfig{
			VertexShader:   fwd.VertexShader,
			FragmentShader: fwd.FragmentShader,
			ClearColor:     fwd.ClearColor,
			DepthCompare:   fwd.DepthCompare.String(),
			FenceTimeout:   Duration{fwd.FenceTimeout},
			MaxBindingSets: fwd.MaxBindingSets,
			MaxTextures:    1024,
		},
		Assets: AssetsConfig{
			Dir: "assets",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads path on top of the defaults. A missing file is not an error.
func Load(path string) (*EngineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := Default()
			return cfg, cfg.Validate()
		}
		return nil, errors.Wrapf(err, "reading config `%s`", path)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "config `%s`", path)
	}
	return cfg, nil
}

func Parse(data []byte) (*EngineConfig, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, errors.Wrapf(err, "line %d column %d", row, col)
		}
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *EngineConfig) Validate() error {
	if c.Application.StartWidth == 0 || c.Application.StartHeight == 0 {
		return errors.Newf("application: window size %dx%d is empty", c.Application.StartWidth, c.Application.StartHeight)
	}
	r := c.Renderer
	if r.VertexShader == "" || r.FragmentShader == "" {
		return errors.New("renderer: both shader paths are required")
	}
	for i, v := range r.ClearColor {
		if v < 0 || v > 1 {
			return errors.Newf("renderer: clear_color[%d] = %g is outside [0,1]", i, v)
		}
	}
	if _, err := driver.ParseCompareOp(r.DepthCompare); err != nil {
		return errors.Wrap(err, "renderer")
	}
	if r.FenceTimeout.Duration < 0 {
		return errors.Newf("renderer: negative fence_timeout %s", r.FenceTimeout)
	}
	if r.MaxBindingSets == 0 {
		return errors.New("renderer: max_binding_sets must be > 0")
	}
	if r.MaxTextures == 0 {
		return errors.New("renderer: max_textures must be > 0")
	}
	return nil
}

// Forward is the renderer part of the configuration.
func (c *EngineConfig) Forward() forward.Config {
	cmp, _ := driver.ParseCompareOp(c.Renderer.DepthCompare)
	cfg := forward.DefaultConfig()
	cfg.VertexShader = c.Renderer.VertexShader
	cfg.FragmentShader = c.Renderer.FragmentShader
	cfg.ClearColor = c.Renderer.ClearColor
	cfg.DepthCompare = cmp
	cfg.FenceTimeout = c.Renderer.FenceTimeout.Duration
	cfg.MaxBindingSets = c.Renderer.MaxBindingSets
	return cfg
}
