package core

import (
	"bytes"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

type WindowConfig struct {
	Title  string `toml:"title"`
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
	PosX   uint32 `toml:"pos_x"`
	PosY   uint32 `toml:"pos_y"`
}

type RendererConfig struct {
	FramesInFlight uint32     `toml:"frames_in_flight"`
	ShadowMapSize  uint32     `toml:"shadow_map_size"`
	FenceTimeoutMS uint32     `toml:"fence_timeout_ms"`
	Validation     bool       `toml:"validation"`
	ShadowCull     string     `toml:"shadow_cull"`
	ClearColor     [4]float32 `toml:"clear_color"`
}

type ShadingConfig struct {
	Radius          float32    `toml:"radius"`
	Translucency    float32    `toml:"translucency"`
	ShadowBias      float32    `toml:"shadow_bias"`
	Distortion      float32    `toml:"distortion"`
	Power           float32    `toml:"power"`
	Ambient         float32    `toml:"ambient"`
	Attenuation     float32    `toml:"attenuation"`
	Albedo          [3]float32 `toml:"albedo"`
	SubsurfaceColor [3]float32 `toml:"subsurface_color"`
}

type LightConfig struct {
	AngularRate float32    `toml:"angular_rate"`
	Height      float32    `toml:"height"`
	Target      [3]float32 `toml:"target"`
	FovY        float32    `toml:"fov_y"`
	Near        float32    `toml:"near"`
	Far         float32    `toml:"far"`
}

type CameraConfig struct {
	FovY        float32    `toml:"fov_y"`
	Near        float32    `toml:"near"`
	Far         float32    `toml:"far"`
	Target      [3]float32 `toml:"target"`
	Distance    float32    `toml:"distance"`
	RotateSpeed float32    `toml:"rotate_speed"`
	ZoomSpeed   float32    `toml:"zoom_speed"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type Config struct {
	Window   WindowConfig   `toml:"window"`
	Renderer RendererConfig `toml:"renderer"`
	Shading  ShadingConfig  `toml:"shading"`
	Light    LightConfig    `toml:"light"`
	Camera   CameraConfig   `toml:"camera"`
	Log      LogConfig      `toml:"log"`
}

func DefaultConfig() *Config {
	return &Config{
		Window: WindowConfig{
			Title:  "Subsurface Scattering",
			Width:  1600,
			Height: 900,
			PosX:   100,
			PosY:   100,
		},
		Renderer: RendererConfig{
			FramesInFlight: 2,
			ShadowMapSize:  2048,
			FenceTimeoutMS: 5000,
			Validation:     true,
			ShadowCull:     "back",
			ClearColor:     [4]float32{0.02, 0.02, 0.03, 1.0},
		},
		Shading: DefaultShadingConfig(),
		Light: LightConfig{
			AngularRate: 1.0,
			Height:      0.2,
			Target:      [3]float32{0, 0.3, 0},
			FovY:        40,
			Near:        0.1,
			Far:         3,
		},
		Camera: CameraConfig{
			FovY:        60,
			Near:        0.01,
			Far:         50,
			Target:      [3]float32{0, 0.2, 0},
			Distance:    1.0,
			RotateSpeed: 0.005,
			ZoomSpeed:   0.1,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func DefaultShadingConfig() ShadingConfig {
	return ShadingConfig{
		Radius:          0.08,
		Translucency:    1.2,
		ShadowBias:      0.0015,
		Distortion:      0.2,
		Power:           4.0,
		Ambient:         0.1,
		Attenuation:     0.5,
		Albedo:          [3]float32{0.9, 0.85, 0.8},
		SubsurfaceColor: [3]float32{1.0, 0.35, 0.2},
	}
}

// LoadConfig reads path on top of the defaults. An empty path returns the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		err := fmt.Errorf("failed to read config file `%s`: %w", path, err)
		LogError(err.Error())
		return nil, err
	}
	if err := ParseConfig(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseConfig decodes data into cfg, keeping the values already present for missing keys.
func ParseConfig(data []byte, cfg *Config) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		err := fmt.Errorf("%w: %s", ErrInvalidConfig, err)
		LogError(err.Error())
		return err
	}
	return cfg.Validate()
}

// ParseShading decodes only the [shading] table of a config document.
func ParseShading(data []byte) (ShadingConfig, error) {
	doc := struct {
		Shading ShadingConfig `toml:"shading"`
	}{
		Shading: DefaultShadingConfig(),
	}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return ShadingConfig{}, fmt.Errorf("%w: %s", ErrInvalidConfig, err)
	}
	if err := doc.Shading.Validate(); err != nil {
		return ShadingConfig{}, err
	}
	return doc.Shading, nil
}

func (c *Config) Validate() error {
	r := c.Renderer
	if r.FramesInFlight < 1 || r.FramesInFlight > 3 {
		return fmt.Errorf("%w: renderer.frames_in_flight must be in [1,3], got %d", ErrInvalidConfig, r.FramesInFlight)
	}
	if r.ShadowMapSize < 256 || r.ShadowMapSize > 8192 || r.ShadowMapSize&(r.ShadowMapSize-1) != 0 {
		return fmt.Errorf("%w: renderer.shadow_map_size must be a power of two in [256,8192], got %d", ErrInvalidConfig, r.ShadowMapSize)
	}
	if r.FenceTimeoutMS == 0 {
		return fmt.Errorf("%w: renderer.fence_timeout_ms must be positive", ErrInvalidConfig)
	}
	if r.ShadowCull != "back" && r.ShadowCull != "none" {
		return fmt.Errorf("%w: renderer.shadow_cull must be `back` or `none`, got `%s`", ErrInvalidConfig, r.ShadowCull)
	}
	if c.Window.Width == 0 || c.Window.Height == 0 {
		return fmt.Errorf("%w: window size must be non-zero", ErrInvalidConfig)
	}
	for name, fov := range map[string]float32{"camera.fov_y": c.Camera.FovY, "light.fov_y": c.Light.FovY} {
		if fov <= 0 || fov >= 180 {
			return fmt.Errorf("%w: %s must be in (0,180), got %g", ErrInvalidConfig, name, fov)
		}
	}
	if c.Camera.Near <= 0 || c.Camera.Far <= c.Camera.Near {
		return fmt.Errorf("%w: camera near/far must satisfy 0 < near < far", ErrInvalidConfig)
	}
	if c.Light.Near <= 0 || c.Light.Far <= c.Light.Near {
		return fmt.Errorf("%w: light near/far must satisfy 0 < near < far", ErrInvalidConfig)
	}
	return c.Shading.Validate()
}

func (s ShadingConfig) Validate() error {
	if s.Radius <= 0 {
		return fmt.Errorf("%w: shading.radius must be positive", ErrInvalidConfig)
	}
	if s.Translucency < 0 || s.ShadowBias < 0 || s.Power <= 0 || s.Attenuation < 0 {
		return fmt.Errorf("%w: shading coefficients out of range", ErrInvalidConfig)
	}
	return nil
}
