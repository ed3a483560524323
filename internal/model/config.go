package model

import (
	"fmt"

	"github.com/radiant-data/gaussnerf/internal/field"
)

// Config is the JSON configuration for the model layer. The embedded field
// config travels with it so one file configures a whole run.
type Config struct {
	Field *field.Config `json:"field,omitempty"`

	NearPlane       *float64 `json:"near_plane,omitempty"`
	FarPlane        *float64 `json:"far_plane,omitempty"`
	RenderStepSize  *float64 `json:"render_step_size,omitempty"`
	ConeAngle       *float64 `json:"cone_angle,omitempty"`
	BackgroundColor *string  `json:"background_color,omitempty"`
}

// Validate checks the model knobs and the embedded field config.
func (c *Config) Validate() error {
	if c.Field != nil {
		if err := c.Field.Validate(); err != nil {
			return err
		}
	}
	if c.NearPlane != nil && *c.NearPlane < 0 {
		return fmt.Errorf("near_plane must be non-negative, got %f", *c.NearPlane)
	}
	if c.FarPlane != nil && c.NearPlane != nil && *c.FarPlane <= *c.NearPlane {
		return fmt.Errorf("far_plane %f must exceed near_plane %f", *c.FarPlane, *c.NearPlane)
	}
	if c.RenderStepSize != nil && *c.RenderStepSize <= 0 {
		return fmt.Errorf("render_step_size must be positive, got %f", *c.RenderStepSize)
	}
	if c.ConeAngle != nil && *c.ConeAngle < 0 {
		return fmt.Errorf("cone_angle must be non-negative, got %f", *c.ConeAngle)
	}
	if c.BackgroundColor != nil {
		if _, err := parseBackground(*c.BackgroundColor); err != nil {
			return err
		}
	}
	return nil
}

// GetField returns the embedded field config, never nil.
func (c *Config) GetField() *field.Config {
	if c.Field == nil {
		return &field.Config{}
	}
	return c.Field
}

// GetNearPlane returns the near plane or the default.
func (c *Config) GetNearPlane() float64 {
	if c.NearPlane == nil {
		return 0.05
	}
	return *c.NearPlane
}

// GetFarPlane returns the far plane or the default.
func (c *Config) GetFarPlane() float64 {
	if c.FarPlane == nil {
		return 1000.0
	}
	return *c.FarPlane
}

// GetRenderStepSize returns the march step size or the default.
func (c *Config) GetRenderStepSize() float64 {
	if c.RenderStepSize == nil {
		return 0.01
	}
	return *c.RenderStepSize
}

// GetConeAngle returns the cone spreading angle or the default.
func (c *Config) GetConeAngle() float64 {
	if c.ConeAngle == nil {
		return 0.004
	}
	return *c.ConeAngle
}

// GetBackgroundColor returns the composited background color.
func (c *Config) GetBackgroundColor() field.RGB {
	if c.BackgroundColor == nil {
		return field.RGB{}
	}
	bg, err := parseBackground(*c.BackgroundColor)
	if err != nil {
		return field.RGB{}
	}
	return bg
}

func parseBackground(s string) (field.RGB, error) {
	switch s {
	case "black", "":
		return field.RGB{}, nil
	case "white":
		return field.RGB{R: 1, G: 1, B: 1}, nil
	}
	return field.RGB{}, fmt.Errorf("unrecognized background_color %q (want black or white)", s)
}
