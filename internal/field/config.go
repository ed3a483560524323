package field

import "fmt"

// Config is the JSON configuration for the occupancy field. Pointer fields
// distinguish "absent" from a zero value; omitted fields fall back to the
// defaults supplied by the Get* accessors, so partial configs are safe.
type Config struct {
	// Occupancy pipeline params
	Sigma            *float64 `json:"sigma,omitempty"`
	FInit            *string  `json:"f_init,omitempty"`
	FTransition      *string  `json:"f_transition_function,omitempty"`
	GridResolution   *int     `json:"f_grid_resolution,omitempty"`
	GTransition      *string  `json:"g_transition_function,omitempty"`
	GAlpha           *float64 `json:"g_transition_alpha,omitempty"`
	GAlphaIncrements *float64 `json:"g_transition_alpha_increments,omitempty"`

	// Density params
	DensityMultiplier *float64 `json:"density_multiplier,omitempty"`

	// Backbone params
	GeoFeatDim             *int  `json:"geo_feat_dim,omitempty"`
	UseAppearanceEmbedding *bool `json:"use_appearance_embedding,omitempty"`
	AppearanceEmbeddingDim *int  `json:"appearance_embedding_dim,omitempty"`
	NumImages              *int  `json:"num_images,omitempty"`
}

// Validate checks the configuration. Unrecognized transition or init tags and
// out-of-range numeric values are rejected here so that construction fails
// fast instead of silently defaulting.
func (c *Config) Validate() error {
	if c.Sigma != nil && *c.Sigma <= 0 {
		return fmt.Errorf("sigma must be positive, got %f", *c.Sigma)
	}
	if c.GridResolution != nil && *c.GridResolution <= 0 {
		return fmt.Errorf("f_grid_resolution must be positive, got %d", *c.GridResolution)
	}
	if c.FInit != nil {
		if _, err := ParseInitMode(*c.FInit); err != nil {
			return err
		}
	}
	if c.FTransition != nil {
		if _, err := ParseFTransition(*c.FTransition); err != nil {
			return err
		}
	}
	if c.GTransition != nil {
		if _, err := ParseGTransition(*c.GTransition); err != nil {
			return err
		}
	}
	if c.DensityMultiplier != nil && *c.DensityMultiplier <= 0 {
		return fmt.Errorf("density_multiplier must be positive, got %f", *c.DensityMultiplier)
	}
	if c.GeoFeatDim != nil && *c.GeoFeatDim < 0 {
		return fmt.Errorf("geo_feat_dim must be non-negative, got %d", *c.GeoFeatDim)
	}
	if c.GetUseAppearanceEmbedding() {
		if c.NumImages == nil {
			return fmt.Errorf("use_appearance_embedding requires num_images")
		}
		if *c.NumImages <= 0 {
			return fmt.Errorf("num_images must be positive, got %d", *c.NumImages)
		}
	}
	if c.AppearanceEmbeddingDim != nil && *c.AppearanceEmbeddingDim <= 0 {
		return fmt.Errorf("appearance_embedding_dim must be positive, got %d", *c.AppearanceEmbeddingDim)
	}
	return nil
}

// GetSigma returns the blur standard deviation or the default.
func (c *Config) GetSigma() float64 {
	if c.Sigma == nil {
		return 1.0
	}
	return *c.Sigma
}

// GetFInit returns the grid init mode or the default.
func (c *Config) GetFInit() string {
	if c.FInit == nil {
		return "ones"
	}
	return *c.FInit
}

// GetFTransition returns the f transition tag or the default.
func (c *Config) GetFTransition() string {
	if c.FTransition == nil {
		return "relu"
	}
	return *c.FTransition
}

// GetGridResolution returns the grid resolution or the default.
func (c *Config) GetGridResolution() int {
	if c.GridResolution == nil {
		return 256
	}
	return *c.GridResolution
}

// GetGTransition returns the g transition tag or the default.
func (c *Config) GetGTransition() string {
	if c.GTransition == nil {
		return "sigmoid"
	}
	return *c.GTransition
}

// GetGAlpha returns the initial sharpness or the default.
func (c *Config) GetGAlpha() float64 {
	if c.GAlpha == nil {
		return 4.0
	}
	return *c.GAlpha
}

// GetGAlphaIncrements returns the per-iteration sharpness increment or the
// default.
func (c *Config) GetGAlphaIncrements() float64 {
	if c.GAlphaIncrements == nil {
		return 0.0
	}
	return *c.GAlphaIncrements
}

// GetDensityMultiplier returns the density multiplier or the default.
func (c *Config) GetDensityMultiplier() float64 {
	if c.DensityMultiplier == nil {
		return 1.0
	}
	return *c.DensityMultiplier
}

// GetGeoFeatDim returns the geometric feature width or the default.
func (c *Config) GetGeoFeatDim() int {
	if c.GeoFeatDim == nil {
		return 15
	}
	return *c.GeoFeatDim
}

// GetUseAppearanceEmbedding returns whether per-image appearance embeddings
// are enabled, defaulting to off.
func (c *Config) GetUseAppearanceEmbedding() bool {
	if c.UseAppearanceEmbedding == nil {
		return false
	}
	return *c.UseAppearanceEmbedding
}

// GetAppearanceEmbeddingDim returns the appearance embedding width or the
// default.
func (c *Config) GetAppearanceEmbeddingDim() int {
	if c.AppearanceEmbeddingDim == nil {
		return 32
	}
	return *c.AppearanceEmbeddingDim
}

// GetNumImages returns the training image count or zero when unset.
func (c *Config) GetNumImages() int {
	if c.NumImages == nil {
		return 0
	}
	return *c.NumImages
}
