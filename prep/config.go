package prep

import (
	"fmt"
	"strings"

	"github.com/kbukum/imgprep/config"
	"github.com/kbukum/imgprep/database"
	"github.com/kbukum/imgprep/errors"
	"github.com/kbukum/imgprep/kafka"
	"github.com/kbukum/imgprep/observability"
	"github.com/kbukum/imgprep/redis"
	"github.com/kbukum/imgprep/storage"
	"github.com/kbukum/imgprep/validation"
)

// Transform types accepted in TransformConfig.Type.
const (
	TransformResize       = "resize"
	TransformGrayscale    = "grayscale"
	TransformFlip         = "flip"
	TransformMinSize      = "min_size"
	TransformRequireLabel = "require_label"
	TransformNormalize    = "normalize"
	TransformShuffle      = "shuffle"
	TransformDedup        = "dedup"
)

// Dedup backends.
const (
	DedupMemory = "memory"
	DedupRedis  = "redis"
)

// DefaultBranchNames name the split branches when Split.Names is unset.
var DefaultBranchNames = []string{"train", "val", "test"}

// Config is a complete prep run: where images come from, what happens to
// them, how they are split and where the split is written.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Source     SourceConfig        `yaml:"source" mapstructure:"source"`
	Transforms []TransformConfig   `yaml:"transforms" mapstructure:"transforms" validate:"dive"`
	Split      SplitConfig         `yaml:"split" mapstructure:"split"`
	Output     OutputConfig        `yaml:"output" mapstructure:"output"`
	Dedup      DedupConfig         `yaml:"dedup" mapstructure:"dedup"`
	Catalog    CatalogConfig       `yaml:"catalog" mapstructure:"catalog"`
	Events     kafka.Config        `yaml:"events" mapstructure:"events"`
	Telemetry  observability.Config `yaml:"telemetry" mapstructure:"telemetry"`
}

// SourceConfig selects the input images. Exactly one of Dir and Storage is
// used; Storage wins when both are set.
type SourceConfig struct {
	// Dir is a local directory read with the file codec.
	Dir string `yaml:"dir" mapstructure:"dir"`
	// Storage reads objects under Prefix from a store instead of Dir.
	Storage *storage.Config `yaml:"storage" mapstructure:"storage"`
	Prefix  string          `yaml:"prefix" mapstructure:"prefix"`

	Extensions   []string `yaml:"extensions" mapstructure:"extensions"`
	Recursive    bool     `yaml:"recursive" mapstructure:"recursive"`
	LabelFromDir bool     `yaml:"label_from_dir" mapstructure:"label_from_dir"`
	// Manifest is a YAML annotation file applied to every loaded element.
	Manifest string `yaml:"manifest" mapstructure:"manifest"`
}

// TransformConfig is one entry of the transform chain. Only the fields the
// type uses are read.
type TransformConfig struct {
	Type string `yaml:"type" mapstructure:"type" validate:"required,oneof=resize grayscale flip min_size require_label normalize shuffle dedup"`

	Width         int    `yaml:"width" mapstructure:"width" validate:"gte=0"`
	Height        int    `yaml:"height" mapstructure:"height" validate:"gte=0"`
	Interpolation string `yaml:"interpolation" mapstructure:"interpolation"`

	KeepOriginal bool   `yaml:"keep_original" mapstructure:"keep_original"`
	Suffix       string `yaml:"suffix" mapstructure:"suffix"`

	Labels []string `yaml:"labels" mapstructure:"labels"`

	TargetMean   float64 `yaml:"target_mean" mapstructure:"target_mean"`
	TargetStdDev float64 `yaml:"target_stddev" mapstructure:"target_stddev"`

	Seed uint64 `yaml:"seed" mapstructure:"seed"`
}

// SplitConfig sets the dispatch percentages and the branch names.
type SplitConfig struct {
	Percentages []float64 `yaml:"percentages" mapstructure:"percentages" validate:"min=1"`
	Names       []string  `yaml:"names" mapstructure:"names" validate:"dive,required"`
}

// OutputConfig sets where split branches are written.
type OutputConfig struct {
	Storage storage.Config `yaml:"storage" mapstructure:"storage"`
	// Prefix is the key prefix under which one directory per branch is written.
	Prefix string `yaml:"prefix" mapstructure:"prefix"`
	// Format re-encodes every image; empty keeps each source's format.
	Format  string `yaml:"format" mapstructure:"format" validate:"omitempty,oneof=jpeg png gif bmp tiff"`
	Quality int    `yaml:"quality" mapstructure:"quality" validate:"gte=0,lte=100"`
	// Manifest writes a manifest.yaml per branch.
	Manifest bool `yaml:"manifest" mapstructure:"manifest"`
	// Clean deletes existing objects under Prefix before writing. It needs a
	// non-empty Prefix; cleaning the store root is refused.
	Clean bool `yaml:"clean" mapstructure:"clean"`
}

// DedupConfig backs the dedup transform.
type DedupConfig struct {
	Backend string `yaml:"backend" mapstructure:"backend" validate:"omitempty,oneof=memory redis"`
	// Namespace names the Redis set. Empty scopes the set to a single run;
	// a fixed name deduplicates across runs.
	Namespace string       `yaml:"namespace" mapstructure:"namespace"`
	Redis     redis.Config `yaml:"redis" mapstructure:"redis"`
}

// CatalogConfig enables the run history database.
type CatalogConfig struct {
	Enabled  bool            `yaml:"enabled" mapstructure:"enabled"`
	Database database.Config `yaml:"database" mapstructure:"database"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	c.ServiceConfig.ApplyDefaults()

	if len(c.Split.Percentages) == 0 {
		c.Split.Percentages = []float64{1}
	}
	for i := len(c.Split.Names); i < len(c.Split.Percentages); i++ {
		c.Split.Names = append(c.Split.Names, branchName(i))
	}

	c.Output.Storage.ApplyDefaults()
	if c.Source.Storage != nil {
		c.Source.Storage.ApplyDefaults()
	}
	if c.Dedup.Backend == "" {
		c.Dedup.Backend = DedupMemory
	}
	if c.Dedup.Backend == DedupRedis {
		c.Dedup.Redis.ApplyDefaults()
	}
	if c.Catalog.Enabled {
		c.Catalog.Database.ApplyDefaults()
	}
	if c.Events.Enabled {
		c.Events.ApplyDefaults()
	}
	c.Telemetry.ApplyDefaults()
}

func branchName(i int) string {
	if i < len(DefaultBranchNames) {
		return DefaultBranchNames[i]
	}
	return fmt.Sprintf("split%d", i)
}

// Validate checks the struct tags and the cross-field rules. Split
// percentages are checked again, exactly, when the dispatch is built.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := validation.Validate(c); err != nil {
		return err
	}

	v := validation.New()
	v.Custom(c.Source.Dir != "" || c.Source.Storage != nil, "source", "dir or storage is required")
	v.Custom(len(c.Split.Names) == len(c.Split.Percentages), "split.names",
		fmt.Sprintf("has %d names for %d percentages", len(c.Split.Names), len(c.Split.Percentages)))
	seen := make(map[string]bool, len(c.Split.Names))
	for _, n := range c.Split.Names {
		v.Custom(!seen[n], "split.names", fmt.Sprintf("duplicate branch %q", n))
		seen[n] = true
	}
	for i, t := range c.Transforms {
		field := fmt.Sprintf("transforms[%d]", i)
		switch t.Type {
		case TransformResize:
			v.Custom(t.Width > 0 && t.Height > 0, field, "resize needs width and height")
		case TransformNormalize:
			v.Custom(t.TargetStdDev > 0, field, "normalize needs target_stddev > 0")
		}
	}
	v.Custom(!c.Output.Clean || strings.Trim(c.Output.Prefix, "/") != "", "output.prefix",
		"is required when output.clean is set")
	if err := v.Validate(); err != nil {
		return err
	}

	if c.Source.Storage != nil {
		if err := c.Source.Storage.Validate(); err != nil {
			return errors.InvalidInput("source.storage", err.Error())
		}
	}
	if err := c.Output.Storage.Validate(); err != nil {
		return errors.InvalidInput("output.storage", err.Error())
	}
	if c.Dedup.Backend == DedupRedis {
		if err := c.Dedup.Redis.Validate(); err != nil {
			return err
		}
	}
	if c.Catalog.Enabled {
		if err := c.Catalog.Database.Validate(); err != nil {
			return err
		}
	}
	return c.Events.Validate()
}

// Load reads the named config through the viper loader, applies defaults
// and validates it.
func Load(opts ...config.LoaderOption) (*Config, error) {
	var cfg Config
	if err := config.LoadConfig("imgprep", &cfg, opts...); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// UsesDedup reports whether the transform chain contains a dedup step.
func (c *Config) UsesDedup() bool {
	for _, t := range c.Transforms {
		if t.Type == TransformDedup {
			return true
		}
	}
	return false
}
