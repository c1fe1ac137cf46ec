// Package config loads the discovery engine configuration from an optional
// YAML file and DISCOVERY_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"github.com/ManiFed/invariant-sub001/internal/regime"
)

const EnvPrefix = "DISCOVERY"

type Config struct {
	Engine  EngineConfig  `yaml:"engine" envconfig:"ENGINE"`
	Storage StorageConfig `yaml:"storage" envconfig:"STORAGE"`
	Server  ServerConfig  `yaml:"server" envconfig:"SERVER"`
	Logging LoggingConfig `yaml:"logging" envconfig:"LOGGING"`
	// Regimes overrides built-in regime parameters by id.
	Regimes []regime.Config `yaml:"regimes" ignored:"true"`
}

type EngineConfig struct {
	Seed             int64         `yaml:"seed" envconfig:"SEED"`
	PopulationSize   int           `yaml:"population_size" envconfig:"POPULATION_SIZE" validate:"min=1"`
	EliteCount       int           `yaml:"elite_count" envconfig:"ELITE_COUNT" validate:"min=1,ltefield=PopulationSize"`
	MutationRatio    float64       `yaml:"mutation_ratio" envconfig:"MUTATION_RATIO" validate:"gte=0,lte=1"`
	MutationStrength float64       `yaml:"mutation_strength" envconfig:"MUTATION_STRENGTH" validate:"gt=0,lte=1"`
	ParentFamilyBias float64       `yaml:"parent_family_bias" envconfig:"PARENT_FAMILY_BIAS" validate:"gt=0,lte=1"`
	Selector         string        `yaml:"selector" envconfig:"SELECTOR" validate:"oneof=elite tournament family_tournament"`
	GuidanceInterval int           `yaml:"guidance_interval" envconfig:"GUIDANCE_INTERVAL" validate:"min=1"`
	MinSamples       int           `yaml:"min_samples" envconfig:"MIN_SAMPLES" validate:"min=1"`
	FloorWeight      float64       `yaml:"floor_weight" envconfig:"FLOOR_WEIGHT" validate:"gt=0,lt=0.2"`
	TickInterval     time.Duration `yaml:"tick_interval" envconfig:"TICK_INTERVAL" validate:"gt=0"`
}

type StorageConfig struct {
	Kind string `yaml:"kind" envconfig:"KIND" validate:"oneof=memory sqlite postgres"`
	DSN  string `yaml:"dsn" envconfig:"DSN" validate:"required_unless=Kind memory"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr" envconfig:"ADDR" validate:"required"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" validate:"gt=0"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" envconfig:"FORMAT" validate:"oneof=auto json text"`
}

func Default() Config {
	return Config{
		Engine: EngineConfig{
			Seed:             1,
			PopulationSize:   12,
			EliteCount:       4,
			MutationRatio:    0.75,
			MutationStrength: 0.15,
			ParentFamilyBias: 0.7,
			Selector:         "elite",
			GuidanceInterval: 5,
			MinSamples:       5,
			FloorWeight:      0.05,
			TickInterval:     2 * time.Second,
		},
		Storage: StorageConfig{Kind: "memory"},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", Format: "auto"},
	}
}

// Load applies, in order: defaults, the YAML file at path (skipped when path
// is empty), then environment overrides. The result is validated.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("load config from env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var validate = validator.New()

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return fmt.Errorf("config validation failed: %w", verrs)
		}
		return err
	}
	if _, err := c.Catalog(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// Catalog merges configured regimes over the built-in defaults.
func (c Config) Catalog() (regime.Catalog, error) {
	byID := map[string]int{}
	cfgs := regime.Defaults()
	for i, cfg := range cfgs {
		byID[string(cfg.ID)] = i
	}
	for _, override := range c.Regimes {
		i, ok := byID[string(override.ID)]
		if !ok {
			return nil, fmt.Errorf("%w: unknown regime %q", regime.ErrInvalidConfig, override.ID)
		}
		cfgs[i] = override
	}
	return regime.NewCatalog(cfgs)
}
