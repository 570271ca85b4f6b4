// Package config loads run settings from an optional YAML file and
// CHIRALITY_* environment variables.
package config

import (
	"os"
	"runtime"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/born-ml/chirality/internal/dataset"
	"github.com/born-ml/chirality/internal/model"
	"github.com/born-ml/chirality/internal/parallel"
	"github.com/born-ml/chirality/internal/search"
)

const (
	// EnvPrefix prefixes every environment override, e.g. CHIRALITY_TRAINING_SEED.
	EnvPrefix = "CHIRALITY"
	// EnvConfigFile names an explicit config file.
	EnvConfigFile = "CHIRALITY_CONFIG"
	// DefaultName is the config file looked up in the working directory.
	DefaultName = "chirality"
)

// Config holds every tunable setting.
type Config struct {
	Grid     GridConfig     `mapstructure:"grid"`
	Training TrainingConfig `mapstructure:"training"`
	Split    SplitConfig    `mapstructure:"split"`
	Dataset  DatasetConfig  `mapstructure:"dataset"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Output   OutputConfig   `mapstructure:"output"`
	Log      LogConfig      `mapstructure:"log"`
}

// GridConfig lists the candidate values of the search space.
type GridConfig struct {
	Pooling       []string `mapstructure:"pooling"`
	HiddenLayers  []int    `mapstructure:"hidden_layers"`
	NodesPerLayer []int    `mapstructure:"nodes_per_layer"`
	Epochs        []int    `mapstructure:"epochs"`
}

// TrainingConfig configures the model fit.
type TrainingConfig struct {
	BatchSize    int     `mapstructure:"batch_size"`
	LearningRate float64 `mapstructure:"learning_rate"`
	Seed         uint64  `mapstructure:"seed"`
	Optimizer    string  `mapstructure:"optimizer"`
}

// SplitConfig configures the train/test split.
type SplitConfig struct {
	Seed uint64 `mapstructure:"seed"`
}

// DatasetConfig configures loading.
type DatasetConfig struct {
	SkipMalformed bool `mapstructure:"skip_malformed"`
	Cache         bool `mapstructure:"cache"`
}

// EngineConfig configures the compute kernels.
type EngineConfig struct {
	Workers int `mapstructure:"workers"`
}

// OutputConfig configures written artifacts.
type OutputConfig struct {
	Dir         string `mapstructure:"dir"`
	Checkpoints string `mapstructure:"checkpoints"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("grid.pooling", []string{string(model.PoolingFlatten)})
	v.SetDefault("grid.hidden_layers", []int{4})
	v.SetDefault("grid.nodes_per_layer", []int{128})
	v.SetDefault("grid.epochs", []int{50})

	v.SetDefault("training.batch_size", model.DefaultBatchSize)
	v.SetDefault("training.learning_rate", model.DefaultLearningRate)
	v.SetDefault("training.seed", model.DefaultSeed)
	v.SetDefault("training.optimizer", "adam")

	v.SetDefault("split.seed", dataset.DefaultSplitSeed)

	v.SetDefault("dataset.skip_malformed", false)
	v.SetDefault("dataset.cache", true)

	v.SetDefault("engine.workers", runtime.NumCPU())

	v.SetDefault("output.dir", ".")
	v.SetDefault("output.checkpoints", "")

	v.SetDefault("log.level", "info")
}

// Load reads the file named by CHIRALITY_CONFIG, or chirality.yaml in the
// working directory when present, and applies environment overrides.
func Load() (*Config, error) {
	return LoadFile(os.Getenv(EnvConfigFile))
}

// LoadFile is Load with an explicit config file. An empty path searches the
// working directory and tolerates a missing file.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(DefaultName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "read config")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the scalar settings. Grid values are checked by Space.
func (c *Config) Validate() error {
	if c.Training.BatchSize <= 0 {
		return errors.Errorf("config: training.batch_size must be positive, got %d", c.Training.BatchSize)
	}
	if c.Training.LearningRate <= 0 {
		return errors.Errorf("config: training.learning_rate must be positive, got %v", c.Training.LearningRate)
	}
	if c.Engine.Workers < 0 {
		return errors.Errorf("config: engine.workers must not be negative, got %d", c.Engine.Workers)
	}
	if _, err := zap.ParseAtomicLevel(c.Log.Level); err != nil {
		return errors.Wrap(err, "config: log.level")
	}
	return nil
}

// Space returns the search space described by the grid section.
func (c *Config) Space() (search.Space, error) {
	space := search.Space{
		HiddenLayers:  c.Grid.HiddenLayers,
		NodesPerLayer: c.Grid.NodesPerLayer,
		Epochs:        c.Grid.Epochs,
	}
	for _, name := range c.Grid.Pooling {
		p, err := model.ParsePooling(name)
		if err != nil {
			return search.Space{}, &search.InvalidParameterError{Parameter: search.ParamPooling, Value: name}
		}
		space.Pooling = append(space.Pooling, p)
	}
	if err := space.Validate(); err != nil {
		return search.Space{}, err
	}
	return space, nil
}

// MalformedPolicy returns the loader policy for malformed tensors.
func (c *Config) MalformedPolicy() dataset.Policy {
	if c.Dataset.SkipMalformed {
		return dataset.SkipMalformed
	}
	return dataset.AbortOnMalformed
}

// Parallel returns the kernel worker configuration. Zero workers means one
// per CPU.
func (c *Config) Parallel() parallel.Config {
	return parallel.NewConfig(c.Engine.Workers)
}

// LogLevel returns the parsed log level.
func (c *Config) LogLevel() zap.AtomicLevel {
	level, err := zap.ParseAtomicLevel(c.Log.Level)
	if err != nil {
		return zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return level
}
