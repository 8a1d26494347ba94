package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

const maxWalkDepth = 25

// ConfigNames are the file names searched for, in order.
var ConfigNames = []string{"eager.yaml", "eager.yml"}

// Config is the contents of eager.yaml after defaults and EAGER_* environment
// variables are applied.
type Config struct {
	// Schema is the path of the YAML schema file. Relative paths are
	// resolved against the directory of the config file.
	Schema   string         `mapstructure:"schema" yaml:"schema"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`

	// SensitiveFields replaces the default masked attribute fragments when set.
	SensitiveFields   []string `mapstructure:"sensitive_fields" yaml:"sensitive_fields"`
	StmtCacheCapacity int      `mapstructure:"stmt_cache_capacity" yaml:"stmt_cache_capacity"`
}

// DatabaseConfig holds connection settings.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"`
	DSN    string `mapstructure:"dsn" yaml:"dsn"`
	// Dialect overrides the dialect derived from Driver.
	Dialect string `mapstructure:"dialect" yaml:"dialect"`
}

// LogConfig controls query logging on stderr.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// LoadConfig loads configuration with precedence env > config file > defaults.
// A .env file in dir is read first and only sets variables that are not
// already present in the environment. explicitPath, when set, must exist;
// otherwise eager.yaml is searched for from dir upwards.
//
// It returns the config, the path of the config file (empty if none) and
// any error.
func LoadConfig(fs afero.Fs, explicitPath, dir string) (*Config, string, error) {
	if err := loadDotEnv(fs, dir); err != nil {
		return nil, "", err
	}

	v := viper.New()
	v.SetFs(fs)
	setDefaults(v)

	v.SetEnvPrefix("EAGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configPath, err := findConfigFile(fs, explicitPath, dir)
	if err != nil {
		return nil, "", err
	}
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, configPath, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, configPath, fmt.Errorf("unmarshaling config: %w", err)
	}
	if configPath != "" && cfg.Schema != "" && !filepath.IsAbs(cfg.Schema) {
		cfg.Schema = filepath.Join(filepath.Dir(configPath), cfg.Schema)
	}
	return &cfg, configPath, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("schema", "schema.yaml")

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.dialect", "")

	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "text")

	v.SetDefault("sensitive_fields", []string{})
	v.SetDefault("stmt_cache_capacity", 0)
}

// loadDotEnv exports the variables of dir/.env that are not already set.
func loadDotEnv(fs afero.Fs, dir string) error {
	f, err := fs.Open(filepath.Join(dir, ".env"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("opening .env: %w", err)
	}
	defer func() { _ = f.Close() }()

	vars, err := godotenv.Parse(f)
	if err != nil {
		return fmt.Errorf("parsing .env: %w", err)
	}
	for k, val := range vars {
		if _, ok := os.LookupEnv(k); ok {
			continue
		}
		if err := os.Setenv(k, val); err != nil {
			return err
		}
	}
	return nil
}

// findConfigFile returns explicitPath if it exists, otherwise walks up from
// dir looking for eager.yaml or eager.yml, stopping at a .git directory or
// after maxWalkDepth levels.
func findConfigFile(fs afero.Fs, explicitPath, dir string) (string, error) {
	if explicitPath != "" {
		if _, err := fs.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	for i := 0; i < maxWalkDepth; i++ {
		for _, name := range ConfigNames {
			path := filepath.Join(dir, name)
			if _, err := fs.Stat(path); err == nil {
				return path, nil
			}
		}

		if _, err := fs.Stat(filepath.Join(dir, ".git")); err == nil {
			break
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", nil
}
