package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/goliatone/go-formrules/pkg/model"
)

// EnvPrefix prefixes environment overrides, e.g. FORMRULES_LOOKUP_REDIS_ADDR.
const EnvPrefix = "FORMRULES"

// Config is the formrules.yaml layout.
type Config struct {
	Locale   string                       `mapstructure:"locale"`
	Messages map[string]map[string]string `mapstructure:"messages"`
	Log      LogConfig                    `mapstructure:"log"`
	Lookup   LookupConfig                 `mapstructure:"lookup"`
	Serve    ServeConfig                  `mapstructure:"serve"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

type LookupConfig struct {
	// TTL in seconds for refs whose definition does not set one.
	TTL       int                      `mapstructure:"ttl"`
	Timeout   time.Duration            `mapstructure:"timeout"`
	Redis     RedisConfig              `mapstructure:"redis"`
	Endpoints []model.LookupDefinition `mapstructure:"endpoints"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type ServeConfig struct {
	Addr     string `mapstructure:"addr"`
	BasePath string `mapstructure:"basePath"`
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("log.level", "info")
	v.SetDefault("lookup.ttl", model.DefaultLookupTTL)
	v.SetDefault("lookup.timeout", 10*time.Second)
	v.SetDefault("serve.addr", ":8080")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// loadConfig reads path, or formrules.yaml from the working directory when
// path is empty. A missing default file is not an error.
func loadConfig(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("formrules")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}
