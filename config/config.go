// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/gorse-io/disco/common/log"
	"github.com/juju/errors"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config is the configuration of a recommender.
type Config struct {
	Factors     int              `mapstructure:"factors" validate:"gte=1"`
	Epochs      int              `mapstructure:"epochs" validate:"gte=0"`
	Verbose     *bool            `mapstructure:"verbose"`
	Jobs        int              `mapstructure:"jobs" validate:"gte=1"`
	RandomState int64            `mapstructure:"random_state"`
	Reg         float64          `mapstructure:"reg" validate:"gte=0"`
	Lr          float64          `mapstructure:"lr" validate:"gt=0"`
	Alpha       float64          `mapstructure:"alpha" validate:"gte=0,lte=1"`
	InitStdDev  float64          `mapstructure:"init_std_dev" validate:"gte=0"`
	QueryCache  QueryCacheConfig `mapstructure:"query_cache"`
}

// QueryCacheConfig bounds the cache of query results. A zero size disables the cache.
type QueryCacheConfig struct {
	Size uint64        `mapstructure:"size"`
	TTL  time.Duration `mapstructure:"ttl" validate:"gte=0"`
}

func GetDefaultConfig() *Config {
	return &Config{
		Factors:    8,
		Epochs:     20,
		Jobs:       1,
		Reg:        0.05,
		Lr:         0.01,
		Alpha:      0.001,
		InitStdDev: 0.1,
		QueryCache: QueryCacheConfig{
			Size: 1024,
			TTL:  10 * time.Minute,
		},
	}
}

// Validate checks ranges of all fields.
func (config *Config) Validate() error {
	validate := validator.New()
	return errors.Trace(validate.Struct(config))
}

func setDefault(v *viper.Viper) {
	defaultConfig := GetDefaultConfig()
	v.SetDefault("factors", defaultConfig.Factors)
	v.SetDefault("epochs", defaultConfig.Epochs)
	v.SetDefault("jobs", defaultConfig.Jobs)
	v.SetDefault("random_state", defaultConfig.RandomState)
	v.SetDefault("reg", defaultConfig.Reg)
	v.SetDefault("lr", defaultConfig.Lr)
	v.SetDefault("alpha", defaultConfig.Alpha)
	v.SetDefault("init_std_dev", defaultConfig.InitStdDev)
	v.SetDefault("query_cache.size", defaultConfig.QueryCache.Size)
	v.SetDefault("query_cache.ttl", defaultConfig.QueryCache.TTL)
}

type configBinding struct {
	key string
	env string
}

var bindings = []configBinding{
	{"factors", "DISCO_FACTORS"},
	{"epochs", "DISCO_EPOCHS"},
	{"verbose", "DISCO_VERBOSE"},
	{"jobs", "DISCO_JOBS"},
	{"random_state", "DISCO_RANDOM_STATE"},
	{"reg", "DISCO_REG"},
	{"lr", "DISCO_LR"},
	{"alpha", "DISCO_ALPHA"},
	{"init_std_dev", "DISCO_INIT_STD_DEV"},
	{"query_cache.size", "DISCO_QUERY_CACHE_SIZE"},
	{"query_cache.ttl", "DISCO_QUERY_CACHE_TTL"},
}

// LoadConfig loads configuration from a TOML file. Environment variables override the file and
// an empty path loads defaults and environment variables only.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefault(v)
	for _, binding := range bindings {
		if err := v.BindEnv(binding.key, binding.env); err != nil {
			log.Logger().Fatal("failed to bind a Viper key to a ENV variable", zap.Error(err))
		}
	}

	if path != "" {
		// check if file exist
		if _, err := os.Stat(path); err != nil {
			return nil, errors.Trace(err)
		}
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Trace(err)
		}
	}

	var conf Config
	if err := v.Unmarshal(&conf, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
	))); err != nil {
		return nil, errors.Trace(err)
	}
	if err := conf.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &conf, nil
}
