/*
 * Copyright 2018 The Sugarkube Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package config

import (
	"os"
	"os/user"
	"path"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const appName = "platformctl"

// Global program configuration. Per-environment settings live in the
// environments file instead.
type Conf struct {
	LogLevel         string        `mapstructure:"log-level"`
	JsonLogs         bool          `mapstructure:"json-logs"`
	NoColor          bool          `mapstructure:"no-color"`
	EnvironmentsFile string        `mapstructure:"environments-file"`
	PollInterval     time.Duration `mapstructure:"poll-interval"`
	// 0 means an application must exist on the first check
	ExistenceRetries int           `mapstructure:"existence-retries"`
}

var Config *Conf
var ViperConfig *viper.Viper

func init() {
	ViperConfig = initViper(appName)
	Config = defaults(ViperConfig)
}

func initViper(appName string) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(strings.ToUpper(appName))
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	// global defaults
	v.SetDefault("json-logs", false)
	v.SetDefault("log-level", "info")
	v.SetDefault("no-color", false)
	v.SetDefault("environments-file", "environments.yaml")
	v.SetDefault("poll-interval", 5*time.Second)
	v.SetDefault("existence-retries", 12)

	v.SetConfigName(appName)

	// add look-up paths (from highest priority to lowest)
	cwd, err := os.Getwd()
	if err == nil {
		v.AddConfigPath(cwd)
	}

	usr, err := user.Current()
	if err == nil {
		v.AddConfigPath(path.Join(usr.HomeDir, "."+appName))
	}

	v.AddConfigPath(path.Join("/etc", appName))

	return v
}

// Returns a config populated only from defaults and env vars
func defaults(v *viper.Viper) *Conf {
	conf := &Conf{}
	_ = v.Unmarshal(conf)
	return conf
}

// Load/Reload the configuration. A missing config file isn't an error because
// every key has a default.
func Load(viperConfig *viper.Viper) error {
	var newConf *Conf

	err := viperConfig.ReadInConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return errors.Wrapf(err, "Error loading configuration")
		}
	}

	err = viperConfig.Unmarshal(&newConf)
	if err != nil {
		return errors.Wrapf(err, "Error unmarshalling config")
	}

	Config = newConf

	return nil
}
