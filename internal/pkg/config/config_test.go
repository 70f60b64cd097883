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
	"path"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

const testDir = "../../testdata"

func TestDefaults(t *testing.T) {
	conf := defaults(initViper("platformctl-test"))
	assert.Equal(t, "info", conf.LogLevel)
	assert.False(t, conf.JsonLogs)
	assert.Equal(t, 5*time.Second, conf.PollInterval)
	assert.Equal(t, 12, conf.ExistenceRetries)
	assert.Equal(t, "environments.yaml", conf.EnvironmentsFile)
}

func TestLoad(t *testing.T) {
	v := initViper("platformctl-test")
	v.SetConfigFile(path.Join(testDir, "platformctl.yaml"))

	err := Load(v)
	assert.Nil(t, err)
	assert.Equal(t, "debug", Config.LogLevel)
	assert.True(t, Config.JsonLogs)
	assert.Equal(t, 2*time.Second, Config.PollInterval)
	assert.Equal(t, 6, Config.ExistenceRetries)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	v := initViper("platformctl-test")
	v.SetConfigFile(path.Join(testDir, "does-not-exist.yaml"))

	err := Load(v)
	assert.NotNil(t, err)
}

func TestZeroExistenceRetriesFromEnv(t *testing.T) {
	t.Setenv("PLATFORMCTL_TEST_EXISTENCE_RETRIES", "0")

	conf := defaults(initViper("platformctl_test"))
	assert.Equal(t, 0, conf.ExistenceRetries)
}
