/*
 * Copyright 2019 The Sugarkube Authors
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

package environment

import (
	"os"
	"sort"
	"strings"

	"github.com/imdario/mergo"
	"github.com/pkg/errors"
	"github.com/sugarkube/platformctl/internal/pkg/log"
	"github.com/sugarkube/platformctl/internal/pkg/utils"
)

// Environments available when there's no environments file
var builtIn = []string{"dev", "prod"}

// Loads the named environment from a file, fills in defaults and merges in
// CLI values, which take precedence. If the file doesn't exist only the
// built-in environments can be loaded.
func Load(name string, path string, cliValues *Environment) (*Environment, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("The environment name is required")
	}

	env, err := loadRaw(name, path)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	// fills unset fields only
	err = mergo.Merge(env, Defaults(name))
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if cliValues != nil {
		log.Logger.Tracef("Merging environment %#v with CLI values: %#v", env, cliValues)

		err = mergo.Merge(env, cliValues, mergo.WithOverride)
		if err != nil {
			return nil, errors.WithStack(err)
		}
	}

	env.Name = name

	log.Logger.Debugf("Final config for environment '%s': %#v", name, env)

	err = env.Validate()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return env, nil
}

func loadRaw(name string, path string) (*Environment, error) {
	if path == "" || !fileExists(path) {
		for _, builtInName := range builtIn {
			if name == builtInName {
				log.Logger.Infof("No environments file found at '%s'. Using built-in "+
					"defaults for '%s'", path, name)
				return &Environment{Name: name}, nil
			}
		}

		return nil, errors.Errorf("Environments file '%s' doesn't exist and '%s' isn't a "+
			"built-in environment. Built-in environments are: %s", path, name,
			strings.Join(builtIn, ", "))
	}

	log.Logger.Debugf("Loading environments from '%s'", path)

	data := map[string]interface{}{}
	err := utils.LoadYamlFile(path, &data)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	rawEnv, ok := data[name]
	if !ok {
		validNames := make([]string, 0, len(data))
		for k := range data {
			validNames = append(validNames, k)
		}
		sort.Strings(validNames)

		return nil, errors.Errorf("No environment called '%s' found in '%s'. Valid "+
			"environments are: %s", name, path, strings.Join(validNames, ", "))
	}

	env := &Environment{}
	err = utils.ConvertYaml(rawEnv, env)
	if err != nil {
		return nil, errors.Wrapf(err, "Error parsing environment '%s' in '%s'", name, path)
	}

	log.Logger.Infof("Loaded environment '%s' from '%s'", name, path)

	return env, nil
}

// Returns the names of environments in a file
func Names(path string) ([]string, error) {
	if !fileExists(path) {
		return builtIn, nil
	}

	data := map[string]interface{}{}
	err := utils.LoadYamlFile(path, &data)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	names := make([]string, 0, len(data))
	for k := range data {
		names = append(names, k)
	}
	sort.Strings(names)

	return names, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
