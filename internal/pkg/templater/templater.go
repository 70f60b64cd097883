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

package templater

import (
	"bytes"
	"os"
	"text/template"

	"github.com/Masterminds/sprig"
	"github.com/pkg/errors"
	"github.com/sugarkube/platformctl/internal/pkg/log"
)

// Returns a template rendered with the given input variables. Missing keys are
// an error so typos in config files surface immediately.
func RenderTemplate(inputTemplate string, vars map[string]interface{}) (string, error) {
	tpl, err := template.New("gotpl").
		Option("missingkey=error").
		Funcs(sprig.TxtFuncMap()).
		Funcs(CustomFunctions).
		Parse(inputTemplate)
	if err != nil {
		return "", errors.Wrapf(err, "Error parsing template: %s", inputTemplate)
	}

	buf := bytes.NewBuffer(nil)
	err = tpl.Execute(buf, vars)
	if err != nil {
		return "", errors.Wrapf(err, "Error executing template: %s", inputTemplate)
	}

	return buf.String(), nil
}

// Renders a template file with the given vars
func RenderFile(src string, vars map[string]interface{}) (string, error) {
	srcTemplate, err := os.ReadFile(src)
	if err != nil {
		return "", errors.Wrapf(err, "Error reading template file '%s'", src)
	}

	log.Logger.Debugf("Rendering template in '%s' with vars: %#v", src, vars)

	rendered, err := RenderTemplate(string(srcTemplate), vars)
	if err != nil {
		return "", errors.Wrapf(err, "Error rendering template file '%s'", src)
	}

	return rendered, nil
}
