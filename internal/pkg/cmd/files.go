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

package cmd

import (
	"fmt"
	"strings"
)

// Paths to manifest files given as a repeatable, comma-separated flag
type Manifests []string

func (v *Manifests) String() string {
	return fmt.Sprint(*v)
}

func (v *Manifests) Type() string {
	return "Manifests"
}

func (v *Manifests) Set(value string) error {
	for _, filePath := range strings.Split(value, ",") {
		filePath = strings.TrimSpace(filePath)
		if filePath == "" {
			continue
		}
		*v = append(*v, filePath)
	}
	return nil
}
