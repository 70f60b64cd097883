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

package provisioner

import (
	"fmt"
	"sort"
	"strings"
)

// Converts key-value parameters to CLI args. Keys are sorted so commands are
// reproducible. Underscores in keys become dashes and empty values produce
// bare flags.
func parameteriseValues(args []string, valueMap map[string]string) []string {
	keys := make([]string, 0, len(valueMap))
	for k := range valueMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		key := strings.Replace(k, "_", "-", -1)

		value := valueMap[k]
		if value != "" {
			args = append(args, fmt.Sprintf("--%s=%s", key, value))
		} else {
			args = append(args, "--"+key)
		}
	}

	return args
}
