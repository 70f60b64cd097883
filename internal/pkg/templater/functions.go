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
	"text/template"
)

var CustomFunctions = template.FuncMap{
	"zones": zones,
}

// Returns availability zone names for a region from their suffixes, e.g.
// `zones "us-east-1" "a" "b"` gives [us-east-1a us-east-1b]
func zones(region string, suffixes ...string) []string {
	output := make([]string, len(suffixes))

	for i, suffix := range suffixes {
		output[i] = region + suffix
	}

	return output
}
