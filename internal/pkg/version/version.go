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
package version

import (
	"fmt"
	"runtime"
	"strings"
)

// The git commit that was compiled. This will be filled in by the compiler.
var GitCommit string

// This will be populated by flags to the compiler.
var Version = ""

var BuildDate = ""

var GoVersion = runtime.Version()

var OsArch = fmt.Sprintf("%s %s", runtime.GOOS, runtime.GOARCH)

// Returns the version, or 'dev' for builds that weren't stamped
func Short() string {
	if Version == "" {
		return "dev"
	}
	return Version
}

// Returns all the build details, one per line
func Details() string {
	var b strings.Builder
	fmt.Fprintln(&b, "Build Date:", BuildDate)
	fmt.Fprintln(&b, "Git Commit:", GitCommit)
	fmt.Fprintln(&b, "Version:", Short())
	fmt.Fprintln(&b, "Go Version:", GoVersion)
	fmt.Fprintln(&b, "OS / Arch:", OsArch)
	return b.String()
}
