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

/*
Copyright 2017 the Heptio Ark contributors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/sugarkube/platformctl/internal/pkg/log"
	"github.com/sugarkube/platformctl/internal/pkg/rollout"
)

// CheckError prints err to stderr and exits with code 1 if err is not nil. Otherwise, it is a
// no-op.
func CheckError(err error) {
	if err != nil {
		os.Exit(report(err))
	}
}

// Prints err and returns the exit code to use
func report(err error) int {
	var failure *rollout.Failure
	if errors.Is(err, context.Canceled) {
		return 1
	} else if errors.As(err, &failure) {
		// the stage table and summary have already been printed
		if log.IsVerbose() && failure.Result.Err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "%+v\n", failure.Result.Err)
		}
		return 1
	}

	var err2 error
	if log.IsVerbose() {
		_, err2 = fmt.Fprintf(os.Stderr, "An error occurred: %+v\n", err)
	} else {
		_, err2 = fmt.Fprintf(os.Stderr, "An error occurred: %v\n\n"+
			"Run with `-v --log-level debug` for a full stacktrace.\n", err)
	}
	if err2 != nil {
		panic(err2)
	}

	return 1
}
