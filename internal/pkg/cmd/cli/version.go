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
package cli

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/sugarkube/platformctl/internal/pkg/version"
)

type versionConfig struct {
	out     io.Writer
	concise bool
}

func newVersionCommand(out io.Writer) *cobra.Command {
	c := &versionConfig{
		out: out,
	}

	command := &cobra.Command{
		Use:   "version",
		Short: "Print the version number of platformctl",
		Long:  `All software has versions. This is platformctl's.`,
		RunE: func(command *cobra.Command, args []string) error {
			var err error
			if c.concise {
				_, err = fmt.Fprintln(c.out, version.Short())
			} else {
				_, err = fmt.Fprint(c.out, version.Details())
			}
			return errors.WithStack(err)
		},
	}

	f := command.Flags()
	f.BoolVarP(&c.concise, "concise", "c", false, "only print the version")

	return command
}
