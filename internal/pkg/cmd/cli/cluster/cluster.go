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

package cluster

import (
	"io"

	"github.com/spf13/cobra"
)

func NewClusterCmds(out io.Writer) *cobra.Command {

	cmd := &cobra.Command{
		Use:   "cluster [command]",
		Short: "Work with clusters",
		Long:  `Create the Kubernetes clusters environments run on`,
	}

	cmd.AddCommand(
		newCreateCmd(out),
	)

	return cmd
}
