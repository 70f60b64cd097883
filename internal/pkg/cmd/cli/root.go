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
package cli

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/sugarkube/platformctl/internal/pkg/cmd/cli/apps"
	"github.com/sugarkube/platformctl/internal/pkg/cmd/cli/bootstrap"
	"github.com/sugarkube/platformctl/internal/pkg/cmd/cli/cluster"
	"github.com/sugarkube/platformctl/internal/pkg/config"
	"github.com/sugarkube/platformctl/internal/pkg/log"
	"github.com/sugarkube/platformctl/internal/pkg/printer"
)

const longUsage = `platformctl bootstraps a Kubernetes platform on AWS and rolls out the
applications that run on it.

An environment (e.g. 'dev' or 'prod') names a cluster, the AWS account and 
region it lives in, how to reach its Argo CD control plane and the ordered 
stages of its rollout. Environments are declared in an environments file.

Use platformctl to:

  * Create an EKS cluster for an environment and wait for it to be ready.
  * Create the IAM role and permission boundary Crossplane's AWS providers 
    assume, and publish details of the cluster's network for them.
  * Install Argo CD and the ApplicationSets that generate the platform's 
    applications.
  * Roll the applications out one at a time, waiting for each to be synced 
    and healthy before moving on to the next, stopping at the first that
    fails.
`

func NewCommand(name string) *cobra.Command {
	return newRootCommand(name, os.Stdout)
}

func newRootCommand(name string, out io.Writer) *cobra.Command {

	var verboseOutput bool
	var configFile string

	command := &cobra.Command{
		Use:           name,
		Short:         "Platform bootstrap and ordered application rollouts",
		Long:          longUsage,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(command *cobra.Command, args []string) error {
			if configFile != "" {
				config.ViperConfig.SetConfigFile(configFile)
			}

			err := config.Load(config.ViperConfig)
			if err != nil {
				return errors.WithStack(err)
			}

			logOptions := log.Options{
				Level:    config.Config.LogLevel,
				JsonLogs: config.Config.JsonLogs,
			}
			// logs are only shown with --verbose
			if verboseOutput {
				logOptions.Out = command.ErrOrStderr()
			}
			log.Configure(logOptions)

			printer.SetOutput(command.OutOrStdout())
			printer.SetColor(!config.Config.NoColor)

			return nil
		},
	}

	command.SetOut(out)

	f := command.PersistentFlags()
	f.BoolVarP(&verboseOutput, "verbose", "v", false, "enable verbose output/logging")
	f.StringVar(&configFile, "config", "", "path to a config file (default is platformctl.yaml in "+
		"the current directory, ~/.platformctl or /etc/platformctl)")
	f.String("log-level", "info", "log level. One of none|trace|debug|info|warn|error")
	f.Bool("json-logs", false, "log in JSON format")
	f.Bool("no-color", false, "don't colour output")
	f.StringP("environments-file", "e", "environments.yaml", "path to the environments file")

	for _, key := range []string{"log-level", "json-logs", "no-color", "environments-file"} {
		err := config.ViperConfig.BindPFlag(key, f.Lookup(key))
		if err != nil {
			panic(err)
		}
	}

	command.AddCommand(
		newVersionCommand(out),
		newCompletionsCommand(command),
		cluster.NewClusterCmds(out),
		bootstrap.NewBootstrapCmd(out),
		apps.NewSyncCmd(out),
		apps.NewPlanCmd(out),
	)

	return command
}
