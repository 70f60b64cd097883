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
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/sugarkube/platformctl/internal/pkg/clustersot"
	"github.com/sugarkube/platformctl/internal/pkg/cmd/cli/utils"
	"github.com/sugarkube/platformctl/internal/pkg/environment"
	"github.com/sugarkube/platformctl/internal/pkg/log"
	"github.com/sugarkube/platformctl/internal/pkg/provisioner"
)

// Launches a cluster for an environment

type createCmd struct {
	out      io.Writer
	dryRun   bool
	envFlags utils.EnvironmentFlags
}

func newCreateCmd(out io.Writer) *cobra.Command {

	c := &createCmd{
		out: out,
	}

	command := &cobra.Command{
		Use:   "create [flags] [environment]",
		Short: "Create a cluster",
		Long: `Create the cluster for an environment and wait for it to become ready.

Create the cluster for the 'dev' environment, e.g.:

	$ platformctl cluster create dev

Values from the environments file can be overridden, e.g. to change the 
region, etc. Nothing is done if the cluster already exists.
`,
		ValidArgsFunction: utils.CompleteEnvironments,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := utils.EnvironmentArg(args)
			if err != nil {
				return errors.WithStack(err)
			}
			return c.run(cmd.Context(), name)
		},
	}

	f := command.Flags()
	f.BoolVarP(&c.dryRun, "dry-run", "n", false, "show what would happen but don't create a cluster")
	c.envFlags.AddFlags(command)

	return command
}

func (c *createCmd) run(ctx context.Context, name string) error {
	env, err := utils.LoadEnvironment(name, &c.envFlags, c.out)
	if err != nil {
		return errors.WithStack(err)
	}

	ctx, stop := utils.SignalContext(ctx)
	defer stop()

	err = CreateCluster(ctx, c.out, env, c.dryRun)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

// Creates the cluster for an environment unless it exists, makes it
// reachable with kubectl and waits for it to be ready
func CreateCluster(ctx context.Context, out io.Writer, env *environment.Environment, dryRun bool) error {
	_, err := fmt.Fprintf(out, "Checking whether the target cluster '%s' already "+
		"exists...\n", env.Cluster)
	if err != nil {
		return errors.WithStack(err)
	}

	clusterSot, err := clustersot.New(clustersot.Kubectl, env.Kubeconfig, env.KubeContext)
	if err != nil {
		return errors.WithStack(err)
	}

	provisionerImpl, err := provisioner.New(env, clusterSot)
	if err != nil {
		return errors.WithStack(err)
	}

	created, err := provisionerImpl.Create(ctx, dryRun)
	if err != nil {
		return errors.WithStack(err)
	}

	if dryRun {
		log.Logger.Infof("Dry run. Skipping cluster readiness check.")
		return nil
	}

	err = provisionerImpl.WriteKubeConfig(ctx, dryRun)
	if err != nil {
		return errors.WithStack(err)
	}

	err = provisioner.WaitForClusterReadiness(ctx, provisionerImpl, provisioner.WaitOptions{
		Timeout:               env.ClusterReadyTimeout(),
		StartedThisRun:        created,
		SleepBeforeReadyCheck: provisioner.EksSleepBeforeReadyCheck,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	_, err = fmt.Fprintf(out, "Cluster '%s' is ready.\n", env.Cluster)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}
