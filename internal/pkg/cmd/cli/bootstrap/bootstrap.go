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

package bootstrap

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/sugarkube/platformctl/internal/pkg/aws"
	"github.com/sugarkube/platformctl/internal/pkg/cmd"
	"github.com/sugarkube/platformctl/internal/pkg/cmd/cli/apps"
	"github.com/sugarkube/platformctl/internal/pkg/cmd/cli/cluster"
	"github.com/sugarkube/platformctl/internal/pkg/cmd/cli/utils"
	"github.com/sugarkube/platformctl/internal/pkg/environment"
	"github.com/sugarkube/platformctl/internal/pkg/kube"
	"github.com/sugarkube/platformctl/internal/pkg/log"
	"github.com/sugarkube/platformctl/internal/pkg/printer"
	pkgutils "github.com/sugarkube/platformctl/internal/pkg/utils"
)

type bootstrapCmd struct {
	out         io.Writer
	skipCluster bool
	skipSync    bool
	openUI      bool
	manifests   cmd.Manifests
	envFlags    utils.EnvironmentFlags
}

func NewBootstrapCmd(out io.Writer) *cobra.Command {
	c := &bootstrapCmd{
		out: out,
	}

	command := &cobra.Command{
		Use:   "bootstrap [flags] [environment]",
		Short: "Bootstrap an environment's platform from scratch",
		Long: `Create the cluster for an environment, set up the AWS IAM objects and
in-cluster config Crossplane needs, install Argo CD with the platform's
ApplicationSets and roll out the applications they generate, e.g.:

	$ platformctl bootstrap dev

Every step is skipped if its work has already been done, so bootstrap can be
rerun after a failure. Extra manifests can be applied after the
ApplicationSets with '-f'.
`,
		ValidArgsFunction: utils.CompleteEnvironments,
		RunE: func(command *cobra.Command, args []string) error {
			name, err := utils.EnvironmentArg(args)
			if err != nil {
				return errors.WithStack(err)
			}
			return c.run(command.Context(), name)
		},
	}

	f := command.Flags()
	f.BoolVar(&c.skipCluster, "skip-cluster", false, "don't create the cluster, assume it exists")
	f.BoolVar(&c.skipSync, "skip-sync", false, "stop after applying the ApplicationSets without rolling out applications")
	f.BoolVar(&c.openUI, "open-ui", false, "open the Argo CD UI in a browser if the rollout fails")
	f.VarP(&c.manifests, "manifest", "f", "paths to extra manifests to apply (may be given multiple times)")
	c.envFlags.AddFlags(command)

	return command
}

func (c *bootstrapCmd) run(ctx context.Context, name string) error {
	env, err := utils.LoadEnvironment(name, &c.envFlags, c.out)
	if err != nil {
		return errors.WithStack(err)
	}

	ctx, stop := utils.SignalContext(ctx)
	defer stop()

	if c.skipCluster {
		log.Logger.Infof("Skipping creating cluster '%s'", env.Cluster)
	} else {
		err = cluster.CreateCluster(ctx, c.out, env, false)
		if err != nil {
			return errors.WithStack(err)
		}
	}

	clients := utils.KubeClients(env)
	kubectl := kube.NewKubectl(env.Kubeconfig, env.KubeContext)

	if env.Provisioner == environment.ProvisionerEks {
		err = setUpAws(ctx, env, kubectl, clients)
		if err != nil {
			return errors.WithStack(err)
		}
	} else {
		log.Logger.Infof("Provisioner is '%s'. Skipping AWS set up.", env.Provisioner)
	}

	err = kubectl.InstallArgoCD(ctx, env.ArgoCD.Version, env.ArgoCD.Namespace, env.ArgoCDReadyTimeout())
	if err != nil {
		return errors.WithStack(err)
	}

	err = kubectl.ApplyApplicationSets(ctx, env.ArgoCD.ApplicationSets)
	if err != nil {
		return errors.WithStack(err)
	}

	for _, manifest := range c.manifests {
		err = kubectl.Apply(ctx, manifest, "")
		if err != nil {
			return errors.WithStack(err)
		}
	}

	if c.skipSync {
		_, err = printer.Fprintf("[yellow]Skipping rolling out applications for '%s'\n", env.Name)
		return errors.WithStack(err)
	}

	err = apps.Sync(ctx, c.out, env, clients, c.openUI)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(c.out, "Environment '%s' bootstrapped successfully.\n", env.Name)
	return errors.WithStack(err)
}

// Creates the IAM objects Crossplane needs and publishes details of the
// cluster's AWS resources for it in the cluster-info ConfigMap
func setUpAws(ctx context.Context, env *environment.Environment, kubectl *kube.Kubectl,
	clients *kube.Clients) error {
	service, err := aws.NewService(env.Region)
	if err != nil {
		return errors.WithStack(err)
	}

	info := &kube.ClusterInfo{
		ClusterName: env.Cluster,
		Environment: env.Name,
	}

	err = service.PopulateClusterInfo(ctx, info)
	if err != nil {
		return errors.WithStack(err)
	}

	if log.IsVerbose() {
		infoYaml, err := pkgutils.AsYaml(info.Data())
		if err == nil {
			log.Logger.Debugf("Cluster info:\n%s", infoYaml)
		}
	}

	if env.Account != "" && env.Account != info.AccountID {
		return errors.Errorf("Environment '%s' is for account %s but the current AWS "+
			"credentials are for account %s", env.Name, env.Account, info.AccountID)
	}

	_, err = service.EnsurePermissionBoundary(ctx, info.AccountID, env.Paths.PermissionBoundary)
	if err != nil {
		return errors.WithStack(err)
	}

	_, err = service.EnsureCrossplaneRole(ctx, info.AccountID, info.OidcProvider)
	if err != nil {
		return errors.WithStack(err)
	}

	err = kubectl.CreateNamespace(ctx, kube.ClusterInfoNamespace)
	if err != nil {
		return errors.WithStack(err)
	}

	clientset, err := clients.Clientset()
	if err != nil {
		return errors.WithStack(err)
	}

	err = kube.UpsertClusterInfo(ctx, clientset, *info)
	if err != nil {
		return errors.WithStack(err)
	}

	_, err = printer.Fprintf("[green]Published %s/%s\n", kube.ClusterInfoNamespace, kube.ClusterInfoName)
	return errors.WithStack(err)
}
