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

package utils

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/sugarkube/platformctl/internal/pkg/argocd"
	"github.com/sugarkube/platformctl/internal/pkg/config"
	"github.com/sugarkube/platformctl/internal/pkg/environment"
	"github.com/sugarkube/platformctl/internal/pkg/kube"
)

// CLI values that take precedence over values in the environments file
type EnvironmentFlags struct {
	cluster         string
	region          string
	account         string
	provisioner     string
	kubeContext     string
	kubeconfig      string
	argocdTransport string
}

func (e *EnvironmentFlags) AddFlags(command *cobra.Command) {
	f := command.Flags()
	f.StringVarP(&e.cluster, "cluster", "c", "", "name of the cluster, e.g. stack-test")
	f.StringVarP(&e.region, "region", "r", "", "AWS region of the cluster")
	f.StringVarP(&e.account, "account", "a", "", "AWS account ID of the cluster")
	f.StringVar(&e.provisioner, "provisioner", "", "name of provisioner. One of eks|none")
	f.StringVar(&e.kubeContext, "kube-context", "", "kubeconfig context to use")
	f.StringVar(&e.kubeconfig, "kubeconfig", "", "path to the kubeconfig file")
	f.StringVar(&e.argocdTransport, "argocd-transport", "", "how to reach Argo CD. One of rest|kube")
}

func (e *EnvironmentFlags) values() *environment.Environment {
	return &environment.Environment{
		Cluster:     e.cluster,
		Region:      e.region,
		Account:     e.account,
		Provisioner: e.provisioner,
		KubeContext: e.kubeContext,
		Kubeconfig:  e.kubeconfig,
		ArgoCD: environment.ArgoCD{
			Transport: e.argocdTransport,
		},
	}
}

// Returns the single environment name positional arg
func EnvironmentArg(args []string) (string, error) {
	if len(args) < 1 {
		return "", errors.New("the name of the environment is required")
	} else if len(args) > 1 {
		return "", errors.New("too many arguments supplied")
	}

	return args[0], nil
}

// Completes the environment name arg with the environments defined in the
// configured environments file
func CompleteEnvironments(command *cobra.Command, args []string, toComplete string) (
	[]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	names, err := environment.Names(config.ViperConfig.GetString("environments-file"))
	if err != nil {
		cobra.CompDebugln(fmt.Sprintf("Error listing environments: %v", err), false)
		return nil, cobra.ShellCompDirectiveError
	}

	completions := make([]string, 0, len(names))
	for _, name := range names {
		if strings.HasPrefix(name, toComplete) {
			completions = append(completions, name)
		}
	}

	return completions, cobra.ShellCompDirectiveNoFileComp
}

// Loads an environment from the configured environments file, merging in CLI
// values
func LoadEnvironment(name string, flags *EnvironmentFlags, out io.Writer) (*environment.Environment, error) {
	env, err := environment.Load(name, config.Config.EnvironmentsFile, flags.values())
	if err != nil {
		return nil, errors.WithStack(err)
	}

	_, err = fmt.Fprintf(out, "Loaded environment %s\n", env)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return env, nil
}

// Returns lazily-created kube clients for an environment's cluster
func KubeClients(env *environment.Environment) *kube.Clients {
	return kube.NewClients(env.Kubeconfig, env.KubeContext)
}

// Returns an Argo CD client for an environment. The caller must close it.
func ArgoCDClient(ctx context.Context, env *environment.Environment, clients argocd.KubeSource) (
	*argocd.Client, error) {
	client, err := argocd.New(ctx, env.ArgoCDConfig(), clients)
	if err != nil {
		return nil, errors.Wrapf(err, "Error connecting to Argo CD for environment '%s'", env.Name)
	}

	return client, nil
}

// Returns a context that's cancelled on SIGINT or SIGTERM
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
