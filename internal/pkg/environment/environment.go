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

package environment

import (
	"fmt"
	"time"

	"github.com/mattn/go-shellwords"
	"github.com/pkg/errors"
	"github.com/sugarkube/platformctl/internal/pkg/argocd"
	"github.com/sugarkube/platformctl/internal/pkg/gitops"
	"github.com/sugarkube/platformctl/internal/pkg/rollout"
)

const (
	ProvisionerEks  = "eks"
	ProvisionerNone = "none"

	DefaultCluster = "stack-test"
	DefaultRegion  = "us-east-1"

	defaultClusterReadyTimeout = 30 * time.Minute
	defaultArgoCDReadyTimeout  = 5 * time.Minute
)

// Everything needed to bootstrap and roll out one environment
type Environment struct {
	// the key the environment was loaded from, e.g. 'dev'
	Name        string              `yaml:"-"`
	Cluster     string              `yaml:"cluster"`
	Region      string              `yaml:"region"`
	Account     string              `yaml:"account"`
	Provisioner string              `yaml:"provisioner"`
	KubeContext string              `yaml:"kubeContext"`
	Kubeconfig  string              `yaml:"kubeconfig"`
	Eksctl      Eksctl              `yaml:"eksctl"`
	ArgoCD      ArgoCD              `yaml:"argocd"`
	Paths       Paths               `yaml:"paths"`
	Stages      []rollout.StageSpec `yaml:"stages"`
	Timeouts    Timeouts            `yaml:"timeouts"`
}

type Eksctl struct {
	Binary string `yaml:"binary"`
	// path to a cluster config template rendered with the environment's vars
	ConfigTemplate string `yaml:"configTemplate"`
	// extra args, split with shell quoting rules
	Args string `yaml:"args"`
}

type ArgoCD struct {
	Namespace string `yaml:"namespace"`
	Transport string `yaml:"transport"`
	Server    string `yaml:"server"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	Insecure  bool   `yaml:"insecure"`

	// port-forward to the API server pod instead of using `server`. Unset
	// means true. Not defaulted because mergo treats false as empty.
	PortForward     *bool  `yaml:"portForward,omitempty"`
	ServerPort      int    `yaml:"serverPort"`
	Version         string `yaml:"version"`
	UIURL           string `yaml:"uiUrl"`
	ApplicationSets string `yaml:"applicationSets"`
	RequestTimeout  string `yaml:"requestTimeout"`
}

type Paths struct {
	// IAM policy document used as the Crossplane permission boundary
	PermissionBoundary string `yaml:"permissionBoundary"`
}

type Timeouts struct {
	ClusterReady string `yaml:"clusterReady"`
	ArgoCDReady  string `yaml:"argocdReady"`
}

// Returns the values used for anything an environment doesn't set
func Defaults(name string) *Environment {
	return &Environment{
		Name:        name,
		Cluster:     DefaultCluster,
		Region:      DefaultRegion,
		Provisioner: ProvisionerEks,
		Eksctl: Eksctl{
			Binary: "eksctl",
		},
		ArgoCD: ArgoCD{
			Namespace:       gitops.DefaultNamespace,
			Transport:       argocd.TransportRest,
			Username:        argocd.DefaultUsername,
			Version:         "v2.10.0",
			ApplicationSets: "k8s/argocd",
		},
		Paths: Paths{
			PermissionBoundary: "k8s/bootstrap/platform/permission-boundary.json",
		},
		Timeouts: Timeouts{
			ClusterReady: defaultClusterReadyTimeout.String(),
			ArgoCDReady:  defaultArgoCDReadyTimeout.String(),
		},
	}
}

func (e *Environment) Validate() error {
	if e.Name == "" {
		return errors.New("The environment name is required")
	}
	if e.Cluster == "" {
		return errors.Errorf("No cluster name set for environment '%s'", e.Name)
	}
	if e.Region == "" {
		return errors.Errorf("No region set for environment '%s'", e.Name)
	}

	switch e.Provisioner {
	case ProvisionerEks, ProvisionerNone:
	default:
		return errors.Errorf("Unsupported provisioner '%s' for environment '%s'. "+
			"Must be one of: %s, %s", e.Provisioner, e.Name, ProvisionerEks, ProvisionerNone)
	}

	switch e.ArgoCD.Transport {
	case argocd.TransportRest:
		if !e.portForward() && e.ArgoCD.Server == "" {
			return errors.Errorf("Environment '%s' must set an Argo CD server "+
				"when port-forwarding is disabled", e.Name)
		}
	case argocd.TransportKube:
	default:
		return errors.Errorf("Unsupported Argo CD transport '%s' for environment '%s'",
			e.ArgoCD.Transport, e.Name)
	}

	for name, value := range map[string]string{
		"timeouts.clusterReady": e.Timeouts.ClusterReady,
		"timeouts.argocdReady":  e.Timeouts.ArgoCDReady,
		"argocd.requestTimeout": e.ArgoCD.RequestTimeout,
	} {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return errors.Wrapf(err, "Invalid duration for %s in environment '%s'", name, e.Name)
		}
	}

	_, err := e.EksctlArgs()
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

func (e *Environment) portForward() bool {
	return e.ArgoCD.PortForward == nil || *e.ArgoCD.PortForward
}

// Returns the vars templates are rendered with
func (e *Environment) Vars() map[string]interface{} {
	return map[string]interface{}{
		"env":     e.Name,
		"cluster": e.Cluster,
		"region":  e.Region,
		"account": e.Account,
	}
}

// Returns the rollout plan. Environments without stages get the default plan.
func (e *Environment) Plan() (rollout.Plan, error) {
	if len(e.Stages) == 0 {
		return rollout.DefaultPlan(e.Name, e.ArgoCD.Namespace)
	}

	plan, err := rollout.BuildPlan(e.Stages, e.ArgoCD.Namespace, e.Vars())
	if err != nil {
		return nil, errors.Wrapf(err, "Invalid stages for environment '%s'", e.Name)
	}

	return plan, nil
}

// Returns the config for the Argo CD client
func (e *Environment) ArgoCDConfig() argocd.Config {
	cfg := argocd.Config{
		Transport:  e.ArgoCD.Transport,
		Namespace:  e.ArgoCD.Namespace,
		Username:   e.ArgoCD.Username,
		Password:   e.ArgoCD.Password,
		Insecure:   e.ArgoCD.Insecure,
		ServerPort: e.ArgoCD.ServerPort,
	}

	if !e.portForward() {
		cfg.Server = e.ArgoCD.Server
	}

	if e.ArgoCD.RequestTimeout != "" {
		cfg.RequestTimeout, _ = time.ParseDuration(e.ArgoCD.RequestTimeout)
	}

	return cfg
}

// Returns the extra args to pass to eksctl
func (e *Environment) EksctlArgs() ([]string, error) {
	if e.Eksctl.Args == "" {
		return []string{}, nil
	}

	args, err := shellwords.Parse(e.Eksctl.Args)
	if err != nil {
		return nil, errors.Wrapf(err, "Error parsing eksctl args '%s'", e.Eksctl.Args)
	}

	return args, nil
}

func (e *Environment) ClusterReadyTimeout() time.Duration {
	return parseDurationOr(e.Timeouts.ClusterReady, defaultClusterReadyTimeout)
}

func (e *Environment) ArgoCDReadyTimeout() time.Duration {
	return parseDurationOr(e.Timeouts.ArgoCDReady, defaultArgoCDReadyTimeout)
}

func (e *Environment) String() string {
	return fmt.Sprintf("%s (cluster '%s' in %s)", e.Name, e.Cluster, e.Region)
}

func parseDurationOr(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
