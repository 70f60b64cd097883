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

package provisioner

import (
	"bytes"
	"context"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/sugarkube/platformctl/internal/pkg/clustersot"
	"github.com/sugarkube/platformctl/internal/pkg/environment"
	"github.com/sugarkube/platformctl/internal/pkg/log"
	"github.com/sugarkube/platformctl/internal/pkg/printer"
	"github.com/sugarkube/platformctl/internal/pkg/templater"
	"github.com/sugarkube/platformctl/internal/pkg/utils"
)

const EksProvisionerName = "eks"
const eksDefaultBinary = "eksctl"
const awsBinary = "aws"

const eksCommandTimeout = 30 * time.Second
const kubeconfigCommandTimeout = 60 * time.Second

// how long to sleep after the cluster has come online before checking whether
// it's ready
const EksSleepBeforeReadyCheck = 60 * time.Second

type EksProvisioner struct {
	clusterSot clustersot.ClusterSot
	eksConfig  EksConfig
	run        utils.CommandRunner
}

type EksConfig struct {
	Binary      string
	ClusterName string
	Region      string
	// template for an eksctl ClusterConfig file. Optional.
	ConfigTemplate string
	// vars the config template is rendered with
	Vars       map[string]interface{}
	ExtraArgs  []string
	Kubeconfig string
	// name to give the kube context, if not the eksctl default
	KubeContext string
}

// Instantiates a new instance
func newEksProvisioner(env *environment.Environment, clusterSot clustersot.ClusterSot) (*EksProvisioner, error) {
	eksConfig, err := parseEksConfig(env)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return &EksProvisioner{
		eksConfig:  *eksConfig,
		clusterSot: clusterSot,
		run:        utils.ExecCommand,
	}, nil
}

func (p EksProvisioner) Name() string {
	return EksProvisionerName
}

func (p EksProvisioner) ClusterSot() clustersot.ClusterSot {
	return p.clusterSot
}

func (p EksProvisioner) clusterParams() map[string]string {
	return map[string]string{
		"name":   p.eksConfig.ClusterName,
		"region": p.eksConfig.Region,
	}
}

// Returns a bool indicating whether the cluster exists (but it may not yet respond to kubectl commands)
func (p EksProvisioner) ClusterExists(ctx context.Context) (bool, error) {
	log.Logger.Infof("Checking if EKS cluster '%s' already exists...", p.eksConfig.ClusterName)

	args := parameteriseValues([]string{"get", "cluster"}, p.clusterParams())

	var stdoutBuf, stderrBuf bytes.Buffer

	err := p.run(ctx, utils.Command{
		Name:    p.eksConfig.Binary,
		Args:    args,
		Timeout: eksCommandTimeout,
	}, &stdoutBuf, &stderrBuf)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return false, errors.Wrap(err,
				"Timed out trying to retrieve EKS cluster config. "+
					"Check your credentials.")
		}

		if utils.IsExitError(err) {
			log.Logger.Info("EKS cluster doesn't exist")
			return false, nil
		}

		return false, errors.Wrap(err, "Error fetching EKS clusters")
	}

	return true, nil
}

// Renders the cluster config template to a temporary file and returns its
// path. If there's no template an empty path is returned.
func (p EksProvisioner) writeConfigFile() (string, error) {
	if p.eksConfig.ConfigTemplate == "" {
		log.Logger.Infof("No EKS config file template configured. The cluster will be " +
			"created from CLI flags")
		return "", nil
	}

	rendered, err := templater.RenderFile(p.eksConfig.ConfigTemplate, p.eksConfig.Vars)
	if err != nil {
		return "", errors.WithStack(err)
	}

	tmpfile, err := os.CreateTemp("", "eks.*.yaml")
	if err != nil {
		return "", errors.WithStack(err)
	}

	defer tmpfile.Close()

	if _, err := tmpfile.WriteString(rendered); err != nil {
		return "", errors.WithStack(err)
	}
	if err := tmpfile.Close(); err != nil {
		return "", errors.WithStack(err)
	}

	log.Logger.Debugf("EKS config file written to: %s", tmpfile.Name())

	return tmpfile.Name(), nil
}

// Creates an EKS cluster
func (p EksProvisioner) Create(ctx context.Context, dryRun bool) (bool, error) {
	clusterExists, err := p.ClusterExists(ctx)
	if err != nil {
		return false, errors.WithStack(err)
	}

	if clusterExists {
		_, err = printer.Fprintf("[yellow]An EKS cluster already exists called '%s'. "+
			"Won't recreate it...\n", p.eksConfig.ClusterName)
		return false, errors.WithStack(err)
	}

	args := []string{"create", "cluster"}

	configFilePath, err := p.writeConfigFile()
	if err != nil {
		return false, errors.WithStack(err)
	}

	if configFilePath != "" {
		defer os.Remove(configFilePath)
		// names and regions come from the config file
		args = append(args, "-f", configFilePath)
	} else {
		args = parameteriseValues(args, p.clusterParams())
	}

	args = append(args, p.eksConfig.ExtraArgs...)

	_, err = printer.Fprintf("[blue]Creating EKS cluster '%s' (this may take some time)...\n",
		p.eksConfig.ClusterName)
	if err != nil {
		return false, errors.WithStack(err)
	}

	var stdoutBuf, stderrBuf bytes.Buffer

	// this command takes a long time so don't supply a timeout
	err = p.run(ctx, utils.Command{
		Name:   p.eksConfig.Binary,
		Args:   args,
		DryRun: dryRun,
	}, &stdoutBuf, &stderrBuf)
	if err != nil {
		return false, errors.WithStack(err)
	}

	if !dryRun {
		log.Logger.Debugf("eksctl returned:\n%s", stdoutBuf.String())
		_, err = printer.Fprintf("[green]EKS cluster '%s' created\n", p.eksConfig.ClusterName)
		if err != nil {
			return false, errors.WithStack(err)
		}
	}

	return !dryRun, nil
}

// Writes credentials for the cluster to the kubeconfig file with the AWS CLI
func (p EksProvisioner) WriteKubeConfig(ctx context.Context, dryRun bool) error {
	log.Logger.Infof("Updating kubeconfig for EKS cluster '%s'...", p.eksConfig.ClusterName)

	args := []string{"eks", "update-kubeconfig",
		"--name", p.eksConfig.ClusterName,
		"--region", p.eksConfig.Region}

	if p.eksConfig.Kubeconfig != "" {
		args = append(args, "--kubeconfig", p.eksConfig.Kubeconfig)
	}
	if p.eksConfig.KubeContext != "" {
		args = append(args, "--alias", p.eksConfig.KubeContext)
	}

	var stdoutBuf, stderrBuf bytes.Buffer

	err := p.run(ctx, utils.Command{
		Name:    awsBinary,
		Args:    args,
		Timeout: kubeconfigCommandTimeout,
		DryRun:  dryRun,
	}, &stdoutBuf, &stderrBuf)
	if err != nil {
		return errors.Wrapf(err, "Error updating kubeconfig for cluster '%s'",
			p.eksConfig.ClusterName)
	}

	log.Logger.Debugf("aws returned:\n%s", stdoutBuf.String())

	return nil
}

// Builds the EKS provisioner config from an environment
func parseEksConfig(env *environment.Environment) (*EksConfig, error) {
	extraArgs, err := env.EksctlArgs()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	eksConfig := EksConfig{
		Binary:         env.Eksctl.Binary,
		ClusterName:    env.Cluster,
		Region:         env.Region,
		ConfigTemplate: env.Eksctl.ConfigTemplate,
		Vars:           env.Vars(),
		ExtraArgs:      extraArgs,
		Kubeconfig:     env.Kubeconfig,
		KubeContext:    env.KubeContext,
	}

	if eksConfig.Binary == "" {
		eksConfig.Binary = eksDefaultBinary
		log.Logger.Warnf("Using default %s binary '%s'. It's safer to explicitly set the path to a versioned "+
			"binary (e.g. %s-1.2.3) in the environment configuration", EksProvisionerName, eksDefaultBinary,
			eksDefaultBinary)
	}

	if eksConfig.ClusterName == "" {
		return nil, errors.New("No cluster name set for the EKS provisioner")
	}

	return &eksConfig, nil
}
