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

package kube

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sugarkube/platformctl/internal/pkg/log"
	"github.com/sugarkube/platformctl/internal/pkg/printer"
	"github.com/sugarkube/platformctl/internal/pkg/utils"
)

const (
	DefaultKubectlPath   = "kubectl"
	DefaultArgoCDVersion = "v2.10.0"

	argoCDManifestUrl      = "https://raw.githubusercontent.com/argoproj/argo-cd/%s/manifests/install.yaml"
	argoCDServerDeployment = "argocd-server"

	defaultWaitTimeout = 5 * time.Minute
	commandTimeout     = 2 * time.Minute
)

// Drives kubectl against one kubeconfig context
type Kubectl struct {
	Path       string
	Kubeconfig string
	Context    string
	DryRun     bool

	run utils.CommandRunner
}

func NewKubectl(kubeconfig string, context string) *Kubectl {
	return &Kubectl{
		Path:       DefaultKubectlPath,
		Kubeconfig: kubeconfig,
		Context:    context,
		run:        utils.ExecCommand,
	}
}

// Returns global args selecting the kubeconfig and context
func (k *Kubectl) baseArgs() []string {
	args := make([]string, 0)
	if k.Kubeconfig != "" {
		args = append(args, "--kubeconfig", k.Kubeconfig)
	}
	if k.Context != "" {
		args = append(args, "--context", k.Context)
	}
	return args
}

func (k *Kubectl) exec(ctx context.Context, stdin io.Reader, timeout time.Duration,
	args ...string) (string, string, error) {
	var stdoutBuf, stderrBuf bytes.Buffer

	command := utils.Command{
		Name:    k.Path,
		Args:    append(k.baseArgs(), args...),
		Stdin:   stdin,
		Timeout: timeout,
		DryRun:  k.DryRun,
	}

	err := k.run(ctx, command, &stdoutBuf, &stderrBuf)
	return stdoutBuf.String(), stderrBuf.String(), err
}

func (k *Kubectl) NamespaceExists(ctx context.Context, namespace string) (bool, error) {
	_, stderr, err := k.exec(ctx, nil, commandTimeout, "get", "namespace", namespace)
	if err != nil {
		if utils.IsExitError(err) {
			log.Logger.Debugf("kubectl couldn't get namespace '%s': %s", namespace,
				strings.TrimSpace(stderr))
			return false, nil
		}
		return false, errors.Wrapf(err, "Error checking whether namespace '%s' exists", namespace)
	}

	return true, nil
}

// Creates a namespace unless it already exists
func (k *Kubectl) CreateNamespace(ctx context.Context, namespace string) error {
	exists, err := k.NamespaceExists(ctx, namespace)
	if err != nil {
		return errors.WithStack(err)
	}

	if exists {
		_, err = printer.Fprintf("[yellow]Namespace %s already exists\n", namespace)
		return errors.WithStack(err)
	}

	_, _, err = k.exec(ctx, nil, commandTimeout, "create", "namespace", namespace)
	if err != nil {
		return errors.Wrapf(err, "Error creating namespace '%s'", namespace)
	}

	_, err = printer.Fprintf("[green]Created namespace %s\n", namespace)
	return errors.WithStack(err)
}

// Applies the manifest at the given path
func (k *Kubectl) Apply(ctx context.Context, path string, namespace string) error {
	_, _, err := k.exec(ctx, nil, commandTimeout, withNamespace(namespace, "apply", "-f", path)...)
	if err != nil {
		return errors.Wrapf(err, "Error applying manifest '%s'", path)
	}

	return nil
}

// Applies a manifest passed on stdin
func (k *Kubectl) ApplyManifest(ctx context.Context, manifest []byte, namespace string) error {
	_, _, err := k.exec(ctx, bytes.NewReader(manifest), commandTimeout,
		withNamespace(namespace, "apply", "-f", "-")...)
	if err != nil {
		return errors.Wrap(err, "Error applying manifest from stdin")
	}

	return nil
}

// Applies the manifest at a URL
func (k *Kubectl) ApplyURL(ctx context.Context, url string, namespace string) error {
	// server-side apply avoids the size limit on the last-applied annotation,
	// which Argo CD's CRDs exceed
	_, _, err := k.exec(ctx, nil, commandTimeout,
		withNamespace(namespace, "apply", "--server-side", "--force-conflicts", "-f", url)...)
	if err != nil {
		return errors.Wrapf(err, "Error applying manifest from '%s'", url)
	}

	return nil
}

// Blocks until a deployment reports the Available condition
func (k *Kubectl) WaitForDeployment(ctx context.Context, deployment string, namespace string,
	timeout time.Duration) error {
	if timeout <= 0 {
		timeout = defaultWaitTimeout
	}

	_, err := printer.Fprintf("[blue]Waiting for %s to be ready...\n", deployment)
	if err != nil {
		return errors.WithStack(err)
	}

	// give the command itself a little longer than kubectl's own timeout
	_, _, err = k.exec(ctx, nil, timeout+30*time.Second, "wait",
		"--for=condition=available",
		fmt.Sprintf("--timeout=%ds", int(timeout.Seconds())),
		fmt.Sprintf("deployment/%s", deployment),
		"-n", namespace)
	if err != nil {
		return errors.Wrapf(err, "Deployment %s/%s didn't become available", namespace, deployment)
	}

	return nil
}

// Installs the given release of Argo CD into a namespace and waits for its
// API server
func (k *Kubectl) InstallArgoCD(ctx context.Context, version string, namespace string,
	timeout time.Duration) error {
	if version == "" {
		version = DefaultArgoCDVersion
	}

	err := k.CreateNamespace(ctx, namespace)
	if err != nil {
		return errors.WithStack(err)
	}

	_, err = printer.Fprintf("[blue]Installing Argo CD %s...\n", version)
	if err != nil {
		return errors.WithStack(err)
	}

	err = k.ApplyURL(ctx, fmt.Sprintf(argoCDManifestUrl, version), namespace)
	if err != nil {
		return errors.WithStack(err)
	}

	err = k.WaitForDeployment(ctx, argoCDServerDeployment, namespace, timeout)
	if err != nil {
		return errors.WithStack(err)
	}

	_, err = printer.Fprintln("[green]Argo CD installed successfully")
	return errors.WithStack(err)
}

// Applies the Argo CD project and the ApplicationSets that generate the
// platform's applications
func (k *Kubectl) ApplyApplicationSets(ctx context.Context, dir string) error {
	for _, name := range []string{"project.yaml", "applicationsets.yaml"} {
		path := filepath.Join(dir, "base", name)
		log.Logger.Debugf("Applying %s", path)

		err := k.Apply(ctx, path, "")
		if err != nil {
			return errors.WithStack(err)
		}
	}

	_, err := printer.Fprintln("[green]Applied Argo CD ApplicationSets")
	return errors.WithStack(err)
}

func withNamespace(namespace string, args ...string) []string {
	if namespace != "" {
		args = append(args, "-n", namespace)
	}
	return args
}
