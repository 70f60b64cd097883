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

package clustersot

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sugarkube/platformctl/internal/pkg/log"
	"github.com/sugarkube/platformctl/internal/pkg/utils"
)

const kubectlPath = "kubectl"
const kubectlTimeout = 30 * time.Second

// pod phases that don't stop a cluster being ready
var readyPhases = map[string]bool{
	"Running":   true,
	"Succeeded": true,
}

type KubectlClusterSot struct {
	kubeconfig  string
	kubeContext string
	run         utils.CommandRunner
}

func NewKubectlClusterSot(kubeconfig string, kubeContext string) *KubectlClusterSot {
	return &KubectlClusterSot{
		kubeconfig:  kubeconfig,
		kubeContext: kubeContext,
		run:         utils.ExecCommand,
	}
}

func (c *KubectlClusterSot) command(args ...string) utils.Command {
	globalArgs := make([]string, 0)
	if c.kubeconfig != "" {
		globalArgs = append(globalArgs, "--kubeconfig", c.kubeconfig)
	}
	if c.kubeContext != "" {
		globalArgs = append(globalArgs, "--context", c.kubeContext)
	}

	return utils.Command{
		Name:    kubectlPath,
		Args:    append(globalArgs, args...),
		Timeout: kubectlTimeout,
	}
}

// Tests whether the cluster is online
func (c *KubectlClusterSot) IsOnline(ctx context.Context) (bool, error) {
	var stdoutBuf, stderrBuf bytes.Buffer

	// poll `kubectl --context {{ kube_context }} get namespace`
	err := c.run(ctx, c.command("get", "namespace"), &stdoutBuf, &stderrBuf)
	if err != nil {
		if utils.IsExitError(err) || errors.Is(err, context.DeadlineExceeded) {
			log.Logger.Debug("Cluster isn't online yet - kubectl not getting results")
			return false, nil
		}

		return false, errors.Wrap(err, "Error checking whether cluster is online")
	}

	return true, nil
}

// Tests whether all pods in kube-system are running
func (c *KubectlClusterSot) IsReady(ctx context.Context) (bool, error) {
	var stdoutBuf, stderrBuf bytes.Buffer

	err := c.run(ctx, c.command("-n", "kube-system", "get", "pod", "-o",
		`go-template={{ range .items }}{{ printf "%s\n" .status.phase }}{{ end }}`),
		&stdoutBuf, &stderrBuf)
	if err != nil {
		if utils.IsExitError(err) {
			log.Logger.Debugf("kubectl couldn't list pods: %s", strings.TrimSpace(stderrBuf.String()))
			return false, nil
		}

		return false, errors.Wrap(err, "kubectl terminated badly")
	}

	return allReady(stdoutBuf.String()), nil
}

// Returns true if there's at least one pod and every pod phase is ready
func allReady(phases string) bool {
	numPods := 0
	for _, phase := range strings.Fields(phases) {
		numPods++
		if !readyPhases[phase] {
			log.Logger.Debugf("Found a pod in phase '%s'", phase)
			return false
		}
	}

	return numPods > 0
}
