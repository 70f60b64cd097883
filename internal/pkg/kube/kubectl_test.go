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
	"io"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sugarkube/platformctl/internal/pkg/printer"
	"github.com/sugarkube/platformctl/internal/pkg/utils"
)

// Records commands instead of running them
type recorder struct {
	commands []string
	stdin    []string
	// returns an error for commands containing the key
	failures map[string]error
}

func (r *recorder) run(ctx context.Context, command utils.Command, stdoutBuf *bytes.Buffer,
	stderrBuf *bytes.Buffer) error {
	line := command.String()
	r.commands = append(r.commands, line)

	if command.Stdin != nil {
		data, _ := io.ReadAll(command.Stdin)
		r.stdin = append(r.stdin, string(data))
	}

	for key, err := range r.failures {
		if strings.Contains(line, key) {
			return err
		}
	}

	return nil
}

// Returns a real exit error, as returned when kubectl exits non-zero
func exitError(t *testing.T) error {
	err := exec.Command("false").Run()
	require.NotNil(t, err)
	return errors.WithStack(err)
}

func newTestKubectl() (*Kubectl, *recorder) {
	r := &recorder{failures: map[string]error{}}
	k := NewKubectl("/tmp/kubeconfig", "dev")
	k.run = r.run
	return k, r
}

func init() {
	printer.SetOutput(io.Discard)
}

func TestNamespaceExists(t *testing.T) {
	k, r := newTestKubectl()

	exists, err := k.NamespaceExists(context.Background(), "argocd")
	require.Nil(t, err)
	assert.True(t, exists)
	assert.Equal(t, []string{
		"kubectl --kubeconfig /tmp/kubeconfig --context dev get namespace argocd",
	}, r.commands)

	r.failures["get namespace"] = exitError(t)
	exists, err = k.NamespaceExists(context.Background(), "argocd")
	require.Nil(t, err)
	assert.False(t, exists)
}

func TestNamespaceExistsPropagatesOtherErrors(t *testing.T) {
	k, r := newTestKubectl()
	r.failures["get namespace"] = errors.New("executable not found")

	_, err := k.NamespaceExists(context.Background(), "argocd")
	assert.NotNil(t, err)
}

func TestCreateNamespace(t *testing.T) {
	k, r := newTestKubectl()
	r.failures["get namespace"] = exitError(t)

	err := k.CreateNamespace(context.Background(), "crossplane-system")
	require.Nil(t, err)
	assert.Len(t, r.commands, 2)
	assert.True(t, strings.HasSuffix(r.commands[1], "create namespace crossplane-system"))
}

func TestCreateNamespaceSkipsExisting(t *testing.T) {
	k, r := newTestKubectl()

	err := k.CreateNamespace(context.Background(), "crossplane-system")
	require.Nil(t, err)
	assert.Len(t, r.commands, 1)
}

func TestApplyManifestUsesStdin(t *testing.T) {
	k, r := newTestKubectl()

	err := k.ApplyManifest(context.Background(), []byte("kind: ConfigMap\n"), "argocd")
	require.Nil(t, err)
	assert.True(t, strings.HasSuffix(r.commands[0], "apply -f - -n argocd"))
	assert.Equal(t, []string{"kind: ConfigMap\n"}, r.stdin)
}

func TestInstallArgoCD(t *testing.T) {
	k, r := newTestKubectl()

	err := k.InstallArgoCD(context.Background(), "", "argocd", 2*time.Minute)
	require.Nil(t, err)

	require.Len(t, r.commands, 3)
	assert.Contains(t, r.commands[1],
		"https://raw.githubusercontent.com/argoproj/argo-cd/v2.10.0/manifests/install.yaml")
	assert.True(t, strings.HasSuffix(r.commands[2],
		"wait --for=condition=available --timeout=120s deployment/argocd-server -n argocd"))
}

func TestInstallArgoCDStopsOnApplyFailure(t *testing.T) {
	k, r := newTestKubectl()
	r.failures["apply"] = exitError(t)

	err := k.InstallArgoCD(context.Background(), "v2.11.0", "argocd", 0)
	assert.NotNil(t, err)
	for _, command := range r.commands {
		assert.NotContains(t, command, "wait")
	}
}

func TestApplyApplicationSets(t *testing.T) {
	k, r := newTestKubectl()

	err := k.ApplyApplicationSets(context.Background(), "/repo/k8s/argocd")
	require.Nil(t, err)
	assert.Equal(t, []string{
		"kubectl --kubeconfig /tmp/kubeconfig --context dev apply -f /repo/k8s/argocd/base/project.yaml",
		"kubectl --kubeconfig /tmp/kubeconfig --context dev apply -f /repo/k8s/argocd/base/applicationsets.yaml",
	}, r.commands)
}
