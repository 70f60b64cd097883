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
	"io"
	"os"
	"os/exec"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sugarkube/platformctl/internal/pkg/environment"
	"github.com/sugarkube/platformctl/internal/pkg/log"
	"github.com/sugarkube/platformctl/internal/pkg/printer"
	"github.com/sugarkube/platformctl/internal/pkg/utils"
)

func init() {
	log.ConfigureLogger("debug", false)
	printer.SetOutput(io.Discard)
}

type commandRecorder struct {
	commands []utils.Command
	// rendered config files, read before they're deleted
	configFiles []string
	// error returned for commands whose args start with the key
	errs map[string]error
}

func (r *commandRecorder) run(ctx context.Context, command utils.Command, stdoutBuf *bytes.Buffer,
	stderrBuf *bytes.Buffer) error {
	r.commands = append(r.commands, command)

	for i, arg := range command.Args {
		if arg == "-f" && i+1 < len(command.Args) {
			data, err := os.ReadFile(command.Args[i+1])
			if err != nil {
				return err
			}
			r.configFiles = append(r.configFiles, string(data))
		}
	}

	for prefix, err := range r.errs {
		if strings.HasPrefix(strings.Join(command.Args, " "), prefix) {
			return err
		}
	}

	return nil
}

func newTestEks(t *testing.T, env *environment.Environment) (*EksProvisioner, *commandRecorder) {
	p, err := newEksProvisioner(env, nil)
	require.Nil(t, err)

	recorder := &commandRecorder{errs: map[string]error{}}
	p.run = recorder.run

	return p, recorder
}

func testEnvironment() *environment.Environment {
	env := environment.Defaults("dev")
	env.Cluster = "stack-dev"
	env.Eksctl.Args = `--tags "team=platform"`
	return env
}

func notFound(t *testing.T) error {
	err := exec.Command("false").Run()
	require.NotNil(t, err)
	return errors.WithStack(err)
}

func TestClusterExists(t *testing.T) {
	p, recorder := newTestEks(t, testEnvironment())

	exists, err := p.ClusterExists(context.Background())
	require.Nil(t, err)
	assert.True(t, exists)
	assert.Equal(t, "eksctl get cluster --name=stack-dev --region=us-east-1",
		recorder.commands[0].String())

	recorder.errs["get cluster"] = notFound(t)
	exists, err = p.ClusterExists(context.Background())
	require.Nil(t, err)
	assert.False(t, exists)
}

func TestClusterExistsTimeout(t *testing.T) {
	p, recorder := newTestEks(t, testEnvironment())
	recorder.errs["get cluster"] = errors.Wrap(context.DeadlineExceeded, "timed out")

	_, err := p.ClusterExists(context.Background())
	assert.NotNil(t, err)
}

func TestCreateSkipsExistingCluster(t *testing.T) {
	p, recorder := newTestEks(t, testEnvironment())

	created, err := p.Create(context.Background(), false)
	require.Nil(t, err)
	assert.False(t, created)
	assert.Len(t, recorder.commands, 1)
}

func TestCreateFromFlags(t *testing.T) {
	p, recorder := newTestEks(t, testEnvironment())
	recorder.errs["get cluster"] = notFound(t)

	created, err := p.Create(context.Background(), false)
	require.Nil(t, err)
	assert.True(t, created)
	require.Len(t, recorder.commands, 2)
	assert.Equal(t, []string{"create", "cluster", "--name=stack-dev", "--region=us-east-1",
		"--tags", "team=platform"}, recorder.commands[1].Args)
	assert.Equal(t, "eksctl", recorder.commands[1].Name)
}

func TestCreateFromTemplate(t *testing.T) {
	env := testEnvironment()
	env.Eksctl.ConfigTemplate = "./testdata/cluster.yaml.tpl"
	env.Eksctl.Args = ""

	p, recorder := newTestEks(t, env)
	recorder.errs["get cluster"] = notFound(t)

	created, err := p.Create(context.Background(), false)
	require.Nil(t, err)
	assert.True(t, created)

	args := recorder.commands[1].Args
	assert.Equal(t, []string{"create", "cluster", "-f"}, args[:3])
	require.Len(t, recorder.configFiles, 1)
	assert.Contains(t, recorder.configFiles[0], "name: stack-dev")
	assert.Contains(t, recorder.configFiles[0], "environment: DEV")
	assert.Contains(t, recorder.configFiles[0], "availabilityZones: [us-east-1a, us-east-1b, us-east-1c]")

	// the rendered file is cleaned up
	_, err = os.Stat(args[3])
	assert.True(t, os.IsNotExist(err))
}

func TestCreateDryRun(t *testing.T) {
	p, recorder := newTestEks(t, testEnvironment())
	recorder.errs["get cluster"] = notFound(t)

	created, err := p.Create(context.Background(), true)
	require.Nil(t, err)
	assert.False(t, created)
	assert.True(t, recorder.commands[1].DryRun)
}

func TestWriteKubeConfig(t *testing.T) {
	env := testEnvironment()
	env.KubeContext = "dev-admin"
	p, recorder := newTestEks(t, env)

	err := p.WriteKubeConfig(context.Background(), false)
	require.Nil(t, err)
	assert.Equal(t, "aws eks update-kubeconfig --name stack-dev --region us-east-1 --alias dev-admin",
		recorder.commands[0].String())
}

func TestParseEksConfigDefaultsBinary(t *testing.T) {
	env := testEnvironment()
	env.Eksctl.Binary = ""

	config, err := parseEksConfig(env)
	require.Nil(t, err)
	assert.Equal(t, eksDefaultBinary, config.Binary)
	assert.Equal(t, []string{"--tags", "team=platform"}, config.ExtraArgs)
}
