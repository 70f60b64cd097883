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
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sugarkube/platformctl/internal/pkg/log"
)

// Describes a command to run
type Command struct {
	Name    string
	Args    []string
	EnvVars map[string]string
	Dir     string
	Stdin   io.Reader
	// zero means no timeout
	Timeout time.Duration
	DryRun  bool
}

// Returns the command as it would be typed into a shell, env vars first
func (c Command) String() string {
	return strings.TrimSpace(fmt.Sprintf("%s %s %s",
		strings.Join(envVarList(c.EnvVars), " "), c.Name, strings.Join(c.Args, " ")))
}

// Runs a command. ExecCommand is the real implementation, tests substitute
// their own.
type CommandRunner func(ctx context.Context, command Command, stdoutBuf *bytes.Buffer,
	stderrBuf *bytes.Buffer) error

// Executes a command with an optional timeout, writing stdout and stderr to
// buffers. If `DryRun` is true, a log message of what would have been executed
// is emitted instead.
func ExecCommand(ctx context.Context, command Command, stdoutBuf *bytes.Buffer,
	stderrBuf *bytes.Buffer) error {

	// reset the buffers in case they've already been used
	stdoutBuf.Reset()
	stderrBuf.Reset()

	var cancel context.CancelFunc
	if command.Timeout > 0 {
		log.Logger.Debugf("%s command will be run with a timeout of %s",
			command.Name, command.Timeout)

		ctx, cancel = context.WithTimeout(ctx, command.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, command.Name, command.Args...)
	cmd.Env = append(os.Environ(), envVarList(command.EnvVars)...)
	cmd.Stdout = stdoutBuf
	cmd.Stderr = stderrBuf
	cmd.Stdin = command.Stdin
	cmd.Dir = command.Dir

	if command.DryRun {
		log.Logger.Infof("Dry run. Would run command in directory '%s':\n%s\n",
			cmd.Dir, command)
		return nil
	}

	log.Logger.Debugf("Executing command in directory '%s':\n%s\n", cmd.Dir, command)

	err := cmd.Run()
	if command.Timeout > 0 && ctx.Err() == context.DeadlineExceeded {
		return errors.Wrapf(ctx.Err(), "Timed out executing command in "+
			"directory '%s':\n%s\nStdout=%s\nStderr=%s", cmd.Dir, command,
			stdoutBuf.String(), stderrBuf.String())
	}
	if err != nil {
		return errors.Wrapf(err, "Failed to run command in directory '%s':\n%s\n"+
			"Stdout=%s\nStderr=%s", cmd.Dir, command, stdoutBuf.String(),
			stderrBuf.String())
	}

	return nil
}

// Returns true if the error came from the command exiting non-zero, as opposed
// to it failing to start or timing out
func IsExitError(err error) bool {
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr)
}

func envVarList(envVars map[string]string) []string {
	strEnvVars := make([]string, 0, len(envVars))
	for k, v := range envVars {
		strEnvVars = append(strEnvVars, strings.Join([]string{k, v}, "="))
	}
	sort.Strings(strEnvVars)
	return strEnvVars
}
