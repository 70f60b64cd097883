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

package apps

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/skratchdot/open-golang/open"
	"github.com/spf13/cobra"
	"github.com/sugarkube/platformctl/internal/pkg/cmd/cli/utils"
	"github.com/sugarkube/platformctl/internal/pkg/config"
	"github.com/sugarkube/platformctl/internal/pkg/environment"
	"github.com/sugarkube/platformctl/internal/pkg/kube"
	"github.com/sugarkube/platformctl/internal/pkg/log"
	"github.com/sugarkube/platformctl/internal/pkg/rollout"
)

type syncCmd struct {
	out      io.Writer
	openUI   bool
	envFlags utils.EnvironmentFlags
}

func NewSyncCmd(out io.Writer) *cobra.Command {
	c := &syncCmd{
		out: out,
	}

	command := &cobra.Command{
		Use:   "sync [flags] [environment]",
		Short: "Roll out an environment's applications",
		Long: `Sync an environment's Argo CD applications one at a time, waiting for each
to become healthy before moving on to the next, e.g.:

	$ platformctl sync dev

The rollout stops at the first application that doesn't appear, becomes
Degraded or doesn't become healthy in time, and the command exits non-zero.
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
	f.BoolVar(&c.openUI, "open-ui", false, "open the Argo CD UI in a browser if the rollout fails")
	c.envFlags.AddFlags(command)

	return command
}

func (c *syncCmd) run(ctx context.Context, name string) error {
	env, err := utils.LoadEnvironment(name, &c.envFlags, c.out)
	if err != nil {
		return errors.WithStack(err)
	}

	ctx, stop := utils.SignalContext(ctx)
	defer stop()

	return Sync(ctx, c.out, env, utils.KubeClients(env), c.openUI)
}

// Runs the rollout plan of an environment. Returns a *rollout.Failure if the
// rollout didn't succeed.
func Sync(ctx context.Context, out io.Writer, env *environment.Environment, clients *kube.Clients,
	openUI bool) error {
	plan, err := env.Plan()
	if err != nil {
		return errors.WithStack(err)
	}

	client, err := utils.ArgoCDClient(ctx, env, clients)
	if err != nil {
		return errors.WithStack(err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			log.Logger.Warnf("Error closing the Argo CD client: %v", err)
		}
	}()

	orchestrator := rollout.NewOrchestrator(client, client, client, rollout.Settings{
		PollInterval:     config.Config.PollInterval,
		ExistenceRetries: config.Config.ExistenceRetries,
	})

	result := orchestrator.Run(ctx, plan)

	_, err = fmt.Fprintf(out, "\n%s\n%s\n", result.Table(), result.Summary())
	if err != nil {
		return errors.WithStack(err)
	}

	if result.Success {
		return nil
	}

	if openUI {
		openArgoCD(env)
	}

	return result.AsError()
}

// Opens the Argo CD UI so the failed application can be inspected
func openArgoCD(env *environment.Environment) {
	if env.ArgoCD.UIURL == "" {
		log.Logger.Warnf("No Argo CD UI URL configured for environment '%s'", env.Name)
		return
	}

	err := open.Run(env.ArgoCD.UIURL)
	if err != nil {
		log.Logger.Warnf("Error opening %s in a browser: %v", env.ArgoCD.UIURL, err)
	}
}
