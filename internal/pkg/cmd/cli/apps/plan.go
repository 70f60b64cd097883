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
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/sugarkube/platformctl/internal/pkg/cmd/cli/utils"
	"github.com/sugarkube/platformctl/internal/pkg/rollout"
)

type planCmd struct {
	out      io.Writer
	envFlags utils.EnvironmentFlags
}

func NewPlanCmd(out io.Writer) *cobra.Command {
	c := &planCmd{
		out: out,
	}

	command := &cobra.Command{
		Use:   "plan [flags] [environment]",
		Short: "Print an environment's rollout plan",
		Long:  `Validate and print the applications 'sync' would roll out, in order.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := utils.EnvironmentArg(args)
			if err != nil {
				return errors.WithStack(err)
			}
			return c.run(name)
		},
		ValidArgsFunction: utils.CompleteEnvironments,
	}

	c.envFlags.AddFlags(command)

	return command
}

func (c *planCmd) run(name string) error {
	env, err := utils.LoadEnvironment(name, &c.envFlags, c.out)
	if err != nil {
		return errors.WithStack(err)
	}

	plan, err := env.Plan()
	if err != nil {
		return errors.WithStack(err)
	}

	return printPlan(c.out, plan)
}

func printPlan(out io.Writer, plan rollout.Plan) error {
	prerequisites, err := plan.Prerequisites()
	if err != nil {
		return errors.WithStack(err)
	}

	_, err = fmt.Fprintf(out, "Rollout plan (%d stages, at most %s):\n", len(plan), plan.MaxDuration())
	if err != nil {
		return errors.WithStack(err)
	}

	for i, stage := range plan {
		autoSync := "no"
		if stage.EnableAutoSync {
			autoSync = "yes"
		}

		_, err = fmt.Fprintf(out, "  %d. %-40s timeout=%-8s auto-sync=%s\n", i+1,
			stage.App, stage.ReadinessTimeout, autoSync)
		if err != nil {
			return errors.WithStack(err)
		}

		if len(prerequisites[stage.Name()]) > 0 {
			_, err = fmt.Fprintf(out, "     after: %s\n", strings.Join(prerequisites[stage.Name()], ", "))
			if err != nil {
				return errors.WithStack(err)
			}
		}
	}

	return nil
}
