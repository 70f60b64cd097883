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

package rollout

import (
	"time"

	"github.com/pkg/errors"
	"github.com/sugarkube/platformctl/internal/pkg/dag"
	"github.com/sugarkube/platformctl/internal/pkg/gitops"
	"github.com/sugarkube/platformctl/internal/pkg/templater"
)

// One application's step of a rollout
type Stage struct {
	App              gitops.ApplicationRef
	ReadinessTimeout time.Duration
	EnableAutoSync   bool
	// Only used to check the plan is ordered correctly. Stages always run in
	// the order they're declared.
	DependsOn []string
}

func (s Stage) Name() string {
	return s.App.Name
}

// An ordered list of stages. Later stages depend on earlier ones.
type Plan []Stage

// How a stage is declared in an environments file. Names are templates.
type StageSpec struct {
	Name      string   `yaml:"name"`
	Timeout   string   `yaml:"timeout"`
	AutoSync  *bool    `yaml:"autoSync,omitempty"`
	DependsOn []string `yaml:"dependsOn,omitempty"`
}

// Applications are installed in this order: crossplane itself, its providers,
// the infrastructure they create and then the application layer.
var DefaultStageSpecs = []StageSpec{
	{Name: "crossplane-{{ .env }}", Timeout: "5m"},
	{Name: "crossplane-providers-{{ .env }}", Timeout: "10m",
		DependsOn: []string{"crossplane-{{ .env }}"}},
	// aurora can take a while
	{Name: "infrastructure-{{ .env }}", Timeout: "15m",
		DependsOn: []string{"crossplane-providers-{{ .env }}"}},
	{Name: "supabase-{{ .env }}", Timeout: "5m",
		DependsOn: []string{"infrastructure-{{ .env }}"}},
}

// Returns the default plan for an environment
func DefaultPlan(env string, namespace string) (Plan, error) {
	return BuildPlan(DefaultStageSpecs, namespace, map[string]interface{}{"env": env})
}

// Renders stage specs into a validated plan. Templates in stage names and
// dependencies are rendered with the given vars.
func BuildPlan(specs []StageSpec, namespace string, vars map[string]interface{}) (Plan, error) {
	if namespace == "" {
		namespace = gitops.DefaultNamespace
	}

	plan := make(Plan, 0, len(specs))

	for i, spec := range specs {
		name, err := templater.RenderTemplate(spec.Name, vars)
		if err != nil {
			return nil, errors.Wrapf(err, "Error rendering the name of stage %d", i+1)
		}

		timeout, err := time.ParseDuration(spec.Timeout)
		if err != nil {
			return nil, errors.Wrapf(err, "Invalid timeout for stage '%s'", name)
		}

		dependsOn := make([]string, 0, len(spec.DependsOn))
		for _, dependency := range spec.DependsOn {
			rendered, err := templater.RenderTemplate(dependency, vars)
			if err != nil {
				return nil, errors.Wrapf(err, "Error rendering a dependency of stage '%s'", name)
			}
			dependsOn = append(dependsOn, rendered)
		}

		autoSync := true
		if spec.AutoSync != nil {
			autoSync = *spec.AutoSync
		}

		plan = append(plan, Stage{
			App:              gitops.ApplicationRef{Name: name, Namespace: namespace},
			ReadinessTimeout: timeout,
			EnableAutoSync:   autoSync,
			DependsOn:        dependsOn,
		})
	}

	err := plan.Validate()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return plan, nil
}

// Returns an error if the plan can't be run
func (p Plan) Validate() error {
	if len(p) == 0 {
		return errors.New("The rollout plan doesn't contain any stages")
	}

	for _, stage := range p {
		if stage.Name() == "" {
			return errors.New("Every stage needs an application name")
		}

		if stage.ReadinessTimeout <= 0 {
			return errors.Errorf("Stage '%s' needs a positive readiness timeout", stage.Name())
		}
	}

	graph, err := p.graph()
	if err != nil {
		return errors.WithStack(err)
	}

	err = graph.VerifyOrder(p.Names())
	if err != nil {
		return errors.Wrap(err, "Stages must be declared after the stages they depend on")
	}

	return nil
}

func (p Plan) graph() (*dag.Dag, error) {
	descriptors := make([]dag.Descriptor, 0, len(p))
	for _, stage := range p {
		descriptors = append(descriptors, dag.Descriptor{
			Name:      stage.Name(),
			DependsOn: stage.DependsOn,
		})
	}

	graph, err := dag.Build(descriptors)
	if err != nil {
		return nil, errors.Wrap(err, "Invalid stage dependencies")
	}

	return graph, nil
}

// Returns the names of every stage each stage directly or indirectly depends
// on, keyed by stage name
func (p Plan) Prerequisites() (map[string][]string, error) {
	graph, err := p.graph()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	prerequisites := make(map[string][]string, len(p))
	for _, stage := range p {
		ancestors, err := graph.Ancestors(stage.Name())
		if err != nil {
			return nil, errors.WithStack(err)
		}
		prerequisites[stage.Name()] = ancestors
	}

	return prerequisites, nil
}

func (p Plan) Names() []string {
	names := make([]string, len(p))
	for i, stage := range p {
		names[i] = stage.Name()
	}
	return names
}

// Returns the sum of all readiness timeouts, i.e. roughly how long a rollout
// can block for
func (p Plan) MaxDuration() time.Duration {
	var total time.Duration
	for _, stage := range p {
		total += stage.ReadinessTimeout
	}
	return total
}
