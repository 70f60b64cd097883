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
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sugarkube/platformctl/internal/pkg/gitops"
	"github.com/sugarkube/platformctl/internal/pkg/log"
	"github.com/sugarkube/platformctl/internal/pkg/printer"
)

const (
	DefaultPollInterval = 5 * time.Second
	// applications normally appear within seconds of their ApplicationSet
	// being applied so this is much shorter than readiness timeouts
	DefaultExistenceRetries = 12
)

type Settings struct {
	PollInterval time.Duration
	// number of times to wait for an application to be registered before
	// giving up. The check is made once more than this, so zero checks once.
	// Negative uses the default.
	ExistenceRetries int
	Clock            Clock
}

// Drives applications through existence, sync, health and auto-sync one
// stage at a time. It isn't safe for concurrent use.
type Orchestrator struct {
	prober       gitops.ExistenceProber
	actions      gitops.ActionClient
	status       gitops.StatusClient
	pollInterval time.Duration
	retries      int
	clock        Clock
}

func NewOrchestrator(prober gitops.ExistenceProber, actions gitops.ActionClient,
	status gitops.StatusClient, settings Settings) *Orchestrator {

	o := &Orchestrator{
		prober:       prober,
		actions:      actions,
		status:       status,
		pollInterval: settings.PollInterval,
		retries:      settings.ExistenceRetries,
		clock:        settings.Clock,
	}

	if o.pollInterval <= 0 {
		o.pollInterval = DefaultPollInterval
	}
	if o.retries < 0 {
		o.retries = DefaultExistenceRetries
	}
	if o.clock == nil {
		o.clock = realClock{}
	}

	return o
}

// Runs every stage of the plan in order, stopping at the first failure. The
// plan should already have been validated.
func (o *Orchestrator) Run(ctx context.Context, plan Plan) *Result {
	start := o.clock.Now()

	result := &Result{
		NumStages: len(plan),
		Stages:    make([]StageReport, 0, len(plan)),
	}

	log.Logger.Infof("Rolling out %d applications in order: %v", len(plan), plan.Names())

	for i, stage := range plan {
		report := o.runStage(ctx, i, stage)
		result.Stages = append(result.Stages, report)

		if !report.Succeeded() {
			result.Stage = report.Name
			result.StageIndex = report.Index
			result.Reason = report.Reason
			result.Elapsed = report.Elapsed
			result.LastState = report.LastState
			result.Err = report.Err
			result.TotalElapsed = o.clock.Now().Sub(start)

			log.Logger.WithFields(logrus.Fields{
				"stage":   report.Name,
				"reason":  report.Reason,
				"elapsed": report.Elapsed,
				"state":   report.LastState.String(),
			}).Error("Rollout aborted")

			return result
		}
	}

	result.Success = true
	result.TotalElapsed = o.clock.Now().Sub(start)
	return result
}

func (o *Orchestrator) runStage(ctx context.Context, index int, stage Stage) StageReport {
	stageStart := o.clock.Now()
	app := stage.App
	logger := log.ForApp(app.Name)

	report := StageReport{
		Name:      app.Name,
		Index:     index,
		LastState: gitops.UnknownState,
	}

	fail := func(reason Reason, err error) StageReport {
		report.Reason = reason
		report.Err = err
		report.Elapsed = o.clock.Now().Sub(stageStart)
		return report
	}

	found, err := o.awaitExistence(ctx, app)
	if err != nil {
		return fail(classify(ctx, err), err)
	}

	if !found {
		_, _ = printer.Fprintf("[red]Application %s not found\n", app.Name)
		return fail(ReasonNotFound, nil)
	}

	_, _ = printer.Fprintf("[blue]Syncing %s...\n", app.Name)

	// the sync request is advisory. Polling decides whether the stage succeeds.
	acked, err := o.actions.TriggerSync(ctx, app)
	if err != nil {
		if gitops.IsSessionError(err) || ctx.Err() != nil {
			return fail(classify(ctx, err), err)
		}
		logger.Warnf("Sync request wasn't accepted, will wait for the application anyway: %v", err)
	} else if !acked {
		logger.Info("Sync request not acknowledged, an operation may already be running")
	}
	report.SyncAcked = acked

	state, reason, err := o.awaitHealthy(ctx, stage)
	report.LastState = state
	if err != nil {
		return fail(classify(ctx, err), err)
	}
	if reason != "" {
		switch reason {
		case ReasonDegraded:
			_, _ = printer.Fprintf("[red]%s is Degraded\n", app.Name)
		case ReasonTimeout:
			_, _ = printer.Fprintf("[yellow]Timeout waiting for %s\n", app.Name)
		}
		return fail(reason, nil)
	}

	_, _ = printer.Fprintf("[green]%s is %s\n", app.Name, state.Health)

	if stage.EnableAutoSync {
		enabled, err := o.actions.EnableAutoSync(ctx, app)
		if err != nil {
			if gitops.IsSessionError(err) || ctx.Err() != nil {
				return fail(classify(ctx, err), err)
			}
			// the application is already healthy so carry on
			logger.Warnf("Failed to enable auto-sync: %v", err)
		}
		if enabled {
			_, _ = printer.Fprintf("[green]Enabled auto-sync for %s\n", app.Name)
		}
		report.AutoSynced = enabled
	}

	report.Elapsed = o.clock.Now().Sub(stageStart)
	return report
}

// Polls until the application exists. Returns false if it still doesn't after
// the configured number of retries.
func (o *Orchestrator) awaitExistence(ctx context.Context, app gitops.ApplicationRef) (bool, error) {
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return false, errors.WithStack(err)
		}

		exists, err := o.prober.Exists(ctx, app)
		if err != nil {
			if gitops.IsSessionError(err) || ctx.Err() != nil {
				return false, errors.WithStack(err)
			}
			log.Logger.Warnf("Error checking whether %s exists: %v", app.Name, err)
			exists = false
		}

		if exists {
			return true, nil
		}

		if attempt >= o.retries {
			return false, nil
		}

		log.Logger.Infof("Waiting for %s to be created (attempt %d of %d)...",
			app.Name, attempt+1, o.retries)

		if err := o.clock.Sleep(ctx, o.pollInterval); err != nil {
			return false, errors.WithStack(err)
		}
	}
}

// Polls the application's status until it's synced and healthy, degraded or
// the stage's timeout expires. A non-empty reason means the stage failed.
func (o *Orchestrator) awaitHealthy(ctx context.Context, stage Stage) (gitops.ApplicationState, Reason, error) {
	start := o.clock.Now()
	last := gitops.UnknownState

	for o.clock.Now().Sub(start) < stage.ReadinessTimeout {
		if err := ctx.Err(); err != nil {
			return last, "", errors.WithStack(err)
		}

		state, err := o.status.GetStatus(ctx, stage.App)
		if err != nil {
			if gitops.IsSessionError(err) || ctx.Err() != nil {
				return last, "", errors.WithStack(err)
			}
			log.Logger.Warnf("Error getting the status of %s, will retry: %v", stage.Name(), err)
			state = gitops.UnknownState
		}
		last = state

		log.Logger.Debugf("Waiting for %s (%s)", stage.Name(), state)

		if state.IsReady() {
			return last, "", nil
		}

		if state.IsDegraded() {
			return last, ReasonDegraded, nil
		}

		if err := o.clock.Sleep(ctx, o.pollInterval); err != nil {
			return last, "", errors.WithStack(err)
		}
	}

	return last, ReasonTimeout, nil
}

// Maps an error that stopped a stage to a reason
func classify(ctx context.Context, err error) Reason {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ReasonCancelled
	}
	return ReasonTransportError
}
